// Package opening implements the two external opening sources: a
// restartable EPD file reader and a random-move opening-book sampler. Both
// satisfy the same Source interface so the pool can consume either without
// caring which one is configured.
package opening

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/sparkchess/clash/pkg/boardstate"
)

// Source yields a finite or infinite sequence of starting positions as FEN
// strings.
type Source interface {
	Next() (fen string, ok bool)
}

// EPDReader reads one position per line from an EPD file, fields delimited
// by ";", the first field being the FEN. It restarts from the beginning of
// the file whenever it hits a blank line or EOF, so a single reader can
// supply an arbitrarily long match.
type EPDReader struct {
	path string
	f    *os.File
	r    *bufio.Reader
}

// NewEPDReader opens path for reading.
func NewEPDReader(path string) (*EPDReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening: open %v: %w", path, err)
	}
	return &EPDReader{path: path, f: f, r: bufio.NewReader(f)}, nil
}

// Next returns the next FEN in the file, restarting at the start of the
// file on a blank line or end of file.
func (e *EPDReader) Next() (string, bool) {
	for {
		line, err := e.r.ReadString('\n')
		line = strings.TrimSpace(line)

		if line != "" {
			fen := strings.TrimSpace(strings.SplitN(line, ";", 2)[0])
			if fen != "" {
				return fen, true
			}
		}

		if err != nil {
			if err != io.EOF {
				return "", false
			}
			if !e.restart() {
				return "", false
			}
			continue
		}
		if line == "" {
			if !e.restart() {
				return "", false
			}
		}
	}
}

func (e *EPDReader) restart() bool {
	if _, err := e.f.Seek(0, io.SeekStart); err != nil {
		return false
	}
	e.r = bufio.NewReader(e.f)
	return true
}

// Close releases the underlying file.
func (e *EPDReader) Close() error {
	return e.f.Close()
}

// BookReader samples a starting position by playing random legal moves from
// the standard initial position until the fullmove number passes bookDepth,
// or, when bookDepth is 0, until the game is over.
type BookReader struct {
	rand      *rand.Rand
	bookDepth int // 0 means unbounded
}

// NewBookReader constructs a sampler seeded by seed. A non-zero bookDepth
// stops each line once the fullmove number exceeds it; a bookDepth of 0 sets
// no cap, so each line is played until the game is over.
func NewBookReader(seed int64, bookDepth int) *BookReader {
	return &BookReader{rand: rand.New(rand.NewSource(seed)), bookDepth: bookDepth}
}

// Next plays a fresh random line from the initial position and returns the
// resulting FEN.
func (b *BookReader) Next() (string, bool) {
	board, err := boardstate.NewBoard(initialFEN, boardstate.Standard, boardstate.Headers{})
	if err != nil {
		return "", false
	}

	for !board.Over() {
		if b.bookDepth > 0 && board.FullMoves() > b.bookDepth {
			break
		}

		moves := board.LegalMoves()
		if len(moves) == 0 {
			break
		}
		pick := moves[b.rand.Intn(len(moves))]
		if err := board.PushUCIMove(pick); err != nil {
			return "", false
		}
	}

	return board.Game().Position().String(), true
}

const initialFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Sequence wraps a Source so each sampled FEN is emitted twice consecutively,
// giving a Job pair the same opening with both colors.
type Sequence struct {
	src  Source
	next string
	have bool
}

// NewSequence wraps src.
func NewSequence(src Source) *Sequence {
	return &Sequence{src: src}
}

// Next returns the next FEN in the doubled sequence.
func (s *Sequence) Next() (string, bool) {
	if s.have {
		s.have = false
		return s.next, true
	}

	fen, ok := s.src.Next()
	if !ok {
		return "", false
	}
	s.next = fen
	s.have = true
	return fen, true
}
