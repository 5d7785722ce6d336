// Package boardstate adapts the external chess-rules engine to the shape the
// match orchestrator needs: FEN setup, UCI move application, and game-over
// detection. The rules themselves -- legality, result, PGN text -- are owned
// by github.com/corentings/chess/v2; this package only isolates that API
// surface behind the narrow contract the rest of clash depends on.
package boardstate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/corentings/chess/v2"
)

// Variant selects the chess variant a Board is constructed under.
type Variant int

const (
	Standard Variant = iota
	Chess960
)

// Board wraps a single game's position and move history.
type Board struct {
	game    *chess.Game
	variant Variant
}

// Headers are the PGN tag-pairs known at game start. They are embedded as a
// construction-time option rather than added after the fact: the rules
// engine exposes tag pairs through NewGame's functional options, not a
// mutator on an in-progress game.
type Headers struct {
	White, Black string
	Round        int
	Date         string // ISO date
}

// NewBoard constructs a Board from a FEN starting position. The game is
// configured to parse and print moves in UCI notation, so engine bestmove
// tokens can be pushed directly without a separate decode/re-encode step.
//
// Chess960 does not change how the position is constructed here: a 960
// starting FEN already carries its own (possibly non-standard) castling
// rights, which the rules engine parses the same way regardless of variant.
// The variant only changes what UCI option clash configures on each engine
// session (UCI_Chess960), which pkg/pool does from its own options; Board
// stores the variant but does not act on it.
func NewBoard(startFEN string, variant Variant, h Headers) (*Board, error) {
	fenFn, err := chess.FEN(startFEN)
	if err != nil {
		return nil, fmt.Errorf("invalid starting FEN %q: %w", startFEN, err)
	}

	tags := []*chess.TagPair{
		{Key: "White", Value: h.White},
		{Key: "Black", Value: h.Black},
		{Key: "Round", Value: fmt.Sprintf("%v", h.Round)},
		{Key: "Date", Value: h.Date},
		{Key: "FEN", Value: startFEN},
	}

	game := chess.NewGame(chess.UseNotation(chess.UCINotation{}), fenFn, chess.TagPairs(tags))
	return &Board{game: game, variant: variant}, nil
}

// Turn returns true if white is to move.
func (b *Board) Turn() bool {
	return b.game.Position().Turn() == chess.White
}

// FEN returns the current position as a FEN string.
func (b *Board) FEN() string {
	return b.game.Position().String()
}

// fenField returns the zero-indexed space-separated field of a FEN string,
// or 0 if the field is missing or not a valid integer. Used to read the
// halfmove clock (field 4) and fullmove number (field 5) without relying on
// any accessor beyond Position().String(), the one piece of position text
// the rules engine is evidenced to expose.
func fenField(fen string, i int) int {
	fields := strings.Fields(fen)
	if i >= len(fields) {
		return 0
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0
	}
	return v
}

// FullMoves returns the fullmove number, as defined in FEN.
func (b *Board) FullMoves() int {
	return fenField(b.FEN(), 5)
}

// HalfMoveClock returns the ply count since the last capture or pawn move.
func (b *Board) HalfMoveClock() int {
	return fenField(b.FEN(), 4)
}

// Over reports whether the game has reached a terminal result.
func (b *Board) Over() bool {
	return b.game.Outcome() != chess.NoOutcome
}

// Result returns the PGN result string ("1-0", "0-1", "1/2-1/2") once the
// game is over. Only meaningful when Over() is true.
func (b *Board) Result() string {
	return b.game.Outcome().String()
}

// PushUCIMove applies a long-algebraic UCI move against the current
// position. It is the only mutator on Board: callers never touch the
// underlying *chess.Game directly, keeping ownership of board mutation
// exclusively with the Game Loop.
func (b *Board) PushUCIMove(uciMove string) error {
	if err := b.game.PushMove(uciMove, nil); err != nil {
		return fmt.Errorf("illegal move %q: %w", uciMove, err)
	}
	return nil
}

// Game exposes the underlying game for PGN serialization only.
func (b *Board) Game() *chess.Game {
	return b.game
}

// LegalMoves returns the UCI text of every legal move in the current
// position, for an opening-book sampler to pick randomly among.
func (b *Board) LegalMoves() []string {
	valid := b.game.ValidMoves()
	moves := make([]string, len(valid))
	for i, m := range valid {
		moves[i] = m.String()
	}
	return moves
}
