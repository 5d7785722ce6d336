// Package session implements the engine-session state machine: one UCI
// engine subprocess, its line-oriented handshake, and its search call.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

// ErrProtocolFailure indicates the engine's stdout closed before the
// expected reply, or otherwise violated the protocol. It is fatal to the
// current game.
var ErrProtocolFailure = fmt.Errorf("engine protocol failure")

// GoArgs are the arguments to a search call.
type GoArgs struct {
	Depth     lang.Optional[int]
	Nodes     lang.Optional[int]
	MoveTime  lang.Optional[time.Duration]
	WTime     lang.Optional[time.Duration]
	BTime     lang.Optional[time.Duration]
	WInc      lang.Optional[time.Duration]
	BInc      lang.Optional[time.Duration]
	MovesToGo lang.Optional[int]
}

// Session owns one engine subprocess and speaks UCI over its stdio pipes.
// Exactly one search may be outstanding at a time; callers must never call
// Go concurrently with itself on the same Session.
type Session struct {
	iox.AsyncCloser

	Label string
	Debug bool

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  <-chan string // lines read from the engine's stdout

	options map[string]bool // advertised option names
	mu      sync.Mutex
}

// Start spawns the engine executable and begins reading its stdout.
func Start(ctx context.Context, label, path string, debug bool) (*Session, error) {
	cmd := exec.CommandContext(ctx, path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("session %v: stdin pipe: %w", label, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("session %v: stdout pipe: %w", label, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("session %v: start %v: %w", label, path, err)
	}

	s := &Session{
		AsyncCloser: iox.NewAsyncCloser(),
		Label:       label,
		Debug:       debug,
		cmd:         cmd,
		stdin:       stdin,
		lines:       readLines(ctx, label, cmd.Process.Pid, debug, stdout),
		options:     map[string]bool{},
	}
	logw.Infof(ctx, "Session %v started: pid=%v path=%v", label, cmd.Process.Pid, path)
	return s, nil
}

// readLines scans an engine's stdout into a channel, closing it when the
// stream ends, tagged with the session's label and pid for debug logging.
func readLines(ctx context.Context, label string, pid int, debug bool, r io.Reader) <-chan string {
	ret := make(chan string, 64)
	go func() {
		defer close(ret)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if debug {
				logw.Debugf(ctx, "[%v:%v] << %v", label, pid, line)
			}
			ret <- line
		}
	}()
	return ret
}

func (s *Session) send(ctx context.Context, line string) error {
	if s.IsClosed() {
		return fmt.Errorf("session %v: %w: write after close", s.Label, ErrProtocolFailure)
	}
	if s.Debug {
		logw.Debugf(ctx, "[%v:%v] >> %v", s.Label, s.cmd.Process.Pid, line)
	}
	if _, err := fmt.Fprintf(s.stdin, "%v\n", line); err != nil {
		return fmt.Errorf("session %v: %w: write: %v", s.Label, ErrProtocolFailure, err)
	}
	return nil
}

func (s *Session) recv() (string, bool) {
	line, ok := <-s.lines
	return line, ok
}

// Handshake sends "uci" and reads until "uciok", collecting the advertised
// option names along the way.
func (s *Session) Handshake(ctx context.Context) error {
	if err := s.send(ctx, "uci"); err != nil {
		return err
	}

	for {
		line, ok := s.recv()
		if !ok {
			return fmt.Errorf("session %v: %w: closed before uciok", s.Label, ErrProtocolFailure)
		}

		if name, ok := parseOptionName(line); ok {
			s.options[name] = true
			continue
		}
		if strings.TrimSpace(line) == "uciok" {
			return nil
		}
	}
}

// parseOptionName extracts the option name from an "option name <N> type
// <T> ..." line: the tokens between "name" and the literal token "type",
// joined by single spaces.
func parseOptionName(line string) (string, bool) {
	const prefix = "option name "
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}

	fields := strings.Fields(strings.TrimPrefix(line, prefix))
	var name []string
	for _, f := range fields {
		if f == "type" {
			break
		}
		name = append(name, f)
	}
	if len(name) == 0 {
		return "", false
	}
	return strings.Join(name, " "), true
}

// SetOptions sends "setoption" for each (name, value) pair. Values are
// formatted as lowercase true/false for booleans, and their textual form
// otherwise. Names the engine did not advertise during Handshake still get
// sent, but produce a logged warning.
func (s *Session) SetOptions(ctx context.Context, options map[string]any) error {
	for name, value := range options {
		if !s.options[name] {
			logw.Warningf(ctx, "Session %v: option %q not advertised by engine", s.Label, name)
		}

		if err := s.send(ctx, fmt.Sprintf("setoption name %v value %v", name, formatOptionValue(value))); err != nil {
			return err
		}
	}
	return nil
}

func formatOptionValue(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

// Ready sends "isready" and blocks until "readyok".
func (s *Session) Ready(ctx context.Context) error {
	if err := s.send(ctx, "isready"); err != nil {
		return err
	}
	for {
		line, ok := s.recv()
		if !ok {
			return fmt.Errorf("session %v: %w: closed before readyok", s.Label, ErrProtocolFailure)
		}
		if strings.TrimSpace(line) == "readyok" {
			return nil
		}
	}
}

// NewGame sends "ucinewgame".
func (s *Session) NewGame(ctx context.Context) error {
	return s.send(ctx, "ucinewgame")
}

// Position sends a single "position ..." line, built incrementally by the
// caller.
func (s *Session) Position(ctx context.Context, posCmd string) error {
	return s.send(ctx, posCmd)
}

// Result is the outcome of a search call: a best move and an optional
// centipawn evaluation from the side-to-move's perspective.
type Result struct {
	BestMove string
	Score    lang.Optional[int]
}

// Go emits "go" with the given arguments and reads lines until "bestmove",
// tracking the last accepted "score" seen along the way. The mutex enforces
// the single-outstanding-search invariant: a second call blocks until the
// first's bestmove is read, rather than interleaving two "go" commands on
// the same engine.
func (s *Session) Go(ctx context.Context, args GoArgs) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(ctx, buildGoLine(args)); err != nil {
		return Result{}, err
	}

	var score lang.Optional[int]
	for {
		line, ok := s.recv()
		if !ok {
			return Result{}, fmt.Errorf("session %v: %w: closed before bestmove", s.Label, ErrProtocolFailure)
		}

		if strings.HasPrefix(line, "info") {
			if v, ok := parseScore(line); ok {
				score = lang.Some(v)
			}
			continue
		}

		if strings.HasPrefix(line, "bestmove") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return Result{}, fmt.Errorf("session %v: %w: malformed bestmove line %q", s.Label, ErrProtocolFailure, line)
			}
			return Result{BestMove: fields[1], Score: score}, nil
		}
	}
}

func buildGoLine(args GoArgs) string {
	var b strings.Builder
	b.WriteString("go")

	writeMs := func(key string, d lang.Optional[time.Duration]) {
		if v, ok := d.V(); ok {
			fmt.Fprintf(&b, " %v %v", key, v.Milliseconds())
		}
	}
	writeInt := func(key string, n lang.Optional[int]) {
		if v, ok := n.V(); ok {
			fmt.Fprintf(&b, " %v %v", key, v)
		}
	}

	writeInt("depth", args.Depth)
	writeInt("nodes", args.Nodes)
	writeMs("movetime", args.MoveTime)
	writeMs("wtime", args.WTime)
	writeMs("btime", args.BTime)
	writeMs("winc", args.WInc)
	writeMs("binc", args.BInc)
	writeInt("movestogo", args.MovesToGo)

	return b.String()
}

// resignScoreSign reports the sign of a mate-ply count.
func resignScoreSign(mateIn int) int {
	if mateIn < 0 {
		return -1
	}
	return 1
}

// parseScore finds "score " in an "info" line and extracts a centipawn
// value:
//
//   - "cp N" is accepted only when there is no third token, or that token
//     does not end in the literal suffix "bound" (so fail-high/fail-low
//     bound scores are ignored).
//   - "mate K" resolves to the package-level resign magnitude configured by
//     SetResignMagnitude, signed by K.
func parseScore(line string) (int, bool) {
	fields := strings.Fields(line)
	for i, f := range fields {
		if f != "score" || i+1 >= len(fields) {
			continue
		}

		kind := fields[i+1]
		if i+2 >= len(fields) {
			return 0, false
		}
		valueTok := fields[i+2]

		switch kind {
		case "cp":
			v, err := strconv.Atoi(valueTok)
			if err != nil {
				return 0, false
			}
			if i+3 < len(fields) && strings.HasSuffix(fields[i+3], "bound") {
				return 0, false
			}
			return v, true

		case "mate":
			mateIn, err := strconv.Atoi(valueTok)
			if err != nil {
				return 0, false
			}
			return resignScoreSign(mateIn) * resignMagnitude, true
		}
	}
	return 0, false
}

// resignMagnitude is the centipawn magnitude a mate score maps to. It is set
// once per process from the configured resign threshold before any game
// starts, avoiding threading it through every Go call.
var resignMagnitude = 10000

// SetResignMagnitude configures the centipawn value a mate score is mapped
// to.
func SetResignMagnitude(cp int) {
	resignMagnitude = cp
}

// Close terminates the subprocess. Idempotent.
func (s *Session) Close() {
	if s.IsClosed() {
		return
	}
	s.AsyncCloser.Close()

	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
}
