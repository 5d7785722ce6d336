package match_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekerror/stdlib/pkg/lang"

	"github.com/sparkchess/clash/pkg/boardstate"
	"github.com/sparkchess/clash/pkg/clock"
	"github.com/sparkchess/clash/pkg/config"
	"github.com/sparkchess/clash/pkg/match"
	"github.com/sparkchess/clash/pkg/session"
	"github.com/sparkchess/clash/pkg/tablebase"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// scriptedEngine writes a fake UCI engine that answers a fixed sequence of
// (bestmove, score) pairs, one per "go" call, looping the last entry if more
// calls arrive than entries provided.
func scriptedEngine(t *testing.T, moves []string, scores []string, sleepFirst time.Duration) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("scripted fake engine requires a POSIX shell")
	}
	require.Equal(t, len(moves), len(scores))

	var cases string
	for i, mv := range moves {
		sleep := ""
		if i == 0 && sleepFirst > 0 {
			sleep = fmt.Sprintf("sleep %v; ", sleepFirst.Seconds())
		}
		cases += fmt.Sprintf("    %v) %vecho \"info depth 1 score cp %v\"; echo \"bestmove %v\" ;;\n", i+1, sleep, scores[i], mv)
	}
	last := len(moves) - 1
	cases += fmt.Sprintf("    *) echo \"info depth 1 score cp %v\"; echo \"bestmove %v\" ;;\n", scores[last], moves[last])

	script := fmt.Sprintf(`#!/bin/sh
n=0
while IFS= read -r line; do
  case "$line" in
    uci) echo uciok ;;
    isready) echo readyok ;;
    ucinewgame) n=0 ;;
    position*) ;;
    setoption*) ;;
    go*)
      n=$((n+1))
      case $n in
%v      esac
      ;;
    quit) exit 0 ;;
  esac
done
`, cases)

	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func startEngine(t *testing.T, label, path string) *session.Session {
	t.Helper()
	s, err := session.Start(context.Background(), label, path, false)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Handshake(context.Background()))
	require.NoError(t, s.Ready(context.Background()))
	return s
}

func TestPlay_ChessRulesCheckmateTakesPrecedence(t *testing.T) {
	// Fool's mate: 1. f3 e5 2. g4 Qh4#. White (engine 0) blunders into being
	// mated by Black (engine 1).
	white := scriptedEngine(t, []string{"f2f3", "g2g4"}, []string{"9999", "9999"}, 0)
	black := scriptedEngine(t, []string{"e7e5", "d8h4"}, []string{"0", "0"}, 0)

	e0 := startEngine(t, "white", white)
	e1 := startEngine(t, "black", black)

	tc := config.TimeControl{MoveTime: f64ptr(0.5)}.ToClock()
	opt := match.Options{
		StartFEN:     startFEN,
		WhiteIdx:     0,
		TimeControls: [2]clock.TimeControl{tc, tc},
		Variant:      boardstate.Standard,
		Prober:       tablebase.NoopProber{},
		Draw:         config.Draw{MoveNumber: 1000, MoveCount: 1000, Score: 0},
		Resign:       config.Resign{MoveCount: 1000, Score: 100000},
	}

	res, err := match.Play(context.Background(), [2]*session.Session{e0, e1}, opt)
	require.NoError(t, err)
	assert.Equal(t, match.ReasonChessRules, res.Reason)
	assert.Equal(t, "0-1", res.PGNResult)
	assert.Equal(t, 0.0, res.ScoreE0)
}

func TestPlay_ResignAdjudicationFavorsEngineZero(t *testing.T) {
	// Engine 0 (white) always reports +700, engine 1 (black) always reports
	// -700; with Resign.MoveCount = 3 the game ends after 6 plies favoring
	// engine 0. This is the seed resign scenario.
	whiteMoves := []string{"g1f3", "f3g5", "g5h7"}
	blackMoves := []string{"g8f6", "f6g4", "g4h2"}

	white := scriptedEngine(t, whiteMoves, []string{"700", "700", "700"}, 0)
	black := scriptedEngine(t, blackMoves, []string{"-700", "-700", "-700"}, 0)

	e0 := startEngine(t, "engine0", white)
	e1 := startEngine(t, "engine1", black)

	tc := config.TimeControl{MoveTime: f64ptr(0.5)}.ToClock()
	opt := match.Options{
		StartFEN:     startFEN,
		WhiteIdx:     0,
		TimeControls: [2]clock.TimeControl{tc, tc},
		Variant:      boardstate.Standard,
		Prober:       tablebase.NoopProber{},
		Draw:         config.Draw{MoveNumber: 1000, MoveCount: 1000, Score: 0},
		Resign:       config.Resign{MoveCount: 3, Score: 600},
	}

	res, err := match.Play(context.Background(), [2]*session.Session{e0, e1}, opt)
	require.NoError(t, err)
	assert.Equal(t, match.ReasonResign, res.Reason)
	assert.Equal(t, "1-0", res.PGNResult, "result must favor engine 0")
	assert.Equal(t, 1.0, res.ScoreE0)
}

func TestPlay_DrawAdjudication(t *testing.T) {
	// Both engines always report 0; once enough low-score plies accumulate
	// past the move-number floor, the game is adjudicated a draw. Smaller
	// thresholds than the illustrative movenumber=40/movecount=8 scenario,
	// same mechanism.
	whiteMoves := []string{"g1f3", "b1c3"}
	blackMoves := []string{"b8c6", "g8f6"}

	white := scriptedEngine(t, whiteMoves, []string{"0", "0"}, 0)
	black := scriptedEngine(t, blackMoves, []string{"0", "0"}, 0)

	e0 := startEngine(t, "engine0", white)
	e1 := startEngine(t, "engine1", black)

	tc := config.TimeControl{MoveTime: f64ptr(0.5)}.ToClock()
	opt := match.Options{
		StartFEN:     startFEN,
		WhiteIdx:     0,
		TimeControls: [2]clock.TimeControl{tc, tc},
		Variant:      boardstate.Standard,
		Prober:       tablebase.NoopProber{},
		Draw:         config.Draw{MoveNumber: 1, MoveCount: 2, Score: 10},
		Resign:       config.Resign{MoveCount: 1000, Score: 100000},
	}

	res, err := match.Play(context.Background(), [2]*session.Session{e0, e1}, opt)
	require.NoError(t, err)
	assert.Equal(t, match.ReasonDrawAdjudication, res.Reason)
	assert.Equal(t, "1/2-1/2", res.PGNResult)
	assert.Equal(t, 0.5, res.ScoreE0)
}

func TestPlay_LostOnTime(t *testing.T) {
	// Engine 0 sleeps well past its 10ms total time budget on its first move.
	white := scriptedEngine(t, []string{"g1f3"}, []string{"0"}, 200*time.Millisecond)
	black := scriptedEngine(t, []string{"g8f6"}, []string{"0"}, 0)

	e0 := startEngine(t, "engine0", white)
	e1 := startEngine(t, "engine1", black)

	whiteTC := clock.TimeControl{Time: lang.Some(10 * time.Millisecond)}
	blackTC := config.TimeControl{MoveTime: f64ptr(0.5)}.ToClock()

	opt := match.Options{
		StartFEN:     startFEN,
		WhiteIdx:     0,
		TimeControls: [2]clock.TimeControl{whiteTC, blackTC},
		Variant:      boardstate.Standard,
		Prober:       tablebase.NoopProber{},
		Draw:         config.Draw{MoveNumber: 1000, MoveCount: 1000, Score: 0},
		Resign:       config.Resign{MoveCount: 1000, Score: 100000},
	}

	res, err := match.Play(context.Background(), [2]*session.Session{e0, e1}, opt)
	require.NoError(t, err)
	assert.Equal(t, match.ReasonLostOnTime, res.Reason)
	assert.Equal(t, "0-1", res.PGNResult, "engine 0 (white) timed out, opponent wins")
}

func TestPlay_TablebaseAdjudicationSkipsGo(t *testing.T) {
	kqk := "4k3/8/8/8/8/8/8/3QK3 w - - 0 1"

	white := scriptedEngine(t, []string{"d1d8"}, []string{"0"}, 0)
	black := scriptedEngine(t, []string{"e8e7"}, []string{"0"}, 0)

	e0 := startEngine(t, "engine0", white)
	e1 := startEngine(t, "engine1", black)

	tc := config.TimeControl{MoveTime: f64ptr(0.5)}.ToClock()
	opt := match.Options{
		StartFEN:     kqk,
		WhiteIdx:     0,
		TimeControls: [2]clock.TimeControl{tc, tc},
		Variant:      boardstate.Standard,
		Prober:       stubProber{fen: kqk, wdl: tablebase.Win},
		Draw:         config.Draw{MoveNumber: 1000, MoveCount: 1000, Score: 0},
		Resign:       config.Resign{MoveCount: 1000, Score: 100000},
	}

	res, err := match.Play(context.Background(), [2]*session.Session{e0, e1}, opt)
	require.NoError(t, err)
	assert.Equal(t, match.ReasonTBAdjudication, res.Reason)
	assert.Equal(t, "1-0", res.PGNResult)
	assert.Equal(t, 1.0, res.ScoreE0)
}

type stubProber struct {
	fen string
	wdl tablebase.WDL
}

func (s stubProber) Probe(_ context.Context, fen string) (tablebase.WDL, bool) {
	if fen != s.fen {
		return 0, false
	}
	return s.wdl, true
}

func f64ptr(v float64) *float64 { return &v }
