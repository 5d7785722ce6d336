package tournament_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkchess/clash/pkg/config"
	"github.com/sparkchess/clash/pkg/tablebase"
	"github.com/sparkchess/clash/pkg/tournament"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// constFEN repeats the same starting position forever.
type constFEN struct{}

func (constFEN) Next() (string, bool) { return startFEN, true }

// drawProber adjudicates every position a draw immediately, so matchups
// never need to issue a legal move.
type drawProber struct{}

func (drawProber) Probe(_ context.Context, _ string) (tablebase.WDL, bool) {
	return tablebase.Draw, true
}

func fakeEngine(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script requires a POSIX shell")
	}
	script := `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    uci) echo uciok ;;
    isready) echo readyok ;;
    ucinewgame) ;;
    position*) ;;
    setoption*) ;;
  esac
done
`
	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func baseConfig(t *testing.T, nEngines int, mode string) config.Config {
	t.Helper()

	engines := make([]config.EngineSpec, nEngines)
	for i := range engines {
		engines[i] = config.EngineSpec{Label: engineLabel(i), Path: fakeEngine(t)}
	}

	return config.Config{
		Engines: engines,
		TimeControls: []config.TimeControl{
			{Depth: intPtr(1)},
			{Depth: intPtr(1)},
		},
		Draw:           config.Draw{MoveNumber: 1000, MoveCount: 1000, Score: 0},
		Resign:         config.Resign{MoveCount: 1000, Score: 100000},
		Games:          1,
		Concurrency:    1,
		RatingInterval: 1000,
		Tournament:     mode,
	}
}

func engineLabel(i int) string {
	return string(rune('a' + i))
}

func intPtr(v int) *int { return &v }

func TestRun_GauntletPlaysEngineZeroAgainstEveryOther(t *testing.T) {
	cfg := baseConfig(t, 3, config.Gauntlet)

	matchups, err := tournament.Run(context.Background(), cfg, constFEN{}, drawProber{})
	require.NoError(t, err)
	require.Len(t, matchups, 2)

	assert.Equal(t, "a", matchups[0].EngineA)
	assert.Equal(t, "b", matchups[0].EngineB)
	assert.Equal(t, "a", matchups[1].EngineA)
	assert.Equal(t, "c", matchups[1].EngineB)
}

func TestRun_RoundRobinPlaysEveryUnorderedPair(t *testing.T) {
	cfg := baseConfig(t, 3, config.RoundRobin)

	matchups, err := tournament.Run(context.Background(), cfg, constFEN{}, drawProber{})
	require.NoError(t, err)
	require.Len(t, matchups, 3)

	var pairs [][2]string
	for _, m := range matchups {
		pairs = append(pairs, [2]string{m.EngineA, m.EngineB})
	}
	assert.Contains(t, pairs, [2]string{"a", "b"})
	assert.Contains(t, pairs, [2]string{"a", "c"})
	assert.Contains(t, pairs, [2]string{"b", "c"})
}

func TestRun_EachMatchupReusesTheSameJobList(t *testing.T) {
	cfg := baseConfig(t, 3, config.Gauntlet)
	cfg.Games = 4

	matchups, err := tournament.Run(context.Background(), cfg, constFEN{}, drawProber{})
	require.NoError(t, err)
	require.Len(t, matchups, 2)
	assert.Len(t, matchups[0].Scores, 4)
	assert.Len(t, matchups[1].Scores, 4, "both matchups play the same prepared job count")
}
