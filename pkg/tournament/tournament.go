// Package tournament drives a gauntlet or round-robin tournament over a
// configured list of engines, running one Pool matchup per pair over the
// same prepared list of starting positions.
package tournament

import (
	"context"
	"fmt"

	"github.com/seekerror/logw"

	"github.com/sparkchess/clash/pkg/boardstate"
	"github.com/sparkchess/clash/pkg/clock"
	"github.com/sparkchess/clash/pkg/config"
	"github.com/sparkchess/clash/pkg/opening"
	"github.com/sparkchess/clash/pkg/pool"
	"github.com/sparkchess/clash/pkg/tablebase"
)

// Matchup is one pair of engines and the pool scores they produced.
type Matchup struct {
	EngineA, EngineB string
	Scores           []float64 // engine-A-perspective
}

// Run builds the job list once from src and plays every matchup the
// configured tournament mode requires, returning one Matchup per pair.
func Run(ctx context.Context, cfg config.Config, src opening.Source, prober tablebase.Prober) ([]Matchup, error) {
	jobs, err := buildJobs(src, cfg.Games)
	if err != nil {
		return nil, err
	}

	pairs := pairsFor(cfg)

	var matchups []Matchup
	for _, p := range pairs {
		a, b := cfg.Engines[p[0]], cfg.Engines[p[1]]
		logw.Infof(ctx, "Tournament: starting matchup %v vs. %v (%v games)", a.Label, b.Label, len(jobs))

		variant := boardstate.Standard
		if cfg.Chess960 {
			variant = boardstate.Chess960
		}

		pgnPath := ""
		if cfg.PgnOut != nil {
			pgnPath = *cfg.PgnOut
		}

		opt := pool.Options{
			Engines: [2]pool.EngineSpec{
				{Label: a.Label, Path: a.Path, Debug: a.Debug, Options: a.Options},
				{Label: b.Label, Path: b.Path, Debug: b.Debug, Options: b.Options},
			},
			TimeControls: [2]clock.TimeControl{
				cfg.TimeControls[0].ToClock(),
				cfg.TimeControls[1].ToClock(),
			},
			Variant:        variant,
			Prober:         prober,
			Draw:           cfg.Draw,
			Resign:         cfg.Resign,
			Concurrency:    cfg.Concurrency,
			RatingInterval: cfg.RatingInterval,
			WantPGN:        cfg.PgnOut != nil,
			PGNPath:        pgnPath,
		}

		scores, err := pool.Run(ctx, jobs, opt)
		if err != nil {
			return matchups, fmt.Errorf("tournament: matchup %v vs. %v: %w", a.Label, b.Label, err)
		}
		matchups = append(matchups, Matchup{EngineA: a.Label, EngineB: b.Label, Scores: scores})
	}
	return matchups, nil
}

// pairsFor enumerates the engine-index pairs a tournament mode plays.
func pairsFor(cfg config.Config) [][2]int {
	n := len(cfg.Engines)
	var pairs [][2]int

	switch cfg.Tournament {
	case config.Gauntlet:
		for i := 1; i < n; i++ {
			pairs = append(pairs, [2]int{0, i})
		}
	case config.RoundRobin:
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}

// buildJobs pulls exactly `games` starting positions from src (already
// doubled by an opening.Sequence, so consecutive FENs repeat) and assigns
// alternating white indices so that each opening is played with both
// colors.
func buildJobs(src opening.Source, games int) ([]pool.Job, error) {
	jobs := make([]pool.Job, 0, games)
	for i := 0; i < games; i++ {
		fen, ok := src.Next()
		if !ok {
			return nil, fmt.Errorf("tournament: opening source exhausted after %v of %v games", i, games)
		}
		jobs = append(jobs, pool.Job{
			Round:    i + 1,
			StartFEN: fen,
			WhiteIdx: i % 2,
		})
	}
	return jobs, nil
}
