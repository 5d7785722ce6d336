// Package pool implements the fixed-size worker pool that plays a
// matchup's games concurrently and aggregates their results: a running
// score, a 95% confidence interval, and PGN output.
package pool

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/iox"
	"golang.org/x/exp/constraints"

	"github.com/sparkchess/clash/pkg/boardstate"
	"github.com/sparkchess/clash/pkg/clock"
	"github.com/sparkchess/clash/pkg/config"
	"github.com/sparkchess/clash/pkg/match"
	"github.com/sparkchess/clash/pkg/session"
	"github.com/sparkchess/clash/pkg/tablebase"
)

// Job is one game to be played: a round number, a starting FEN, and which
// side of the matchup's two engines plays white.
type Job struct {
	Round    int
	StartFEN string
	WhiteIdx int
}

// Result pairs a Job with the game it produced.
type Result struct {
	Job  Job
	Game match.Result
	Err  error
}

// EngineSpec is everything needed to start and configure one engine for a
// matchup.
type EngineSpec struct {
	Label   string
	Path    string
	Debug   bool
	Options map[string]any
}

// Options parameterize a Pool's matchup.
type Options struct {
	Engines        [2]EngineSpec
	TimeControls   [2]clock.TimeControl
	Variant        boardstate.Variant
	Prober         tablebase.Prober
	Draw           config.Draw
	Resign         config.Resign
	Concurrency    int
	RatingInterval int
	WantPGN        bool
	PGNPath        string
}

// Worker owns one pair of EngineSessions for its lifetime. It pulls jobs
// from a channel, runs the Game Loop, and pushes results.
type Worker struct {
	iox.AsyncCloser

	id      int
	engines [2]*session.Session
	opt     Options
}

// newWorker constructs and handshakes the engine pair for one worker.
func newWorker(ctx context.Context, id int, opt Options) (*Worker, error) {
	var engines [2]*session.Session
	for i, spec := range opt.Engines {
		s, err := session.Start(ctx, spec.Label, spec.Path, spec.Debug)
		if err != nil {
			return nil, fmt.Errorf("pool: worker %v: start engine %v: %w", id, spec.Label, err)
		}
		if err := s.Handshake(ctx); err != nil {
			return nil, fmt.Errorf("pool: worker %v: handshake %v: %w", id, spec.Label, err)
		}
		if err := s.SetOptions(ctx, spec.Options); err != nil {
			return nil, fmt.Errorf("pool: worker %v: set options %v: %w", id, spec.Label, err)
		}
		if opt.Variant == boardstate.Chess960 {
			if err := s.SetOptions(ctx, map[string]any{"UCI_Chess960": true}); err != nil {
				return nil, fmt.Errorf("pool: worker %v: set UCI_Chess960 %v: %w", id, spec.Label, err)
			}
		}
		if err := s.Ready(ctx); err != nil {
			return nil, fmt.Errorf("pool: worker %v: ready %v: %w", id, spec.Label, err)
		}
		engines[i] = s
	}

	return &Worker{
		AsyncCloser: iox.NewAsyncCloser(),
		id:          id,
		engines:     engines,
		opt:         opt,
	}, nil
}

// Close terminates both engine subprocesses. Idempotent.
func (w *Worker) Close() {
	if w.IsClosed() {
		return
	}
	w.AsyncCloser.Close()
	for _, e := range w.engines {
		e.Close()
	}
}

// run drains jobs until the job channel closes (every job has been pulled
// by some worker) or the context is cancelled, pushing a Result for every
// real job it completes.
func (w *Worker) run(ctx context.Context, jobs <-chan Job, results chan<- Result) {
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			logw.Infof(ctx, "Worker %v interrupted", w.id)
			return

		case job, ok := <-jobs:
			if !ok {
				logw.Infof(ctx, "Worker %v drained", w.id)
				return
			}

			g, err := match.Play(ctx, w.engines, match.Options{
				StartFEN:     job.StartFEN,
				WhiteIdx:     job.WhiteIdx,
				TimeControls: w.opt.TimeControls,
				Variant:      w.opt.Variant,
				Prober:       w.opt.Prober,
				Draw:         w.opt.Draw,
				Resign:       w.opt.Resign,
				Round:        job.Round,
				WantPGN:      w.opt.WantPGN,
				White:        w.opt.Engines[job.WhiteIdx].Label,
				Black:        w.opt.Engines[job.WhiteIdx^1].Label,
			})

			select {
			case results <- Result{Job: job, Game: g, Err: err}:
			case <-ctx.Done():
				return
			}

			if err != nil {
				logw.Errorf(ctx, "Worker %v: round %v failed: %v", w.id, job.Round, err)
				return
			}
		}
	}
}

// Run plays every job in jobs across opt.Concurrency workers and returns
// the final per-game scores (from engine 0's perspective). It prints each
// game's display line, the running confidence interval every
// opt.RatingInterval results, and appends PGN text when configured.
//
// On ctx cancellation (host interrupt) Run stops dispatching new results,
// prints the summary so far, and returns: no in-flight game is resumed.
func Run(ctx context.Context, jobs []Job, opt Options) ([]float64, error) {
	jobCh := make(chan Job, len(jobs))
	resultCh := make(chan Result, opt.Concurrency)

	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	workers := make([]*Worker, 0, opt.Concurrency)
	for i := 0; i < opt.Concurrency; i++ {
		w, err := newWorker(ctx, i, opt)
		if err != nil {
			for _, started := range workers {
				started.Close()
			}
			return nil, err
		}
		workers = append(workers, w)
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.run(ctx, jobCh, resultCh)
		}(w)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var pgnFile *os.File
	if opt.WantPGN && opt.PGNPath != "" {
		f, err := os.OpenFile(opt.PGNPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logw.Warningf(ctx, "Pool: could not open PGN output %v: %v", opt.PGNPath, err)
		} else {
			pgnFile = f
			defer f.Close()
		}
	}

	var scores []float64
	for i := 0; i < len(jobs); i++ {
		r, ok := <-resultCh
		if !ok {
			break
		}
		if r.Err != nil {
			continue
		}

		scores = append(scores, r.Game.ScoreE0)
		fmt.Printf("Game %v: %v (%v), engine-0 score=%v\n", r.Job.Round, r.Game.PGNResult, r.Game.Reason, r.Game.ScoreE0)

		if pgnFile != nil && r.Game.PGN != "" {
			if _, err := fmt.Fprintf(pgnFile, "%v\n", r.Game.PGN); err != nil {
				logw.Warningf(ctx, "Pool: PGN write failed: %v", err)
			}
		}

		if opt.RatingInterval > 0 && len(scores)%opt.RatingInterval == 0 {
			m, h := Confidence(scores)
			fmt.Printf("score of %v vs. %v = %.2f%% +/- %.2f%%\n",
				opt.Engines[0].Label, opt.Engines[1].Label, 100*m, 100*h)
		}
	}

	if len(scores) > 0 {
		m, h := Confidence(scores)
		fmt.Printf("score of %v vs. %v = %.2f%% +/- %.2f%% (final, %v games)\n",
			opt.Engines[0].Label, opt.Engines[1].Label, 100*m, 100*h, len(scores))
	}

	return scores, nil
}

// Confidence computes the sample mean and the 95% margin (1.96 * sqrt(v/n))
// of a sequence of engine-0-perspective scores. Returns (mean, 0) for
// fewer than two samples, since sample variance is undefined for n < 2.
func Confidence(scores []float64) (mean, margin float64) {
	n := len(scores)
	if n == 0 {
		return 0, 0
	}

	m := meanOf(scores)
	if n < 2 {
		return m, 0
	}
	v := sampleVarianceOf(scores, m)
	return m, 1.96 * math.Sqrt(v/float64(n))
}

func meanOf[T constraints.Float](xs []T) T {
	var sum T
	for _, x := range xs {
		sum += x
	}
	return sum / T(len(xs))
}

func sampleVarianceOf[T constraints.Float](xs []T, mean T) T {
	var sq T
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return sq / T(len(xs)-1)
}
