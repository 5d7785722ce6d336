// Package match implements the per-game play loop: clock accounting, the
// early-termination triggers (lost on time, resign, tablebase and draw
// adjudication), and their precedence against the chess rules themselves.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"

	"github.com/sparkchess/clash/pkg/boardstate"
	"github.com/sparkchess/clash/pkg/clock"
	"github.com/sparkchess/clash/pkg/config"
	"github.com/sparkchess/clash/pkg/pgnio"
	"github.com/sparkchess/clash/pkg/session"
	"github.com/sparkchess/clash/pkg/tablebase"
)

// Reason names why a game ended.
type Reason string

const (
	ReasonChessRules       Reason = "chess-rules"
	ReasonLostOnTime       Reason = "lost-on-time"
	ReasonResign           Reason = "resign"
	ReasonTBAdjudication   Reason = "tb-adjudication"
	ReasonDrawAdjudication Reason = "draw-adjudication"
)

// Result is a completed game's outcome.
type Result struct {
	PGNResult string // "1-0", "0-1", "1/2-1/2"
	Reason    Reason
	ScoreE0   float64 // engine-0-perspective score in {0, 0.5, 1}
	PGN       string  // optional; empty unless requested
}

// Options parameterize one game: the starting position, which engine plays
// which color, both sides' time controls, and the adjudication thresholds.
type Options struct {
	StartFEN     string
	WhiteIdx     int // which of engines[0], engines[1] plays white
	TimeControls [2]clock.TimeControl
	Variant      boardstate.Variant
	Prober       tablebase.Prober // nil is not valid; pass tablebase.NoopProber{}
	Draw         config.Draw
	Resign       config.Resign
	Round        int
	WantPGN      bool
	White, Black string // display names, for PGN headers
	Date         string // ISO date, for PGN headers
}

// Play drives engines[0] and engines[1] through one game to completion.
func Play(ctx context.Context, engines [2]*session.Session, opt Options) (Result, error) {
	board, err := boardstate.NewBoard(opt.StartFEN, opt.Variant, boardstate.Headers{
		White: opt.White,
		Black: opt.Black,
		Round: opt.Round,
		Date:  opt.Date,
	})
	if err != nil {
		return Result{}, err
	}

	turnIdx := opt.WhiteIdx
	if !board.Turn() {
		turnIdx ^= 1
	}

	clocks := [2]*clock.Clock{
		clock.New(opt.TimeControls[0]),
		clock.New(opt.TimeControls[1]),
	}

	for _, e := range engines {
		if err := e.NewGame(ctx); err != nil {
			return Result{}, err
		}
	}

	pos := newPosBuffer(opt.StartFEN)

	var (
		lostOnTime      = -1
		resignCounter   int
		drawCounter     int
		wdl             lang.Optional[tablebase.WDL]
		lastScore       lang.Optional[int]
		breakMoverWhite bool // color to move at the instant of the break, before any flip
	)

game:
	for !board.Over() {
		mover := engines[turnIdx]
		tc := opt.TimeControls[turnIdx]

		if err := mover.Position(ctx, pos.String()); err != nil {
			return Result{}, err
		}
		if err := mover.Ready(ctx); err != nil {
			return Result{}, err
		}

		if board.HalfMoveClock() == 0 {
			if v, ok := opt.Prober.Probe(ctx, board.FEN()); ok {
				wdl = lang.Some(v)
				breakMoverWhite = board.Turn()
				break game
			}
		}

		args := buildGoArgs(tc, opt.TimeControls, clocks, turnIdx, board.Turn())

		start := time.Now()
		res, err := mover.Go(ctx, args)
		elapsed := time.Since(start)
		if err != nil {
			return Result{}, err
		}

		if err := clocks[turnIdx].Consume(elapsed); err != nil {
			lostOnTime = turnIdx
			break game
		}

		if score, ok := res.Score.V(); ok {
			mateScore := isMateScore(score, opt.Resign.Score)
			if mateScore {
				resignCounter = 0
				drawCounter = 0
			} else {
				resignCounter, drawCounter = adjudicateScore(score, opt.Resign, opt.Draw, resignCounter, drawCounter)
				if resignCounter >= 2*opt.Resign.MoveCount {
					lastScore = lang.Some(score)
					breakMoverWhite = board.Turn()
					break game
				}
				if drawCounter >= 2*opt.Draw.MoveCount && board.FullMoves() >= opt.Draw.MoveNumber {
					break game
				}
			}
		} else {
			resignCounter, drawCounter = 0, 0
		}

		pos = pos.push(res.BestMove)
		if err := board.PushUCIMove(res.BestMove); err != nil {
			return Result{}, fmt.Errorf("match: engine %v: %w", mover.Label, err)
		}
		turnIdx ^= 1
	}

	result, err := resolve(board, lostOnTime, resignCounter, opt.Resign, wdl, lastScore, breakMoverWhite, opt)
	if err != nil {
		return Result{}, err
	}
	logGameEnd(ctx, opt, result)
	return result, nil
}

// buildGoArgs assembles the "go" arguments for the engine about to move:
// depth/nodes/movetime come from that engine's own time control, while
// wtime/btime/winc/binc are keyed by color rather than by engine index, so
// the other clock/time-control is looked up via the opposite slot.
func buildGoArgs(tc clock.TimeControl, tcs [2]clock.TimeControl, clocks [2]*clock.Clock, turnIdx int, whiteToMove bool) session.GoArgs {
	args := session.GoArgs{
		Depth:     tc.Depth,
		Nodes:     tc.Nodes,
		MoveTime:  tc.MoveTime,
		MovesToGo: clocks[turnIdx].MovesToGo(),
	}

	whiteIdx, blackIdx := turnIdx, turnIdx^1
	if !whiteToMove {
		whiteIdx, blackIdx = turnIdx^1, turnIdx
	}

	args.WTime = clocks[whiteIdx].Remaining()
	args.BTime = clocks[blackIdx].Remaining()
	args.WInc = tcs[whiteIdx].Inc
	args.BInc = tcs[blackIdx].Inc

	return args
}

// isMateScore reports whether score equals the configured resign magnitude
// in sign and size, i.e. it came from a "mate" line rather than "cp". Mate
// scores reset both adjudication counters: adjudicating over a forced mate
// is pointless.
func isMateScore(score, resignMagnitude int) bool {
	return score == resignMagnitude || score == -resignMagnitude
}

func adjudicateScore(score int, resign config.Resign, draw config.Draw, resignCounter, drawCounter int) (int, int) {
	abs := score
	if abs < 0 {
		abs = -abs
	}

	if abs >= resign.Score {
		resignCounter++
	} else {
		resignCounter = 0
	}

	if abs <= draw.Score {
		drawCounter++
	} else {
		drawCounter = 0
	}

	return resignCounter, drawCounter
}

func resolve(board *boardstate.Board, lostOnTime, resignCounter int, resign config.Resign, wdl lang.Optional[tablebase.WDL], lastScore lang.Optional[int], moverWhite bool, opt Options) (Result, error) {
	var pgnResult string
	var reason Reason

	wdlValue, wdlOK := wdl.V()

	switch {
	case board.Over():
		pgnResult = board.Result()
		reason = ReasonChessRules

	case lostOnTime >= 0:
		if lostOnTime == opt.WhiteIdx {
			pgnResult = "0-1"
		} else {
			pgnResult = "1-0"
		}
		reason = ReasonLostOnTime

	case resignCounter >= 2*resign.MoveCount:
		// score is the last value parsed from the mover that just crossed the
		// threshold, from that mover's own point of view, same convention as
		// the tablebase WDL case below: positive means the mover who reported
		// it is winning.
		score, _ := lastScore.V()
		moverWon := score > 0
		if moverWon == moverWhite {
			pgnResult = "1-0"
		} else {
			pgnResult = "0-1"
		}
		reason = ReasonResign

	case wdlOK:
		switch wdlValue {
		case tablebase.Loss:
			if moverWhite {
				pgnResult = "0-1"
			} else {
				pgnResult = "1-0"
			}
		case tablebase.Win:
			if moverWhite {
				pgnResult = "1-0"
			} else {
				pgnResult = "0-1"
			}
		default:
			pgnResult = "1/2-1/2"
		}
		reason = ReasonTBAdjudication

	default:
		pgnResult = "1/2-1/2"
		reason = ReasonDrawAdjudication
	}

	scoreWhite := resultToWhiteScore(pgnResult)
	scoreE0 := scoreWhite
	if opt.WhiteIdx != 0 {
		scoreE0 = 1 - scoreWhite
	}

	var pgn string
	if opt.WantPGN {
		pgn = pgnio.Build(board, pgnResult, string(reason))
	}

	return Result{PGNResult: pgnResult, Reason: reason, ScoreE0: scoreE0, PGN: pgn}, nil
}

func resultToWhiteScore(pgnResult string) float64 {
	switch pgnResult {
	case "1-0":
		return 1.0
	case "0-1":
		return 0.0
	default:
		return 0.5
	}
}

func logGameEnd(ctx context.Context, opt Options, res Result) {
	logw.Infof(ctx, "Game round=%v result=%v reason=%v score-e0=%v", opt.Round, res.PGNResult, res.Reason, res.ScoreE0)
}
