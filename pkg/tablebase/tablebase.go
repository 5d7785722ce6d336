// Package tablebase defines the endgame-tablebase prober collaborator: a
// pure function from a position to a win/draw/loss verdict. This package
// only fixes the interface and the value space the rest of clash
// adjudicates on -- it does not ship a real Syzygy/Gaviota backend.
package tablebase

import "context"

// WDL is a tablebase win/draw/loss result from the side-to-move's
// perspective: -2 losing, +2 winning, 0/-1/1 drawn for adjudication
// purposes.
type WDL int

const (
	Loss        WDL = -2
	BlessedLoss WDL = -1
	Draw        WDL = 0
	CursedWin   WDL = 1
	Win         WDL = 2
)

// Prober looks up a position by FEN and reports a WDL verdict, if available.
// Invoked only at rule-50 resets (halfmove clock == 0).
type Prober interface {
	Probe(ctx context.Context, fen string) (wdl WDL, ok bool)
}

// NoopProber always reports "no result available". It is the default when
// no tablebase path is configured.
type NoopProber struct{}

func (NoopProber) Probe(_ context.Context, _ string) (WDL, bool) {
	return 0, false
}
