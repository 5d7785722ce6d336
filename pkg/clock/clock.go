// Package clock implements per-engine time accounting across a game.
package clock

import (
	"fmt"
	"time"

	"github.com/seekerror/stdlib/pkg/lang"
)

// ErrTimedOut is returned by Consume when the clock's remaining time goes
// negative. It converts to a "lost on time" game result one frame up, in
// the game loop.
var ErrTimedOut = fmt.Errorf("clock: timed out")

// TimeControl is immutable per game. At least one field must restrict the
// search; that invariant is enforced by config validation, not here.
type TimeControl struct {
	Depth     lang.Optional[int]
	Nodes     lang.Optional[int]
	MoveTime  lang.Optional[time.Duration]
	Time      lang.Optional[time.Duration] // total budget
	Inc       lang.Optional[time.Duration] // per-move increment
	MovesToGo lang.Optional[int]           // repeat period
}

// Clock is one per engine per game, constructed from that engine's
// TimeControl at game start.
type Clock struct {
	tc TimeControl

	remaining lang.Optional[time.Duration]
	movesToGo lang.Optional[int]
}

// New constructs a Clock from a TimeControl, seeding remaining time and the
// moves-to-go counter from the TimeControl's configured values.
func New(tc TimeControl) *Clock {
	return &Clock{
		tc:        tc,
		remaining: tc.Time,
		movesToGo: tc.MovesToGo,
	}
}

// Remaining returns the clock's current remaining time, if the controlling
// TimeControl has a total time budget.
func (c *Clock) Remaining() lang.Optional[time.Duration] {
	return c.remaining
}

// MovesToGo returns the clock's current moves-to-go counter, if configured.
func (c *Clock) MovesToGo() lang.Optional[int] {
	return c.movesToGo
}

// Consume accounts for the wall time of the move that just ended:
//
//  1. If remaining time is set, subtract elapsed; a negative result is
//     ErrTimedOut, checked BEFORE any increment is credited.
//  2. If moves-to-go is set, decrement it; once it reaches zero or below,
//     reload it from the TimeControl's period and, if the TimeControl has a
//     base total time, credit that base time back onto remaining.
func (c *Clock) Consume(elapsed time.Duration) error {
	if remaining, ok := c.remaining.V(); ok {
		remaining -= elapsed
		if remaining < 0 {
			c.remaining = lang.Some(remaining)
			return ErrTimedOut
		}

		if inc, ok := c.tc.Inc.V(); ok && inc != 0 {
			remaining += inc
		}
		c.remaining = lang.Some(remaining)
	}

	if movesToGo, ok := c.movesToGo.V(); ok {
		movesToGo--
		if movesToGo <= 0 {
			period, _ := c.tc.MovesToGo.V()
			movesToGo = period

			if base, ok := c.tc.Time.V(); ok {
				remaining, _ := c.remaining.V()
				c.remaining = lang.Some(remaining + base)
			}
		}
		c.movesToGo = lang.Some(movesToGo)
	}

	return nil
}
