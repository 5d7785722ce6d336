// Package pgnio builds and serializes the PGN text for a completed game.
// Serialization itself -- header formatting, movetext, stripping
// variations/comments -- is delegated to the same external rules engine
// that owns move legality, github.com/corentings/chess/v2. White, Black,
// Round, Date and FEN tag pairs are supplied when the board is constructed
// (see boardstate.Headers); this package only patches in the adjudicated
// Result, which the rules engine cannot know about on its own whenever the
// game ended by resignation, timeout, or adjudication rather than a chess
// rule.
package pgnio

import (
	"fmt"
	"strings"

	"github.com/sparkchess/clash/pkg/boardstate"
)

// Build serializes the final board state to PGN text, overwrites its Result
// tag pair with the adjudicated result, and appends a "{reason}" comment at
// the end of the movetext.
func Build(b *boardstate.Board, result string, reason string) string {
	pgn := b.Game().String()

	// The rules engine emits "*" for its own Result tag whenever Outcome()
	// is still NoOutcome, which is exactly the case for every adjudicated
	// ending. When the game ended on the rules themselves, result already
	// equals what the engine would have printed, so this replace is a
	// harmless no-op.
	pgn = strings.Replace(pgn, `[Result "*"]`, fmt.Sprintf("[Result %q]", result), 1)

	// A game built move-by-move from the engines' own search, rather than
	// parsed from an existing PGN, never carries variations or comments in
	// the first place, so the default encoder already satisfies "strip
	// variations and comments".
	return fmt.Sprintf("%v {%v}\n", pgn, reason)
}
