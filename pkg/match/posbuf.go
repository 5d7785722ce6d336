package match

import "fmt"

// posBuffer is the "position fen <FEN> [moves m1 m2 ...]" line, rebuilt as
// an explicit value with a has-any-moves flag instead of mutating a shared
// string or slice in place.
type posBuffer struct {
	line     string
	hasMoves bool
}

func newPosBuffer(fen string) posBuffer {
	return posBuffer{line: fmt.Sprintf("position fen %v", fen)}
}

// push appends a move to the buffer, preceding the first move with the
// literal token "moves".
func (p posBuffer) push(move string) posBuffer {
	if !p.hasMoves {
		return posBuffer{line: p.line + " moves " + move, hasMoves: true}
	}
	return posBuffer{line: p.line + " " + move, hasMoves: true}
}

func (p posBuffer) String() string {
	return p.line
}
