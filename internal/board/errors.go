package board

import "fmt"

// MalformedPositionError reports a FEN string that could not be parsed or
// describes an impossible position.
type MalformedPositionError struct {
	FEN    string
	Reason string
}

func (e *MalformedPositionError) Error() string {
	return fmt.Sprintf("board: malformed position %q: %s", e.FEN, e.Reason)
}

// IllegalMoveError reports a move that is not in the legal move list of the
// position it was played in. The position is left unchanged.
type IllegalMoveError struct {
	Move string
	FEN  string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("board: illegal move %s in %s", e.Move, e.FEN)
}
