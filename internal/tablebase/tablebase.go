// Package tablebase looks up endgame results so that matches can be
// adjudicated once few enough pieces remain.
package tablebase

import (
	"context"

	"github.com/hailam/cactus/internal/board"
)

// WDL is a result from the side to move's point of view.
type WDL int

const (
	Loss        WDL = -2
	BlessedLoss WDL = -1 // lost, but saved by the fifty-move rule
	Draw        WDL = 0
	CursedWin   WDL = 1 // won, but spoiled by the fifty-move rule
	Win         WDL = 2
)

func (w WDL) String() string {
	switch w {
	case Loss:
		return "loss"
	case BlessedLoss:
		return "blessed-loss"
	case CursedWin:
		return "cursed-win"
	case Win:
		return "win"
	}
	return "draw"
}

// Decisive reports whether the result holds under the fifty-move rule.
func (w WDL) Decisive() bool {
	return w == Win || w == Loss
}

// Result of a probe.
type Result struct {
	WDL WDL
	DTZ int
	// Best is the tablebase's preferred move in UCI notation, if known.
	Best string
}

// Prober looks positions up. Probe reports found=false for positions
// outside the tablebase.
type Prober interface {
	Probe(ctx context.Context, pos *board.Position) (r Result, found bool, err error)
	MaxPieces() int
}

// CountPieces returns the number of pieces on the board, kings included.
func CountPieces(pos *board.Position) int {
	return pos.All.Count()
}

// Within reports whether p can answer for pos at all.
func Within(p Prober, pos *board.Position) bool {
	return p != nil && CountPieces(pos) <= p.MaxPieces() && pos.Castling == 0
}
