package engine

import (
	"github.com/hailam/cactus/internal/board"
)

// Ordering bands. A move's score falls in exactly one band; within a band
// the finer score decides.
const (
	ttMoveScore       = 10_000_000
	captureBase       = 1_000_000
	promotionBase     = 950_000
	killerScore1      = 900_000
	killerScore2      = 800_000
	historyMax        = 400_000
	underPromoPenalty = -100_000
)

// mvvLva[victim][attacker]: most valuable victim first, least valuable attacker breaks ties.
var mvvLva = [6][6]int{
	{15, 14, 13, 12, 11, 10},
	{25, 24, 23, 22, 21, 20},
	{35, 34, 33, 32, 31, 30},
	{45, 44, 43, 42, 41, 40},
	{55, 54, 53, 52, 51, 50},
	{0, 0, 0, 0, 0, 0},
}

// MoveOrderer holds the killer and history tables of one search.
type MoveOrderer struct {
	killers [MaxPly][2]board.Move
	history [2][64][64]int
}

// Clear forgets everything, as on a new game.
func (mo *MoveOrderer) Clear() {
	*mo = MoveOrderer{}
}

// Age keeps the history between searches of one game but halves it so stale
// knowledge fades. Killers are ply-relative and do not survive a search.
func (mo *MoveOrderer) Age() {
	mo.killers = [MaxPly][2]board.Move{}
	for c := range mo.history {
		for from := range mo.history[c] {
			for to := range mo.history[c][from] {
				mo.history[c][from][to] /= 2
			}
		}
	}
}

func (mo *MoveOrderer) score(c board.Color, m, ttMove board.Move, ply int) int {
	switch {
	case m == ttMove:
		return ttMoveScore
	case m.IsCapture():
		s := captureBase + mvvLva[m.Captured()][m.Piece()]*1000
		if p := m.Promotion(); p != board.NoPieceType && p != board.Queen {
			s += underPromoPenalty
		}
		return s
	case m.Promotion() == board.Queen:
		return promotionBase
	case m.IsPromotion():
		return underPromoPenalty
	case m == mo.killers[ply][0]:
		return killerScore1
	case m == mo.killers[ply][1]:
		return killerScore2
	}
	return mo.history[c][m.From()][m.To()]
}

// scoredMoves is a move list with one ordering score per move. Moves are
// selected lazily so a cutoff early in the list skips most of the sorting.
type scoredMoves struct {
	list   board.MoveList
	scores [board.MaxMoves]int
}

func (sm *scoredMoves) scoreAll(mo *MoveOrderer, c board.Color, ttMove board.Move, ply int) {
	for i := 0; i < sm.list.Count; i++ {
		sm.scores[i] = mo.score(c, sm.list.Moves[i], ttMove, ply)
	}
}

// pick moves the best remaining move into slot i and returns it.
func (sm *scoredMoves) pick(i int) board.Move {
	best := i
	for j := i + 1; j < sm.list.Count; j++ {
		if sm.scores[j] > sm.scores[best] {
			best = j
		}
	}
	if best != i {
		sm.list.Swap(i, best)
		sm.scores[i], sm.scores[best] = sm.scores[best], sm.scores[i]
	}
	return sm.list.Moves[i]
}

// UpdateKillers records a quiet move that caused a beta cutoff at ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if mo.killers[ply][0] != m {
		mo.killers[ply][1] = mo.killers[ply][0]
		mo.killers[ply][0] = m
	}
}

// UpdateHistory rewards the cutoff move and penalizes the quiet moves tried before it.
func (mo *MoveOrderer) UpdateHistory(c board.Color, best board.Move, tried []board.Move, depth int) {
	bonus := min(depth*depth, 400)
	mo.bumpHistory(c, best, bonus)
	for _, m := range tried {
		if m != best {
			mo.bumpHistory(c, m, -bonus)
		}
	}
}

// bumpHistory applies a gravity update that keeps entries within ±historyMax.
func (mo *MoveOrderer) bumpHistory(c board.Color, m board.Move, bonus int) {
	h := &mo.history[c][m.From()][m.To()]
	*h += bonus*32 - *h*abs(bonus)*32/historyMax
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
