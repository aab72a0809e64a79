package engine

import (
	"math/bits"

	"github.com/hailam/cactus/internal/board"
)

// Bound says how a stored score relates to the true value of the node.
type Bound uint8

const (
	BoundNone  Bound = iota
	BoundExact       // score is exact
	BoundLower       // failed high, true score >= score
	BoundUpper       // failed low, true score <= score
)

// TTEntry is one slot of the transposition table.
type TTEntry struct {
	Key   uint64
	Move  board.Move
	Score int16
	Depth int8
	Bound Bound
	Gen   uint8
}

const ttEntrySize = 24

// TranspositionTable caches search results by position hash.
//
// It has a single writer: the one search running on the owning Engine.
// It is never shared between engines, so it carries no locking.
type TranspositionTable struct {
	entries []TTEntry
	mask    uint64
	gen     uint8
}

// NewTranspositionTable allocates a table of at most sizeMB mebibytes,
// rounded down to a power of two entries.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB < 1 {
		sizeMB = 1
	}
	n := uint64(sizeMB) << 20 / ttEntrySize
	n = 1 << (63 - bits.LeadingZeros64(n))
	return &TranspositionTable{entries: make([]TTEntry, n), mask: n - 1}
}

func (tt *TranspositionTable) Len() int { return len(tt.entries) }

// Probe returns the entry stored for key, if any.
func (tt *TranspositionTable) Probe(key uint64) (TTEntry, bool) {
	e := tt.entries[key&tt.mask]
	if e.Bound == BoundNone || e.Key != key {
		return TTEntry{}, false
	}
	return e, true
}

// Store writes a result. An occupied slot holding a different position is
// only replaced when the new result is at least as deep, or when the old one
// was written during an earlier search.
func (tt *TranspositionTable) Store(key uint64, depth, score int, bound Bound, m board.Move) {
	e := &tt.entries[key&tt.mask]
	if e.Bound != BoundNone && e.Key != key && depth < int(e.Depth) && e.Gen == tt.gen {
		return
	}
	if e.Key == key && m == board.NoMove {
		// Keep the move we already know for this position.
		m = e.Move
	}
	*e = TTEntry{
		Key:   key,
		Move:  m,
		Score: int16(score),
		Depth: int8(depth),
		Bound: bound,
		Gen:   tt.gen,
	}
}

// NewSearch ages every stored entry by one generation.
func (tt *TranspositionTable) NewSearch() {
	tt.gen++
}

// Clear wipes the table. Used on ucinewgame.
func (tt *TranspositionTable) Clear() {
	clear(tt.entries)
	tt.gen = 0
}

// HashFull estimates the permille of slots written in the current generation.
func (tt *TranspositionTable) HashFull() int {
	sample := min(1000, len(tt.entries))
	used := 0
	for i := 0; i < sample; i++ {
		if e := tt.entries[i]; e.Bound != BoundNone && e.Gen == tt.gen {
			used++
		}
	}
	return used * 1000 / sample
}

// scoreToTT converts a mate score relative to the root into one relative to
// the current node, so it stays valid when reached by another path.
func scoreToTT(score, ply int) int {
	switch {
	case score >= MateBound:
		return score + ply
	case score <= -MateBound:
		return score - ply
	}
	return score
}

func scoreFromTT(score, ply int) int {
	switch {
	case score >= MateBound:
		return score - ply
	case score <= -MateBound:
		return score + ply
	}
	return score
}
