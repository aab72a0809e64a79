package engine

import (
	"github.com/hailam/cactus/internal/board"
)

// pawnEntry caches the pawn structure terms for one pawn configuration,
// both colors' scores already folded into White minus Black.
type pawnEntry struct {
	white, black board.Bitboard
	mg, eg       int16
	valid        bool
}

// PawnTable memoizes evalPawns. Pawn structure changes on few moves, so most
// probes during a search hit. The cached value depends only on the two pawn
// bitboards, which keeps Evaluate's result independent of the cache.
type PawnTable struct {
	entries []pawnEntry
	mask    uint64
}

const pawnEntrySize = 24

// NewPawnTable allocates a table of about sizeMB mebibytes.
func NewPawnTable(sizeMB int) *PawnTable {
	n := max(sizeMB, 1) << 20 / pawnEntrySize
	size := 1
	for size*2 <= n {
		size *= 2
	}
	return &PawnTable{entries: make([]pawnEntry, size), mask: uint64(size - 1)}
}

func pawnKey(white, black board.Bitboard) uint64 {
	k := uint64(white)*0x9E3779B97F4A7C15 ^ uint64(black)*0xC2B2AE3D27D4EB4F
	return k ^ k>>29
}

// probe returns White-relative pawn structure scores.
func (pt *PawnTable) probe(white, black board.Bitboard) (mg, eg int) {
	if pt == nil {
		return pawnStructure(white, black)
	}
	e := &pt.entries[pawnKey(white, black)&pt.mask]
	if e.valid && e.white == white && e.black == black {
		return int(e.mg), int(e.eg)
	}
	mg, eg = pawnStructure(white, black)
	*e = pawnEntry{white: white, black: black, mg: int16(mg), eg: int16(eg), valid: true}
	return mg, eg
}

func (pt *PawnTable) Clear() {
	clear(pt.entries)
}

func pawnStructure(white, black board.Bitboard) (mg, eg int) {
	wmg, weg := evalPawns(board.White, white, black)
	bmg, beg := evalPawns(board.Black, black, white)
	return wmg - bmg, weg - beg
}
