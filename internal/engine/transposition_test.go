package engine

import (
	"testing"

	"github.com/hailam/cactus/internal/board"
)

func TestTranspositionTableSize(t *testing.T) {
	for _, mb := range []int{0, 1, 3, 16} {
		tt := NewTranspositionTable(mb)
		n := tt.Len()
		if n&(n-1) != 0 {
			t.Errorf("%d MB: %d entries, not a power of two", mb, n)
		}
		if n*ttEntrySize > max(mb, 1)<<20 {
			t.Errorf("%d MB: %d entries exceed the budget", mb, n)
		}
	}
}

func TestTranspositionStoreProbe(t *testing.T) {
	tt := NewTranspositionTable(1)
	m := board.NewMove(board.E2, board.E4, board.Pawn, board.NoPieceType, board.NoPieceType, board.FlagDoublePush)
	tt.Store(42, 5, 17, BoundExact, m)

	e, ok := tt.Probe(42)
	if !ok {
		t.Fatal("Probe missed a stored key")
	}
	if e.Move != m || e.Score != 17 || e.Depth != 5 || e.Bound != BoundExact {
		t.Errorf("Probe = %+v", e)
	}
	if _, ok := tt.Probe(43); ok {
		t.Error("Probe hit an unknown key")
	}

	// A result without a move keeps the old move for the same position.
	tt.Store(42, 6, 20, BoundLower, board.NoMove)
	if e, _ := tt.Probe(42); e.Move != m || e.Depth != 6 {
		t.Errorf("after moveless store: %+v", e)
	}
}

func TestTranspositionReplacement(t *testing.T) {
	tt := NewTranspositionTable(1)
	size := uint64(tt.Len())
	a, b := uint64(7), 7+size // same slot

	tt.Store(a, 8, 1, BoundExact, board.NoMove)
	tt.Store(b, 3, 2, BoundExact, board.NoMove)
	if _, ok := tt.Probe(a); !ok {
		t.Error("shallower entry replaced a deeper one of the same search")
	}

	tt.Store(b, 8, 2, BoundExact, board.NoMove)
	if _, ok := tt.Probe(b); !ok {
		t.Error("equally deep entry did not replace")
	}

	tt.NewSearch()
	tt.Store(a, 1, 3, BoundUpper, board.NoMove)
	if _, ok := tt.Probe(a); !ok {
		t.Error("entry from an older search was not replaced")
	}

	tt.Clear()
	if _, ok := tt.Probe(a); ok {
		t.Error("Clear left an entry behind")
	}
	if got := tt.HashFull(); got != 0 {
		t.Errorf("HashFull after Clear = %d, want 0", got)
	}
}

func TestMateScoresAdjustByPly(t *testing.T) {
	for _, score := range []int{0, 150, -150, MateScore - 5, -MateScore + 7} {
		for _, ply := range []int{0, 3, 10} {
			if got := scoreFromTT(scoreToTT(score, ply), ply); got != score {
				t.Errorf("round trip of %d at ply %d = %d", score, ply, got)
			}
		}
	}
	// Mate in 5 plies from the root is mate in 2 plies from a node at ply 3.
	if got := scoreToTT(MateScore-5, 3); got != MateScore-2 {
		t.Errorf("scoreToTT = %d, want %d", got, MateScore-2)
	}
}
