package board

import "testing"

var perftPositions = []struct {
	name  string
	fen   string
	nodes []uint64
}{
	{"start", StartFEN, []uint64{20, 400, 8902, 197281}},
	{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", []uint64{48, 2039, 97862}},
	{"position3", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -", []uint64{14, 191, 2812, 43238}},
	{"position4", "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1", []uint64{6, 264, 9467}},
	{"position5", "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8", []uint64{44, 1486, 62379}},
	{"ep-pin", "8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1", []uint64{6, 94}},
}

func TestPerft(t *testing.T) {
	for _, tc := range perftPositions {
		t.Run(tc.name, func(t *testing.T) {
			pos, err := ParseFEN(tc.fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			for i, want := range tc.nodes {
				depth := i + 1
				if testing.Short() && want > 10000 {
					continue
				}
				if got := pos.Perft(depth); got != want {
					t.Errorf("perft(%d) = %d, want %d", depth, got, want)
				}
			}
		})
	}
}

func TestDivideSumsToPerft(t *testing.T) {
	pos := MustParseFEN(perftPositions[1].fen)
	var total uint64
	for _, e := range pos.Divide(2) {
		total += e.Nodes
	}
	if total != 2039 {
		t.Errorf("divide(2) total = %d, want 2039", total)
	}
}

// walk plays every legal move to depth and checks the invariants that must
// hold at every node: the incremental hash matches a recomputation, the
// mover's king is never left attacked, and unmake restores the exact state.
func walk(t *testing.T, pos *Position, depth int) {
	t.Helper()
	if pos.Hash != pos.ComputeHash() {
		t.Fatalf("hash drift at %s", pos.FEN())
	}
	if depth == 0 {
		return
	}
	before := *pos
	for _, m := range pos.GenerateLegalMoves().Slice() {
		mover := pos.SideToMove
		u := pos.MakeMove(m)
		if pos.IsSquareAttacked(pos.Kings[mover], pos.SideToMove) {
			t.Fatalf("%s leaves the king attacked in %s", m, before.FEN())
		}
		walk(t, pos, depth-1)
		pos.UnmakeMove(m, u)
		if *pos != before {
			t.Fatalf("unmake %s did not restore %s, got %s", m, before.FEN(), pos.FEN())
		}
	}
}

func TestMakeUnmakeInvariants(t *testing.T) {
	for _, tc := range perftPositions {
		t.Run(tc.name, func(t *testing.T) {
			walk(t, MustParseFEN(tc.fen), 3)
		})
	}
}

func TestNullMoveRestores(t *testing.T) {
	pos := MustParseFEN("rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 2")
	before := *pos
	u := pos.MakeNullMove()
	if pos.SideToMove != Black || pos.EnPassant != NoSquare {
		t.Fatalf("null move did not pass the turn: %s", pos.FEN())
	}
	if pos.Hash != pos.ComputeHash() {
		t.Errorf("null move hash drift")
	}
	pos.UnmakeNullMove(u)
	if *pos != before {
		t.Errorf("UnmakeNullMove did not restore the position")
	}
}
