package board

// Zobrist keys. They are generated from a fixed seed so hashes are stable
// across runs, which the persistent analysis cache depends on.
var (
	zobristPiece     [NoPiece][64]uint64
	zobristEnPassant [8]uint64
	zobristCastling  [16]uint64
	zobristBlack     uint64
)

// xorshift64* generator.
type keyGen uint64

func (g *keyGen) next() uint64 {
	x := uint64(*g)
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	*g = keyGen(x)
	return x * 0x2545F4914F6CDD1D
}

func initZobrist() {
	g := keyGen(0x98F107A2BEEF1234)
	for p := WhitePawn; p < NoPiece; p++ {
		for sq := A1; sq <= H8; sq++ {
			zobristPiece[p][sq] = g.next()
		}
	}
	for f := range zobristEnPassant {
		zobristEnPassant[f] = g.next()
	}
	for cr := range zobristCastling {
		zobristCastling[cr] = g.next()
	}
	zobristBlack = g.next()
}

// ComputeHash recomputes the Zobrist hash from scratch. The incremental hash
// kept by MakeMove must always equal this value.
func (p *Position) ComputeHash() uint64 {
	var h uint64
	for sq := A1; sq <= H8; sq++ {
		if pc := p.board[sq]; pc != NoPiece {
			h ^= zobristPiece[pc][sq]
		}
	}
	if p.EnPassant != NoSquare {
		h ^= zobristEnPassant[p.EnPassant.File()]
	}
	h ^= zobristCastling[p.Castling]
	if p.SideToMove == Black {
		h ^= zobristBlack
	}
	return h
}
