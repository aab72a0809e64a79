package board

// Precomputed attack tables. They are filled once by init and only read afterwards.
var (
	knightAttacks [64]Bitboard
	kingAttacks   [64]Bitboard
	pawnAttacks   [2][64]Bitboard

	rays      [8][64]Bitboard
	betweenBB [64][64]Bitboard
	lineBB    [64][64]Bitboard
)

// Ray directions. The first four increase the square index, so the nearest
// blocker on them is the lowest set bit; on the last four it is the highest.
const (
	dirN = iota
	dirE
	dirNE
	dirNW
	dirS
	dirW
	dirSW
	dirSE
)

var dirStep = [8][2]int{
	dirN:  {0, 1},
	dirE:  {1, 0},
	dirNE: {1, 1},
	dirNW: {-1, 1},
	dirS:  {0, -1},
	dirW:  {-1, 0},
	dirSW: {-1, -1},
	dirSE: {1, -1},
}

func init() {
	initLeapers()
	initRays()
	initZobrist()
	initCastleMask()
}

func onBoard(f, r int) bool {
	return f >= 0 && f < 8 && r >= 0 && r < 8
}

func initLeapers() {
	knightSteps := [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	for sq := A1; sq <= H8; sq++ {
		f, r := sq.File(), sq.Rank()
		for _, d := range knightSteps {
			if onBoard(f+d[0], r+d[1]) {
				knightAttacks[sq] |= SquareBB(NewSquare(f+d[0], r+d[1]))
			}
		}
		for _, d := range dirStep {
			if onBoard(f+d[0], r+d[1]) {
				kingAttacks[sq] |= SquareBB(NewSquare(f+d[0], r+d[1]))
			}
		}
		bb := SquareBB(sq)
		pawnAttacks[White][sq] = bb.North().East() | bb.North().West()
		pawnAttacks[Black][sq] = bb.South().East() | bb.South().West()
	}
}

func initRays() {
	for dir, d := range dirStep {
		for sq := A1; sq <= H8; sq++ {
			for f, r := sq.File()+d[0], sq.Rank()+d[1]; onBoard(f, r); f, r = f+d[0], r+d[1] {
				rays[dir][sq] |= SquareBB(NewSquare(f, r))
			}
		}
	}
	for a := A1; a <= H8; a++ {
		for dir := 0; dir < 8; dir++ {
			opp := (dir + 4) % 8
			for b := rays[dir][a]; b != 0; {
				to := b.Pop()
				betweenBB[a][to] = rays[dir][a] & rays[opp][to]
				lineBB[a][to] = rays[dir][a] | rays[opp][a] | SquareBB(a)
			}
		}
	}
}

func slide(dir int, sq Square, occ Bitboard) Bitboard {
	attacks := rays[dir][sq]
	if blockers := attacks & occ; blockers != 0 {
		var first Square
		if dir < dirS {
			first = blockers.LSB()
		} else {
			first = blockers.MSB()
		}
		attacks ^= rays[dir][first]
	}
	return attacks
}

func BishopAttacks(sq Square, occ Bitboard) Bitboard {
	return slide(dirNE, sq, occ) | slide(dirNW, sq, occ) | slide(dirSE, sq, occ) | slide(dirSW, sq, occ)
}

func RookAttacks(sq Square, occ Bitboard) Bitboard {
	return slide(dirN, sq, occ) | slide(dirE, sq, occ) | slide(dirS, sq, occ) | slide(dirW, sq, occ)
}

func QueenAttacks(sq Square, occ Bitboard) Bitboard {
	return BishopAttacks(sq, occ) | RookAttacks(sq, occ)
}

func KnightAttacks(sq Square) Bitboard { return knightAttacks[sq] }

func KingAttacks(sq Square) Bitboard { return kingAttacks[sq] }

// PawnAttacks returns the squares a c pawn on sq attacks.
func PawnAttacks(c Color, sq Square) Bitboard { return pawnAttacks[c][sq] }

// Between returns the squares strictly between a and b, or Empty if they do not share a line.
func Between(a, b Square) Bitboard { return betweenBB[a][b] }

// Line returns the full board line through a and b, or Empty if they do not share one.
func Line(a, b Square) Bitboard { return lineBB[a][b] }

// AttacksFrom returns the squares attacked by a piece of type pt and color c on sq.
func AttacksFrom(pt PieceType, c Color, sq Square, occ Bitboard) Bitboard {
	switch pt {
	case Pawn:
		return pawnAttacks[c][sq]
	case Knight:
		return knightAttacks[sq]
	case Bishop:
		return BishopAttacks(sq, occ)
	case Rook:
		return RookAttacks(sq, occ)
	case Queen:
		return QueenAttacks(sq, occ)
	case King:
		return kingAttacks[sq]
	}
	return Empty
}

// AttackersTo returns the pieces of both colors attacking sq under occupancy occ.
func (p *Position) AttackersTo(sq Square, occ Bitboard) Bitboard {
	bishops := p.Pieces[White][Bishop] | p.Pieces[Black][Bishop] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	rooks := p.Pieces[White][Rook] | p.Pieces[Black][Rook] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	return pawnAttacks[Black][sq]&p.Pieces[White][Pawn] |
		pawnAttacks[White][sq]&p.Pieces[Black][Pawn] |
		knightAttacks[sq]&(p.Pieces[White][Knight]|p.Pieces[Black][Knight]) |
		kingAttacks[sq]&(p.Pieces[White][King]|p.Pieces[Black][King]) |
		BishopAttacks(sq, occ)&bishops |
		RookAttacks(sq, occ)&rooks
}

// IsSquareAttacked reports whether any piece of color by attacks sq.
func (p *Position) IsSquareAttacked(sq Square, by Color) bool {
	return p.attackedWith(sq, by, p.All)
}

func (p *Position) attackedWith(sq Square, by Color, occ Bitboard) bool {
	them := &p.Pieces[by]
	if pawnAttacks[by.Other()][sq]&them[Pawn] != 0 ||
		knightAttacks[sq]&them[Knight] != 0 ||
		kingAttacks[sq]&them[King] != 0 {
		return true
	}
	if BishopAttacks(sq, occ)&(them[Bishop]|them[Queen]) != 0 {
		return true
	}
	return RookAttacks(sq, occ)&(them[Rook]|them[Queen]) != 0
}

func (p *Position) updateCheckers() {
	us := p.SideToMove
	p.Checkers = p.AttackersTo(p.Kings[us], p.All) & p.Occupied[us.Other()]
}

// pinned returns the side-to-move pieces that are pinned to their king.
func (p *Position) pinned() Bitboard {
	us, them := p.Us(), p.Them()
	ksq := p.Kings[us]
	snipers := RookAttacks(ksq, 0)&(p.Pieces[them][Rook]|p.Pieces[them][Queen]) |
		BishopAttacks(ksq, 0)&(p.Pieces[them][Bishop]|p.Pieces[them][Queen])
	var pinned Bitboard
	for snipers != 0 {
		blockers := betweenBB[snipers.Pop()][ksq] & p.All
		if blockers != 0 && !blockers.More() {
			pinned |= blockers & p.Occupied[us]
		}
	}
	return pinned
}
