package board

type genKind uint8

const (
	genAll genKind = iota
	// genNoisy limits generation to captures and promotions, for quiescence.
	genNoisy
)

var promotionOrder = [4]PieceType{Queen, Rook, Bishop, Knight}

// GenerateLegalMoves returns every legal move for the side to move.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := &MoveList{}
	p.generate(ml, genAll)
	p.filterLegal(ml)
	return ml
}

// GenerateLegalInto fills ml with the legal moves, reusing its storage.
func (p *Position) GenerateLegalInto(ml *MoveList) {
	ml.Count = 0
	p.generate(ml, genAll)
	p.filterLegal(ml)
}

// GenerateNoisyInto fills ml with the legal captures and promotions.
func (p *Position) GenerateNoisyInto(ml *MoveList) {
	ml.Count = 0
	p.generate(ml, genNoisy)
	p.filterLegal(ml)
}

// HasLegalMoves reports whether the side to move can move at all.
func (p *Position) HasLegalMoves() bool {
	var ml MoveList
	p.generate(&ml, genAll)
	pinned := p.pinned()
	for i := 0; i < ml.Count; i++ {
		if p.isLegal(ml.Moves[i], pinned) {
			return true
		}
	}
	return false
}

func (p *Position) filterLegal(ml *MoveList) {
	pinned := p.pinned()
	n := 0
	for i := 0; i < ml.Count; i++ {
		if m := ml.Moves[i]; p.isLegal(m, pinned) {
			ml.Moves[n] = m
			n++
		}
	}
	ml.Count = n
}

// isLegal assumes m is pseudo-legal in p.
func (p *Position) isLegal(m Move, pinned Bitboard) bool {
	us, them := p.Us(), p.Them()
	from, to := m.From(), m.To()
	ksq := p.Kings[us]

	if m.Piece() == King {
		if m.IsCastle() {
			// Transit squares were verified during generation.
			return true
		}
		return !p.attackedWith(to, them, p.All^SquareBB(from))
	}

	if m.IsEnPassant() {
		u := p.MakeMove(m)
		ok := !p.IsSquareAttacked(p.Kings[us], them)
		p.UnmakeMove(m, u)
		return ok
	}

	if p.Checkers != 0 {
		if p.Checkers.More() {
			return false
		}
		checker := p.Checkers.LSB()
		if (SquareBB(to) & (p.Checkers | betweenBB[checker][ksq])) == 0 {
			return false
		}
	}

	return pinned&SquareBB(from) == 0 || lineBB[from][ksq].Has(to)
}

func (p *Position) generate(ml *MoveList, kind genKind) {
	us, them := p.Us(), p.Them()
	occ := p.All
	enemies := p.Occupied[them]

	targets := ^p.Occupied[us]
	if kind == genNoisy {
		targets = enemies
	}

	p.genPawnMoves(ml, kind)

	for pt := Knight; pt <= King; pt++ {
		for pieces := p.Pieces[us][pt]; pieces != 0; {
			from := pieces.Pop()
			for att := AttacksFrom(pt, us, from, occ) & targets; att != 0; {
				to := att.Pop()
				ml.Add(NewMove(from, to, pt, p.board[to].Type(), NoPieceType, 0))
			}
		}
	}

	if kind == genAll && p.Checkers == 0 {
		p.genCastling(ml)
	}
}

func (p *Position) genPawnMoves(ml *MoveList, kind genKind) {
	us, them := p.Us(), p.Them()
	pawns := p.Pieces[us][Pawn]
	empty := ^p.All
	promoRank, startRank, back := Rank8, Rank3, -8
	if us == Black {
		promoRank, startRank, back = Rank1, Rank6, 8
	}

	single := pawns.Forward(us) & empty
	double := (single & startRank).Forward(us) & empty

	for b := single; b != 0; {
		to := b.Pop()
		from := Square(int(to) + back)
		if promoRank.Has(to) {
			for _, promo := range promotionOrder {
				ml.Add(NewMove(from, to, Pawn, NoPieceType, promo, 0))
			}
		} else if kind == genAll {
			ml.Add(NewMove(from, to, Pawn, NoPieceType, NoPieceType, 0))
		}
	}
	if kind == genAll {
		for b := double; b != 0; {
			to := b.Pop()
			ml.Add(NewMove(Square(int(to)+2*back), to, Pawn, NoPieceType, NoPieceType, FlagDoublePush))
		}
	}

	for b := pawns; b != 0; {
		from := b.Pop()
		for att := pawnAttacks[us][from] & p.Occupied[them]; att != 0; {
			to := att.Pop()
			captured := p.board[to].Type()
			if promoRank.Has(to) {
				for _, promo := range promotionOrder {
					ml.Add(NewMove(from, to, Pawn, captured, promo, 0))
				}
			} else {
				ml.Add(NewMove(from, to, Pawn, captured, NoPieceType, 0))
			}
		}
		if p.EnPassant != NoSquare && pawnAttacks[us][from].Has(p.EnPassant) {
			ml.Add(NewMove(from, p.EnPassant, Pawn, Pawn, NoPieceType, FlagEnPassant))
		}
	}
}

type castleSpec struct {
	right      CastlingRights
	king, rook Square
	kingTo     Square
	flag       Move
	empty      Bitboard
	safe       Bitboard
}

var castles = [2][2]castleSpec{
	White: {
		{WhiteKingside, E1, H1, G1, FlagCastleKingside, SquareBB(F1) | SquareBB(G1), SquareBB(F1) | SquareBB(G1)},
		{WhiteQueenside, E1, A1, C1, FlagCastleQueenside, SquareBB(B1) | SquareBB(C1) | SquareBB(D1), SquareBB(C1) | SquareBB(D1)},
	},
	Black: {
		{BlackKingside, E8, H8, G8, FlagCastleKingside, SquareBB(F8) | SquareBB(G8), SquareBB(F8) | SquareBB(G8)},
		{BlackQueenside, E8, A8, C8, FlagCastleQueenside, SquareBB(B8) | SquareBB(C8) | SquareBB(D8), SquareBB(C8) | SquareBB(D8)},
	},
}

func (p *Position) genCastling(ml *MoveList) {
	us, them := p.Us(), p.Them()
	for _, cs := range castles[us] {
		if p.Castling&cs.right == 0 ||
			p.board[cs.king] != NewPiece(King, us) ||
			p.board[cs.rook] != NewPiece(Rook, us) ||
			p.All&cs.empty != 0 {
			continue
		}
		safe := true
		for b := cs.safe; b != 0; {
			if p.IsSquareAttacked(b.Pop(), them) {
				safe = false
				break
			}
		}
		if safe {
			ml.Add(NewMove(cs.king, cs.kingTo, King, NoPieceType, NoPieceType, cs.flag))
		}
	}
}

// castleRookSquares returns the rook's origin and destination for a castling move.
func castleRookSquares(m Move) (from, to Square) {
	kto := m.To()
	if m&FlagCastleKingside != 0 {
		return kto + 1, kto - 1
	}
	return kto - 2, kto + 1
}

// MakeMove plays m, which must be legal, and returns what UnmakeMove needs.
func (p *Position) MakeMove(m Move) UndoInfo {
	u := UndoInfo{
		Castling:  p.Castling,
		EnPassant: p.EnPassant,
		HalfMove:  p.HalfMoveClock,
		Hash:      p.Hash,
		Checkers:  p.Checkers,
	}
	us := p.SideToMove
	from, to := m.From(), m.To()

	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
		p.EnPassant = NoSquare
	}
	p.HalfMoveClock++

	if m.IsCapture() {
		capSq := to
		if m.IsEnPassant() {
			capSq = enPassantVictim(to, us)
		}
		p.remove(capSq)
		p.HalfMoveClock = 0
	}

	if m.IsCastle() {
		p.shift(from, to)
		rf, rt := castleRookSquares(m)
		p.shift(rf, rt)
	} else {
		p.shift(from, to)
	}

	if promo := m.Promotion(); promo != NoPieceType {
		p.remove(to)
		p.put(NewPiece(promo, us), to)
	}

	if m.Piece() == Pawn {
		p.HalfMoveClock = 0
		if m.IsDoublePush() {
			p.EnPassant = Square((int(from) + int(to)) / 2)
			p.Hash ^= zobristEnPassant[p.EnPassant.File()]
		}
	}

	if cr := p.Castling & castleMask[from] & castleMask[to]; cr != p.Castling {
		p.Hash ^= zobristCastling[p.Castling] ^ zobristCastling[cr]
		p.Castling = cr
	}

	if us == Black {
		p.FullMoveNumber++
	}
	p.SideToMove = us.Other()
	p.Hash ^= zobristBlack
	p.updateCheckers()
	return u
}

// UnmakeMove exactly reverses MakeMove(m).
func (p *Position) UnmakeMove(m Move, u UndoInfo) {
	p.SideToMove = p.SideToMove.Other()
	us := p.SideToMove
	if us == Black {
		p.FullMoveNumber--
	}
	from, to := m.From(), m.To()

	switch {
	case m.IsPromotion():
		p.remove(to)
		p.put(NewPiece(Pawn, us), from)
	case m.IsCastle():
		p.shift(to, from)
		rf, rt := castleRookSquares(m)
		p.shift(rt, rf)
	default:
		p.shift(to, from)
	}

	if m.IsCapture() {
		capSq := to
		if m.IsEnPassant() {
			capSq = enPassantVictim(to, us)
		}
		p.put(NewPiece(m.Captured(), us.Other()), capSq)
	}

	p.Castling = u.Castling
	p.EnPassant = u.EnPassant
	p.HalfMoveClock = u.HalfMove
	p.Hash = u.Hash
	p.Checkers = u.Checkers
}

// enPassantVictim is the square of the pawn removed when a c pawn captures en passant onto to.
func enPassantVictim(to Square, c Color) Square {
	if c == White {
		return to - 8
	}
	return to + 8
}

// GivesCheck reports whether the legal move m checks the opponent.
func (p *Position) GivesCheck(m Move) bool {
	u := p.MakeMove(m)
	check := p.Checkers != 0
	p.UnmakeMove(m, u)
	return check
}
