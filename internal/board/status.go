package board

// GameStatus classifies a position for adjudication.
type GameStatus uint8

const (
	Ongoing GameStatus = iota
	Checkmate
	Stalemate
	DrawFiftyMove
	DrawInsufficientMaterial
)

func (s GameStatus) String() string {
	switch s {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case DrawFiftyMove:
		return "fifty-move rule"
	case DrawInsufficientMaterial:
		return "insufficient material"
	}
	return "ongoing"
}

// Terminal reports whether no further moves may be played.
func (s GameStatus) Terminal() bool {
	return s != Ongoing
}

// Status reports mate and stalemate first, since they take precedence over
// the draw rules.
func (p *Position) Status() GameStatus {
	if !p.HasLegalMoves() {
		if p.InCheck() {
			return Checkmate
		}
		return Stalemate
	}
	if p.HalfMoveClock >= 100 {
		return DrawFiftyMove
	}
	if p.IsInsufficientMaterial() {
		return DrawInsufficientMaterial
	}
	return Ongoing
}

// IsInsufficientMaterial reports a dead position by material alone:
// bare kings, a single minor piece, or only bishops all on one square color.
func (p *Position) IsInsufficientMaterial() bool {
	var heavy Bitboard
	for c := White; c <= Black; c++ {
		heavy |= p.Pieces[c][Pawn] | p.Pieces[c][Rook] | p.Pieces[c][Queen]
	}
	if heavy != 0 {
		return false
	}
	knights := p.Pieces[White][Knight] | p.Pieces[Black][Knight]
	bishops := p.Pieces[White][Bishop] | p.Pieces[Black][Bishop]
	if (knights | bishops).Count() <= 1 {
		return true
	}
	return knights == 0 && (bishops&LightSquares == 0 || bishops&DarkSquares == 0)
}
