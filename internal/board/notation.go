package board

import "strings"

// ParseMove resolves a long algebraic move against the legal moves of p.
// Anything that is not legal here yields an *IllegalMoveError.
func (p *Position) ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	illegal := &IllegalMoveError{Move: s, FEN: p.FEN()}
	if len(s) != 4 && len(s) != 5 {
		return NoMove, illegal
	}
	from, err := ParseSquare(s[:2])
	if err != nil {
		return NoMove, illegal
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, illegal
	}
	promo := NoPieceType
	if len(s) == 5 {
		promo = PieceTypeFromChar(s[4])
		if promo < Knight || promo > Queen {
			return NoMove, illegal
		}
	}

	legal := p.GenerateLegalMoves()
	for _, m := range legal.Slice() {
		if m.From() == from && m.To() == to && m.Promotion() == promo {
			return m, nil
		}
	}
	return NoMove, illegal
}

// ApplyUCI parses and plays each move in turn. On error the position is left
// as it was after the last good move and the error names the offending one.
func (p *Position) ApplyUCI(moves ...string) error {
	for _, s := range moves {
		m, err := p.ParseMove(s)
		if err != nil {
			return err
		}
		p.MakeMove(m)
	}
	return nil
}
