package board

import "strings"

const sanLetters = "PNBRQK"

// SAN renders the legal move m in standard algebraic notation, including
// the check and mate suffixes.
func (p *Position) SAN(m Move) string {
	if m == NoMove {
		return "--"
	}
	var sb strings.Builder
	switch {
	case m&FlagCastleKingside != 0:
		sb.WriteString("O-O")
	case m&FlagCastleQueenside != 0:
		sb.WriteString("O-O-O")
	default:
		pt := m.Piece()
		if pt != Pawn {
			sb.WriteByte(sanLetters[pt])
			sb.WriteString(p.disambiguate(m))
		}
		if m.IsCapture() {
			if pt == Pawn {
				sb.WriteByte(byte('a' + m.From().File()))
			}
			sb.WriteByte('x')
		}
		sb.WriteString(m.To().String())
		if promo := m.Promotion(); promo != NoPieceType {
			sb.WriteByte('=')
			sb.WriteByte(sanLetters[promo])
		}
	}

	u := p.MakeMove(m)
	if p.InCheck() {
		if p.HasLegalMoves() {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('#')
		}
	}
	p.UnmakeMove(m, u)
	return sb.String()
}

func (p *Position) disambiguate(m Move) string {
	from := m.From()
	var others Bitboard
	for _, o := range p.GenerateLegalMoves().Slice() {
		if o.To() == m.To() && o.Piece() == m.Piece() && o.From() != from {
			others |= SquareBB(o.From())
		}
	}
	switch {
	case others == 0:
		return ""
	case others&FileMask[from.File()] == 0:
		return string(rune('a' + from.File()))
	case others&RankMask[from.Rank()] == 0:
		return string(rune('1' + from.Rank()))
	}
	return from.String()
}

// SANLine converts a sequence of moves starting at p. The position is not modified.
func (p *Position) SANLine(moves []Move) []string {
	q := p.Copy()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, q.SAN(m))
		q.MakeMove(m)
	}
	return out
}

// ParseSAN finds the legal move written as s in standard algebraic notation.
func (p *Position) ParseSAN(s string) (Move, error) {
	orig := s
	s = strings.TrimRight(strings.TrimSpace(s), "+#!?")
	illegal := &IllegalMoveError{Move: orig, FEN: p.FEN()}
	legal := p.GenerateLegalMoves().Slice()

	switch s {
	case "O-O", "0-0":
		return findMove(legal, func(m Move) bool { return m&FlagCastleKingside != 0 }, illegal)
	case "O-O-O", "0-0-0":
		return findMove(legal, func(m Move) bool { return m&FlagCastleQueenside != 0 }, illegal)
	}

	promo := NoPieceType
	if i := strings.IndexByte(s, '='); i >= 0 && i+1 < len(s) {
		promo = PieceTypeFromChar(s[i+1])
		s = s[:i]
	}
	capture := strings.Contains(s, "x")
	s = strings.ReplaceAll(s, "x", "")

	pt := Pawn
	if s != "" && strings.IndexByte(sanLetters[1:], s[0]) >= 0 {
		pt = PieceTypeFromChar(s[0])
		s = s[1:]
	}
	if len(s) < 2 {
		return NoMove, illegal
	}
	to, err := ParseSquare(s[len(s)-2:])
	if err != nil {
		return NoMove, illegal
	}
	file, rank := -1, -1
	for _, ch := range s[:len(s)-2] {
		switch {
		case ch >= 'a' && ch <= 'h':
			file = int(ch - 'a')
		case ch >= '1' && ch <= '8':
			rank = int(ch - '1')
		}
	}

	return findMove(legal, func(m Move) bool {
		return m.To() == to && m.Piece() == pt && !m.IsCastle() &&
			m.Promotion() == promo &&
			(!capture || m.IsCapture()) &&
			(file < 0 || m.From().File() == file) &&
			(rank < 0 || m.From().Rank() == rank)
	}, illegal)
}

func findMove(moves []Move, match func(Move) bool, notFound error) (Move, error) {
	for _, m := range moves {
		if match(m) {
			return m, nil
		}
	}
	return NoMove, notFound
}
