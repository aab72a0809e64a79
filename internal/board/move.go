package board

// Move packs everything needed to make and unmake a move into 25 bits:
//
//	bits  0-5   from square
//	bits  6-11  to square
//	bits 12-14  moved piece type
//	bits 15-17  captured piece type + 1 (0 when nothing is captured)
//	bits 18-20  promotion piece type + 1 (0 when not a promotion)
//	bits 21-24  flags
type Move uint32

const (
	FlagEnPassant Move = 1 << (21 + iota)
	FlagCastleKingside
	FlagCastleQueenside
	FlagDoublePush

	flagCastle = FlagCastleKingside | FlagCastleQueenside
)

// NoMove is the zero move. It is also what "0000" parses to.
const NoMove Move = 0

// NewMove builds a move. Pass NoPieceType for captured and promo when they do not apply.
func NewMove(from, to Square, moved, captured, promo PieceType, flags Move) Move {
	m := Move(from) | Move(to)<<6 | Move(moved)<<12 | flags
	if captured < NoPieceType {
		m |= Move(captured+1) << 15
	}
	if promo < NoPieceType {
		m |= Move(promo+1) << 18
	}
	return m
}

func (m Move) From() Square { return Square(m & 0x3F) }
func (m Move) To() Square { return Square(m >> 6 & 0x3F) }
func (m Move) Piece() PieceType { return PieceType(m >> 12 & 7) }
func (m Move) IsEnPassant() bool { return m&FlagEnPassant != 0 }
func (m Move) IsCastle() bool { return m&flagCastle != 0 }
func (m Move) IsDoublePush() bool { return m&FlagDoublePush != 0 }
func (m Move) IsCapture() bool { return m>>15&7 != 0 }
func (m Move) IsPromotion() bool { return m>>18&7 != 0 }
func (m Move) IsQuiet() bool { return !m.IsCapture() && !m.IsPromotion() }
func (m Move) Flags() Move { return m & (0xF << 21) }
func (m Move) sameCoordinates(o Move) bool { return m&0xFFF == o&0xFFF }

// Captured returns the captured piece type or NoPieceType.
func (m Move) Captured() PieceType {
	c := m >> 15 & 7
	if c == 0 {
		return NoPieceType
	}
	return PieceType(c - 1)
}

// Promotion returns the promotion piece type or NoPieceType.
func (m Move) Promotion() PieceType {
	p := m >> 18 & 7
	if p == 0 {
		return NoPieceType
	}
	return PieceType(p - 1)
}

// String returns long algebraic notation, e.g. "e2e4" or "e7e8q".
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if p := m.Promotion(); p != NoPieceType {
		s += string(p.Char())
	}
	return s
}

// MaxMoves bounds the number of legal moves in any reachable position.
const MaxMoves = 256

// MoveList is a fixed-capacity move buffer that avoids allocation during search.
type MoveList struct {
	Moves [MaxMoves]Move
	Count int
}

func (ml *MoveList) Add(m Move) {
	ml.Moves[ml.Count] = m
	ml.Count++
}

func (ml *MoveList) Len() int { return ml.Count }

func (ml *MoveList) Get(i int) Move { return ml.Moves[i] }

func (ml *MoveList) Swap(i, j int) {
	ml.Moves[i], ml.Moves[j] = ml.Moves[j], ml.Moves[i]
}

func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.Count; i++ {
		if ml.Moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice backed by the list.
func (ml *MoveList) Slice() []Move {
	return ml.Moves[:ml.Count]
}

// UndoInfo carries the state MakeMove cannot recover from the move itself.
type UndoInfo struct {
	Castling  CastlingRights
	EnPassant Square
	HalfMove  int
	Hash      uint64
	Checkers  Bitboard
}
