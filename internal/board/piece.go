package board

// Color is the side a piece belongs to.
type Color uint8

const (
	White Color = iota
	Black
	NoColor
)

func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	}
	return "none"
}

// PieceType is a colorless piece kind.
type PieceType uint8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
	NoPieceType
)

const pieceLetters = "pnbrqk"

// Char returns the lowercase letter used in FEN and UCI promotions.
func (pt PieceType) Char() byte {
	if pt >= NoPieceType {
		return ' '
	}
	return pieceLetters[pt]
}

func (pt PieceType) String() string {
	switch pt {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	}
	return "none"
}

// PieceTypeFromChar maps a letter in either case to its piece type.
func PieceTypeFromChar(ch byte) PieceType {
	if ch >= 'A' && ch <= 'Z' {
		ch += 'a' - 'A'
	}
	for i := 0; i < len(pieceLetters); i++ {
		if pieceLetters[i] == ch {
			return PieceType(i)
		}
	}
	return NoPieceType
}

// Piece is a colored piece: type + 6*color.
type Piece uint8

const (
	WhitePawn Piece = iota
	WhiteKnight
	WhiteBishop
	WhiteRook
	WhiteQueen
	WhiteKing
	BlackPawn
	BlackKnight
	BlackBishop
	BlackRook
	BlackQueen
	BlackKing
	NoPiece
)

func NewPiece(pt PieceType, c Color) Piece {
	if pt >= NoPieceType || c >= NoColor {
		return NoPiece
	}
	return Piece(uint8(pt) + 6*uint8(c))
}

func (p Piece) Type() PieceType {
	if p >= NoPiece {
		return NoPieceType
	}
	return PieceType(p % 6)
}

func (p Piece) Color() Color {
	if p >= NoPiece {
		return NoColor
	}
	return Color(p / 6)
}

// Char returns the FEN letter, uppercase for White.
func (p Piece) Char() byte {
	if p >= NoPiece {
		return '.'
	}
	ch := p.Type().Char()
	if p.Color() == White {
		ch -= 'a' - 'A'
	}
	return ch
}

// PieceFromChar parses a FEN piece letter.
func PieceFromChar(ch byte) Piece {
	c := Black
	if ch >= 'A' && ch <= 'Z' {
		c = White
	}
	return NewPiece(PieceTypeFromChar(ch), c)
}
