package board

import (
	"fmt"
	"strings"
)

// CastlingRights is a bit set of the four castling options.
type CastlingRights uint8

const (
	WhiteKingside CastlingRights = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside

	NoCastling  CastlingRights = 0
	AllCastling                = WhiteKingside | WhiteQueenside | BlackKingside | BlackQueenside
)

func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	var sb strings.Builder
	for i, ch := range "KQkq" {
		if cr&(1<<i) != 0 {
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

// castleMask[sq] is ANDed into the rights whenever a move touches sq.
var castleMask [64]CastlingRights

func initCastleMask() {
	for sq := range castleMask {
		castleMask[sq] = AllCastling
	}
	castleMask[E1] &^= WhiteKingside | WhiteQueenside
	castleMask[H1] &^= WhiteKingside
	castleMask[A1] &^= WhiteQueenside
	castleMask[E8] &^= BlackKingside | BlackQueenside
	castleMask[H8] &^= BlackKingside
	castleMask[A8] &^= BlackQueenside
}

// Position is a complete game state.
//
// Fields are exported for reading. All mutation goes through MakeMove,
// UnmakeMove and the null move pair so that the bitboards, the mailbox and
// the hash never disagree.
type Position struct {
	Pieces   [2][6]Bitboard
	Occupied [2]Bitboard
	All      Bitboard

	SideToMove     Color
	Castling       CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	FullMoveNumber int

	Hash     uint64
	Kings    [2]Square
	Checkers Bitboard

	board [64]Piece
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	pos, err := ParseFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return pos
}

func (p *Position) Copy() *Position {
	c := *p
	return &c
}

func (p *Position) clear() {
	*p = Position{EnPassant: NoSquare, FullMoveNumber: 1}
	for sq := range p.board {
		p.board[sq] = NoPiece
	}
}

// PieceAt returns the piece on sq or NoPiece.
func (p *Position) PieceAt(sq Square) Piece {
	return p.board[sq]
}

func (p *Position) Us() Color   { return p.SideToMove }
func (p *Position) Them() Color { return p.SideToMove.Other() }

func (p *Position) put(pc Piece, sq Square) {
	c, pt := pc.Color(), pc.Type()
	bb := SquareBB(sq)
	p.Pieces[c][pt] |= bb
	p.Occupied[c] |= bb
	p.All |= bb
	p.board[sq] = pc
	p.Hash ^= zobristPiece[pc][sq]
	if pt == King {
		p.Kings[c] = sq
	}
}

func (p *Position) remove(sq Square) {
	pc := p.board[sq]
	c, pt := pc.Color(), pc.Type()
	bb := SquareBB(sq)
	p.Pieces[c][pt] &^= bb
	p.Occupied[c] &^= bb
	p.All &^= bb
	p.board[sq] = NoPiece
	p.Hash ^= zobristPiece[pc][sq]
}

func (p *Position) shift(from, to Square) {
	pc := p.board[from]
	c, pt := pc.Color(), pc.Type()
	bb := SquareBB(from) | SquareBB(to)
	p.Pieces[c][pt] ^= bb
	p.Occupied[c] ^= bb
	p.All ^= bb
	p.board[from] = NoPiece
	p.board[to] = pc
	p.Hash ^= zobristPiece[pc][from] ^ zobristPiece[pc][to]
	if pt == King {
		p.Kings[c] = to
	}
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.Checkers != 0
}

// IsInCheck reports whether c's king is attacked.
func (p *Position) IsInCheck(c Color) bool {
	if c == p.SideToMove {
		return p.Checkers != 0
	}
	return p.IsSquareAttacked(p.Kings[c], c.Other())
}

// HasNonPawnMaterial reports whether the side to move has a piece besides
// king and pawns.
func (p *Position) HasNonPawnMaterial() bool {
	us := p.SideToMove
	return p.Pieces[us][Knight]|p.Pieces[us][Bishop]|p.Pieces[us][Rook]|p.Pieces[us][Queen] != 0
}

// NullUndo restores the state changed by MakeNullMove.
type NullUndo struct {
	EnPassant Square
	Hash      uint64
}

// MakeNullMove passes the turn. It must not be called while in check.
func (p *Position) MakeNullMove() NullUndo {
	u := NullUndo{EnPassant: p.EnPassant, Hash: p.Hash}
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
		p.EnPassant = NoSquare
	}
	p.SideToMove = p.SideToMove.Other()
	p.Hash ^= zobristBlack
	p.Checkers = 0
	return u
}

func (p *Position) UnmakeNullMove(u NullUndo) {
	p.SideToMove = p.SideToMove.Other()
	p.EnPassant = u.EnPassant
	p.Hash = u.Hash
	p.Checkers = 0
}

// validate checks the structural invariants a parsed position must satisfy.
func (p *Position) validate() error {
	for c := White; c <= Black; c++ {
		if p.Pieces[c][King].Count() != 1 {
			return fmt.Errorf("%s must have exactly one king", c)
		}
	}
	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return fmt.Errorf("pawns on first or last rank")
	}
	if p.IsSquareAttacked(p.Kings[p.Them()], p.Us()) {
		return fmt.Errorf("side not to move is in check")
	}
	if p.EnPassant != NoSquare {
		want := 5
		if p.SideToMove == Black {
			want = 2
		}
		if p.EnPassant.Rank() != want {
			return fmt.Errorf("en passant square %s on wrong rank", p.EnPassant)
		}
		// The double push came from the square beyond ep.
		victim := enPassantVictim(p.EnPassant, p.Us())
		from := p.EnPassant + 8
		if p.SideToMove == Black {
			from = p.EnPassant - 8
		}
		if p.board[victim] != NewPiece(Pawn, p.Them()) {
			return fmt.Errorf("en passant square %s without a pawn to capture", p.EnPassant)
		}
		if p.board[p.EnPassant] != NoPiece || p.board[from] != NoPiece {
			return fmt.Errorf("en passant square %s is not behind a double push", p.EnPassant)
		}
	}
	return nil
}

// String draws the board with rank 8 on top, followed by FEN and hash.
func (p *Position) String() string {
	var sb strings.Builder
	sb.WriteString("\n +---+---+---+---+---+---+---+---+\n")
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			ch := byte(' ')
			if pc := p.board[NewSquare(file, rank)]; pc != NoPiece {
				ch = pc.Char()
			}
			fmt.Fprintf(&sb, " | %c", ch)
		}
		fmt.Fprintf(&sb, " | %d\n +---+---+---+---+---+---+---+---+\n", rank+1)
	}
	sb.WriteString("   a   b   c   d   e   f   g   h\n\n")
	fmt.Fprintf(&sb, "Fen: %s\n", p.FEN())
	fmt.Fprintf(&sb, "Key: %016X\n", p.Hash)
	sb.WriteString("Checkers:")
	for b := p.Checkers; b != 0; {
		sb.WriteString(" " + b.Pop().String())
	}
	sb.WriteByte('\n')
	return sb.String()
}
