package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string. The move counters are optional. Every failure
// is reported as a *MalformedPositionError.
func ParseFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	bad := func(format string, args ...any) (*Position, error) {
		return nil, &MalformedPositionError{FEN: fen, Reason: fmt.Sprintf(format, args...)}
	}
	if len(fields) < 4 || len(fields) > 6 {
		return bad("want 4 to 6 fields, got %d", len(fields))
	}

	p := &Position{}
	p.clear()

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return bad("want 8 ranks, got %d", len(ranks))
	}
	for i, row := range ranks {
		rank, file := 7-i, 0
		for j := 0; j < len(row); j++ {
			ch := row[j]
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			pc := PieceFromChar(ch)
			if pc == NoPiece {
				return bad("unknown piece %q", ch)
			}
			if file > 7 {
				return bad("rank %d overflows", rank+1)
			}
			p.put(pc, NewSquare(file, rank))
			file++
		}
		if file != 8 {
			return bad("rank %d has %d squares", rank+1, file)
		}
	}

	switch fields[1] {
	case "w":
		p.SideToMove = White
	case "b":
		p.SideToMove = Black
	default:
		return bad("side to move %q", fields[1])
	}

	if fields[2] != "-" {
		for _, ch := range fields[2] {
			i := strings.IndexRune("KQkq", ch)
			if i < 0 {
				return bad("castling rights %q", fields[2])
			}
			p.Castling |= 1 << i
		}
	}

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return bad("en passant square %q", fields[3])
		}
		p.EnPassant = sq
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return bad("halfmove clock %q", fields[4])
		}
		p.HalfMoveClock = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 1 {
			return bad("fullmove number %q", fields[5])
		}
		p.FullMoveNumber = n
	}

	if err := p.validate(); err != nil {
		return bad("%v", err)
	}
	p.dropStaleCastling()
	p.Hash = p.ComputeHash()
	p.updateCheckers()
	return p, nil
}

// dropStaleCastling clears rights whose king or rook is not on its home square.
func (p *Position) dropStaleCastling() {
	for c := White; c <= Black; c++ {
		for _, cs := range castles[c] {
			if p.board[cs.king] != NewPiece(King, c) || p.board[cs.rook] != NewPiece(Rook, c) {
				p.Castling &^= cs.right
			}
		}
	}
}

// MustParseFEN is ParseFEN for positions known to be valid.
func MustParseFEN(fen string) *Position {
	p, err := ParseFEN(fen)
	if err != nil {
		panic(err)
	}
	return p
}

// FEN serializes the position.
func (p *Position) FEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			pc := p.board[NewSquare(file, rank)]
			if pc == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(pc.Char())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	side := "w"
	if p.SideToMove == Black {
		side = "b"
	}
	fmt.Fprintf(&sb, " %s %s %s %d %d", side, p.Castling, p.EnPassant, p.HalfMoveClock, p.FullMoveNumber)
	return sb.String()
}
