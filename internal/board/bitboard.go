package board

import (
	"math/bits"
	"strings"
)

// Bitboard is a set of squares, one bit per square.
// Bit 0 is A1, bit 7 is H1, bit 56 is A8 and bit 63 is H8.
type Bitboard uint64

const (
	FileA Bitboard = 0x0101010101010101 << iota
	FileB
	FileC
	FileD
	FileE
	FileF
	FileG
	FileH
)

const (
	Rank1 Bitboard = 0xFF << (8 * iota)
	Rank2
	Rank3
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
)

const (
	Empty    Bitboard = 0
	Universe Bitboard = ^Bitboard(0)

	notFileA Bitboard = ^FileA
	notFileH Bitboard = ^FileH

	LightSquares Bitboard = 0x55AA55AA55AA55AA
	DarkSquares  Bitboard = ^LightSquares
)

var (
	FileMask = [8]Bitboard{FileA, FileB, FileC, FileD, FileE, FileF, FileG, FileH}
	RankMask = [8]Bitboard{Rank1, Rank2, Rank3, Rank4, Rank5, Rank6, Rank7, Rank8}
)

// SquareBB returns a bitboard with only sq set.
func SquareBB(sq Square) Bitboard {
	return 1 << sq
}

func (b Bitboard) Has(sq Square) bool {
	return b&(1<<sq) != 0
}

func (b Bitboard) Count() int {
	return bits.OnesCount64(uint64(b))
}

// More reports whether more than one square is set.
func (b Bitboard) More() bool {
	return b&(b-1) != 0
}

// LSB returns the lowest set square. The result is undefined for an empty board.
func (b Bitboard) LSB() Square {
	return Square(bits.TrailingZeros64(uint64(b)))
}

// MSB returns the highest set square. The result is undefined for an empty board.
func (b Bitboard) MSB() Square {
	return Square(63 - bits.LeadingZeros64(uint64(b)))
}

// Pop removes and returns the lowest set square.
func (b *Bitboard) Pop() Square {
	sq := b.LSB()
	*b &= *b - 1
	return sq
}

func (b Bitboard) North() Bitboard { return b << 8 }
func (b Bitboard) South() Bitboard { return b >> 8 }
func (b Bitboard) East() Bitboard { return (b & notFileH) << 1 }
func (b Bitboard) West() Bitboard { return (b & notFileA) >> 1 }

// Forward shifts one rank towards the opponent of c.
func (b Bitboard) Forward(c Color) Bitboard {
	if c == White {
		return b.North()
	}
	return b.South()
}

// FrontSpan returns every square strictly in front of the set squares from c's point of view.
func (b Bitboard) FrontSpan(c Color) Bitboard {
	var span Bitboard
	if c == White {
		for x := b.North(); x != 0; x = x.North() {
			span |= x
		}
	} else {
		for x := b.South(); x != 0; x = x.South() {
			span |= x
		}
	}
	return span
}

// String renders the bitboard as an 8x8 grid with rank 8 on top.
func (b Bitboard) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			if b.Has(NewSquare(file, rank)) {
				sb.WriteString("1 ")
			} else {
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
