// Package engine searches chess positions: static evaluation, iterative
// deepening alpha-beta with a transposition table, and time management.
package engine

import (
	"github.com/hailam/cactus/internal/board"
)

const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
)

var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, 0, 0}

// Game phase weights. A full board has phase 24; bare kings and pawns have 0.
var phaseWeight = [6]int{0, 1, 1, 2, 4, 0}

const maxPhase = 24

const tempo = 10

var (
	mobilityMg = [6]int{0, 4, 5, 2, 1, 0}
	mobilityEg = [6]int{0, 3, 4, 4, 2, 0}

	// Pressure on the squares around the king, per attacking piece type.
	kingAttackWeight = [6]int{0, 20, 20, 40, 80, 0}

	// Passed pawn bonus by relative rank.
	passedMg = [8]int{0, 5, 10, 15, 25, 40, 60, 0}
	passedEg = [8]int{0, 10, 20, 40, 70, 120, 200, 0}
)

const (
	bishopPairMg = 25
	bishopPairEg = 50

	rookOpenMg     = 20
	rookOpenEg     = 25
	rookSemiOpenMg = 10
	rookSemiOpenEg = 15

	doubledMg  = -15
	doubledEg  = -20
	isolatedMg = -20
	isolatedEg = -25

	shieldPawn    = 10
	shieldMissing = -15
)

// Piece-square tables, written as seen from White with rank 8 on the first
// row. White pieces look up sq.Flip(); Black pieces look up sq directly.
var pst = [6][64]int{
	board.Pawn: {
		0, 0, 0, 0, 0, 0, 0, 0,
		50, 50, 50, 50, 50, 50, 50, 50,
		10, 10, 20, 30, 30, 20, 10, 10,
		5, 5, 10, 25, 25, 10, 5, 5,
		0, 0, 0, 20, 20, 0, 0, 0,
		5, -5, -10, 0, 0, -10, -5, 5,
		5, 10, 10, -20, -20, 10, 10, 5,
		0, 0, 0, 0, 0, 0, 0, 0,
	},
	board.Knight: {
		-50, -40, -30, -30, -30, -30, -40, -50,
		-40, -20, 0, 0, 0, 0, -20, -40,
		-30, 0, 10, 15, 15, 10, 0, -30,
		-30, 5, 15, 20, 20, 15, 5, -30,
		-30, 0, 15, 20, 20, 15, 0, -30,
		-30, 5, 10, 15, 15, 10, 5, -30,
		-40, -20, 0, 5, 5, 0, -20, -40,
		-50, -40, -30, -30, -30, -30, -40, -50,
	},
	board.Bishop: {
		-20, -10, -10, -10, -10, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 10, 10, 5, 0, -10,
		-10, 5, 5, 10, 10, 5, 5, -10,
		-10, 0, 10, 10, 10, 10, 0, -10,
		-10, 10, 10, 10, 10, 10, 10, -10,
		-10, 5, 0, 0, 0, 0, 5, -10,
		-20, -10, -10, -10, -10, -10, -10, -20,
	},
	board.Rook: {
		0, 0, 0, 0, 0, 0, 0, 0,
		5, 10, 10, 10, 10, 10, 10, 5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		0, 0, 0, 5, 5, 0, 0, 0,
	},
	board.Queen: {
		-20, -10, -10, -5, -5, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 5, 5, 5, 0, -10,
		-5, 0, 5, 5, 5, 5, 0, -5,
		0, 0, 5, 5, 5, 5, 0, -5,
		-10, 5, 5, 5, 5, 5, 0, -10,
		-10, 0, 5, 0, 0, 0, 0, -10,
		-20, -10, -10, -5, -5, -10, -10, -20,
	},
	board.King: {
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-20, -30, -30, -40, -40, -30, -30, -20,
		-10, -20, -20, -20, -20, -20, -20, -10,
		20, 20, 0, 0, 0, 0, 20, 20,
		20, 30, 10, 0, 0, 10, 30, 20,
	},
}

var kingEndgamePST = [64]int{
	-50, -40, -30, -20, -20, -30, -40, -50,
	-30, -20, -10, 0, 0, -10, -20, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -30, 0, 0, 0, 0, -30, -30,
	-50, -30, -30, -30, -30, -30, -30, -50,
}

// adjacentFiles[f] covers the files next to f.
var adjacentFiles [8]board.Bitboard

func init() {
	for f := 0; f < 8; f++ {
		if f > 0 {
			adjacentFiles[f] |= board.FileMask[f-1]
		}
		if f < 7 {
			adjacentFiles[f] |= board.FileMask[f+1]
		}
	}
}

func pstIndex(c board.Color, sq board.Square) board.Square {
	if c == board.White {
		return sq.Flip()
	}
	return sq
}

// Evaluate scores pos in centipawns from the side to move's point of view.
// It depends on nothing but pos.
func Evaluate(pos *board.Position) int {
	return evaluate(pos, nil)
}

// evaluate is Evaluate with pawn structure looked up in pt, which may be nil.
func evaluate(pos *board.Position, pt *PawnTable) int {
	var mg, eg [2]int
	phase := 0

	for c := board.White; c <= board.Black; c++ {
		them := c.Other()
		ownPawns := pos.Pieces[c][board.Pawn]
		enemyPawns := pos.Pieces[them][board.Pawn]
		// Squares attacked by enemy pawns do not count as mobility.
		var enemyPawnAttacks board.Bitboard
		for b := enemyPawns; b != 0; {
			enemyPawnAttacks |= board.PawnAttacks(them, b.Pop())
		}
		safe := ^pos.Occupied[c] &^ enemyPawnAttacks

		for pt := board.Pawn; pt <= board.King; pt++ {
			for b := pos.Pieces[c][pt]; b != 0; {
				sq := b.Pop()
				idx := pstIndex(c, sq)
				phase += phaseWeight[pt]
				mg[c] += pieceValues[pt]
				eg[c] += pieceValues[pt]
				if pt == board.King {
					mg[c] += pst[pt][idx]
					eg[c] += kingEndgamePST[idx]
					continue
				}
				mg[c] += pst[pt][idx]
				eg[c] += pst[pt][idx]

				if pt != board.Pawn {
					n := (board.AttacksFrom(pt, c, sq, pos.All) & safe).Count()
					mg[c] += mobilityMg[pt] * n
					eg[c] += mobilityEg[pt] * n
				}
				if pt == board.Rook {
					file := board.FileMask[sq.File()]
					switch {
					case file&(ownPawns|enemyPawns) == 0:
						mg[c] += rookOpenMg
						eg[c] += rookOpenEg
					case file&ownPawns == 0:
						mg[c] += rookSemiOpenMg
						eg[c] += rookSemiOpenEg
					}
				}
			}
		}

		if pos.Pieces[c][board.Bishop].Count() >= 2 {
			mg[c] += bishopPairMg
			eg[c] += bishopPairEg
		}

		mg[c] += kingSafety(pos, c)
	}

	pmg, peg := pt.probe(pos.Pieces[board.White][board.Pawn], pos.Pieces[board.Black][board.Pawn])
	mg[board.White] += pmg
	eg[board.White] += peg

	phase = min(phase, maxPhase)
	us, them := pos.SideToMove, pos.SideToMove.Other()
	mgScore := mg[us] - mg[them]
	egScore := eg[us] - eg[them]
	return (mgScore*phase+egScore*(maxPhase-phase))/maxPhase + tempo
}

func evalPawns(c board.Color, own, enemy board.Bitboard) (mg, eg int) {
	for f := 0; f < 8; f++ {
		n := (own & board.FileMask[f]).Count()
		if n > 1 {
			mg += doubledMg * (n - 1)
			eg += doubledEg * (n - 1)
		}
		if n > 0 && own&adjacentFiles[f] == 0 {
			mg += isolatedMg * n
			eg += isolatedEg * n
		}
	}
	for b := own; b != 0; {
		sq := b.Pop()
		front := board.SquareBB(sq).FrontSpan(c)
		span := front | front.East() | front.West()
		if enemy&span == 0 && own&front == 0 {
			r := sq.RelativeRank(c)
			mg += passedMg[r]
			eg += passedEg[r]
		}
	}
	return mg, eg
}

// kingSafety is a middlegame-only term: shield pawns in front of the king
// and enemy pieces bearing on the squares around it.
func kingSafety(pos *board.Position, c board.Color) int {
	them := c.Other()
	ksq := pos.Kings[c]
	score := 0

	if ksq.RelativeRank(c) <= 1 {
		shieldZone := board.SquareBB(ksq).Forward(c)
		shieldZone |= shieldZone.East() | shieldZone.West()
		shieldZone |= shieldZone.Forward(c)
		pawns := pos.Pieces[c][board.Pawn]
		for f := max(ksq.File()-1, 0); f <= min(ksq.File()+1, 7); f++ {
			if pawns&shieldZone&board.FileMask[f] != 0 {
				score += shieldPawn
			} else {
				score += shieldMissing
			}
		}
	}

	zone := board.KingAttacks(ksq) | board.SquareBB(ksq)
	attackers, pressure := 0, 0
	for pt := board.Knight; pt <= board.Queen; pt++ {
		for b := pos.Pieces[them][pt]; b != 0; {
			sq := b.Pop()
			if board.AttacksFrom(pt, them, sq, pos.All)&zone != 0 {
				attackers++
				pressure += kingAttackWeight[pt]
			}
		}
	}
	if attackers >= 2 {
		score -= pressure * attackers / 4
	}
	return score
}
