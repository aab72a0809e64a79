package engine

import (
	"github.com/hailam/cactus/internal/board"
)

const (
	Infinity  = 32000
	MateScore = 31000
	MaxPly    = 128

	// Scores at or beyond MateBound are forced mates.
	MateBound = MateScore - MaxPly

	// The stop flag and the limits are checked once per pollInterval nodes.
	pollInterval = 4096

	deltaMargin = 200
)

type pvTable struct {
	length [MaxPly + 1]int
	moves  [MaxPly + 1][MaxPly + 1]board.Move
}

func (pv *pvTable) update(ply int, m board.Move) {
	pv.moves[ply][ply] = m
	next := ply + 1
	n := max(pv.length[next], next)
	copy(pv.moves[ply][next:n], pv.moves[next][next:n])
	pv.length[ply] = n
}

func (pv *pvTable) line() []board.Move {
	out := make([]board.Move, pv.length[0])
	copy(out, pv.moves[0][:pv.length[0]])
	return out
}

// searcher is the state of one search invocation. It is created by
// Engine.Search and discarded when the search returns.
type searcher struct {
	e      *Engine
	pos    *board.Position
	limits Limits

	nodes    uint64
	seldepth int
	stopped  bool

	// hashes holds the game history before the root followed by the
	// positions on the current search path, for repetition detection.
	hashes []uint64
	pv     pvTable
}

// poll is called on every node and does real work once per pollInterval nodes.
func (s *searcher) poll() bool {
	s.nodes++
	if s.stopped {
		return true
	}
	if s.nodes%pollInterval != 0 {
		return false
	}
	switch {
	case s.e.stop.Load():
		s.stopped = true
	case s.limits.Nodes > 0 && s.nodes >= s.limits.Nodes:
		s.stopped = true
	case s.e.tm.PastHard():
		s.stopped = true
	}
	return s.stopped
}

func (s *searcher) isRepetition() bool {
	n := len(s.hashes)
	key := s.hashes[n-1]
	stop := max(n-1-s.pos.HalfMoveClock, 0)
	for i := n - 3; i >= stop; i -= 2 {
		if s.hashes[i] == key {
			return true
		}
	}
	return false
}

func (s *searcher) make(m board.Move) board.UndoInfo {
	u := s.pos.MakeMove(m)
	s.hashes = append(s.hashes, s.pos.Hash)
	return u
}

func (s *searcher) unmake(m board.Move, u board.UndoInfo) {
	s.hashes = s.hashes[:len(s.hashes)-1]
	s.pos.UnmakeMove(m, u)
}

// searchRoot runs one iteration at depth within (alpha, beta). Root moves
// are tried in the order given; the caller moves the best one to the front
// between iterations.
func (s *searcher) searchRoot(root []board.Move, depth, alpha, beta int) (int, board.Move) {
	s.pv.length[0] = 0
	origAlpha := alpha
	best, bestMove := -Infinity, board.NoMove
	us := s.pos.SideToMove

	for i, m := range root {
		u := s.make(m)
		var score int
		if i == 0 {
			score = -s.negamax(depth-1, 1, -beta, -alpha, true)
		} else {
			score = -s.negamax(depth-1, 1, -alpha-1, -alpha, true)
			if score > alpha && score < beta && !s.stopped {
				score = -s.negamax(depth-1, 1, -beta, -alpha, true)
			}
		}
		s.unmake(m, u)
		if s.stopped {
			return 0, board.NoMove
		}
		if score > best {
			best, bestMove = score, m
			if score > alpha {
				alpha = score
				s.pv.update(0, m)
				if score >= beta {
					if m.IsQuiet() {
						s.e.orderer.UpdateKillers(m, 0)
						s.e.orderer.UpdateHistory(us, m, nil, depth)
					}
					break
				}
			}
		}
	}

	bound := BoundUpper
	switch {
	case best >= beta:
		bound = BoundLower
	case best > origAlpha:
		bound = BoundExact
	}
	s.e.tt.Store(s.pos.Hash, depth, best, bound, bestMove)
	return best, bestMove
}

func (s *searcher) negamax(depth, ply, alpha, beta int, allowNull bool) int {
	if s.poll() {
		return 0
	}
	s.pv.length[ply] = ply
	s.seldepth = max(s.seldepth, ply)
	pos := s.pos
	inCheck := pos.InCheck()
	pvNode := beta-alpha > 1

	if s.isRepetition() || pos.IsInsufficientMaterial() {
		return 0
	}
	// Mate on the hundredth halfmove still counts as mate.
	if pos.HalfMoveClock >= 100 {
		if inCheck && !pos.HasLegalMoves() {
			return -MateScore + ply
		}
		return 0
	}

	// A shorter mate already found elsewhere makes this subtree irrelevant.
	alpha = max(alpha, -MateScore+ply)
	beta = min(beta, MateScore-ply-1)
	if alpha >= beta {
		return alpha
	}

	if ply >= MaxPly-1 {
		return evaluate(pos, s.e.pawns)
	}

	if inCheck {
		depth++
	}
	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	ttMove := board.NoMove
	if e, ok := s.e.tt.Probe(pos.Hash); ok {
		ttMove = e.Move
		if int(e.Depth) >= depth && !pvNode {
			score := scoreFromTT(int(e.Score), ply)
			switch {
			case e.Bound == BoundExact,
				e.Bound == BoundLower && score >= beta,
				e.Bound == BoundUpper && score <= alpha:
				return score
			}
		}
	}

	if allowNull && !pvNode && !inCheck && depth >= 3 && pos.HasNonPawnMaterial() && evaluate(pos, s.e.pawns) >= beta {
		r := 2 + depth/4
		nu := pos.MakeNullMove()
		s.hashes = append(s.hashes, pos.Hash)
		score := -s.negamax(depth-1-r, ply+1, -beta, -beta+1, false)
		s.hashes = s.hashes[:len(s.hashes)-1]
		pos.UnmakeNullMove(nu)
		if s.stopped {
			return 0
		}
		if score >= beta {
			if score >= MateBound {
				score = beta
			}
			return score
		}
	}

	var sm scoredMoves
	pos.GenerateLegalInto(&sm.list)
	if sm.list.Count == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}
	us := pos.SideToMove
	sm.scoreAll(&s.e.orderer, us, ttMove, ply)

	origAlpha := alpha
	best, bestMove := -Infinity, board.NoMove
	var quietsTried [board.MaxMoves]board.Move
	nQuiets := 0

	for i := 0; i < sm.list.Count; i++ {
		m := sm.pick(i)
		quiet := m.IsQuiet()

		u := s.make(m)
		givesCheck := pos.InCheck()
		var score int
		if i == 0 {
			score = -s.negamax(depth-1, ply+1, -beta, -alpha, true)
		} else {
			reduction := 0
			if quiet && !inCheck && !givesCheck && depth >= 3 && i >= 3 && m != ttMove {
				reduction = 1
				if i >= 6 {
					reduction = 2
				}
				reduction = min(reduction, depth-2)
			}
			score = -s.negamax(depth-1-reduction, ply+1, -alpha-1, -alpha, true)
			if reduction > 0 && score > alpha {
				score = -s.negamax(depth-1, ply+1, -alpha-1, -alpha, true)
			}
			if score > alpha && score < beta {
				score = -s.negamax(depth-1, ply+1, -beta, -alpha, true)
			}
		}
		s.unmake(m, u)
		if s.stopped {
			return 0
		}

		if score > best {
			best, bestMove = score, m
			if score > alpha {
				alpha = score
				s.pv.update(ply, m)
				if score >= beta {
					if quiet {
						s.e.orderer.UpdateKillers(m, ply)
						s.e.orderer.UpdateHistory(us, m, quietsTried[:nQuiets], depth)
					}
					break
				}
			}
		}
		if quiet {
			quietsTried[nQuiets] = m
			nQuiets++
		}
	}

	bound := BoundUpper
	switch {
	case best >= beta:
		bound = BoundLower
	case best > origAlpha:
		bound = BoundExact
	}
	s.e.tt.Store(pos.Hash, depth, scoreToTT(best, ply), bound, bestMove)
	return best
}

// quiescence resolves captures and promotions until the position is quiet.
// In check every evasion is searched, since standing pat is not an option.
func (s *searcher) quiescence(ply, alpha, beta int) int {
	if s.poll() {
		return 0
	}
	s.pv.length[ply] = ply
	s.seldepth = max(s.seldepth, ply)
	pos := s.pos

	if ply >= MaxPly-1 {
		return evaluate(pos, s.e.pawns)
	}

	inCheck := pos.InCheck()
	standPat := -Infinity
	var sm scoredMoves
	if inCheck {
		pos.GenerateLegalInto(&sm.list)
		if sm.list.Count == 0 {
			return -MateScore + ply
		}
	} else {
		standPat = evaluate(pos, s.e.pawns)
		if standPat >= beta {
			return standPat
		}
		alpha = max(alpha, standPat)
		pos.GenerateNoisyInto(&sm.list)
	}
	sm.scoreAll(&s.e.orderer, pos.SideToMove, board.NoMove, ply)

	best := standPat
	for i := 0; i < sm.list.Count; i++ {
		m := sm.pick(i)
		if !inCheck && !m.IsPromotion() && standPat+pieceValues[m.Captured()]+deltaMargin <= alpha {
			continue
		}
		u := s.make(m)
		score := -s.quiescence(ply+1, -beta, -alpha)
		s.unmake(m, u)
		if s.stopped {
			return 0
		}
		if score > best {
			best = score
			if score > alpha {
				alpha = score
				s.pv.update(ply, m)
				if score >= beta {
					break
				}
			}
		}
	}
	return best
}
