package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hailam/cactus/internal/board"
)

// State is the lifecycle of the engine's current search.
type State int32

const (
	Idle State = iota
	Searching
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	}
	return "idle"
}

// Info reports one completed iteration.
type Info struct {
	Depth    int
	SelDepth int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int
}

// NPS returns nodes per second.
func (i Info) NPS() uint64 {
	ms := uint64(i.Time.Milliseconds())
	if ms == 0 {
		return i.Nodes * 1000
	}
	return i.Nodes * 1000 / ms
}

// Result is the outcome of a search.
type Result struct {
	Move   board.Move
	Ponder board.Move
	Score  int
	Depth  int
	Nodes  uint64
	Time   time.Duration
	PV     []board.Move

	// Aborted is set when an iteration was cut short by a stop request or a
	// limit. The move then comes from the last fully completed depth.
	Aborted bool

	// Status is Checkmate or Stalemate when the root has no legal move,
	// in which case Move is NoMove.
	Status board.GameStatus
}

const (
	DefaultHashMB = 64
	pawnHashMB    = 2
)

// Engine owns the transposition table and the ordering tables that persist
// between searches of one game. It runs one search at a time.
type Engine struct {
	mu      sync.Mutex
	tt      *TranspositionTable
	pawns   *PawnTable
	orderer MoveOrderer
	tm      TimeManager
	history []uint64

	stop  atomic.Bool
	state atomic.Int32

	// OnInfo, if set, is called from the searching goroutine after every
	// completed iteration.
	OnInfo func(Info)

	log logrus.FieldLogger
}

// New creates an engine with a hashMB mebibyte transposition table.
func New(hashMB int) *Engine {
	return &Engine{
		tt:    NewTranspositionTable(hashMB),
		pawns: NewPawnTable(pawnHashMB),
		log:   logrus.StandardLogger(),
	}
}

// SetLogger replaces the logger used for search diagnostics.
func (e *Engine) SetLogger(l logrus.FieldLogger) {
	e.log = l
}

// SetHashSize reallocates the transposition table. It waits for a running search.
func (e *Engine) SetHashSize(mb int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tt = NewTranspositionTable(mb)
}

// SetMoveOverhead reserves d of every timed search for I/O latency.
func (e *Engine) SetMoveOverhead(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tm.SetOverhead(d)
}

// SetHistory records the hashes of the game positions before the root, oldest
// first, so that repetitions of earlier positions are scored as draws.
func (e *Engine) SetHistory(hashes []uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history[:0], hashes...)
}

// NewGame forgets everything learned in the previous game.
func (e *Engine) NewGame() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tt.Clear()
	e.pawns.Clear()
	e.orderer.Clear()
	e.history = e.history[:0]
}

// ClearHash empties the transposition table only.
func (e *Engine) ClearHash() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tt.Clear()
}

// Stop asks the running search to return. It is safe to call from any goroutine.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) HashFull() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tt.HashFull()
}

// Search looks for the best move in pos within l. pos is not modified.
// Cancelling ctx has the same effect as Stop. The returned move is always
// legal in pos, or NoMove when pos has no legal move.
func (e *Engine) Search(ctx context.Context, pos *board.Position, l Limits) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stop.Store(false)
	e.state.Store(int32(Searching))
	cancel := context.AfterFunc(ctx, e.Stop)
	defer cancel()

	s := &searcher{
		e:      e,
		pos:    pos.Copy(),
		limits: l,
		hashes: make([]uint64, 0, len(e.history)+MaxPly+1),
	}
	s.hashes = append(s.hashes, e.history...)
	s.hashes = append(s.hashes, pos.Hash)

	res := e.iterate(s)

	final := Completed
	if e.stop.Load() {
		final = Cancelled
	}
	e.state.Store(int32(final))
	e.log.WithFields(logrus.Fields{
		"move":    res.Move.String(),
		"depth":   res.Depth,
		"score":   FormatScore(res.Score),
		"nodes":   res.Nodes,
		"time":    res.Time,
		"aborted": res.Aborted,
	}).Debug("search finished")
	return res
}

func (e *Engine) iterate(s *searcher) Result {
	pos := s.pos
	us := pos.SideToMove
	e.tm.Init(s.limits, us, 2*(pos.FullMoveNumber-1)+int(us))
	e.tt.NewSearch()
	e.orderer.Age()

	var sm scoredMoves
	pos.GenerateLegalInto(&sm.list)
	if sm.list.Count == 0 {
		st := board.Stalemate
		if pos.InCheck() {
			st = board.Checkmate
		}
		return Result{Status: st}
	}

	ttMove := board.NoMove
	if te, ok := e.tt.Probe(pos.Hash); ok {
		ttMove = te.Move
	}
	sm.scoreAll(&e.orderer, us, ttMove, 0)
	root := make([]board.Move, sm.list.Count)
	for i := range root {
		root[i] = sm.pick(i)
	}

	// Until depth 1 completes the best guess is the first ordered move.
	res := Result{Move: root[0], Aborted: true}

	maxDepth := MaxPly - 1
	if s.limits.Depth > 0 {
		maxDepth = min(s.limits.Depth, maxDepth)
	}

	prevBest := board.NoMove
	score := 0
	for depth := 1; depth <= maxDepth; depth++ {
		s.seldepth = 0
		var best board.Move
		score, best = e.aspiration(s, root, depth, score)
		if s.stopped || best == board.NoMove {
			res.Aborted = true
			break
		}

		pv := s.pv.line()
		if len(pv) == 0 || pv[0] != best {
			pv = []board.Move{best}
		}
		res = Result{
			Move:  best,
			Score: score,
			Depth: depth,
			Nodes: s.nodes,
			Time:  e.tm.Elapsed(),
			PV:    pv,
		}
		if len(pv) > 1 {
			res.Ponder = pv[1]
		}
		moveToFront(root, best)

		if e.OnInfo != nil {
			e.OnInfo(Info{
				Depth:    depth,
				SelDepth: s.seldepth,
				Score:    score,
				Nodes:    s.nodes,
				Time:     res.Time,
				PV:       pv,
				HashFull: e.tt.HashFull(),
			})
		}

		if s.limits.Infinite {
			continue
		}
		if abs(score) >= MateBound && MateScore-abs(score) <= depth {
			break
		}
		if s.limits.Nodes > 0 && s.nodes >= s.limits.Nodes {
			break
		}
		if len(root) == 1 && s.limits.Timed(us) {
			break
		}
		if prevBest != board.NoMove && prevBest != best {
			e.tm.Extend(30)
		}
		prevBest = best
		if e.tm.PastSoft() {
			break
		}
	}
	res.Nodes = s.nodes
	res.Time = e.tm.Elapsed()
	return res
}

// aspiration searches depth with a narrow window around the previous score
// from depth 5 on, widening it on failure.
func (e *Engine) aspiration(s *searcher, root []board.Move, depth, prev int) (int, board.Move) {
	if depth < 5 {
		return s.searchRoot(root, depth, -Infinity, Infinity)
	}
	delta := 40
	alpha, beta := max(prev-delta, -Infinity), min(prev+delta, Infinity)
	for {
		score, best := s.searchRoot(root, depth, alpha, beta)
		if s.stopped {
			return 0, board.NoMove
		}
		switch {
		case score <= alpha:
			alpha = max(alpha-delta, -Infinity)
		case score >= beta:
			beta = min(beta+delta, Infinity)
		default:
			return score, best
		}
		delta *= 2
		if delta > 1000 {
			alpha, beta = -Infinity, Infinity
		}
	}
}

func moveToFront(moves []board.Move, m board.Move) {
	for i, x := range moves {
		if x == m {
			copy(moves[1:i+1], moves[:i])
			moves[0] = m
			return
		}
	}
}

// FormatScore renders a score the way the UCI protocol expects after
// "score": "cp 35", "mate 3" or "mate -2".
func FormatScore(score int) string {
	switch {
	case score >= MateBound:
		return fmt.Sprintf("mate %d", (MateScore-score+1)/2)
	case score <= -MateBound:
		return fmt.Sprintf("mate %d", -(MateScore+score)/2)
	}
	return fmt.Sprintf("cp %d", score)
}
