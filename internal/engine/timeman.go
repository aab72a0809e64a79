package engine

import (
	"time"

	"github.com/hailam/cactus/internal/board"
)

// Limits bounds one search. Zero values mean "no limit" for every field, so
// Limits{} searches until stopped, like Infinite.
type Limits struct {
	Depth     int
	Nodes     uint64
	MoveTime  time.Duration
	Time      [2]time.Duration // remaining clock, indexed by color
	Inc       [2]time.Duration
	MovesToGo int
	Infinite  bool
}

// Timed reports whether a clock or a fixed move time applies.
func (l Limits) Timed(us board.Color) bool {
	return !l.Infinite && (l.MoveTime > 0 || l.Time[us] > 0)
}

// TimeManager turns clock limits into two deadlines. Past the soft one no new
// iteration is started; the hard one aborts the iteration in progress.
type TimeManager struct {
	start    time.Time
	soft     time.Duration
	hard     time.Duration
	overhead time.Duration
	timed    bool
}

// Init sets the deadlines for a search starting now. ply is the game ply of
// the root position.
func (tm *TimeManager) Init(l Limits, us board.Color, ply int) {
	tm.start = time.Now()
	tm.timed = l.Timed(us)
	if !tm.timed {
		return
	}

	if l.MoveTime > 0 {
		t := max(l.MoveTime-tm.overhead, time.Millisecond)
		tm.soft, tm.hard = t, t
		return
	}

	left := max(l.Time[us]-tm.overhead, time.Millisecond)
	inc := l.Inc[us]

	mtg := l.MovesToGo
	if mtg == 0 {
		// Sudden death: assume fewer moves remain as the game goes on.
		mtg = min(max(50-ply/4, 10), 50)
	}

	base := left/time.Duration(mtg) + inc*9/10
	if ply < 8 {
		base = base * 85 / 100
	}
	tm.soft = base
	tm.hard = min(base*5, left*8/10)
	tm.soft = min(tm.soft, tm.hard)
	tm.soft = max(tm.soft, 5*time.Millisecond)
	tm.hard = max(tm.hard, 10*time.Millisecond)
}

// SetOverhead reserves d of every allocation for communication latency.
func (tm *TimeManager) SetOverhead(d time.Duration) {
	tm.overhead = max(d, 0)
}

func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.start)
}

// PastSoft reports whether a new iteration should not be started.
func (tm *TimeManager) PastSoft() bool {
	return tm.timed && tm.Elapsed() >= tm.soft
}

// PastHard reports whether the running iteration must be abandoned.
func (tm *TimeManager) PastHard() bool {
	return tm.timed && tm.Elapsed() >= tm.hard
}

// Extend stretches the soft deadline by pct percent, never past the hard one.
// Used when the best move changed in the last iteration.
func (tm *TimeManager) Extend(pct int) {
	tm.soft = min(tm.soft*time.Duration(100+pct)/100, tm.hard)
}
