package match

import (
	"time"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/coupler"
)

// Clock tracks both players' remaining time. A zero Base means the game is
// untimed and moves are limited by depth, nodes or movetime instead.
type Clock struct {
	Base            time.Duration
	Inc             time.Duration
	MovesPerSession int

	remaining [2]time.Duration
	played    [2]int
}

func NewClock(base, inc time.Duration, movesPerSession int) *Clock {
	return &Clock{
		Base:            base,
		Inc:             inc,
		MovesPerSession: movesPerSession,
		remaining:       [2]time.Duration{base, base},
	}
}

// Timed reports whether the clock runs at all.
func (c *Clock) Timed() bool { return c != nil && c.Base > 0 }

// Remaining returns the time left for c.
func (c *Clock) Remaining(color board.Color) time.Duration {
	return c.remaining[color]
}

func (c *Clock) movesToGo(color board.Color) int {
	if c.MovesPerSession == 0 {
		return 0
	}
	return c.MovesPerSession - c.played[color]%c.MovesPerSession
}

// Budget fills the clock fields of a go command for the side to move.
func (c *Clock) Budget(stm board.Color) coupler.Budget {
	return coupler.Budget{
		WTime:     c.remaining[board.White],
		BTime:     c.remaining[board.Black],
		WInc:      c.Inc,
		BInc:      c.Inc,
		MovesToGo: c.movesToGo(stm),
	}
}

// Punch charges spent to color and reports whether its flag fell, allowing
// an overrun of up to grace. The increment is added after the move, and a
// new session's base time once the session's moves are played.
func (c *Clock) Punch(color board.Color, spent, grace time.Duration) (flagged bool) {
	if spent > c.remaining[color]+grace {
		c.remaining[color] = 0
		return true
	}
	// An overrun within grace leaves a token millisecond, since a zero
	// clock would read as an untimed search.
	c.remaining[color] = max(c.remaining[color]-spent, time.Millisecond) + c.Inc
	c.played[color]++
	if c.MovesPerSession > 0 && c.played[color]%c.MovesPerSession == 0 {
		c.remaining[color] += c.Base
	}
	return false
}
