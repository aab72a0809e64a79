package engine

import (
	"testing"
	"time"

	"github.com/hailam/cactus/internal/board"
)

func TestTimeManagerUntimed(t *testing.T) {
	for _, l := range []Limits{{}, {Depth: 10}, {Infinite: true, Time: [2]time.Duration{time.Second, time.Second}}} {
		var tm TimeManager
		tm.Init(l, board.White, 0)
		if tm.PastSoft() || tm.PastHard() {
			t.Errorf("%+v: untimed search reports deadlines", l)
		}
	}
}

func TestTimeManagerMoveTime(t *testing.T) {
	var tm TimeManager
	tm.SetOverhead(50 * time.Millisecond)
	tm.Init(Limits{MoveTime: time.Second}, board.Black, 10)
	if tm.soft != 950*time.Millisecond || tm.hard != 950*time.Millisecond {
		t.Errorf("soft, hard = %v, %v; want 950ms both", tm.soft, tm.hard)
	}
}

func TestTimeManagerClock(t *testing.T) {
	tests := []struct {
		name  string
		limit Limits
		us    board.Color
	}{
		{"sudden death", Limits{Time: [2]time.Duration{60 * time.Second, 60 * time.Second}}, board.White},
		{"increment", Limits{Time: [2]time.Duration{0, 10 * time.Second}, Inc: [2]time.Duration{0, time.Second}}, board.Black},
		{"moves to go", Limits{Time: [2]time.Duration{30 * time.Second, 0}, MovesToGo: 5}, board.White},
		{"nearly flagged", Limits{Time: [2]time.Duration{20 * time.Millisecond, 0}}, board.White},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tm TimeManager
			tm.Init(tt.limit, tt.us, 20)
			left := tt.limit.Time[tt.us]
			if tm.soft > tm.hard {
				t.Errorf("soft %v past hard %v", tm.soft, tm.hard)
			}
			if tm.hard > left && left > 20*time.Millisecond {
				t.Errorf("hard deadline %v exceeds the clock %v", tm.hard, left)
			}
			if tm.soft <= 0 {
				t.Errorf("soft deadline %v", tm.soft)
			}
		})
	}
}

func TestTimeManagerExtendCapsAtHard(t *testing.T) {
	var tm TimeManager
	tm.Init(Limits{Time: [2]time.Duration{10 * time.Second, 0}}, board.White, 40)
	for i := 0; i < 20; i++ {
		tm.Extend(50)
	}
	if tm.soft != tm.hard {
		t.Errorf("soft = %v after extending, want hard %v", tm.soft, tm.hard)
	}
}
