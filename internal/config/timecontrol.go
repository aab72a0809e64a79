package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeControl is a parsed "[moves/]base[+inc]" string, with base and
// increment in seconds.
type TimeControl struct {
	// MovesPerSession is 0 for sudden death.
	MovesPerSession int
	Base            time.Duration
	Inc             time.Duration
}

func (tc TimeControl) String() string {
	s := strconv.FormatFloat(tc.Base.Seconds(), 'f', -1, 64)
	if tc.Inc > 0 {
		s += "+" + strconv.FormatFloat(tc.Inc.Seconds(), 'f', -1, 64)
	}
	if tc.MovesPerSession > 0 {
		s = strconv.Itoa(tc.MovesPerSession) + "/" + s
	}
	return s
}

// ParseTimeControl reads time controls such as "10+0.1", "60" or "40/60+0.6".
func ParseTimeControl(s string) (TimeControl, error) {
	var tc TimeControl
	bad := func(why string) (TimeControl, error) {
		return TimeControl{}, fmt.Errorf("time control %q: %s", s, why)
	}

	rest := strings.TrimSpace(s)
	if moves, clock, found := strings.Cut(rest, "/"); found {
		n, err := strconv.Atoi(moves)
		if err != nil || n <= 0 {
			return bad("bad move count")
		}
		tc.MovesPerSession = n
		rest = clock
	}

	base, inc, hasInc := strings.Cut(rest, "+")
	secs, err := strconv.ParseFloat(base, 64)
	if err != nil || secs <= 0 {
		return bad("bad base time")
	}
	tc.Base = time.Duration(secs * float64(time.Second))

	if hasInc {
		incs, err := strconv.ParseFloat(inc, 64)
		if err != nil || incs < 0 {
			return bad("bad increment")
		}
		tc.Inc = time.Duration(incs * float64(time.Second))
	}
	return tc, nil
}
