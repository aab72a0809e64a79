package coupler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGrace   = time.Second
	untimedTimeout = 5 * time.Minute
	stopGrace      = time.Second
)

// Budget limits one move request. Zero fields are omitted from the go command.
type Budget struct {
	Depth     int
	Nodes     uint64
	MoveTime  time.Duration
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int

	// Grace is added to the time budget before the request times out.
	Grace time.Duration

	// Timeout overrides the derived deadline when set.
	Timeout time.Duration
}

func (b Budget) goCommand() string {
	var sb strings.Builder
	sb.WriteString("go")
	add := func(key string, v int64) {
		if v > 0 {
			fmt.Fprintf(&sb, " %s %d", key, v)
		}
	}
	add("wtime", b.WTime.Milliseconds())
	add("btime", b.BTime.Milliseconds())
	add("winc", b.WInc.Milliseconds())
	add("binc", b.BInc.Milliseconds())
	add("movestogo", int64(b.MovesToGo))
	add("movetime", b.MoveTime.Milliseconds())
	add("depth", int64(b.Depth))
	add("nodes", int64(b.Nodes))
	return sb.String()
}

// deadline is how long to wait for bestmove. The engine's own clock is not
// known here, so the larger one bounds the wait.
func (b Budget) deadline() time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	grace := b.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	switch {
	case b.MoveTime > 0:
		return b.MoveTime + grace
	case b.WTime > 0 || b.BTime > 0:
		return max(b.WTime, b.BTime) + grace
	}
	return untimedTimeout
}

// Score is an engine's evaluation as reported on an info line.
type Score struct {
	Mate  bool
	Value int // centipawns, or moves to mate when Mate is set
}

func (s Score) String() string {
	if s.Mate {
		return fmt.Sprintf("mate %d", s.Value)
	}
	return fmt.Sprintf("cp %d", s.Value)
}

// Info is the parsed content of an info line.
type Info struct {
	Depth    int
	SelDepth int
	Score    Score
	HasScore bool
	Nodes    uint64
	NPS      uint64
	Time     time.Duration
	PV       []string
	Raw      string
}

// ParseInfo reads the fields of an "info ..." line that the match runner and
// the server care about. Unknown fields are skipped.
func ParseInfo(line string) Info {
	info := Info{Raw: line}
	f := strings.Fields(line)
	num := func(i int) int64 {
		if i >= len(f) {
			return 0
		}
		n, _ := strconv.ParseInt(f[i], 10, 64)
		return n
	}
	for i := 1; i < len(f); i++ {
		switch f[i] {
		case "depth":
			info.Depth = int(num(i + 1))
			i++
		case "seldepth":
			info.SelDepth = int(num(i + 1))
			i++
		case "nodes":
			info.Nodes = uint64(num(i + 1))
			i++
		case "nps":
			info.NPS = uint64(num(i + 1))
			i++
		case "time":
			info.Time = time.Duration(num(i+1)) * time.Millisecond
			i++
		case "score":
			if i+2 < len(f) {
				info.Score = Score{Mate: f[i+1] == "mate", Value: int(num(i + 2))}
				info.HasScore = true
				i += 2
			}
		case "pv":
			info.PV = append([]string(nil), f[i+1:]...)
			i = len(f)
		case "string":
			i = len(f)
		}
	}
	return info
}

// Move is an engine's answer to RequestMove.
type Move struct {
	BestMove string // "0000" when the engine had no legal move
	Ponder   string
	Info     Info // last info line carrying a score
	Elapsed  time.Duration
}

// PositionCommand builds the position command for fen (empty or "startpos"
// for the initial position) followed by moves.
func PositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if fen == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen " + fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves " + strings.Join(moves, " "))
	}
	return sb.String()
}

// RequestMove sets up the position, starts a search within b and waits for
// bestmove. On timeout the engine is told to stop and a *TimeoutError is
// returned.
func (h *Handle) RequestMove(ctx context.Context, fen string, moves []string, b Budget) (Move, error) {
	return h.RequestMoveFunc(ctx, fen, moves, b, nil)
}

// RequestMoveFunc is RequestMove with every info line passed to onInfo.
func (h *Handle) RequestMoveFunc(ctx context.Context, fen string, moves []string, b Budget, onInfo func(Info)) (Move, error) {
	if err := h.Send(PositionCommand(fen, moves)); err != nil {
		return Move{}, err
	}
	start := time.Now()
	if err := h.Send(b.goCommand()); err != nil {
		return Move{}, err
	}
	h.state.Store(int32(Thinking))

	limit := b.deadline()
	timer := time.NewTimer(limit)
	defer timer.Stop()

	var last Info
	for {
		select {
		case <-ctx.Done():
			h.abandon()
			return Move{}, ctx.Err()
		case <-timer.C:
			h.log.WithField("after", limit).Warn("no bestmove, sending stop")
			h.abandon()
			return Move{}, &TimeoutError{Op: "bestmove", After: limit}
		case line, ok := <-h.lines:
			if !ok {
				return Move{}, h.goneError()
			}
			switch {
			case strings.HasPrefix(line, "info "):
				info := ParseInfo(line)
				if info.HasScore {
					last = info
				}
				if onInfo != nil {
					onInfo(info)
				}
			case reBestMove.MatchString(line):
				f := strings.Fields(line)
				m := Move{BestMove: f[1], Info: last, Elapsed: time.Since(start)}
				if len(f) >= 4 && f[2] == "ponder" {
					m.Ponder = f[3]
				}
				h.state.Store(int32(Ready))
				return m, nil
			}
		}
	}
}

// abandon stops a search whose result is no longer wanted and swallows its
// bestmove, so the next request does not read a stale answer.
func (h *Handle) abandon() {
	if err := h.Send("stop"); err != nil {
		return
	}
	if _, err := h.await(context.Background(), reBestMove, stopGrace, "stop"); err == nil {
		h.state.Store(int32(Ready))
	}
}
