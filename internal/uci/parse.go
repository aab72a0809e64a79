package uci

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/engine"
)

const (
	maxHashMB         = 4096
	defaultOverheadMs = 30
)

// ProtocolSyntaxError is a command line the handler could not understand.
// It is logged and otherwise ignored.
type ProtocolSyntaxError struct {
	Line   string
	Reason string
}

func (e *ProtocolSyntaxError) Error() string {
	return fmt.Sprintf("uci: %s: %q", e.Reason, e.Line)
}

// parsePosition reads "startpos|fen <fen> [moves m1 m2 ...]". It returns the
// resulting position and the hashes of every position before it.
func parsePosition(args []string) (*board.Position, []uint64, error) {
	line := "position " + strings.Join(args, " ")
	if len(args) == 0 {
		return nil, nil, &ProtocolSyntaxError{Line: line, Reason: "missing startpos or fen"}
	}

	var pos *board.Position
	rest := args[1:]
	switch args[0] {
	case "startpos":
		pos = board.NewPosition()
	case "fen":
		end := len(rest)
		for i, a := range rest {
			if a == "moves" {
				end = i
				break
			}
		}
		var err error
		if pos, err = board.ParseFEN(strings.Join(rest[:end], " ")); err != nil {
			return nil, nil, err
		}
		rest = rest[end:]
	default:
		return nil, nil, &ProtocolSyntaxError{Line: line, Reason: "missing startpos or fen"}
	}

	if len(rest) == 0 {
		return pos, nil, nil
	}
	if rest[0] != "moves" {
		return nil, nil, &ProtocolSyntaxError{Line: line, Reason: "unexpected " + rest[0]}
	}
	history := make([]uint64, 0, len(rest)-1)
	for _, s := range rest[1:] {
		m, err := pos.ParseMove(s)
		if err != nil {
			return nil, nil, err
		}
		history = append(history, pos.Hash)
		pos.MakeMove(m)
		// Positions before an irreversible move can never repeat.
		if pos.HalfMoveClock == 0 {
			history = history[:0]
		}
	}
	return pos, history, nil
}

var goKeywords = map[string]bool{
	"searchmoves": true, "ponder": true, "wtime": true, "btime": true,
	"winc": true, "binc": true, "movestogo": true, "depth": true,
	"nodes": true, "mate": true, "movetime": true, "infinite": true,
}

// parseGo turns the arguments of "go" into search limits. Times are in
// milliseconds on the wire.
func parseGo(args []string) (engine.Limits, error) {
	var l engine.Limits
	line := "go " + strings.Join(args, " ")

	for i := 0; i < len(args); i++ {
		key := args[i]
		switch key {
		case "infinite":
			l.Infinite = true
			continue
		case "ponder":
			// Pondering is not offered; search the position as given.
			continue
		case "searchmoves":
			// Restricting the root is unsupported. Skip the move list.
			for i+1 < len(args) && !goKeywords[args[i+1]] {
				i++
			}
			continue
		}

		if i+1 >= len(args) {
			return l, &ProtocolSyntaxError{Line: line, Reason: "missing value for " + key}
		}
		n, err := strconv.ParseInt(args[i+1], 10, 64)
		if err != nil {
			return l, &ProtocolSyntaxError{Line: line, Reason: "bad value for " + key}
		}
		i++

		// Clocks can go negative in some GUIs when a player is in time trouble.
		ms := time.Duration(max(n, 0)) * time.Millisecond
		switch key {
		case "depth":
			l.Depth = int(max(n, 1))
		case "nodes":
			l.Nodes = uint64(max(n, 1))
		case "movetime":
			l.MoveTime = max(ms, time.Millisecond)
		case "wtime":
			l.Time[board.White] = max(ms, time.Millisecond)
		case "btime":
			l.Time[board.Black] = max(ms, time.Millisecond)
		case "winc":
			l.Inc[board.White] = ms
		case "binc":
			l.Inc[board.Black] = ms
		case "movestogo":
			l.MovesToGo = int(max(n, 0))
		case "mate":
			// A mate in n is found within 2n-1 plies.
			if d := int(max(2*n-1, 1)); l.Depth == 0 || d < l.Depth {
				l.Depth = d
			}
		default:
			return l, &ProtocolSyntaxError{Line: line, Reason: "unsupported go parameter " + key}
		}
	}
	return l, nil
}

// parseSetOption splits "name <words...> [value <words...>]".
func parseSetOption(args []string) (name, value string, err error) {
	line := "setoption " + strings.Join(args, " ")
	if len(args) < 2 || args[0] != "name" {
		return "", "", &ProtocolSyntaxError{Line: line, Reason: "expected name"}
	}
	var nameParts, valueParts []string
	inValue := false
	for _, a := range args[1:] {
		switch {
		case a == "value" && !inValue:
			inValue = true
		case inValue:
			valueParts = append(valueParts, a)
		default:
			nameParts = append(nameParts, a)
		}
	}
	if len(nameParts) == 0 {
		return "", "", &ProtocolSyntaxError{Line: line, Reason: "empty option name"}
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " "), nil
}

func (h *Handler) handleSetOption(args []string) error {
	name, value, err := parseSetOption(args)
	if err != nil {
		return err
	}
	line := "setoption " + strings.Join(args, " ")

	spin := func(lo, hi int) (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil || n < lo || n > hi {
			return 0, &ProtocolSyntaxError{Line: line, Reason: fmt.Sprintf("%s must be within [%d, %d]", name, lo, hi)}
		}
		return n, nil
	}

	switch strings.ToLower(name) {
	case "hash":
		mb, err := spin(1, maxHashMB)
		if err != nil {
			return err
		}
		h.eng.SetHashSize(mb)
	case "threads":
		if _, err := spin(1, 1); err != nil {
			return err
		}
	case "move overhead":
		ms, err := spin(0, 5000)
		if err != nil {
			return err
		}
		h.eng.SetMoveOverhead(time.Duration(ms) * time.Millisecond)
	case "clear hash":
		h.eng.ClearHash()
	default:
		return &ProtocolSyntaxError{Line: line, Reason: "unknown option " + name}
	}
	h.log.WithField("option", name).WithField("value", value).Debug("option set")
	return nil
}
