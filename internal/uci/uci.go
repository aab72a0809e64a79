// Package uci implements the engine side of the Universal Chess Interface.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/engine"
)

const (
	EngineName   = "Cactus"
	EngineAuthor = "the Cactus authors"
)

// State is the protocol state of a Handler.
type State int32

const (
	Uninitialized State = iota
	Ready
	Positioned
	Searching
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Positioned:
		return "positioned"
	case Searching:
		return "searching"
	}
	return "uninitialized"
}

// Handler reads UCI commands from in and writes replies to out. The search
// runs on its own goroutine so that stop and isready are answered while it
// thinks.
type Handler struct {
	eng *engine.Engine
	in  io.Reader
	log logrus.FieldLogger

	outMu sync.Mutex
	out   io.Writer

	pos     *board.Position
	history []uint64 // hashes of the positions before pos
	debug   bool
	state   atomic.Int32

	// Set from go until the next stop.
	infinite bool
	cancel   context.CancelFunc
	release  chan struct{} // closed by stop to let an infinite search report
	done     chan struct{}
}

// New returns a handler driving eng.
func New(eng *engine.Engine, in io.Reader, out io.Writer) *Handler {
	h := &Handler{
		eng: eng,
		in:  in,
		out: out,
		log: logrus.WithField("component", "uci"),
		pos: board.NewPosition(),
	}
	eng.OnInfo = h.sendInfo
	eng.SetMoveOverhead(defaultOverheadMs * time.Millisecond)
	return h
}

// SetLogger replaces the logger. Protocol output never goes to the logger.
func (h *Handler) SetLogger(l logrus.FieldLogger) {
	h.log = l
}

func (h *Handler) State() State {
	return State(h.state.Load())
}

func (h *Handler) setState(s State) {
	h.state.Store(int32(s))
}

// Run processes commands until quit, end of input or cancellation of ctx.
// A search still running at end of input is allowed to finish, unless it is
// infinite.
func (h *Handler) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(h.in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			h.stop()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				h.finish()
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if quit := h.Execute(line); quit {
				return nil
			}
		}
	}
}

// Execute handles a single command line and reports whether it was quit.
func (h *Handler) Execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	h.log.WithField("line", line).Trace("recv")

	cmd, args := fields[0], fields[1:]
	var err error
	switch cmd {
	case "uci":
		h.handleUCI()
	case "debug":
		err = h.handleDebug(args)
	case "isready":
		h.send("readyok")
	case "setoption":
		if h.rejectWhileSearching(cmd) {
			return false
		}
		err = h.handleSetOption(args)
	case "ucinewgame":
		if h.rejectWhileSearching(cmd) {
			return false
		}
		h.eng.NewGame()
		h.pos = board.NewPosition()
		h.history = h.history[:0]
		h.setState(Ready)
	case "position":
		if h.rejectWhileSearching(cmd) {
			return false
		}
		err = h.handlePosition(args)
	case "go":
		if h.rejectWhileSearching(cmd) {
			return false
		}
		err = h.handleGo(args)
	case "stop":
		h.stop()
	case "ponderhit":
		// Pondering is not offered, so there is nothing to convert.
	case "quit":
		h.stop()
		return true
	case "d":
		h.send("%s", strings.TrimRight(h.pos.String(), "\n"))
	case "perft":
		err = h.handlePerft(args)
	case "eval":
		h.send("info string eval %s (side to move)", engine.FormatScore(engine.Evaluate(h.pos)))
	default:
		err = &ProtocolSyntaxError{Line: line, Reason: "unknown command"}
	}

	if err != nil {
		h.report(err)
	}
	return false
}

// report logs a command failure and, for position problems, tells the GUI.
func (h *Handler) report(err error) {
	var syn *ProtocolSyntaxError
	if errors.As(err, &syn) {
		h.log.WithError(err).Warn("ignoring command")
		if h.debug {
			h.send("info string %v", err)
		}
		return
	}
	h.log.WithError(err).Warn("command failed")
	h.send("info string %v", err)
}

func (h *Handler) rejectWhileSearching(cmd string) bool {
	if h.State() != Searching {
		return false
	}
	h.log.WithField("command", cmd).Warn("rejected while searching")
	h.send("info string %s ignored while searching", cmd)
	return true
}

func (h *Handler) send(format string, a ...any) {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	line := fmt.Sprintf(format, a...)
	h.log.WithField("line", line).Trace("send")
	fmt.Fprintln(h.out, line)
}

func (h *Handler) handleUCI() {
	h.send("id name %s", EngineName)
	h.send("id author %s", EngineAuthor)
	h.send("option name Hash type spin default %d min 1 max %d", engine.DefaultHashMB, maxHashMB)
	h.send("option name Threads type spin default 1 min 1 max 1")
	h.send("option name Move Overhead type spin default %d min 0 max 5000", defaultOverheadMs)
	h.send("option name Clear Hash type button")
	h.send("uciok")
	if h.State() == Uninitialized {
		h.setState(Ready)
	}
}

func (h *Handler) handleDebug(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return &ProtocolSyntaxError{Line: "debug " + strings.Join(args, " "), Reason: "expected on or off"}
	}
	h.debug = args[0] == "on"
	return nil
}

func (h *Handler) handlePosition(args []string) error {
	pos, history, err := parsePosition(args)
	if err != nil {
		return err
	}
	h.pos, h.history = pos, history
	h.setState(Positioned)
	return nil
}

func (h *Handler) handleGo(args []string) error {
	limits, err := parseGo(args)
	if err != nil {
		return err
	}
	h.stop()

	h.eng.SetHistory(h.history)
	pos := h.pos.Copy()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.release = make(chan struct{})
	h.done = make(chan struct{})
	h.infinite = limits.Infinite
	h.setState(Searching)

	go h.search(ctx, pos, limits, h.release, h.done)
	return nil
}

func (h *Handler) search(ctx context.Context, pos *board.Position, l engine.Limits, release, done chan struct{}) {
	defer close(done)
	res := h.eng.Search(ctx, pos, l)

	// An infinite search must not answer before the GUI says stop.
	if l.Infinite {
		<-release
	}

	h.setState(Positioned)
	if res.Move == board.NoMove {
		h.send("info string no legal moves (%s)", res.Status)
		h.send("bestmove 0000")
	} else if res.Ponder != board.NoMove {
		h.send("bestmove %s ponder %s", res.Move, res.Ponder)
	} else {
		h.send("bestmove %s", res.Move)
	}
}

// stop cancels a running search and returns after its bestmove was written.
func (h *Handler) stop() {
	if h.done == nil {
		return
	}
	h.cancel()
	close(h.release)
	<-h.done
	h.done, h.cancel, h.release = nil, nil, nil
}

// finish waits for a finite search at end of input and stops an infinite one.
func (h *Handler) finish() {
	if h.done != nil && !h.infinite {
		<-h.done
	}
	h.stop()
}

func (h *Handler) sendInfo(i engine.Info) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "info depth %d seldepth %d score %s nodes %d nps %d hashfull %d time %d",
		i.Depth, i.SelDepth, engine.FormatScore(i.Score), i.Nodes, i.NPS(), i.HashFull, i.Time.Milliseconds())
	if len(i.PV) > 0 {
		sb.WriteString(" pv")
		for _, m := range i.PV {
			sb.WriteString(" " + m.String())
		}
	}
	h.send("%s", sb.String())
}

func (h *Handler) handlePerft(args []string) error {
	if len(args) != 1 {
		return &ProtocolSyntaxError{Line: "perft " + strings.Join(args, " "), Reason: "expected a depth"}
	}
	depth, err := strconv.Atoi(args[0])
	if err != nil || depth < 1 {
		return &ProtocolSyntaxError{Line: "perft " + args[0], Reason: "bad depth"}
	}

	start := time.Now()
	var total uint64
	for _, e := range h.pos.Copy().Divide(depth) {
		h.send("%s: %d", e.Move, e.Nodes)
		total += e.Nodes
	}
	h.send("")
	h.send("Nodes searched: %d", total)
	h.log.WithFields(logrus.Fields{"depth": depth, "nodes": total, "time": time.Since(start)}).Debug("perft")
	return nil
}
