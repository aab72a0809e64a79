// Package coupler launches UCI engines, either as child processes or inside
// the current process, and drives them through a common Handle.
package coupler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hailam/cactus/internal/engine"
	"github.com/hailam/cactus/internal/uci"
)

// InProcess is the Config.Path that selects the built-in engine.
const InProcess = "builtin"

const (
	defaultHandshakeTimeout = 5 * time.Second
	shutdownGrace           = 2 * time.Second
	historySize             = 32
)

// Config describes one engine.
type Config struct {
	Name string
	Path string
	Args []string
	Dir  string
	Env  []string // added to the inherited environment

	// InitString is sent verbatim before the handshake.
	InitString string

	// Options are sent as setoption commands during the handshake.
	Options map[string]string

	// Stderr receives the engine's standard error. Nil discards it.
	Stderr io.Writer

	HandshakeTimeout time.Duration

	// HashMB sizes the built-in engine's table. Ignored for child processes.
	HashMB int
}

func (c Config) name() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Path
}

// State is the protocol state of a handle.
type State int32

const (
	Launched State = iota
	Initialized
	Ready
	Thinking
	Closed
)

func (s State) String() string {
	return [...]string{"launched", "initialized", "ready", "thinking", "closed"}[s]
}

// Handle is one running engine. Handles share nothing, so a crash in one
// never affects another. A Handle serves one caller at a time.
type Handle struct {
	cfg Config
	pid int // 0 for the in-process engine
	log *logrus.Entry

	wmu sync.Mutex
	w   *bufio.Writer
	in  io.Closer

	lines <-chan string
	state atomic.Int32

	exited  chan struct{}
	exitErr error
	kill    func() error

	quitting  atomic.Bool
	closing   chan struct{} // closed when Shutdown has finished
	closeOnce sync.Once
	closeErr  error

	hmu     sync.Mutex
	history []string
}

// Open starts cfg as a child process, or in-process when cfg.Path is InProcess.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	if cfg.Path == InProcess {
		hash := cfg.HashMB
		if hash <= 0 {
			hash = engine.DefaultHashMB
		}
		return LaunchInProcess(ctx, cfg, engine.New(hash))
	}
	return Launch(ctx, cfg)
}

// Launch spawns the engine executable and completes the UCI handshake.
func Launch(ctx context.Context, cfg Config) (*Handle, error) {
	path, err := exec.LookPath(cfg.Path)
	if err != nil {
		return nil, &ProcessSpawnError{Path: cfg.Path, Err: err}
	}

	cmd := exec.Command(path, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), cfg.Env...)
	}
	cmd.Stderr = cfg.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ProcessSpawnError{Path: path, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessSpawnError{Path: path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &ProcessSpawnError{Path: path, Err: err}
	}

	h := newHandle(cfg, stdin, cmd.Process.Pid)
	h.kill = cmd.Process.Kill
	h.start(stdout, cmd.Wait)
	h.log.WithField("pid", h.pid).Debug("engine started")

	if err := h.handshake(ctx); err != nil {
		h.Shutdown(context.Background())
		return nil, err
	}
	return h, nil
}

// LaunchInProcess runs eng behind a uci.Handler connected by pipes, so it is
// driven through exactly the same protocol as a child process.
func LaunchInProcess(ctx context.Context, cfg Config, eng *engine.Engine) (*Handle, error) {
	if cfg.Name == "" {
		cfg.Name = uci.EngineName
	}
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	runCtx, cancel := context.WithCancel(context.Background())
	h := newHandle(cfg, inW, 0)
	h.kill = func() error {
		cancel()
		return nil
	}

	handler := uci.New(eng, inR, outW)
	handler.SetLogger(h.log)
	runErr := make(chan error, 1)
	go func() {
		err := handler.Run(runCtx)
		outW.Close()
		inR.Close()
		runErr <- err
	}()
	h.start(outR, func() error {
		err := <-runErr
		cancel()
		return err
	})

	if err := h.handshake(ctx); err != nil {
		h.Shutdown(context.Background())
		return nil, err
	}
	return h, nil
}

func newHandle(cfg Config, stdin io.WriteCloser, pid int) *Handle {
	return &Handle{
		cfg:     cfg,
		pid:     pid,
		log:     logrus.WithField("engine", cfg.name()),
		w:       bufio.NewWriter(stdin),
		in:      stdin,
		exited:  make(chan struct{}),
		closing: make(chan struct{}),
	}
}

// start reads stdout on its own goroutine until EOF, then reaps the engine.
func (h *Handle) start(stdout io.Reader, wait func() error) {
	raw := make(chan string)
	h.lines = unbounded(raw, h.closing)
	go func() {
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			h.log.Tracef("> %s", line)
			select {
			case raw <- line:
			case <-h.closing:
				// Nobody reads after Shutdown; drain to EOF.
			}
		}
		err := wait()
		if err == nil {
			err = errUnexpectedExit
		}
		h.exitErr = err
		close(h.exited)
		close(raw)
	}()
}

func (h *Handle) handshake(ctx context.Context) error {
	timeout := h.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	if h.cfg.InitString != "" {
		if err := h.Send(h.cfg.InitString); err != nil {
			return err
		}
	}

	if err := h.Send("uci"); err != nil {
		return err
	}
	if _, err := h.await(ctx, reUCIOK, timeout, "uci handshake"); err != nil {
		return err
	}
	h.state.Store(int32(Initialized))

	names := make([]string, 0, len(h.cfg.Options))
	for name := range h.cfg.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.Send(fmt.Sprintf("setoption name %s value %s", name, h.cfg.Options[name])); err != nil {
			return err
		}
	}

	if err := h.Sync(ctx, timeout); err != nil {
		return err
	}
	h.state.Store(int32(Ready))
	return nil
}

var (
	reUCIOK    = regexp.MustCompile(`^uciok$`)
	reReadyOK  = regexp.MustCompile(`^readyok$`)
	reBestMove = regexp.MustCompile(`^bestmove\s`)
)

// Name returns the configured engine name.
func (h *Handle) Name() string { return h.cfg.name() }

// PID returns the process id, or 0 for an in-process engine.
func (h *Handle) PID() int { return h.pid }

func (h *Handle) State() State { return State(h.state.Load()) }

// Send writes one command line.
func (h *Handle) Send(cmd string) error {
	if h.quitting.Load() {
		return ErrClosed
	}
	select {
	case <-h.exited:
		return &ProcessCrashError{Name: h.Name(), Err: h.exitErr}
	default:
	}
	return h.write(cmd)
}

func (h *Handle) write(cmd string) error {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	h.log.Tracef("< %s", cmd)
	h.remember(cmd)
	if _, err := h.w.WriteString(cmd + "\n"); err != nil {
		return h.writeError(err)
	}
	if err := h.w.Flush(); err != nil {
		return h.writeError(err)
	}
	return nil
}

func (h *Handle) writeError(err error) error {
	if h.quitting.Load() {
		return ErrClosed
	}
	return &ProcessCrashError{Name: h.Name(), Err: err}
}

func (h *Handle) remember(cmd string) {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	if len(h.history) == historySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:historySize-1]
	}
	h.history = append(h.history, cmd)
}

// History returns the most recent commands sent, oldest first.
func (h *Handle) History() []string {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	return append([]string(nil), h.history...)
}

// Responses is the engine's output, one trimmed line per value. The stream
// is unbounded, is closed when the engine exits, and cannot be restarted.
// Await and RequestMove read from the same stream.
func (h *Handle) Responses() <-chan string {
	return h.lines
}

// Await discards lines until one matches pattern and returns it.
func (h *Handle) Await(pattern *regexp.Regexp, timeout time.Duration) (string, error) {
	return h.await(context.Background(), pattern, timeout, "await "+pattern.String())
}

func (h *Handle) await(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration, op string) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "", &TimeoutError{Op: op, After: timeout}
		case line, ok := <-h.lines:
			if !ok {
				return "", h.goneError()
			}
			if pattern.MatchString(line) {
				return line, nil
			}
		}
	}
}

func (h *Handle) goneError() error {
	if h.quitting.Load() {
		return ErrClosed
	}
	h.log.WithField("recent", h.History()).WithError(h.exitErr).Warn("engine exited")
	h.state.Store(int32(Closed))
	return &ProcessCrashError{Name: h.Name(), Err: h.exitErr}
}

// Sync sends isready and waits for readyok.
func (h *Handle) Sync(ctx context.Context, timeout time.Duration) error {
	if err := h.Send("isready"); err != nil {
		return err
	}
	_, err := h.await(ctx, reReadyOK, timeout, "isready")
	return err
}

// NewGame tells the engine a new game starts and waits until it is ready.
func (h *Handle) NewGame(ctx context.Context) error {
	if err := h.Send("ucinewgame"); err != nil {
		return err
	}
	return h.Sync(ctx, defaultHandshakeTimeout)
}

// Shutdown asks the engine to quit, waits a bounded time and then kills it.
// It is safe to call more than once; later calls return the first result.
func (h *Handle) Shutdown(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.quitting.Store(true)
		h.state.Store(int32(Closed))
		// A wedged engine may not read its input, so the write must not
		// hold up the deadline below. Killing it unblocks the write.
		go h.write("quit")

		grace := time.NewTimer(shutdownGrace)
		defer grace.Stop()
		select {
		case <-h.exited:
		case <-grace.C:
			h.log.Warn("engine ignored quit, killing it")
			h.closeErr = h.kill()
		case <-ctx.Done():
			h.closeErr = h.kill()
		}
		h.in.Close()
		<-h.exited
		close(h.closing)
		h.log.Debug("engine stopped")
	})
	return h.closeErr
}

// Exited is closed once the engine has terminated.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}
