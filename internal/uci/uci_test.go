package uci

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/engine"
)

// recorder collects output lines and lets a test wait for one.
type recorder struct {
	mu    sync.Mutex
	lines []string
	ch    chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 4096)}
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		r.lines = append(r.lines, l)
		r.ch <- l
	}
	return len(p), nil
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) waitFor(t *testing.T, prefix string, timeout time.Duration) string {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case l := <-r.ch:
			if strings.HasPrefix(l, prefix) {
				return l
			}
		case <-deadline:
			t.Fatalf("no %q line within %v; got %q", prefix, timeout, r.all())
			return ""
		}
	}
}

func bestmoves(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.HasPrefix(l, "bestmove") {
			out = append(out, l)
		}
	}
	return out
}

// runScript feeds a complete script and waits for Run to return.
func runScript(t *testing.T, script string) []string {
	t.Helper()
	rec := newRecorder()
	h := New(engine.New(4), strings.NewReader(script), rec)
	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	return rec.all()
}

func TestHandshake(t *testing.T) {
	out := runScript(t, "uci\nisready\nquit\n")
	want := []string{"id name Cactus", "option name Hash type spin", "uciok", "readyok"}
	joined := strings.Join(out, "\n")
	for _, w := range want {
		if !strings.Contains(joined, w) {
			t.Errorf("output lacks %q:\n%s", w, joined)
		}
	}
}

func TestGoDepthOneEmitsOneLegalBestmove(t *testing.T) {
	out := runScript(t, "uci\nposition startpos\ngo depth 1\n")
	bms := bestmoves(out)
	if len(bms) != 1 {
		t.Fatalf("got %d bestmove lines, want 1: %q", len(bms), out)
	}
	fields := strings.Fields(bms[0])
	if _, err := board.NewPosition().ParseMove(fields[1]); err != nil {
		t.Errorf("bestmove %s: %v", fields[1], err)
	}
	var sawInfo bool
	for _, l := range out {
		if strings.HasPrefix(l, "info depth 1 ") && strings.Contains(l, " pv ") {
			sawInfo = true
		}
	}
	if !sawInfo {
		t.Errorf("no info line for depth 1: %q", out)
	}
}

func TestPositionWithMoves(t *testing.T) {
	out := runScript(t, "position startpos moves e2e4 e7e5 g1f3\nd\n")
	want := "Fen: rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2"
	if !strings.Contains(strings.Join(out, "\n"), want) {
		t.Errorf("d output lacks %q: %q", want, out)
	}
}

func TestBadPositionKeepsPrevious(t *testing.T) {
	out := runScript(t, strings.Join([]string{
		"position startpos moves e2e4",
		"position fen not/a/fen w - - 0 1",
		"position startpos moves e2e5",
		"d",
	}, "\n")+"\n")
	joined := strings.Join(out, "\n")
	if !strings.Contains(joined, "Fen: rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1") {
		t.Errorf("position was replaced by a bad command: %q", out)
	}
	if n := strings.Count(joined, "info string"); n != 2 {
		t.Errorf("got %d info string replies, want 2: %q", n, out)
	}
}

func TestImpossibleEnPassantIsRejected(t *testing.T) {
	out := runScript(t, strings.Join([]string{
		"position startpos",
		"position fen 4k3/8/8/3P4/8/8/8/4K3 w - e6 0 1 moves d5e6",
		"go depth 1",
	}, "\n")+"\n")
	bms := bestmoves(out)
	if len(bms) != 1 {
		t.Fatalf("bestmove lines = %q, want one", bms)
	}
	// The start position stayed current.
	pos := board.NewPosition()
	if _, err := pos.ParseMove(strings.Fields(bms[0])[1]); err != nil {
		t.Errorf("%s is not legal in the start position", bms[0])
	}
}

func TestGoPonderStillAnswers(t *testing.T) {
	out := runScript(t, "position startpos\ngo ponder depth 1\ngo searchmoves e2e4 depth 1\ngo mate 1\n")
	if bms := bestmoves(out); len(bms) != 3 {
		t.Errorf("bestmove lines = %q, want 3", bms)
	}
}

func TestNoLegalMovesBestmove(t *testing.T) {
	out := runScript(t, "position fen rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3\ngo depth 3\n")
	bms := bestmoves(out)
	if len(bms) != 1 || bms[0] != "bestmove 0000" {
		t.Errorf("bestmove lines = %q, want [bestmove 0000]", bms)
	}
}

func TestPerftCommand(t *testing.T) {
	out := runScript(t, "position startpos\nperft 2\n")
	if !strings.Contains(strings.Join(out, "\n"), "Nodes searched: 400") {
		t.Errorf("perft 2 output: %q", out)
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	out := runScript(t, "xyzzy\ngo wibble 3\nisready\n")
	if len(out) != 1 || out[0] != "readyok" {
		t.Errorf("output = %q, want only readyok", out)
	}
}

func TestInfiniteUntilStop(t *testing.T) {
	inR, inW := io.Pipe()
	rec := newRecorder()
	h := New(engine.New(4), inR, rec)
	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()

	io.WriteString(inW, "position startpos\ngo infinite\n")
	rec.waitFor(t, "info depth 1", 2*time.Second)

	// Searching: these are rejected, isready still answers.
	io.WriteString(inW, "position fen 4k3/8/8/8/8/8/8/4K3 w - - 0 1\nucinewgame\nisready\n")
	rec.waitFor(t, "readyok", time.Second)
	if bms := bestmoves(rec.all()); len(bms) != 0 {
		t.Fatalf("bestmove before stop: %q", bms)
	}

	start := time.Now()
	io.WriteString(inW, "stop\n")
	line := rec.waitFor(t, "bestmove", 2*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("bestmove came %v after stop", elapsed)
	}
	if _, err := board.NewPosition().ParseMove(strings.Fields(line)[1]); err != nil {
		t.Errorf("%s: %v", line, err)
	}

	io.WriteString(inW, "d\nquit\n")
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	joined := strings.Join(rec.all(), "\n")
	if !strings.Contains(joined, "Fen: "+board.StartFEN) {
		t.Error("position changed while searching")
	}
	if n := strings.Count(joined, "ignored while searching"); n != 2 {
		t.Errorf("got %d rejections, want 2", n)
	}
	if n := len(bestmoves(rec.all())); n != 1 {
		t.Errorf("got %d bestmove lines, want 1", n)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()
	rec := newRecorder()
	h := New(engine.New(4), inR, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	io.WriteString(inW, "go infinite\n")
	rec.waitFor(t, "info depth 1", 2*time.Second)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := len(bestmoves(rec.all())); n != 1 {
		t.Errorf("got %d bestmove lines, want 1", n)
	}
}

func TestParseGo(t *testing.T) {
	tests := []struct {
		args    string
		want    engine.Limits
		wantErr bool
	}{
		{"depth 6", engine.Limits{Depth: 6}, false},
		{"nodes 5000", engine.Limits{Nodes: 5000}, false},
		{"movetime 250", engine.Limits{MoveTime: 250 * time.Millisecond}, false},
		{"infinite", engine.Limits{Infinite: true}, false},
		{
			"wtime 60000 btime 50000 winc 1000 binc 500 movestogo 20",
			engine.Limits{
				Time:      [2]time.Duration{60 * time.Second, 50 * time.Second},
				Inc:       [2]time.Duration{time.Second, 500 * time.Millisecond},
				MovesToGo: 20,
			},
			false,
		},
		{"wtime -200 btime 100", engine.Limits{Time: [2]time.Duration{time.Millisecond, 100 * time.Millisecond}}, false},
		{"", engine.Limits{}, false},
		{"depth", engine.Limits{}, true},
		{"depth x", engine.Limits{}, true},
		{"ponder", engine.Limits{}, false},
		{"ponder wtime 1000 btime 1000", engine.Limits{Time: [2]time.Duration{time.Second, time.Second}}, false},
		{"searchmoves e2e4 d2d4 depth 3", engine.Limits{Depth: 3}, false},
		{"searchmoves e2e4", engine.Limits{}, false},
		{"mate 2", engine.Limits{Depth: 3}, false},
		{"depth 2 mate 3", engine.Limits{Depth: 2}, false},
		{"mate", engine.Limits{}, true},
		{"bogus 1", engine.Limits{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			got, err := parseGo(strings.Fields(tt.args))
			if tt.wantErr {
				var syn *ProtocolSyntaxError
				if !errors.As(err, &syn) {
					t.Errorf("err = %v, want ProtocolSyntaxError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseGo: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseGo = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseSetOption(t *testing.T) {
	tests := []struct {
		args        string
		name, value string
		wantErr     bool
	}{
		{"name Hash value 128", "Hash", "128", false},
		{"name Move Overhead value 50", "Move Overhead", "50", false},
		{"name Clear Hash", "Clear Hash", "", false},
		{"value 3", "", "", true},
		{"name", "", "", true},
	}
	for _, tt := range tests {
		name, value, err := parseSetOption(strings.Fields(tt.args))
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.args, err)
			continue
		}
		if name != tt.name || value != tt.value {
			t.Errorf("%q: got (%q, %q), want (%q, %q)", tt.args, name, value, tt.name, tt.value)
		}
	}
}

func TestParsePositionHistory(t *testing.T) {
	pos, hist, err := parsePosition(strings.Fields("startpos moves g1f3 g8f6 f3g1 f6g8"))
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 4 {
		t.Fatalf("history has %d entries, want 4", len(hist))
	}
	if hist[0] != pos.Hash {
		t.Error("start position hash missing from history")
	}

	_, hist, err = parsePosition(strings.Fields("startpos moves g1f3 g8f6 e2e4"))
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 0 {
		t.Errorf("history before a pawn move kept %d entries", len(hist))
	}

	var illegal *board.IllegalMoveError
	if _, _, err := parsePosition(strings.Fields("startpos moves e2e5")); !errors.As(err, &illegal) {
		t.Errorf("err = %v, want IllegalMoveError", err)
	}
	var malformed *board.MalformedPositionError
	if _, _, err := parsePosition(strings.Fields("fen 8/8/8 w - - 0 1")); !errors.As(err, &malformed) {
		t.Errorf("err = %v, want MalformedPositionError", err)
	}
}
