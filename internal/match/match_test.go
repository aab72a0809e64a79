package match

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/tablebase"
)

const helperEnv = "MATCH_TEST_HELPER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode))
	}
	os.Exit(m.Run())
}

// runHelper is a scripted engine that always answers with the same move,
// or dies when asked to move.
func runHelper(mode string) int {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "uci":
			fmt.Println("uciok")
		case line == "isready":
			fmt.Println("readyok")
		case line == "quit":
			return 0
		case strings.HasPrefix(line, "go"):
			switch mode {
			case "crash":
				return 2
			case "sleepy":
				time.Sleep(2 * time.Second)
			}
			fmt.Println("bestmove e2e5")
		}
	}
	return 0
}

func scripted(t *testing.T, mode string) *coupler.Handle {
	t.Helper()
	h, err := coupler.Launch(context.Background(), coupler.Config{
		Name: mode,
		Path: os.Args[0],
		Env:  []string{helperEnv + "=" + mode},
	})
	if err != nil {
		t.Fatalf("Launch(%s): %v", mode, err)
	}
	t.Cleanup(func() { h.Shutdown(context.Background()) })
	return h
}

func builtin(t *testing.T, name string) *coupler.Handle {
	t.Helper()
	h, err := coupler.Open(context.Background(), coupler.Config{Name: name, Path: coupler.InProcess, HashMB: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Shutdown(context.Background()) })
	return h
}

func TestPlayMateInOne(t *testing.T) {
	white, black := builtin(t, "w"), builtin(t, "b")
	g, err := Play(context.Background(), white, black, Options{
		FEN:   "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
		Depth: 3,
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if g.Outcome != WhiteWins || g.Termination != Checkmate {
		t.Errorf("result = %v by %v, want 1-0 by checkmate", g.Outcome, g.Termination)
	}
	if len(g.Moves) != 1 || g.Moves[0].SAN != "Ra8#" {
		t.Errorf("moves = %+v, want Ra8#", g.Moves)
	}
	if g.ScoreFor("w") != 1 || g.ScoreFor("b") != 0 {
		t.Errorf("ScoreFor = %v, %v", g.ScoreFor("w"), g.ScoreFor("b"))
	}

	pgn, err := g.PGN()
	if err != nil {
		t.Fatalf("PGN: %v", err)
	}
	for _, want := range []string{`[White "w"]`, `[Result "1-0"]`, `[SetUp "1"]`, "Ra8#", "1-0"} {
		if !strings.Contains(pgn, want) {
			t.Errorf("PGN missing %q:\n%s", want, pgn)
		}
	}
}

func TestPlayAlreadyOver(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		out  Outcome
		term Termination
	}{
		{"stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", Draw, Stalemate},
		{"mated", "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", BlackWins, Checkmate},
		{"bare kings", "8/8/8/4k3/8/8/4K3/8 w - - 0 1", Draw, InsufficientMaterial},
		{"fifty moves", "8/8/8/4k3/8/8/3RK3/8 w - - 100 80", Draw, FiftyMove},
	}
	white, black := builtin(t, "w"), builtin(t, "b")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Play(context.Background(), white, black, Options{FEN: tt.fen, Depth: 1})
			if err != nil {
				t.Fatal(err)
			}
			if g.Outcome != tt.out || g.Termination != tt.term {
				t.Errorf("got %v by %v, want %v by %v", g.Outcome, g.Termination, tt.out, tt.term)
			}
			if len(g.Moves) != 0 {
				t.Errorf("%d moves played in a finished position", len(g.Moves))
			}
		})
	}
}

func TestPlayMoveLimit(t *testing.T) {
	var plies int
	g, err := Play(context.Background(), builtin(t, "a"), builtin(t, "b"), Options{
		Depth:    1,
		MaxPlies: 6,
		OnMove:   func(*Game, *board.Position) { plies++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.Termination != MoveLimit || len(g.Moves) != 6 || plies != 6 {
		t.Errorf("got %v after %d plies (%d callbacks)", g.Termination, len(g.Moves), plies)
	}

	// Every recorded move replays legally.
	pos := board.NewPosition()
	if err := pos.ApplyUCI(g.UCIMoves()...); err != nil {
		t.Errorf("replay: %v", err)
	}
}

func TestIllegalMoveLoses(t *testing.T) {
	g, err := Play(context.Background(), scripted(t, "illegal"), builtin(t, "b"), Options{Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if g.Outcome != BlackWins || g.Termination != IllegalMove || g.Detail != "e2e5" {
		t.Errorf("got %v by %v (%s)", g.Outcome, g.Termination, g.Detail)
	}
	if g.Reason() != "illegal move: e2e5" {
		t.Errorf("Reason() = %q", g.Reason())
	}
}

func TestCrashLoses(t *testing.T) {
	g, err := Play(context.Background(), builtin(t, "w"), scripted(t, "crash"), Options{Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if g.Outcome != WhiteWins || g.Termination != EngineFailure {
		t.Errorf("got %v by %v", g.Outcome, g.Termination)
	}
}

func TestTimeForfeit(t *testing.T) {
	g, err := Play(context.Background(), scripted(t, "sleepy"), builtin(t, "b"), Options{
		Base:  200 * time.Millisecond,
		Grace: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.Outcome != BlackWins || g.Termination != Timeout {
		t.Errorf("got %v by %v", g.Outcome, g.Termination)
	}
}

func TestPlayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Play(ctx, builtin(t, "a"), builtin(t, "b"), Options{Depth: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type fixedProber struct {
	wdl   tablebase.WDL
	calls int
}

func (p *fixedProber) Probe(context.Context, *board.Position) (tablebase.Result, bool, error) {
	p.calls++
	return tablebase.Result{WDL: p.wdl}, true, nil
}

func (p *fixedProber) MaxPieces() int { return 5 }

func TestAdjudicate(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		seen int
		tb   *fixedProber
		out  Outcome
		term Termination
	}{
		{"ongoing", board.StartFEN, 1, nil, Unfinished, NotTerminated},
		{"repetition", board.StartFEN, 3, nil, Draw, Repetition},
		{"tablebase win", "8/8/8/4k3/8/8/3QK3/8 b - - 0 70", 1, &fixedProber{wdl: tablebase.Win}, BlackWins, Tablebase},
		{"tablebase loss", "8/8/8/4k3/8/8/3QK3/8 b - - 0 70", 1, &fixedProber{wdl: tablebase.Loss}, WhiteWins, Tablebase},
		{"tablebase cursed", "8/8/8/4k3/8/8/3QK3/8 b - - 0 70", 1, &fixedProber{wdl: tablebase.CursedWin}, Draw, Tablebase},
		{"too many pieces", board.StartFEN, 1, &fixedProber{wdl: tablebase.Win}, Unfinished, NotTerminated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := board.MustParseFEN(tt.fen)
			g := &Game{}
			opts := Options{}
			if tt.tb != nil {
				opts.Tablebase = tt.tb
			}
			done := adjudicate(context.Background(), g, pos, map[uint64]int{pos.Hash: tt.seen}, opts)
			if done != (tt.term != NotTerminated) {
				t.Errorf("adjudicate = %v", done)
			}
			if g.Outcome != tt.out || g.Termination != tt.term {
				t.Errorf("got %v by %v, want %v by %v", g.Outcome, g.Termination, tt.out, tt.term)
			}
		})
	}
}

func TestClock(t *testing.T) {
	c := NewClock(time.Second, 100*time.Millisecond, 2)
	if !c.Timed() {
		t.Fatal("clock with a base is untimed")
	}
	b := c.Budget(board.White)
	if b.WTime != time.Second || b.BInc != 100*time.Millisecond || b.MovesToGo != 2 {
		t.Errorf("Budget = %+v", b)
	}

	if c.Punch(board.White, 300*time.Millisecond, 0) {
		t.Fatal("flag fell early")
	}
	if got := c.Remaining(board.White); got != 800*time.Millisecond {
		t.Errorf("Remaining = %v, want 800ms", got)
	}
	if got := c.Budget(board.White).MovesToGo; got != 1 {
		t.Errorf("MovesToGo = %d, want 1", got)
	}
	// Second move of the session adds the base again.
	c.Punch(board.White, 300*time.Millisecond, 0)
	if got := c.Remaining(board.White); got != 1600*time.Millisecond {
		t.Errorf("Remaining after session = %v, want 1.6s", got)
	}

	// An overrun within grace survives with a token millisecond.
	c.Punch(board.Black, 1050*time.Millisecond, 100*time.Millisecond)
	if got := c.Remaining(board.Black); got != 101*time.Millisecond {
		t.Errorf("Remaining after overrun = %v, want 101ms", got)
	}
	if !c.Punch(board.Black, time.Second, 100*time.Millisecond) {
		t.Error("flag did not fall")
	}

	var untimed *Clock
	if untimed.Timed() {
		t.Error("nil clock is timed")
	}
}

func TestScore(t *testing.T) {
	var s Score
	s.add(&Game{Outcome: WhiteWins}, true)
	s.add(&Game{Outcome: WhiteWins}, false)
	s.add(&Game{Outcome: Draw}, false)
	s.add(&Game{Outcome: BlackWins}, false)
	s.add(&Game{Outcome: Unfinished}, true)
	if s != (Score{Wins: 2, Draws: 1, Losses: 1}) {
		t.Errorf("score = %+v", s)
	}
	if s.Points() != 2.5 || s.String() != "+2 =1 -1" || s.Games() != 4 {
		t.Errorf("Points, String, Games = %v, %q, %d", s.Points(), s.String(), s.Games())
	}
}

func TestTournament(t *testing.T) {
	cfg := func(name string) coupler.Config {
		return coupler.Config{Name: name, Path: coupler.InProcess, HashMB: 2}
	}
	var callbacks int
	tour := &Tournament{
		Engines:     [2]coupler.Config{cfg("one"), cfg("two")},
		Games:       4,
		Concurrency: 2,
		Openings:    []string{board.StartFEN, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"},
		Options:     Options{Depth: 1, MaxPlies: 4},
		OnGame:      func(*Game, Score) { callbacks++ },
	}
	games, score, err := tour.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(games) != 4 || score.Games() != 4 || callbacks != 4 {
		t.Fatalf("games, score, callbacks = %d, %v, %d", len(games), score, callbacks)
	}
	for i, g := range games {
		if g.Round != i+1 {
			t.Errorf("game %d has round %d", i, g.Round)
		}
		wantWhite := "one"
		if i%2 == 1 {
			wantWhite = "two"
		}
		if g.White != wantWhite {
			t.Errorf("round %d white = %s, want %s", g.Round, g.White, wantWhite)
		}
	}
	if games[2].StartFEN != tour.Openings[1] {
		t.Errorf("round 3 opening = %s", games[2].StartFEN)
	}
}
