package tablebase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hailam/cactus/internal/board"
)

func TestCountPieces(t *testing.T) {
	tests := []struct {
		fen  string
		want int
	}{
		{board.StartFEN, 32},
		{"8/8/8/4k3/8/8/3QK3/8 w - - 0 1", 3},
		{"8/8/8/8/8/8/8/K6k w - - 0 1", 2},
	}
	for _, tt := range tests {
		if got := CountPieces(board.MustParseFEN(tt.fen)); got != tt.want {
			t.Errorf("CountPieces(%s) = %d, want %d", tt.fen, got, tt.want)
		}
	}
}

func fakeLichess(t *testing.T, calls *atomic.Int32, body string) *LichessProber {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("fen") == "" {
			http.Error(w, "missing fen", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return &LichessProber{BaseURL: srv.URL, Client: srv.Client()}
}

func TestLichessProbe(t *testing.T) {
	var calls atomic.Int32
	lp := fakeLichess(t, &calls, `{"category":"win","dtz":9,"moves":[{"uci":"d2d7","category":"loss"}]}`)

	pos := board.MustParseFEN("8/8/8/4k3/8/8/3QK3/8 w - - 0 1")
	r, found, err := lp.Probe(context.Background(), pos)
	if err != nil || !found {
		t.Fatalf("Probe = %v, %v", found, err)
	}
	if r.WDL != Win || r.DTZ != 9 || r.Best != "d2d7" {
		t.Errorf("Probe = %+v", r)
	}

	// Too many pieces: no request is made.
	if _, found, _ := lp.Probe(context.Background(), board.NewPosition()); found {
		t.Error("start position found in tablebase")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("made %d requests, want 1", n)
	}
}

func TestLichessUnknownCategory(t *testing.T) {
	var calls atomic.Int32
	lp := fakeLichess(t, &calls, `{"category":"maybe-win","dtz":null}`)
	_, found, err := lp.Probe(context.Background(), board.MustParseFEN("8/8/8/4k3/8/8/3QK3/8 w - - 0 1"))
	if err != nil || found {
		t.Errorf("Probe = %v, %v, want not found", found, err)
	}
}

func TestLichessServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	lp := &LichessProber{BaseURL: srv.URL, Client: srv.Client()}
	if _, _, err := lp.Probe(context.Background(), board.MustParseFEN("8/8/8/4k3/8/8/3QK3/8 w - - 0 1")); err == nil {
		t.Error("Probe ignored a 429")
	}
}

func TestCachedProber(t *testing.T) {
	var calls atomic.Int32
	cp := NewCachedProber(fakeLichess(t, &calls, `{"category":"draw","dtz":0}`), 4)
	pos := board.MustParseFEN("8/8/8/4k3/8/8/3NK3/8 w - - 0 1")

	for range 3 {
		r, found, err := cp.Probe(context.Background(), pos)
		if err != nil || !found || r.WDL != Draw {
			t.Fatalf("Probe = %+v, %v, %v", r, found, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("inner prober called %d times, want 1", n)
	}
	if cp.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cp.Len())
	}
	if hr := cp.HitRate(); hr < 66 || hr > 67 {
		t.Errorf("HitRate() = %.1f, want 66.7", hr)
	}
}

func TestWDL(t *testing.T) {
	tests := []struct {
		w        WDL
		name     string
		decisive bool
	}{
		{Win, "win", true},
		{CursedWin, "cursed-win", false},
		{Draw, "draw", false},
		{BlessedLoss, "blessed-loss", false},
		{Loss, "loss", true},
	}
	for _, tt := range tests {
		if got := tt.w.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.w.Decisive(); got != tt.decisive {
			t.Errorf("%s.Decisive() = %v, want %v", tt.name, got, tt.decisive)
		}
	}
}
