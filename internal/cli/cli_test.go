package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hailam/cactus/internal/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := Root()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig creates a config whose data directory is private to the test.
func writeConfig(t *testing.T) (path, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	path = filepath.Join(dir, "cactus.yaml")
	yaml := "engines:\n  - name: cactus\n    cmd: builtin\n    hash: 2\ndata-dir: " + dataDir + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, dataDir
}

func TestPerftCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"perft", "3"}, "Nodes searched: 8902"},
		{[]string{"perft", "2", "--divide"}, "e2e4: 20"},
		{[]string{"perft", "1", "--fen", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"}, "Nodes searched: 48"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q does not contain %q", out, tt.want)
			}
		})
	}

	if _, err := run(t, "perft", "zero"); err == nil {
		t.Error("perft accepted a bad depth")
	}
}

func TestRunUCI(t *testing.T) {
	in := strings.NewReader("uci\nisready\nposition startpos moves e2e4\ngo depth 2\n")
	var out bytes.Buffer
	prof := filepath.Join(t.TempDir(), "prof")
	if err := RunUCI(context.Background(), in, &out, 2, prof); err != nil {
		t.Fatalf("RunUCI: %v", err)
	}
	if _, err := os.Stat(filepath.Join(prof, "cpu.pprof")); err != nil {
		t.Errorf("no CPU profile written: %v", err)
	}
	for _, want := range []string{"uciok", "readyok", "bestmove "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestBestMoveCommand(t *testing.T) {
	cfg, dataDir := writeConfig(t)
	out, err := run(t, "--config", cfg, "bestmove", "--fen", "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", "--depth", "3")
	if err != nil {
		t.Fatalf("bestmove: %v", err)
	}
	if !strings.Contains(out, "bestmove a1a8 (Ra8#)") {
		t.Errorf("output = %q", out)
	}

	// The engine choice was remembered.
	dir, err := storage.DatabaseDir(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	prefs, err := store.LoadPreferences()
	if err != nil || prefs.Engine != "cactus" || prefs.LastUsed.IsZero() {
		t.Errorf("preferences = %+v, %v", prefs, err)
	}
}

func TestBestMoveUnknownEngine(t *testing.T) {
	cfg, _ := writeConfig(t)
	if _, err := run(t, "--config", cfg, "bestmove", "--engine", "ghost", "--depth", "1"); err == nil {
		t.Error("bestmove with an unknown engine succeeded")
	}
}

func TestMatchCommand(t *testing.T) {
	cfg, dataDir := writeConfig(t)
	pgn := filepath.Join(t.TempDir(), "games.pgn")
	out, err := run(t, "--config", cfg, "match", "cactus", "builtin", "-n", "2", "--depth", "1", "--max-plies", "4", "--pgn", pgn)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !strings.Contains(out, "cactus vs builtin:") || !strings.Contains(out, "/2)") {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(pgn)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "[Event "); n != 2 {
		t.Errorf("PGN file holds %d games, want 2", n)
	}

	dir, _ := storage.DatabaseDir(dataDir)
	store, err := storage.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	games, err := store.ListGames(0)
	if err != nil || len(games) != 2 {
		t.Errorf("archived %d games, %v", len(games), err)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	if err != nil || strings.TrimSpace(out) != Version {
		t.Errorf("--version = %q, %v", out, err)
	}
}
