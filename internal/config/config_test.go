package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hailam/cactus/internal/coupler"
)

func TestParseTimeControl(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeControl
		wantErr bool
	}{
		{"10+0.1", TimeControl{Base: 10 * time.Second, Inc: 100 * time.Millisecond}, false},
		{"60", TimeControl{Base: time.Minute}, false},
		{"40/60+0.6", TimeControl{MovesPerSession: 40, Base: time.Minute, Inc: 600 * time.Millisecond}, false},
		{"0.5+0", TimeControl{Base: 500 * time.Millisecond}, false},
		{"", TimeControl{}, true},
		{"x+1", TimeControl{}, true},
		{"10+y", TimeControl{}, true},
		{"0/10+1", TimeControl{}, true},
		{"-5+1", TimeControl{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeControl(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTimeControl(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimeControlString(t *testing.T) {
	for _, s := range []string{"10+0.1", "60", "40/60+0.6"} {
		tc, err := ParseTimeControl(s)
		if err != nil {
			t.Fatal(err)
		}
		if got := tc.String(); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
	}
}

const sample = `
engines:
  - name: cactus
    cmd: builtin
    hash: 32
  - name: stockfish
    cmd: /usr/bin/stockfish
    args: ["--flag"]
    options:
      Threads: "1"
      Hash: "16"
match:
  games: 10
  concurrency: 2
  tc: 5+0.05
  fens:
    - rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1
server:
  addr: ":9000"
  engine: cactus
  instances: 4
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(c.Engines) != 2 {
		t.Fatalf("got %d engines, want 2", len(c.Engines))
	}
	sf, ok := c.Engine("stockfish")
	if !ok {
		t.Fatal("stockfish not found")
	}
	if sf.Options["Hash"] != "16" || len(sf.Args) != 1 {
		t.Errorf("stockfish = %+v", sf)
	}
	if c.Match.Games != 10 || c.Match.Concurrency != 2 || len(c.Match.FENs) != 1 {
		t.Errorf("match = %+v", c.Match)
	}
	if c.Server.Addr != ":9000" || c.Server.Instances != 4 {
		t.Errorf("server = %+v", c.Server)
	}
	// Unset fields keep their defaults.
	if c.Server.MoveTime != 1000 {
		t.Errorf("server movetime = %d, want default 1000", c.Server.MoveTime)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate", "engines: [{name: a, cmd: x}, {name: a, cmd: y}]"},
		{"no cmd", "engines: [{name: a}]"},
		{"no name", "engines: [{cmd: a}]"},
		{"bad tc", "match: {tc: fast}"},
		{"unknown server engine", "server: {engine: ghost}"},
		{"not yaml", "engines: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("Parse accepted invalid config")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "cactus.yaml")

	if _, err := Load(path); err == nil {
		t.Error("Load of a missing explicit file succeeded")
	}

	c := Default()
	c.Match.Games = 6
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Match.Games != 6 || got.Engines[0].Cmd != coupler.InProcess {
		t.Errorf("loaded %+v", got)
	}
}

func TestEngineCoupler(t *testing.T) {
	log := filepath.Join(t.TempDir(), "stderr.log")
	e := Engine{Name: "x", Cmd: "/bin/x", Args: []string{"-v"}, Stderr: log, Hash: 8}
	cfg, closer, err := e.Coupler()
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	if cfg.Name != "x" || cfg.Path != "/bin/x" || cfg.HashMB != 8 || cfg.Stderr == nil {
		t.Errorf("coupler config = %+v", cfg)
	}
	if _, err := os.Stat(log); err != nil {
		t.Errorf("stderr log not created: %v", err)
	}
}
