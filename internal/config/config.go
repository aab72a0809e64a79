// Package config loads the YAML file describing engines, matches and the
// analysis server.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/storage"
)

const appName = "cactus"

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, appName+".yaml")
}

// Engine is one engine entry.
type Engine struct {
	Name    string            `yaml:"name"`
	Cmd     string            `yaml:"cmd"`
	Dir     string            `yaml:"dir,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Init    string            `yaml:"init,omitempty"`
	Options map[string]string `yaml:"options,omitempty"`
	Stderr  string            `yaml:"stderr,omitempty"`
	Hash    int               `yaml:"hash,omitempty"`
}

// Coupler converts the entry into a launch configuration. The returned
// closer releases the stderr log file, if one was requested.
func (e Engine) Coupler() (coupler.Config, io.Closer, error) {
	cfg := coupler.Config{
		Name:       e.Name,
		Path:       e.Cmd,
		Args:       e.Args,
		Dir:        e.Dir,
		InitString: e.Init,
		Options:    e.Options,
		HashMB:     e.Hash,
	}
	if e.Stderr == "" {
		return cfg, io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(e.Stderr, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return coupler.Config{}, nil, fmt.Errorf("config: engine %s stderr: %w", e.Name, err)
	}
	cfg.Stderr = f
	return cfg, f, nil
}

// Match holds defaults for engine-versus-engine games.
type Match struct {
	Games       int      `yaml:"games"`
	Concurrency int      `yaml:"concurrency"`
	TC          string   `yaml:"tc,omitempty"`
	Depth       int      `yaml:"depth,omitempty"`
	Nodes       uint64   `yaml:"nodes,omitempty"`
	MaxPlies    int      `yaml:"max-plies,omitempty"`
	FENs        []string `yaml:"fens,omitempty"`
}

// Server configures the HTTP analysis service.
type Server struct {
	Addr      string `yaml:"addr"`
	Engine    string `yaml:"engine"`
	Instances int    `yaml:"instances"`
	MoveTime  int    `yaml:"movetime"` // default milliseconds per request
}

type Config struct {
	Engines []Engine `yaml:"engines"`
	Match   Match    `yaml:"match"`
	Server  Server   `yaml:"server"`
	DataDir string   `yaml:"data-dir,omitempty"`
}

// Default is used when no file exists. It knows the built-in engine only.
func Default() *Config {
	return &Config{
		Engines: []Engine{{Name: appName, Cmd: coupler.InProcess}},
		Match:   Match{Games: 2, Concurrency: 1, TC: "10+0.1"},
		Server:  Server{Addr: "localhost:8080", Engine: appName, Instances: 2, MoveTime: 1000},
		DataDir: storage.DataDir(),
	}
}

// Load reads the file at path, or DefaultPath if path is empty. A missing
// default file yields Default; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	c.Engines = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if len(c.Engines) == 0 {
		c.Engines = Default().Engines
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Engines))
	for i, e := range c.Engines {
		if e.Name == "" {
			return fmt.Errorf("engine %d has no name", i)
		}
		if e.Cmd == "" {
			return fmt.Errorf("engine %s has no cmd", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("engine %s listed twice", e.Name)
		}
		seen[e.Name] = true
	}
	if c.Match.TC != "" {
		if _, err := ParseTimeControl(c.Match.TC); err != nil {
			return err
		}
	}
	if c.Match.Games < 0 || c.Match.Concurrency < 0 {
		return errors.New("match games and concurrency must not be negative")
	}
	if c.Server.Engine != "" && !seen[c.Server.Engine] {
		return fmt.Errorf("server engine %s is not configured", c.Server.Engine)
	}
	return nil
}

// Engine looks an engine up by name.
func (c *Config) Engine(name string) (Engine, bool) {
	for _, e := range c.Engines {
		if e.Name == name {
			return e, true
		}
	}
	return Engine{}, false
}

// Save writes c to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
