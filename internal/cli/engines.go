package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hailam/cactus/internal/config"
	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/storage"
)

// closers releases stderr log files opened for engines.
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, x := range c {
		errs = append(errs, x.Close())
	}
	return errors.Join(errs...)
}

// engineConfig resolves name in cfg. The built-in engine is always known
// by the name "builtin", even if the file does not list it.
func engineConfig(cfg *config.Config, name string, cl *closers) (coupler.Config, error) {
	e, ok := cfg.Engine(name)
	if !ok {
		if name != coupler.InProcess {
			return coupler.Config{}, fmt.Errorf("no engine named %q in the config", name)
		}
		e = config.Engine{Name: name, Cmd: coupler.InProcess}
	}
	cc, closer, err := e.Coupler()
	if err != nil {
		return coupler.Config{}, err
	}
	*cl = append(*cl, closer)
	return cc, nil
}

func openEngine(ctx context.Context, cfg *config.Config, name string) (*coupler.Handle, io.Closer, error) {
	var cl closers
	cc, err := engineConfig(cfg, name, &cl)
	if err != nil {
		return nil, nil, err
	}
	h, err := coupler.Open(ctx, cc)
	if err != nil {
		cl.Close()
		return nil, nil, err
	}
	return h, cl, nil
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	dir, err := storage.DatabaseDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return storage.Open(dir)
}
