package coupler

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pool owns a set of independent handles. Callers check a handle out with
// Acquire, which serializes requests per engine, and give it back with
// Release.
type Pool struct {
	mu      sync.Mutex
	handles []*Handle
	idle    chan *Handle
	closed  bool
}

// NewPool launches one handle per config concurrently. If any launch fails
// the ones already started are shut down.
func NewPool(ctx context.Context, cfgs ...Config) (*Pool, error) {
	started := make([]*Handle, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range cfgs {
		g.Go(func() error {
			h, err := Open(gctx, cfg)
			if err != nil {
				return err
			}
			started[i] = h
			return nil
		})
	}
	err := g.Wait()

	p := &Pool{idle: make(chan *Handle, len(cfgs))}
	for _, h := range started {
		if h != nil {
			p.Add(h)
		}
	}
	if err != nil {
		return nil, errors.Join(err, p.Close(context.Background()))
	}
	return p, nil
}

// Add puts h under the pool's ownership and makes it available.
func (p *Pool) Add(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles = append(p.handles, h)
	if len(p.handles) > cap(p.idle) {
		grown := make(chan *Handle, 2*len(p.handles))
		close(p.idle)
		for x := range p.idle {
			grown <- x
		}
		p.idle = grown
	}
	p.idle <- h
}

// Handles returns every live handle.
func (p *Pool) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Handle(nil), p.handles...)
}

// Get returns the handle with the given name.
func (p *Pool) Get(name string) (*Handle, bool) {
	for _, h := range p.Handles() {
		if h.Name() == name {
			return h, true
		}
	}
	return nil, false
}

// Acquire waits for an idle handle.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		if len(p.handles) == 0 {
			p.mu.Unlock()
			return nil, errors.New("coupler: pool has no engines")
		}
		idle := p.idle
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case h, ok := <-idle:
			if !ok {
				// Replaced by Add or closed; look again.
				continue
			}
			return h, nil
		}
	}
}

// Release returns h to the pool. A handle whose engine has died is dropped.
func (p *Pool) Release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case <-h.Exited():
		logrus.WithField("engine", h.Name()).Warn("dropping dead engine from pool")
		for i, x := range p.handles {
			if x == h {
				p.handles = append(p.handles[:i], p.handles[i+1:]...)
				break
			}
		}
		h.Shutdown(context.Background())
		return
	default:
	}
	p.idle <- h
}

// Close shuts every handle down concurrently.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()

	var g errgroup.Group
	for _, h := range handles {
		g.Go(func() error { return h.Shutdown(ctx) })
	}
	return g.Wait()
}
