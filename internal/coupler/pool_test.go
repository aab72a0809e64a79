package coupler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPool(t *testing.T) {
	p, err := NewPool(context.Background(),
		Config{Name: "a", Path: InProcess, HashMB: 1},
		Config{Name: "b", Path: InProcess, HashMB: 1},
	)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close(context.Background())

	if n := len(p.Handles()); n != 2 {
		t.Fatalf("pool has %d handles, want 2", n)
	}
	if _, ok := p.Get("b"); !ok {
		t.Error("Get(b) found nothing")
	}

	h1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("Acquire handed out the same handle twice")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire on an exhausted pool = %v, want deadline exceeded", err)
	}

	p.Release(h1)
	h3, err := p.Acquire(context.Background())
	if err != nil || h3 != h1 {
		t.Errorf("Acquire after Release = %v, %v", h3, err)
	}
	p.Release(h2)
	p.Release(h3)

	if err := p.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
	for _, h := range []*Handle{h1, h2} {
		if h.State() != Closed {
			t.Errorf("%s: State() = %v after Close", h.Name(), h.State())
		}
	}
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Acquire after Close = %v, want ErrClosed", err)
	}
}

func TestPoolLaunchFailureCleansUp(t *testing.T) {
	_, err := NewPool(context.Background(),
		Config{Name: "ok", Path: InProcess, HashMB: 1},
		Config{Name: "missing", Path: "/nonexistent/engine"},
	)
	var spawn *ProcessSpawnError
	if !errors.As(err, &spawn) {
		t.Fatalf("err = %v, want ProcessSpawnError", err)
	}
}

func TestPoolDropsDeadHandles(t *testing.T) {
	p := &Pool{idle: make(chan *Handle, 1)}
	h := launch(t, helper("crash"))
	p.Add(h)

	got, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got.RequestMove(context.Background(), "", nil, Budget{Depth: 1})
	<-got.Exited()
	p.Release(got)

	if n := len(p.Handles()); n != 0 {
		t.Errorf("pool kept %d dead handles", n)
	}
}
