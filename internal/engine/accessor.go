package engine

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader bootstraps one engine instance.
type Loader func(ctx context.Context) (Engine, error)

// Accessor lazily initializes one Engine and hands the same instance to all
// callers. Concurrent callers share a single in-flight load. A failed load
// is not cached, so the next Get starts a fresh bootstrap.
type Accessor struct {
	load   Loader
	group  singleflight.Group
	onLoad func(err error)

	mu     sync.RWMutex
	engine Engine
}

// NewAccessor creates an accessor around load. onLoad, when set, observes
// the outcome of every bootstrap attempt.
func NewAccessor(load Loader, onLoad func(err error)) *Accessor {
	return &Accessor{load: load, onLoad: onLoad}
}

// Get returns the ready engine, starting or joining its bootstrap. The
// bootstrap itself is not cancelled by ctx; ctx only bounds how long this
// caller waits.
func (a *Accessor) Get(ctx context.Context) (Engine, error) {
	if eng := a.cached(); eng != nil {
		return eng, nil
	}

	ch := a.group.DoChan("engine", func() (any, error) {
		if eng := a.cached(); eng != nil {
			return eng, nil
		}

		eng, err := a.load(context.WithoutCancel(ctx))
		if a.onLoad != nil {
			a.onLoad(err)
		}
		if err != nil {
			var initErr *InitError
			if !errors.As(err, &initErr) {
				err = &InitError{Stage: "bootstrap", Err: err}
			}
			return nil, err
		}

		a.mu.Lock()
		a.engine = eng
		a.mu.Unlock()
		return eng, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Engine), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether an engine is ready.
func (a *Accessor) Loaded() bool {
	return a.cached() != nil
}

// Close releases the engine if it holds resources.
func (a *Accessor) Close() error {
	a.mu.Lock()
	eng := a.engine
	a.engine = nil
	a.mu.Unlock()

	if closer, ok := eng.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (a *Accessor) cached() Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}
