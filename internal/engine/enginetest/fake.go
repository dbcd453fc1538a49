// Package enginetest provides an in-memory Engine for tests.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"upload-ai/internal/engine"
)

// ExecFunc scripts one Exec call. emit delivers events to registered
// handlers. A non-nil output is stored under the last argument.
type ExecFunc func(ctx context.Context, args []string, emit func(engine.Event)) ([]byte, error)

// Fake is an engine.Engine backed by a map.
type Fake struct {
	// ExecFunc is invoked for every command; nil writes a one-byte output
	// for the last argument.
	ExecFunc ExecFunc

	mu        sync.Mutex
	files     map[string][]byte
	nextID    int
	listeners map[int]registration

	execs      atomic.Int32
	running    atomic.Int32
	overlapped atomic.Bool
}

type registration struct {
	event   engine.EventName
	handler engine.Handler
}

// New creates an empty fake engine.
func New(exec ExecFunc) *Fake {
	return &Fake{
		ExecFunc:  exec,
		files:     make(map[string][]byte),
		listeners: make(map[int]registration),
	}
}

func (f *Fake) WriteFile(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = append([]byte(nil), data...)
	return nil
}

func (f *Fake) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, os.ErrNotExist)
	}
	return data, nil
}

func (f *Fake) DeleteFile(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *Fake) On(event engine.EventName, handler engine.Handler) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = registration{event: event, handler: handler}
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *Fake) Exec(ctx context.Context, args ...string) error {
	f.execs.Add(1)
	if f.running.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.running.Add(-1)

	if len(args) == 0 {
		return errors.New("no output")
	}
	if f.ExecFunc == nil {
		return f.WriteFile(args[len(args)-1], []byte{0xff})
	}

	out, err := f.ExecFunc(ctx, args, f.emit)
	if err != nil {
		return err
	}
	if out != nil {
		return f.WriteFile(args[len(args)-1], out)
	}
	return nil
}

// Execs reports how many commands ran.
func (f *Fake) Execs() int {
	return int(f.execs.Load())
}

// Overlapped reports whether two commands ever ran at the same time.
func (f *Fake) Overlapped() bool {
	return f.overlapped.Load()
}

// Listeners reports how many handlers are registered.
func (f *Fake) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Files returns a copy of the slot names currently present.
func (f *Fake) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	return names
}

func (f *Fake) emit(event engine.Event) {
	f.mu.Lock()
	ids := make([]int, 0, len(f.listeners))
	for id := range f.listeners {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	// registration order
	slices.Sort(ids)
	for _, id := range ids {
		f.mu.Lock()
		reg, ok := f.listeners[id]
		f.mu.Unlock()
		if ok && reg.event == event.Name {
			reg.handler(event)
		}
	}
}
