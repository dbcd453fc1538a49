package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// stderrTailLines bounds how much diagnostic output a CommandLog keeps.
const stderrTailLines = 20

// Options configures the ffmpeg-backed engine.
type Options struct {
	// Path is the ffmpeg executable name or absolute path.
	Path string
	// WorkspaceRoot is the parent of the private workspace; empty means the
	// system temp directory.
	WorkspaceRoot string
}

// command is one process invocation.
type command struct {
	Name   string
	Args   []string
	Dir    string
	OnLine func(line string)
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, cmd command) (commandResult, error)
}

// execRunner executes commands via os/exec and streams stderr line by line.
type execRunner struct{}

// Run executes one command and captures the stderr tail and exit code.
func (r *execRunner) Run(ctx context.Context, c command) (commandResult, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return commandResult{ExitCode: -1}, err
	}
	if err := cmd.Start(); err != nil {
		return commandResult{ExitCode: -1}, err
	}

	tail := make([]string, 0, stderrTailLines)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanStatsLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if len(tail) == stderrTailLines {
			tail = tail[1:]
		}
		tail = append(tail, line)
		if c.OnLine != nil {
			c.OnLine(line)
		}
	}
	_, _ = io.Copy(io.Discard, stderr)

	err = cmd.Wait()
	result := commandResult{
		Stderr:   strings.Join(tail, "\n"),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

type registration struct {
	id      int
	event   EventName
	handler Handler
}

// FFmpegEngine runs ffmpeg confined to a private workspace directory that
// acts as the engine's virtual filesystem.
type FFmpegEngine struct {
	binary    string
	workspace string
	runner    commandRunner
	removeAll func(path string) error

	mu        sync.Mutex
	nextID    int
	listeners []registration
}

// Bootstrap returns a loader for the accessor that starts an ffmpeg engine.
func Bootstrap(opts Options) func(ctx context.Context) (Engine, error) {
	return func(ctx context.Context) (Engine, error) {
		return NewFFmpeg(ctx, opts)
	}
}

// NewFFmpeg resolves the binary, creates the workspace, and waits for a
// clean `ffmpeg -version` as the readiness signal.
func NewFFmpeg(ctx context.Context, opts Options) (*FFmpegEngine, error) {
	return newFFmpeg(ctx, opts, exec.LookPath, os.MkdirTemp, os.RemoveAll, &execRunner{})
}

func newFFmpeg(
	ctx context.Context,
	opts Options,
	lookPath func(string) (string, error),
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	runner commandRunner,
) (*FFmpegEngine, error) {
	name := strings.TrimSpace(opts.Path)
	if name == "" {
		name = "ffmpeg"
	}

	binary, err := lookPath(name)
	if err != nil {
		return nil, &InitError{Stage: "resolve binary", Err: err}
	}

	if opts.WorkspaceRoot != "" {
		if err := os.MkdirAll(opts.WorkspaceRoot, 0o755); err != nil {
			return nil, &InitError{Stage: "create workspace", Err: err}
		}
	}
	workspace, err := mkdirTemp(opts.WorkspaceRoot, "upload-ai-*")
	if err != nil {
		return nil, &InitError{Stage: "create workspace", Err: err}
	}

	result, err := runner.Run(ctx, command{
		Name: binary,
		Args: []string{"-hide_banner", "-version"},
		Dir:  workspace,
	})
	if err != nil {
		_ = removeAll(workspace)
		return nil, &InitError{
			Stage: "handshake",
			Err:   fmt.Errorf("exit code %d: %w", result.ExitCode, err),
		}
	}

	return &FFmpegEngine{
		binary:    binary,
		workspace: workspace,
		runner:    runner,
		removeAll: removeAll,
	}, nil
}

// Workspace returns the directory backing the virtual filesystem.
func (e *FFmpegEngine) Workspace() string {
	return e.workspace
}

// WriteFile stores data in a named slot, replacing previous content.
func (e *FFmpegEngine) WriteFile(name string, data []byte) error {
	path, err := e.slotPath(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ReadFile returns the content of a named slot.
func (e *FFmpegEngine) ReadFile(name string) ([]byte, error) {
	path, err := e.slotPath(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// DeleteFile clears a named slot. Missing slots are not an error.
func (e *FFmpegEngine) DeleteFile(name string) error {
	path, err := e.slotPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// On registers a handler and returns the function that removes it.
func (e *FFmpegEngine) On(event EventName, handler Handler) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, registration{id: id, event: event, handler: handler})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, reg := range e.listeners {
			if reg.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Exec runs ffmpeg inside the workspace. Relative names in args resolve to
// slots.
func (e *FFmpegEngine) Exec(ctx context.Context, args ...string) error {
	fullArgs := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)
	parser := &progressParser{}

	result, err := e.runner.Run(ctx, command{
		Name: e.binary,
		Args: fullArgs,
		Dir:  e.workspace,
		OnLine: func(line string) {
			e.emit(Event{Name: EventLog, Message: line})
			if fraction, at, ok := parser.parse(line); ok {
				e.emit(Event{Name: EventProgress, Progress: fraction, Time: at})
			}
		},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &ExecError{
			CommandLog: CommandLog{
				Command:  e.binary,
				Args:     fullArgs,
				ExitCode: result.ExitCode,
				Stderr:   result.Stderr,
			},
			Err: err,
		}
	}

	e.emit(Event{Name: EventProgress, Progress: 1, Time: parser.duration})
	return nil
}

// Close removes the workspace. It is only called at application shutdown.
func (e *FFmpegEngine) Close() error {
	return e.removeAll(e.workspace)
}

func (e *FFmpegEngine) emit(event Event) {
	e.mu.Lock()
	handlers := make([]Handler, 0, len(e.listeners))
	for _, reg := range e.listeners {
		if reg.event == event.Name {
			handlers = append(handlers, reg.handler)
		}
	}
	e.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// slotPath confines a slot name to the workspace.
func (e *FFmpegEngine) slotPath(name string) (string, error) {
	clean := strings.TrimSpace(name)
	if clean == "" || clean == "." || clean == ".." || filepath.Base(clean) != clean || strings.ContainsAny(clean, `/\`) {
		return "", fmt.Errorf("invalid slot name %q", name)
	}
	return filepath.Join(e.workspace, clean), nil
}
