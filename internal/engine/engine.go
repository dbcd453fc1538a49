// Package engine provides the sandboxed audio/video transcoder and the
// accessor that hands a single initialized instance to every caller.
package engine

import (
	"context"
	"fmt"
	"time"

	"upload-ai/internal/domain"
)

// EventName identifies a class of engine notifications.
type EventName string

const (
	EventProgress EventName = "progress"
	EventLog      EventName = "log"
)

// Event is one notification emitted while a command runs.
type Event struct {
	Name     EventName
	Progress float64
	Time     time.Duration
	Message  string
}

// Handler receives engine events in emission order.
type Handler func(Event)

// Engine is the narrow command contract the conversion pipeline depends on.
// Files live in a private namespace addressed by plain base names.
type Engine interface {
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	DeleteFile(name string) error
	On(event EventName, handler Handler) (off func())
	Exec(ctx context.Context, args ...string) error
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stderr   string   `json:"stderr"`
}

// ExecError reports a command that did not exit cleanly.
type ExecError struct {
	CommandLog CommandLog
	Err        error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.CommandLog.Command, e.CommandLog.ExitCode, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// InitError reports a failed engine bootstrap.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %s: %v", domain.ErrEngineInit, e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is lets callers match any bootstrap failure against domain.ErrEngineInit.
func (e *InitError) Is(target error) bool {
	return target == domain.ErrEngineInit
}
