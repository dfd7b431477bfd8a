// Package shutdown coordinates orderly teardown of the hub and agent
// processes.
//
// Components register handlers with a phase number; lower phases stop
// first, handlers within a phase stop concurrently. The hub stops its
// sweeper and connections before the HTTP listener and event bus; the
// agent cancels its heartbeat and reconnect timers before closing the
// transport, so no timer fires against a torn-down connection.
package shutdown

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrAlreadyShutdown = errors.New("shutdown already initiated")
	ErrTimeout         = errors.New("shutdown timeout exceeded")
	ErrHandlerFailed   = errors.New("one or more handlers failed")
)

// Handler is implemented by components that need graceful shutdown. The
// context is cancelled when the shutdown timeout is reached.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// Func adapts a function to Handler.
type Func func(ctx context.Context) error

// OnShutdown implements Handler.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// Config configures the coordinator.
type Config struct {
	// DefaultTimeout bounds ShutdownWithTimeout when no timeout is given.
	// Default: 15 seconds
	DefaultTimeout time.Duration

	// DefaultPhase is assigned to handlers registered without a phase.
	// Default: 100
	DefaultPhase int

	// OnProgress is called as each handler completes; used for logging.
	OnProgress func(name string, phase int, took time.Duration, err error)
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 15 * time.Second,
		DefaultPhase:   100,
	}
}

// registration holds a registered handler with its metadata.
type registration struct {
	name    string
	handler Handler
	phase   int
}
