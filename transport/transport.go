package transport

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrClosed = errors.New("transport closed")
)

// Config holds connection tuning knobs.
type Config struct {
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// MaxMessageSize limits incoming frame size in bytes.
	MaxMessageSize int64

	// SendBufferSize is the outbound queue depth. A full queue drops the
	// frame rather than blocking the caller.
	SendBufferSize int

	// RecvBufferSize is the inbound channel depth.
	RecvBufferSize int

	// PingInterval for keepalive pings (0 = disabled).
	PingInterval time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 32,
		RecvBufferSize: 32,
		PingInterval:   30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = def.SendBufferSize
	}
	if c.RecvBufferSize <= 0 {
		c.RecvBufferSize = def.RecvBufferSize
	}
	return c
}
