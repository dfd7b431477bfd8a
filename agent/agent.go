package agent

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"pulsehub/logging"
	"pulsehub/protocol"
	"pulsehub/transport"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("agent already started")
	ErrNotStarted     = errors.New("agent not started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Config configures an Agent.
type Config struct {
	// ServerURL is the hub websocket endpoint
	// (e.g. "ws://localhost:8080/ws").
	ServerURL string

	// Name is the display label sent at registration.
	// Default: "Anonymous" (applied by the hub)
	Name string

	// Location is a free-text label; empty lets the hub default it to
	// the observed origin address.
	Location string

	// HeartbeatInterval between liveness signals.
	// Default: 5 seconds
	HeartbeatInterval time.Duration

	// ReconnectDelay after a lost connection. Fixed, no backoff.
	// Default: 5 seconds
	ReconnectDelay time.Duration

	// Transport tunes the connection.
	Transport transport.Config

	// Logger for agent output. Default: a fresh logger.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:         "ws://localhost:8080/ws",
		HeartbeatInterval: 5 * time.Second,
		ReconnectDelay:    5 * time.Second,
		Transport:         transport.DefaultConfig(),
	}
}

// Agent is a presence peer.
type Agent struct {
	config Config
	log    *logging.Logger

	mu sync.RWMutex
	id string

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	def := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}

	return &Agent{
		config: cfg,
		log:    cfg.Logger.WithComponent("agent"),
	}, nil
}

// Start launches the connect/heartbeat/reconnect loop.
func (a *Agent) Start(ctx context.Context) error {
	if a.running.Swap(true) {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})

	go a.run(ctx)
	return nil
}

// Stop cancels the heartbeat timer and any pending reconnect, closes the
// transport, and returns once the loop has exited.
func (a *Agent) Stop() error {
	if !a.running.Swap(false) {
		return ErrNotStarted
	}
	close(a.stopCh)
	<-a.doneCh
	return nil
}

// ID returns the hub-assigned id, empty until the first registration
// acknowledgment arrives.
func (a *Agent) ID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.id
}

func (a *Agent) setID(id string) {
	a.mu.Lock()
	a.id = id
	a.mu.Unlock()
}

// run dials, serves one session, and reconnects after a fixed delay,
// forever, until stopped.
func (a *Agent) run(ctx context.Context) {
	defer close(a.doneCh)

	for {
		conn, err := transport.Dial(ctx, a.config.ServerURL, a.config.Transport)
		if err != nil {
			a.log.Warn("connect failed", map[string]interface{}{
				"url":   a.config.ServerURL,
				"error": err.Error(),
			})
		} else {
			a.session(conn)
		}

		// Exactly one scheduled reconnect, fixed delay, no backoff.
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			a.running.Store(false)
			return
		case <-time.After(a.config.ReconnectDelay):
			a.log.Info("reconnecting", map[string]interface{}{"url": a.config.ServerURL})
		}
	}
}

// session registers and heartbeats over one connection until it drops
// or the agent stops.
func (a *Agent) session(conn *transport.Conn) {
	defer conn.Close()

	a.register(conn)

	ticker := time.NewTicker(a.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.heartbeat(conn)
		case data, ok := <-conn.Recv():
			if !ok {
				a.log.Warn("connection lost")
				return
			}
			a.handle(data)
		}
	}
}

// register announces identity plus environment descriptors. The stored
// id is included so a reconnecting agent keeps its roster entry.
func (a *Agent) register(conn *transport.Conn) {
	hostname, _ := os.Hostname()
	reg := protocol.NewRegister(a.ID(), a.config.Name, a.config.Location,
		hostname, runtime.GOOS, runtime.GOARCH)

	data, err := reg.Marshal()
	if err != nil {
		return
	}
	if err := conn.Send(data); err != nil {
		a.log.Warn("register send failed", map[string]interface{}{"error": err.Error()})
		return
	}
	a.log.Info("registering", map[string]interface{}{
		"name":     a.config.Name,
		"location": a.config.Location,
	})
}

// heartbeat fires on the timer regardless of registration state; an
// empty id is allowed and the hub treats it as a no-op.
func (a *Agent) heartbeat(conn *transport.Conn) {
	data, err := protocol.NewHeartbeat(a.ID()).Marshal()
	if err != nil {
		return
	}
	if err := conn.Send(data); err != nil {
		a.log.Warn("heartbeat send failed", map[string]interface{}{"error": err.Error()})
	}
}

// handle processes one hub frame. Only the registration acknowledgment
// changes state; everything else is logged.
func (a *Agent) handle(data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		a.log.Warn("dropping bad frame", map[string]interface{}{"error": err.Error()})
		return
	}

	switch {
	case msg.Registered != nil:
		a.setID(msg.Registered.ID)
		a.log.Info("registered", map[string]interface{}{
			"id":    msg.Registered.ID,
			"total": msg.Registered.TotalClients,
		})
	case msg.HeartbeatAck != nil:
		a.log.Debug("heartbeat acked", map[string]interface{}{
			"timestamp": msg.HeartbeatAck.Timestamp,
		})
	case msg.Update != nil:
		a.log.Debug("roster update", map[string]interface{}{
			"total": msg.Update.Total,
		})
	default:
		a.log.Debug("unexpected message ignored", map[string]interface{}{
			"type": msg.Type(),
		})
	}
}
