package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"pulsehub/bus"
	"pulsehub/logging"
	"pulsehub/protocol"
	"pulsehub/roster"
	"pulsehub/transport"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("hub already started")
	ErrNotStarted     = errors.New("hub not started")
)

// Bus subjects for presence events.
const (
	SubjectJoin   = "presence.join"
	SubjectLeave  = "presence.leave"
	SubjectExpire = "presence.expire"
	SubjectUpdate = "presence.update"
)

// Event is the payload published on join, leave and expire subjects.
type Event struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Total    int    `json:"total"`
}

// Config configures a Hub.
type Config struct {
	// Addr is the TCP listen address.
	// Default: ":8080"
	Addr string

	// StaleTimeout is the maximum idle duration before a peer is evicted.
	// Default: 30 seconds
	StaleTimeout time.Duration

	// SweepInterval is the eviction pass period, independent of the peer
	// heartbeat interval.
	// Default: 10 seconds
	SweepInterval time.Duration

	// Transport tunes accepted connections.
	Transport transport.Config

	// Mirror, when set, receives a copy of every presence event (used to
	// bridge events to NATS). Mirror failures are logged, never fatal.
	Mirror bus.MessageBus

	// Logger for hub output. Default: a fresh logger.
	Logger *logging.Logger

	// Clock drives registration timestamps, heartbeat stamps and the
	// sweep ticker. Default: wall clock.
	Clock clock.Clock
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		StaleTimeout:  30 * time.Second,
		SweepInterval: 10 * time.Second,
		Transport:     transport.DefaultConfig(),
	}
}

// inbound pairs a frame with the connection it arrived on.
type inbound struct {
	sess *session
	data []byte
}

// Hub is the central presence process.
type Hub struct {
	config Config
	log    *logging.Logger
	clock  clock.Clock

	store  *roster.Store
	events *bus.MemoryBus
	mirror bus.MessageBus

	// Owned by the run loop.
	sessions map[*session]struct{}

	attachCh chan *session
	detachCh chan *session
	inCh     chan inbound

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	listener net.Listener
	httpSrv  *http.Server
}

// New creates a Hub.
func New(cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = def.StaleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &Hub{
		config:   cfg,
		log:      cfg.Logger.WithComponent("hub"),
		clock:    cfg.Clock,
		store:    roster.NewStore(cfg.Clock),
		events:   bus.NewMemoryBus(bus.DefaultConfig()),
		mirror:   cfg.Mirror,
		sessions: make(map[*session]struct{}),
		attachCh: make(chan *session),
		detachCh: make(chan *session),
		inCh:     make(chan inbound, 64),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Events returns the hub's presence event bus. Subscribe before peers
// connect to observe the full event stream.
func (h *Hub) Events() bus.MessageBus {
	return h.events
}

// Start binds the listener and launches the run loop. A bind failure is
// the one fatal startup error; everything after is handled per
// connection.
func (h *Hub) Start(ctx context.Context) error {
	if h.running.Swap(true) {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", h.config.Addr)
	if err != nil {
		h.running.Store(false)
		return fmt.Errorf("listen %s: %w", h.config.Addr, err)
	}
	h.listener = ln
	h.httpSrv = &http.Server{Handler: h.Handler()}

	go h.run()
	go func() {
		if err := h.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.log.Error("http server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	h.log.Info("hub listening", map[string]interface{}{
		"addr":          ln.Addr().String(),
		"staleTimeout":  h.config.StaleTimeout.String(),
		"sweepInterval": h.config.SweepInterval.String(),
	})
	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (h *Hub) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop tears the hub down: run loop first, then open connections, the
// HTTP listener, and finally the event bus.
func (h *Hub) Stop(ctx context.Context) error {
	if !h.running.Swap(false) {
		return ErrNotStarted
	}

	close(h.stopCh)
	<-h.doneCh

	// The run loop has exited; nothing else touches sessions now.
	for sess := range h.sessions {
		sess.conn.Close()
	}

	var err error
	if h.httpSrv != nil {
		err = h.httpSrv.Shutdown(ctx)
	}
	h.events.Close()

	h.log.Info("hub stopped")
	return err
}

// run serializes every roster mutation onto one goroutine.
func (h *Hub) run() {
	defer close(h.doneCh)

	ticker := h.clock.Ticker(h.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case sess := <-h.attachCh:
			h.sessions[sess] = struct{}{}
			h.log.Debug("connection open", map[string]interface{}{
				"remote": sess.conn.RemoteAddr(),
				"open":   len(h.sessions),
			})
		case sess := <-h.detachCh:
			h.closeSession(sess)
		case in := <-h.inCh:
			h.dispatch(in.sess, in.data)
		case <-ticker.C:
			h.sweep()
		}
	}
}

// closeSession detaches a connection and removes its roster record, if
// it had completed registration.
func (h *Hub) closeSession(sess *session) {
	if _, ok := h.sessions[sess]; !ok {
		return
	}
	delete(h.sessions, sess)
	sess.conn.Close()

	rec := h.store.RemoveByOwner(sess.conn)
	if rec == nil {
		return
	}

	h.log.Info("peer disconnected", map[string]interface{}{
		"id":   rec.ID,
		"name": rec.Name,
	})
	h.publishEvent(SubjectLeave, rec)
	h.broadcast()
}

// sweep evicts every record idle past the stale timeout.
func (h *Hub) sweep() {
	expired := h.store.RemoveExpired(h.config.StaleTimeout)
	for _, rec := range expired {
		h.log.Info("peer expired", map[string]interface{}{
			"id":       rec.ID,
			"name":     rec.Name,
			"lastSeen": rec.LastSeen.UTC().Format(time.RFC3339),
		})
		h.publishEvent(SubjectExpire, rec)
		h.broadcast()
	}
}

// broadcast serializes the roster once and pushes it to every open
// connection, registered or not. Sends are fire-and-forget.
func (h *Hub) broadcast() {
	update := protocol.NewUpdate(h.summaries(false))
	data, err := update.Marshal()
	if err != nil {
		h.log.Error("broadcast marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	for sess := range h.sessions {
		sess.conn.Send(data)
	}
	h.publish(SubjectUpdate, data)
}

// summaries builds the roster view. withLastSeen selects the HTTP query
// variant; broadcasts omit lastSeen.
func (h *Hub) summaries(withLastSeen bool) []protocol.ClientSummary {
	now := h.store.Now()
	records := h.store.Snapshot()

	out := make([]protocol.ClientSummary, 0, len(records))
	for _, rec := range records {
		summary := protocol.ClientSummary{
			ID:          rec.ID,
			Name:        rec.Name,
			Location:    rec.Location,
			ConnectedAt: rec.ConnectedAt.UnixMilli(),
			Uptime:      now.Sub(rec.ConnectedAt).Milliseconds(),
		}
		if withLastSeen {
			summary.LastSeen = rec.LastSeen.UnixMilli()
		}
		out = append(out, summary)
	}
	return out
}

// publishEvent publishes a join/leave/expire event for one record.
func (h *Hub) publishEvent(subject string, rec *roster.Record) {
	data, err := json.Marshal(Event{
		ID:       rec.ID,
		Name:     rec.Name,
		Location: rec.Location,
		Total:    h.store.Len(),
	})
	if err != nil {
		return
	}
	h.publish(subject, data)
}

// publish fans an event out to the internal bus and the mirror.
func (h *Hub) publish(subject string, data []byte) {
	if err := h.events.Publish(subject, data); err != nil && err != bus.ErrClosed {
		h.log.Warn("event publish failed", map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		})
	}
	if h.mirror != nil {
		if err := h.mirror.Publish(subject, data); err != nil {
			h.log.Warn("event mirror failed", map[string]interface{}{
				"subject": subject,
				"error":   err.Error(),
			})
		}
	}
}
