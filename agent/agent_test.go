package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pulsehub/protocol"
	"pulsehub/transport"
)

// scriptedHub accepts connections and hands them to the test body.
func scriptedHub(t *testing.T) (*httptest.Server, <-chan *transport.Conn) {
	t.Helper()

	conns := make(chan *transport.Conn, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.Upgrade(w, r, transport.DefaultConfig())
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// recvFrame reads one parsed frame from a hub-side connection.
func recvFrame(t *testing.T, conn *transport.Conn, timeout time.Duration) *protocol.Message {
	t.Helper()

	select {
	case data, ok := <-conn.Recv():
		if !ok {
			t.Fatal("connection closed")
		}
		msg, err := protocol.Parse(data)
		if err != nil {
			t.Fatalf("Parse error: %v (frame %s)", err, data)
		}
		return msg
	case <-time.After(timeout):
		t.Fatal("timeout waiting for frame")
		return nil
	}
}

func testConfig(url string) Config {
	return Config{
		ServerURL:         url,
		Name:              "Alice",
		Location:          "NYC",
		HeartbeatInterval: 50 * time.Millisecond,
		ReconnectDelay:    50 * time.Millisecond,
	}
}

// --- Unit Tests ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid",
			cfg:     Config{ServerURL: "ws://localhost:8080/ws"},
			wantErr: false,
		},
		{
			name:    "missing url",
			cfg:     Config{Name: "Alice"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 5s", cfg.HeartbeatInterval)
	}
	if cfg.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", cfg.ReconnectDelay)
	}
}

func TestAgent_StopBeforeStart(t *testing.T) {
	a, _ := New(testConfig("ws://localhost:1/ws"))
	if err := a.Stop(); err != ErrNotStarted {
		t.Errorf("Stop() = %v, want ErrNotStarted", err)
	}
}

func TestAgent_DoubleStart(t *testing.T) {
	srv, _ := scriptedHub(t)
	a, _ := New(testConfig(wsURL(srv)))

	a.Start(context.Background())
	defer a.Stop()

	if err := a.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

// --- Integration Tests ---

func TestAgent_RegistersOnConnect(t *testing.T) {
	srv, conns := scriptedHub(t)

	a, err := New(testConfig(wsURL(srv)))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer a.Stop()

	hubSide := <-conns
	msg := recvFrame(t, hubSide, time.Second)
	reg := msg.Register
	if reg == nil {
		t.Fatalf("first frame = %q, want register", msg.Type())
	}
	if reg.Name != "Alice" || reg.Location != "NYC" {
		t.Errorf("identity = %q/%q", reg.Name, reg.Location)
	}
	if reg.Platform == "" || reg.Arch == "" {
		t.Error("environment descriptors missing")
	}
	if reg.ID != "" {
		t.Errorf("first register carries id %q, want empty", reg.ID)
	}
}

func TestAgent_HeartbeatsWithAssignedID(t *testing.T) {
	srv, conns := scriptedHub(t)

	a, _ := New(testConfig(wsURL(srv)))
	a.Start(context.Background())
	defer a.Stop()

	hubSide := <-conns
	recvFrame(t, hubSide, time.Second) // register

	ack, _ := protocol.NewRegistered("assigned-1", 1).Marshal()
	hubSide.Send(ack)

	// Heartbeats may race the ack; wait for one carrying the id.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("no heartbeat with assigned id")
		default:
		}
		msg := recvFrame(t, hubSide, 2*time.Second)
		if msg.Heartbeat != nil && msg.Heartbeat.ID == "assigned-1" {
			break
		}
	}

	if a.ID() != "assigned-1" {
		t.Errorf("ID() = %q, want assigned-1", a.ID())
	}
}

func TestAgent_HeartbeatsBeforeAck(t *testing.T) {
	srv, conns := scriptedHub(t)

	a, _ := New(testConfig(wsURL(srv)))
	a.Start(context.Background())
	defer a.Stop()

	hubSide := <-conns
	recvFrame(t, hubSide, time.Second) // register

	// Never acked: heartbeats still fire, with an empty id.
	msg := recvFrame(t, hubSide, time.Second)
	if msg.Heartbeat == nil {
		t.Fatalf("frame = %q, want heartbeat", msg.Type())
	}
	if msg.Heartbeat.ID != "" {
		t.Errorf("unacked heartbeat id = %q, want empty", msg.Heartbeat.ID)
	}
}

func TestAgent_ReconnectsAfterClose(t *testing.T) {
	srv, conns := scriptedHub(t)

	a, _ := New(testConfig(wsURL(srv)))
	a.Start(context.Background())
	defer a.Stop()

	first := <-conns
	recvFrame(t, first, time.Second) // register
	ack, _ := protocol.NewRegistered("sticky-id", 1).Marshal()
	first.Send(ack)

	// Wait until the ack landed before cutting the connection.
	deadline := time.After(2 * time.Second)
	for a.ID() != "sticky-id" {
		select {
		case <-deadline:
			t.Fatal("ack never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	first.Close()

	// The agent reconnects after the fixed delay and re-registers under
	// its assigned id.
	select {
	case second := <-conns:
		msg := recvFrame(t, second, time.Second)
		if msg.Register == nil {
			t.Fatalf("frame = %q, want register", msg.Type())
		}
		if msg.Register.ID != "sticky-id" {
			t.Errorf("re-register id = %q, want sticky-id", msg.Register.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not reconnect")
	}
}

func TestAgent_RetriesWhenHubDown(t *testing.T) {
	srv, conns := scriptedHub(t)
	url := wsURL(srv)
	srv.Close()

	a, _ := New(testConfig(url))
	a.Start(context.Background())
	defer a.Stop()

	// No server: the agent must keep retrying without giving up.
	select {
	case <-conns:
		t.Fatal("unexpected connection")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAgent_StopCancelsPendingReconnect(t *testing.T) {
	a, _ := New(Config{
		ServerURL:         "ws://127.0.0.1:1/ws",
		HeartbeatInterval: 50 * time.Millisecond,
		ReconnectDelay:    time.Hour,
	})
	a.Start(context.Background())

	// The dial fails immediately, leaving the agent parked on its
	// reconnect timer; Stop must not wait the hour out.
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- a.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on pending reconnect")
	}
}
