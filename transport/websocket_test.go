package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// echoServer upgrades each connection and echoes every frame back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, DefaultConfig())
		if err != nil {
			t.Errorf("Upgrade error: %v", err)
			return
		}
		go func() {
			defer conn.Close()
			for data := range conn.Recv() {
				conn.Send(data)
			}
		}()
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// --- Integration Tests ---

func TestConn_RoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	conn, err := Dial(context.Background(), wsURL(srv), DefaultConfig())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	if err := conn.Send([]byte(`{"type":"heartbeat","id":"p1"}`)); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	select {
	case data, ok := <-conn.Recv():
		if !ok {
			t.Fatal("Recv closed before echo")
		}
		if string(data) != `{"type":"heartbeat","id":"p1"}` {
			t.Errorf("echoed %q", data)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for echo")
	}
}

func TestConn_CloseClosesRecv(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	conn, err := Dial(context.Background(), wsURL(srv), DefaultConfig())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	select {
	case _, ok := <-conn.Recv():
		if ok {
			t.Error("received frame after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Recv not closed after Close")
	}

	// Idempotent.
	if err := conn.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
}

func TestConn_SendAfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	conn, err := Dial(context.Background(), wsURL(srv), DefaultConfig())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	conn.Close()

	if err := conn.Send([]byte("x")); err != ErrClosed {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
}

func TestConn_PeerCloseClosesRecv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, DefaultConfig())
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	conn, err := Dial(context.Background(), wsURL(srv), DefaultConfig())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	select {
	case _, ok := <-conn.Recv():
		if ok {
			t.Error("unexpected frame from closing peer")
		}
	case <-time.After(time.Second):
		t.Fatal("Recv not closed after peer close")
	}
}

func TestConn_RemoteAddr(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	conn, err := Dial(context.Background(), wsURL(srv), DefaultConfig())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	if conn.RemoteAddr() == "" {
		t.Error("RemoteAddr empty")
	}
}

func TestDial_Refused(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", DefaultConfig())
	if err == nil {
		t.Fatal("Dial to closed port succeeded")
	}
}
