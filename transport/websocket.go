package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single full-duplex, message-framed connection.
type Conn struct {
	ws     *websocket.Conn
	config Config
	remote string

	recv chan []byte
	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an established websocket and starts its read and write
// loops. The caller consumes Recv until it closes.
func NewConn(ws *websocket.Conn, cfg Config) *Conn {
	cfg = cfg.withDefaults()
	ws.SetReadLimit(cfg.MaxMessageSize)

	c := &Conn{
		ws:     ws,
		config: cfg,
		remote: ws.RemoteAddr().String(),
		recv:   make(chan []byte, cfg.RecvBufferSize),
		send:   make(chan []byte, cfg.SendBufferSize),
		done:   make(chan struct{}),
	}

	go c.readLoop()
	go c.writeLoop()

	return c
}

// Upgrader returns an upgrader for accepting connections. Origin checks
// are the embedding server's concern.
func Upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Upgrade accepts an incoming websocket handshake and wraps it.
func Upgrade(w http.ResponseWriter, r *http.Request, cfg Config) (*Conn, error) {
	ws, err := Upgrader().Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, cfg), nil
}

// Dial opens a client connection to url (ws:// or wss://).
func Dial(ctx context.Context, url string, cfg Config) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, cfg), nil
}

// Recv returns the inbound frame channel. It is closed when the peer
// disconnects, a read fails, or Close is called.
func (c *Conn) Recv() <-chan []byte {
	return c.recv
}

// Send queues a frame for delivery. Returns ErrClosed after close; a full
// queue drops the frame silently, matching best-effort delivery.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return nil
	}
}

// RemoteAddr reports the transport-layer origin of the peer.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Close shuts the connection down. Idempotent; queued frames are drained
// before the close frame goes out.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	return c.ws.Close()
}

// readLoop feeds inbound frames to recv until the socket fails or closes.
func (c *Conn) readLoop() {
	defer close(c.recv)
	defer c.Close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		select {
		case c.recv <- data:
		case <-c.done:
			return
		}
	}
}

// writeLoop serializes all writes to the socket.
func (c *Conn) writeLoop() {
	ticker := c.pingTicker()
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.drain()
			return
		case <-ticker.C:
			c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
		case data := <-c.send:
			if err := c.write(data); err != nil {
				c.Close()
				return
			}
		}
	}
}

// pingTicker returns the keepalive ticker, or a stopped one when pings
// are disabled.
func (c *Conn) pingTicker() *time.Ticker {
	if c.config.PingInterval > 0 {
		return time.NewTicker(c.config.PingInterval)
	}
	ticker := time.NewTicker(time.Hour)
	ticker.Stop()
	return ticker
}

// drain flushes frames queued before close.
func (c *Conn) drain() {
	for {
		select {
		case data := <-c.send:
			c.write(data)
		default:
			return
		}
	}
}

// write puts one text frame on the socket.
func (c *Conn) write(data []byte) error {
	if c.config.WriteTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}
