// Package notify fans motion events out to WebSocket clients.
//
// Every client owns a bounded queue. Publish never blocks on a slow client:
// when a queue is full the event is dropped for that client only.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nvr-ai/go-motion/logging"
	"github.com/nvr-ai/go-motion/pipeline"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("hub closed")

// Options configures a Hub.
type Options struct {
	// QueueSize is the number of events buffered per client (default 16).
	QueueSize int
	// WriteTimeout bounds each write to a client (default 5s).
	WriteTimeout time.Duration
	// PingInterval is how often idle clients are pinged (default 30s).
	PingInterval time.Duration
	Logger       zerolog.Logger
}

// Hub is a pipeline.Publisher that broadcasts events over WebSocket.
type Hub struct {
	opts     Options
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	published atomic.Int64
	dropped   atomic.Int64
}

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) stop() {
	c.closeOnce.Do(func() { close(c.send) })
}

// NewHub creates a hub with no clients.
//
// Arguments:
// - opts: Queue and timeout settings. Zero values select the defaults.
//
// Returns:
// - *Hub: A hub ready to be mounted with Handler.
func NewHub(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &Hub{
		opts:   opts,
		logger: logging.Component(opts.Logger, "notify"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*client),
	}
}

// Handler returns a mux serving the WebSocket endpoint at path and a health
// probe at /healthz.
func (h *Hub) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{
			"clients":   int64(h.Clients()),
			"published": h.published.Load(),
			"dropped":   h.dropped.Load(),
		})
	})
	return mux
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.opts.QueueSize),
	}
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	h.logger.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("client connected")

	go h.writePump(c)
	h.readPump(c)

	h.unregister(c)
	h.logger.Info().Str("client", c.id).Msg("client disconnected")
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.stop()
}

// readPump discards inbound messages and keeps the read deadline alive
// through pongs. It returns when the connection fails.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()

	wait := h.opts.PingInterval + h.opts.WriteTimeout
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("client", c.id).Msg("read failed")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish queues the event for every connected client.
//
// Arguments:
// - ctx: Checked before encoding; Publish itself never blocks.
// - event: The motion event to broadcast.
//
// Returns:
// - error: ErrClosed after Close, the context error, or an encoding error.
func (h *Hub) Publish(ctx context.Context, event pipeline.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}

	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Debug().Str("client", c.id).Int("frame", event.FrameID).Msg("client queue full, event dropped")
		}
	}
	h.published.Add(1)
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Published returns the number of events accepted by Publish.
func (h *Hub) Published() int64 {
	return h.published.Load()
}

// Dropped returns the number of per-client deliveries skipped because a queue
// was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client. Further Publish calls fail with ErrClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, c := range h.clients {
		c.stop()
		delete(h.clients, id)
	}
	return nil
}

var _ pipeline.Publisher = (*Hub)(nil)
