package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts Options) (*Hub, string) {
	t.Helper()
	opts.Logger = zerolog.Nop()
	hub := NewHub(opts)
	server := httptest.NewServer(hub.Handler("/events"))
	t.Cleanup(func() {
		_ = hub.Close()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == want }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func sampleEvent(frame int) pipeline.Event {
	return pipeline.Event{
		RunID:     "3f1c",
		FrameID:   frame,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Boxes:     []motion.BoundingBox{{X: 99, Y: 99, Width: 42, Height: 42}},
	}
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t, Options{})
	first := dial(t, hub, url, 1)
	second := dial(t, hub, url, 2)

	require.NoError(t, hub.Publish(context.Background(), sampleEvent(7)))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got pipeline.Event
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, sampleEvent(7), got)
	}
	assert.Equal(t, int64(1), hub.Published())
}

func TestHubWireFormat(t *testing.T) {
	hub, url := startHub(t, Options{})
	conn := dial(t, hub, url, 1)

	require.NoError(t, hub.Publish(context.Background(), sampleEvent(3)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "3f1c", raw["run_id"])
	assert.EqualValues(t, 3, raw["frame_id"])
	assert.Equal(t, "2024-05-01T12:00:00Z", raw["timestamp"])
	boxes := raw["boxes"].([]any)
	require.Len(t, boxes, 1)
	assert.Equal(t, map[string]any{"x": 99.0, "y": 99.0, "width": 42.0, "height": 42.0}, boxes[0])
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(Options{QueueSize: 1, Logger: zerolog.Nop()})
	// A registered client without a writer never drains its queue.
	slow := &client{id: "slow", send: make(chan []byte, 1)}
	require.True(t, hub.register(slow))

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(context.Background(), sampleEvent(i)))
	}
	assert.Equal(t, int64(3), hub.Published())
	assert.Equal(t, int64(2), hub.Dropped())
	assert.Len(t, slow.send, 1)
}

func TestHubClose(t *testing.T) {
	hub, url := startHub(t, Options{})
	conn := dial(t, hub, url, 1)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	assert.ErrorIs(t, hub.Publish(context.Background(), sampleEvent(1)), ErrClosed)
	assert.Zero(t, hub.Clients())
}

func TestHubClientDisconnect(t *testing.T) {
	hub, url := startHub(t, Options{})
	conn := dial(t, hub, url, 1)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), sampleEvent(1)))
}

func TestHubPublishCancelled(t *testing.T) {
	hub := NewHub(Options{Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hub.Publish(ctx, sampleEvent(1)), context.Canceled)
	assert.Zero(t, hub.Published())
}

func TestHubHealth(t *testing.T) {
	hub := NewHub(Options{Logger: zerolog.Nop()})
	rec := httptest.NewRecorder()
	hub.Handler("/events").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]int64{"clients": 0, "published": 0, "dropped": 0}, body)
}

func TestHubRejectsPlainHTTP(t *testing.T) {
	hub := NewHub(Options{Logger: zerolog.Nop()})
	rec := httptest.NewRecorder()
	hub.Handler("/events").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, hub.Clients())
}

func TestHubLogsComponent(t *testing.T) {
	var logs bytes.Buffer
	hub := NewHub(Options{QueueSize: 1, Logger: zerolog.New(&logs)})
	slow := &client{id: "slow", send: make(chan []byte, 1)}
	require.True(t, hub.register(slow))

	require.NoError(t, hub.Publish(context.Background(), sampleEvent(1)))
	require.NoError(t, hub.Publish(context.Background(), sampleEvent(2)))

	assert.Contains(t, logs.String(), `"component":"notify"`)
	assert.Contains(t, logs.String(), "client queue full")
}
