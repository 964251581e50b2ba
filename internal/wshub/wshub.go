// Package wshub implements the push-telemetry hub of spec §6: a
// gorilla/websocket endpoint that fans out internal/bus events
// (Spectrum, Levels, Waveform, Queue, RadioState) to subscribed
// clients. Grounded on the teacher's websocket transport
// (server/internal/ws/handler.go): upgrade the request, run one reader
// goroutine and one writer goroutine per connection, and never let a
// slow client block the publisher (that guarantee already lives in
// internal/bus; the hub only needs to drain its own subscription
// promptly).
package wshub

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"audiorack/internal/bus"
)

const writeTimeout = 5 * time.Second

// allTopics is the full set a client is subscribed to by default (spec
// §6: "topics Spectrum, Levels, Waveform, Queue, RadioState").
var allTopics = []bus.Topic{
	bus.TopicSpectrum,
	bus.TopicLevels,
	bus.TopicWaveform,
	bus.TopicQueueChanged,
	bus.TopicRadioState,
}

// controlMessage is the client->server subscribe/unsubscribe envelope.
type controlMessage struct {
	Type   string      `json:"type"`
	Topics []bus.Topic `json:"topics,omitempty"`
}

// outboundMessage is the server->client envelope wrapping one bus.Event.
type outboundMessage struct {
	Topic   bus.Topic `json:"topic"`
	Payload any       `json:"payload"`
}

// Hub upgrades HTTP connections to websockets and bridges them to the
// shared event bus.
type Hub struct {
	bus      *bus.Bus
	upgrader websocket.Upgrader
}

// New returns a Hub bridging connections to bus.
func New(b *bus.Bus) *Hub {
	return &Hub{
		bus: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register binds the websocket route on an Echo router.
func (h *Hub) Register(e *echo.Echo, path string) {
	if path == "" {
		path = "/ws/telemetry"
	}
	e.GET(path, h.HandleWebSocket)
}

// ConnectedClients is the gauge metric of spec §6 ("connected-client
// counts are exposed as a gauge"): one bus subscription per connection,
// so the bus's own subscriber count is exactly the client count.
func (h *Hub) ConnectedClients() int { return h.bus.SubscriberCount() }

// HandleWebSocket upgrades one request and serves it until disconnect.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	remoteAddr := c.RealIP()
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("wshub: upgrade failed", "remote", remoteAddr, "err", err)
		return err
	}
	h.serveConn(conn, remoteAddr)
	return nil
}

func (h *Hub) serveConn(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()
	conn.SetReadLimit(1 << 16)

	events, unsubscribe := h.bus.Subscribe(64)
	defer unsubscribe()

	active := newTopicSet(allTopics...)
	slog.Debug("wshub: connected", "remote", remoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if !active.has(ev.Topic) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := conn.WriteJSON(outboundMessage{Topic: ev.Topic, Payload: ev.Payload}); err != nil {
				slog.Debug("wshub: write error", "remote", remoteAddr, "err", err)
				return
			}
		}
	}()

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("wshub: unexpected close", "remote", remoteAddr, "err", err)
			}
			break
		}
		switch msg.Type {
		case "subscribe":
			active.add(msg.Topics...)
		case "unsubscribe":
			active.remove(msg.Topics...)
		default:
			slog.Debug("wshub: unknown control message", "remote", remoteAddr, "type", msg.Type)
		}
	}

	<-done
	slog.Debug("wshub: disconnected", "remote", remoteAddr)
}

// topicSet is a plain, connection-local set; subscribe/unsubscribe are
// idempotent since adding/removing from a set is naturally so (spec §6:
// "Subscribe/unsubscribe idempotent").
type topicSet map[bus.Topic]bool

func newTopicSet(topics ...bus.Topic) topicSet {
	s := make(topicSet, len(topics))
	for _, t := range topics {
		s[t] = true
	}
	return s
}

func (s topicSet) has(t bus.Topic) bool { return s[t] }

func (s topicSet) add(topics ...bus.Topic) {
	for _, t := range topics {
		s[t] = true
	}
}

func (s topicSet) remove(topics ...bus.Topic) {
	for _, t := range topics {
		delete(s, t)
	}
}
