package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"profmon/internal/models"
	"profmon/internal/providers"
)

const (
	hubWriteTimeout = 5 * time.Second
	hubClientBuffer = 64
)

var hubUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
	},
}

// HubMessage is what dashboard clients receive.
type HubMessage struct {
	Type     string              `json:"type"`
	Target   string              `json:"target"`
	Event    *models.ChangeEvent `json:"event,omitempty"`
	Snapshot *models.Snapshot    `json:"snapshot,omitempty"`
	Beats    int64               `json:"beats,omitempty"`
	At       time.Time           `json:"at"`
}

type hubClient struct {
	send chan []byte
}

// Hub is the dashboard sink: it pushes change events, first baselines and
// liveness beats to every connected websocket client. Slow clients are
// dropped instead of blocking the runners.
type Hub struct {
	logger providers.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}

	broadcasts atomic.Int64
	dropped    atomic.Int64
}

func NewHub(logger providers.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

func (h *Hub) Name() string { return "dashboard" }

func (h *Hub) Send(_ context.Context, ev models.ChangeEvent) error {
	return h.broadcast(HubMessage{Type: "change", Target: ev.Target, Event: &ev, At: ev.At})
}

func (h *Hub) Initial(_ context.Context, snap *models.Snapshot) {
	if err := h.broadcast(HubMessage{Type: "baseline", Target: snap.Username, Snapshot: snap, At: snap.TakenAt}); err != nil {
		h.logger.Warnf(providers.TypeNotify, "Dashboard baseline broadcast failed: %s", err)
	}
}

// Beat implements the runner's liveness observer.
func (h *Hub) Beat(target string, beats int64, at time.Time) {
	if err := h.broadcast(HubMessage{Type: "heartbeat", Target: target, Beats: beats, At: at}); err != nil {
		h.logger.Warnf(providers.TypeNotify, "Dashboard heartbeat broadcast failed: %s", err)
	}
}

func (h *Hub) broadcast(msg HubMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.broadcasts.Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			delete(h.clients, c)
			close(c.send)
			h.dropped.Inc()
		}
	}
	return nil
}

func (h *Hub) register() *hubClient {
	c := &hubClient{send: make(chan []byte, hubClientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stats returns broadcasts made and clients dropped for being slow.
func (h *Hub) Stats() (broadcasts, dropped int64) {
	return h.broadcasts.Load(), h.dropped.Load()
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := hubUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debugf(providers.TypeGet, "Websocket upgrade failed: %s", err)
		return
	}
	h.serve(conn)
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer conn.Close()
	c := h.register()
	defer h.unregister(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
