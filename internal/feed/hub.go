// Package feed pushes roster replacements to websocket subscribers of a squad.
package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/metrics"
)

// MessageTypeRoster tags a roster replacement message.
const MessageTypeRoster = "roster"

const defaultWriteTimeout = 5 * time.Second

// Message is the JSON frame sent to subscribers.
type Message struct {
	Type    string           `json:"type"`
	SquadID string           `json:"squadId"`
	Players []players.Player `json:"players"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks subscribers per squad id.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}

	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Recorder
}

// Option configures a Hub.
type Option func(*Hub)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithAllowedOrigins restricts upgrades to the listed origins. "*" or an empty
// list accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			if o == "*" {
				return
			}
			allowed[o] = true
		}
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// NewHub returns an empty Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:         make(map[string]map[*subscriber]struct{}),
		writeTimeout: defaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeWS upgrades the request and keeps the connection subscribed to
// squadID until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, squadID string) {
	logger := logging.FromContext(r.Context(), h.logger)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		logging.Warn(logger, "websocket upgrade failed", logging.FieldSquadID, squadID, "err", err)
		return
	}

	sub := h.add(squadID, conn)
	defer h.remove(squadID, sub)
	logging.Info(logger, "feed subscriber joined", logging.FieldSquadID, squadID)

	// Incoming frames are ignored; reading surfaces the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends the roster to every subscriber of squadID. Subscribers whose
// write fails are disconnected.
func (h *Hub) Publish(squadID string, list []players.Player) {
	if list == nil {
		list = []players.Player{}
	}
	data, err := json.Marshal(Message{Type: MessageTypeRoster, SquadID: squadID, Players: list})
	if err != nil {
		logging.Error(h.logger, "encode feed message", err, logging.FieldSquadID, squadID)
		return
	}

	for _, sub := range h.snapshot(squadID) {
		if err := sub.write(data, h.writeTimeout); err != nil {
			logging.Warn(h.logger, "dropping feed subscriber", logging.FieldSquadID, squadID, "err", err)
			h.remove(squadID, sub)
		}
	}
}

// Subscribers returns how many connections follow squadID.
func (h *Hub) Subscribers(squadID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[squadID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()

	n := 0
	for _, set := range all {
		for sub := range set {
			sub.mu.Lock()
			_ = sub.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			sub.mu.Unlock()
			_ = sub.conn.Close()
			n++
		}
	}
	if n > 0 {
		h.metrics.RecordFeedSubscribers(-n)
	}
}

func (h *Hub) add(squadID string, conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	set, ok := h.subs[squadID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[squadID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.RecordFeedSubscribers(1)
	return sub
}

// remove is safe to call more than once for the same subscriber.
func (h *Hub) remove(squadID string, sub *subscriber) {
	h.mu.Lock()
	set := h.subs[squadID]
	_, ok := set[sub]
	if ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, squadID)
		}
	}
	h.mu.Unlock()

	if ok {
		_ = sub.conn.Close()
		h.metrics.RecordFeedSubscribers(-1)
	}
}

func (h *Hub) snapshot(squadID string) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscriber, 0, len(h.subs[squadID]))
	for sub := range h.subs[squadID] {
		out = append(out, sub)
	}
	return out
}
