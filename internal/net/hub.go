package net

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/edsabi/AISubBrawl/internal/sim"
)

const writeWait = 10 * time.Second

// subscriber serializes writes to one websocket connection.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub owns the per-user event stream connections and implements
// sim.Dispatcher. One connection per user; a new subscription replaces the
// old one.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint]*subscriber
	log         zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[uint]*subscriber),
		log:         log,
	}
}

// Subscribe attaches a connection for the given user, closing any previous
// one.
func (h *Hub) Subscribe(userID uint, conn *websocket.Conn) {
	h.mu.Lock()
	if existing, ok := h.subscribers[userID]; ok {
		existing.conn.Close()
	}
	h.subscribers[userID] = &subscriber{conn: conn}
	h.mu.Unlock()
}

// Disconnect drops a user's connection if present.
func (h *Hub) Disconnect(userID uint) {
	h.mu.Lock()
	sub, ok := h.subscribers[userID]
	if ok {
		delete(h.subscribers, userID)
	}
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}

// Deliver writes each user's ordered event list to their connection. Users
// without a live connection simply miss the tick; the next snapshot makes
// them whole.
func (h *Hub) Deliver(batches []sim.UserEvents) {
	if len(batches) == 0 {
		return
	}

	h.mu.Lock()
	subs := make(map[uint]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for _, batch := range batches {
		sub, ok := subs[batch.UserID]
		if !ok {
			continue
		}
		for _, ev := range batch.Events {
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error().Err(err).Str("event", string(ev.Type)).Msg("failed to marshal event")
				continue
			}
			sub.mu.Lock()
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = sub.conn.WriteMessage(websocket.TextMessage, data)
			sub.mu.Unlock()
			if err != nil {
				h.log.Warn().Err(err).Uint("user", batch.UserID).Msg("dropping event subscriber")
				h.Disconnect(batch.UserID)
				break
			}
		}
	}
}
