// Package live fans freshly committed samples out to WebSocket subscribers.
// Each subscriber watches one (group, device) pair; samples accepted by the
// write endpoints are published to it after the storage commit succeeds.
package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taransay/taransayd/pkg/series"
)

const writeDeadline = 10 * time.Second

// Update is one pushed sample, in the same shape the query stream uses.
type Update struct {
	X string    `json:"x"`
	Y []float64 `json:"y"`
}

// Hub tracks subscribers per device topic.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*websocket.Conn]bool
	closed bool

	// Serializes publishes: gorilla connections do not allow concurrent
	// writers, and two requests may commit to the same device at once.
	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*websocket.Conn]bool)}
}

func topicKey(group, device string) string {
	return group + "/" + device
}

// Run blocks until the context is cancelled, then closes every subscriber
// connection and rejects further subscriptions.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, conns := range h.topics {
		for conn := range conns {
			conn.Close()
		}
	}
	h.topics = make(map[string]map[*websocket.Conn]bool)
}

// Subscribe registers a connection for a device topic. Returns false if the
// hub is shutting down.
func (h *Hub) Subscribe(group, device string, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	key := topicKey(group, device)
	if h.topics[key] == nil {
		h.topics[key] = make(map[*websocket.Conn]bool)
	}
	h.topics[key][conn] = true
	log.Printf("live: subscriber added for %s (total: %d)", key, len(h.topics[key]))
	return true
}

// Unsubscribe removes a connection from a device topic and closes it.
func (h *Hub) Unsubscribe(group, device string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := topicKey(group, device)
	if conns, ok := h.topics[key]; ok && conns[conn] {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.topics, key)
		}
		conn.Close()
		log.Printf("live: subscriber removed for %s", key)
	}
}

// Publish pushes committed samples to every subscriber of a device topic.
// Slow or failed connections are dropped rather than blocking the write
// path.
func (h *Hub) Publish(group, device string, samples []series.Sample) {
	if len(samples) == 0 {
		return
	}

	key := topicKey(group, device)

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.topics[key]))
	for conn := range h.topics[key] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	messages := make([][]byte, 0, len(samples))
	for _, s := range samples {
		msg, err := json.Marshal(Update{X: s.Time.Format(time.RFC3339Nano), Y: s.Values})
		if err != nil {
			log.Printf("live: encoding update: %v", err)
			continue
		}
		messages = append(messages, msg)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("live: write error, dropping subscriber: %v", err)
				h.Unsubscribe(group, device, conn)
				break
			}
		}
	}
}

// Subscribers reports the current subscriber count for a device topic.
func (h *Hub) Subscribers(group, device string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topicKey(group, device)])
}
