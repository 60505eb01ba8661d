// Package stream fans poller snapshots out to websocket clients.
package stream

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"metalrates/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// DefaultBuffer is the per-client queue length.
	DefaultBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub keeps the latest payload per topic and broadcasts new ones to every
// subscriber. A slow subscriber loses its oldest queued message, never
// blocks the publisher.
type Hub struct {
	buffer int

	mu      sync.RWMutex
	clients map[string]chan []byte
	latest  map[string][]byte
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer:  buffer,
		clients: make(map[string]chan []byte),
		latest:  make(map[string][]byte),
	}
}

// Publish implements poller.Publisher.
func (h *Hub) Publish(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[topic] = payload
	for id, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			// Subscriber is too slow; drop the oldest message
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- payload:
			default:
				logger.Debug("stream: client %s buffer full, skipping message", id)
			}
		}
	}
}

// Subscribe registers a listener that first receives the latest payload of
// every topic. The returned func unsubscribes and closes the channel; it may
// be called more than once.
func (h *Hub) Subscribe() (string, <-chan []byte, func()) {
	id := uuid.New().String()
	ch := make(chan []byte, h.buffer)

	h.mu.Lock()
	topics := make([]string, 0, len(h.latest))
	for t := range h.latest {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	for _, t := range topics {
		select {
		case ch <- h.latest[t]:
		default:
		}
	}
	h.clients[id] = ch
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return id, ch, unsubscribe
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes every client; websocket clients receive a close frame.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}

// ServeWS upgrades the request and streams snapshots until either side goes
// away. Inbound messages are read only to process control frames.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("stream: upgrade: %v", err)
		return
	}
	id, send, unsubscribe := h.Subscribe()
	logger.Debug("stream: client %s connected from %s", id, r.RemoteAddr)

	go writePump(conn, send)
	readPump(conn, id)
	unsubscribe()
}

func readPump(conn *websocket.Conn, id string) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Error("stream: client %s: %v", id, err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
