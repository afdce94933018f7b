// Package wsbus implements bus.DirectBus over websocket connections,
// letting a remote UI or a separate process subscribe to crew/swarm
// channels live instead of linking the in-process bus directly.
package wsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lonestarx1/orcgrid/pkg/bus"
)

// Hub is a websocket-backed bus.DirectBus. Each connected client
// subscribes to one or more channels by sending a JSON
// {"subscribe": "<channel>"} control frame; the hub then forwards any
// Message published on that channel to the client as JSON.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	topics  map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan bus.Message

	mu     sync.Mutex
	topics map[string]struct{}
}

type subscribeFrame struct {
	Subscribe string `json:"subscribe"`
}

// NewHub creates an empty websocket hub. checkOrigin, if nil, allows
// all origins (suitable for a trusted operator-facing endpoint; wrap
// with an auth proxy for anything internet-facing).
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:  make(map[*client]struct{}),
		topics:   make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and starts read/write pumps for
// it. It blocks until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan bus.Message, 64), topics: make(map[string]struct{})}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writePump(c, done)
	h.readPump(c)

	close(done)
	h.removeClient(c)
	_ = conn.Close()
}

func (h *Hub) readPump(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame subscribeFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Subscribe == "" {
			continue
		}
		h.subscribe(c, frame.Subscribe)
	}
}

func (h *Hub) writePump(c *client, done <-chan struct{}) {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) subscribe(c *client, topic string) {
	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*client]struct{})
	}
	h.topics[topic][c] = struct{}{}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	c.mu.Lock()
	topics := make([]string, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	c.mu.Unlock()
	for _, t := range topics {
		delete(h.topics[t], c)
	}
}

// Publish delivers msg to every websocket client currently subscribed
// to channel. Sends are non-blocking per client.
func (h *Hub) Publish(ctx context.Context, channel string, msg bus.Message) error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.topics[channel]))
	for c := range h.topics[channel] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
		}
	}
	return nil
}

// Direct delivers msg only to clients subscribed to
// channel+"."+receiverID.
func (h *Hub) Direct(ctx context.Context, channel, receiverID string, msg bus.Message) error {
	msg.ReceiverID = receiverID
	return h.Publish(ctx, fmt.Sprintf("%s.%s", channel, receiverID), msg)
}

// Subscribe is not meaningful for server-side code against a Hub —
// subscription happens from the websocket client side. It always
// returns a closed channel and a no-op unsubscribe, satisfying
// bus.Bus for callers that type-switch on the interface without
// calling Subscribe server-side.
func (h *Hub) Subscribe(name string, bufferSize int) (<-chan bus.Message, func()) {
	ch := make(chan bus.Message)
	close(ch)
	return ch, func() {}
}
