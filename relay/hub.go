// Package relay implements the chat broadcast channel: one global domain in
// which every message published by any connection is delivered to all
// connections, the sender included. Nothing is stored, so a connection only
// sees messages published while it is joined.
package relay

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/chuka-black-market/marketplace/models"
)

// SlowConsumerPolicy decides what happens when a connection's outbound
// queue is full.
type SlowConsumerPolicy int

const (
	// Disconnect removes the connection and closes its queue.
	Disconnect SlowConsumerPolicy = iota
	// DropMessage discards the message for that connection only.
	DropMessage
)

// ParsePolicy maps "drop" and "disconnect" to a policy.
func ParsePolicy(s string) (SlowConsumerPolicy, error) {
	switch s {
	case "", "disconnect":
		return Disconnect, nil
	case "drop":
		return DropMessage, nil
	}
	return Disconnect, fmt.Errorf("unknown slow consumer policy %q", s)
}

func (p SlowConsumerPolicy) String() string {
	if p == DropMessage {
		return "drop"
	}
	return "disconnect"
}

type Options struct {
	QueueSize int
	Policy    SlowConsumerPolicy
}

// Client is one joined connection. Messages arrive on Messages(); the
// channel is closed when the client leaves or is disconnected.
type Client struct {
	ID      string
	send    chan *models.Message
	dropped bool
}

func (c *Client) Messages() <-chan *models.Message { return c.send }

// Dropped reports whether the hub disconnected the client as a slow
// consumer. It is only meaningful once Messages() has been closed.
func (c *Client) Dropped() bool { return c.dropped }

type Hub struct {
	bus         Bus
	opts        Options
	unsubscribe func()

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

// NewHub subscribes a hub to bus.
func NewHub(bus Bus, opts Options) (*Hub, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	h := &Hub{
		bus:     bus,
		opts:    opts,
		clients: make(map[*Client]struct{}),
	}
	unsub, err := bus.Subscribe(h.deliver)
	if err != nil {
		return nil, fmt.Errorf("subscribe hub: %w", err)
	}
	h.unsubscribe = unsub
	return h, nil
}

// Join registers a new connection.
func (h *Hub) Join() *Client {
	c := &Client{
		ID:   uuid.NewString(),
		send: make(chan *models.Message, h.opts.QueueSize),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return c
	}
	h.clients[c] = struct{}{}
	return c
}

// Leave removes c. It is safe to call more than once and after the hub
// already disconnected c.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// Publish sends text to every joined connection. Empty text is ignored.
func (h *Hub) Publish(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return h.bus.Publish(ctx, &models.Message{Text: text})
}

// Count reports the number of joined connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from the bus and disconnects every client.
func (h *Hub) Close() {
	h.unsubscribe()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
	h.closed = true
}

func (h *Hub) deliver(msg *models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			if h.opts.Policy == DropMessage {
				log.Printf("Dropped message for slow client %s", c.ID)
				continue
			}
			log.Printf("Disconnecting slow client %s", c.ID)
			c.dropped = true
			h.remove(c)
		}
	}
}

// remove must be called with h.mu held. Closing send publishes any field
// set on c before the call to the receiving side.
func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}
