package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/chuka-black-market/marketplace/config"
	"github.com/chuka-black-market/marketplace/models"
	"github.com/chuka-black-market/marketplace/relay"
)

type Client struct {
	Conn     *websocket.Conn
	Hub      *relay.Hub
	Relay    *relay.Client // Membership in the broadcast hub
	DoneChan chan struct{} // Closed when the reader stops
}

func NewClient(conn *websocket.Conn, hub *relay.Hub) *Client {
	return &Client{
		Conn:     conn,
		Hub:      hub,
		Relay:    hub.Join(),
		DoneChan: make(chan struct{}),
	}
}

// HandleRead reads messages from the WebSocket connection and publishes them
// to the hub.
func (c *Client) HandleRead(ctx context.Context) {
	defer func() {
		log.Printf("Reader closed for %s", c.Relay.ID)
		close(c.DoneChan) // Signal writer to stop
	}()
	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error for %s: %v", c.Relay.ID, err)
			}
			return
		}

		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ignoring malformed message from %s: %v", c.Relay.ID, err)
			continue
		}
		if msg.Text == "" {
			continue // Ignore empty messages
		}

		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := c.Hub.Publish(pubCtx, msg.Text); err != nil {
			log.Printf("Failed to publish message from %s: %v", c.Relay.ID, err)
		}
		cancel()
	}
}

// HandleWrite writes hub messages to the WebSocket connection until the
// reader stops or the hub drops this client.
func (c *Client) HandleWrite() {
	ticker := time.NewTicker(config.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Relay.Messages():
			if !ok {
				c.closeQueue()
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteJSON(message); err != nil {
				log.Printf("WebSocket write error for %s: %v", c.Relay.ID, err)
				c.Conn.Close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for %s: %v", c.Relay.ID, err)
				c.Conn.Close()
				return
			}

		case <-c.DoneChan:
			return
		}
	}
}

// closeQueue handles the hub closing this client's queue. A reader that
// already stopped means an ordinary disconnect; otherwise the hub dropped
// the client or is shutting down, and the peer is told which.
func (c *Client) closeQueue() {
	code, reason := websocket.CloseGoingAway, "server shutting down"
	if c.Relay.Dropped() {
		code, reason = websocket.ClosePolicyViolation, "too slow"
	} else {
		select {
		case <-c.DoneChan:
			return
		default:
		}
	}
	log.Printf("Closing %s: %s", c.Relay.ID, reason)
	c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
	c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.Conn.Close() // Unblock the reader
}

// HandleWebSocket returns the handler for one relay connection. It returns
// only after both the reader and the writer have stopped, because the
// connection is recycled once the handler returns.
func HandleWebSocket(hub *relay.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := NewClient(conn, hub)
		log.Printf("Client %s connected (%d online)", client.Relay.ID, hub.Count())

		writerDone := make(chan struct{})
		go func() {
			client.HandleWrite()
			close(writerDone)
		}()

		client.HandleRead(context.Background())
		hub.Leave(client.Relay)
		<-writerDone

		log.Printf("Client %s disconnected", client.Relay.ID)
	}
}
