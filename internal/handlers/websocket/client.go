package websocket

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Client is one websocket connection. ID and Name are empty for
// unauthenticated connections, which may observe broadcasts but whose bids
// are ignored.
type Client struct {
	ID     string
	Name   string
	Conn   *websocket.Conn
	Send   chan []byte // Channel for outgoing messages
	closed bool        // Flag to check if the connection is closed
	mu     sync.Mutex  // Mutex to protect the closed flag
}

func (c *Client) Authenticated() bool {
	return c.ID != ""
}

// ReadMessages listens for incoming messages from the client. done runs once
// when the connection drops, before the connection is torn down.
func (c *Client) ReadMessages(handleMessage func(*Client, []byte), done func(*Client)) {
	defer func() {
		done(c)
		c.Close()
		log.Debugf("Connection closed for client %s", c.ID)
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			log.Debugf("Error reading message from client %s: %v", c.ID, err)
			break
		}
		handleMessage(c, message)
	}
}

// WriteMessages sends outgoing messages to the client.
func (c *Client) WriteMessages() {
	defer c.Conn.Close()

	for message := range c.Send {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		err := c.Conn.WriteMessage(websocket.TextMessage, message)
		c.mu.Unlock()

		if err != nil {
			log.Debugf("Error sending message to client %s: %v", c.ID, err)
			return
		}
	}
}

// TrySend queues an event for delivery unless the connection has been closed
// or its send buffer is full. It reports whether the event was queued.
func (c *Client) TrySend(event []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}

// Close releases the client's resources. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
	c.mu.Unlock()

	if c.Conn != nil {
		c.Conn.Close()
	}
}
