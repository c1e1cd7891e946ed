package websocket

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Hub tracks connected clients, the presence registry (authenticated user ->
// live connection, last-connect-wins) and room membership. It is rebuilt
// from scratch on restart; all users appear absent until they reconnect.
type Hub struct {
	mu       sync.Mutex
	clients  map[*Client]bool
	presence map[string]*Client
	rooms    map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		presence: make(map[string]*Client),
		rooms:    make(map[string]map[*Client]bool),
	}
}

// Register adds a connection, recording presence for authenticated clients.
// A newer connection for the same user replaces the older handle.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true
	if c.Authenticated() {
		h.presence[c.ID] = c
	}
}

// Unregister removes a connection from the hub and all rooms. Presence is
// only cleared when the departing connection is still the registered one.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	if c.Authenticated() && h.presence[c.ID] == c {
		delete(h.presence, c.ID)
	}
	for auctionID, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, auctionID)
		}
	}
}

// Lookup returns the live connection for a user, if present.
func (h *Hub) Lookup(userID string) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.presence[userID]
	return c, ok
}

// Join adds the client to an auction's room. No validation beyond the room
// id being supplied.
func (h *Hub) Join(c *Client, auctionID string) {
	if auctionID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[auctionID] == nil {
		h.rooms[auctionID] = make(map[*Client]bool)
	}
	h.rooms[auctionID][c] = true
}

// Leave removes the client from an auction's room.
func (h *Hub) Leave(c *Client, auctionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[auctionID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, auctionID)
		}
	}
}

// ToRoom delivers an event to every connection in the auction's room.
func (h *Hub) ToRoom(auctionID string, event []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[auctionID] {
		h.deliver(c, event)
	}
}

// ToAll delivers an event to every connected client.
func (h *Hub) ToAll(event []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.deliver(c, event)
	}
}

// ToUser delivers an event to the user's live connection, reporting whether
// the user was present.
func (h *Hub) ToUser(userID string, event []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.presence[userID]
	if !ok {
		return false
	}
	h.deliver(c, event)
	return true
}

// deliver must be called with h.mu held. A client whose send buffer is full
// is dropped from the hub rather than stalling delivery to everyone else.
func (h *Hub) deliver(c *Client, event []byte) {
	if !c.TrySend(event) {
		log.Warnf("Send buffer full, dropping client %s", c.ID)
		h.remove(c)
		go c.Close()
	}
}
