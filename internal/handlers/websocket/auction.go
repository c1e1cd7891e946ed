package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/naman-kalwani/auctionit-server/internal/auction"
	"github.com/naman-kalwani/auctionit-server/internal/auth"
	"github.com/naman-kalwani/auctionit-server/internal/database"
	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

type AuctionHandler struct {
	db       database.Service
	hub      *Hub
	engine   *auction.Engine
	verifier *auth.Verifier
	sendBuf  int
}

func NewAuctionHandler(db database.Service, hub *Hub, engine *auction.Engine, verifier *auth.Verifier, sendBuf int) *AuctionHandler {
	if sendBuf <= 0 {
		sendBuf = 64
	}
	return &AuctionHandler{db: db, hub: hub, engine: engine, verifier: verifier, sendBuf: sendBuf}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleAuctions upgrades the HTTP request to a WebSocket connection. A
// failed authentication handshake yields an unauthenticated connection that
// can still observe broadcasts.
func (h *AuctionHandler) HandleAuctions(w http.ResponseWriter, r *http.Request) {
	user := h.authenticate(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		ID:   user.ID,
		Name: user.Name,
		Conn: conn,
		Send: make(chan []byte, h.sendBuf),
	}
	h.hub.Register(client)

	// Start handling the client
	go client.ReadMessages(h.HandleMessage, h.hub.Unregister)
	go client.WriteMessages()
}

func (h *AuctionHandler) authenticate(r *http.Request) types.User {
	identity, err := h.verifier.FromRequest(r)
	if err != nil {
		log.Debug("Unauthenticated connection", "error", err)
		return types.User{}
	}

	user, err := h.db.GetUserByEmail(identity.Email)
	if err != nil {
		log.Warn("Credential resolved but user not found", "email", identity.Email, "error", err)
		return types.User{}
	}
	return user
}

// HandleAuctionCreated is the hook the listing app calls after inserting a
// new auction; the record is announced to every connected client.
func (h *AuctionHandler) HandleAuctionCreated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var a types.Auction
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil || a.ID == "" {
		http.Error(w, "invalid auction payload", http.StatusBadRequest)
		return
	}

	h.engine.AnnounceCreated(a)
	w.WriteHeader(http.StatusAccepted)
}

// HandleHealth reports the store health map.
func (h *AuctionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.db.Health()); err != nil {
		log.Error("Error writing health response", "error", err)
	}
}
