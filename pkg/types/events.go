package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Event is the wire envelope for every message exchanged over the websocket,
// in both directions.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event types exchanged with clients.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventPlaceBid       = "place-bid"
	EventBidAccepted    = "bid-accepted"
	EventBidRejected    = "bid-rejected"
	EventAuctionEnded   = "auction-ended"
	EventNotification   = "notification"
	EventAuctionCreated = "auction-created"
	EventError          = "error"
)

// NewEvent marshals payload into a ready-to-send envelope.
func NewEvent(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, Data: data})
}

type RoomPayload struct {
	AuctionID string `json:"auction_id"`
}

type PlaceBidPayload struct {
	AuctionID string          `json:"auction_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type BidAcceptedPayload struct {
	AuctionID     string          `json:"auction_id"`
	CurrentBid    decimal.Decimal `json:"current_bid"`
	HighestBidder string          `json:"highest_bidder"`
	BidHistory    []Bid           `json:"bid_history"`
}

type BidRejectedPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type AuctionEndedPayload struct {
	AuctionID string          `json:"auction_id"`
	Winner    string          `json:"winner"`
	FinalBid  decimal.Decimal `json:"final_bid"`
}

type NotificationPayload struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}
