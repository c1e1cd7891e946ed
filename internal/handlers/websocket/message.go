package websocket

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/charmbracelet/log"

	"github.com/naman-kalwani/auctionit-server/pkg/errors"
	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

// ParseMessage validates and parses incoming messages.
func ParseMessage(rawMessage []byte) (*types.Event, error) {
	var msg types.Event
	if err := json.Unmarshal(rawMessage, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errors.New(errors.ErrBadMessageFormat, "message has no type")
	}
	return &msg, nil
}

// HandleMessage routes the message based on its type.
func (h *AuctionHandler) HandleMessage(client *Client, rawMessage []byte) {
	msg, err := ParseMessage(rawMessage)
	if err != nil {
		log.Infof("Invalid message from client %s: %v", client.ID, err)
		h.sendError(client, errors.New(errors.ErrBadMessageFormat, "Invalid message format"))
		return
	}

	switch msg.Type {
	case types.EventJoinRoom:
		h.handleRoomMessage(client, msg.Data, h.hub.Join)
	case types.EventLeaveRoom:
		h.handleRoomMessage(client, msg.Data, h.hub.Leave)
	case types.EventPlaceBid:
		h.handleBidMessage(client, msg.Data)
	default:
		log.Infof("Unknown message type from client %s: %s", client.ID, msg.Type)
		h.sendError(client, errors.New(errors.ErrUnknownMessageType, "Unknown message type"))
	}
}

func (h *AuctionHandler) handleRoomMessage(client *Client, data json.RawMessage, action func(*Client, string)) {
	var payload types.RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.AuctionID == "" {
		h.sendError(client, errors.New(errors.ErrBadMessageFormat, "Invalid room message"))
		return
	}
	action(client, payload.AuctionID)
}

func (h *AuctionHandler) handleBidMessage(client *Client, data json.RawMessage) {
	if !client.Authenticated() {
		// Observe-only connection, bids are ignored.
		log.Debug("Ignoring bid from unauthenticated connection")
		return
	}

	var payload types.PlaceBidPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.AuctionID == "" {
		h.sendError(client, errors.New(errors.ErrBadMessageFormat, "Invalid bid message"))
		return
	}

	bidder := types.User{ID: client.ID, Name: client.Name}
	_, err := h.engine.PlaceBid(context.Background(), payload.AuctionID, bidder, payload.Amount)
	if err == nil {
		// Acceptance is broadcast to the room by the engine.
		return
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Code == errors.ErrAuctionNotFound {
		// Unknown auction bids are dropped without client feedback.
		log.Debug("Bid on unknown auction ignored", "auction", payload.AuctionID, "bidder", client.ID)
		return
	}

	if !stderrors.As(err, &appErr) {
		log.Error("Error placing bid", "auction", payload.AuctionID, "bidder", client.ID, "error", err)
		appErr = errors.New(errors.ErrInternalServer, "Internal server error")
	}
	h.sendRejection(client, appErr)
}

func (h *AuctionHandler) sendRejection(client *Client, appErr *errors.AppError) {
	event, err := types.NewEvent(types.EventBidRejected, types.BidRejectedPayload{
		Code:    appErr.Code,
		Message: appErr.Message,
	})
	if err != nil {
		log.Error("Error marshalling bid-rejected event", "error", err)
		return
	}
	if !client.TrySend(event) {
		log.Debug("Dropping rejection for unreachable client", "client", client.ID)
	}
}

func (h *AuctionHandler) sendError(client *Client, appErr *errors.AppError) {
	event, err := types.NewEvent(types.EventError, json.RawMessage(appErr.ToJSON()))
	if err != nil {
		log.Error("Error marshalling error event", "error", err)
		return
	}
	if !client.TrySend(event) {
		log.Debug("Dropping error event for unreachable client", "client", client.ID)
	}
}
