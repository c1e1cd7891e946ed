// Package auction implements the live bidding core: bid validation and
// application, notification fan-out, and the timed lifecycle sweeps.
package auction

import (
	"context"
	stderrors "errors"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/naman-kalwani/auctionit-server/internal/database"
	"github.com/naman-kalwani/auctionit-server/pkg/errors"
	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

// Broadcaster delivers events to room-scoped listeners, to everyone, or to a
// single connected user. ToUser reports whether the user was present.
type Broadcaster interface {
	ToRoom(auctionID string, event []byte)
	ToAll(event []byte)
	ToUser(userID string, event []byte) bool
}

// maxBidAttempts bounds the optimistic-concurrency retry loop. A conflict
// means another bid committed first, so each retry revalidates against the
// fresh state.
const maxBidAttempts = 3

type Engine struct {
	db    database.Service
	bus   Broadcaster
	notes *Notifier
	clock clockwork.Clock
}

func NewEngine(db database.Service, bus Broadcaster, notes *Notifier, clock clockwork.Clock) *Engine {
	return &Engine{db: db, bus: bus, notes: notes, clock: clock}
}

// PlaceBid validates and applies a single bid. Rejections come back as
// *errors.AppError with the reason code; the updated auction is returned on
// success, after the room broadcast and notification fan-out.
func (e *Engine) PlaceBid(ctx context.Context, auctionID string, bidder types.User, amount decimal.Decimal) (types.Auction, error) {
	for attempt := 0; attempt < maxBidAttempts; attempt++ {
		auction, err := e.db.GetAuctionByID(ctx, auctionID)
		if stderrors.Is(err, database.ErrNotFound) {
			return types.Auction{}, errors.New(errors.ErrAuctionNotFound, "auction not found")
		}
		if err != nil {
			return types.Auction{}, errors.Wrap(err, "error loading auction")
		}

		if auction.Ended {
			return types.Auction{}, errors.New(errors.ErrAuctionClosed, "auction has ended")
		}

		floor := auction.CurrentBid
		if auction.BasePrice.GreaterThan(floor) {
			floor = auction.BasePrice
		}
		if amount.LessThanOrEqual(floor) {
			return types.Auction{}, errors.New(errors.ErrBidTooLow, "bid amount must be higher than the current price")
		}

		if bidder.ID == auction.OwnerID {
			return types.Auction{}, errors.New(errors.ErrOwnerForbidden, "owners cannot bid on their own auction")
		}

		previousBidder := auction.HighestBidderID

		bid := types.Bid{
			ID:         uuid.NewString(),
			AuctionID:  auction.ID,
			BidderID:   bidder.ID,
			BidderName: bidder.Name,
			Amount:     amount,
			CreatedAt:  e.clock.Now().UTC(),
		}

		updated, err := e.db.ApplyBid(ctx, auction, bid)
		if stderrors.Is(err, database.ErrVersionConflict) {
			log.Debug("Bid lost the race, revalidating", "auction", auction.ID, "bidder", bidder.ID)
			continue
		}
		if err != nil {
			return types.Auction{}, errors.Wrap(err, "error applying bid")
		}

		e.broadcastBidAccepted(updated)
		e.notes.BidPlaced(ctx, updated, previousBidder, bidder)
		return updated, nil
	}

	return types.Auction{}, errors.New(errors.ErrInternalServer, "auction is busy, please retry")
}

func (e *Engine) broadcastBidAccepted(a types.Auction) {
	event, err := types.NewEvent(types.EventBidAccepted, types.BidAcceptedPayload{
		AuctionID:     a.ID,
		CurrentBid:    a.CurrentBid,
		HighestBidder: a.HighestBidderName(),
		BidHistory:    a.BidHistory,
	})
	if err != nil {
		log.Error("Error marshalling bid-accepted event", "auction", a.ID, "error", err)
		return
	}
	e.bus.ToRoom(a.ID, event)
}

// AnnounceCreated broadcasts a newly created auction to every connected
// client. Creation itself belongs to the web app; this is only the fan-out.
func (e *Engine) AnnounceCreated(a types.Auction) {
	event, err := types.NewEvent(types.EventAuctionCreated, a)
	if err != nil {
		log.Error("Error marshalling auction-created event", "auction", a.ID, "error", err)
		return
	}
	e.bus.ToAll(event)
}
