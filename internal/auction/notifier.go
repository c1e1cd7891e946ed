package auction

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/naman-kalwani/auctionit-server/internal/database"
	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

// Pusher delivers an event to a single connected user, reporting presence.
type Pusher interface {
	ToUser(userID string, event []byte) bool
}

// Notifier builds and dispatches per-recipient notifications. Every
// notification is persisted; live delivery happens only when the recipient
// has an active connection, and absence is not an error.
type Notifier struct {
	db    database.Service
	push  Pusher
	clock clockwork.Clock
}

func NewNotifier(db database.Service, push Pusher, clock clockwork.Clock) *Notifier {
	return &Notifier{db: db, push: push, clock: clock}
}

// BidPlaced fans out after a successful bid: the owner learns about the bid,
// the displaced leader (if any, and not the bidder raising themselves) is
// told they were outbid, and the bidder gets a confirmation.
func (n *Notifier) BidPlaced(ctx context.Context, a types.Auction, previousBidder *string, bidder types.User) {
	if a.OwnerID != bidder.ID {
		n.send(ctx, a.OwnerID, a.ID, types.NotifyBidPlaced,
			fmt.Sprintf("%s placed a bid of %s on %q", bidder.Name, a.CurrentBid, a.Title))
	}
	if previousBidder != nil && *previousBidder != bidder.ID {
		n.send(ctx, *previousBidder, a.ID, types.NotifyOutbid,
			fmt.Sprintf("You have been outbid on %q", a.Title))
	}
	n.send(ctx, bidder.ID, a.ID, types.NotifyNewBidSuccess,
		fmt.Sprintf("Your bid of %s on %q is now the highest", a.CurrentBid, a.Title))
}

// AuctionClosed fans out after the closing sweep ends an auction. The winner,
// if any, gets a win notice plus a pending payment obligation; the owner
// always gets the result.
func (n *Notifier) AuctionClosed(ctx context.Context, a types.Auction) {
	if a.HighestBidderID == nil {
		n.send(ctx, a.OwnerID, a.ID, types.NotifyAuctionResult,
			fmt.Sprintf("%q ended with no winner", a.Title))
		return
	}

	winner := *a.HighestBidderID
	n.send(ctx, winner, a.ID, types.NotifyAuctionWinner,
		fmt.Sprintf("You won %q with a bid of %s", a.Title, a.CurrentBid))

	payment := types.Payment{
		ID:        uuid.NewString(),
		AuctionID: a.ID,
		BuyerID:   winner,
		SellerID:  a.OwnerID,
		Amount:    a.CurrentBid,
		Status:    types.PaymentPending,
		CreatedAt: n.clock.Now().UTC(),
	}
	if _, err := n.db.CreatePendingPayment(ctx, payment); err != nil {
		log.Error("Error creating pending payment", "auction", a.ID, "buyer", winner, "error", err)
	}

	n.send(ctx, a.OwnerID, a.ID, types.NotifyAuctionResult,
		fmt.Sprintf("%q sold to %s for %s", a.Title, a.HighestBidderName(), a.CurrentBid))
}

// EndingSoon warns the owner and the current leader that the auction is
// about to close.
func (n *Notifier) EndingSoon(ctx context.Context, a types.Auction) {
	message := fmt.Sprintf("%q is ending soon", a.Title)
	n.send(ctx, a.OwnerID, a.ID, types.NotifyEndingSoon, message)
	if a.HighestBidderID != nil {
		n.send(ctx, *a.HighestBidderID, a.ID, types.NotifyEndingSoon, message)
	}
}

func (n *Notifier) send(ctx context.Context, userID, auctionID string, kind types.NotificationKind, message string) {
	record := types.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		AuctionID: auctionID,
		Kind:      kind,
		Message:   message,
		CreatedAt: n.clock.Now().UTC(),
	}
	if _, err := n.db.CreateNotification(ctx, record); err != nil {
		log.Error("Error persisting notification", "user", userID, "kind", kind, "error", err)
	}

	event, err := types.NewEvent(types.EventNotification, types.NotificationPayload{Kind: kind, Message: message})
	if err != nil {
		log.Error("Error marshalling notification event", "user", userID, "kind", kind, "error", err)
		return
	}
	if delivered := n.push.ToUser(userID, event); !delivered {
		log.Debug("Recipient offline, persisted copy only", "user", userID, "kind", kind)
	}
}
