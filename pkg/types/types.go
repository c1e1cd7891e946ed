package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// NoWinner is the display-name sentinel broadcast when an auction closes
// without any accepted bid.
const NoWinner = "No winner"

type Auction struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	OwnerID         string          `json:"ownerId"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	CurrentBid      decimal.Decimal `json:"currentBid"`
	HighestBidderID *string         `json:"highestBidderId,omitempty"`
	BidHistory      []Bid           `json:"bidHistory"`
	EndAt           time.Time       `json:"endAt"`
	Ended           bool            `json:"ended"`
	WarningSent     bool            `json:"warningNotificationSent"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// HighestBidderName returns the display-name snapshot of the current leader,
// or the empty string if no bid has been accepted yet.
func (a Auction) HighestBidderName() string {
	if len(a.BidHistory) == 0 {
		return ""
	}
	return a.BidHistory[len(a.BidHistory)-1].BidderName
}

// WinnerName is HighestBidderName with the NoWinner sentinel for auctions
// that closed without bids.
func (a Auction) WinnerName() string {
	if a.HighestBidderID == nil {
		return NoWinner
	}
	return a.HighestBidderName()
}

type Bid struct {
	ID         string          `json:"id"`
	AuctionID  string          `json:"auctionId"`
	BidderID   string          `json:"bidderId"`
	BidderName string          `json:"bidderName"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type NotificationKind string

const (
	NotifyBidPlaced     NotificationKind = "BID_PLACED"
	NotifyOutbid        NotificationKind = "OUTBID"
	NotifyNewBidSuccess NotificationKind = "NEW_BID_SUCCESS"
	NotifyAuctionWinner NotificationKind = "AUCTION_WINNER"
	NotifyAuctionResult NotificationKind = "AUCTION_RESULT"
	NotifyEndingSoon    NotificationKind = "AUCTION_ENDING_SOON"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	AuctionID string           `json:"auctionId"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

const PaymentPending = "pending"

type Payment struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auctionId"`
	BuyerID   string          `json:"buyerId"`
	SellerID  string          `json:"sellerId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}
