package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/naman-kalwani/auctionit-server/configs"
	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("database: record not found")

	// ErrVersionConflict is returned when a guarded update matched no row,
	// either because a concurrent writer advanced the auction version or
	// because the guarded flag was already set.
	ErrVersionConflict = errors.New("database: version conflict")
)

// Service represents a service that interacts with the auction store.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error

	// USER METHODS
	GetUserByEmail(email string) (types.User, error)

	// AUCTION METHODS
	//
	// GetAuctionByID returns the auction with its full bid history.
	GetAuctionByID(ctx context.Context, auctionID string) (types.Auction, error)
	// GetOpenAuctions returns all auctions that have not ended yet,
	// ordered by end time. Bid history is not loaded.
	GetOpenAuctions(ctx context.Context) ([]types.Auction, error)
	// FindDueAuctions returns open auctions whose end time has passed.
	FindDueAuctions(ctx context.Context, now time.Time) ([]types.Auction, error)
	// FindEndingSoon returns open, not-yet-warned auctions ending inside
	// the half-open window [from, to).
	FindEndingSoon(ctx context.Context, from, to time.Time) ([]types.Auction, error)

	// ApplyBid atomically sets the auction's current bid and leader from
	// bid and appends the bid to its history, guarded by auction.Version.
	// Returns ErrVersionConflict if a concurrent writer got there first.
	ApplyBid(ctx context.Context, auction types.Auction, bid types.Bid) (types.Auction, error)
	// CloseAuction flips ended to true exactly once. Returns
	// ErrVersionConflict if the auction is already closed.
	CloseAuction(ctx context.Context, auctionID string) error
	// MarkWarningSent flips the ending-soon warning flag exactly once.
	// Returns ErrVersionConflict if the flag was already set.
	MarkWarningSent(ctx context.Context, auctionID string) error

	// NOTIFICATION METHODS
	CreateNotification(ctx context.Context, n types.Notification) (types.Notification, error)

	// PAYMENT METHODS
	CreatePendingPayment(ctx context.Context, p types.Payment) (types.Payment, error)
}

// New builds the store driver selected by the configuration.
func New(cfg *configs.Config) Service {
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("Using in-memory database driver; data will not survive a restart")
		return NewMemory()
	default:
		return newPostgres(cfg)
	}
}
