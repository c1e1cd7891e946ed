package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

// Memory is a concurrency-safe in-memory implementation of Service. It backs
// local development and the unit tests, with the same compare-and-set
// semantics as the postgres driver.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]types.User // key: email
	auctions      map[string]*types.Auction
	notifications []types.Notification
	payments      []types.Payment
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]types.User),
		auctions: make(map[string]*types.Auction),
	}
}

func cloneAuction(a *types.Auction) types.Auction {
	out := *a
	out.BidHistory = append([]types.Bid(nil), a.BidHistory...)
	if a.HighestBidderID != nil {
		id := *a.HighestBidderID
		out.HighestBidderID = &id
	}
	return out
}

func (m *Memory) Health() map[string]string {
	return map[string]string{"status": "up", "message": "It's healthy"}
}

func (m *Memory) Close() error {
	return nil
}

// AddUser seeds a user record.
func (m *Memory) AddUser(u types.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Email] = u
}

// AddAuction seeds an auction record, initializing the current bid to the
// base price when unset.
func (m *Memory) AddAuction(a types.Auction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.CurrentBid.IsZero() {
		a.CurrentBid = a.BasePrice
	}
	m.auctions[a.ID] = &a
}

func (m *Memory) GetUserByEmail(email string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[email]
	if !ok {
		return types.User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return user, nil
}

func (m *Memory) GetAuctionByID(ctx context.Context, auctionID string) (types.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auctions[auctionID]
	if !ok {
		return types.Auction{}, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	return cloneAuction(a), nil
}

func (m *Memory) GetOpenAuctions(ctx context.Context) ([]types.Auction, error) {
	return m.selectAuctions(func(a *types.Auction) bool {
		return !a.Ended
	})
}

func (m *Memory) FindDueAuctions(ctx context.Context, now time.Time) ([]types.Auction, error) {
	return m.selectAuctions(func(a *types.Auction) bool {
		return !a.Ended && !a.EndAt.After(now)
	})
}

func (m *Memory) FindEndingSoon(ctx context.Context, from, to time.Time) ([]types.Auction, error) {
	return m.selectAuctions(func(a *types.Auction) bool {
		return !a.Ended && !a.WarningSent && !a.EndAt.Before(from) && a.EndAt.Before(to)
	})
}

func (m *Memory) selectAuctions(match func(*types.Auction) bool) ([]types.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Auction
	for _, a := range m.auctions {
		if match(a) {
			out = append(out, cloneAuction(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndAt.Before(out[j].EndAt) })
	return out, nil
}

func (m *Memory) ApplyBid(ctx context.Context, auction types.Auction, bid types.Bid) (types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.auctions[auction.ID]
	if !ok {
		return types.Auction{}, fmt.Errorf("auction %s: %w", auction.ID, ErrNotFound)
	}
	if current.Version != auction.Version {
		return types.Auction{}, fmt.Errorf("auction %s at version %d: %w", auction.ID, auction.Version, ErrVersionConflict)
	}

	current.CurrentBid = bid.Amount
	current.HighestBidderID = &bid.BidderID
	current.BidHistory = append(current.BidHistory, bid)
	current.Version++
	current.UpdatedAt = bid.CreatedAt
	return cloneAuction(current), nil
}

func (m *Memory) CloseAuction(ctx context.Context, auctionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if current.Ended {
		return fmt.Errorf("auction %s: %w", auctionID, ErrVersionConflict)
	}
	current.Ended = true
	current.Version++
	return nil
}

func (m *Memory) MarkWarningSent(ctx context.Context, auctionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if current.WarningSent {
		return fmt.Errorf("auction %s: %w", auctionID, ErrVersionConflict)
	}
	current.WarningSent = true
	current.Version++
	return nil
}

func (m *Memory) CreateNotification(ctx context.Context, n types.Notification) (types.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return n, nil
}

func (m *Memory) CreatePendingPayment(ctx context.Context, p types.Payment) (types.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
	return p, nil
}

// NotificationsFor returns the persisted notifications for one recipient, in
// creation order.
func (m *Memory) NotificationsFor(userID string) []types.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// Payments returns all persisted payment records.
func (m *Memory) Payments() []types.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.Payment(nil), m.payments...)
}
