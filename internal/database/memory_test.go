package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedAuction(m *Memory, id string, endAt time.Time) types.Auction {
	m.AddAuction(types.Auction{
		ID:        id,
		Title:     "Lot " + id,
		OwnerID:   "owner-1",
		BasePrice: decimal.NewFromInt(100),
		EndAt:     endAt,
	})
	a, _ := m.GetAuctionByID(context.Background(), id)
	return a
}

func testBid(auctionID string, amount int64) types.Bid {
	return types.Bid{
		ID:         "bid-" + auctionID,
		AuctionID:  auctionID,
		BidderID:   "bidder-1",
		BidderName: "Alice",
		Amount:     decimal.NewFromInt(amount),
		CreatedAt:  baseTime,
	}
}

func TestApplyBidVersionConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seedAuction(m, "a1", baseTime.Add(time.Hour))

	updated, err := m.ApplyBid(ctx, a, testBid("a1", 150))
	require.NoError(t, err)
	require.Equal(t, a.Version+1, updated.Version)
	require.True(t, updated.CurrentBid.Equal(decimal.NewFromInt(150)))

	// Replaying against the stale version loses.
	_, err = m.ApplyBid(ctx, a, testBid("a1", 200))
	require.ErrorIs(t, err, ErrVersionConflict)

	final, err := m.GetAuctionByID(ctx, "a1")
	require.NoError(t, err)
	require.True(t, final.CurrentBid.Equal(decimal.NewFromInt(150)))
	require.Len(t, final.BidHistory, 1)
}

func TestApplyBidUnknownAuction(t *testing.T) {
	m := NewMemory()
	_, err := m.ApplyBid(context.Background(), types.Auction{ID: "nope"}, testBid("nope", 150))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCloseAuctionFlipsOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAuction(m, "a1", baseTime)

	require.NoError(t, m.CloseAuction(ctx, "a1"))
	require.ErrorIs(t, m.CloseAuction(ctx, "a1"), ErrVersionConflict)

	a, _ := m.GetAuctionByID(ctx, "a1")
	require.True(t, a.Ended)
}

func TestMarkWarningSentFlipsOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAuction(m, "a1", baseTime)

	require.NoError(t, m.MarkWarningSent(ctx, "a1"))
	require.ErrorIs(t, m.MarkWarningSent(ctx, "a1"), ErrVersionConflict)
}

func TestFindDueAuctions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAuction(m, "past", baseTime.Add(-time.Minute))
	seedAuction(m, "exact", baseTime)
	seedAuction(m, "future", baseTime.Add(time.Minute))
	seedAuction(m, "closed", baseTime.Add(-time.Hour))
	require.NoError(t, m.CloseAuction(ctx, "closed"))

	due, err := m.FindDueAuctions(ctx, baseTime)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, a := range due {
		ids = append(ids, a.ID)
	}
	require.Equal(t, []string{"past", "exact"}, ids)
}

func TestFindEndingSoonWindowIsHalfOpen(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	from := baseTime.Add(4 * time.Minute)
	to := baseTime.Add(5 * time.Minute)

	seedAuction(m, "below", from.Add(-time.Second))
	seedAuction(m, "lower", from)
	seedAuction(m, "inside", from.Add(30*time.Second))
	seedAuction(m, "upper", to)
	seedAuction(m, "warned", from.Add(10*time.Second))
	require.NoError(t, m.MarkWarningSent(ctx, "warned"))

	got, err := m.FindEndingSoon(ctx, from, to)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	require.Equal(t, []string{"lower", "inside"}, ids)
}

func TestCloneIsolation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seedAuction(m, "a1", baseTime.Add(time.Hour))

	updated, err := m.ApplyBid(ctx, a, testBid("a1", 150))
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	updated.BidHistory[0].Amount = decimal.NewFromInt(1)
	*updated.HighestBidderID = "tampered"

	stored, _ := m.GetAuctionByID(ctx, "a1")
	require.True(t, stored.BidHistory[0].Amount.Equal(decimal.NewFromInt(150)))
	require.Equal(t, "bidder-1", *stored.HighestBidderID)
}
