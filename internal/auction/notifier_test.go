package auction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

func TestBidPlacedFanOut(t *testing.T) {
	aliceID := alice.ID

	tests := []struct {
		name           string
		previousBidder *string
		bidder         types.User
		wantOutbidFor  string
	}{
		{
			name:           "first_bid_has_no_outbid_branch",
			previousBidder: nil,
			bidder:         bob,
		},
		{
			name:           "raising_own_bid_has_no_outbid_branch",
			previousBidder: &aliceID,
			bidder:         alice,
		},
		{
			name:           "displaced_leader_is_outbid",
			previousBidder: &aliceID,
			bidder:         bob,
			wantOutbidFor:  alice.ID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.addAuction("a1", 100, testTs.Add(time.Hour))
			a, _ := f.db.GetAuctionByID(context.Background(), "a1")
			a.CurrentBid = dec(200)

			f.notes.BidPlaced(context.Background(), a, tt.previousBidder, tt.bidder)

			require.Equal(t, []types.NotificationKind{types.NotifyBidPlaced}, kinds(f.db.NotificationsFor(owner.ID)))
			require.Contains(t, kinds(f.db.NotificationsFor(tt.bidder.ID)), types.NotifyNewBidSuccess)

			if tt.wantOutbidFor == "" {
				for _, u := range []string{alice.ID, bob.ID} {
					require.NotContains(t, kinds(f.db.NotificationsFor(u)), types.NotifyOutbid)
				}
			} else {
				require.Contains(t, kinds(f.db.NotificationsFor(tt.wantOutbidFor)), types.NotifyOutbid)
			}
		})
	}
}

func TestNotificationsPersistAlwaysPushOnlyWhenPresent(t *testing.T) {
	// Only the owner is connected.
	f := newFixture(owner.ID)
	f.addAuction("a1", 100, testTs.Add(time.Hour))
	a, _ := f.db.GetAuctionByID(context.Background(), "a1")

	f.notes.BidPlaced(context.Background(), a, nil, alice)

	// Both notifications are persisted.
	require.Len(t, f.db.NotificationsFor(owner.ID), 1)
	require.Len(t, f.db.NotificationsFor(alice.ID), 1)

	// Only the present owner got a live push.
	require.Len(t, f.bus.user[owner.ID], 1)
	require.Empty(t, f.bus.user[alice.ID])

	var ev types.Event
	require.NoError(t, json.Unmarshal(f.bus.user[owner.ID][0], &ev))
	require.Equal(t, types.EventNotification, ev.Type)

	var payload types.NotificationPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	require.Equal(t, types.NotifyBidPlaced, payload.Kind)
	require.NotEmpty(t, payload.Message)
}

func TestAuctionClosedWithWinner(t *testing.T) {
	f := newFixture()
	f.addAuction("a1", 100, testTs)
	ctx := context.Background()

	_, err := f.engine.PlaceBid(ctx, "a1", alice, dec(150))
	require.NoError(t, err)
	a, _ := f.db.GetAuctionByID(ctx, "a1")

	f.notes.AuctionClosed(ctx, a)

	require.Contains(t, kinds(f.db.NotificationsFor(alice.ID)), types.NotifyAuctionWinner)
	require.Contains(t, kinds(f.db.NotificationsFor(owner.ID)), types.NotifyAuctionResult)

	payments := f.db.Payments()
	require.Len(t, payments, 1)
	require.Equal(t, alice.ID, payments[0].BuyerID)
	require.Equal(t, owner.ID, payments[0].SellerID)
	require.Equal(t, types.PaymentPending, payments[0].Status)
	require.True(t, payments[0].Amount.Equal(dec(150)))
}

func TestAuctionClosedWithoutWinner(t *testing.T) {
	f := newFixture()
	f.addAuction("a1", 100, testTs)
	ctx := context.Background()
	a, _ := f.db.GetAuctionByID(ctx, "a1")

	f.notes.AuctionClosed(ctx, a)

	require.Equal(t, []types.NotificationKind{types.NotifyAuctionResult}, kinds(f.db.NotificationsFor(owner.ID)))
	require.Empty(t, f.db.Payments())
	require.Empty(t, f.db.NotificationsFor(alice.ID))
}

func TestEndingSoonWarnsOwnerAndLeader(t *testing.T) {
	f := newFixture()
	f.addAuction("a1", 100, testTs.Add(5*time.Minute))
	ctx := context.Background()

	a, _ := f.db.GetAuctionByID(ctx, "a1")
	f.notes.EndingSoon(ctx, a)
	require.Equal(t, []types.NotificationKind{types.NotifyEndingSoon}, kinds(f.db.NotificationsFor(owner.ID)))
	require.Empty(t, f.db.NotificationsFor(alice.ID))

	_, err := f.engine.PlaceBid(ctx, "a1", alice, dec(150))
	require.NoError(t, err)
	a, _ = f.db.GetAuctionByID(ctx, "a1")

	f.notes.EndingSoon(ctx, a)
	require.Contains(t, kinds(f.db.NotificationsFor(alice.ID)), types.NotifyEndingSoon)
}
