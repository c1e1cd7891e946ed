package auction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ClosingInterval:   3 * time.Second,
		WarningInterval:   time.Minute,
		WarningWindowFrom: 4 * time.Minute,
		WarningWindowTo:   5 * time.Minute,
	}
}

func newTestScheduler(f *fixture) *Scheduler {
	return NewScheduler(f.db, f.bus, f.notes, f.clock, testSchedulerConfig())
}

func TestClosingSweepClosesDueAuctions(t *testing.T) {
	f := newFixture()
	f.addAuction("due", 100, testTs.Add(-time.Second))
	f.addAuction("open", 100, testTs.Add(time.Hour))
	s := newTestScheduler(f)
	ctx := context.Background()

	s.CloseDue(ctx)

	due, _ := f.db.GetAuctionByID(ctx, "due")
	require.True(t, due.Ended)
	open, _ := f.db.GetAuctionByID(ctx, "open")
	require.False(t, open.Ended)

	events := f.bus.roomEvents(t, "due")
	require.Len(t, events, 1)
	require.Equal(t, types.EventAuctionEnded, events[0].Type)

	var payload types.AuctionEndedPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	require.Equal(t, types.NoWinner, payload.Winner)
	require.True(t, payload.FinalBid.Equal(dec(100)))

	// No winner: result only, no payment.
	require.Equal(t, []types.NotificationKind{types.NotifyAuctionResult}, kinds(f.db.NotificationsFor(owner.ID)))
	require.Empty(t, f.db.Payments())
}

func TestClosingSweepIsIdempotent(t *testing.T) {
	f := newFixture()
	f.addAuction("due", 100, testTs.Add(-time.Second))
	s := newTestScheduler(f)
	ctx := context.Background()

	s.CloseDue(ctx)
	s.CloseDue(ctx)

	require.Len(t, f.bus.roomEvents(t, "due"), 1)
	require.Len(t, f.db.NotificationsFor(owner.ID), 1)
}

func TestClosingSweepWithWinnerCreatesPayment(t *testing.T) {
	f := newFixture()
	f.addAuction("due", 100, testTs.Add(time.Minute))
	ctx := context.Background()

	_, err := f.engine.PlaceBid(ctx, "due", alice, dec(250))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	s := newTestScheduler(f)
	s.CloseDue(ctx)

	require.Contains(t, kinds(f.db.NotificationsFor(alice.ID)), types.NotifyAuctionWinner)
	require.Contains(t, kinds(f.db.NotificationsFor(owner.ID)), types.NotifyAuctionResult)

	payments := f.db.Payments()
	require.Len(t, payments, 1)
	require.True(t, payments[0].Amount.Equal(dec(250)))

	events := f.bus.roomEvents(t, "due")
	require.Len(t, events, 1)
	var payload types.AuctionEndedPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	require.Equal(t, alice.Name, payload.Winner)
	require.True(t, payload.FinalBid.Equal(dec(250)))
}

func TestWarningSweepWindowSelection(t *testing.T) {
	tests := []struct {
		name     string
		endsIn   time.Duration
		wantWarn bool
	}{
		{"inside_window", 4*time.Minute + 30*time.Second, true},
		{"at_lower_bound", 4 * time.Minute, true},
		{"at_upper_bound_excluded", 5 * time.Minute, false},
		{"too_close", 3 * time.Minute, false},
		{"too_far", 10 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.addAuction("a1", 100, testTs.Add(tt.endsIn))
			s := newTestScheduler(f)

			s.WarnEndingSoon(context.Background())

			got := kinds(f.db.NotificationsFor(owner.ID))
			if tt.wantWarn {
				require.Equal(t, []types.NotificationKind{types.NotifyEndingSoon}, got)
				a, _ := f.db.GetAuctionByID(context.Background(), "a1")
				require.True(t, a.WarningSent)
			} else {
				require.Empty(t, got)
			}
		})
	}
}

func TestWarningSweepNeverWarnsTwice(t *testing.T) {
	f := newFixture()
	f.addAuction("a1", 100, testTs.Add(4*time.Minute+30*time.Second))
	s := newTestScheduler(f)
	ctx := context.Background()

	s.WarnEndingSoon(ctx)
	// Swept again within the window.
	s.WarnEndingSoon(ctx)
	f.clock.Advance(20 * time.Second)
	s.WarnEndingSoon(ctx)

	require.Len(t, f.db.NotificationsFor(owner.ID), 1)
}

func TestSchedulerRunDrivesSweepsFromTicker(t *testing.T) {
	f := newFixture()
	f.addAuction("due", 100, testTs.Add(-time.Second))
	s := newTestScheduler(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Run(ctx)

	// Wait until both sweep loops are parked on their tickers.
	require.NoError(t, f.clock.BlockUntilContext(ctx, 2))
	f.clock.Advance(3 * time.Second)

	require.Eventually(t, func() bool {
		a, err := f.db.GetAuctionByID(ctx, "due")
		return err == nil && a.Ended
	}, time.Second, 5*time.Millisecond)
}
