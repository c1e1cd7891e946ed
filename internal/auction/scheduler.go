package auction

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/naman-kalwani/auctionit-server/internal/database"
	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

// SchedulerConfig carries the sweep cadences and the ending-soon window
// bounds relative to now.
type SchedulerConfig struct {
	ClosingInterval   time.Duration
	WarningInterval   time.Duration
	WarningWindowFrom time.Duration
	WarningWindowTo   time.Duration
}

// Scheduler drives auctions through their time-based transitions with two
// independent sweeps: closing due auctions and warning about imminent ends.
// Candidates are queried fresh on every tick; the ended and warning flags
// are the only duplicate suppression.
type Scheduler struct {
	db    database.Service
	bus   Broadcaster
	notes *Notifier
	clock clockwork.Clock
	cfg   SchedulerConfig
}

func NewScheduler(db database.Service, bus Broadcaster, notes *Notifier, clock clockwork.Clock, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{db: db, bus: bus, notes: notes, clock: clock, cfg: cfg}
}

// Run starts both sweep loops. They stop when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	go s.loop(ctx, s.cfg.ClosingInterval, s.CloseDue)
	go s.loop(ctx, s.cfg.WarningInterval, s.WarnEndingSoon)
	log.Info("Lifecycle scheduler started",
		"closing_interval", s.cfg.ClosingInterval,
		"warning_interval", s.cfg.WarningInterval)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			sweep(ctx)
		}
	}
}

// CloseDue is one execution of the closing sweep. A failure on one auction
// is logged and must not abort the rest; its state was not advanced, so the
// next tick retries it naturally.
func (s *Scheduler) CloseDue(ctx context.Context) {
	now := s.clock.Now().UTC()
	due, err := s.db.FindDueAuctions(ctx, now)
	if err != nil {
		log.Error("Error finding due auctions", "error", err)
		return
	}

	for _, a := range due {
		if err := s.closeOne(ctx, a); err != nil {
			log.Error("Error closing auction", "auction", a.ID, "error", err)
		}
	}
}

func (s *Scheduler) closeOne(ctx context.Context, a types.Auction) error {
	if err := s.db.CloseAuction(ctx, a.ID); err != nil {
		if stderrors.Is(err, database.ErrVersionConflict) {
			// Already closed elsewhere.
			return nil
		}
		return err
	}

	// Re-read so a bid committed between the scan and the close is part of
	// the final result.
	final, err := s.db.GetAuctionByID(ctx, a.ID)
	if err != nil {
		return err
	}

	event, err := types.NewEvent(types.EventAuctionEnded, types.AuctionEndedPayload{
		AuctionID: final.ID,
		Winner:    final.WinnerName(),
		FinalBid:  final.CurrentBid,
	})
	if err != nil {
		return err
	}
	s.bus.ToRoom(final.ID, event)

	s.notes.AuctionClosed(ctx, final)
	log.Info("Auction closed", "auction", final.ID, "winner", final.WinnerName(), "final_bid", final.CurrentBid)
	return nil
}

// WarnEndingSoon is one execution of the ending-soon sweep over the
// half-open window [now+from, now+to).
func (s *Scheduler) WarnEndingSoon(ctx context.Context) {
	now := s.clock.Now().UTC()
	candidates, err := s.db.FindEndingSoon(ctx, now.Add(s.cfg.WarningWindowFrom), now.Add(s.cfg.WarningWindowTo))
	if err != nil {
		log.Error("Error finding auctions ending soon", "error", err)
		return
	}

	for _, a := range candidates {
		s.notes.EndingSoon(ctx, a)
		if err := s.db.MarkWarningSent(ctx, a.ID); err != nil && !stderrors.Is(err, database.ErrVersionConflict) {
			log.Error("Error marking warning sent", "auction", a.ID, "error", err)
		}
	}
}
