package auction

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/naman-kalwani/auctionit-server/internal/database"
	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

// fakeBus records deliveries and doubles as the presence-aware pusher.
type fakeBus struct {
	mu      sync.Mutex
	room    map[string][][]byte
	all     [][]byte
	user    map[string][][]byte
	present map[string]bool
}

func newFakeBus(presentUsers ...string) *fakeBus {
	b := &fakeBus{
		room:    make(map[string][][]byte),
		user:    make(map[string][][]byte),
		present: make(map[string]bool),
	}
	for _, u := range presentUsers {
		b.present[u] = true
	}
	return b
}

func (b *fakeBus) ToRoom(auctionID string, event []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room[auctionID] = append(b.room[auctionID], event)
}

func (b *fakeBus) ToAll(event []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, event)
}

func (b *fakeBus) ToUser(userID string, event []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present[userID] {
		return false
	}
	b.user[userID] = append(b.user[userID], event)
	return true
}

func (b *fakeBus) roomEvents(t *testing.T, auctionID string) []types.Event {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var events []types.Event
	for _, raw := range b.room[auctionID] {
		var ev types.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		events = append(events, ev)
	}
	return events
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func kinds(notifications []types.Notification) []types.NotificationKind {
	out := make([]types.NotificationKind, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, n.Kind)
	}
	return out
}

var (
	owner  = types.User{ID: "owner-1", Name: "Olivia", Email: "olivia@example.com"}
	alice  = types.User{ID: "bidder-1", Name: "Alice", Email: "alice@example.com"}
	bob    = types.User{ID: "bidder-2", Name: "Bob", Email: "bob@example.com"}
	testTs = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	db     *database.Memory
	bus    *fakeBus
	clock  *clockwork.FakeClock
	engine *Engine
	notes  *Notifier
}

func newFixture(presentUsers ...string) *fixture {
	db := database.NewMemory()
	for _, u := range []types.User{owner, alice, bob} {
		db.AddUser(u)
	}
	bus := newFakeBus(presentUsers...)
	clock := clockwork.NewFakeClockAt(testTs)
	notes := NewNotifier(db, bus, clock)
	return &fixture{
		db:     db,
		bus:    bus,
		clock:  clock,
		engine: NewEngine(db, bus, notes, clock),
		notes:  notes,
	}
}

func (f *fixture) addAuction(id string, basePrice int64, endAt time.Time) {
	f.db.AddAuction(types.Auction{
		ID:        id,
		Title:     "Vintage guitar",
		OwnerID:   owner.ID,
		BasePrice: dec(basePrice),
		EndAt:     endAt,
		CreatedAt: testTs,
	})
}
