package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"

	"github.com/naman-kalwani/auctionit-server/configs"
	apperrors "github.com/naman-kalwani/auctionit-server/pkg/errors"
	"github.com/naman-kalwani/auctionit-server/pkg/types"
)

// postgres implements Service against the database shared with the web app,
// hence the quoted camelCase identifiers in every query.
type postgres struct {
	db *sql.DB
}

var pgInstance *postgres

func newPostgres(cfg *configs.Config) Service {
	// Reuse Connection
	if pgInstance != nil {
		return pgInstance
	}
	dbConfig := cfg.Database
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.Name,
		dbConfig.SSLMode,
	)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatal("Error opening database connection: ", err)
	}

	pgInstance = &postgres{db: db}
	return pgInstance
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *postgres) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	// Ping the database
	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	// Database is up, add more statistics
	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *postgres) Close() error {
	log.Info("Disconnected from database")
	return s.db.Close()
}

func (s *postgres) GetUserByEmail(email string) (types.User, error) {
	var user types.User
	err := s.db.QueryRow(`SELECT "id", "name", "email", "role" FROM public."User" WHERE "email" = $1`, email).
		Scan(&user.ID, &user.Name, &user.Email, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return types.User{}, apperrors.Wrap(err, "error getting user by email")
	}
	return user, nil
}

const auctionColumns = `
    "id",
    "title",
    "ownerId",
    "basePrice",
    "currentBid",
    "highestBidderId",
    "endAt",
    "ended",
    "warningNotificationSent",
    "version",
    "createdAt",
    "updatedAt"
`

func scanAuction(row interface{ Scan(...any) error }) (types.Auction, error) {
	var a types.Auction
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.OwnerID,
		&a.BasePrice,
		&a.CurrentBid,
		&a.HighestBidderID,
		&a.EndAt,
		&a.Ended,
		&a.WarningSent,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (s *postgres) GetAuctionByID(ctx context.Context, auctionID string) (types.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM public."Auctions" WHERE "id" = $1`
	auction, err := scanAuction(s.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Auction{}, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if err != nil {
		return types.Auction{}, apperrors.Wrap(err, "error getting auction by id")
	}

	if auction.BidHistory, err = s.bidHistory(ctx, auctionID); err != nil {
		return types.Auction{}, err
	}
	return auction, nil
}

func (s *postgres) bidHistory(ctx context.Context, auctionID string) ([]types.Bid, error) {
	query := `
        SELECT "id", "auctionId", "bidderId", "bidderName", "amount", "createdAt"
        FROM public."Bid"
        WHERE "auctionId" = $1
        ORDER BY "createdAt" ASC, "id" ASC
    `
	rows, err := s.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, apperrors.Wrap(err, "error getting bid history")
	}
	defer rows.Close()

	var bids []types.Bid
	for rows.Next() {
		var b types.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderName, &b.Amount, &b.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "error scanning bid")
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "error iterating over bids")
	}
	return bids, nil
}

func (s *postgres) GetOpenAuctions(ctx context.Context) ([]types.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM public."Auctions" WHERE "ended" = false ORDER BY "endAt" ASC`
	return s.queryAuctions(ctx, query)
}

func (s *postgres) FindDueAuctions(ctx context.Context, now time.Time) ([]types.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM public."Auctions" WHERE "ended" = false AND "endAt" <= $1 ORDER BY "endAt" ASC`
	auctions, err := s.queryAuctions(ctx, query, now)
	if err != nil {
		return nil, err
	}
	// The closing fan-out needs winner display names from the history.
	for i := range auctions {
		if auctions[i].BidHistory, err = s.bidHistory(ctx, auctions[i].ID); err != nil {
			return nil, err
		}
	}
	return auctions, nil
}

func (s *postgres) FindEndingSoon(ctx context.Context, from, to time.Time) ([]types.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM public."Auctions"
        WHERE "ended" = false
          AND "warningNotificationSent" = false
          AND "endAt" >= $1 AND "endAt" < $2
        ORDER BY "endAt" ASC
    `
	return s.queryAuctions(ctx, query, from, to)
}

func (s *postgres) queryAuctions(ctx context.Context, query string, args ...any) ([]types.Auction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "error querying auctions")
	}
	defer rows.Close()

	var auctions []types.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "error scanning auction")
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "error iterating over auctions")
	}
	return auctions, nil
}

// ApplyBid commits a bid with optimistic concurrency: the auction row update
// is guarded by the version read by the caller, and the history insert rides
// in the same transaction.
func (s *postgres) ApplyBid(ctx context.Context, auction types.Auction, bid types.Bid) (types.Auction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Auction{}, apperrors.Wrap(err, "error starting transaction")
	}
	defer tx.Rollback()

	update := `
        UPDATE public."Auctions"
        SET "currentBid" = $1, "highestBidderId" = $2, "version" = "version" + 1, "updatedAt" = now()
        WHERE "id" = $3 AND "version" = $4
    `
	res, err := tx.ExecContext(ctx, update, bid.Amount, bid.BidderID, auction.ID, auction.Version)
	if err != nil {
		return types.Auction{}, apperrors.Wrap(err, "error updating auction")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return types.Auction{}, apperrors.Wrap(err, "error reading update result")
	}
	if affected == 0 {
		return types.Auction{}, fmt.Errorf("auction %s at version %d: %w", auction.ID, auction.Version, ErrVersionConflict)
	}

	insert := `
        INSERT INTO public."Bid" ("id", "auctionId", "bidderId", "bidderName", "amount", "createdAt")
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := tx.ExecContext(ctx, insert, bid.ID, bid.AuctionID, bid.BidderID, bid.BidderName, bid.Amount, bid.CreatedAt); err != nil {
		return types.Auction{}, apperrors.Wrap(err, "error creating bid")
	}

	if err := tx.Commit(); err != nil {
		return types.Auction{}, apperrors.Wrap(err, "error committing bid")
	}

	auction.CurrentBid = bid.Amount
	auction.HighestBidderID = &bid.BidderID
	auction.BidHistory = append(auction.BidHistory, bid)
	auction.Version++

	log.Debugf("Auction %s updated with new bid: %v", auction.ID, auction.CurrentBid)
	return auction, nil
}

// CloseAuction is guarded by the ended flag itself rather than the version:
// a bid racing with the sweep must not delay the close, only a prior close
// makes it a no-op.
func (s *postgres) CloseAuction(ctx context.Context, auctionID string) error {
	query := `
        UPDATE public."Auctions"
        SET "ended" = true, "version" = "version" + 1, "updatedAt" = now()
        WHERE "id" = $1 AND "ended" = false
    `
	return s.guardedUpdate(ctx, query, auctionID)
}

func (s *postgres) MarkWarningSent(ctx context.Context, auctionID string) error {
	query := `
        UPDATE public."Auctions"
        SET "warningNotificationSent" = true, "version" = "version" + 1, "updatedAt" = now()
        WHERE "id" = $1 AND "warningNotificationSent" = false
    `
	return s.guardedUpdate(ctx, query, auctionID)
}

func (s *postgres) guardedUpdate(ctx context.Context, query, auctionID string) error {
	res, err := s.db.ExecContext(ctx, query, auctionID)
	if err != nil {
		return apperrors.Wrap(err, "error updating auction")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "error reading update result")
	}
	if affected == 0 {
		return fmt.Errorf("auction %s: %w", auctionID, ErrVersionConflict)
	}
	return nil
}

func (s *postgres) CreateNotification(ctx context.Context, n types.Notification) (types.Notification, error) {
	query := `
        INSERT INTO public."Notification" ("id", "userId", "auctionId", "kind", "message", "read", "createdAt")
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := s.db.ExecContext(ctx, query, n.ID, n.UserID, n.AuctionID, string(n.Kind), n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return types.Notification{}, apperrors.Wrap(err, "error creating notification")
	}
	return n, nil
}

func (s *postgres) CreatePendingPayment(ctx context.Context, p types.Payment) (types.Payment, error) {
	query := `
        INSERT INTO public."Payment" ("id", "auctionId", "buyerId", "sellerId", "amount", "status", "createdAt")
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := s.db.ExecContext(ctx, query, p.ID, p.AuctionID, p.BuyerID, p.SellerID, p.Amount, p.Status, p.CreatedAt)
	if err != nil {
		return types.Payment{}, apperrors.Wrap(err, "error creating pending payment")
	}
	return p, nil
}
