package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const auctionColumns = `id, seller_id, name, description, price, start_time, duration, state, image_url`

// AuctionRepository implements outbound.AuctionRepository on the auction_item table
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

// Create creates a new auction item
func (r *AuctionRepository) Create(ctx context.Context, item *auction.Item) error {
	query := `
		INSERT INTO auction_item (` + auctionColumns + `)
		VALUES (:id, :seller_id, :name, :description, :price, :start_time, :duration, :state, :image_url)
	`

	if _, err := r.conn.GetDB().NamedExecContext(ctx, query, item); err != nil {
		return shared.NewStoreError("create auction", err)
	}
	return nil
}

// GetByID retrieves an auction item by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error) {
	query := `SELECT ` + auctionColumns + ` FROM auction_item WHERE id = $1`

	var item auction.Item
	if err := r.conn.GetDB().GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, shared.NewStoreError("get auction", err)
	}
	return &item, nil
}

// ListByState retrieves auction items in state, oldest start first
func (r *AuctionRepository) ListByState(ctx context.Context, state auction.State) ([]*auction.Item, error) {
	query := `SELECT ` + auctionColumns + ` FROM auction_item WHERE state = $1 ORDER BY start_time ASC, id ASC`
	return r.list(ctx, "list auctions by state", query, state)
}

// ListBySeller retrieves auction items created by sellerID
func (r *AuctionRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*auction.Item, error) {
	query := `SELECT ` + auctionColumns + ` FROM auction_item WHERE seller_id = $1 ORDER BY start_time ASC, id ASC`
	return r.list(ctx, "list auctions by seller", query, sellerID)
}

// ListByBidder retrieves auction items bidderID has bid on
func (r *AuctionRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*auction.Item, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auction_item
		WHERE id IN (SELECT DISTINCT item_id FROM bid WHERE bidder_id = $1)
		ORDER BY start_time ASC, id ASC
	`
	return r.list(ctx, "list auctions by bidder", query, bidderID)
}

// PromoteStarted moves every future item whose start time has passed to ongoing
func (r *AuctionRepository) PromoteStarted(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE auction_item SET state = $1 WHERE state = $2 AND start_time <= $3`

	result, err := r.conn.GetDB().ExecContext(ctx, query, auction.StateOngoing, auction.StateFuture, now)
	if err != nil {
		return 0, shared.NewStoreError("promote started auctions", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, shared.NewStoreError("promote started auctions", err)
	}
	return rowsAffected, nil
}

// TransitionState moves an item from one state to another if it is still in from
func (r *AuctionRepository) TransitionState(ctx context.Context, id uuid.UUID, from, to auction.State) (bool, error) {
	// lifecycle only moves forward
	if auction.Advance(from, to) != to || from == to {
		return false, shared.ErrInvalidState
	}

	query := `UPDATE auction_item SET state = $1 WHERE id = $2 AND state = $3`

	result, err := r.conn.GetDB().ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, shared.NewStoreError("transition auction state", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, shared.NewStoreError("transition auction state", err)
	}
	return rowsAffected == 1, nil
}

func (r *AuctionRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]*auction.Item, error) {
	items := make([]*auction.Item, 0)
	if err := r.conn.GetDB().SelectContext(ctx, &items, query, args...); err != nil {
		return nil, shared.NewStoreError(op, err)
	}
	return items, nil
}
