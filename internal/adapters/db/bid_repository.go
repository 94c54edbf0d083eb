package db

import (
	"context"
	"database/sql"
	"errors"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	bidColumns = `id, item_id, bidder_id, amount, created_at`
	// ties on amount go to the earliest bid
	bidRanking = `ORDER BY amount DESC, created_at ASC, id ASC`
)

// BidRepository implements outbound.BidRepository on the bid table
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

// ListByItem retrieves all bids for an item, highest first
func (r *BidRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE item_id = $1 ` + bidRanking

	bids := make([]*bid.Bid, 0)
	if err := r.conn.GetDB().SelectContext(ctx, &bids, query, itemID); err != nil {
		return nil, shared.NewStoreError("list bids", err)
	}
	return bids, nil
}

// GetHighest retrieves the highest bid for an item, or nil when there are none
func (r *BidRepository) GetHighest(ctx context.Context, itemID uuid.UUID) (*bid.Bid, error) {
	highest, err := getHighest(ctx, r.conn.GetDB(), itemID)
	if err != nil {
		return nil, shared.NewStoreError("get highest bid", err)
	}
	return highest, nil
}

/*
PlaceBid places a bid under a row lock on the auction item.
 1. Lock the auction_item row so concurrent bids on it serialize
 2. Read the current highest bid
 3. Run check against the locked row and highest bid
 4. Insert the new bid only if check passed
*/
func (r *BidRepository) PlaceBid(ctx context.Context, newBid *bid.Bid, check outbound.BidCheck) (*bid.Bid, error) {
	var previous *bid.Bid

	err := r.conn.ExecuteTransaction(ctx, func(tx *sqlx.Tx) error {
		var item auction.Item
		lockQuery := `SELECT ` + auctionColumns + ` FROM auction_item WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &item, lockQuery, newBid.ItemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shared.ErrAuctionNotFound
			}
			return shared.NewStoreError("lock auction", err)
		}

		highest, err := getHighest(ctx, tx, newBid.ItemID)
		if err != nil {
			return shared.NewStoreError("get highest bid", err)
		}

		if err := check(&item, highest); err != nil {
			return err
		}

		insertQuery := `
			INSERT INTO bid (` + bidColumns + `)
			VALUES (:id, :item_id, :bidder_id, :amount, :created_at)
		`
		if _, err := tx.NamedExecContext(ctx, insertQuery, newBid); err != nil {
			return shared.NewStoreError("insert bid", err)
		}

		previous = highest
		return nil
	})
	if err != nil {
		if !shared.IsBidRejection(err) && !errors.Is(err, shared.ErrAuctionNotFound) && !shared.IsStoreError(err) {
			return nil, shared.NewStoreError("place bid", err)
		}
		return nil, err
	}

	return previous, nil
}

func getHighest(ctx context.Context, q sqlx.QueryerContext, itemID uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE item_id = $1 ` + bidRanking + ` LIMIT 1`

	var highest bid.Bid
	if err := sqlx.GetContext(ctx, q, &highest, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &highest, nil
}
