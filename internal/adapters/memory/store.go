package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// Store is a concurrency-safe in-memory backing for all repositories.
// One mutex guards every table so PlaceBid is atomic like a row lock.
type Store struct {
	mu            sync.RWMutex
	items         map[uuid.UUID]auction.Item
	bids          map[uuid.UUID][]bid.Bid // key: itemID
	notifications map[uuid.UUID][]notification.Notification
	profiles      map[uuid.UUID]shared.Profile
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		items:         make(map[uuid.UUID]auction.Item),
		bids:          make(map[uuid.UUID][]bid.Bid),
		notifications: make(map[uuid.UUID][]notification.Notification),
		profiles:      make(map[uuid.UUID]shared.Profile),
	}
}

// Auctions returns the auction_item repository view of the store
func (s *Store) Auctions() outbound.AuctionRepository { return &AuctionRepository{s} }

// Bids returns the bid repository view of the store
func (s *Store) Bids() outbound.BidRepository { return &BidRepository{s} }

// Notifications returns the notification repository view of the store
func (s *Store) Notifications() outbound.NotificationRepository { return &NotificationRepository{s} }

// Profiles returns the profile repository view of the store
func (s *Store) Profiles() outbound.ProfileRepository { return &ProfileRepository{s} }

// AuctionRepository implements outbound.AuctionRepository in memory
type AuctionRepository struct{ store *Store }

func (r *AuctionRepository) Create(ctx context.Context, item *auction.Item) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.items[item.ID] = *item
	return nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.items[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return &item, nil
}

func (r *AuctionRepository) ListByState(ctx context.Context, state auction.State) ([]*auction.Item, error) {
	return r.list(func(item auction.Item) bool { return item.State == state }), nil
}

func (r *AuctionRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*auction.Item, error) {
	return r.list(func(item auction.Item) bool { return item.SellerID == sellerID }), nil
}

func (r *AuctionRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*auction.Item, error) {
	r.store.mu.RLock()
	placed := make(map[uuid.UUID]bool)
	for itemID, bids := range r.store.bids {
		for _, b := range bids {
			if b.BidderID == bidderID {
				placed[itemID] = true
				break
			}
		}
	}
	r.store.mu.RUnlock()

	return r.list(func(item auction.Item) bool { return placed[item.ID] }), nil
}

func (r *AuctionRepository) PromoteStarted(ctx context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var promoted int64
	for id, item := range r.store.items {
		if item.State == auction.StateFuture && !item.StartTime.After(now) {
			item.State = auction.StateOngoing
			r.store.items[id] = item
			promoted++
		}
	}
	return promoted, nil
}

func (r *AuctionRepository) TransitionState(ctx context.Context, id uuid.UUID, from, to auction.State) (bool, error) {
	if auction.Advance(from, to) != to || from == to {
		return false, shared.ErrInvalidState
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.items[id]
	if !ok {
		return false, shared.ErrAuctionNotFound
	}
	if item.State != from {
		return false, nil
	}
	item.State = to
	r.store.items[id] = item
	return true, nil
}

func (r *AuctionRepository) list(keep func(auction.Item) bool) []*auction.Item {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	items := make([]*auction.Item, 0)
	for _, item := range r.store.items {
		if keep(item) {
			item := item
			items = append(items, &item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].StartTime.Equal(items[j].StartTime) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].StartTime.Before(items[j].StartTime)
	})
	return items
}

// BidRepository implements outbound.BidRepository in memory
type BidRepository struct{ store *Store }

func (r *BidRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*bid.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	bids := make([]*bid.Bid, 0, len(r.store.bids[itemID]))
	for _, b := range r.store.bids[itemID] {
		b := b
		bids = append(bids, &b)
	}
	sort.SliceStable(bids, func(i, j int) bool { return ranksAbove(bids[i], bids[j]) })
	return bids, nil
}

func (r *BidRepository) GetHighest(ctx context.Context, itemID uuid.UUID) (*bid.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.highestLocked(itemID), nil
}

func (r *BidRepository) PlaceBid(ctx context.Context, newBid *bid.Bid, check outbound.BidCheck) (*bid.Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.items[newBid.ItemID]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}

	highest := r.highestLocked(newBid.ItemID)
	if err := check(&item, highest); err != nil {
		return nil, err
	}

	r.store.bids[newBid.ItemID] = append(r.store.bids[newBid.ItemID], *newBid)
	return highest, nil
}

// highestLocked expects the store mutex to be held
func (r *BidRepository) highestLocked(itemID uuid.UUID) *bid.Bid {
	var highest *bid.Bid
	for i := range r.store.bids[itemID] {
		b := r.store.bids[itemID][i]
		if highest == nil || ranksAbove(&b, highest) {
			highest = &b
		}
	}
	return highest
}

// ranksAbove orders by amount descending, then earliest, then id
func ranksAbove(a, b *bid.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// NotificationRepository implements outbound.NotificationRepository in memory
type NotificationRepository struct{ store *Store }

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.notifications[n.UserID] = append(r.store.notifications[n.UserID], *n)
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*notification.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stored := r.store.notifications[userID]
	list := make([]*notification.Notification, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		n := stored[i]
		list = append(list, &n)
	}
	return list, nil
}

// ProfileRepository implements outbound.ProfileRepository in memory
type ProfileRepository struct{ store *Store }

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*shared.Profile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	profile, ok := r.store.profiles[id]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return &profile, nil
}

// Upsert keeps stored names the new profile leaves empty
func (r *ProfileRepository) Upsert(ctx context.Context, profile *shared.Profile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	merged := *profile
	if existing, ok := r.store.profiles[profile.ID]; ok {
		if merged.Username == "" {
			merged.Username = existing.Username
		}
		if merged.DisplayName == "" {
			merged.DisplayName = existing.DisplayName
		}
	}
	r.store.profiles[profile.ID] = merged
	return nil
}
