package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"heelbid-auction-service/internal/config"
	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// openTestRepositories connects to HEELBID_TEST_DB_URL; the tests are skipped without it
func openTestRepositories(t *testing.T) Repositories {
	t.Helper()
	url := os.Getenv("HEELBID_TEST_DB_URL")
	if url == "" {
		t.Skip("HEELBID_TEST_DB_URL not set")
	}

	conn, err := NewConnection(&config.Config{Database: config.DatabaseConfig{URL: url, Driver: config.DriverPostgres}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, RunMigrations(conn, zerolog.Nop()))
	return NewRepositoryFactory(conn).GetAllRepositories()
}

func createTestItem(t *testing.T, repos Repositories, start time.Time, state auction.State) *auction.Item {
	t.Helper()
	item := &auction.Item{ID: uuid.New(), SellerID: uuid.New(), Name: "Satin Flats", Price: 10, StartTime: start.UTC(), Duration: 30, State: state}
	require.NoError(t, repos.Auctions.Create(context.Background(), item))
	return item
}

func TestPostgres_PlaceBidSerializesPerItem(t *testing.T) {
	repos := openTestRepositories(t)
	now := time.Now().UTC()
	item := createTestItem(t, repos, now.Add(-time.Minute), auction.StateOngoing)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(amount float64) {
			defer wg.Done()
			newBid := &bid.Bid{ID: uuid.New(), ItemID: item.ID, BidderID: uuid.New(), Amount: amount, CreatedAt: time.Now().UTC()}
			_, _ = repos.Bids.PlaceBid(context.Background(), newBid, func(locked *auction.Item, highest *bid.Bid) error {
				return bid.Validate(locked, highest, amount, time.Now())
			})
		}(float64(11 + i%5))
	}
	wg.Wait()

	bids, err := repos.Bids.ListByItem(context.Background(), item.ID)
	require.NoError(t, err)
	seen := make(map[float64]bool)
	for _, b := range bids {
		require.False(t, seen[b.Amount], "amount %v accepted twice", b.Amount)
		seen[b.Amount] = true
	}
	require.Equal(t, 15.0, bids[0].Amount)

	_, err = repos.Bids.PlaceBid(context.Background(), &bid.Bid{ID: uuid.New(), ItemID: uuid.New(), Amount: 1}, func(*auction.Item, *bid.Bid) error { return nil })
	require.ErrorIs(t, err, shared.ErrAuctionNotFound)
}

func TestPostgres_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repos := openTestRepositories(t)
	now := time.Now().UTC()
	item := createTestItem(t, repos, now.Add(-time.Minute), auction.StateFuture)

	promoted, err := repos.Auctions.PromoteStarted(ctx, now)
	require.NoError(t, err)
	require.GreaterOrEqual(t, promoted, int64(1))

	moved, err := repos.Auctions.TransitionState(ctx, item.ID, auction.StateOngoing, auction.StateCompleted)
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = repos.Auctions.TransitionState(ctx, item.ID, auction.StateOngoing, auction.StateCompleted)
	require.NoError(t, err)
	require.False(t, moved)

	_, err = repos.Auctions.TransitionState(ctx, item.ID, auction.StateCompleted, auction.StateFuture)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	stored, err := repos.Auctions.GetByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, auction.StateCompleted, stored.State)
}

func TestPostgres_ProfilesAndNotifications(t *testing.T) {
	ctx := context.Background()
	repos := openTestRepositories(t)
	userID := uuid.New()

	require.NoError(t, repos.Profiles.Upsert(ctx, &shared.Profile{ID: userID, Username: "dana", DisplayName: "Dana"}))
	require.NoError(t, repos.Profiles.Upsert(ctx, &shared.Profile{ID: userID, DisplayName: "Dana K."}))

	profile, err := repos.Profiles.GetByID(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "dana", profile.Username)
	require.Equal(t, "Dana K.", profile.DisplayName)

	first, err := notification.New(userID, "first", time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)
	second, err := notification.New(userID, "second", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repos.Notifications.Create(ctx, first))
	require.NoError(t, repos.Notifications.Create(ctx, second))

	list, err := repos.Notifications.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
}
