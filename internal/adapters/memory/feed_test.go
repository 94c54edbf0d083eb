package memory

import (
	"context"
	"testing"

	"heelbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFeed_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	feed := NewFeed(zerolog.Nop())
	topic := outbound.BidTopic(uuid.New())

	events := make(chan outbound.Event, 1)
	require.NoError(t, feed.Subscribe(ctx, topic, "client-1", events))
	require.NoError(t, feed.Subscribe(ctx, topic, "client-1", make(chan outbound.Event)))

	event := outbound.Event{Type: outbound.EventTypeBidPlaced, RowID: uuid.New()}
	require.NoError(t, feed.Publish(ctx, topic, event))

	got := <-events
	require.Equal(t, topic, got.Topic)
	require.Equal(t, event.RowID, got.RowID)
	require.NotZero(t, got.Timestamp)

	// full channel drops instead of blocking
	require.NoError(t, feed.Publish(ctx, topic, event))
	require.NoError(t, feed.Publish(ctx, topic, event))
	require.Len(t, events, 1)

	require.NoError(t, feed.Unsubscribe(ctx, topic, "client-1"))
	<-events
	_, open := <-events
	require.False(t, open)

	require.NoError(t, feed.Unsubscribe(ctx, topic, "client-1"))
	require.NoError(t, feed.Publish(ctx, outbound.BidTopic(uuid.New()), event))
}
