package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"heelbid-auction-service/internal/adapters/memory"
	"heelbid-auction-service/internal/app"
	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	server  *httptest.Server
	handler *WsHandler
	item    *auction.Item
	store   *memory.Store
	feed    *memory.Feed
}

// withTestUser resolves the caller from the uid query parameter
func withTestUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id, err := uuid.Parse(r.URL.Query().Get("uid")); err == nil {
			r = r.WithContext(shared.WithUser(r.Context(), &shared.User{ID: id, DisplayName: "user-" + id.String()[:4]}))
		}
		next(w, r)
	}
}

func newWsFixture(t *testing.T) *wsFixture {
	t.Helper()
	store := memory.NewStore()
	feed := memory.NewFeed(zerolog.Nop())

	item := &auction.Item{
		ID:        uuid.New(),
		SellerID:  uuid.New(),
		Name:      "Velvet Mules",
		Price:     10,
		StartTime: time.Now().Add(-time.Minute),
		Duration:  30,
		State:     auction.StateOngoing,
	}
	require.NoError(t, store.Auctions().Create(context.Background(), item))

	handler := NewHandler(WsHandlerParams{
		Upgrader:    NewUpgrader(1024, 1024, nil),
		BidService:  app.NewBidService(app.BidServiceParams{BidRepo: store.Bids(), ProfileRepo: store.Profiles(), Feed: feed, Logger: zerolog.Nop()}),
		FeedService: app.NewFeedService(app.FeedServiceParams{Feed: feed, Logger: zerolog.Nop()}),
		Logger:      zerolog.Nop(),
	})

	server := httptest.NewServer(withTestUser(handler.HandleWebSocket))
	t.Cleanup(func() {
		handler.CloseAll()
		server.Close()
	})

	return &wsFixture{server: server, handler: handler, item: item, store: store, feed: feed}
}

func (f *wsFixture) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?uid=" + userID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWsHandler_RejectsAnonymous(t *testing.T) {
	f := newWsFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWsHandler_BidFlow(t *testing.T) {
	f := newWsFixture(t)
	watcher := f.dial(t, uuid.New())
	bidder := f.dial(t, uuid.New())

	send(t, watcher, map[string]interface{}{"type": "subscribe_bids", "request_id": "sub-1", "auction_id": f.item.ID})
	ack := receive(t, watcher)
	require.Equal(t, MessageTypeAck, ack.Type)
	require.Equal(t, "sub-1", ack.RequestID)
	require.Equal(t, map[string]interface{}{"status": "subscribed"}, ack.Data)

	send(t, watcher, map[string]interface{}{"type": "subscribe_bids", "auction_id": f.item.ID})
	again := receive(t, watcher)
	require.Equal(t, map[string]interface{}{"status": "already_subscribed"}, again.Data)

	send(t, bidder, map[string]interface{}{"type": "place_bid", "request_id": "bid-1", "auction_id": f.item.ID, "data": map[string]interface{}{"amount": 5}})
	rejected := receive(t, bidder)
	require.Equal(t, MessageTypeError, rejected.Type)
	require.Equal(t, "bid-1", rejected.RequestID)
	require.Equal(t, shared.ErrBidTooLow.Error(), *rejected.Error)

	send(t, bidder, map[string]interface{}{"type": "place_bid", "request_id": "bid-2", "auction_id": f.item.ID, "data": map[string]interface{}{"amount": 15}})
	accepted := receive(t, bidder)
	require.Equal(t, MessageTypeAck, accepted.Type)
	require.Equal(t, "bid-2", accepted.RequestID)

	placed := receive(t, watcher)
	require.Equal(t, MessageTypeBidPlaced, placed.Type)
	require.Equal(t, f.item.ID, *placed.AuctionID)
	require.Equal(t, 15.0, placed.Data.(map[string]interface{})["amount"])

	send(t, watcher, map[string]interface{}{"type": "unsubscribe_bids", "auction_id": f.item.ID})
	require.Equal(t, map[string]interface{}{"status": "unsubscribed"}, receive(t, watcher).Data)

	send(t, watcher, map[string]interface{}{"type": "unsubscribe_bids", "auction_id": f.item.ID})
	require.Equal(t, map[string]interface{}{"status": "not_subscribed"}, receive(t, watcher).Data)
}

func TestWsHandler_PingAndInvalidMessages(t *testing.T) {
	f := newWsFixture(t)
	conn := f.dial(t, uuid.New())

	send(t, conn, map[string]interface{}{"type": "ping", "request_id": "p1"})
	pong := receive(t, conn)
	require.Equal(t, MessageTypePong, pong.Type)
	require.Equal(t, "p1", pong.RequestID)

	send(t, conn, map[string]interface{}{"type": "subscribe_bids"})
	invalid := receive(t, conn)
	require.Equal(t, MessageTypeError, invalid.Type)
	require.Contains(t, *invalid.Error, shared.ErrAuctionIDRequired.Error())

	send(t, conn, map[string]interface{}{"type": "place_bid", "request_id": "b1", "auction_id": f.item.ID})
	noAmount := receive(t, conn)
	require.Equal(t, MessageTypeError, noAmount.Type)
	require.Contains(t, *noAmount.Error, shared.ErrInvalidAmount.Error())

	bids, err := f.store.Bids().ListByItem(context.Background(), f.item.ID)
	require.NoError(t, err)
	require.Empty(t, bids)

	require.Eventually(t, func() bool { return f.handler.GetConnectedClients() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWsHandler_NotificationFeed(t *testing.T) {
	f := newWsFixture(t)
	userID := uuid.New()
	conn := f.dial(t, userID)

	send(t, conn, map[string]interface{}{"type": "subscribe_notifications"})
	require.Equal(t, map[string]interface{}{"status": "subscribed"}, receive(t, conn).Data)

	send(t, conn, map[string]interface{}{"type": "subscribe_notifications"})
	require.Equal(t, map[string]interface{}{"status": "already_subscribed"}, receive(t, conn).Data)

	notifications := app.NewNotificationService(app.NotificationServiceParams{Repo: f.store.Notifications(), Feed: f.feed, Logger: zerolog.Nop()})
	sent, err := notifications.Send(context.Background(), userID, "You have been outbid")
	require.NoError(t, err)

	pushed := receive(t, conn)
	require.Equal(t, MessageTypeNotification, pushed.Type)
	require.Equal(t, sent.ID.String(), pushed.Data.(map[string]interface{})["id"])
}

func TestWsHandler_OwnBidNotEchoed(t *testing.T) {
	f := newWsFixture(t)
	bidder := f.dial(t, uuid.New())
	rival := f.dial(t, uuid.New())

	send(t, bidder, map[string]interface{}{"type": "subscribe_bids", "auction_id": f.item.ID})
	require.Equal(t, MessageTypeAck, receive(t, bidder).Type)

	for i, amount := range []float64{15, 16, 17} {
		requestID := fmt.Sprintf("own-%d", i)
		send(t, bidder, map[string]interface{}{"type": "place_bid", "request_id": requestID, "auction_id": f.item.ID, "data": map[string]interface{}{"amount": amount}})
		ack := receive(t, bidder)
		require.Equal(t, MessageTypeAck, ack.Type)
		require.Equal(t, requestID, ack.RequestID)
	}

	send(t, rival, map[string]interface{}{"type": "place_bid", "auction_id": f.item.ID, "data": map[string]interface{}{"amount": 30}})
	require.Equal(t, MessageTypeAck, receive(t, rival).Type)

	// the next thing the bidder hears is the rival's bid, not an echo of its own
	placed := receive(t, bidder)
	require.Equal(t, MessageTypeBidPlaced, placed.Type)
	require.Equal(t, 30.0, placed.Data.(map[string]interface{})["amount"])
}
