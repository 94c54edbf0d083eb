package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"heelbid-auction-service/internal/config"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/inbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// auctionSubscriptions are the two feed subscriptions behind one subscribe_bids
type auctionSubscriptions struct {
	bids  inbound.Subscription
	state inbound.Subscription
}

func (s auctionSubscriptions) close() {
	s.bids.Close()
	s.state.Close()
}

type WsClient struct {
	id            string
	user          *shared.User
	conn          *websocket.Conn
	sendChan      chan *ServerMessage
	ctx           context.Context
	cancel        context.CancelFunc
	handler       *WsHandler
	workerPool    *pond.WorkerPool
	auctions      map[uuid.UUID]auctionSubscriptions
	notifications inbound.Subscription
	subsMu        sync.Mutex
	stopped       bool
	mu            sync.Mutex
	logger        zerolog.Logger
}

type WsClientParams struct {
	User    *shared.User
	Conn    *websocket.Conn
	Handler *WsHandler
	Logger  zerolog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(params WsClientParams) *WsClient {
	ctx, cancel := context.WithCancel(shared.WithUser(context.Background(), params.User))

	pool := pond.New(
		config.WSMaxWorkers,
		config.WSMaxCapacity,
		pond.Context(ctx),
		pond.Strategy(pond.Balanced()),
	)

	id := uuid.New().String()
	return &WsClient{
		id:         id,
		user:       params.User,
		conn:       params.Conn,
		sendChan:   make(chan *ServerMessage, 100),
		ctx:        ctx,
		cancel:     cancel,
		handler:    params.Handler,
		workerPool: pool,
		auctions:   make(map[uuid.UUID]auctionSubscriptions),
		logger:     params.Logger.With().Str("client_id", id).Str("user_id", params.User.ID.String()).Logger(),
	}
}

func (c *WsClient) Start() {
	go c.messageSender()
	go c.messageReceiver()
}

// Stop closes the connection and releases every feed subscription; it is idempotent
func (client *WsClient) Stop() {
	client.mu.Lock()
	if client.stopped {
		client.mu.Unlock()
		return
	}
	client.stopped = true
	client.mu.Unlock()

	client.cancel()
	client.conn.Close()

	client.subsMu.Lock()
	for auctionID, subs := range client.auctions {
		subs.close()
		delete(client.auctions, auctionID)
	}
	if client.notifications != nil {
		client.notifications.Close()
		client.notifications = nil
	}
	client.subsMu.Unlock()

	if client.workerPool != nil {
		client.workerPool.Stop()
	}
}

func (client *WsClient) isStopped() bool {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.stopped
}

// Send queues a message for the client
func (client *WsClient) Send(msg *ServerMessage) error {
	if client.isStopped() {
		return fmt.Errorf("client is stopped")
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		select {
		case client.sendChan <- msg:
			return nil
		case <-time.After(100 * time.Millisecond):
			return fmt.Errorf("client send channel is full")
		case <-client.ctx.Done():
			return fmt.Errorf("client is stopped")
		}
	}
}

func (client *WsClient) messageSender() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-client.sendChan:
			if err := client.sendMessage(msg); err != nil {
				client.logger.Error().Err(err).Msg("Failed to send message to client")
				client.cancel()
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.logger.Debug().Err(err).Msg("Ping failed")
				client.cancel()
				return
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func (client *WsClient) messageReceiver() {
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.logger.Error().Err(err).Msg("WebSocket read error for client")
			} else {
				client.logger.Info().Str("error", err.Error()).Msg("WebSocket connection closed for client")
			}
			// Cancel context to notify handler about disconnection
			client.cancel()
			return
		}

		submitted := client.workerPool.TrySubmit(func() {
			if err := client.handleMessage(message); err != nil {
				client.logger.Warn().Err(err).Msg("Failed to handle client message")
				client.Send(NewErrorMessage(err.Error(), nil))
			}
		})
		if !submitted {
			client.Send(NewErrorMessage("too many pending messages", nil))
		}
	}
}

func (client *WsClient) sendMessage(msg *ServerMessage) error {
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return client.conn.WriteJSON(msg)
}

func (client *WsClient) handleMessage(data []byte) error {
	msg, err := ParseClientMessage(data)
	if err != nil {
		return fmt.Errorf("invalid message format: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return fmt.Errorf("message validation failed: %w", err)
	}

	if msg.Type == MessageTypePing {
		pong := NewServerMessage(MessageTypePong, nil)
		pong.RequestID = msg.RequestID
		return client.Send(pong)
	}

	if client.handler != nil {
		return client.handler.HandleClientMessage(client, msg)
	}
	return fmt.Errorf("handler not available")
}

// addAuction records subs for auctionID; it reports false if already subscribed
func (client *WsClient) addAuction(auctionID uuid.UUID, subs auctionSubscriptions) bool {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()

	if _, exists := client.auctions[auctionID]; exists || client.isStopped() {
		return false
	}
	client.auctions[auctionID] = subs
	return true
}

func (client *WsClient) hasAuction(auctionID uuid.UUID) bool {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()
	_, exists := client.auctions[auctionID]
	return exists
}

func (client *WsClient) removeAuction(auctionID uuid.UUID) bool {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()

	subs, exists := client.auctions[auctionID]
	if !exists {
		return false
	}
	subs.close()
	delete(client.auctions, auctionID)
	return true
}

// markBidSeen stops the feed from echoing a bid this client placed
func (client *WsClient) markBidSeen(auctionID, bidID uuid.UUID) {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()

	if subs, exists := client.auctions[auctionID]; exists {
		subs.bids.MarkSeen(bidID)
	}
}

func (client *WsClient) setNotifications(sub inbound.Subscription) bool {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()

	if client.notifications != nil || client.isStopped() {
		return false
	}
	client.notifications = sub
	return true
}
