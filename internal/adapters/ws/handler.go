package ws

import (
	"errors"
	"net/http"
	"sync"

	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients     map[string]*WsClient // clientID -> Client
	clientsMu   sync.RWMutex
	upgrader    websocket.Upgrader
	bidService  inbound.BidService
	feedService inbound.FeedService
	logger      zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader    websocket.Upgrader
	BidService  inbound.BidService
	FeedService inbound.FeedService
	Logger      zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:     make(map[string]*WsClient),
		upgrader:    params.Upgrader,
		bidService:  params.BidService,
		feedService: params.FeedService,
		logger:      params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket upgrades an authenticated request to a WebSocket connection
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		http.Error(w, shared.ErrUnauthenticated.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		User:    user,
		Conn:    conn,
		Handler: handler,
		Logger:  handler.logger,
	})

	handler.registerClient(client)
	client.Start()

	// Wait for client to disconnect
	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", user.ID.String()).Msg("WebSocket client connected")
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	delete(handler.clients, client.id)
	total := len(handler.clients)
	handler.clientsMu.Unlock()

	client.Stop()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.user.ID.String()).Int("total_clients", total).Msg("WebSocket client disconnected")
}

// CloseAll disconnects every client, used on shutdown
func (handler *WsHandler) CloseAll() {
	handler.clientsMu.RLock()
	clients := make([]*WsClient, 0, len(handler.clients))
	for _, client := range handler.clients {
		clients = append(clients, client)
	}
	handler.clientsMu.RUnlock()

	for _, client := range clients {
		client.Stop()
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribeBids:
		return handler.handleSubscribeBids(client, msg)

	case MessageTypeUnsubscribeBids:
		return handler.handleUnsubscribeBids(client, msg)

	case MessageTypeSubscribeNotifications:
		return handler.handleSubscribeNotifications(client, msg)

	case MessageTypePlaceBid:
		return handler.handlePlaceBid(client, msg)

	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func (handler *WsHandler) handleSubscribeBids(client *WsClient, msg *ClientMessage) error {
	auctionID := *msg.AuctionID
	if client.hasAuction(auctionID) {
		return client.Send(NewAckMessage(msg, map[string]string{"status": "already_subscribed"}))
	}

	bids, err := handler.feedService.SubscribeBids(client.ctx, auctionID, func(b *bid.Bid) {
		out := NewServerMessage(MessageTypeBidPlaced, b)
		out.AuctionID = &b.ItemID
		handler.deliver(client, out)
	})
	if err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("auction_id", auctionID.String()).Msg("Failed to subscribe to bids")
		return err
	}

	state, err := handler.feedService.SubscribeAuction(client.ctx, auctionID, func(result *shared.CompletionResult) {
		out := NewServerMessage(MessageTypeAuctionCompleted, result)
		out.AuctionID = &result.AuctionID
		handler.deliver(client, out)
	})
	if err != nil {
		bids.Close()
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("auction_id", auctionID.String()).Msg("Failed to subscribe to auction state")
		return err
	}

	subs := auctionSubscriptions{bids: bids, state: state}
	if !client.addAuction(auctionID, subs) {
		// lost a race with a concurrent subscribe or disconnect
		subs.close()
	}

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", auctionID.String()).Msg("Client subscribed to auction bids")
	return client.Send(NewAckMessage(msg, map[string]string{"status": "subscribed"}))
}

func (handler *WsHandler) handleUnsubscribeBids(client *WsClient, msg *ClientMessage) error {
	status := "not_subscribed"
	if client.removeAuction(*msg.AuctionID) {
		status = "unsubscribed"
	}

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client unsubscribed from auction bids")
	return client.Send(NewAckMessage(msg, map[string]string{"status": status}))
}

func (handler *WsHandler) handleSubscribeNotifications(client *WsClient, msg *ClientMessage) error {
	sub, err := handler.feedService.SubscribeNotifications(client.ctx, client.user.ID, func(n *notification.Notification) {
		handler.deliver(client, NewServerMessage(MessageTypeNotification, n))
	})
	if err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to subscribe to notifications")
		return err
	}

	if !client.setNotifications(sub) {
		sub.Close()
		return client.Send(NewAckMessage(msg, map[string]string{"status": "already_subscribed"}))
	}
	return client.Send(NewAckMessage(msg, map[string]string{"status": "subscribed"}))
}

// handlePlaceBid places the bid as the connected user; rejections are reported to the client, not treated as failures
func (handler *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount, ok := msg.Amount()
	if !ok {
		errorMsg := NewErrorMessage(shared.ErrInvalidAmount.Error(), msg.AuctionID)
		errorMsg.RequestID = msg.RequestID
		return client.Send(errorMsg)
	}

	// the row is marked seen before it exists so the feed never echoes it back
	bidID := uuid.New()
	client.markBidSeen(*msg.AuctionID, bidID)

	placed, err := handler.bidService.PlaceBid(client.ctx, inbound.PlaceBidRequest{
		BidID:     bidID,
		AuctionID: *msg.AuctionID,
		Amount:    amount,
	})
	if err != nil {
		if !shared.IsBidRejection(err) && !errors.Is(err, shared.ErrAuctionNotFound) {
			handler.logger.Error().Err(err).Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Failed to place bid")
		}
		errorMsg := NewErrorMessage(err.Error(), msg.AuctionID)
		errorMsg.RequestID = msg.RequestID
		return client.Send(errorMsg)
	}

	handler.logger.Info().Str("bid_id", placed.ID.String()).Str("auction_id", msg.AuctionID.String()).Str("user_id", client.user.ID.String()).Float64("amount", amount).Msg("Bid placed successfully")
	return client.Send(NewAckMessage(msg, placed))
}

func (handler *WsHandler) deliver(client *WsClient, msg *ServerMessage) {
	if err := client.Send(msg); err != nil {
		handler.logger.Warn().Err(err).Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Failed to send event to WebSocket client")
	}
}

// NewUpgrader builds the upgrader for the configured buffer sizes
func NewUpgrader(readBufferSize, writeBufferSize int, checkOrigin func(r *http.Request) bool) websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
		CheckOrigin:     checkOrigin,
	}
}
