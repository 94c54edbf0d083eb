package ws

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribeBids          MessageType = "subscribe_bids"
	MessageTypeUnsubscribeBids        MessageType = "unsubscribe_bids"
	MessageTypeSubscribeNotifications MessageType = "subscribe_notifications"
	MessageTypePlaceBid               MessageType = "place_bid"
	MessageTypePing                   MessageType = "ping"

	// Server to Client message types
	MessageTypeBidPlaced        MessageType = "bid_placed"
	MessageTypeNotification     MessageType = "notification"
	MessageTypeAuctionCompleted MessageType = "auction_completed"
	MessageTypeAck              MessageType = "ack"
	MessageTypeError            MessageType = "error"
	MessageTypePong             MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	AuctionID *uuid.UUID  `json:"auction_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *string     `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func NewServerMessage(msgType MessageType, data interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, auctionID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewAckMessage acknowledges a client request, echoing its request id
func NewAckMessage(msg *ClientMessage, data interface{}) *ServerMessage {
	ack := NewServerMessage(MessageTypeAck, data)
	ack.RequestID = msg.RequestID
	ack.AuctionID = msg.AuctionID
	return ack
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// Amount returns data.amount of a place_bid message
func (m *ClientMessage) Amount() (float64, bool) {
	amount, ok := m.Data["amount"].(float64)
	return amount, ok
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribeBids, MessageTypeUnsubscribeBids:
		return m.validateAuctionID()
	case MessageTypePlaceBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		amount, ok := m.Amount()
		if !ok || amount <= 0 || math.IsInf(amount, 0) {
			return shared.ErrInvalidAmount
		}
	case MessageTypeSubscribeNotifications, MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}
