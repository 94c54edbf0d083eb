package outbound

//go:generate mockgen -source=broadcaster.go -destination=mock/broadcaster.go -package=mock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeBidPlaced        EventType = "bid.placed"
	EventTypeNotification     EventType = "notification.created"
	EventTypeAuctionCompleted EventType = "auction.completed"
)

// Topic names a stream of change events
type Topic string

// BidTopic carries new bid rows for one auction item
func BidTopic(itemID uuid.UUID) Topic {
	return Topic(fmt.Sprintf("auction:%s:bids", itemID))
}

// AuctionTopic carries lifecycle changes for one auction item
func AuctionTopic(itemID uuid.UUID) Topic {
	return Topic(fmt.Sprintf("auction:%s:state", itemID))
}

// NotificationTopic carries new notification rows for one user
func NotificationTopic(userID uuid.UUID) Topic {
	return Topic(fmt.Sprintf("user:%s:notifications", userID))
}

// Event represents a broadcast change event; RowID identifies the row carried in Payload
type Event struct {
	Type      EventType       `json:"type"`
	Topic     Topic           `json:"topic"`
	RowID     uuid.UUID       `json:"row_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// NewEvent encodes row as the payload of a new event
func NewEvent(eventType EventType, topic Topic, rowID uuid.UUID, row interface{}) (Event, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		Type:      eventType,
		Topic:     topic,
		RowID:     rowID,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}, nil
}

// Decode unmarshals the event payload into dst
func (e Event) Decode(dst interface{}) error {
	return json.Unmarshal(e.Payload, dst)
}

// Feed defines the change-feed used to push new rows to subscribers
type Feed interface {
	// Subscribe delivers events published on topic to eventChan until Unsubscribe
	Subscribe(ctx context.Context, topic Topic, clientID string, eventChan chan Event) error

	// Unsubscribe releases the client's subscription to topic
	Unsubscribe(ctx context.Context, topic Topic, clientID string) error

	// Publish publishes an event to all subscribers of topic
	Publish(ctx context.Context, topic Topic, event Event) error
}
