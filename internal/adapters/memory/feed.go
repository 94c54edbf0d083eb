package memory

import (
	"context"
	"sync"
	"time"

	"heelbid-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// Feed is an in-process implementation of outbound.Feed for single-instance deployments and tests
type Feed struct {
	subscribers map[outbound.Topic]map[string]chan outbound.Event // topic -> clientID -> channel
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewFeed creates an empty in-process feed
func NewFeed(logger zerolog.Logger) *Feed {
	return &Feed{
		subscribers: make(map[outbound.Topic]map[string]chan outbound.Event),
		logger:      logger.With().Str("component", "memory_feed").Logger(),
	}
}

// Subscribe registers eventChan for topic; subscribing twice is a no-op
func (f *Feed) Subscribe(ctx context.Context, topic outbound.Topic, clientID string, eventChan chan outbound.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribers[topic] == nil {
		f.subscribers[topic] = make(map[string]chan outbound.Event)
	}
	if _, exists := f.subscribers[topic][clientID]; exists {
		return nil
	}
	f.subscribers[topic][clientID] = eventChan
	return nil
}

// Unsubscribe removes the client from topic and closes its channel
func (f *Feed) Unsubscribe(ctx context.Context, topic outbound.Topic, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	clients, ok := f.subscribers[topic]
	if !ok {
		return nil
	}
	if eventChan, exists := clients[clientID]; exists {
		close(eventChan)
		delete(clients, clientID)
	}
	if len(clients) == 0 {
		delete(f.subscribers, topic)
	}
	return nil
}

// Publish delivers event to every subscriber of topic without blocking
func (f *Feed) Publish(ctx context.Context, topic outbound.Topic, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	event.Topic = topic

	f.mu.RLock()
	defer f.mu.RUnlock()

	for clientID, eventChan := range f.subscribers[topic] {
		select {
		case eventChan <- event:
		default:
			f.logger.Warn().Str("client_id", clientID).Str("topic", string(topic)).Msg("Subscriber channel full, dropping event")
		}
	}
	return nil
}
