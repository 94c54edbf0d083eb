package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"heelbid-auction-service/internal/ports/outbound"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster implements outbound.Feed using Redis pub/sub so every instance sees every row
type RedisBroadcaster struct {
	client       *redis.Client
	subscribers  map[string]chan outbound.Event     // clientID -> local channel
	pubsubs      map[string]*redis.PubSub           // clientID -> pubsub instance
	clientTopics map[string]map[outbound.Topic]bool // clientID -> topic -> subscribed
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	logger       zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:       params.RedisClient,
		subscribers:  make(map[string]chan outbound.Event),
		pubsubs:      make(map[string]*redis.PubSub),
		clientTopics: make(map[string]map[outbound.Topic]bool),
		ctx:          ctx,
		cancel:       cancel,
		logger:       params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// Subscribe subscribes a client to a topic
func (r *RedisBroadcaster) Subscribe(ctx context.Context, topic outbound.Topic, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clientTopics[clientID][topic] {
		r.logger.Debug().Str("client_id", clientID).Str("topic", string(topic)).Msg("Client already subscribed to topic")
		return nil
	}

	if r.subscribers[clientID] == nil {
		r.subscribers[clientID] = eventChan
	}

	// One pubsub connection per client, extra topics share it
	pubsub, exists := r.pubsubs[clientID]
	if !exists {
		pubsub = r.client.Subscribe(ctx)
		r.pubsubs[clientID] = pubsub
		go r.listenForRedisMessages(pubsub, clientID, r.subscribers[clientID])
	}

	if err := pubsub.Subscribe(ctx, string(topic)); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Str("topic", string(topic)).Msg("Failed to subscribe to Redis channel")
		if !exists {
			_ = pubsub.Close()
			delete(r.pubsubs, clientID)
			delete(r.subscribers, clientID)
		}
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	if r.clientTopics[clientID] == nil {
		r.clientTopics[clientID] = make(map[outbound.Topic]bool)
	}
	r.clientTopics[clientID][topic] = true

	r.logger.Debug().Str("client_id", clientID).Str("topic", string(topic)).Msg("Client subscribed to topic via Redis")
	return nil
}

// Unsubscribe unsubscribes a client from a topic; the last topic releases the client's connection and channel
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, topic outbound.Topic, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics, exists := r.clientTopics[clientID]
	if !exists || !topics[topic] {
		return nil
	}
	delete(topics, topic)

	if len(topics) > 0 {
		if pubsub, ok := r.pubsubs[clientID]; ok {
			if err := pubsub.Unsubscribe(ctx, string(topic)); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Str("topic", string(topic)).Msg("Error unsubscribing from Redis channel")
			}
		}
		return nil
	}

	delete(r.clientTopics, clientID)
	r.releaseLocked(clientID)

	r.logger.Debug().Str("client_id", clientID).Str("topic", string(topic)).Msg("Client unsubscribed from topic")
	return nil
}

// Publish publishes an event to all subscribers of a topic via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, topic outbound.Topic, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	event.Topic = topic

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, string(topic), eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Str("topic", string(topic)).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("topic", string(topic)).
		Str("row_id", event.RowID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event")

	return nil
}

// IsSubscribed reports whether clientID currently listens on topic
func (r *RedisBroadcaster) IsSubscribed(topic outbound.Topic, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clientTopics[clientID][topic]
}

// listenForRedisMessages forwards Redis messages to the client's local channel
func (r *RedisBroadcaster) listenForRedisMessages(pubsub *redis.PubSub, clientID string, localChan chan outbound.Event) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Redis message listener panic for client")
		}
	}()

	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message for client")
				continue
			}

			r.mu.RLock()
			if r.subscribers[clientID] == localChan {
				select {
				case localChan <- event:
				default:
					r.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
				}
			}
			r.mu.RUnlock()

		case <-r.ctx.Done():
			return
		}
	}
}

// releaseLocked closes the client's channel and pubsub; callers hold r.mu
func (r *RedisBroadcaster) releaseLocked(clientID string) {
	if eventChan, exists := r.subscribers[clientID]; exists {
		close(eventChan)
		delete(r.subscribers, clientID)
	}
	if pubsub, exists := r.pubsubs[clientID]; exists {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.pubsubs, clientID)
	}
}

func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID := range r.subscribers {
		r.releaseLocked(clientID)
	}
	r.clientTopics = make(map[string]map[outbound.Topic]bool)

	return nil
}
