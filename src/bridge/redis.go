package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/src/bus"
	"github.com/schedulr/realtime/src/types"
)

// RedisConfig holds connection settings for the Redis pub/sub bridge.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // channel prefix, e.g. "schedulr:rt:"
}

// redisEnvelope wraps a bus event with the originating instance ID so that a
// node can skip its own published events.
type redisEnvelope struct {
	InstanceID string          `json:"instance_id"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
}

// RedisBridge relays bus events between dashboard instances via Redis pub/sub.
type RedisBridge struct {
	client     *redis.Client
	prefix     string
	instanceID string
	local      LocalPublisher
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisBridge creates a bridge that uses Redis pub/sub for cross-instance
// event relay.
func NewRedisBridge(cfg RedisConfig, local LocalPublisher, logger zerolog.Logger) *RedisBridge {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     client,
		prefix:     cfg.Prefix,
		instanceID: uuid.New().String(),
		local:      local,
		logger:     logger.With().Str("component", "redis-bridge").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the Redis event channel and begins relaying.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	channel := b.prefix + "events"
	sub := b.client.Subscribe(b.ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(b.ctx); err != nil {
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	b.logger.Info().
		Str("instance_id", b.instanceID).
		Str("channel", channel).
		Msg("redis bridge started")
	return nil
}

// Publish sends a bus event to all other instances via Redis.
func (b *RedisBridge) Publish(topic bus.Topic, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := redisEnvelope{
		InstanceID: b.instanceID,
		Topic:      string(topic),
		Payload:    data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(b.ctx, b.prefix+"events", raw).Err()
}

// Stop unsubscribes and closes the Redis connection.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the bridge is connected.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// listen reads events from the Redis subscription and forwards to the bus.
func (b *RedisBridge) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handleRedisMessage(msg)
		case <-b.ctx.Done():
			return
		}
	}
}

// handleRedisMessage decodes an envelope and forwards non-self events to the
// local bus with the payload restored to its topic's Go type.
func (b *RedisBridge) handleRedisMessage(msg *redis.Message) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.logger.Error().Err(err).Msg("failed to decode redis message")
		return
	}

	// Skip events that originated from this instance.
	if env.InstanceID == b.instanceID {
		return
	}

	payload, err := decodePayload(bus.Topic(env.Topic), env.Payload)
	if err != nil {
		b.logger.Error().Err(err).Str("topic", env.Topic).Msg("failed to decode relayed payload")
		return
	}

	b.logger.Debug().
		Str("from_instance", env.InstanceID).
		Str("topic", env.Topic).
		Msg("relaying event from redis")

	b.local.PublishLocal(bus.Topic(env.Topic), payload)
}

// decodePayload restores a relayed payload to the Go type its topic carries.
func decodePayload(topic bus.Topic, raw json.RawMessage) (any, error) {
	switch topic {
	case bus.TopicChatMessage:
		var m types.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case bus.TopicUserDataChanged, bus.TopicProfileUpdated:
		var u types.UserProfile
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		return u, nil
	default:
		return raw, nil
	}
}
