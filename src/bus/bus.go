// Package bus is the page-wide event channel: an in-process publish/subscribe
// mechanism letting components without a direct WebSocket subscription react
// to events another component received.
package bus

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/src/types"
)

// Topic names an event channel. Payload types are fixed per topic.
type Topic string

const (
	// TopicChatMessage carries a types.Message. Re-emitted by the chat
	// dispatcher for every received message so room-list badges elsewhere can
	// update without a second socket. Listeners must deduplicate by message id.
	TopicChatMessage Topic = "chat:message"

	// TopicUserDataChanged carries a types.UserProfile after the
	// authenticated profile loads or changes.
	TopicUserDataChanged Topic = "user:data-changed"

	// TopicProfileUpdated carries a types.UserProfile after a profile edit.
	TopicProfileUpdated Topic = "user:profile-updated"
)

// Handler receives a topic payload. Fire-and-forget; no acknowledgement.
type Handler func(payload any)

// Relay publishes bus events to other dashboard instances.
type Relay interface {
	Publish(topic Topic, payload any) error
	Available() bool
}

// Bus fans events out to subscribers, synchronously and in subscription
// order. When a relay is attached, Publish also forwards to other instances.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[int]Handler
	order  map[Topic][]int
	nextID int
	relay  Relay
	logger zerolog.Logger
}

// New creates an empty bus.
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[Topic]map[int]Handler),
		order:  make(map[Topic][]int),
		logger: logger.With().Str("component", "bus").Logger(),
	}
}

// SetRelay attaches a cross-instance relay.
func (b *Bus) SetRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
}

// Subscription is a handle for cancelling a subscriber.
type Subscription struct {
	bus   *Bus
	topic Topic
	id    int
}

// Cancel removes the subscriber. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if set, ok := s.bus.subs[s.topic]; ok {
		delete(set, s.id)
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.nextID++
	b.subs[topic][b.nextID] = h
	b.order[topic] = append(b.order[topic], b.nextID)
	return &Subscription{bus: b, topic: topic, id: b.nextID}
}

// Publish delivers the payload to local subscribers and forwards it to other
// instances when a relay is attached.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()

	if relay != nil && relay.Available() {
		if err := relay.Publish(topic, payload); err != nil {
			b.logger.Error().Err(err).Str("topic", string(topic)).Msg("relay publish failed")
		}
	}
	b.PublishLocal(topic, payload)
}

// PublishLocal delivers only to local subscribers. The relay calls this for
// messages arriving from other instances, preventing re-publish loops.
func (b *Bus) PublishLocal(topic Topic, payload any) {
	b.mu.RLock()
	set := b.subs[topic]
	ids := b.order[topic]
	handlers := make([]Handler, 0, len(set))
	for _, id := range ids {
		if h, ok := set[id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}

// SubscribeChatMessages registers a chat-message handler with the payload
// already asserted. Payloads of the wrong type are dropped with a warning.
func SubscribeChatMessages(b *Bus, h func(types.Message)) *Subscription {
	return b.Subscribe(TopicChatMessage, func(p any) {
		m, ok := p.(types.Message)
		if !ok {
			b.logger.Warn().Str("topic", string(TopicChatMessage)).Msg("unexpected payload type")
			return
		}
		h(m)
	})
}

// SubscribeUserData registers a profile handler for TopicUserDataChanged.
func SubscribeUserData(b *Bus, h func(types.UserProfile)) *Subscription {
	return b.Subscribe(TopicUserDataChanged, func(p any) {
		u, ok := p.(types.UserProfile)
		if !ok {
			b.logger.Warn().Str("topic", string(TopicUserDataChanged)).Msg("unexpected payload type")
			return
		}
		h(u)
	})
}
