package bridge

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/src/bus"
	"github.com/schedulr/realtime/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisMessage(payload string) *redis.Message {
	return &redis.Message{Payload: payload}
}

// mockLocal records events forwarded from the bridge.
type mockLocal struct {
	topics   []bus.Topic
	payloads []any
}

func (m *mockLocal) PublishLocal(topic bus.Topic, payload any) {
	m.topics = append(m.topics, topic)
	m.payloads = append(m.payloads, payload)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestRedisEnvelopeRoundTrip(t *testing.T) {
	msg := types.Message{
		ID:       "m1",
		RoomID:   "r1",
		SenderID: "u2",
		Content:  "hello",
	}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	env := redisEnvelope{
		InstanceID: "node-1",
		Topic:      string(bus.TopicChatMessage),
		Payload:    payload,
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var out redisEnvelope
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "node-1", out.InstanceID)
	assert.Equal(t, string(bus.TopicChatMessage), out.Topic)

	decoded, err := decodePayload(bus.Topic(out.Topic), out.Payload)
	require.NoError(t, err)
	restored, ok := decoded.(types.Message)
	require.True(t, ok)
	assert.Equal(t, msg, restored)
}

func TestDecodePayloadProfileTopics(t *testing.T) {
	raw, err := json.Marshal(types.UserProfile{ID: "u1", Email: "u1@x.com"})
	require.NoError(t, err)

	decoded, err := decodePayload(bus.TopicUserDataChanged, raw)
	require.NoError(t, err)
	profile, ok := decoded.(types.UserProfile)
	require.True(t, ok)
	assert.Equal(t, "u1", profile.ID)
}

func TestDecodePayloadUnknownTopicPassesRaw(t *testing.T) {
	raw := json.RawMessage(`{"anything":true}`)
	decoded, err := decodePayload(bus.Topic("custom:topic"), raw)
	require.NoError(t, err)
	assert.Equal(t, any(raw), decoded)
}

func testRedisConfig() RedisConfig {
	return RedisConfig{Addr: "localhost:6379", Prefix: "test:rt:"}
}

func TestRedisBridgeAvailableFalseBeforeStart(t *testing.T) {
	local := &mockLocal{}
	rb := NewRedisBridge(testRedisConfig(), local, testLogger())
	assert.False(t, rb.Available())
}

func TestRedisBridgeInstanceIDUnique(t *testing.T) {
	local := &mockLocal{}
	b1 := NewRedisBridge(testRedisConfig(), local, testLogger())
	b2 := NewRedisBridge(testRedisConfig(), local, testLogger())
	assert.NotEqual(t, b1.instanceID, b2.instanceID)
}

func TestHandleRedisMessageSkipsSelf(t *testing.T) {
	local := &mockLocal{}
	rb := NewRedisBridge(testRedisConfig(), local, testLogger())

	payload, _ := json.Marshal(types.Message{ID: "m1"})
	env := redisEnvelope{InstanceID: rb.instanceID, Topic: string(bus.TopicChatMessage), Payload: payload}
	data, _ := json.Marshal(env)

	rb.handleRedisMessage(redisMessage(string(data)))
	assert.Empty(t, local.topics)
}

func TestHandleRedisMessageForwardsOthers(t *testing.T) {
	local := &mockLocal{}
	rb := NewRedisBridge(testRedisConfig(), local, testLogger())

	payload, _ := json.Marshal(types.Message{ID: "m1", RoomID: "r1"})
	env := redisEnvelope{InstanceID: "someone-else", Topic: string(bus.TopicChatMessage), Payload: payload}
	data, _ := json.Marshal(env)

	rb.handleRedisMessage(redisMessage(string(data)))
	require.Len(t, local.topics, 1)
	assert.Equal(t, bus.TopicChatMessage, local.topics[0])
	msg, ok := local.payloads[0].(types.Message)
	require.True(t, ok)
	assert.Equal(t, "m1", msg.ID)
}
