package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNotificationCount(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"notification_count","count":4}`))
	require.NoError(t, err)
	count, ok := ev.(NotificationCountEvent)
	require.True(t, ok)
	assert.Equal(t, 4, count.Count)
}

func TestDecodeNewNotification(t *testing.T) {
	raw := `{"type":"new_notification","id":"n1","title":"Post approved","message":"Your post went live","url":"/posts/9","is_read":false,"created_at":"2026-01-05T10:00:00Z"}`
	ev, err := DecodeEvent([]byte(raw))
	require.NoError(t, err)
	n, ok := ev.(NewNotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "n1", n.Notification.ID)
	assert.Equal(t, "Post approved", n.Notification.Title)
	assert.Equal(t, "/posts/9", n.Notification.URL)
	assert.False(t, n.Notification.IsRead)
}

func TestDecodeMessageReceived(t *testing.T) {
	raw := `{"type":"message_received","room_id":"r1","message":{"id":"m1","room_id":"r1","sender_id":"u2","sender_email":"jane.doe@x.com","content":"hello","created_at":"2026-01-05T10:00:00Z"}}`
	ev, err := DecodeEvent([]byte(raw))
	require.NoError(t, err)
	m, ok := ev.(MessageReceivedEvent)
	require.True(t, ok)
	assert.Equal(t, "r1", m.RoomID)
	assert.Equal(t, "m1", m.Message.ID)
	assert.Equal(t, "jane.doe@x.com", m.Message.SenderEmail)
}

func TestDecodeMessageReceivedRoomFromEnvelope(t *testing.T) {
	// Some frames carry room_id only at the top level.
	raw := `{"type":"message_received","room_id":"r7","message":{"id":"m2","sender_id":"u1","content":"hey"}}`
	ev, err := DecodeEvent([]byte(raw))
	require.NoError(t, err)
	m := ev.(MessageReceivedEvent)
	assert.Equal(t, "r7", m.RoomID)
	assert.Equal(t, "r7", m.Message.RoomID)
}

func TestDecodePresenceEventsUseHyphens(t *testing.T) {
	joined, err := DecodeEvent([]byte(`{"type":"user-joined","user":{"id":"u3","name":"Ana","email":"ana@x.com"}}`))
	require.NoError(t, err)
	j, ok := joined.(PresenceJoinedEvent)
	require.True(t, ok)
	assert.Equal(t, "u3", j.User.ID)

	left, err := DecodeEvent([]byte(`{"type":"user-left","userId":"u3"}`))
	require.NoError(t, err)
	l, ok := left.(PresenceLeftEvent)
	require.True(t, ok)
	assert.Equal(t, "u3", l.UserID)
}

func TestDecodePresenceLeftIDFromUserRecord(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"user-left","user":{"id":"u9"}}`))
	require.NoError(t, err)
	l := ev.(PresenceLeftEvent)
	assert.Equal(t, "u9", l.UserID)
}

func TestDecodeChatJoinUsesUnderscores(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"user_joined","user":{"id":"u4"}}`))
	require.NoError(t, err)
	_, ok := ev.(UserJoinedEvent)
	assert.True(t, ok)

	// The hyphenated spelling must not decode as the chat variant.
	ev, err = DecodeEvent([]byte(`{"type":"user-joined","user":{"id":"u4"}}`))
	require.NoError(t, err)
	_, ok = ev.(PresenceJoinedEvent)
	assert.True(t, ok)
}

func TestDecodeError(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"error","message":"boom"}`))
	require.NoError(t, err)
	e, ok := ev.(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "boom", e.Message)
}

func TestDecodeConnectionEstablished(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"connection_established"}`))
	require.NoError(t, err)
	_, ok := ev.(ConnectionEstablishedEvent)
	assert.True(t, ok)
}

func TestDecodeUnknownType(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"typing_indicator","user_id":"u1"}`))
	require.NoError(t, err)
	unk, ok := ev.(UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, "typing_indicator", unk.RawType)
	assert.JSONEq(t, `{"type":"typing_indicator","user_id":"u1"}`, string(unk.Raw))
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := DecodeEvent([]byte(`{nope`))
	assert.Error(t, err)
}

func TestNewSendMessage(t *testing.T) {
	frame := NewSendMessage("hi team")
	assert.Equal(t, "send_message", frame.Action)
	assert.Equal(t, "hi team", frame.Message)
}
