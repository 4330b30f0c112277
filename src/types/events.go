package types

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates inbound frames. Chat and notification sockets use
// underscore names; presence sockets use hyphenated names. Both conventions
// are kept as the servers send them.
type EventType string

const (
	EventNotificationCount     EventType = "notification_count"
	EventNewNotification       EventType = "new_notification"
	EventMessageReceived       EventType = "message_received"
	EventUserJoined            EventType = "user_joined"
	EventUserLeft              EventType = "user_left"
	EventPresenceJoined        EventType = "user-joined"
	EventPresenceLeft          EventType = "user-left"
	EventConnectionEstablished EventType = "connection_established"
	EventError                 EventType = "error"
)

// Event is one decoded inbound frame. Events are transient: consumed once by
// a dispatcher, never persisted.
type Event interface {
	Type() EventType
}

// NotificationCountEvent is a count-only unread signal; it carries no records.
type NotificationCountEvent struct {
	Count int
}

func (NotificationCountEvent) Type() EventType { return EventNotificationCount }

// NewNotificationEvent delivers a full notification record.
type NewNotificationEvent struct {
	Notification Notification
}

func (NewNotificationEvent) Type() EventType { return EventNewNotification }

// MessageReceivedEvent delivers a chat message for a room.
type MessageReceivedEvent struct {
	RoomID  string
	Message Message
}

func (MessageReceivedEvent) Type() EventType { return EventMessageReceived }

// UserJoinedEvent is the chat-subsystem join signal. Reserved for future
// presence-in-chat features.
type UserJoinedEvent struct {
	User UserProfile
}

func (UserJoinedEvent) Type() EventType { return EventUserJoined }

// UserLeftEvent is the chat-subsystem leave signal.
type UserLeftEvent struct {
	User UserProfile
}

func (UserLeftEvent) Type() EventType { return EventUserLeft }

// PresenceJoinedEvent adds a user to the presence set.
type PresenceJoinedEvent struct {
	User PresenceUser
}

func (PresenceJoinedEvent) Type() EventType { return EventPresenceJoined }

// PresenceLeftEvent removes a user from the presence set. Some servers send
// only the id, others the full user record; UserID always carries the id.
type PresenceLeftEvent struct {
	UserID string
	User   PresenceUser
}

func (PresenceLeftEvent) Type() EventType { return EventPresenceLeft }

// ConnectionEstablishedEvent is the server's subscription acknowledgement.
type ConnectionEstablishedEvent struct{}

func (ConnectionEstablishedEvent) Type() EventType { return EventConnectionEstablished }

// ErrorEvent is a server-side error report. It never tears down the socket.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) Type() EventType { return EventError }

// UnknownEvent carries a frame whose type has no decoder yet. Dispatchers log
// these loudly so new server message types surface during development instead
// of being silently dropped.
type UnknownEvent struct {
	RawType string
	Raw     json.RawMessage
}

func (UnknownEvent) Type() EventType { return EventType("") }

// envelope is the superset of fields any inbound frame can carry.
type envelope struct {
	Type    string          `json:"type"`
	Count   int             `json:"count"`
	Message json.RawMessage `json:"message"`
	RoomID  string          `json:"room_id"`
	User    json.RawMessage `json:"user"`
	UserID  string          `json:"userId"`
}

// DecodeEvent parses a raw frame into its typed event. A JSON parse failure
// is returned as an error; an unrecognized type decodes to UnknownEvent.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("types.DecodeEvent: %w", err)
	}

	switch EventType(env.Type) {
	case EventNotificationCount:
		return NotificationCountEvent{Count: env.Count}, nil

	case EventNewNotification:
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("types.DecodeEvent: notification: %w", err)
		}
		return NewNotificationEvent{Notification: n}, nil

	case EventMessageReceived:
		var m Message
		if len(env.Message) > 0 {
			if err := json.Unmarshal(env.Message, &m); err != nil {
				return nil, fmt.Errorf("types.DecodeEvent: message: %w", err)
			}
		}
		if m.RoomID == "" {
			m.RoomID = env.RoomID
		}
		return MessageReceivedEvent{RoomID: m.RoomID, Message: m}, nil

	case EventUserJoined:
		u, err := decodeProfile(env.User)
		if err != nil {
			return nil, err
		}
		return UserJoinedEvent{User: u}, nil

	case EventUserLeft:
		u, err := decodeProfile(env.User)
		if err != nil {
			return nil, err
		}
		return UserLeftEvent{User: u}, nil

	case EventPresenceJoined:
		var u PresenceUser
		if len(env.User) > 0 {
			if err := json.Unmarshal(env.User, &u); err != nil {
				return nil, fmt.Errorf("types.DecodeEvent: presence user: %w", err)
			}
		}
		return PresenceJoinedEvent{User: u}, nil

	case EventPresenceLeft:
		var u PresenceUser
		if len(env.User) > 0 {
			if err := json.Unmarshal(env.User, &u); err != nil {
				return nil, fmt.Errorf("types.DecodeEvent: presence user: %w", err)
			}
		}
		id := env.UserID
		if id == "" {
			id = u.ID
		}
		return PresenceLeftEvent{UserID: id, User: u}, nil

	case EventConnectionEstablished:
		return ConnectionEstablishedEvent{}, nil

	case EventError:
		var e struct {
			Message string `json:"message"`
		}
		// Best effort: the message field may be absent.
		_ = json.Unmarshal(data, &e)
		return ErrorEvent{Message: e.Message}, nil

	default:
		return UnknownEvent{RawType: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func decodeProfile(raw json.RawMessage) (UserProfile, error) {
	var u UserProfile
	if len(raw) == 0 {
		return u, nil
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return u, fmt.Errorf("types.DecodeEvent: user: %w", err)
	}
	return u, nil
}
