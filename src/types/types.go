package types

import (
	"context"
	"time"
)

// UserProfile is the authenticated dashboard user, or a resolved room member.
type UserProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Notification is a single dashboard notification.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomType distinguishes team rooms from direct (two-member) rooms.
type RoomType string

const (
	RoomTeam   RoomType = "team"
	RoomDirect RoomType = "direct"
)

// ChatRoom is a team or direct conversation.
// A direct room has exactly two members; team rooms have a name and
// at least one member besides the creator.
type ChatRoom struct {
	ID          string        `json:"id"`
	Type        RoomType      `json:"type"`
	Name        string        `json:"name,omitempty"`
	MemberIDs   []string      `json:"member_ids"`
	Members     []UserProfile `json:"members,omitempty"`
	LastMessage *Message      `json:"last_message,omitempty"`
	UnreadCount int           `json:"unread_count"`
	CreatedBy   string        `json:"created_by"`
}

// Message is a chat message. SenderName may be empty on the wire; display
// resolution falls back to the email local-part.
type Message struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name,omitempty"`
	SenderEmail string    `json:"sender_email,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// PresenceUser is a user currently viewing a realtime-enabled view.
// Ephemeral; exists only while the presence socket is open.
type PresenceUser struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// SendMessageAction is the outbound chat frame. The server persists the
// message and re-broadcasts it as a message_received event.
type SendMessageAction struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// NewSendMessage builds an outbound send_message frame.
func NewSendMessage(content string) SendMessageAction {
	return SendMessageAction{Action: "send_message", Message: content}
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens WebSocket connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// TokenSource supplies the bearer token carried on WebSocket URLs and REST
// calls. Returning an empty token with a nil error means "not authenticated
// yet": a transient precondition, not a failure.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
