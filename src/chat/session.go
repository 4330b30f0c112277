// Package chat is the chat subsystem: room list, visible message history for
// the open room, unread counters, and the bus side channel. Push delivery and
// bus delivery describe the same fact, so every update is deduplicated by
// message id and counted at most once.
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/src/bus"
	"github.com/schedulr/realtime/src/rest"
	"github.com/schedulr/realtime/src/types"
)

// API is the REST collaborator surface the session needs. *rest.Client
// satisfies it.
type API interface {
	ChatRooms(ctx context.Context) ([]types.ChatRoom, error)
	RoomMessages(ctx context.Context, roomID string) ([]types.Message, error)
	CreateChatRoom(ctx context.Context, req rest.CreateRoomRequest) (*types.ChatRoom, error)
	UpdateChatRoom(ctx context.Context, id string, req rest.UpdateRoomRequest) (*types.ChatRoom, error)
	DeleteChatRoom(ctx context.Context, id string) error
}

// FrameSender writes outbound frames to the chat socket. *conn.Manager
// satisfies it.
type FrameSender interface {
	Send(v any) error
}

// Session holds chat state for one user. It receives events from the direct
// socket subscription and from the chat:message bus topic; both paths funnel
// into the same idempotent apply step.
type Session struct {
	api    API
	bus    *bus.Bus
	logger zerolog.Logger

	mu       sync.Mutex
	selfID   string
	rooms    []types.ChatRoom
	active   string
	messages []types.Message
	sender   FrameSender
	// seen tracks message ids already counted per room, so a message heard on
	// both channels increments unread_count exactly once.
	seen map[string]map[string]bool
	sub  *bus.Subscription
}

// NewSession creates a session and subscribes it to the chat:message topic.
func NewSession(api API, b *bus.Bus, logger zerolog.Logger) *Session {
	s := &Session{
		api:    api,
		bus:    b,
		logger: logger.With().Str("component", "chat").Logger(),
		seen:   make(map[string]map[string]bool),
	}
	s.sub = bus.SubscribeChatMessages(b, func(m types.Message) {
		// Bus deliveries are never re-published; applyMessage dedupes against
		// the direct-socket path.
		s.applyMessage(m)
	})
	return s
}

// Close cancels the bus subscription.
func (s *Session) Close() {
	if s.sub != nil {
		s.sub.Cancel()
	}
}

// SetSender attaches the chat socket for outbound frames.
func (s *Session) SetSender(fs FrameSender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = fs
}

// SetSelf records the authenticated user id once the profile loads.
func (s *Session) SetSelf(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = id
}

// Apply dispatches one inbound event from the direct socket subscription.
func (s *Session) Apply(ev types.Event) {
	switch e := ev.(type) {
	case types.MessageReceivedEvent:
		m := e.Message
		m.SenderName = ResolveDisplayName(m.SenderName, m.SenderEmail)
		s.applyMessage(m)
		// Side channel: components without the socket react via the bus.
		s.bus.Publish(bus.TopicChatMessage, m)

	case types.UserJoinedEvent:
		// Reserved for presence-in-chat.
		s.logger.Debug().Str("user", e.User.ID).Msg("user joined")

	case types.UserLeftEvent:
		s.logger.Debug().Str("user", e.User.ID).Msg("user left")

	case types.ConnectionEstablishedEvent:
		s.logger.Debug().Msg("chat subscription established")

	case types.ErrorEvent:
		s.logger.Error().Str("message", e.Message).Msg("server error on chat socket")

	default:
		s.logger.Debug().Str("type", string(ev.Type())).Msg("event ignored")
	}
}

// applyMessage merges one message into local state. Idempotent: the visible
// list appends only absent ids, and the unread counter moves at most once per
// id regardless of how many channels delivered notice of it. last_message is
// always refreshed, open room or not.
func (s *Session) applyMessage(m types.Message) {
	m.SenderName = ResolveDisplayName(m.SenderName, m.SenderEmail)

	s.mu.Lock()
	defer s.mu.Unlock()

	counted := s.seen[m.RoomID][m.ID]
	if s.seen[m.RoomID] == nil {
		s.seen[m.RoomID] = make(map[string]bool)
	}
	s.seen[m.RoomID][m.ID] = true

	for i := range s.rooms {
		if s.rooms[i].ID != m.RoomID {
			continue
		}
		mc := m
		s.rooms[i].LastMessage = &mc
		if !counted && m.RoomID != s.active && m.SenderID != s.selfID {
			s.rooms[i].UnreadCount++
		}
		break
	}

	if m.RoomID == s.active {
		for _, existing := range s.messages {
			if existing.ID == m.ID {
				return
			}
		}
		s.messages = append(s.messages, m)
	}
}

// OpenRoom makes a room the active one, loads its authoritative history, and
// clears its unread counter. History replaces the visible list (last fetched
// wins); subsequent pushes append if absent.
func (s *Session) OpenRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	s.active = roomID
	for i := range s.rooms {
		if s.rooms[i].ID == roomID {
			s.rooms[i].UnreadCount = 0
			break
		}
	}
	s.mu.Unlock()

	history, err := s.api.RoomMessages(ctx, roomID)
	if err != nil {
		s.logger.Warn().Err(err).Str("room", roomID).Msg("history fetch failed")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != roomID {
		// The user moved on while the fetch was in flight; discard.
		return nil
	}
	for i := range history {
		history[i].SenderName = ResolveDisplayName(history[i].SenderName, history[i].SenderEmail)
		if s.seen[roomID] == nil {
			s.seen[roomID] = make(map[string]bool)
		}
		s.seen[roomID][history[i].ID] = true
	}
	s.messages = history
	return nil
}

// CloseRoom leaves the active room.
func (s *Session) CloseRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
	s.messages = nil
}

// SendMessage writes a send_message action frame. The server persists the
// message and re-broadcasts it as message_received; nothing is appended
// locally until that push arrives.
func (s *Session) SendMessage(content string) error {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()
	if sender == nil {
		return fmt.Errorf("chat.SendMessage: no socket attached")
	}
	return sender.Send(types.NewSendMessage(content))
}

// RefreshRooms replaces the room list with the server's version.
func (s *Session) RefreshRooms(ctx context.Context) error {
	rooms, err := s.api.ChatRooms(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("room refetch failed")
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append([]types.ChatRoom(nil), rooms...)
	return nil
}

// CreateRoom validates the room shape, creates it server-side, and refetches
// the room list. Direct rooms have exactly two members; team rooms need a
// name and at least one member.
func (s *Session) CreateRoom(ctx context.Context, req rest.CreateRoomRequest) (*types.ChatRoom, error) {
	switch req.Type {
	case types.RoomDirect:
		if len(req.MemberIDs) != 2 {
			return nil, fmt.Errorf("chat.CreateRoom: direct room needs exactly two members, got %d", len(req.MemberIDs))
		}
	case types.RoomTeam:
		if req.Name == "" {
			return nil, fmt.Errorf("chat.CreateRoom: team room needs a name")
		}
		if len(req.MemberIDs) == 0 {
			return nil, fmt.Errorf("chat.CreateRoom: team room needs at least one member")
		}
	default:
		return nil, fmt.Errorf("chat.CreateRoom: unknown room type %q", req.Type)
	}

	room, err := s.api.CreateChatRoom(ctx, req)
	if err != nil {
		return nil, err
	}
	_ = s.RefreshRooms(ctx)
	return room, nil
}

// UpdateRoom updates a room server-side and refetches the list.
func (s *Session) UpdateRoom(ctx context.Context, id string, req rest.UpdateRoomRequest) (*types.ChatRoom, error) {
	room, err := s.api.UpdateChatRoom(ctx, id, req)
	if err != nil {
		return nil, err
	}
	_ = s.RefreshRooms(ctx)
	return room, nil
}

// DeleteRoom deletes a room server-side and refetches the list.
func (s *Session) DeleteRoom(ctx context.Context, id string) error {
	if err := s.api.DeleteChatRoom(ctx, id); err != nil {
		return err
	}
	return s.RefreshRooms(ctx)
}

// Rooms returns a copy of the room list.
func (s *Session) Rooms() []types.ChatRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ChatRoom(nil), s.rooms...)
}

// Messages returns a copy of the open room's visible messages.
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.messages...)
}

// ActiveRoom returns the open room id, or empty.
func (s *Session) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
