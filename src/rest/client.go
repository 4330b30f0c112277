// Package rest wraps the dashboard's REST collaborators. The realtime core
// only consumes these endpoints; their implementations live server-side.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/schedulr/realtime/src/types"
)

// Client is the dashboard API client.
type Client struct {
	baseURL    string
	tokens     types.TokenSource
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string, tokens types.TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*types.UserProfile, error) {
	var u types.UserProfile
	if err := c.get(ctx, "/api/me/", &u); err != nil {
		return nil, fmt.Errorf("rest.Me: %w", err)
	}
	return &u, nil
}

// Notifications fetches the authoritative notification list.
func (c *Client) Notifications(ctx context.Context) ([]types.Notification, error) {
	var list []types.Notification
	if err := c.get(ctx, "/api/notifications/", &list); err != nil {
		return nil, fmt.Errorf("rest.Notifications: %w", err)
	}
	return list, nil
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read/", nil, nil); err != nil {
		return fmt.Errorf("rest.MarkNotificationRead: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/notifications/read-all/", nil, nil); err != nil {
		return fmt.Errorf("rest.MarkAllNotificationsRead: %w", err)
	}
	return nil
}

// DeleteNotification deletes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id)+"/", nil, nil); err != nil {
		return fmt.Errorf("rest.DeleteNotification: %w", err)
	}
	return nil
}

// ChatRooms fetches the user's chat rooms.
func (c *Client) ChatRooms(ctx context.Context) ([]types.ChatRoom, error) {
	var rooms []types.ChatRoom
	if err := c.get(ctx, "/api/chat/rooms/", &rooms); err != nil {
		return nil, fmt.Errorf("rest.ChatRooms: %w", err)
	}
	return rooms, nil
}

// RoomMessages fetches a room's message history.
func (c *Client) RoomMessages(ctx context.Context, roomID string) ([]types.Message, error) {
	var msgs []types.Message
	if err := c.get(ctx, "/api/chat/rooms/"+url.PathEscape(roomID)+"/messages/", &msgs); err != nil {
		return nil, fmt.Errorf("rest.RoomMessages: %w", err)
	}
	return msgs, nil
}

// CreateRoomRequest is the payload for creating a chat room.
type CreateRoomRequest struct {
	Type      types.RoomType `json:"type"`
	Name      string         `json:"name,omitempty"`
	MemberIDs []string       `json:"member_ids"`
}

// CreateChatRoom creates a team or direct room.
func (c *Client) CreateChatRoom(ctx context.Context, req CreateRoomRequest) (*types.ChatRoom, error) {
	var room types.ChatRoom
	if err := c.post(ctx, "/api/chat/rooms/", req, &room); err != nil {
		return nil, fmt.Errorf("rest.CreateChatRoom: %w", err)
	}
	return &room, nil
}

// UpdateRoomRequest is the payload for renaming or re-membering a team room.
type UpdateRoomRequest struct {
	Name      string   `json:"name,omitempty"`
	MemberIDs []string `json:"member_ids,omitempty"`
}

// UpdateChatRoom updates a room.
func (c *Client) UpdateChatRoom(ctx context.Context, id string, req UpdateRoomRequest) (*types.ChatRoom, error) {
	var room types.ChatRoom
	if err := c.doRequest(ctx, http.MethodPatch, "/api/chat/rooms/"+url.PathEscape(id)+"/", req, &room); err != nil {
		return nil, fmt.Errorf("rest.UpdateChatRoom: %w", err)
	}
	return &room, nil
}

// DeleteChatRoom deletes a room.
func (c *Client) DeleteChatRoom(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/api/chat/rooms/"+url.PathEscape(id)+"/", nil, nil); err != nil {
		return fmt.Errorf("rest.DeleteChatRoom: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readErrorMessage(resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return string(data)
}
