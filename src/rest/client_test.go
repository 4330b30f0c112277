package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/schedulr/realtime/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenFunc func(ctx context.Context) (string, error)

func (f tokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

func fixedToken(tok string) types.TokenSource {
	return tokenFunc(func(context.Context) (string, error) { return tok, nil })
}

func TestNotifications(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notifications/" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "not authenticated"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode([]types.Notification{ //nolint:errcheck
			{ID: "n1", Title: "Approved", IsRead: false},
			{ID: "n2", Title: "Rejected", IsRead: true},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, fixedToken("test-token"))
	list, err := c.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n1", list[0].ID)
	assert.True(t, list[1].IsRead)
}

func TestNotificationsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "not authenticated"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, fixedToken("bad"))
	_, err := c.Notifications(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestMarkNotificationRead(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, fixedToken("tok"))
	require.NoError(t, c.MarkNotificationRead(context.Background(), "n1"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/notifications/n1/read/", gotPath)
}

func TestCreateChatRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, types.RoomDirect, req.Type)

		json.NewEncoder(w).Encode(types.ChatRoom{ //nolint:errcheck
			ID:        "r1",
			Type:      req.Type,
			MemberIDs: req.MemberIDs,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, fixedToken("tok"))
	room, err := c.CreateChatRoom(context.Background(), CreateRoomRequest{
		Type:      types.RoomDirect,
		MemberIDs: []string{"u1", "u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", room.ID)
	assert.Equal(t, []string{"u1", "u2"}, room.MemberIDs)
}

func TestRoomMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/rooms/r9/messages/", r.URL.Path)
		json.NewEncoder(w).Encode([]types.Message{{ID: "m1", RoomID: "r9"}}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, fixedToken("tok"))
	msgs, err := c.RoomMessages(context.Background(), "r9")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestNoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]types.Notification{}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, fixedToken(""))
	_, err := c.Notifications(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/me/", r.URL.Path)
		json.NewEncoder(w).Encode(types.UserProfile{ID: "u1", Email: "me@x.com"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, fixedToken("tok"))
	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)
}
