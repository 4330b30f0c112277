// Package presence maintains the set of users currently viewing a
// realtime-enabled view, fed by join/leave push events. The set is ephemeral:
// it lives only while the presence socket is open.
package presence

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/src/types"
)

// Set is the presence set. Joins are idempotent, leaves remove by id, and the
// authenticated user is excluded from listings. Self-exclusion is applied at
// read time because the profile loads asynchronously and may resolve after
// presence events have already arrived.
type Set struct {
	logger zerolog.Logger

	mu     sync.Mutex
	users  map[string]types.PresenceUser
	selfID string
}

// New creates an empty presence set.
func New(logger zerolog.Logger) *Set {
	return &Set{
		logger: logger.With().Str("component", "presence").Logger(),
		users:  make(map[string]types.PresenceUser),
	}
}

// Apply dispatches one inbound event from the presence socket.
func (s *Set) Apply(ev types.Event) {
	switch e := ev.(type) {
	case types.PresenceJoinedEvent:
		s.join(e.User)

	case types.PresenceLeftEvent:
		s.leave(e.UserID)

	case types.ConnectionEstablishedEvent:
		s.logger.Debug().Msg("presence subscription established")

	case types.ErrorEvent:
		s.logger.Error().Str("message", e.Message).Msg("server error on presence socket")

	default:
		s.logger.Debug().Str("type", string(ev.Type())).Msg("event ignored")
	}
}

// join adds a user unless an entry with the same id already exists, so a
// duplicate join leaves the set unchanged.
func (s *Set) join(u types.PresenceUser) {
	if u.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return
	}
	s.users[u.ID] = u
}

// leave removes by id only; unknown ids are a no-op.
func (s *Set) leave(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// SetSelf records the authenticated user id for exclusion from listings.
func (s *Set) SetSelf(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = id
}

// List returns the present users, excluding self, sorted by name for stable
// rendering.
func (s *Set) List() []types.PresenceUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PresenceUser, 0, len(s.users))
	for id, u := range s.users {
		if s.selfID != "" && id == s.selfID {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the size of the rendered set (self excluded).
func (s *Set) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.users)
	if s.selfID != "" {
		if _, ok := s.users[s.selfID]; ok {
			n--
		}
	}
	return n
}

// Clear empties the set. Called when the presence socket is torn down.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]types.PresenceUser)
}
