// Package notify is the notification subsystem: it applies push events,
// performs optimistic mutations, and reconciles against REST refetches.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/src/types"
)

// API is the REST collaborator surface the center needs. *rest.Client
// satisfies it.
type API interface {
	Notifications(ctx context.Context) ([]types.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// ToastSink receives user-facing snackbar signals for new notifications.
type ToastSink interface {
	Toast(title, message string)
}

// LogToast logs toasts instead of rendering them.
type LogToast struct {
	Logger zerolog.Logger
}

func (t LogToast) Toast(title, message string) {
	t.Logger.Info().Str("title", title).Str("message", message).Msg("toast")
}

// Center holds the notification list and the unread indicator. The indicator
// is always recomputed from the list, never hand-toggled; the one exception
// is the count-only push signal, tracked separately until the next refetch.
// Push events and REST results may interleave in any order, so every update
// is an idempotent merge keyed by notification id.
type Center struct {
	api    API
	toasts ToastSink
	logger zerolog.Logger

	mu          sync.Mutex
	list        []types.Notification
	pendingRead map[string]bool
	countSignal bool
	panelOpen   bool
}

// New creates an empty center.
func New(api API, toasts ToastSink, logger zerolog.Logger) *Center {
	if toasts == nil {
		toasts = LogToast{Logger: logger}
	}
	return &Center{
		api:         api,
		toasts:      toasts,
		logger:      logger.With().Str("component", "notify").Logger(),
		pendingRead: make(map[string]bool),
	}
}

// Apply dispatches one inbound event.
func (c *Center) Apply(ev types.Event) {
	switch e := ev.(type) {
	case types.NotificationCountEvent:
		// Count-only signal: no record to append.
		if e.Count > 0 {
			c.mu.Lock()
			c.countSignal = true
			c.mu.Unlock()
		}

	case types.NewNotificationEvent:
		c.applyNew(e.Notification)

	case types.ConnectionEstablishedEvent:
		c.logger.Debug().Msg("notification subscription established")

	case types.ErrorEvent:
		// The server's text stays in the log; the user sees a generic signal.
		c.logger.Error().Str("message", e.Message).Msg("server error on notification socket")
		c.toasts.Toast("Error", "An error occurred")

	default:
		c.logger.Debug().Str("type", string(ev.Type())).Msg("event ignored")
	}
}

// applyNew prepends the notification unless the same id is already present
// (it may have arrived first via a REST refresh). A mark-as-read issued
// before the record was ever fetched is honored on arrival.
func (c *Center) applyNew(n types.Notification) {
	c.mu.Lock()
	for _, existing := range c.list {
		if existing.ID == n.ID {
			c.mu.Unlock()
			return
		}
	}
	if c.pendingRead[n.ID] {
		n.IsRead = true
		delete(c.pendingRead, n.ID)
	}
	c.list = append([]types.Notification{n}, c.list...)
	c.mu.Unlock()

	if !n.IsRead {
		c.toasts.Toast(n.Title, n.Message)
	}
}

// Refresh replaces local state with the server's list. Last fetched wins.
func (c *Center) Refresh(ctx context.Context) error {
	list, err := c.api.Notifications(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("notification refetch failed")
		return err
	}
	c.Reconcile(list)
	return nil
}

// Reconcile takes a server-fetched list as authoritative.
func (c *Center) Reconcile(list []types.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append([]types.Notification(nil), list...)
	c.countSignal = false
	for _, n := range c.list {
		delete(c.pendingRead, n.ID)
	}
}

// MarkRead optimistically marks one notification read, confirms it with the
// server, then refetches. A failed confirmation leaves the optimistic state
// in place; the user's action stays reflected.
func (c *Center) MarkRead(ctx context.Context, id string) {
	c.mu.Lock()
	found := false
	for i := range c.list {
		if c.list[i].ID == id {
			c.list[i].IsRead = true
			found = true
			break
		}
	}
	if !found {
		// The record may not have been fetched yet; remember the intent.
		c.pendingRead[id] = true
	}
	c.mu.Unlock()

	if err := c.api.MarkNotificationRead(ctx, id); err != nil {
		c.logger.Warn().Err(err).Str("id", id).Msg("mark read failed")
		return
	}
	_ = c.Refresh(ctx)
}

// MarkAllRead optimistically clears every unread flag, then confirms and
// refetches.
func (c *Center) MarkAllRead(ctx context.Context) {
	c.mu.Lock()
	for i := range c.list {
		c.list[i].IsRead = true
	}
	c.countSignal = false
	c.mu.Unlock()

	if err := c.api.MarkAllNotificationsRead(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("mark all read failed")
		return
	}
	_ = c.Refresh(ctx)
}

// Delete optimistically removes one notification, then confirms and refetches.
func (c *Center) Delete(ctx context.Context, id string) {
	c.mu.Lock()
	for i := range c.list {
		if c.list[i].ID == id {
			c.list = append(c.list[:i], c.list[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if err := c.api.DeleteNotification(ctx, id); err != nil {
		c.logger.Warn().Err(err).Str("id", id).Msg("delete failed")
		return
	}
	_ = c.Refresh(ctx)
}

// Navigate handles a click on a notification's linked destination: the panel
// closes immediately and the mark-as-read runs after, so UI responsiveness
// never waits on the network. Returns the destination URL.
func (c *Center) Navigate(ctx context.Context, id string) string {
	c.mu.Lock()
	c.panelOpen = false
	var dest string
	for _, n := range c.list {
		if n.ID == id {
			dest = n.URL
			break
		}
	}
	c.mu.Unlock()

	c.MarkRead(ctx, id)
	return dest
}

// OpenPanel opens the notification dropdown.
func (c *Center) OpenPanel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panelOpen = true
}

// ClosePanel closes the notification dropdown.
func (c *Center) ClosePanel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panelOpen = false
}

// PanelOpen reports whether the dropdown is open.
func (c *Center) PanelOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panelOpen
}

// Unread reports the unread-dot visibility: true when any listed notification
// is unread, or when a count-only push signal is outstanding.
func (c *Center) Unread() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countSignal {
		return true
	}
	for _, n := range c.list {
		if !n.IsRead {
			return true
		}
	}
	return false
}

// List returns a copy of the current notification list.
func (c *Center) List() []types.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Notification(nil), c.list...)
}
