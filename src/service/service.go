// Package service wires the realtime subsystems into one engine: three
// connection managers (notifications, chat, presence), their reconciliation
// stores, the event bus, and the optional cross-instance bridge.
package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/config"
	"github.com/schedulr/realtime/src/bridge"
	"github.com/schedulr/realtime/src/bus"
	"github.com/schedulr/realtime/src/chat"
	"github.com/schedulr/realtime/src/conn"
	"github.com/schedulr/realtime/src/notify"
	"github.com/schedulr/realtime/src/presence"
	"github.com/schedulr/realtime/src/rest"
	"github.com/schedulr/realtime/src/types"
)

// Options configures an Engine. Config, Tokens, and Logger are required.
type Options struct {
	Config *config.Config
	Tokens types.TokenSource
	Logger zerolog.Logger

	// Dialer overrides the production WebSocket dialer; used in tests.
	Dialer types.Dialer
	// Toasts overrides the default log-only toast sink.
	Toasts notify.ToastSink
}

// Engine is the realtime collaboration core. Each subsystem owns its socket
// exclusively; cross-component communication happens only through the bus or
// the shared profile, never by exposing a socket.
type Engine struct {
	cfg    *config.Config
	tokens types.TokenSource
	dialer types.Dialer
	logger zerolog.Logger

	bus           *bus.Bus
	rest          *rest.Client
	notifications *notify.Center
	chat          *chat.Session
	presence      *presence.Set

	connNotify *conn.Manager
	connChat   *conn.Manager

	mu           sync.Mutex
	connPresence *conn.Manager
	bridge       bridge.Bridge
	profile      *types.UserProfile
}

// New wires an engine. Nothing connects until Start.
func New(o Options) *Engine {
	e := &Engine{
		cfg:    o.Config,
		tokens: o.Tokens,
		dialer: o.Dialer,
		logger: o.Logger,
	}
	e.bus = bus.New(o.Logger)
	e.rest = rest.New(o.Config.APIBaseURL, o.Tokens)
	e.notifications = notify.New(e.rest, o.Toasts, o.Logger)
	e.chat = chat.NewSession(e.rest, e.bus, o.Logger)
	e.presence = presence.New(o.Logger)

	e.connNotify = e.newManager("notifications", e.notificationURL, e.notifications.Apply)
	e.connChat = e.newManager("chat", e.chatURL, e.chat.Apply)
	e.chat.SetSender(e.connChat)
	return e
}

func (e *Engine) newManager(subsystem string, urlFn func(string) string, onEvent func(types.Event)) *conn.Manager {
	return conn.New(conn.Options{
		Subsystem:      subsystem,
		URL:            urlFn,
		Tokens:         e.tokens,
		Dialer:         e.dialer,
		OnEvent:        onEvent,
		ConnectTimeout: e.cfg.ConnectTimeout,
		MaxAttempts:    e.cfg.MaxReconnectAttempts,
		BaseDelay:      e.cfg.ReconnectBaseDelay,
		MaxDelay:       e.cfg.ReconnectMaxDelay,
		Logger:         e.logger,
	})
}

func (e *Engine) notificationURL(token string) string {
	return e.cfg.WSBaseURL + "/ws/notifications/?token=" + token
}

func (e *Engine) chatURL(token string) string {
	return e.cfg.WSBaseURL + "/ws/chat/?token=" + token
}

func (e *Engine) presenceURL(token string) string {
	return e.cfg.WSBaseURL + "/ws/presence/calendar/?token=" + token
}

// Start connects the notification and chat subsystems, attempts the Redis
// bridge (non-fatal when unavailable), and primes local state from REST. The
// presence socket is scoped to the calendar view; see EnterCalendarView.
func (e *Engine) Start(ctx context.Context) {
	e.initBridge()

	e.connNotify.Connect(ctx)
	e.connChat.Connect(ctx)

	if err := e.notifications.Refresh(ctx); err == nil {
		e.logger.Debug().Msg("notifications primed")
	}
	if err := e.chat.RefreshRooms(ctx); err == nil {
		e.logger.Debug().Msg("chat rooms primed")
	}
	e.loadProfile(ctx)
}

// initBridge tries to start the Redis relay. If Redis is not reachable, the
// bus runs in standalone mode.
func (e *Engine) initBridge() {
	rb := bridge.NewRedisBridge(bridge.RedisConfig{
		Addr:     e.cfg.RedisAddr,
		Password: e.cfg.RedisPassword,
		DB:       e.cfg.RedisDB,
		Prefix:   e.cfg.RedisPrefix,
	}, e.bus, e.logger)

	if err := rb.Start(); err != nil {
		e.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		return
	}

	e.mu.Lock()
	e.bridge = rb
	e.mu.Unlock()
	e.bus.SetRelay(rb)
	e.logger.Info().Str("redis_addr", e.cfg.RedisAddr).Msg("redis bridge connected")
}

// loadProfile fetches the authenticated profile. The fetch may complete after
// presence events have already arrived; the stores handle that ordering.
func (e *Engine) loadProfile(ctx context.Context) {
	profile, err := e.rest.Me(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("profile fetch failed")
		return
	}
	e.mu.Lock()
	e.profile = profile
	e.mu.Unlock()

	e.chat.SetSelf(profile.ID)
	e.presence.SetSelf(profile.ID)
	e.bus.Publish(bus.TopicUserDataChanged, *profile)
}

// EnterCalendarView opens the presence subscription. A fresh manager is
// created per entry since Stop is terminal for a manager instance.
func (e *Engine) EnterCalendarView(ctx context.Context) {
	e.mu.Lock()
	if e.connPresence != nil {
		e.mu.Unlock()
		return
	}
	m := e.newManager("presence", e.presenceURL, e.presence.Apply)
	e.connPresence = m
	e.mu.Unlock()

	m.Connect(ctx)
}

// LeaveCalendarView tears the presence socket down and empties the set.
// Presence state is ephemeral; nothing survives navigation away.
func (e *Engine) LeaveCalendarView() {
	e.mu.Lock()
	m := e.connPresence
	e.connPresence = nil
	e.mu.Unlock()

	if m != nil {
		m.Stop()
	}
	e.presence.Clear()
}

// Stop tears down every subsystem. Safe to call more than once.
func (e *Engine) Stop() {
	e.connNotify.Stop()
	e.connChat.Stop()
	e.LeaveCalendarView()
	e.chat.Close()

	e.mu.Lock()
	b := e.bridge
	e.bridge = nil
	e.mu.Unlock()
	if b != nil {
		if err := b.Stop(); err != nil {
			e.logger.Error().Err(err).Msg("bridge stop error")
		}
	}
}

// Notifications exposes the notification center.
func (e *Engine) Notifications() *notify.Center { return e.notifications }

// Chat exposes the chat session.
func (e *Engine) Chat() *chat.Session { return e.chat }

// Presence exposes the presence set.
func (e *Engine) Presence() *presence.Set { return e.presence }

// Bus exposes the page-wide event bus.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Profile returns the authenticated profile once loaded, or nil.
func (e *Engine) Profile() *types.UserProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// SubsystemInfo is one connection's state snapshot.
type SubsystemInfo struct {
	State    conn.State      `json:"state"`
	Attempts int             `json:"attempts"`
	Close    *conn.CloseInfo `json:"last_close,omitempty"`
}

// Info is the engine snapshot served by the introspection API.
type Info struct {
	Notifications SubsystemInfo  `json:"notifications"`
	Chat          SubsystemInfo  `json:"chat"`
	Presence      *SubsystemInfo `json:"presence,omitempty"`
	UnreadDot     bool           `json:"unread_dot"`
	PresentCount  int            `json:"present_count"`
	BridgeActive  bool           `json:"bridge_active"`
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Info {
	info := Info{
		Notifications: subsystemInfo(e.connNotify),
		Chat:          subsystemInfo(e.connChat),
		UnreadDot:     e.notifications.Unread(),
		PresentCount:  e.presence.Count(),
	}

	e.mu.Lock()
	if e.connPresence != nil {
		p := subsystemInfo(e.connPresence)
		info.Presence = &p
	}
	if e.bridge != nil {
		info.BridgeActive = e.bridge.Available()
	}
	e.mu.Unlock()
	return info
}

func subsystemInfo(m *conn.Manager) SubsystemInfo {
	return SubsystemInfo{
		State:    m.State(),
		Attempts: m.Attempts(),
		Close:    m.LastClose(),
	}
}
