package conn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/src/types"
)

// State is the lifecycle state of one logical WebSocket subscription.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

const (
	defaultMaxAttempts    = 5
	defaultBaseDelay      = time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// ErrNotOpen is returned by Send when no socket is open.
var ErrNotOpen = errors.New("conn: not open")

// CloseInfo records how the last socket closed.
type CloseInfo struct {
	Code  int
	Clean bool
}

// Options configures a Manager. Subsystem, URL, Tokens, and OnEvent are
// required; the rest default.
type Options struct {
	Subsystem string
	URL       func(token string) string
	Tokens    types.TokenSource
	Dialer    types.Dialer
	OnEvent   func(types.Event)

	ConnectTimeout time.Duration
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Logger         zerolog.Logger
}

// Manager owns one WebSocket subscription: it establishes the connection,
// reads frames into typed events, and reconnects with exponential backoff
// after unclean closes. The socket reference and attempt counter are owned
// exclusively by the Manager; callers interact only through its methods.
type Manager struct {
	opts Options

	mu        sync.Mutex
	state     State
	sock      types.Conn
	attempts  int
	lastClose *CloseInfo
	timer     *time.Timer
	stopped   bool
	gen       int

	// schedule is the reconnect timer factory; replaced in tests.
	schedule func(d time.Duration, fn func()) *time.Timer
}

// New creates a Manager in the idle state. It does not connect.
func New(opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = NewDialer(opts.ConnectTimeout)
	}
	opts.Logger = opts.Logger.With().Str("subsystem", opts.Subsystem).Logger()

	return &Manager{
		opts:     opts,
		state:    StateIdle,
		schedule: time.AfterFunc,
	}
}

// Connect establishes the subscription. It is a no-op while a connection is
// already connecting or open, and after Stop. Failures never propagate: an
// absent token leaves the manager idle to be retried by a later Connect, and
// a failed dial follows the unclean-close reconnect path.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.stopped || m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	if m.timer != nil {
		// An explicit Connect supersedes any scheduled retry.
		m.timer.Stop()
		m.timer = nil
	}
	if m.sock != nil {
		// Stale socket from a previous generation.
		_ = m.sock.Close()
		m.sock = nil
	}
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	token, err := m.opts.Tokens.Token(ctx)
	if err != nil {
		m.opts.Logger.Error().Err(err).Msg("token fetch failed")
		m.abortConnect(gen)
		return
	}
	if token == "" {
		m.opts.Logger.Debug().Msg("no auth token yet, skipping connect")
		m.abortConnect(gen)
		return
	}

	// The token fetch is a suspension point; the manager may have been
	// stopped while it was in flight.
	m.mu.Lock()
	if m.stopped || m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	sock, err := m.opts.Dialer.Dial(dialCtx, m.opts.URL(token))
	cancel()
	if err != nil {
		m.opts.Logger.Warn().Err(err).Msg("dial failed")
		m.handleClose(gen, CloseInfo{Code: websocket.CloseAbnormalClosure, Clean: false})
		return
	}

	m.mu.Lock()
	if m.stopped || m.gen != gen {
		m.mu.Unlock()
		_ = sock.Close()
		return
	}
	m.sock = sock
	m.state = StateOpen
	m.attempts = 0
	m.lastClose = nil
	m.mu.Unlock()

	m.opts.Logger.Info().Msg("connected")
	go m.readLoop(gen, sock)
}

// Stop cancels any pending reconnect, closes the socket, and makes the
// manager permanently idle. Safe to call repeatedly.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	sock := m.sock
	m.sock = nil
	m.state = StateIdle
	m.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}
}

// Send writes an outbound frame to the open socket.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	sock := m.sock
	m.mu.Unlock()
	if sock == nil {
		return ErrNotOpen
	}
	return sock.WriteJSON(v)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the reconnect attempt counter. It resets to zero on a
// successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// LastClose returns metadata for the most recent close, or nil.
func (m *Manager) LastClose() *CloseInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastClose
}

func (m *Manager) readLoop(gen int, sock types.Conn) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			m.handleClose(gen, closeInfoFromErr(err))
			return
		}

		ev, derr := types.DecodeEvent(data)
		if derr != nil {
			// Malformed frames are per-message failures; the socket stays up.
			m.opts.Logger.Error().Err(derr).Str("payload", string(data)).Msg("malformed frame")
			continue
		}
		if unk, ok := ev.(types.UnknownEvent); ok {
			m.opts.Logger.Warn().Str("type", unk.RawType).Msg("unhandled event type")
			continue
		}

		m.mu.Lock()
		live := !m.stopped && m.gen == gen
		m.mu.Unlock()
		if !live {
			return
		}
		m.opts.OnEvent(ev)
	}
}

// abortConnect returns a connecting manager to idle without scheduling a
// retry. Used for the auth-not-ready path.
func (m *Manager) abortConnect(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.gen != gen {
		return
	}
	m.state = StateIdle
}

// handleClose records the closure and, for unclean closes under the attempt
// limit, schedules the next connect after an exponential backoff delay.
// Errors observed on the socket never drive a second reconnect path; this is
// the single recovery point.
func (m *Manager) handleClose(gen int, ci CloseInfo) {
	m.mu.Lock()
	if m.stopped || m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.sock = nil
	m.state = StateClosed
	m.lastClose = &ci

	if ci.Clean {
		m.state = StateIdle
		m.mu.Unlock()
		m.opts.Logger.Info().Int("code", ci.Code).Msg("closed cleanly, not reconnecting")
		return
	}
	if m.attempts >= m.opts.MaxAttempts {
		m.state = StateIdle
		m.mu.Unlock()
		m.opts.Logger.Warn().Int("attempts", m.opts.MaxAttempts).Msg("reconnect attempts exhausted")
		return
	}

	delay := ReconnectDelay(m.attempts, m.opts.BaseDelay, m.opts.MaxDelay)
	m.attempts++
	attempt := m.attempts
	m.timer = m.schedule(delay, func() {
		m.mu.Lock()
		// An explicit Connect may have superseded this timer; its generation
		// bump makes the stale callback a no-op.
		if m.stopped || m.gen != gen {
			m.mu.Unlock()
			return
		}
		m.timer = nil
		// The scheduled retry is the closed -> connecting transition.
		m.state = StateIdle
		m.mu.Unlock()
		m.Connect(context.Background())
	})
	m.mu.Unlock()

	m.opts.Logger.Warn().
		Int("code", ci.Code).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("unclean close, reconnect scheduled")
}

// ReconnectDelay is the backoff delay before retry number attempt+1:
// base*2^attempt, capped at max.
func ReconnectDelay(attempt int, base, max time.Duration) time.Duration {
	d := base << uint(attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// closeInfoFromErr classifies a read error as a clean or unclean closure.
// Normal and going-away closures count as clean; everything else, including
// plain network errors, is unclean.
func closeInfoFromErr(err error) CloseInfo {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		clean := ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
		return CloseInfo{Code: ce.Code, Clean: clean}
	}
	return CloseInfo{Code: websocket.CloseAbnormalClosure, Clean: false}
}
