package auth

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunepipe/internal/services"
	"github.com/desertthunder/tunepipe/internal/shared"
	"github.com/desertthunder/tunepipe/internal/songs"
)

// TelegramState is the login state of a session's Telegram handle.
type TelegramState string

const (
	StateDisconnected TelegramState = "DISCONNECTED"
	StateConnecting   TelegramState = "CONNECTING"
	StateAwaitingCode TelegramState = "AWAITING_CODE"
	StateNeeds2FA     TelegramState = "NEEDS_2FA"
	StateAuthorized   TelegramState = "AUTHORIZED"
	StateFailed       TelegramState = "FAILED"
)

const (
	defaultTelegramTimeout = 30 * time.Second
	telegramStatusTimeout  = 5 * time.Second
)

// Dialer opens a Telegram connection backed by the session file at sessionPath.
type Dialer interface {
	Dial(ctx context.Context, sessionPath string) (services.TelegramConn, error)
}

// SongExtractor pulls song titles out of a chat.
type SongExtractor interface {
	Extract(ctx context.Context, src songs.HistorySource, chat string) ([]string, error)
}

// telegramHandle is mutated only under its session lock; conn is also guarded by mu so status queries can read it
// without waiting for a login step.
type telegramHandle struct {
	mu       sync.Mutex
	conn     services.TelegramConn
	state    TelegramState
	phone    string
	codeHash string
	lastErr  error
}

func (h *telegramHandle) liveConn() services.TelegramConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

func (h *telegramHandle) setConn(conn services.TelegramConn) {
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
}

// takeConn clears and returns the connection, so only one caller ever closes it.
func (h *telegramHandle) takeConn() services.TelegramConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn := h.conn
	h.conn = nil
	return conn
}

// TelegramFlow keeps one Telegram handle per web session and walks it through the login handshake.
//
// Operations on one session are serialized; different sessions never share a handle or a session file.
type TelegramFlow struct {
	dialer      Dialer
	extractor   SongExtractor
	sessionDir  string
	sessionName string
	timeout     time.Duration
	logger      *log.Logger

	locks   *keyedMutex
	mu      sync.Mutex
	handles map[string]*telegramHandle
}

// TelegramOptions configures a [TelegramFlow].
type TelegramOptions struct {
	SessionDir  string
	SessionName string
	Timeout     time.Duration
	Logger      *log.Logger
}

func NewTelegramFlow(dialer Dialer, extractor SongExtractor, opts TelegramOptions) *TelegramFlow {
	if opts.SessionDir == "" {
		opts.SessionDir = "."
	}
	if opts.SessionName == "" {
		opts.SessionName = "web-telegram-session"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTelegramTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	return &TelegramFlow{
		dialer:      dialer,
		extractor:   extractor,
		sessionDir:  opts.SessionDir,
		sessionName: opts.SessionName,
		timeout:     opts.Timeout,
		logger:      shared.WithLogger(opts.Logger, "component", "telegram"),
		locks:       newKeyedMutex(),
		handles:     make(map[string]*telegramHandle),
	}
}

// SessionPath is the file holding the persisted Telegram session for sid.
func (f *TelegramFlow) SessionPath(sid string) string {
	return filepath.Join(f.sessionDir, fmt.Sprintf("%s-%s.session", f.sessionName, sid))
}

func (f *TelegramFlow) handle(sid string) *telegramHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[sid]
}

func (f *TelegramFlow) put(sid string, h *telegramHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles[sid] = h
}

// drop closes and forgets sid's handle. The caller holds the session lock.
func (f *TelegramFlow) drop(sid string) {
	f.mu.Lock()
	h := f.handles[sid]
	delete(f.handles, sid)
	f.mu.Unlock()

	if h != nil {
		f.closeConn(sid, h)
	}
}

// closeConn closes and clears h's connection, logging a failed close.
func (f *TelegramFlow) closeConn(sid string, h *telegramHandle) {
	conn := h.takeConn()
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		f.logger.Warn("failed to close telegram connection", "session", sid, "error", err)
	}
}

// fail moves h to FAILED, closes its connection and returns the upstream error for err.
func (f *TelegramFlow) fail(sid string, h *telegramHandle, msg string, err error) error {
	h.state = StateFailed
	h.lastErr = err
	f.closeConn(sid, h)
	f.logger.Error(msg, "session", sid, "error", err)
	return shared.Upstream(msg, err)
}

// State returns the current state of sid's handle.
func (f *TelegramFlow) State(sid string) TelegramState {
	unlock := f.locks.Lock(sid)
	defer unlock()

	if h := f.handle(sid); h != nil {
		return h.state
	}
	return StateDisconnected
}

// Login connects sid's handle with phone, replacing any existing handle.
//
// A persisted authorized session gives [StateAuthorized] straight away. Otherwise a login code is sent and the
// state is [StateAwaitingCode].
func (f *TelegramFlow) Login(ctx context.Context, sid, phone string) (TelegramState, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return StateDisconnected, shared.ErrMissingPhone
	}

	unlock := f.locks.Lock(sid)
	defer unlock()

	f.drop(sid)
	h := &telegramHandle{state: StateConnecting, phone: phone}
	f.put(sid, h)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	conn, err := f.dialer.Dial(ctx, f.SessionPath(sid))
	if err != nil {
		return StateFailed, f.fail(sid, h, "Telegram connection failed", err)
	}
	h.setConn(conn)

	authorized, err := conn.Authorized(ctx)
	if err != nil {
		return StateFailed, f.fail(sid, h, "Telegram status check failed", err)
	}
	if authorized {
		h.state = StateAuthorized
		f.logger.Info("telegram session restored", "session", sid)
		return h.state, nil
	}

	hash, err := conn.SendCode(ctx, phone)
	if errors.Is(err, services.ErrTelegramPasswordNeeded) {
		h.state = StateNeeds2FA
		return h.state, shared.ErrSecondFactorRequired
	}
	if err != nil {
		return StateFailed, f.fail(sid, h, "Telegram login failed", err)
	}

	h.codeHash = hash
	h.state = StateAwaitingCode
	f.logger.Info("telegram login code sent", "session", sid)
	return h.state, nil
}

// SubmitCode completes a login waiting for its code. Accounts with two-step verification move to
// [StateNeeds2FA] and report [shared.ErrSecondFactorRequired].
func (f *TelegramFlow) SubmitCode(ctx context.Context, sid, code string) (TelegramState, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return f.State(sid), shared.ErrMissingLogin
	}

	unlock := f.locks.Lock(sid)
	defer unlock()

	h := f.handle(sid)
	if h == nil || h.state != StateAwaitingCode {
		return StateDisconnected, shared.ErrNoCodePending
	}
	conn := h.liveConn()
	if conn == nil {
		return StateDisconnected, shared.ErrNoCodePending
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	err := conn.SignIn(ctx, h.phone, code, h.codeHash)
	if errors.Is(err, services.ErrTelegramPasswordNeeded) {
		h.state = StateNeeds2FA
		return h.state, shared.ErrSecondFactorRequired
	}
	if err != nil {
		return StateFailed, f.fail(sid, h, "Telegram sign in failed", err)
	}

	h.state = StateAuthorized
	h.codeHash = ""
	f.logger.Info("telegram login complete", "session", sid)
	return h.state, nil
}

// SubmitPassword completes a login waiting for the two-step verification password.
func (f *TelegramFlow) SubmitPassword(ctx context.Context, sid, password string) (TelegramState, error) {
	if password == "" {
		return f.State(sid), shared.ErrMissingPassword
	}

	unlock := f.locks.Lock(sid)
	defer unlock()

	h := f.handle(sid)
	if h == nil || h.state != StateNeeds2FA {
		return StateDisconnected, shared.ErrNo2FAPending
	}
	conn := h.liveConn()
	if conn == nil {
		return StateDisconnected, shared.ErrNo2FAPending
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := conn.Password(ctx, password); err != nil {
		return StateFailed, f.fail(sid, h, "Telegram password check failed", err)
	}

	h.state = StateAuthorized
	h.codeHash = ""
	f.logger.Info("telegram login complete", "session", sid)
	return h.state, nil
}

// authorized asks h's live connection whether it is logged in. It changes nothing.
func (f *TelegramFlow) authorized(ctx context.Context, sid string, h *telegramHandle) bool {
	if h == nil {
		return false
	}
	conn := h.liveConn()
	if conn == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, telegramStatusTimeout)
	defer cancel()

	ok, err := conn.Authorized(ctx)
	if err != nil {
		f.logger.Warn("telegram status check failed", "session", sid, "error", err)
		return false
	}
	return ok
}

// IsLoggedIn reports whether sid has a handle whose connection is authorized. It never fails and does not wait
// for a login step running on the same session.
func (f *TelegramFlow) IsLoggedIn(ctx context.Context, sid string) bool {
	return f.authorized(ctx, sid, f.handle(sid))
}

// FetchSongs extracts song titles from chat through sid's authorized handle.
func (f *TelegramFlow) FetchSongs(ctx context.Context, sid, chat string) ([]string, error) {
	unlock := f.locks.Lock(sid)
	defer unlock()

	h := f.handle(sid)
	if !f.authorized(ctx, sid, h) {
		return nil, shared.ErrTelegramNotLoggedIn
	}

	chat = strings.TrimSpace(chat)
	if chat == "" {
		return nil, shared.ErrMissingChat
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	found, err := f.extractor.Extract(ctx, h.liveConn(), chat)
	if err != nil {
		return nil, shared.Upstream("Telegram history request failed", err)
	}
	if found == nil {
		found = []string{}
	}
	return found, nil
}

// Logout closes and forgets sid's handle. The session file stays on disk so a later login can reuse it.
func (f *TelegramFlow) Logout(_ context.Context, sid string) {
	unlock := f.locks.Lock(sid)
	defer unlock()

	f.drop(sid)
}

// Close closes every handle.
func (f *TelegramFlow) Close() error {
	f.mu.Lock()
	handles := f.handles
	f.handles = make(map[string]*telegramHandle)
	f.mu.Unlock()

	var errs []error
	for sid, h := range handles {
		conn := h.takeConn()
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sid, err))
		}
	}
	return errors.Join(errs...)
}
