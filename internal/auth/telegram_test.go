package auth

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunepipe/internal/services"
	"github.com/desertthunder/tunepipe/internal/shared"
	"github.com/desertthunder/tunepipe/internal/songs"
)

// fakeConn is a scripted Telegram connection.
type fakeConn struct {
	mu         sync.Mutex
	authorized bool
	sendErr    error
	signInErr  error
	passErr    error
	history    []string
	closed     bool
	closeErr   error
	path       string
}

func (c *fakeConn) Authorized(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized && !c.closed, nil
}

func (c *fakeConn) SendCode(_ context.Context, phone string) (string, error) {
	if c.sendErr != nil {
		return "", c.sendErr
	}
	return "hash-" + phone, nil
}

func (c *fakeConn) SignIn(_ context.Context, phone, code, codeHash string) error {
	if c.signInErr != nil {
		return c.signInErr
	}
	if codeHash != "hash-"+phone || code != "12345" {
		return errors.New("PHONE_CODE_INVALID")
	}
	c.mu.Lock()
	c.authorized = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Password(_ context.Context, password string) error {
	if c.passErr != nil {
		return c.passErr
	}
	if password != "hunter2" {
		return errors.New("PASSWORD_HASH_INVALID")
	}
	c.mu.Lock()
	c.authorized = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) History(_ context.Context, chat string, limit int) ([]string, error) {
	return c.history, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

// fakeDialer hands out the next scripted connection, or a fresh unauthorized one.
//
// With entered set, Dial announces itself there and waits on release before connecting.
type fakeDialer struct {
	mu      sync.Mutex
	next    func() *fakeConn
	err     error
	conns   []*fakeConn
	entered chan struct{}
	release chan struct{}
}

func (d *fakeDialer) Dial(_ context.Context, path string) (services.TelegramConn, error) {
	if d.entered != nil {
		d.entered <- struct{}{}
		<-d.release
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeConn{}
	if d.next != nil {
		c = d.next()
	}
	c.path = path
	d.conns = append(d.conns, c)
	return c, nil
}

type stubExtractor struct {
	songs []string
}

func (s stubExtractor) Extract(ctx context.Context, src songs.HistorySource, chat string) ([]string, error) {
	return s.songs, nil
}

func newTestTelegramFlow(t *testing.T, d *fakeDialer, extractor SongExtractor) *TelegramFlow {
	t.Helper()
	if extractor == nil {
		extractor = songs.NewExtractor(10)
	}
	flow := NewTelegramFlow(d, extractor, TelegramOptions{SessionDir: t.TempDir(), SessionName: "test"})
	t.Cleanup(func() { flow.Close() })
	return flow
}

func TestTelegramFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("Login Requires Phone", func(t *testing.T) {
		d := &fakeDialer{}
		flow := newTestTelegramFlow(t, d, nil)

		if _, err := flow.Login(ctx, "sid", "  "); !errors.Is(err, shared.ErrMissingPhone) {
			t.Errorf("expected ErrMissingPhone, got %v", err)
		}
		if len(d.conns) != 0 {
			t.Errorf("expected no dial, got %d", len(d.conns))
		}
	})

	t.Run("Login With Persisted Session", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn { return &fakeConn{authorized: true} }}
		flow := newTestTelegramFlow(t, d, nil)

		state, err := flow.Login(ctx, "sid", "+15550100")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state != StateAuthorized {
			t.Errorf("expected AUTHORIZED, got %s", state)
		}
		if !flow.IsLoggedIn(ctx, "sid") {
			t.Error("expected session to be logged in")
		}
		if want := filepath.Join(flow.sessionDir, "test-sid.session"); d.conns[0].path != want {
			t.Errorf("expected session file %s, got %s", want, d.conns[0].path)
		}
	})

	t.Run("Code Then Authorized", func(t *testing.T) {
		flow := newTestTelegramFlow(t, &fakeDialer{}, nil)

		state, err := flow.Login(ctx, "sid", "+15550100")
		if err != nil || state != StateAwaitingCode {
			t.Fatalf("expected AWAITING_CODE, got %s, %v", state, err)
		}
		if flow.IsLoggedIn(ctx, "sid") {
			t.Error("expected not logged in while awaiting code")
		}

		state, err = flow.SubmitCode(ctx, "sid", "12345")
		if err != nil || state != StateAuthorized {
			t.Fatalf("expected AUTHORIZED, got %s, %v", state, err)
		}
		if !flow.IsLoggedIn(ctx, "sid") {
			t.Error("expected logged in after code")
		}
	})

	t.Run("Code Then Second Factor", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn { return &fakeConn{signInErr: services.ErrTelegramPasswordNeeded} }}
		flow := newTestTelegramFlow(t, d, nil)

		if _, err := flow.Login(ctx, "sid", "+15550100"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		state, err := flow.SubmitCode(ctx, "sid", "12345")
		if !errors.Is(err, shared.ErrSecondFactorRequired) || state != StateNeeds2FA {
			t.Fatalf("expected NEEDS_2FA, got %s, %v", state, err)
		}
		if !errors.Is(err, shared.ErrUnsupportedFlow) {
			t.Errorf("expected unsupported flow kind")
		}

		if _, err := flow.SubmitPassword(ctx, "sid", ""); !errors.Is(err, shared.ErrMissingPassword) {
			t.Errorf("expected ErrMissingPassword, got %v", err)
		}

		state, err = flow.SubmitPassword(ctx, "sid", "hunter2")
		if err != nil || state != StateAuthorized {
			t.Fatalf("expected AUTHORIZED, got %s, %v", state, err)
		}
	})

	t.Run("Wrong Password Fails", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn { return &fakeConn{signInErr: services.ErrTelegramPasswordNeeded} }}
		flow := newTestTelegramFlow(t, d, nil)

		flow.Login(ctx, "sid", "+15550100")
		flow.SubmitCode(ctx, "sid", "12345")

		state, err := flow.SubmitPassword(ctx, "sid", "wrong")
		if !errors.Is(err, shared.ErrUpstream) || state != StateFailed {
			t.Fatalf("expected FAILED upstream, got %s, %v", state, err)
		}
		if shared.Message(err) != "Telegram password check failed: PASSWORD_HASH_INVALID" {
			t.Errorf("unexpected message %q", shared.Message(err))
		}
		if !d.conns[0].closed {
			t.Error("expected failed connection to be closed")
		}
	})

	t.Run("Second Factor At Send Code", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn { return &fakeConn{sendErr: services.ErrTelegramPasswordNeeded} }}
		flow := newTestTelegramFlow(t, d, nil)

		state, err := flow.Login(ctx, "sid", "+15550100")
		if !errors.Is(err, shared.ErrSecondFactorRequired) || state != StateNeeds2FA {
			t.Errorf("expected NEEDS_2FA, got %s, %v", state, err)
		}
	})

	t.Run("Handshake Failure", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn { return &fakeConn{sendErr: errors.New("PHONE_NUMBER_INVALID")} }}
		flow := newTestTelegramFlow(t, d, nil)

		state, err := flow.Login(ctx, "sid", "+1")
		if !errors.Is(err, shared.ErrUpstream) || state != StateFailed {
			t.Fatalf("expected FAILED upstream, got %s, %v", state, err)
		}
		if shared.Message(err) != "Telegram login failed: PHONE_NUMBER_INVALID" {
			t.Errorf("unexpected message %q", shared.Message(err))
		}
		if flow.State("sid") != StateFailed {
			t.Errorf("expected FAILED state, got %s", flow.State("sid"))
		}
	})

	t.Run("Failed Close Is Logged", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn {
			return &fakeConn{sendErr: errors.New("PHONE_NUMBER_INVALID"), closeErr: errors.New("socket gone")}
		}}
		var logs bytes.Buffer
		flow := NewTelegramFlow(d, songs.NewExtractor(10), TelegramOptions{
			SessionDir: t.TempDir(),
			Logger:     shared.NewLogger(&logs),
		})
		t.Cleanup(func() { flow.Close() })

		if _, err := flow.Login(ctx, "sid", "+1"); !errors.Is(err, shared.ErrUpstream) {
			t.Fatalf("expected upstream error, got %v", err)
		}
		if !d.conns[0].closed {
			t.Error("expected the failed connection to be closed")
		}
		out := logs.String()
		if !strings.Contains(out, "failed to close telegram connection") || !strings.Contains(out, "socket gone") {
			t.Errorf("expected close failure in logs, got %q", out)
		}
	})

	t.Run("Dial Failure", func(t *testing.T) {
		flow := newTestTelegramFlow(t, &fakeDialer{err: errors.New("network down")}, nil)

		if _, err := flow.Login(ctx, "sid", "+15550100"); !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected upstream error, got %v", err)
		}
	})

	t.Run("Steps Out Of Order", func(t *testing.T) {
		flow := newTestTelegramFlow(t, &fakeDialer{}, nil)

		if _, err := flow.SubmitCode(ctx, "sid", "12345"); !errors.Is(err, shared.ErrNoCodePending) {
			t.Errorf("expected ErrNoCodePending, got %v", err)
		}
		if _, err := flow.SubmitCode(ctx, "sid", ""); !errors.Is(err, shared.ErrMissingLogin) {
			t.Errorf("expected ErrMissingLogin, got %v", err)
		}
		if _, err := flow.SubmitPassword(ctx, "sid", "pw"); !errors.Is(err, shared.ErrNo2FAPending) {
			t.Errorf("expected ErrNo2FAPending, got %v", err)
		}
	})

	t.Run("Relogin Replaces Handle", func(t *testing.T) {
		d := &fakeDialer{}
		flow := newTestTelegramFlow(t, d, nil)

		flow.Login(ctx, "sid", "+15550100")
		flow.Login(ctx, "sid", "+15550100")

		if len(d.conns) != 2 {
			t.Fatalf("expected two dials, got %d", len(d.conns))
		}
		if !d.conns[0].closed || d.conns[1].closed {
			t.Error("expected only the first connection to be closed")
		}
	})

	t.Run("Sessions Are Isolated", func(t *testing.T) {
		d := &fakeDialer{}
		flow := newTestTelegramFlow(t, d, nil)

		flow.Login(ctx, "alice", "+15550100")
		flow.Login(ctx, "bob", "+15550101")
		if _, err := flow.SubmitCode(ctx, "alice", "12345"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !flow.IsLoggedIn(ctx, "alice") {
			t.Error("expected alice to be logged in")
		}
		if flow.IsLoggedIn(ctx, "bob") {
			t.Error("expected bob to be unaffected")
		}
		if d.conns[0].path == d.conns[1].path {
			t.Error("expected distinct session files")
		}
	})

	t.Run("FetchSongs", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn { return &fakeConn{authorized: true} }}
		flow := newTestTelegramFlow(t, d, stubExtractor{songs: []string{"A", "B"}})

		if _, err := flow.FetchSongs(ctx, "sid", "music"); !errors.Is(err, shared.ErrTelegramNotLoggedIn) {
			t.Errorf("expected ErrTelegramNotLoggedIn, got %v", err)
		}

		flow.Login(ctx, "sid", "+15550100")

		if _, err := flow.FetchSongs(ctx, "sid", ""); !errors.Is(err, shared.ErrMissingChat) {
			t.Errorf("expected ErrMissingChat, got %v", err)
		}

		got, err := flow.FetchSongs(ctx, "sid", "music")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"A", "B"}) {
			t.Errorf("unexpected songs %v", got)
		}
	})

	t.Run("FetchSongs Through Extractor", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn {
			return &fakeConn{authorized: true, history: []string{"Burial - Archangel", "lol", "Air - Alone in Kyoto"}}
		}}
		flow := newTestTelegramFlow(t, d, nil)
		flow.Login(ctx, "sid", "+15550100")

		got, err := flow.FetchSongs(ctx, "sid", "music")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"Air - Alone in Kyoto", "Burial - Archangel"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("Logout And Close", func(t *testing.T) {
		d := &fakeDialer{next: func() *fakeConn { return &fakeConn{authorized: true} }}
		flow := newTestTelegramFlow(t, d, nil)

		flow.Login(ctx, "a", "+15550100")
		flow.Login(ctx, "b", "+15550101")

		flow.Logout(ctx, "a")
		if flow.IsLoggedIn(ctx, "a") || !d.conns[0].closed {
			t.Error("expected a to be logged out and closed")
		}
		if flow.State("a") != StateDisconnected {
			t.Errorf("expected DISCONNECTED, got %s", flow.State("a"))
		}

		if err := flow.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.conns[1].closed {
			t.Error("expected b to be closed")
		}
	})

	t.Run("IsLoggedIn Leaves State Alone", func(t *testing.T) {
		d := &fakeDialer{}
		flow := newTestTelegramFlow(t, d, nil)

		if _, err := flow.Login(ctx, "sid", "+15550100"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		d.conns[0].mu.Lock()
		d.conns[0].authorized = true
		d.conns[0].mu.Unlock()

		if !flow.IsLoggedIn(ctx, "sid") {
			t.Fatal("expected the authorized connection to report logged in")
		}
		if flow.State("sid") != StateAwaitingCode {
			t.Errorf("expected state to stay AWAITING_CODE, got %s", flow.State("sid"))
		}
	})

	t.Run("IsLoggedIn Does Not Wait For Login", func(t *testing.T) {
		d := &fakeDialer{entered: make(chan struct{}), release: make(chan struct{})}
		flow := newTestTelegramFlow(t, d, nil)

		loginDone := make(chan struct{})
		go func() {
			defer close(loginDone)
			flow.Login(ctx, "sid", "+15550100")
		}()
		<-d.entered

		answered := make(chan bool, 1)
		go func() { answered <- flow.IsLoggedIn(ctx, "sid") }()

		select {
		case ok := <-answered:
			if ok {
				t.Error("expected a connecting session to report logged out")
			}
		case <-time.After(time.Second):
			t.Error("status check blocked behind the running login")
		}

		close(d.release)
		<-loginDone
	})

	t.Run("Concurrent Logins Serialize", func(t *testing.T) {
		d := &fakeDialer{}
		flow := newTestTelegramFlow(t, d, nil)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				flow.Login(ctx, "sid", "+15550100")
			}()
		}
		wg.Wait()

		open := 0
		for _, c := range d.conns {
			if !c.closed {
				open++
			}
		}
		if open != 1 {
			t.Errorf("expected exactly one open connection, got %d", open)
		}
	})
}
