// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/tunepipe/internal/services"
)

// FakeTelegram is a scripted [services.TelegramConn].
//
// Authorized starts as given; SignIn accepts Code (asking for a password when TwoStepPassword is set) and
// Password accepts TwoStepPassword. History returns Messages for any chat.
type FakeTelegram struct {
	mu         sync.Mutex
	authorized bool
	closed     bool

	Code            string
	TwoStepPassword string
	Messages        []string
}

var _ services.TelegramConn = (*FakeTelegram)(nil)

func NewFakeTelegram(authorized bool) *FakeTelegram {
	return &FakeTelegram{authorized: authorized, Code: "12345"}
}

func (f *FakeTelegram) Authorized(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorized, nil
}

func (f *FakeTelegram) SendCode(context.Context, string) (string, error) {
	return "code-hash", nil
}

func (f *FakeTelegram) SignIn(_ context.Context, _, code, hash string) error {
	if code != f.Code || hash != "code-hash" {
		return errors.New("PHONE_CODE_INVALID")
	}
	if f.TwoStepPassword != "" {
		return services.ErrTelegramPasswordNeeded
	}
	f.mu.Lock()
	f.authorized = true
	f.mu.Unlock()
	return nil
}

func (f *FakeTelegram) Password(_ context.Context, password string) error {
	if password != f.TwoStepPassword {
		return errors.New("PASSWORD_HASH_INVALID")
	}
	f.mu.Lock()
	f.authorized = true
	f.mu.Unlock()
	return nil
}

func (f *FakeTelegram) History(context.Context, string, int) ([]string, error) {
	return f.Messages, nil
}

func (f *FakeTelegram) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeTelegram) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeDialer hands out Conn on every Dial and records the session paths asked for.
type FakeDialer struct {
	mu    sync.Mutex
	Conn  *FakeTelegram
	Paths []string
}

func (d *FakeDialer) Dial(_ context.Context, sessionPath string) (services.TelegramConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Paths = append(d.Paths, sessionPath)
	return d.Conn, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
