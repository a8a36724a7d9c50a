package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/tg"
)

// ErrTelegramPasswordNeeded is returned by [TelegramConn.SignIn] when the account has two-step verification.
var ErrTelegramPasswordNeeded = errors.New("telegram: two-step verification password required")

// TelegramConn is a live, possibly unauthorized, Telegram connection bound to one session file.
type TelegramConn interface {
	// Authorized reports whether the session behind the connection is logged in.
	Authorized(ctx context.Context) (bool, error)
	// SendCode asks Telegram to send a login code to phone and returns the phone code hash.
	SendCode(ctx context.Context, phone string) (string, error)
	SignIn(ctx context.Context, phone, code, codeHash string) error
	Password(ctx context.Context, password string) error
	// History returns the text of up to limit recent messages in chat, newest first.
	History(ctx context.Context, chat string, limit int) ([]string, error)
	Close() error
}

// MTProtoDialer opens [TelegramConn]s with gotd, persisting each session in its own file.
type MTProtoDialer struct {
	appID   int
	appHash string
}

func NewMTProtoDialer(appID int, appHash string) *MTProtoDialer {
	return &MTProtoDialer{appID: appID, appHash: appHash}
}

type mtprotoConn struct {
	client *telegram.Client
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Dial connects with the session stored at sessionPath, creating its directory if needed. It returns once the
// connection is up; the client keeps running until [TelegramConn.Close].
func (d *MTProtoDialer) Dial(ctx context.Context, sessionPath string) (TelegramConn, error) {
	if d.appID == 0 || d.appHash == "" {
		return nil, fmt.Errorf("telegram api id and hash are required")
	}
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	client := telegram.NewClient(d.appID, d.appHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
	})

	runCtx, cancel := context.WithCancel(context.Background())
	conn := &mtprotoConn{client: client, cancel: cancel, done: make(chan struct{})}
	ready := make(chan struct{})

	go func() {
		defer close(conn.done)
		conn.err = client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		return conn, nil
	case <-conn.done:
		cancel()
		return nil, fmt.Errorf("telegram connection failed: %w", conn.err)
	case <-ctx.Done():
		cancel()
		<-conn.done
		return nil, fmt.Errorf("telegram connection failed: %w", ctx.Err())
	}
}

func (c *mtprotoConn) Authorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}

func (c *mtprotoConn) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", err
	}

	switch s := any(sent).(type) {
	case *tg.AuthSentCode:
		return s.PhoneCodeHash, nil
	default:
		return "", fmt.Errorf("unexpected send code response %T", sent)
	}
}

func (c *mtprotoConn) SignIn(ctx context.Context, phone, code, codeHash string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, codeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return ErrTelegramPasswordNeeded
	}
	return err
}

func (c *mtprotoConn) Password(ctx context.Context, password string) error {
	_, err := c.client.Auth().Password(ctx, password)
	return err
}

func (c *mtprotoConn) History(ctx context.Context, chat string, limit int) ([]string, error) {
	domain, err := chatDomain(chat)
	if err != nil {
		return nil, err
	}

	api := c.client.API()
	inputPeer, err := peer.DefaultResolver(api).ResolveDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chat %q: %w", chat, err)
	}

	res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{Peer: inputPeer, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %q: %w", chat, err)
	}

	modified, ok := res.(interface{ GetMessages() []tg.MessageClass })
	if !ok {
		return nil, nil
	}

	var texts []string
	for _, m := range modified.GetMessages() {
		if msg, ok := m.(*tg.Message); ok && msg.Message != "" {
			texts = append(texts, msg.Message)
		}
	}
	return texts, nil
}

func (c *mtprotoConn) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// chatDomain turns "@name", "t.me/name" or "https://t.me/name" into the public username "name".
func chatDomain(chat string) (string, error) {
	name := strings.TrimSpace(chat)
	for _, prefix := range []string{"https://", "http://", "t.me/", "telegram.me/", "@"} {
		name = strings.TrimPrefix(name, prefix)
	}
	name = strings.Trim(name, "/")

	if name == "" {
		return "", fmt.Errorf("empty chat name")
	}
	if _, err := strconv.ParseInt(name, 10, 64); err == nil {
		return "", fmt.Errorf("chat %q: numeric ids are not supported, use the public username", chat)
	}
	return name, nil
}
