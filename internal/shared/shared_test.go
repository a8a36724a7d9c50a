package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if !IsID(a) {
		t.Errorf("expected %q to parse as uuid", a)
	}
	if IsID("not-a-session") {
		t.Error("expected arbitrary string to be rejected")
	}
}

func TestErrorKinds(t *testing.T) {
	tc := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{name: "missing phone", err: ErrMissingPhone, kind: ErrValidation, msg: "Phone number required"},
		{name: "no songs", err: ErrNoSongs, kind: ErrValidation, msg: "No songs provided"},
		{name: "telegram auth", err: ErrTelegramNotLoggedIn, kind: ErrAuthRequired, msg: "Telegram not logged in"},
		{name: "second factor", err: ErrSecondFactorRequired, kind: ErrUnsupportedFlow, msg: "2FA password needed"},
		{
			name: "wrapped sentinel",
			err:  fmt.Errorf("callback: %w", ErrNoPendingLogin),
			kind: ErrValidation,
			msg:  "No login in progress for this session",
		},
		{
			name: "upstream passthrough",
			err:  Upstream("telegram handshake failed", errors.New("PHONE_NUMBER_INVALID")),
			kind: ErrUpstream,
			msg:  "telegram handshake failed: PHONE_NUMBER_INVALID",
		},
		{name: "unclassified", err: errors.New("boom"), kind: nil, msg: "internal server error"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind != nil && !errors.Is(tt.err, tt.kind) {
				t.Errorf("expected %v to match kind %v", tt.err, tt.kind)
			}
			if got := Message(tt.err); got != tt.msg {
				t.Errorf("Message() = %q, want %q", got, tt.msg)
			}
		})
	}

	t.Run("kinds do not overlap", func(t *testing.T) {
		if errors.Is(ErrMissingPhone, ErrAuthRequired) {
			t.Error("validation error should not match auth kind")
		}
		if errors.Is(ErrSecondFactorRequired, ErrAuthRequired) {
			t.Error("unsupported flow should be distinct from auth required")
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	t.Run("Known Platforms", func(t *testing.T) {
		for goos, bin := range map[string]string{"darwin": "open", "linux": "xdg-open", "windows": "rundll32"} {
			cmd, err := browserCommand(goos, "https://example.com")
			if err != nil {
				t.Errorf("%s: unexpected error %v", goos, err)
				continue
			}
			if cmd.Args[0] != bin || cmd.Args[len(cmd.Args)-1] != "https://example.com" {
				t.Errorf("%s: unexpected args %v", goos, cmd.Args)
			}
		}
	})

	t.Run("Unsupported Platform", func(t *testing.T) {
		if _, err := browserCommand("plan9", "https://example.com"); err == nil {
			t.Error("expected an error for an unsupported platform")
		}
	})
}
