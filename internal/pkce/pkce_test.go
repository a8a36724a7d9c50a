package pkce

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate(t *testing.T) {
	t.Run("Verifier Shape", func(t *testing.T) {
		pair, err := Generate()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(pair.Verifier) != VerifierLength {
			t.Errorf("expected verifier length %d, got %d", VerifierLength, len(pair.Verifier))
		}

		for _, c := range pair.Verifier {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("verifier contains %q outside [A-Za-z0-9]", c)
			}
		}
	})

	t.Run("Challenge Is S256 Of Verifier", func(t *testing.T) {
		for range 20 {
			pair, err := Generate()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if strings.Contains(pair.Challenge, "=") {
				t.Errorf("challenge %q should not be padded", pair.Challenge)
			}

			decoded, err := base64.RawURLEncoding.DecodeString(pair.Challenge)
			if err != nil {
				t.Fatalf("challenge is not base64url: %v", err)
			}

			sum := sha256.Sum256([]byte(pair.Verifier))
			if !bytes.Equal(decoded, sum[:]) {
				t.Error("decoded challenge does not match sha256(verifier)")
			}
		}
	})

	t.Run("Successive Verifiers Differ", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			pair, err := Generate()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if seen[pair.Verifier] {
				t.Fatal("verifier repeated")
			}
			seen[pair.Verifier] = true
		}
	})

	t.Run("Known Vector", func(t *testing.T) {
		// RFC 7636 appendix B
		got := Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
		if got != "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM" {
			t.Errorf("unexpected challenge %s", got)
		}
	})

	t.Run("Rejects Biased Bytes", func(t *testing.T) {
		// 0xff is above the rejection limit and must be skipped; 0x00 maps to 'A'
		src := bytes.NewReader(append(bytes.Repeat([]byte{0xff}, 8), bytes.Repeat([]byte{0x00}, 128)...))
		pair, err := generate(src)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pair.Verifier != strings.Repeat("A", VerifierLength) {
			t.Errorf("unexpected verifier %s", pair.Verifier)
		}
	})

	t.Run("Entropy Failure", func(t *testing.T) {
		if _, err := generate(failingReader{}); err == nil {
			t.Error("expected error when the entropy source fails")
		}
	})
}

func TestState(t *testing.T) {
	a, err := State()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, _ := State()
	if a == b || a == "" {
		t.Errorf("expected distinct non-empty states, got %q and %q", a, b)
	}
}
