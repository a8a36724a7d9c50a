// Package pkce generates Proof Key for Code Exchange pairs (RFC 7636, S256 method).
//
// A [Pair] is created once per login attempt. The caller keeps [Pair.Verifier] server side until the code
// exchange and sends only [Pair.Challenge] to the authorization endpoint.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	// VerifierLength is the number of characters in a generated verifier. RFC 7636 allows 43-128.
	VerifierLength = 64

	// Method is the code_challenge_method sent with every challenge.
	Method = "S256"

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Pair holds a generated verifier and its challenge.
type Pair struct {
	Verifier  string
	Challenge string
}

// Generate returns a fresh verifier drawn uniformly from [A-Za-z0-9] and its S256 challenge.
func Generate() (Pair, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (Pair, error) {
	verifier, err := randomString(r, VerifierLength)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return Pair{Verifier: verifier, Challenge: Challenge(verifier)}, nil
}

// Challenge derives the S256 challenge for verifier: base64url(sha256(verifier)) without padding.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// State returns a random value for the OAuth state parameter.
func State() (string, error) {
	b := make([]byte, 24)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// randomString samples n characters from alphabet using rejection sampling, so every character is equally likely.
func randomString(r io.Reader, n int) (string, error) {
	// largest multiple of len(alphabet) that fits in a byte
	const limit = 256 - 256%len(alphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
