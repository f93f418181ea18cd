package util

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomString returns a URL-safe token built from n bytes of crypto/rand
// entropy. Invite tokens are handed out raw exactly once; only a hash is
// persisted, so the token itself must be unguessable.
func RandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
