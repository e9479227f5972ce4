package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// newVerifier генерирует PKCE code_verifier: 32 случайных байта в base64url (43 символа).
func newVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// challenge вычисляет code_challenge по методу S256.
func challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
