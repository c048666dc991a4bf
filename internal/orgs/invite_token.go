package orgs

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// inviteTokenPrefix marks TaskDeck invite tokens
	inviteTokenPrefix = "tdi_"

	// inviteTokenBytes is the number of random bytes in a token
	inviteTokenBytes = 32
)

// GenerateInviteToken creates a new invite token.
// Returns the plaintext token (to be mailed once) and its SHA256 hash (for storage).
func GenerateInviteToken() (token string, hash []byte, err error) {
	randomBytes := make([]byte, inviteTokenBytes)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = inviteTokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	hash = HashInviteToken(token)
	return token, hash, nil
}

// HashInviteToken computes the SHA256 hash of a token for storage
func HashInviteToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

// ValidateInviteTokenFormat checks if a token has the correct format
func ValidateInviteTokenFormat(token string) bool {
	if len(token) < len(inviteTokenPrefix) {
		return false
	}
	if token[:len(inviteTokenPrefix)] != inviteTokenPrefix {
		return false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token[len(inviteTokenPrefix):])
	if err != nil {
		return false
	}
	return len(decoded) == inviteTokenBytes
}
