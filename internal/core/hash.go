package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex returns the lowercase hex-encoded SHA-256 digest of s.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashUser returns the digest used to identify a user by an unhashed
// handle, matching the original's sha256(user_unhashed) balance lookup.
func HashUser(unhashed string) string {
	return Sha256Hex(unhashed)
}
