package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the content identity of an uploaded document.
// Equal bytes always map to the same fingerprint, regardless of filename
// or upload time. It is a deduplication key, not a security control.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
