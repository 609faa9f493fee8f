package mapmodel

import (
	"crypto/sha256"
	"encoding/hex"
)

// ETag hashes a map's serialized bytes into a stable identifier HTTP
// clients can compare against an If-None-Match header to skip
// re-downloading an unchanged map (SPEC_FULL.md §4.3).
func ETag(serialized []byte) string {
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}
