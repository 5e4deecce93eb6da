// Package identity derives deterministic content tokens for feed entries.
//
// A token is the first 16 hex characters of a SHA-256 digest: over the
// canonical source id for remote sources, over the file bytes for uploads.
// Equal inputs always produce equal tokens, which is what feed deduplication
// keys on.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const tokenHexLength = 16

// ForSource derives the content token for a resolved remote source.
func ForSource(canonicalID string) string {
	sum := sha256.Sum256([]byte(canonicalID))
	return hex.EncodeToString(sum[:])[:tokenHexLength]
}

// ForFile derives the content token for an uploaded file by streaming its
// bytes through the digest.
func ForFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:tokenHexLength], nil
}
