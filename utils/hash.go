package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HashBytes returns the hex SHA-256 of data. Used to deduplicate
// uploads per user.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader streams r through SHA-256.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
