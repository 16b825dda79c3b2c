// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint returns the SHA-256 hex digest of r. Identical byte
// sequences produce identical fingerprints regardless of whether they
// come from disk or memory, so file-based and buffer-based change
// detection are comparable bit-for-bit.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintBytes returns the SHA-256 hex digest of b.
func FingerprintBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile returns the SHA-256 hex digest of the file at path.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Fingerprint(f)
}
