// Package digest computes the content fingerprints used to verify assets.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
)

// HexLen is the length of a rendered SHA-256 digest.
const HexLen = sha256.Size * 2

// File returns the lowercase hex SHA-256 of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &errdefs.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", &errdefs.IOError{Op: "read", Path: path, Err: err}
	}
	return sum, nil
}

// Reader returns the lowercase hex SHA-256 of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the lowercase hex SHA-256 of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Normalize trims and lowercases a declared digest.
func Normalize(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}

// Equal compares two hex digests ignoring case and surrounding space.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Valid reports whether d is a well formed SHA-256 hex digest.
func Valid(d string) bool {
	d = Normalize(d)
	if len(d) != HexLen {
		return false
	}
	_, err := hex.DecodeString(d)
	return err == nil
}
