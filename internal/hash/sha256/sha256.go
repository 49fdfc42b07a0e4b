// Package sha256 derives content-addressed keys for archived pages.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// Hasher digests raw page bytes.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ArchiveKey returns the object path "<prefix>/<digest>.html" for data along
// with the digest itself. An empty prefix yields a bare file name.
func (h *Hasher) ArchiveKey(prefix string, data []byte) (key, digest string) {
	digest = h.Hash(data)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return digest + ".html", digest
	}
	return path.Join(prefix, digest+".html"), digest
}
