// Package entry defines the clipboard history entry and its derived
// attributes: mime label, preview and content hash.
package entry

import (
	"crypto/sha256"
	"strings"
)

// CanonicalTextMime is the normative label for UTF-8 text payloads.
const CanonicalTextMime = "text/plain;charset=utf-8"

// Entry is the atomic unit of clipboard history.
type Entry struct {
	ID          int64   `json:"id"`
	CreatedAt   int64   `json:"created_at"`
	Mime        string  `json:"mime"`
	Payload     []byte  `json:"-"`
	Preview     string  `json:"preview"`
	SourceApp   *string `json:"source_app,omitempty"`
	TTLSeconds  *int64  `json:"ttl_seconds,omitempty"`
	IsExpired   bool    `json:"is_expired"`
	ContentHash []byte  `json:"-"`
}

// Hash fingerprints a payload for dedup probes and live-selection identity
// checks. SHA-256; payloads are never compared byte-for-byte on the hot path.
func Hash(payload []byte) []byte {
	sum := sha256.Sum256(payload)
	return sum[:]
}

// IsTextual reports whether a mime label carries UTF-8 text.
func IsTextual(mime string) bool {
	return strings.HasPrefix(mime, "text/") || mime == "application/json"
}

// Size reports the payload length in bytes.
func (e *Entry) Size() int { return len(e.Payload) }
