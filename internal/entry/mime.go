package entry

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// imageSignature maps leading magic bytes to a mime label.
type imageSignature struct {
	magic []byte
	mime  string
}

var imageSignatures = []imageSignature{
	{[]byte("\x89PNG\r\n\x1a\n"), "image/png"},
	{[]byte("\xff\xd8\xff"), "image/jpeg"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
	{[]byte("BM"), "image/bmp"},
	{[]byte("II*\x00"), "image/tiff"},
	{[]byte("MM\x00*"), "image/tiff"},
}

// DetectMime sniffs a mime label for clipboard data: image magic first,
// then text/uri-list for file-manager copies, then UTF-8 text, and
// application/octet-stream for anything else. Empty input yields "".
func DetectMime(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	for _, sig := range imageSignatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.mime
		}
	}
	// RIFF container: WEBP tag at offset 8.
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}

	if utf8.Valid(data) {
		text := strings.TrimSpace(string(data))
		if isURIList(text) {
			return "text/uri-list"
		}
		return CanonicalTextMime
	}

	return "application/octet-stream"
}

// isURIList reports whether text is a URI list per RFC 2483: URIs one per
// line, `#` for comments. File managers hand over copied files this way.
func isURIList(text string) bool {
	if text == "" {
		return false
	}
	if !hasURIScheme(text) && !strings.HasPrefix(text, "#") {
		return false
	}
	found := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !hasURIScheme(line) {
			return false
		}
		found = true
	}
	return found
}

func hasURIScheme(s string) bool {
	for _, scheme := range []string{"file://", "http://", "https://", "ftp://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}
