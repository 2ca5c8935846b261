package entry

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// DefaultPreviewWidth bounds preview strings when no width is configured.
const DefaultPreviewWidth = 100

// Preview derives the bounded listing string for a payload at commit time.
// Text previews are trimmed, have each tab, line break and form feed
// replaced by one space (runs are not merged), and are truncated to width
// display cells; binary payloads get a human summary like
// "[[ binary data 318 KiB image/png 1920x1080 ]]".
func Preview(payload []byte, mime string, width int) string {
	if width <= 0 {
		width = DefaultPreviewWidth
	}

	if IsTextual(mime) {
		return textPreview(payload, width)
	}

	size := humanize.IBytes(uint64(len(payload)))
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(payload)); err == nil {
		return fmt.Sprintf("[[ binary data %s %s %dx%d ]]", size, mime, cfg.Width, cfg.Height)
	}
	return fmt.Sprintf("[[ binary data %s %s ]]", size, mime)
}

func textPreview(payload []byte, width int) string {
	s := strings.TrimSpace(string(payload))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', '\v', '\f':
			return ' '
		}
		return r
	}, s)
	return runewidth.Truncate(s, width, "…")
}
