package clip

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"golang.design/x/clipboard"

	"github.com/stashd/stash/internal/entry"
	stasherr "github.com/stashd/stash/internal/errors"
)

const pollInterval = 250 * time.Millisecond

// pollGateway watches the selection by polling. Wayland offers no change
// notification to ordinary clients, so a ticker compares the current
// offers against the last observed pair and coalesces changes into a
// cap-1 channel.
type pollGateway struct {
	logger *slog.Logger

	events chan struct{}
	done   chan struct{}

	lastText []byte
	lastImg  []byte
}

// New initialises the display connection and starts the poller. A
// missing display is a WaylandUnavailable error; the caller decides
// whether to retry.
func New(logger *slog.Logger) (Gateway, error) {
	if err := clipboard.Init(); err != nil {
		return nil, stasherr.NewWaylandUnavailable(err)
	}
	g := &pollGateway{
		logger: logger,
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go g.poll()
	return g, nil
}

func (g *pollGateway) poll() {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-g.done:
			return
		case <-t.C:
			text := clipboard.Read(clipboard.FmtText)
			img := clipboard.Read(clipboard.FmtImage)
			if bytes.Equal(text, g.lastText) && bytes.Equal(img, g.lastImg) {
				continue
			}
			g.lastText = text
			g.lastImg = img
			select {
			case g.events <- struct{}{}:
			default:
				// A pending event already covers this change.
			}
		}
	}
}

func (g *pollGateway) Subscribe() <-chan struct{} { return g.events }

// Read resolves the current offers under the preference. The underlying
// reads are synchronous; the context bounds the whole resolution so a
// slow offerer cannot stall the event loop.
func (g *pollGateway) Read(ctx context.Context, pref Preference) (Selection, bool) {
	type result struct {
		sel Selection
		ok  bool
	}
	ch := make(chan result, 1)
	go func() {
		sel, ok := resolve(pref)
		ch <- result{sel: sel, ok: ok}
	}()
	select {
	case r := <-ch:
		return r.sel, r.ok
	case <-ctx.Done():
		g.logger.Warn("selection read timed out", "preference", pref.String())
		return Selection{}, false
	}
}

func resolve(pref Preference) (sel Selection, ok bool) {
	readText := func() (Selection, bool) {
		data := clipboard.Read(clipboard.FmtText)
		if len(data) == 0 {
			return Selection{}, false
		}
		return Selection{Mime: entry.DetectMime(data), Data: data}, true
	}
	readImage := func() (Selection, bool) {
		data := clipboard.Read(clipboard.FmtImage)
		if len(data) == 0 {
			return Selection{}, false
		}
		mime := entry.DetectMime(data)
		if mime == "" {
			mime = "image/png"
		}
		return Selection{Mime: mime, Data: data}, true
	}

	switch pref {
	case PrefText:
		return readText()
	case PrefImage:
		return readImage()
	default:
		if sel, ok := readText(); ok {
			return sel, ok
		}
		return readImage()
	}
}

// Write replaces the selection. Images must already be PNG encoded.
func (g *pollGateway) Write(mime string, data []byte) error {
	switch {
	case entry.IsTextual(mime):
		clipboard.Write(clipboard.FmtText, data)
	case mime == "image/png":
		clipboard.Write(clipboard.FmtImage, data)
	default:
		return stasherr.NewUsage("cannot offer mime %s to the selection", mime)
	}
	return nil
}

// Clear withdraws the offer by writing an empty text selection.
func (g *pollGateway) Clear() {
	clipboard.Write(clipboard.FmtText, nil)
}

func (g *pollGateway) Close() {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}
