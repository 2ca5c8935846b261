// Package clip provides the daemon's one interface to the system
// selection: change notifications, preference-aware reads, writes and
// clearing. The poll backend is the only implementation under Wayland;
// tests substitute a fake.
package clip

import "context"

// Preference selects which offer a read resolves when the selection
// carries several representations.
type Preference int

const (
	// PrefAny takes text when offered, image otherwise.
	PrefAny Preference = iota
	// PrefText resolves only textual offers.
	PrefText
	// PrefImage resolves only image offers.
	PrefImage
)

// String returns the CLI spelling of the preference.
func (p Preference) String() string {
	switch p {
	case PrefText:
		return "text"
	case PrefImage:
		return "image"
	default:
		return "any"
	}
}

// ParsePreference parses the --mime-type argument.
func ParsePreference(s string) (Preference, bool) {
	switch s {
	case "", "any":
		return PrefAny, true
	case "text":
		return PrefText, true
	case "image":
		return PrefImage, true
	}
	return PrefAny, false
}

// Selection is one resolved clipboard offer.
type Selection struct {
	Mime string
	Data []byte
}

// Gateway is the selection surface the watch loop consumes.
type Gateway interface {
	// Subscribe returns the change channel. Events carry no data and
	// are coalesced; the consumer reads the latest selection, never a
	// stale one. The channel is never closed.
	Subscribe() <-chan struct{}

	// Read resolves the current selection under the preference. ok is
	// false when no matching offer remains or the context deadline
	// fires first; the event is then dropped. Empty payloads never
	// leave the gateway.
	Read(ctx context.Context, pref Preference) (sel Selection, ok bool)

	// Write replaces the active selection.
	Write(mime string, data []byte) error

	// Clear withdraws the current offer.
	Clear()

	Close()
}
