// Package focus reports the application that currently owns keyboard
// focus, so captures can be attributed to a window class and the
// excluded-apps policy has something to match against.
package focus

// Oracle answers "which application is focused right now".
type Oracle interface {
	// Current returns the focused application identifier. ok is false
	// when no focus information is available; admission policies then
	// treat the capture as unattributed.
	Current() (app string, ok bool)
	Close() error
}

// Noop is the oracle used when the compositor offers no focus protocol.
// Every capture is admitted unattributed.
type Noop struct{}

func (Noop) Current() (string, bool) { return "", false }
func (Noop) Close() error            { return nil }
