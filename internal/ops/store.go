package ops

import (
	"database/sql"
	"os"
	"time"

	"github.com/stashd/stash/internal/config"
	"github.com/stashd/stash/internal/db"
	"github.com/stashd/stash/internal/entry"
	"github.com/stashd/stash/internal/filter"
)

// Clipboard-state markers honored like the predecessor tool. A manager
// such as a password prompt sets the variable before triggering a copy.
const (
	ClipboardStateSensitive = "sensitive"
	ClipboardStateClear     = "clear"
)

// StoreInput contains a candidate capture.
type StoreInput struct {
	Payload []byte
	// Mime of the payload; empty means sniff from the bytes.
	Mime      string
	SourceApp *string
	// TTLSeconds, when set, ages the entry out after this many seconds.
	TTLSeconds *int64
	// Now is the capture instant; zero means the current time.
	Now int64
}

// StoreOutput reports what happened to the candidate.
type StoreOutput struct {
	Stored bool  `json:"stored"`
	ID     int64 `json:"id,omitempty"`

	// Rejected is set when a filter policy or the clipboard state
	// refused the capture. Refusals are not errors; the caller exits 0.
	Rejected bool   `json:"rejected,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Duplicate   bool    `json:"duplicate,omitempty"`
	DuplicateOf int64   `json:"duplicate_of,omitempty"`
	Trimmed     []int64 `json:"trimmed,omitempty"`

	// Wiped reports rows removed by a clear marker before the refusal.
	Wiped int64 `json:"wiped,omitempty"`
}

// Store runs a candidate through the clipboard-state contract, the
// filter and the insert path. Both the store command and the watch
// daemon commit captures through here.
func Store(database *sql.DB, cfg *config.Config, f *filter.Filter, input StoreInput) (*StoreOutput, error) {
	switch os.Getenv(config.EnvClipboardState) {
	case ClipboardStateSensitive:
		// The value on offer is sensitive and so is whatever was just
		// captured from the same burst.
		if _, err := db.DeleteLast(database); err != nil {
			return nil, err
		}
		return &StoreOutput{Rejected: true, Reason: "clipboard state sensitive"}, nil
	case ClipboardStateClear:
		wiped, err := db.Wipe(database, false)
		if err != nil {
			return nil, err
		}
		return &StoreOutput{Rejected: true, Reason: "clipboard state clear", Wiped: wiped}, nil
	}

	mime := input.Mime
	if mime == "" {
		mime = entry.DetectMime(input.Payload)
	}

	decision := f.Admit(filter.Candidate{
		Payload:   input.Payload,
		Mime:      mime,
		SourceApp: input.SourceApp,
	})
	if !decision.Admit {
		return &StoreOutput{Rejected: true, Reason: decision.Reason}, nil
	}

	now := input.Now
	if now == 0 {
		now = time.Now().Unix()
	}
	e := &entry.Entry{
		CreatedAt:   now,
		Mime:        mime,
		Payload:     input.Payload,
		Preview:     entry.Preview(input.Payload, mime, cfg.PreviewWidth),
		SourceApp:   input.SourceApp,
		TTLSeconds:  input.TTLSeconds,
		ContentHash: entry.Hash(input.Payload),
	}

	res, err := db.Insert(database, e, cfg.MaxDedupeSearch, cfg.MaxItems)
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		return &StoreOutput{Duplicate: true, DuplicateOf: res.DuplicateOf}, nil
	}
	return &StoreOutput{Stored: true, ID: res.ID, Trimmed: res.Trimmed}, nil
}
