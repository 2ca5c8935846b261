package ops

import (
	"database/sql"
	"encoding/json"
	"io"

	"github.com/stashd/stash/internal/db"
	stasherr "github.com/stashd/stash/internal/errors"
	"github.com/stashd/stash/internal/tsv"
)

// ListInput selects and shapes a listing.
type ListInput struct {
	Format         string
	IncludeExpired bool
	Limit          int64
}

// ListOutput reports how many entries were written.
type ListOutput struct {
	Count int `json:"count"`
}

// List writes entries newest-first to w, one line each: TSV id/preview
// pairs or JSON objects without payloads.
func List(database *sql.DB, w io.Writer, input ListInput) (*ListOutput, error) {
	format, err := ParseFormat(input.Format)
	if err != nil {
		return nil, err
	}

	entries, err := db.List(database, db.ListOptions{
		IncludeExpired: input.IncludeExpired,
		Limit:          input.Limit,
	})
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		for i := range entries {
			if err := enc.Encode(&entries[i]); err != nil {
				return nil, stasherr.NewIo("write listing", err)
			}
		}
	default:
		if err := tsv.Encode(w, entries); err != nil {
			return nil, err
		}
	}
	return &ListOutput{Count: len(entries)}, nil
}
