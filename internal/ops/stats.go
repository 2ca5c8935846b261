package ops

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/stashd/stash/internal/db"
	stasherr "github.com/stashd/stash/internal/errors"
)

// StatsInput shapes the stats report.
type StatsInput struct {
	// JSON emits the raw counters instead of the human summary.
	JSON bool
}

// Stats writes a store summary to w.
func Stats(database *sql.DB, w io.Writer, input StatsInput) (*db.Stats, error) {
	s, err := db.GetStats(database)
	if err != nil {
		return nil, err
	}
	if input.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return nil, stasherr.NewIo("write stats", err)
		}
		return s, nil
	}
	_, err = fmt.Fprintf(w, "entries: %d (%d active, %d expired)\npayload bytes: %s\ndatabase pages: %d\n",
		s.Total, s.Active, s.Expired, humanize.IBytes(uint64(s.Bytes)), s.Pages)
	if err != nil {
		return nil, stasherr.NewIo("write stats", err)
	}
	return s, nil
}
