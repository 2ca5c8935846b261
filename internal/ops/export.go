package ops

import (
	"database/sql"
	"io"

	"github.com/stashd/stash/internal/db"
	"github.com/stashd/stash/internal/tsv"
)

// ExportInput scopes a TSV export.
type ExportInput struct {
	// IncludeExpired opts expired rows into the export.
	IncludeExpired bool
}

// ExportOutput reports the lines written.
type ExportOutput struct {
	Exported int `json:"exported"`
}

// Export writes the history as TSV, newest first, in the interchange
// format Import accepts.
func Export(database *sql.DB, w io.Writer, input ExportInput) (*ExportOutput, error) {
	entries, err := db.List(database, db.ListOptions{IncludeExpired: input.IncludeExpired})
	if err != nil {
		return nil, err
	}
	if err := tsv.Encode(w, entries); err != nil {
		return nil, err
	}
	return &ExportOutput{Exported: len(entries)}, nil
}
