package ops

import (
	"database/sql"
	"io"
	"time"
	"unicode/utf8"

	"github.com/stashd/stash/internal/config"
	"github.com/stashd/stash/internal/db"
	"github.com/stashd/stash/internal/entry"
	stasherr "github.com/stashd/stash/internal/errors"
	"github.com/stashd/stash/internal/tsv"
)

// ImportInput streams a legacy TSV history.
type ImportInput struct {
	In io.Reader
}

// ImportOutput counts the outcome per line.
type ImportOutput struct {
	Inserted int64 `json:"inserted"`
	Skipped  int64 `json:"skipped"`
}

// Import replays a TSV listing into the store. The format carries no
// payload, so the preview is stored as a UTF-8 text payload the way the
// legacy tool kept it. The whole import is one transaction; a malformed
// or unsupported line aborts it with nothing written.
func Import(database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	tx, err := database.Begin()
	if err != nil {
		return nil, stasherr.NewIo("begin import", err)
	}
	defer tx.Rollback()

	out := &ImportOutput{}
	now := time.Now().Unix()
	dec := tsv.NewDecoder(input.In)
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !utf8.ValidString(rec.Preview) {
			return nil, stasherr.NewUnsupportedTsv(dec.Line(), "payload is not valid UTF-8")
		}

		payload := []byte(rec.Preview)
		e := &entry.Entry{
			CreatedAt:   now,
			Mime:        entry.CanonicalTextMime,
			Payload:     payload,
			Preview:     entry.Preview(payload, entry.CanonicalTextMime, cfg.PreviewWidth),
			ContentHash: entry.Hash(payload),
		}
		res, err := db.InsertTx(tx, e, cfg.MaxDedupeSearch, cfg.MaxItems)
		if err != nil {
			return nil, err
		}
		if res.Duplicate {
			out.Skipped++
			continue
		}
		out.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return nil, stasherr.NewIo("commit import", err)
	}
	return out, nil
}
