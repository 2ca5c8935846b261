package ops

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stashd/stash/internal/db"
	stasherr "github.com/stashd/stash/internal/errors"
)

// DeleteInput names what to remove. With an empty Arg, ids or listing
// lines are read from In, one per line. Confirm, when non-nil, gates
// the bulk paths (query and stdin); declining is a clean no-op.
// Single-id deletes are never gated.
type DeleteInput struct {
	Arg string
	// TypeHint forces the interpretation of Arg: TypeID, TypeQuery, or
	// empty for the unambiguous-numeric heuristic.
	TypeHint string
	In       io.Reader
	Confirm  func(prompt string) bool
}

// DeleteOutput reports the rows removed, or that the user declined.
type DeleteOutput struct {
	Deleted  int64 `json:"deleted"`
	Declined bool  `json:"declined,omitempty"`
}

// Delete removes entries by id or by payload substring. Deleting
// nothing is a not-found error so scripts can distinguish a miss.
func Delete(database *sql.DB, input DeleteInput) (*DeleteOutput, error) {
	if input.Arg == "" {
		if input.In == nil {
			return nil, stasherr.NewUsage("delete needs an argument or lines on stdin")
		}
		return deleteFromLines(database, input.In, input.Confirm)
	}

	switch input.TypeHint {
	case TypeID:
		id, err := strconv.ParseInt(input.Arg, 10, 64)
		if err != nil {
			return nil, stasherr.NewUsage("invalid id %q", input.Arg)
		}
		return deleteByID(database, id)
	case TypeQuery:
		return deleteByQuery(database, input.Arg, input.Confirm)
	case "":
		if id, err := strconv.ParseInt(input.Arg, 10, 64); err == nil {
			return deleteByID(database, id)
		}
		return deleteByQuery(database, input.Arg, input.Confirm)
	default:
		return nil, stasherr.NewUsage("unknown delete type %q: want id or query", input.TypeHint)
	}
}

func deleteByID(database *sql.DB, id int64) (*DeleteOutput, error) {
	removed, err := db.DeleteByID(database, id)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, stasherr.NewNotFound(id)
	}
	return &DeleteOutput{Deleted: 1}, nil
}

func deleteByQuery(database *sql.DB, query string, confirm func(string) bool) (*DeleteOutput, error) {
	if confirm != nil && !confirm(fmt.Sprintf("delete every entry matching %q?", query)) {
		return &DeleteOutput{Declined: true}, nil
	}
	n, err := db.DeleteByQuery(database, query)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, stasherr.NewNotFoundQuery()
	}
	return &DeleteOutput{Deleted: n}, nil
}

// deleteFromLines removes the entry named by every non-blank stdin
// line. The ids are collected first so the gate can name a count; ids
// that are already gone are counted as misses, not errors, so a piped
// listing can be replayed.
func deleteFromLines(database *sql.DB, r io.Reader, confirm func(string) bool) (*DeleteOutput, error) {
	var ids []int64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := parseEntryRef(line)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, stasherr.NewIo("read stdin", err)
	}
	if len(ids) == 0 {
		return nil, stasherr.NewNotFoundQuery()
	}
	if confirm != nil && !confirm(fmt.Sprintf("delete %d entries?", len(ids))) {
		return &DeleteOutput{Declined: true}, nil
	}
	var deleted int64
	for _, id := range ids {
		removed, err := db.DeleteByID(database, id)
		if err != nil {
			return nil, err
		}
		if removed {
			deleted++
		}
	}
	if deleted == 0 {
		return nil, stasherr.NewNotFoundQuery()
	}
	return &DeleteOutput{Deleted: deleted}, nil
}
