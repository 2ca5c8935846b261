// Package ops implements the query surface. Each operation lives in its
// own file with an Input/Output pair; the CLI and the watch daemon are
// thin callers.
package ops

import (
	stasherr "github.com/stashd/stash/internal/errors"
)

// Listing formats.
const (
	FormatTSV  = "tsv"
	FormatJSON = "json"
)

// ParseFormat validates a --format argument. Empty selects TSV, the
// non-interactive default.
func ParseFormat(s string) (string, error) {
	switch s {
	case "", FormatTSV:
		return FormatTSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", stasherr.NewUsage("unknown format %q: want tsv or json", s)
}

// Delete type hints.
const (
	TypeID    = "id"
	TypeQuery = "query"
)
