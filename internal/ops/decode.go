package ops

import (
	"bufio"
	"database/sql"
	"io"
	"strconv"
	"strings"

	"github.com/stashd/stash/internal/db"
	stasherr "github.com/stashd/stash/internal/errors"
	"github.com/stashd/stash/internal/tsv"
)

// DecodeInput names the entry to decode. Arg is an id or a full TSV
// listing line; an empty Arg reads one such line from In, so the command
// composes with a line picker.
type DecodeInput struct {
	Arg string
	In  io.Reader
}

// Decode writes the entry payload to w byte-exact.
func Decode(database *sql.DB, w io.Writer, input DecodeInput) error {
	arg := input.Arg
	if arg == "" {
		if input.In == nil {
			return stasherr.NewUsage("decode needs an id argument or a line on stdin")
		}
		line, err := bufio.NewReader(input.In).ReadString('\n')
		if err != nil && err != io.EOF {
			return stasherr.NewIo("read stdin", err)
		}
		arg = strings.TrimSuffix(line, "\n")
		if arg == "" {
			return stasherr.NewUsage("decode needs an id argument or a line on stdin")
		}
	}

	id, err := parseEntryRef(arg)
	if err != nil {
		return err
	}

	e, err := db.GetByID(database, id)
	if err != nil {
		return err
	}
	if _, err := w.Write(e.Payload); err != nil {
		return stasherr.NewIo("write payload", err)
	}
	return nil
}

// parseEntryRef accepts a bare id or a TSV listing line and returns the
// id either way.
func parseEntryRef(arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	rec, err := tsv.DecodeLine(arg)
	if err != nil {
		return 0, stasherr.NewUsage("not an id or listing line: %q", arg)
	}
	return rec.ID, nil
}
