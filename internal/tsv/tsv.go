// Package tsv implements the line-oriented history interchange format of
// the predecessor tool: one entry per line, `<id>\t<preview>\n`, with
// backslash escapes for the characters that would break the framing.
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stashd/stash/internal/entry"
	stasherr "github.com/stashd/stash/internal/errors"
)

// Line is one decoded record. TSV carries no payload; the preview doubles
// as the payload on import of legacy text-only histories.
type Line struct {
	ID      int64
	Preview string
}

// Escape protects the framing characters with a leading backslash.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape inverts Escape. A trailing or unknown backslash sequence is
// malformed.
func Unescape(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("trailing backslash")
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

// EncodeLine formats a single record without the trailing newline.
func EncodeLine(id int64, preview string) string {
	return strconv.FormatInt(id, 10) + "\t" + Escape(preview)
}

// Encode writes one line per entry in the given order.
func Encode(w io.Writer, entries []entry.Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := bw.WriteString(EncodeLine(e.ID, e.Preview)); err != nil {
			return stasherr.NewIo("write tsv", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return stasherr.NewIo("write tsv", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return stasherr.NewIo("write tsv", err)
	}
	return nil
}

// DecodeLine parses one record. The id must be a decimal integer and a
// tab must separate it from the preview.
func DecodeLine(s string) (Line, error) {
	idRaw, previewRaw, ok := strings.Cut(s, "\t")
	if !ok {
		return Line{}, fmt.Errorf("missing tab separator")
	}
	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil {
		return Line{}, fmt.Errorf("invalid id %q", idRaw)
	}
	preview, err := Unescape(previewRaw)
	if err != nil {
		return Line{}, err
	}
	return Line{ID: id, Preview: preview}, nil
}

// Decoder streams records from a reader one line at a time so that an
// import never holds the whole file in memory.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder wraps r. Lines up to 16 MiB are accepted.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Decoder{scanner: sc}
}

// Next returns the following record, io.EOF at end of input, or a usage
// error naming the malformed line. Blank lines are skipped.
func (d *Decoder) Next() (Line, error) {
	for d.scanner.Scan() {
		d.line++
		raw := d.scanner.Text()
		if raw == "" {
			continue
		}
		rec, err := DecodeLine(raw)
		if err != nil {
			return Line{}, stasherr.NewUsage("malformed tsv line %d: %v", d.line, err)
		}
		return rec, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Line{}, stasherr.NewIo("read tsv", err)
	}
	return Line{}, io.EOF
}

// Line reports the input line number (blank lines counted) of the record
// most recently returned by Next.
func (d *Decoder) Line() int { return d.line }
