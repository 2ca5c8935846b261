package db

import (
	"database/sql"
	"sort"

	"github.com/stashd/stash/internal/entry"
	stasherr "github.com/stashd/stash/internal/errors"
)

// InsertResult reports the outcome of an insert attempt.
type InsertResult struct {
	// ID of the committed row; zero when Duplicate.
	ID int64
	// Duplicate is set when a row within the dedup window shares the
	// candidate's content hash. The existing row is not promoted.
	Duplicate   bool
	DuplicateOf int64
	// Trimmed lists ids removed to keep the active count within bound.
	Trimmed []int64
}

// Insert commits a candidate entry in a single transaction: dedup probe,
// row insert, trim to cap. The store assigns id and keeps created_at,
// content_hash and preview exactly as given.
func Insert(database *sql.DB, e *entry.Entry, dedupeWindow, maxItems int64) (*InsertResult, error) {
	tx, err := database.Begin()
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	defer tx.Rollback()

	res, err := insertTx(tx, e, dedupeWindow, maxItems)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapSQLiteError("history", err)
	}
	return res, nil
}

// InsertTx is Insert within a caller-owned transaction; used by the
// streaming TSV import so that a malformed line aborts the whole batch.
func InsertTx(tx *sql.Tx, e *entry.Entry, dedupeWindow, maxItems int64) (*InsertResult, error) {
	return insertTx(tx, e, dedupeWindow, maxItems)
}

func insertTx(tx *sql.Tx, e *entry.Entry, dedupeWindow, maxItems int64) (*InsertResult, error) {
	// Probe the most recent active rows for the same hash. A zero or
	// negative window disables dedup.
	if dedupeWindow > 0 {
		var existing int64
		err := tx.QueryRow(`
			SELECT id FROM (
				SELECT id, content_hash FROM entries
				WHERE is_expired = 0
				ORDER BY id DESC LIMIT ?
			) WHERE content_hash = ? LIMIT 1
		`, dedupeWindow, e.ContentHash).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			// no duplicate, fall through
		case err != nil:
			return nil, mapSQLiteError("history", err)
		default:
			return &InsertResult{Duplicate: true, DuplicateOf: existing}, nil
		}
	}

	res, err := tx.Exec(`
		INSERT INTO entries (created_at, mime, payload, preview, source_app, ttl_seconds, is_expired, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, e.CreatedAt, e.Mime, e.Payload, e.Preview, toNullString(e.SourceApp), toNullInt64(e.TTLSeconds), e.ContentHash)
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	e.ID = id

	trimmed, err := trimTx(tx, maxItems)
	if err != nil {
		return nil, err
	}

	return &InsertResult{ID: id, Trimmed: trimmed}, nil
}

// trimTx deletes the oldest active rows until the active count is within
// max. Expired rows are left for the reaper and `db wipe --expired`.
func trimTx(tx *sql.Tx, max int64) ([]int64, error) {
	if max <= 0 {
		return nil, nil
	}
	var active int64
	if err := tx.QueryRow(`SELECT COUNT(*) FROM entries WHERE is_expired = 0`).Scan(&active); err != nil {
		return nil, mapSQLiteError("history", err)
	}
	if active <= max {
		return nil, nil
	}

	rows, err := tx.Query(`
		DELETE FROM entries WHERE id IN (
			SELECT id FROM entries WHERE is_expired = 0 ORDER BY id ASC LIMIT ?
		) RETURNING id
	`, active-max)
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	defer rows.Close()

	var trimmed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapSQLiteError("history", err)
		}
		trimmed = append(trimmed, id)
	}
	return trimmed, rows.Err()
}

// TrimTo bounds the active row count outside an insert flow.
func TrimTo(database *sql.DB, max int64) ([]int64, error) {
	tx, err := database.Begin()
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	defer tx.Rollback()

	trimmed, err := trimTx(tx, max)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapSQLiteError("history", err)
	}
	return trimmed, nil
}

const entryColumns = `id, created_at, mime, payload, preview, source_app, ttl_seconds, is_expired, content_hash`

// GetByID retrieves a full entry, payload included.
func GetByID(database *sql.DB, id int64) (*entry.Entry, error) {
	row := database.QueryRow(`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, stasherr.NewNotFound(id)
	}
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	return e, nil
}

// ListOptions filter a listing.
type ListOptions struct {
	IncludeExpired bool
	Limit          int64 // <= 0 means unbounded
}

// List returns entries newest-first without payloads; listings only need
// the committed preview.
func List(database *sql.DB, opts ListOptions) ([]entry.Entry, error) {
	query := `SELECT id, created_at, mime, preview, source_app, ttl_seconds, is_expired FROM entries`
	if !opts.IncludeExpired {
		query += ` WHERE is_expired = 0`
	}
	query += ` ORDER BY id DESC`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := database.Query(query, args...)
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	defer rows.Close()

	var out []entry.Entry
	for rows.Next() {
		var (
			e         entry.Entry
			sourceApp sql.NullString
			ttl       sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Mime, &e.Preview, &sourceApp, &ttl, &e.IsExpired); err != nil {
			return nil, mapSQLiteError("history", err)
		}
		e.SourceApp = fromNullString(sourceApp)
		e.TTLSeconds = fromNullInt64(ttl)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteByID removes a single entry; reports whether a row was removed.
func DeleteByID(database *sql.DB, id int64) (bool, error) {
	res, err := database.Exec(`DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return false, mapSQLiteError("history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapSQLiteError("history", err)
	}
	return n > 0, nil
}

// DeleteByQuery removes every entry whose payload contains the substring,
// case-sensitively, and returns the count.
func DeleteByQuery(database *sql.DB, query string) (int64, error) {
	res, err := database.Exec(`DELETE FROM entries WHERE instr(payload, CAST(? AS BLOB)) > 0`, query)
	if err != nil {
		return 0, mapSQLiteError("history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapSQLiteError("history", err)
	}
	return n, nil
}

// DeleteLast removes the most recent entry; used when the clipboard state
// marks the just-captured value sensitive.
func DeleteLast(database *sql.DB) (bool, error) {
	res, err := database.Exec(`DELETE FROM entries WHERE id = (SELECT MAX(id) FROM entries)`)
	if err != nil {
		return false, mapSQLiteError("history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapSQLiteError("history", err)
	}
	return n > 0, nil
}

// Wipe deletes all rows, or only expired rows, and returns the count.
func Wipe(database *sql.DB, expiredOnly bool) (int64, error) {
	query := `DELETE FROM entries`
	if expiredOnly {
		query += ` WHERE is_expired = 1`
	}
	res, err := database.Exec(query)
	if err != nil {
		return 0, mapSQLiteError("history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapSQLiteError("history", err)
	}
	return n, nil
}

// Expired identifies a freshly aged-out row for live-selection checks.
type Expired struct {
	ID          int64
	ContentHash []byte
}

// MarkExpired flips is_expired on every row whose TTL has elapsed at now,
// in one transaction, and returns the flipped rows in id order. The flag
// never flips back.
func MarkExpired(database *sql.DB, now int64) ([]Expired, error) {
	rows, err := database.Query(`
		UPDATE entries SET is_expired = 1
		WHERE ttl_seconds IS NOT NULL AND is_expired = 0 AND created_at + ttl_seconds <= ?
		RETURNING id, content_hash
	`, now)
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	defer rows.Close()

	var out []Expired
	for rows.Next() {
		var ex Expired
		if err := rows.Scan(&ex.ID, &ex.ContentHash); err != nil {
			return nil, mapSQLiteError("history", err)
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError("history", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stats summarizes the store.
type Stats struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Expired int64 `json:"expired"`
	Bytes   int64 `json:"bytes"`
	Pages   int64 `json:"pages"`
}

// GetStats reads row counts, payload bytes and the page count.
func GetStats(database *sql.DB) (*Stats, error) {
	s := &Stats{}
	err := database.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(is_expired = 0), 0),
		       COALESCE(SUM(is_expired = 1), 0),
		       COALESCE(SUM(LENGTH(payload)), 0)
		FROM entries
	`).Scan(&s.Total, &s.Active, &s.Expired, &s.Bytes)
	if err != nil {
		return nil, mapSQLiteError("history", err)
	}
	if err := database.QueryRow(`PRAGMA page_count;`).Scan(&s.Pages); err != nil {
		return nil, mapSQLiteError("history", err)
	}
	return s, nil
}

// Vacuum compacts the database file.
func Vacuum(database *sql.DB) error {
	if _, err := database.Exec(`VACUUM`); err != nil {
		return mapSQLiteError("history", err)
	}
	return nil
}

func scanEntry(row *sql.Row) (*entry.Entry, error) {
	var (
		e         entry.Entry
		sourceApp sql.NullString
		ttl       sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.CreatedAt, &e.Mime, &e.Payload, &e.Preview, &sourceApp, &ttl, &e.IsExpired, &e.ContentHash)
	if err != nil {
		return nil, err
	}
	e.SourceApp = fromNullString(sourceApp)
	e.TTLSeconds = fromNullInt64(ttl)
	return &e, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func fromNullInt64(nn sql.NullInt64) *int64 {
	if !nn.Valid {
		return nil
	}
	return &nn.Int64
}
