package ops

import (
	"database/sql"

	"github.com/stashd/stash/internal/db"
)

// Vacuum compacts the database file in place.
func Vacuum(database *sql.DB) error {
	return db.Vacuum(database)
}
