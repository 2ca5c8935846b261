package ops

import (
	"database/sql"
	"time"

	"github.com/stashd/stash/internal/db"
)

// ExpireInput stamps the sweep instant; zero means the current time.
type ExpireInput struct {
	Now int64
}

// ExpireOutput reports the entries flipped by this sweep. Flipped carries
// the ids and content hashes the watch daemon needs to clear a live
// selection that just aged out.
type ExpireOutput struct {
	Expired int          `json:"expired"`
	Flipped []db.Expired `json:"-"`
}

// Expire flips every overdue entry to expired. The flag is permanent;
// a second sweep at the same instant flips nothing.
func Expire(database *sql.DB, input ExpireInput) (*ExpireOutput, error) {
	now := input.Now
	if now == 0 {
		now = time.Now().Unix()
	}
	flipped, err := db.MarkExpired(database, now)
	if err != nil {
		return nil, err
	}
	return &ExpireOutput{Expired: len(flipped), Flipped: flipped}, nil
}
