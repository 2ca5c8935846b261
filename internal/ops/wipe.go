package ops

import (
	"database/sql"

	"github.com/stashd/stash/internal/db"
)

// WipeInput scopes a wipe. Confirm, when non-nil, gates the operation;
// declining is a clean no-op.
type WipeInput struct {
	ExpiredOnly bool
	Confirm     func(prompt string) bool
}

// WipeOutput reports the rows removed, or that the user declined.
type WipeOutput struct {
	Wiped    int64 `json:"wiped"`
	Declined bool  `json:"declined,omitempty"`
}

// Wipe deletes all rows, or only the expired ones.
func Wipe(database *sql.DB, input WipeInput) (*WipeOutput, error) {
	if input.Confirm != nil {
		prompt := "wipe the entire history?"
		if input.ExpiredOnly {
			prompt = "wipe all expired entries?"
		}
		if !input.Confirm(prompt) {
			return &WipeOutput{Declined: true}, nil
		}
	}
	n, err := db.Wipe(database, input.ExpiredOnly)
	if err != nil {
		return nil, err
	}
	return &WipeOutput{Wiped: n}, nil
}
