package ops

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stashd/stash/internal/config"
	"github.com/stashd/stash/internal/db"
	"github.com/stashd/stash/internal/filter"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "stash.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func testConfig() *config.Config {
	return config.DefaultConfig()
}

func newFilter(t *testing.T, cfg *config.Config) *filter.Filter {
	t.Helper()
	f, err := filter.New(cfg)
	if err != nil {
		t.Fatalf("filter.New failed: %v", err)
	}
	return f
}

// mustStore commits a textual payload and returns its id.
func mustStore(t *testing.T, database *sql.DB, cfg *config.Config, text string) int64 {
	t.Helper()
	out, err := Store(database, cfg, newFilter(t, cfg), StoreInput{Payload: []byte(text)})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !out.Stored {
		t.Fatalf("Store(%q) not stored: %+v", text, out)
	}
	return out.ID
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"": FormatTSV, "tsv": FormatTSV, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}
