package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/stashd/stash/internal/config"
	"github.com/stashd/stash/internal/db"
	stasherr "github.com/stashd/stash/internal/errors"
	"github.com/stashd/stash/internal/filter"
	"github.com/stashd/stash/internal/ops"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "stash.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// testConfig returns a default config for testing.
func testConfig() *config.Config {
	return config.DefaultConfig()
}

// runCLI runs the app with stdin substituted by the given payload and
// stdout captured. It returns whatever the command printed.
func runCLI(t *testing.T, app *cli.App, stdin string, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = outW

	oldStdin := os.Stdin
	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdin = inR
	go func() {
		_, _ = inW.WriteString(stdin)
		inW.Close()
	}()

	runErr := app.Run(append([]string{"stash"}, args...))

	os.Stdin = oldStdin
	outW.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(outR)
	os.Stdout = oldStdout

	return buf.String(), runErr
}

func mustStore(t *testing.T, database *sql.DB, cfg *config.Config, text string) {
	t.Helper()
	f, err := filter.New(cfg)
	if err != nil {
		t.Fatalf("filter.New failed: %v", err)
	}
	out, err := ops.Store(database, cfg, f, ops.StoreInput{Payload: []byte(text)})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !out.Stored {
		t.Fatalf("Store = %+v, want stored", out)
	}
}

func TestCLIStoreAndList(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	app := newCLIApp(database, testConfig())

	stdout, err := runCLI(t, app, "hello", "store")
	if err != nil {
		t.Fatalf("store command failed: %v", err)
	}
	var output ops.StoreOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}
	if !output.Stored || output.ID != 1 {
		t.Errorf("store output = %+v, want stored id 1", output)
	}

	stdout, err = runCLI(t, app, "", "list")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}
	if stdout != "1\thello\n" {
		t.Errorf("listing = %q, want %q", stdout, "1\thello\n")
	}
}

func TestCLIStoreRejectedIsNotAnError(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	app := newCLIApp(database, testConfig())

	stdout, err := runCLI(t, app, "   \n", "store")
	if err != nil {
		t.Fatalf("store command failed: %v", err)
	}
	var output ops.StoreOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}
	if !output.Rejected || output.Stored {
		t.Errorf("store output = %+v, want rejected", output)
	}
	if strings.Contains(stdout, "   \n") {
		t.Error("rejection output must not echo the payload")
	}
}

func TestCLIStoreEmptyPayloadRejected(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	app := newCLIApp(database, testConfig())

	stdout, err := runCLI(t, app, "", "store")
	if err != nil {
		t.Fatalf("store command failed: %v", err)
	}
	var output ops.StoreOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}
	if !output.Rejected {
		t.Errorf("store output = %+v, want rejected empty payload", output)
	}
}

func TestCLIListJSON(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "hello")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "", "list", "--format", "json")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}
	if !strings.Contains(stdout, `"preview":"hello"`) {
		t.Errorf("json listing = %q, want a preview field", stdout)
	}
	if strings.Contains(stdout, `"payload"`) {
		t.Error("json listing must not carry payloads")
	}
}

func TestCLIDecode(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "payload bytes")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "", "decode", "1")
	if err != nil {
		t.Fatalf("decode command failed: %v", err)
	}
	if stdout != "payload bytes" {
		t.Errorf("decode = %q, want %q", stdout, "payload bytes")
	}
}

func TestCLIDecodeFromStdin(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "picked")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "1\tpicked\n", "decode")
	if err != nil {
		t.Fatalf("decode command failed: %v", err)
	}
	if stdout != "picked" {
		t.Errorf("decode = %q, want %q", stdout, "picked")
	}
}

func TestCLIDelete(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "doomed")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "", "delete", "1")
	if err != nil {
		t.Fatalf("delete command failed: %v", err)
	}
	var output ops.DeleteOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}
	if output.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", output.Deleted)
	}

	_, err = runCLI(t, app, "", "delete", "1")
	if !stasherr.Is(err, stasherr.ErrNotFound) {
		t.Errorf("second delete = %v, want not-found", err)
	}
}

func TestCLIDeleteQueryType(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "call 911 now")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "", "delete", "--type", "query", "911")
	if err != nil {
		t.Fatalf("delete command failed: %v", err)
	}
	var output ops.DeleteOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}
	if output.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", output.Deleted)
	}
}

func TestCLIWipe(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "a")
	mustStore(t, database, cfg, "b")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "", "wipe")
	if err != nil {
		t.Fatalf("wipe command failed: %v", err)
	}
	var output ops.WipeOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}
	if output.Wiped != 2 {
		t.Errorf("wiped = %d, want 2", output.Wiped)
	}
}

// Global placement of --ask must reach the wipe action even though the
// subcommand declares its own --ask flag. Off a terminal the liner
// prompt falls back to reading the answer from stdin.
func TestCLIWipeGlobalAskDeclined(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "survivor")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "n\n", "--ask", "wipe")
	if err != nil {
		t.Fatalf("wipe command failed: %v", err)
	}
	if !strings.Contains(stdout, `"declined": true`) {
		t.Errorf("output = %q, want declined", stdout)
	}

	listing, err := runCLI(t, newCLIApp(database, cfg), "", "list")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}
	if !strings.Contains(listing, "survivor") {
		t.Errorf("listing = %q, want the entry to survive a declined wipe", listing)
	}
}

func TestCLIWipeLocalAskDeclined(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "survivor")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "n\n", "wipe", "--ask")
	if err != nil {
		t.Fatalf("wipe command failed: %v", err)
	}
	if !strings.Contains(stdout, `"declined": true`) {
		t.Errorf("output = %q, want declined", stdout)
	}
}

func TestCLIDeleteGlobalAskDeclined(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "secret alpha")
	mustStore(t, database, cfg, "secret beta")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "n\n", "--ask", "delete", "--type", "query", "secret")
	if err != nil {
		t.Fatalf("delete command failed: %v", err)
	}
	if !strings.Contains(stdout, `"declined": true`) {
		t.Errorf("output = %q, want declined", stdout)
	}

	listing, err := runCLI(t, newCLIApp(database, cfg), "", "list")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}
	if !strings.Contains(listing, "secret alpha") || !strings.Contains(listing, "secret beta") {
		t.Errorf("listing = %q, want both entries to survive a declined delete", listing)
	}
}

func TestCLIDeleteAskAccepted(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "secret alpha")
	mustStore(t, database, cfg, "secret beta")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "y\n", "delete", "--ask", "--type", "query", "secret")
	if err != nil {
		t.Fatalf("delete command failed: %v", err)
	}
	if !strings.Contains(stdout, `"deleted": 2`) {
		t.Errorf("output = %q, want 2 deleted", stdout)
	}
}

func TestCLIExportImportRoundTrip(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	cfg := testConfig()

	source := setupTestDB(t)
	mustStore(t, source, cfg, "alpha")
	mustStore(t, source, cfg, "beta")
	exported, err := runCLI(t, newCLIApp(source, cfg), "", "export")
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	target := setupTestDB(t)
	stdout, err := runCLI(t, newCLIApp(target, cfg), exported, "import")
	if err != nil {
		t.Fatalf("import command failed: %v", err)
	}
	var output ops.ImportOutput
	if err := json.Unmarshal([]byte(stdout), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}
	if output.Inserted != 2 {
		t.Errorf("imported = %+v, want 2 inserted", output)
	}
}

func TestCLIStatsJSON(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "counted")
	app := newCLIApp(database, cfg)

	stdout, err := runCLI(t, app, "", "db", "stats", "--json")
	if err != nil {
		t.Fatalf("stats command failed: %v", err)
	}
	var stats struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal([]byte(stdout), &stats); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, stdout)
	}
	if stats.Total != 1 {
		t.Errorf("total = %d, want 1", stats.Total)
	}
}

func TestCLIVacuum(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	app := newCLIApp(database, testConfig())

	if _, err := runCLI(t, app, "", "db", "vacuum"); err != nil {
		t.Fatalf("vacuum command failed: %v", err)
	}
}

func TestCLIMaxItemsFlagOverridesConfig(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	app := newCLIApp(database, testConfig())

	for _, text := range []string{"one", "two"} {
		if _, err := runCLI(t, app, text, "--max-items", "1", "store"); err != nil {
			t.Fatalf("store command failed: %v", err)
		}
	}

	stdout, err := runCLI(t, app, "", "list")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}
	if stdout != "2\ttwo\n" {
		t.Errorf("listing = %q, want only the newest entry", stdout)
	}
}

func TestCLIWatchBadMimeType(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := setupTestDB(t)
	app := newCLIApp(database, testConfig())

	_, err := runCLI(t, app, "", "watch", "--mime-type", "video")
	if !stasherr.Is(err, stasherr.ErrUsage) {
		t.Errorf("watch --mime-type video = %v, want usage error", err)
	}
}

func TestDBPathArg(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"absent", []string{"list"}, ""},
		{"separate", []string{"--db-path", "/tmp/x.db", "list"}, "/tmp/x.db"},
		{"equals", []string{"--db-path=/tmp/y.db", "list"}, "/tmp/y.db"},
		{"dangling", []string{"list", "--db-path"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dbPathArg(tt.args); got != tt.want {
				t.Errorf("dbPathArg = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"usage", stasherr.NewUsage("bad flag"), 2},
		{"not found", stasherr.NewNotFound(7), 4},
		{"store busy", stasherr.NewStoreBusy(nil), 3},
		{"cancelled", stasherr.NewCancelled(), 0},
		{"io", stasherr.NewIo("read", nil), 1},
		{"flag parse", os.ErrInvalid, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
