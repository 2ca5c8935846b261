package ops

import (
	"strings"
	"testing"

	"github.com/stashd/stash/internal/config"
	stasherr "github.com/stashd/stash/internal/errors"
)

func TestDelete_NumericArgIsID(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := openTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "doomed")

	out, err := Delete(database, DeleteInput{Arg: "1"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if out.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", out.Deleted)
	}
}

func TestDelete_NonNumericArgIsQuery(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := openTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "secret alpha")
	mustStore(t, database, cfg, "secret beta")
	mustStore(t, database, cfg, "innocent")

	out, err := Delete(database, DeleteInput{Arg: "secret"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if out.Deleted != 2 {
		t.Errorf("Deleted = %d, want 2", out.Deleted)
	}
}

func TestDelete_QueryHintForcesNumericQuery(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := openTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "call 911 now")
	mustStore(t, database, cfg, "unrelated")

	// Without the hint "911" would address id 911.
	out, err := Delete(database, DeleteInput{Arg: "911", TypeHint: TypeQuery})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if out.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", out.Deleted)
	}
}

func TestDelete_IDHintRejectsNonNumeric(t *testing.T) {
	database := openTestDB(t)
	_, err := Delete(database, DeleteInput{Arg: "abc", TypeHint: TypeID})
	if !stasherr.Is(err, stasherr.ErrUsage) {
		t.Errorf("Delete = %v, want usage error", err)
	}
}

func TestDelete_MissingIDIsNotFound(t *testing.T) {
	database := openTestDB(t)
	_, err := Delete(database, DeleteInput{Arg: "5"})
	if !stasherr.Is(err, stasherr.ErrNotFound) {
		t.Errorf("Delete of missing id = %v, want not-found", err)
	}
}

func TestDelete_QueryWithoutMatchIsNotFound(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := openTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "something")

	_, err := Delete(database, DeleteInput{Arg: "absent"})
	if !stasherr.Is(err, stasherr.ErrNotFound) {
		t.Errorf("Delete with no match = %v, want not-found", err)
	}
}

func TestDelete_QueryConfirmDeclinedIsNoop(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := openTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "secret alpha")
	mustStore(t, database, cfg, "secret beta")

	var prompted string
	out, err := Delete(database, DeleteInput{
		Arg: "secret",
		Confirm: func(prompt string) bool {
			prompted = prompt
			return false
		},
	})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !out.Declined || out.Deleted != 0 {
		t.Errorf("Delete = %+v, want declined no-op", out)
	}
	if !strings.Contains(prompted, "secret") {
		t.Errorf("prompt = %q, want the query named", prompted)
	}

	stats, err := Stats(database, discard{}, StatsInput{JSON: true})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d after declined delete, want 2", stats.Total)
	}
}

func TestDelete_IDConfirmNotPrompted(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := openTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "single")

	// A single-id delete is not a bulk operation and never prompts.
	out, err := Delete(database, DeleteInput{
		Arg:     "1",
		Confirm: func(string) bool { return false },
	})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if out.Deleted != 1 || out.Declined {
		t.Errorf("Delete = %+v, want 1 deleted without prompting", out)
	}
}

func TestDelete_StdinLines(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := openTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "one")
	mustStore(t, database, cfg, "two")
	mustStore(t, database, cfg, "three")

	in := strings.NewReader("1\tone\n\n3\n")
	out, err := Delete(database, DeleteInput{In: in})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if out.Deleted != 2 {
		t.Errorf("Deleted = %d, want 2", out.Deleted)
	}

	var sb strings.Builder
	res, err := List(database, &sb, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if res.Count != 1 || !strings.Contains(sb.String(), "two") {
		t.Errorf("listing = %q, want only the second entry", sb.String())
	}
}

func TestDelete_StdinConfirmDeclinedIsNoop(t *testing.T) {
	t.Setenv(config.EnvClipboardState, "")
	database := openTestDB(t)
	cfg := testConfig()
	mustStore(t, database, cfg, "one")
	mustStore(t, database, cfg, "two")

	var prompted string
	out, err := Delete(database, DeleteInput{
		In: strings.NewReader("1\tone\n2\ttwo\n"),
		Confirm: func(prompt string) bool {
			prompted = prompt
			return false
		},
	})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !out.Declined || out.Deleted != 0 {
		t.Errorf("Delete = %+v, want declined no-op", out)
	}
	if !strings.Contains(prompted, "2") {
		t.Errorf("prompt = %q, want the entry count named", prompted)
	}

	var sb strings.Builder
	res, err := List(database, &sb, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if res.Count != 2 {
		t.Errorf("Count = %d after declined delete, want 2", res.Count)
	}
}
