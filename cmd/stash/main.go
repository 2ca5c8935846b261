package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/stashd/stash/internal/config"
	"github.com/stashd/stash/internal/db"
	stasherr "github.com/stashd/stash/internal/errors"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	cfg, err := config.LoadWithEnv(config.StateDir())
	if err != nil {
		fail(err)
	}
	if err := cfg.ResolveSensitiveRegex(); err != nil {
		fail(err)
	}

	// --db-path must win before the database opens, so it is scanned out
	// of the raw arguments; the urfave parse later keeps cfg consistent.
	dbPath := dbPathArg(os.Args[1:])
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	}
	database, err := db.Open(dbPath)
	if err != nil {
		fail(err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	app := newCLIApp(database, cfg)
	if err := app.Run(os.Args); err != nil {
		fail(err)
	}
}

func dbPathArg(args []string) string {
	for i, a := range args {
		if a == "--db-path" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--db-path="); ok {
			return v
		}
	}
	return ""
}

// fail prints a one-line diagnostic and exits with the contract code.
// Messages carry sizes and mime labels, never payload bytes.
func fail(err error) {
	code := exitCode(err)
	if code != 0 {
		fmt.Fprintf(os.Stderr, "stash: %v\n", err)
	}
	os.Exit(code)
}

// exitCode maps errors to process exit codes. Anything that is not a
// structured error came from flag or command parsing.
func exitCode(err error) int {
	if _, ok := err.(*stasherr.StashError); ok {
		return stasherr.ExitCode(err)
	}
	return 2
}
