package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/stashd/stash/internal/clip"
	"github.com/stashd/stash/internal/config"
	stasherr "github.com/stashd/stash/internal/errors"
	"github.com/stashd/stash/internal/filter"
	"github.com/stashd/stash/internal/focus"
	"github.com/stashd/stash/internal/logging"
	"github.com/stashd/stash/internal/ops"
	"github.com/stashd/stash/internal/watch"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config) *cli.App {
	var verbose, quiet int
	// The global --ask is captured here in Before: subcommands declare
	// their own --ask for the trailing placement, and that declaration
	// shadows the app-level flag inside their contexts.
	var ask bool
	// -v is the repeatable verbosity flag, so the built-in version flag
	// keeps only its long name.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}
	app := &cli.App{
		Name:    "stash",
		Usage:   "Wayland clipboard history",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Count: &verbose, Usage: "More logging; repeatable"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Count: &quiet, Usage: "Less logging; repeatable"},
			&cli.Int64Flag{Name: "max-items", Usage: "Cap on active history entries"},
			&cli.Int64Flag{Name: "max-dedupe-search", Usage: "Recent entries probed for duplicates (0 disables)"},
			&cli.IntFlag{Name: "preview-width", Usage: "Preview width in display cells"},
			&cli.StringFlag{Name: "db-path", Usage: "Database file location"},
			&cli.StringFlag{Name: "excluded-apps", Usage: "Comma-separated window classes never captured"},
			&cli.BoolFlag{Name: "ask", Usage: "Prompt before destructive commands"},
		},
		Before: func(c *cli.Context) error {
			logging.Setup(logging.LevelFromVerbosity(verbose, quiet))
			if c.IsSet("max-items") {
				cfg.MaxItems = c.Int64("max-items")
			}
			if c.IsSet("max-dedupe-search") {
				cfg.MaxDedupeSearch = c.Int64("max-dedupe-search")
			}
			if c.IsSet("preview-width") {
				cfg.PreviewWidth = c.Int("preview-width")
			}
			if c.IsSet("db-path") {
				cfg.DBPath = c.String("db-path")
			}
			if c.IsSet("excluded-apps") {
				cfg.ExcludedApps = config.SplitCSV(c.String("excluded-apps"))
			}
			ask = c.Bool("ask")
			return nil
		},
		Commands: []*cli.Command{
			storeCmd(database, cfg),
			listCmd(database),
			decodeCmd(database),
			deleteCmd(database, &ask),
			wipeCmd(database, &ask),
			importCmd(database, cfg),
			exportCmd(database),
			watchCmd(database, cfg),
			dbCmd(database, &ask),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// storeCmd creates the store command.
func storeCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Store one clipboard entry (reads the payload from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mime", Usage: "Payload mime type (default: sniffed)"},
			&cli.StringFlag{Name: "expire-after", Usage: "Age the entry out after a duration (e.g. 90s, 2h, 7d)"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return stasherr.NewUsage("store reads its payload from stdin")
			}
			payload, err := readStdin()
			if err != nil {
				return stasherr.NewIo("read stdin", err)
			}

			input := ops.StoreInput{
				Payload: payload,
				Mime:    c.String("mime"),
			}
			if s := c.String("expire-after"); s != "" {
				d, err := config.ParseDuration(s)
				if err != nil {
					return err
				}
				ttl := int64(d / time.Second)
				input.TTLSeconds = &ttl
			}

			f, err := filter.New(cfg)
			if err != nil {
				return err
			}
			output, err := ops.Store(database, cfg, f, input)
			if err != nil {
				return err
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List history entries, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: tsv|json"},
			&cli.BoolFlag{Name: "expired", Usage: "Include expired entries"},
			&cli.Int64Flag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum entries to print (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			_, err := ops.List(database, os.Stdout, ops.ListInput{
				Format:         c.String("format"),
				IncludeExpired: c.Bool("expired"),
				Limit:          c.Int64("limit"),
			})
			return err
		},
	}
}

// decodeCmd creates the decode command.
func decodeCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Print an entry payload byte-exact (id argument or a listing line on stdin)",
		ArgsUsage: "[id]",
		Action: func(c *cli.Context) error {
			input := ops.DecodeInput{Arg: c.Args().First()}
			if input.Arg == "" {
				if !stdinHasData() {
					return stasherr.NewUsage("decode needs an id argument or a line on stdin")
				}
				input.In = os.Stdin
			}
			return ops.Decode(database, os.Stdout, input)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(database *sql.DB, globalAsk *bool) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete entries by id, substring query, or listing lines on stdin",
		ArgsUsage: "[id|query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Force the argument interpretation: id|query"},
			&cli.BoolFlag{Name: "ask", Usage: "Prompt before bulk deletes"},
		},
		Action: func(c *cli.Context) error {
			input := ops.DeleteInput{
				Arg:      c.Args().First(),
				TypeHint: c.String("type"),
			}
			if c.Bool("ask") || *globalAsk {
				input.Confirm = askConfirm
			}
			if input.Arg == "" {
				if !stdinHasData() {
					return stasherr.NewUsage("delete needs an argument or listing lines on stdin")
				}
				input.In = os.Stdin
			}
			output, err := ops.Delete(database, input)
			if err != nil {
				return err
			}
			return outputJSON(output)
		},
	}
}

// wipeCmd creates the wipe command. The same surface hangs under
// `db wipe` for symmetry with the other maintenance subcommands.
func wipeCmd(database *sql.DB, globalAsk *bool) *cli.Command {
	return &cli.Command{
		Name:  "wipe",
		Usage: "Delete the whole history",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "expired", Usage: "Only delete expired entries"},
			&cli.BoolFlag{Name: "ask", Usage: "Prompt before deleting"},
		},
		Action: wipeAction(database, globalAsk),
	}
}

func wipeAction(database *sql.DB, globalAsk *bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		input := ops.WipeInput{ExpiredOnly: c.Bool("expired")}
		if c.Bool("ask") || *globalAsk {
			input.Confirm = askConfirm
		}
		output, err := ops.Wipe(database, input)
		if err != nil {
			return err
		}
		return outputJSON(output)
	}
}

// importCmd creates the import command.
func importCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Replay a TSV listing from stdin into the store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: "tsv", Usage: "Input format (only tsv)"},
		},
		Action: func(c *cli.Context) error {
			if f := c.String("type"); f != "tsv" {
				return stasherr.NewUsage("unsupported import format %q: want tsv", f)
			}
			if !stdinHasData() {
				return stasherr.NewUsage("import reads TSV lines from stdin")
			}
			output, err := ops.Import(database, cfg, ops.ImportInput{In: os.Stdin})
			if err != nil {
				return err
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the history as TSV to stdout",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "expired", Usage: "Include expired entries"},
		},
		Action: func(c *cli.Context) error {
			_, err := ops.Export(database, os.Stdout, ops.ExportInput{
				IncludeExpired: c.Bool("expired"),
			})
			return err
		},
	}
}

// watchCmd creates the watch command, the long-running capture daemon.
func watchCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the clipboard and capture every selection change",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mime-type", Usage: "Selections to capture: any|text|image"},
			&cli.StringFlag{Name: "expire-after", Usage: "Age captures out after a duration (e.g. 90s, 2h, 7d)"},
		},
		Action: func(c *cli.Context) error {
			mimeType := firstNonEmpty(c.String("mime-type"), cfg.MimePreference)
			pref, ok := clip.ParsePreference(mimeType)
			if !ok {
				return stasherr.NewUsage("invalid --mime-type %q: want any, text or image", mimeType)
			}
			opts := watch.Options{Preference: pref}
			if s := firstNonEmpty(c.String("expire-after"), cfg.ExpireAfter); s != "" {
				d, err := config.ParseDuration(s)
				if err != nil {
					return err
				}
				ttl := int64(d / time.Second)
				opts.TTLSeconds = &ttl
			}

			f, err := filter.New(cfg)
			if err != nil {
				return err
			}
			oracle := focus.Detect(slog.Default())
			defer oracle.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			newGateway := func() (clip.Gateway, error) { return clip.New(slog.Default()) }
			return watch.New(database, cfg, f, oracle, newGateway, slog.Default(), opts).Run(ctx)
		},
	}
}

// dbCmd groups store maintenance under one subcommand.
func dbCmd(database *sql.DB, globalAsk *bool) *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Store maintenance",
		Subcommands: []*cli.Command{
			{
				Name:  "wipe",
				Usage: "Delete the whole history",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "expired", Usage: "Only delete expired entries"},
					&cli.BoolFlag{Name: "ask", Usage: "Prompt before deleting"},
				},
				Action: wipeAction(database, globalAsk),
			},
			{
				Name:  "stats",
				Usage: "Print store counters",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Emit raw counters as JSON"},
				},
				Action: func(c *cli.Context) error {
					_, err := ops.Stats(database, os.Stdout, ops.StatsInput{JSON: c.Bool("json")})
					return err
				},
			},
			{
				Name:  "vacuum",
				Usage: "Compact the database file",
				Action: func(c *cli.Context) error {
					return ops.Vacuum(database)
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads the whole payload from stdin without trimming; clipboard
// bytes round-trip exactly.
func readStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// askConfirm prompts on the terminal and accepts y/yes.
func askConfirm(prompt string) bool {
	line := liner.NewLiner()
	defer line.Close()
	answer, err := line.Prompt(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
