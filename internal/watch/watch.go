// Package watch runs the capture daemon: a single event loop over
// selection changes and a reaper timer, feeding the filter and the
// store. The waits for events, reaper ticks and reconnect backoff are
// channel receives; a capture in progress (selection read, store write,
// busy-store retries) finishes before cancellation is seen.
package watch

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stashd/stash/internal/clip"
	"github.com/stashd/stash/internal/config"
	"github.com/stashd/stash/internal/entry"
	stasherr "github.com/stashd/stash/internal/errors"
	"github.com/stashd/stash/internal/filter"
	"github.com/stashd/stash/internal/focus"
	"github.com/stashd/stash/internal/ops"
)

const (
	backoffInitial = time.Second
	backoffCap     = 30 * time.Second
	busyRetries    = 3
	busyRetryDelay = 100 * time.Millisecond
)

// Options configure a watch run.
type Options struct {
	// Preference selects which offer each change resolves.
	Preference clip.Preference
	// TTLSeconds, when non-nil, stamps every capture with an expiry.
	TTLSeconds *int64
}

// Loop is the daemon state. One Loop runs per process.
type Loop struct {
	database *sql.DB
	cfg      *config.Config
	filter   *filter.Filter
	oracle   focus.Oracle
	logger   *slog.Logger
	opts     Options

	// newGateway is called until a display connection succeeds; tests
	// substitute a fake.
	newGateway func() (clip.Gateway, error)
}

// New assembles a loop. The gateway is not connected yet; Run does that
// with backoff so the daemon survives starting before the compositor.
func New(database *sql.DB, cfg *config.Config, f *filter.Filter, oracle focus.Oracle,
	newGateway func() (clip.Gateway, error), logger *slog.Logger, opts Options) *Loop {
	session := ulid.Make().String()
	return &Loop{
		database:   database,
		cfg:        cfg,
		filter:     f,
		oracle:     oracle,
		logger:     logger.With("session", session),
		opts:       opts,
		newGateway: newGateway,
	}
}

// Run blocks until ctx is cancelled. Cancellation is a clean shutdown:
// the loop stops consuming events, closes the gateway and returns nil.
// A cancellation that arrives while the gateway is still being connected
// returns a Cancelled error instead, which maps to exit code 0.
func (l *Loop) Run(ctx context.Context) error {
	gw, err := l.connect(ctx)
	if err != nil {
		return err
	}
	defer gw.Close()

	l.logger.Info("watching selection",
		"preference", l.opts.Preference.String(),
		"reap_interval", l.cfg.ReapInterval)

	events := gw.Subscribe()
	ticker := time.NewTicker(l.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("shutting down")
			return nil
		case <-events:
			l.handleEvent(ctx, gw)
		case <-ticker.C:
			l.reap(time.Now().Unix(), gw)
		}
	}
}

// connect dials the gateway with exponential backoff capped at 30s. A
// daemon started at session setup may race the compositor.
func (l *Loop) connect(ctx context.Context) (clip.Gateway, error) {
	delay := backoffInitial
	for {
		gw, err := l.newGateway()
		if err == nil {
			return gw, nil
		}
		if !stasherr.Is(err, stasherr.ErrWaylandUnavailable) {
			return nil, err
		}
		l.logger.Warn("clipboard unavailable, retrying", "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, stasherr.NewCancelled()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > backoffCap {
			delay = backoffCap
		}
	}
}

// handleEvent resolves the latest selection and offers it to the store.
// Log lines carry sizes and mimes, never payload bytes.
func (l *Loop) handleEvent(ctx context.Context, gw clip.Gateway) {
	var sourceApp *string
	if app, ok := l.oracle.Current(); ok {
		sourceApp = &app
	}

	readCtx, cancel := context.WithTimeout(ctx, l.cfg.ReadDeadline)
	sel, ok := gw.Read(readCtx, l.opts.Preference)
	cancel()
	if !ok {
		l.logger.Debug("selection event carried no matching offer")
		return
	}

	out, err := l.storeWithRetry(ops.StoreInput{
		Payload:    sel.Data,
		Mime:       sel.Mime,
		SourceApp:  sourceApp,
		TTLSeconds: l.opts.TTLSeconds,
	})
	if err != nil {
		l.logger.Error("capture failed", "mime", sel.Mime, "size", len(sel.Data), "error", err)
		return
	}

	switch {
	case out.Rejected:
		l.logger.Warn("capture rejected", "mime", sel.Mime, "size", len(sel.Data),
			"decision", "rejected", "reason", out.Reason)
	case out.Duplicate:
		l.logger.Debug("capture deduplicated", "mime", sel.Mime, "size", len(sel.Data),
			"decision", "duplicate", "duplicate_of", out.DuplicateOf)
	default:
		l.logger.Info("captured", "id", out.ID, "mime", sel.Mime, "size", len(sel.Data),
			"decision", "stored", "trimmed", len(out.Trimmed))
	}
}

// storeWithRetry retries a busy store a few times; the writer lock is
// shared with short-lived CLI processes.
func (l *Loop) storeWithRetry(input ops.StoreInput) (*ops.StoreOutput, error) {
	var out *ops.StoreOutput
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		out, err = ops.Store(l.database, l.cfg, l.filter, input)
		if err == nil || !stasherr.Is(err, stasherr.ErrStoreBusy) {
			return out, err
		}
		time.Sleep(busyRetryDelay)
	}
	return out, err
}

// reap ages out overdue entries and clears the live selection when its
// content just expired. The selection holds one value, so at most one
// clear per cycle.
func (l *Loop) reap(now int64, gw clip.Gateway) {
	out, err := ops.Expire(l.database, ops.ExpireInput{Now: now})
	if err != nil {
		l.logger.Error("reaper failed", "error", err)
		return
	}
	if out.Expired == 0 {
		return
	}
	l.logger.Info("expired entries", "count", out.Expired)

	readCtx, cancel := context.WithTimeout(context.Background(), l.cfg.ReadDeadline)
	sel, ok := gw.Read(readCtx, clip.PrefAny)
	cancel()
	if !ok {
		return
	}
	liveHash := entry.Hash(sel.Data)
	for _, ex := range out.Flipped {
		if bytes.Equal(ex.ContentHash, liveHash) {
			gw.Clear()
			l.logger.Info("cleared live selection", "id", ex.ID)
			return
		}
	}
}
