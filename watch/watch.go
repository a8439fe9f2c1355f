// Package watch polls a SQLite database for a version token and runs an
// action once the token settles on a new value. The settings store uses it
// to hot-reload settings edited by another process.
//
//	w := watch.New(db, watch.Options{Interval: 250 * time.Millisecond})
//	go w.OnChange(ctx, reload)
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Detector reads a version token. A different value means something changed.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes a Watcher.
type Options struct {
	// Interval between polls. Default: 1s.
	Interval time.Duration
	// Debounce is how long the token must stay unchanged before the action
	// runs. 0 runs it on the poll that saw the change.
	Debounce time.Duration
	// Detector defaults to PragmaDataVersion.
	Detector Detector
	Logger   *slog.Logger
}

// Watcher is safe for concurrent use; OnChange runs its loop in the caller's
// goroutine.
type Watcher struct {
	db   *sql.DB
	opts Options

	version atomic.Int64

	checks, changes, errors, reloads atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks  int64 `json:"checks"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
	Reloads int64 `json:"reloads"`
}

// New creates a Watcher. Nothing runs until OnChange.
func New(db *sql.DB, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Detector == nil {
		opts.Detector = PragmaDataVersion
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{db: db, opts: opts}
}

// Version is the last token the action was run for, or the seed token.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Stats returns the counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:  w.checks.Load(),
		Changes: w.changes.Load(),
		Errors:  w.errors.Load(),
		Reloads: w.reloads.Load(),
	}
}

// OnChange polls until ctx is done. When the token moves and then holds for
// the debounce window, action runs. A failing action keeps the old token, so
// the change is retried on the next poll.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger
	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: seed version", "error", err)
	} else {
		w.version.Store(v)
	}

	tick := time.NewTicker(w.opts.Interval)
	defer tick.Stop()

	var settle *time.Timer
	var settled <-chan time.Time
	pending := int64(-1)
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-tick.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version check", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			w.changes.Add(1)
			pending = cur
			if w.opts.Debounce <= 0 {
				w.run(action, pending)
				pending = -1
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.NewTimer(w.opts.Debounce)
			settled = settle.C

		case <-settled:
			settled = nil
			if pending >= 0 {
				w.run(action, pending)
				pending = -1
			}
		}
	}
}

func (w *Watcher) run(action func() error, v int64) {
	if err := action(); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Error("watch: reload failed", "version", v, "error", err)
		return
	}
	w.reloads.Add(1)
	w.version.Store(v)
	w.opts.Logger.Debug("watch: reloaded", "version", v)
}

// PragmaDataVersion changes whenever another connection commits to the
// database file.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// MaxColumn polls MAX(column) of table. It sees writes from any
// connection, including the watcher's own.
func MaxColumn(table, column string) Detector {
	q := "SELECT COALESCE(MAX(" + quoteIdent(column) + "), 0) FROM " + quoteIdent(table)
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, q).Scan(&v)
		return v, err
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
