package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/phrasemark/dbopen"
	"github.com/hazyhaar/phrasemark/phrase"
	"github.com/hazyhaar/phrasemark/watch"
)

// Schema creates the store tables. The settings table holds a single row;
// revision grows on every Save and is what Watch polls.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	enabled  INTEGER NOT NULL DEFAULT 1,
	sites    TEXT    NOT NULL DEFAULT '[]',
	revision INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS phrases (
	position     INTEGER PRIMARY KEY,
	find         TEXT NOT NULL,
	replacements TEXT NOT NULL DEFAULT '[]'
);`

// Store keeps settings in SQLite.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	interval time.Duration
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithPollInterval sets how often Watch checks for changes. Default: 500ms.
func WithPollInterval(d time.Duration) StoreOption {
	return func(s *Store) { s.interval = d }
}

// NewStore wraps an open database, creating the tables if needed.
func NewStore(db *sql.DB, opts ...StoreOption) (*Store, error) {
	s := &Store{db: db, logger: slog.Default(), interval: 500 * time.Millisecond}
	for _, o := range opts {
		o(s)
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("settings: store schema: %w", err)
	}
	return s, nil
}

// OpenStore opens (or creates) the database file at path.
func OpenStore(path string, opts ...StoreOption) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("settings: open store: %w", err)
	}
	s, err := NewStore(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Load implements Provider. An empty store yields the defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	out := Default()

	var enabled int
	var sites string
	err := s.db.QueryRowContext(ctx, `SELECT enabled, sites FROM settings WHERE id = 1`).Scan(&enabled, &sites)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Settings{}, fmt.Errorf("settings: load: %w", err)
	default:
		out.Enabled = enabled != 0
		out.AllowedHosts = []string{}
		if err := json.Unmarshal([]byte(sites), &out.AllowedHosts); err != nil {
			return Settings{}, fmt.Errorf("settings: load sites: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT find, replacements FROM phrases ORDER BY position`)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: load phrases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var find, repl string
		if err := rows.Scan(&find, &repl); err != nil {
			return Settings{}, fmt.Errorf("settings: scan phrase: %w", err)
		}
		if !utf8.ValidString(find) {
			s.logger.Warn("settings: phrase is not valid UTF-8", "find", find)
		}
		out.Phrases = append(out.Phrases, decodeReplacements(find, repl))
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("settings: load phrases: %w", err)
	}
	return out, nil
}

// decodeReplacements reads the JSON list, or a bare string left by the
// legacy single-replacement shape.
func decodeReplacements(find, raw string) phrase.Phrase {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		if list == nil {
			list = []string{}
		}
		return phrase.Phrase{Find: find, Replacements: list}
	}
	return phrase.Legacy(find, raw)
}

// Save replaces the stored settings.
func (s *Store) Save(ctx context.Context, st Settings) error {
	hosts := st.AllowedHosts
	if hosts == nil {
		hosts = []string{}
	}
	sites, err := json.Marshal(hosts)
	if err != nil {
		return fmt.Errorf("settings: encode sites: %w", err)
	}

	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (id, enabled, sites, revision) VALUES (1, ?, ?, 1)
			ON CONFLICT(id) DO UPDATE SET
				enabled = excluded.enabled,
				sites = excluded.sites,
				revision = settings.revision + 1`,
			boolInt(st.Enabled), string(sites)); err != nil {
			return fmt.Errorf("upsert settings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM phrases`); err != nil {
			return fmt.Errorf("clear phrases: %w", err)
		}
		for i, p := range st.Phrases {
			repl := p.Replacements
			if repl == nil {
				repl = []string{}
			}
			data, err := json.Marshal(repl)
			if err != nil {
				return fmt.Errorf("encode phrase %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO phrases (position, find, replacements) VALUES (?, ?, ?)`,
				i, p.Find, string(data)); err != nil {
				return fmt.Errorf("insert phrase %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

// Watch implements Provider by polling the settings revision.
func (s *Store) Watch(ctx context.Context, fn func(Settings)) error {
	w := watch.New(s.db, watch.Options{
		Interval: s.interval,
		Detector: watch.MaxColumn("settings", "revision"),
		Logger:   s.logger,
	})
	w.OnChange(ctx, func() error {
		st, err := s.Load(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("settings: store changed", "phrases", len(st.Phrases), "enabled", st.Enabled)
		fn(st)
		return nil
	})
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
