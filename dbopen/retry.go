package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const txAttempts = 3

// IsBusy reports whether err is SQLite refusing a lock.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"SQLITE_BUSY", "database is locked", "database table is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// RunTx runs fn in a transaction, retrying with a linear backoff while the
// database is busy. fn's own errors roll back and are returned unchanged.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		if err = runTx(ctx, db, fn); err == nil || !IsBusy(err) {
			return err
		}
		if attempt == txAttempts {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * 100 * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("dbopen: tx retry: %w", ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("dbopen: tx still busy after %d attempts: %w", txAttempts, err)
}

func runTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}
