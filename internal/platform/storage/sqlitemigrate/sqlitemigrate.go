// Package sqlitemigrate applies embedded SQL migrations to a sqlite database,
// recording each applied file in a ledger table so reruns are no-ops.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const ledgerTable = "schema_migrations"

// ApplyMigrations runs every .sql file under dir in lexical order, once per
// file. Files follow the sql-migrate convention; only the Up section runs.
func ApplyMigrations(db *sql.DB, fsys fs.FS, dir string) error {
	if db == nil {
		return fmt.Errorf("nil database handle")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}

	names, err := listMigrationFiles(fsys, dir)
	if err != nil {
		return err
	}
	if err := ensureLedger(db); err != nil {
		return err
	}

	for _, name := range names {
		key := name
		if dir != "." {
			key = path.Join(dir, name)
		}

		done, err := alreadyApplied(db, key)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if done {
			continue
		}

		raw, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		stmts := upSection(string(raw))
		if strings.TrimSpace(stmts) == "" {
			continue
		}
		if err := runMigration(db, key, stmts); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func listMigrationFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func ensureLedger(db *sql.DB) error {
	stmt := "CREATE TABLE IF NOT EXISTS " + ledgerTable + " (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)"
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}
	return nil
}

func alreadyApplied(db *sql.DB, key string) (bool, error) {
	var one int
	err := db.QueryRow("SELECT 1 FROM "+ledgerTable+" WHERE name = ?", key).Scan(&one)
	switch err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, err
	}
}

// runMigration executes the statements and records them in one transaction.
// Objects that already exist are tolerated so a ledger added to a database
// with pre-existing schema converges instead of failing.
func runMigration(db *sql.DB, key, stmts string) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(stmts); err != nil && !isExistingObjectError(err) {
		_ = tx.Rollback()
		return err
	}
	_, err = tx.Exec(
		"INSERT OR IGNORE INTO "+ledgerTable+" (name, applied_at) VALUES (?, ?)",
		key, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record in ledger: %w", err)
	}
	return tx.Commit()
}

// upSection cuts the SQL between the Up marker and the Down marker. Files
// without markers run whole.
func upSection(content string) string {
	const upMarker = "-- +migrate Up"
	const downMarker = "-- +migrate Down"

	start := strings.Index(content, upMarker)
	if start < 0 {
		return content
	}
	rest := content[start+len(upMarker):]
	if end := strings.Index(rest, downMarker); end >= 0 {
		return rest[:end]
	}
	return rest
}

func isExistingObjectError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}
