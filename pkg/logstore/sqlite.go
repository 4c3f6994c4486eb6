package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/paketb0te/fritz-isp-toolkit/internal/migrations"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists entries in a single SQLite database instead of
// per-router logfiles. The schema is managed by embedded migrations.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) the database at path and
// brings its schema up to date.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}

	if err := runMigrations(path); err != nil {
		return nil, fmt.Errorf("migrate log store schema: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite store %s: %w", path, err)
	}

	logrus.WithField("path", path).Debug("Opened sqlite log store")
	return &SQLiteStore{db: db}, nil
}

func runMigrations(path string) error {
	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite3://"+path)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func (s *SQLiteStore) Load(ctx context.Context, address string) ([]models.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT logged_at, message FROM log_entries WHERE router_address = ? ORDER BY logged_at, id`,
		address)
	if err != nil {
		return nil, fmt.Errorf("query entries for %s: %w", address, err)
	}
	defer rows.Close()

	entries := []models.LogEntry{}
	for rows.Next() {
		var loggedAt, message string
		if err := rows.Scan(&loggedAt, &message); err != nil {
			return nil, fmt.Errorf("scan entry for %s: %w", address, err)
		}
		ts, err := time.Parse(time.RFC3339, loggedAt)
		if err != nil {
			return nil, fmt.Errorf("parse stored timestamp %q for %s: %w", loggedAt, address, err)
		}
		entries = append(entries, models.LogEntry{Timestamp: ts, Message: message})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entries for %s: %w", address, err)
	}
	return entries, nil
}

func (s *SQLiteStore) Append(ctx context.Context, address string, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]models.LogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append for %s: %w", address, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO log_entries (router_address, logged_at, message) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert for %s: %w", address, err)
	}
	defer stmt.Close()

	for _, entry := range sorted {
		loggedAt := entry.Timestamp.Local().Format(time.RFC3339)
		if _, err := stmt.ExecContext(ctx, address, loggedAt, entry.Message); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert entry for %s: %w", address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append for %s: %w", address, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
