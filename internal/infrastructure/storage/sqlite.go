// Package storage provides SQLite persistence for certificates and the
// import ledger. It satisfies the core's storage contract: ordered reads
// of an (item, port) ledger sequence, and atomic multi-statement
// transactions with cascade deletes.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Not-found errors surfaced to the service layer.
var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrItemNotFound        = errors.New("certificate item not found")
	ErrRecordNotFound      = errors.New("import record not found")
)

// Fixed-width timestamp layout so lexicographic order in SQLite matches
// chronological order.
const (
	timeLayout = "2006-01-02 15:04:05.000000000"
	dateLayout = "2006-01-02"
)

const defaultListLimit = 50

// dbtx abstracts *sql.DB and *sql.Tx so the same query methods serve both.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// queries carries every query method; Storage and Tx both embed it.
type queries struct {
	db dbtx
}

// Storage provides SQLite database access. It implements Repository.
type Storage struct {
	queries
	sqlDB *sql.DB
}

// Tx is a transaction-scoped view of the storage, implementing Mutator.
type Tx struct {
	queries
}

// Compile-time checks.
var (
	_ Repository = (*Storage)(nil)
	_ Mutator    = (*Tx)(nil)
)

// NewStorage opens (or creates) the SQLite database at dbPath and runs all
// pending migrations.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Cascade deletes depend on this (SQLite defaults it off).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	// Wait for locks instead of failing fast under concurrent commits.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Storage{queries: queries{db: db}, sqlDB: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.sqlDB.Close()
}

// InTransaction runs fn inside a single transaction, rolling back on any
// error or panic.
func (s *Storage) InTransaction(fn func(Mutator) error) error {
	tx, err := s.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{queries: queries{db: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// now returns the current UTC time truncated to the stored precision.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// nullTimeString formats an optional timestamp for storage.
func nullTimeString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// nullDateString formats an optional date for storage.
func nullDateString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

// emptyToNull stores empty strings as NULL.
func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
