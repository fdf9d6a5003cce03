package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "certificates_and_items",
		Up:      migration001CertificatesAndItems,
	},
	{
		Version: 2,
		Name:    "import_ledger",
		Up:      migration002ImportLedger,
	},
	{
		Version: 3,
		Name:    "settings",
		Up:      migration003Settings,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.sqlDB.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.sqlDB.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001CertificatesAndItems(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE certificates (
		id TEXT PRIMARY KEY,
		certificate_number TEXT NOT NULL UNIQUE,
		company_name TEXT NOT NULL,
		exemption_start_date TEXT,
		exemption_end_date TEXT,
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK (status IN ('draft', 'confirmed')),
		source_filename TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE certificate_items (
		id TEXT PRIMARY KEY,
		certificate_id TEXT NOT NULL
			REFERENCES certificates(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL CHECK (line_no > 0),
		hs_code TEXT NOT NULL,
		item_name TEXT NOT NULL,
		uom TEXT NOT NULL,
		approved_quantity NUMERIC,
		port_klang_qty NUMERIC,
		klia_qty NUMERIC,
		bukit_kayu_hitam_qty NUMERIC,
		remaining_quantity NUMERIC,
		remaining_port_klang NUMERIC,
		remaining_klia NUMERIC,
		remaining_bukit_kayu_hitam NUMERIC,
		warning_threshold NUMERIC
			CHECK (warning_threshold IS NULL OR warning_threshold >= 0),
		quantity_status TEXT NOT NULL DEFAULT 'normal'
			CHECK (quantity_status IN ('normal', 'warning', 'depleted', 'overdrawn')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (certificate_id, line_no)
	);

	CREATE INDEX idx_certificate_items_certificate
		ON certificate_items(certificate_id, line_no);
	CREATE INDEX idx_certificate_items_status
		ON certificate_items(quantity_status);
	`)
	return err
}

func migration002ImportLedger(tx *sql.Tx) error {
	// id is the autoincrement insertion sequence: the creation-time
	// tie-break when replaying records that share an import date.
	_, err := tx.Exec(`
	CREATE TABLE import_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT NOT NULL UNIQUE,
		certificate_item_id TEXT NOT NULL
			REFERENCES certificate_items(id) ON DELETE CASCADE,
		import_date TEXT NOT NULL,
		invoice_number TEXT NOT NULL,
		invoice_line INTEGER,
		declaration_form_reg_no TEXT,
		quantity_imported NUMERIC NOT NULL CHECK (quantity_imported > 0),
		port TEXT NOT NULL
			CHECK (port IN ('port_klang', 'klia', 'bukit_kayu_hitam')),
		balance_before NUMERIC NOT NULL,
		balance_after NUMERIC NOT NULL,
		remarks TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT
	);

	CREATE INDEX idx_import_records_item_port
		ON import_records(certificate_item_id, port, import_date, created_at, id);
	CREATE INDEX idx_import_records_port
		ON import_records(port);
	CREATE INDEX idx_import_records_invoice
		ON import_records(invoice_number);
	`)
	return err
}

func migration003Settings(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE settings (
		setting_key TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	INSERT INTO settings (setting_key, setting_value, updated_at)
	VALUES ('default_warning_threshold', '100', datetime('now'));
	`)
	return err
}
