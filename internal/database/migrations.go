package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationManager manages database migrations
type MigrationManager struct {
	db     *sql.DB
	source fs.FS
	dir    string
	log    *log.Logger
}

// NewMigrationManager creates a migration manager over the migrations
// shipped with the binary
func NewMigrationManager(db *sql.DB, logger *log.Logger) *MigrationManager {
	return NewMigrationManagerFS(db, embeddedMigrations, "migrations", logger)
}

// NewMigrationManagerFS creates a migration manager reading *.sql files from
// dir inside source
func NewMigrationManagerFS(db *sql.DB, source fs.FS, dir string, logger *log.Logger) *MigrationManager {
	if logger == nil {
		logger = log.Default()
	}
	return &MigrationManager{
		db:     db,
		source: source,
		dir:    dir,
		log:    logger,
	}
}

// InitMigrationsTable creates the migrations tracking table
func (m *MigrationManager) InitMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := m.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns the set of applied migration versions
func (m *MigrationManager) GetAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// LoadMigrations loads migration files sorted by version
func (m *MigrationManager) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// e.g. "001_create_user_shapes.sql"
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			m.log.Printf("[migrations] skipping file with invalid name: %s", entry.Name())
			continue
		}

		content, err := fs.ReadFile(m.source, path.Join(m.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(entry.Name(), ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ApplyMigration applies a single migration and records it
func (m *MigrationManager) ApplyMigration(migration Migration) error {
	err := Transaction(m.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.log.Printf("[migrations] applied %d: %s", migration.Version, migration.Name)
	return nil
}

// RunMigrations applies every pending migration. Running it again on an
// up-to-date database changes nothing.
func (m *MigrationManager) RunMigrations() error {
	if err := m.InitMigrationsTable(); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return err
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.ApplyMigration(migration); err != nil {
			return err
		}
	}
	return nil
}
