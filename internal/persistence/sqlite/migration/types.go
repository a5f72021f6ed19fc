package migration

import (
	"context"
	"time"
)

// Migration is one versioned SQL file.
type Migration struct {
	Version     string // numeric prefix, e.g. "001"
	Description string
	Name        string // file name inside the source
	SQL         string
	Checksum    string // sha256 of SQL, hex encoded
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises the migration state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// Source yields the available migrations ordered by version.
type Source interface {
	Migrations() ([]Migration, error)
}

// Executor applies migrations and maintains the version table.
type Executor interface {
	InitializeVersionTable(ctx context.Context) error
	ExecuteMigration(ctx context.Context, migration Migration) error
	RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
}
