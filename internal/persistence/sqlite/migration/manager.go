package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	source   Source
	executor Executor
	logger   *slog.Logger
}

// NewManager wires a migration manager.
func NewManager(source Source, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{source: source, executor: executor, logger: logger.With("component", "migration")}
}

// Run applies every pending migration. It stops at the first failure; earlier
// migrations stay applied.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "schema version", "current", status.CurrentVersion, "pending", len(status.Pending))

	for i, migration := range status.Pending {
		migrationStart := time.Now()
		logger := m.logger.With("version", migration.Version, "name", migration.Name)
		logger.InfoContext(ctx, "applying migration", "step", i+1, "of", len(status.Pending))

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return NewMigrationError(migration.Version, migration.Name, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		elapsed := time.Since(migrationStart)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			logger.ErrorContext(ctx, "failed to record migration", "error", err)
			return NewMigrationError(migration.Version, migration.Name, "record migration", err)
		}
		logger.InfoContext(ctx, "migration applied", "duration", elapsed)
	}

	if len(status.Pending) > 0 {
		m.logger.InfoContext(ctx, "migrations complete", "applied", len(status.Pending), "duration", time.Since(started))
	}
	return nil
}

// Status reports applied and pending migrations after validating that the
// database and the source agree.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	available, err := m.source.Migrations()
	if err != nil {
		return nil, err
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedSet := make(map[int]struct{}, len(applied))
	for _, a := range applied {
		v, _ := strconv.Atoi(a.Version)
		appliedSet[v] = struct{}{}
	}

	status := &Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range available {
		v, _ := strconv.Atoi(migration.Version)
		if _, ok := appliedSet[v]; !ok {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

// validateSequence rejects gaps in the available versions, applied versions
// without a file, and applied files whose checksum has changed.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		v, err := strconv.Atoi(migration.Version)
		if err != nil {
			return NewMigrationError(migration.Version, migration.Name, "validate sequence",
				fmt.Errorf("%w: version is not numeric", ErrInvalidMigrationFile))
		}
		if i > 0 {
			prev, _ := strconv.Atoi(available[i-1].Version)
			if v != prev+1 {
				return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, prev+1)
			}
		}
		byVersion[v] = migration
	}

	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil {
			return NewDatabaseError(a.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version %q is not numeric", ErrVersionConflict, a.Version))
		}
		migration, ok := byVersion[v]
		if !ok {
			return fmt.Errorf("%w: applied migration %03d has no file", ErrVersionConflict, v)
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return NewMigrationError(migration.Version, migration.Name, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
