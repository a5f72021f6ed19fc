// Package migration applies versioned SQL migrations to the scheduling store.
//
// Migrations are embedded in the binary under sql/ and named
// {version}_{description}.sql (for example "001_scheduling_records.sql").
// Applied versions are tracked in a schema_migrations table together with the
// checksum of the file that was applied, so an edited migration is detected
// instead of silently skipped.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig(path))
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(migration.Embedded(), migration.NewSQLiteExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
