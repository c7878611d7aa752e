// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files are read from an fs.FS (usually an embed.FS) and follow the
// naming convention {version}_{description}.sql, e.g. "001_initial_schema.sql".
// Applied versions are tracked in the schema_migrations table together with the
// checksum of the file that was applied, so edited migrations are detected.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
