// Package database provides SQLite connectivity for DeviceHub Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent reads
//   - Schema migrations loaded from an fs.FS (embedded by the migrations package)
//   - Connection pool sizing for SQLite's single-writer model
//
// All queries issued through this package and its callers use
// parameterised statements. The database file is created with 0600
// permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.SQLite.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql and
// are applied oldest first, one transaction per migration.
package database
