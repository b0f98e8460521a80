// Package database provides SQLite connectivity for the device service.
//
// This package manages:
//   - Connection setup with WAL mode and immediate write transactions
//   - Schema migrations embedded in the binary
//   - Health checks and lifecycle management
//
// Locking:
//
// Connections are opened with _txlock=immediate, so BEGIN acquires the
// database write lock at once. Together with a single-connection pool this
// serializes writers: a transaction that reads a device and then writes it
// back never races another writer.
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are applied in version order.
package database
