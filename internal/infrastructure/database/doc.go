// Package database provides the SQLite store behind the wrapper's history.
//
// It handles the connection (WAL mode, busy timeout, a single writer, owner-only
// file permissions) and versioned schema migrations read from an fs.FS,
// normally the embedded files of the top-level migrations package.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or carry a DEFAULT,
// and every .up.sql has a .down.sql twin.
package database
