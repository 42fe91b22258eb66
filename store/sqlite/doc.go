// Package sqlite provides a SQLite checkpointer using database/sql and
// github.com/mattn/go-sqlite3.
//
//	cp, err := sqlite.NewCheckpointer[MyState](sqlite.Options{Path: "./checkpoints.db"})
//	if err != nil {
//		return err
//	}
//	defer cp.Close()
//
// Rows mirror the PostgreSQL layout, with the state stored as JSON text and
// created_at as an RFC3339 string so timestamps survive a round trip with
// full precision. The driver requires cgo.
package sqlite
