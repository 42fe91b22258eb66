// Package store defines the checkpoint record and the persistence contracts
// the execution engine writes to.
//
// A Checkpoint captures the state of one run after a number of steps. The
// engine saves one after every executed node and loads the latest one to
// resume a run in a new process:
//
//	cp, err := checkpointer.Load(ctx, "run-42")
//	if err != nil { ... }
//	if cp != nil {
//	    outcome := program.Resume(ctx, *cp)
//	}
//
// Backends live in sub-packages:
//   - store/memory: guarded map, for tests and single-process use
//   - store/file: one JSON-lines file per run id
//   - store/redis: Redis via go-redis, optional TTL
//   - store/postgres: PostgreSQL via pgx
//   - store/sqlite: SQLite via database/sql and go-sqlite3
//
// All backends serialize states through a Codec, JSON by default, and keep
// the full history of a run so List can report it.
package store
