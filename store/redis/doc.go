// Package redis provides a Redis-backed checkpointer built on go-redis.
//
// Every run is stored under two keys sharing a configurable prefix: a string
// with the newest checkpoint, read by Load, and a list with the full history,
// read by List. Both are written in a single MULTI/EXEC transaction and can
// expire after a TTL.
//
//	cp := redis.NewCheckpointer[MyState](redis.Options{
//		Addr: "localhost:6379",
//		TTL:  24 * time.Hour,
//	})
//	defer cp.Close()
//
//	g := graph.NewStateGraph[MyState]().WithCheckpointer(cp, "run-1")
//
// Run ids are validated before use; ids containing braces, glob characters
// or line breaks are rejected with store.ErrInvalidRunID.
package redis
