// Package kv provides a small Redis-like key-value store abstraction with
// in-memory and Redis-backed implementations.
//
// The Store interface covers plain values with TTL, hashes and lists, which
// is what the ledger caches: state snapshots, pool statistics and the recent
// event feed.
//
// Example usage:
//
//	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Set(ctx, "snapshot:lp-staking", data, time.Minute); err != nil {
//		log.Fatal(err)
//	}
//
// Backends register themselves from their package init, so callers import
// pkg/kv/memory and pkg/kv/redis for side effects. The redis backend is wrapped
// in a FailoverStore that serves from memory while Redis is unreachable.
package kv
