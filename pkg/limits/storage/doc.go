// Package storage provides durable counter stores for the fixed-window
// rate limiter.
//
// # Overview
//
// The limiter needs one primitive from its store: an atomic
// create-or-increment keyed by a caller-supplied idempotent key, returning
// the post-increment count. Three backends implement CounterStore:
//
//   - Memory: in-process map, for tests and single-node development
//   - SQLite: durable upsert ("INSERT ... ON CONFLICT DO UPDATE ... RETURNING")
//   - Redis: Lua INCR script, shared by every instance pointing at the server
//
// # Key Layout
//
// A counter key is tenant|actor|action_class|window_start|window_seconds.
// Each window gets its own row, so old windows are never rewritten and the
// limiter never deletes rows. Cleanup exists for the retention scheduler.
//
// # Thread Safety
//
// All backends are safe for concurrent use. Concurrent increments of the
// same key are serialized by the backend, never by the caller.
package storage
