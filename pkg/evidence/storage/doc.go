// Package storage provides storage backends for evidence records.
//
// # Storage Backends
//
//   - Memory: in-process maps, for tests and single-process development
//   - SQLite: embedded database for single-node deployments
//   - PostgreSQL: shared database for multi-replica deployments
//
// All backends implement evidence.Storage with the same semantics: every
// read takes a tenant id and only returns that tenant's rows, decisions are
// append-only, and escalations move from pending to a final status once.
//
// # SQLite Backend
//
// The SQLite backend provides durable storage with:
//
//   - WAL mode for concurrent reads/writes
//   - Indexes on (tenant_id, created_at) for tenant-scoped listing
//   - Busy timeout for handling locks
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:    "data/evidence.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.StoreDecision(ctx, record)
//	decisions, err := store.QueryDecisions(ctx, &evidence.DecisionQuery{
//	    TenantID: "acme",
//	    Decision: "deny",
//	    Limit:    50,
//	})
//
// # PostgreSQL Backend
//
//	pool, err := storage.NewPostgresPool(ctx, storage.PostgresConfig{URL: dsn})
//	store, err := storage.NewPostgresStorage(ctx, pool)
package storage
