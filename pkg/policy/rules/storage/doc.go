// Package storage provides rules.Store backends for tenant policy rules.
//
// Two backends are available:
//
//   - MemoryStore keeps rules in process memory, for tests and single-node
//     development.
//   - SQLiteStore persists rules in a SQLite database.
//
// Every query is filtered by tenant id. A rule id from one tenant never
// resolves in another tenant's scope.
package storage
