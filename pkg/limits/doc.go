// Package limits groups request limiting for the governance pipeline.
//
// The work lives in two sub-packages:
//
//   - ratelimit: the per-(tenant, actor, action class) fixed-window
//     limiter, the per-tenant sliding gateway limiter and the circuit
//     breaker that guards counter storage.
//   - storage: durable counter stores (memory, SQLite, Redis) behind the
//     CounterStore interface.
//
// Repeated counter storage failures open the breaker. While it is open the
// policy engine escalates limited requests instead of admitting them.
package limits
