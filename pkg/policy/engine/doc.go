// Package engine is the policy decision point. Every governed action is
// evaluated once by Engine.Evaluate and yields exactly one recorded
// decision: allow, deny or escalate.
//
// # Evaluation Flow
//
//	Request
//	   ↓
//	Load the tenant's active bundle (built-in bundle on any failure)
//	   ↓
//	Classify risk, derive the action class          RiskClassified
//	   ↓
//	Fixed-window rate check for actor/class         RateChecked
//	   ├─ exceeded or circuit open → escalate, skip matching
//	   ↓
//	Bundle rules, first match by priority           RuleMatched
//	   ├─ no match → tenant rules, best match by specificity
//	   ├─ no match, risk ≥ high → escalate
//	   └─ no match → naming fallback (allow reads/writes)
//	   ↓
//	Escalate → open an escalation                   Decided
//	   ↓
//	Record the decision, always                     Recorded
//
// Each check is linear: there are no retries and no locks. The counter
// increment happens before matching and is not rolled back if a later step
// fails. Two concurrent checks may both see a count past the limit; that
// bounded over-admission is accepted in exchange for needing no
// distributed lock.
//
// # Rule Sources
//
// Bundle rules are curated with explicit priorities and take precedence.
// Tenant rules are managed ad hoc through the rules API and are only
// consulted when no bundle rule matches, ranked by specificity. Rules of
// one tenant are never loaded while evaluating another.
//
// # Errors
//
// Bundle load failures degrade to the built-in bundle. Every other store
// failure, including a failure to record the decision, is returned as an
// *EvaluationError naming the stage that failed.
package engine
