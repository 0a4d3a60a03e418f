package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/security/authz"
)

const defaultLimit = 100

// placeholder renders the n-th (1-based) bind parameter.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// whereBuilder accumulates SQL conditions and their arguments.
type whereBuilder struct {
	ph    placeholder
	conds []string
	args  []any
}

func newWhereBuilder(ph placeholder, tenantID string) *whereBuilder {
	w := &whereBuilder{ph: ph}
	filter := authz.QueryFilter(tenantID)
	w.add(strings.TrimSuffix(filter.Clause, "?"), filter.Value)
	return w
}

// add appends "prefix<placeholder>" with its argument.
func (w *whereBuilder) add(prefix string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, prefix+w.ph(len(w.args)))
}

func (w *whereBuilder) String() string {
	return strings.Join(w.conds, " AND ")
}

func decisionWhere(ph placeholder, q *evidence.DecisionQuery, encodeTime func(time.Time) any) *whereBuilder {
	w := newWhereBuilder(ph, q.TenantID)
	if q.StartTime != nil {
		w.add("created_at >= ", encodeTime(*q.StartTime))
	}
	if q.EndTime != nil {
		w.add("created_at <= ", encodeTime(*q.EndTime))
	}
	if q.Action != "" {
		w.add("action = ", q.Action)
	}
	if q.Actor != "" {
		w.add("actor = ", q.Actor)
	}
	if q.Decision != "" {
		w.add("decision = ", q.Decision)
	}
	if q.RateLimited != nil {
		w.add("rate_limited = ", *q.RateLimited)
	}
	return w
}

func escalationWhere(ph placeholder, q *evidence.EscalationQuery) *whereBuilder {
	w := newWhereBuilder(ph, q.TenantID)
	if q.Status != "" {
		w.add("status = ", string(q.Status))
	}
	return w
}

func sortOrder(s string) string {
	if strings.EqualFold(s, "asc") {
		return "ASC"
	}
	return "DESC"
}

func limitOf(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// matchesDecision applies a DecisionQuery in memory.
func matchesDecision(r *evidence.DecisionRecord, q *evidence.DecisionQuery) bool {
	if r.TenantID != q.TenantID {
		return false
	}
	if q.StartTime != nil && r.CreatedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.CreatedAt.After(*q.EndTime) {
		return false
	}
	if q.Action != "" && r.Action != q.Action {
		return false
	}
	if q.Actor != "" && r.Actor != q.Actor {
		return false
	}
	if q.Decision != "" && r.Decision != q.Decision {
		return false
	}
	if q.RateLimited != nil && r.RateLimited != *q.RateLimited {
		return false
	}
	return true
}

// sortDecisions orders by created_at then decision id.
func sortDecisions(records []*evidence.DecisionRecord, order string) {
	asc := sortOrder(order) == "ASC"
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if asc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if asc {
			return a.DecisionID < b.DecisionID
		}
		return a.DecisionID > b.DecisionID
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit = limitOf(limit); limit < len(items) {
		items = items[:limit]
	}
	return items
}
