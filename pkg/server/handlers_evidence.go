package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/evidence/export"
	"mercator-hq/warden/pkg/evidence/query"
)

type decisionList struct {
	Decisions []*evidence.DecisionRecord `json:"decisions"`
	Total     int64                      `json:"total"`
}

type escalationList struct {
	Escalations []*evidence.EscalationRecord `json:"escalations"`
}

type resolveRequest struct {
	Status     evidence.EscalationStatus `json:"status"`
	ResolvedBy string                    `json:"resolved_by"`
	Note       string                    `json:"note"`
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	params := r.URL.Query()

	q, err := decisionQueryFrom(tc.TenantID, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := query.ValidateDecisions(q); err != nil {
		s.respondError(w, r, "list decisions", err)
		return
	}
	query.ApplyDecisionDefaults(q)

	records, err := s.deps.Evidence.QueryDecisions(r.Context(), q)
	if err != nil {
		s.respondError(w, r, "list decisions", err)
		return
	}

	if format := params.Get("format"); format != "" {
		exporter, err := export.ForFormat(format)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set("Content-Type", exporter.ContentType())
		if err := exporter.Export(r.Context(), records, w); err != nil {
			s.logger.ErrorContext(r.Context(), "decision export failed", "format", format, "error", err)
		}
		return
	}

	total, err := s.deps.Evidence.CountDecisions(r.Context(), q)
	if err != nil {
		s.respondError(w, r, "count decisions", err)
		return
	}
	if records == nil {
		records = []*evidence.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, decisionList{Decisions: records, Total: total})
}

func decisionQueryFrom(tenantID string, params url.Values) (*evidence.DecisionQuery, error) {
	q := &evidence.DecisionQuery{
		TenantID:  tenantID,
		Action:    params.Get("action"),
		Actor:     params.Get("actor"),
		Decision:  params.Get("decision"),
		SortOrder: params.Get("order"),
	}
	var err error
	if q.Limit, q.Offset, err = pageFrom(params); err != nil {
		return nil, err
	}
	if v := params.Get("rate_limited"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid rate_limited: %q", v)
		}
		q.RateLimited = &b
	}
	if q.StartTime, err = timeParam(params, "since"); err != nil {
		return nil, err
	}
	if q.EndTime, err = timeParam(params, "until"); err != nil {
		return nil, err
	}
	return q, nil
}

func pageFrom(params url.Values) (limit, offset int, err error) {
	if v := params.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid limit: %q", v)
		}
	}
	if v := params.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid offset: %q", v)
		}
	}
	return limit, offset, nil
}

func timeParam(params url.Values, name string) (*time.Time, error) {
	v := params.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be RFC 3339", name)
	}
	return &t, nil
}

func (s *Server) handleListEscalations(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	params := r.URL.Query()

	limit, offset, err := pageFrom(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.deps.Escalations.List(r.Context(), &evidence.EscalationQuery{
		TenantID: tc.TenantID,
		Status:   evidence.EscalationStatus(params.Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.respondError(w, r, "list escalations", err)
		return
	}
	if list == nil {
		list = []*evidence.EscalationRecord{}
	}
	writeJSON(w, http.StatusOK, escalationList{Escalations: list})
}

func (s *Server) handleResolveEscalation(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ResolvedBy == "" {
		writeError(w, http.StatusBadRequest, "resolved_by is required")
		return
	}
	rec, err := s.deps.Escalations.Resolve(r.Context(), tc.TenantID, chi.URLParam(r, "id"), evidence.Resolution{
		Status:     req.Status,
		ResolvedBy: req.ResolvedBy,
		Note:       req.Note,
	})
	if err != nil {
		s.respondError(w, r, "resolve escalation", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
