package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/policy/rules"
	"mercator-hq/warden/pkg/risk"
)

type ruleRequest struct {
	Name            string       `json:"name"`
	Effect          rules.Effect `json:"effect"`
	ActionPattern   string       `json:"action_pattern"`
	ResourcePattern string       `json:"resource_pattern"`
	ActorPattern    string       `json:"actor_pattern"`
	MinRisk         *risk.Level  `json:"min_risk"`
	Reason          string       `json:"reason"`
	Priority        int          `json:"priority"`
	Enabled         *bool        `json:"enabled"`
}

type ruleList struct {
	Rules []rules.Rule `json:"rules"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	list, err := s.deps.Rules.List(r.Context(), tc.TenantID, enabledOnly)
	if err != nil {
		s.respondError(w, r, "list rules", err)
		return
	}
	if list == nil {
		list = []rules.Rule{}
	}
	writeJSON(w, http.StatusOK, ruleList{Rules: list})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)

	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	rule := &rules.Rule{
		Name:            req.Name,
		Effect:          req.Effect,
		ActionPattern:   req.ActionPattern,
		ResourcePattern: req.ResourcePattern,
		ActorPattern:    req.ActorPattern,
		MinRisk:         req.MinRisk,
		Reason:          req.Reason,
		Priority:        req.Priority,
		Enabled:         req.Enabled == nil || *req.Enabled,
	}
	if err := s.deps.Rules.Create(r.Context(), tc.TenantID, rule); err != nil {
		s.respondError(w, r, "create rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	rule, err := s.deps.Rules.Get(r.Context(), tc.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)

	var patch rules.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	rule, err := s.deps.Rules.Update(r.Context(), tc.TenantID, chi.URLParam(r, "id"), patch)
	if err != nil {
		s.respondError(w, r, "update rule", err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	if err := s.deps.Rules.Delete(r.Context(), tc.TenantID, chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, "delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
