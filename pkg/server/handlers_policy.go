package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/policy/bundle"
	"mercator-hq/warden/pkg/policy/engine"
	"mercator-hq/warden/pkg/security/tenant"
)

type checkRequest struct {
	Action   string         `json:"action"`
	Resource string         `json:"resource"`
	Actor    string         `json:"actor"`
	Context  map[string]any `json:"context"`
}

type checkResponse struct {
	*evidence.DecisionRecord
	Source      string `json:"source"`
	ActionClass string `json:"action_class"`
}

func (s *Server) handlePolicyCheck(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)

	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := s.deps.Engine.Check(r.Context(), &engine.Request{
		TenantID: tc.TenantID,
		Action:   req.Action,
		Resource: req.Resource,
		Actor:    req.Actor,
		Context:  req.Context,
	})
	if err != nil {
		s.respondError(w, r, "policy check", err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{
		DecisionRecord: res.Decision,
		Source:         res.Source,
		ActionClass:    res.ActionClass,
	})
}

func (s *Server) handleActiveBundle(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	info, err := s.deps.Bundles.ActiveVersion(r.Context(), tc.TenantID)
	if err != nil {
		s.respondError(w, r, "active bundle", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handlePublishBundle(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	version := chi.URLParam(r, "version")

	// Activating on publish needs admin, as on the activate route.
	activate, _ := strconv.ParseBool(r.URL.Query().Get("activate"))
	if activate && tc.Role != tenant.RoleAdmin {
		s.respondError(w, r, "publish bundle", &tenant.RouteError{
			Role:   tc.Role,
			Method: r.Method,
			Path:   r.URL.Path,
			Reason: "admin role required to activate",
		})
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	b, err := bundle.Parse(data)
	if err != nil {
		s.deps.Metrics.RecordBundlePublish("invalid")
		s.respondError(w, r, "publish bundle", err)
		return
	}

	res, err := s.deps.Bundles.Publish(r.Context(), tc.TenantID, version, b, activate)
	if err != nil {
		s.deps.Metrics.RecordBundlePublish("error")
		s.respondError(w, r, "publish bundle", err)
		return
	}
	s.deps.Metrics.RecordBundlePublish("published")
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	b, err := s.deps.Bundles.Load(r.Context(), tc.TenantID, chi.URLParam(r, "version"))
	if err != nil {
		s.respondError(w, r, "load bundle", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleActivateBundle(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)
	version := chi.URLParam(r, "version")
	if err := s.deps.Bundles.Activate(r.Context(), tc.TenantID, version); err != nil {
		s.respondError(w, r, "activate bundle", err)
		return
	}
	writeJSON(w, http.StatusOK, bundle.ActiveInfo{Version: version, Source: bundle.SourceStore})
}
