package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/security/authz"
	"mercator-hq/warden/pkg/security/secrets"
)

type federationRequest struct {
	TargetTenant string `json:"target_tenant"`
	DataType     string `json:"data_type"`
	Payload      any    `json:"payload"`
}

type federationResponse struct {
	SourceTenant string `json:"source_tenant"`
	TargetTenant string `json:"target_tenant"`
	DataType     string `json:"data_type"`
	Payload      any    `json:"payload"`
}

// federationFor returns the federation policy of tenantID for this
// request. Opt-in requires both a configured policy and the caller's
// federation header.
func (s *Server) federationFor(tenantID string, optIn bool) secrets.FederationConfig {
	cfg, ok := s.deps.Federation[tenantID]
	if !ok {
		return secrets.FederationConfig{}
	}
	return secrets.FederationConfig{
		OptIn:          optIn,
		AllowedTenants: cfg.AllowedTenants,
		SharingScope:   cfg.SharingScope,
	}
}

func (s *Server) handleFederationExport(w http.ResponseWriter, r *http.Request) {
	tc := callerTenant(r)

	source := authz.Resource{TenantID: chi.URLParam(r, "id"), ResourceType: "federation"}
	if err := tc.Can(source, authz.PermFederation); err != nil {
		s.deps.Metrics.RecordAuthzDenial("federation")
		s.respondError(w, r, "federation export", err)
		return
	}

	var req federationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TargetTenant == "" || req.DataType == "" {
		writeError(w, http.StatusBadRequest, "target_tenant and data_type are required")
		return
	}

	if !secrets.CanFederate(s.federationFor(tc.TenantID, tc.Federation), req.TargetTenant, req.DataType) {
		s.deps.Metrics.RecordAuthzDenial("federation")
		s.logger.WarnContext(r.Context(), "federation export refused",
			"tenant_id", tc.TenantID,
			"target_tenant", req.TargetTenant,
			"data_type", req.DataType,
			"opt_in", tc.Federation,
		)
		writeError(w, http.StatusForbidden, "federation not permitted for this target or data type")
		return
	}

	payload := secrets.AnonymizeForFederation(req.Payload)
	if m, ok := payload.(map[string]any); ok {
		if leaked := secrets.ValidateNoPlaintextSecrets(m); len(leaked) > 0 {
			s.logger.ErrorContext(r.Context(), "anonymized payload still holds secrets", "fields", leaked)
			writeError(w, http.StatusInternalServerError, "federation export failed")
			return
		}
	}

	s.logger.InfoContext(r.Context(), "federation export",
		"tenant_id", tc.TenantID,
		"target_tenant", req.TargetTenant,
		"data_type", req.DataType,
	)
	writeJSON(w, http.StatusOK, federationResponse{
		SourceTenant: tc.TenantID,
		TargetTenant: req.TargetTenant,
		DataType:     req.DataType,
		Payload:      payload,
	})
}
