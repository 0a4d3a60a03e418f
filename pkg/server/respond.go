package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/policy/bundle"
	"mercator-hq/warden/pkg/policy/engine"
	"mercator-hq/warden/pkg/policy/rules"
	"mercator-hq/warden/pkg/security/tenant"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	var qe *evidence.QueryError
	switch {
	case errors.Is(err, engine.ErrInvalidRequest),
		errors.Is(err, bundle.ErrInvalidBundle),
		errors.Is(err, rules.ErrInvalidRule),
		errors.Is(err, evidence.ErrInvalidStatus),
		errors.As(err, &qe):
		return http.StatusBadRequest
	case errors.Is(err, bundle.ErrBundleNotFound),
		errors.Is(err, rules.ErrRuleNotFound),
		errors.Is(err, evidence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, evidence.ErrAlreadyResolved):
		return http.StatusConflict
	}
	return tenant.StatusCode(err)
}

// respondError writes err with its mapped status. Server errors are logged
// and replaced with a generic message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"op", op,
			"error", err,
		)
		writeError(w, status, op+" failed")
		return
	}
	s.logger.DebugContext(r.Context(), "request rejected",
		"op", op,
		"status", status,
		"error", err,
	)
	writeError(w, status, err.Error())
}

// callerTenant returns the gateway tenant context. Routes without the
// gateway never call it.
func callerTenant(r *http.Request) *tenant.Context {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		slog.Default().Error("tenant context missing on governed route", "path", r.URL.Path)
		panic("tenant context missing")
	}
	return tc
}
