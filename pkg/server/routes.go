package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/telemetry/health"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(requestIDMiddleware)
	r.Use(tracing.HTTPMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(bodyLimitMiddleware(s.config.MaxBodyBytes))

	r.Get("/health", s.deps.Health.ReadinessHandler())
	r.Get("/health/live", health.LivenessHandler())
	if s.metricsCfg != nil && s.metricsCfg.Enabled && s.deps.Metrics != nil {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.deps.Gateway.Middleware)

		r.Post("/v1/policy/check", s.handlePolicyCheck)

		r.Get("/v1/policies/active", s.handleActiveBundle)
		r.Post("/v1/policies/activate/{version}", s.handleActivateBundle)

		r.Get("/v1/policies/rules", s.handleListRules)
		r.Post("/v1/policies/rules", s.handleCreateRule)
		r.Get("/v1/policies/rules/{id}", s.handleGetRule)
		r.Patch("/v1/policies/rules/{id}", s.handleUpdateRule)
		r.Delete("/v1/policies/rules/{id}", s.handleDeleteRule)

		r.Get("/v1/policies/decisions", s.handleListDecisions)

		r.Put("/v1/policies/{version}", s.handlePublishBundle)
		r.Get("/v1/policies/{version}", s.handleGetBundle)

		r.Get("/v1/escalations", s.handleListEscalations)
		r.Post("/v1/escalations/{id}/resolve", s.handleResolveEscalation)

		r.Post("/v1/tenants/{id}/federation/export", s.handleFederationExport)
	})

	return r
}
