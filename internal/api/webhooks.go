package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/webhook"
)

// maxCallbackBody caps inbound provider callback payloads.
const maxCallbackBody = 1 << 20

type createSubscriptionRequest struct {
	TenantID string            `json:"tenant_id"`
	URL      string            `json:"url"`
	Method   string            `json:"method,omitempty"`
	Secret   string            `json:"secret,omitempty"`
	Events   []string          `json:"events,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if req.TenantID == "" {
		s.respondError(w, fmt.Errorf("%w: tenant_id is required", errBadRequest))
		return
	}

	sub := webhook.Subscription{
		TenantID: req.TenantID,
		URL:      req.URL,
		Method:   req.Method,
		Secret:   req.Secret,
		Events:   req.Events,
		Headers:  req.Headers,
	}
	if err := s.subs.Create(r.Context(), &sub); err != nil {
		s.respondError(w, err)
		return
	}
	s.log.InfoContext(r.Context(), "webhook subscription created",
		logger.TenantID(sub.TenantID), logger.Recipient(sub.URL))
	s.respond(w, http.StatusCreated, sub)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		s.respondError(w, fmt.Errorf("%w: tenant_id query parameter is required", errBadRequest))
		return
	}
	subs, err := s.subs.ActiveForTenant(r.Context(), tenantID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, subs)
}

func (s *Server) handleDeactivateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: invalid subscription id", errBadRequest))
		return
	}
	if err := s.subs.Deactivate(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// handleCallback ingests an inbound delivery status callback. The
// provider path segment selects the signing secret; an unregistered
// provider is rejected before the body is read.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	secret, ok := s.callbackSecrets[provider]
	if !ok {
		s.respondError(w, fmt.Errorf("%w: %s", errUnknownProvider, provider))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	result, err := s.reconciler.Ingest(r.Context(), secret, body, r.Header)
	if err != nil {
		s.log.WarnContext(r.Context(), "callback rejected",
			logger.Provider(provider), logger.Error(err))
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}
