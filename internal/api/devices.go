package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/push"
)

type registerDeviceRequest struct {
	UserID     string            `json:"user_id"`
	Token      string            `json:"token"`
	Platform   push.Platform     `json:"platform"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if req.UserID == "" || req.Token == "" {
		s.respondError(w, fmt.Errorf("%w: user_id and token are required", errBadRequest))
		return
	}
	switch req.Platform {
	case push.PlatformAndroid, push.PlatformIOS, push.PlatformWeb:
	default:
		s.respondError(w, fmt.Errorf("%w: unknown platform %q", errBadRequest, req.Platform))
		return
	}

	token, err := s.tokens.Register(r.Context(), req.UserID, req.Token, req.Platform, req.DeviceInfo)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.log.InfoContext(r.Context(), "device token registered",
		logger.UserID(req.UserID), slog.String("platform", string(req.Platform)))
	s.respond(w, http.StatusCreated, token)
}

func (s *Server) handleUnregisterDevice(w http.ResponseWriter, r *http.Request) {
	token, err := url.PathUnescape(chi.URLParam(r, "token"))
	if err != nil || token == "" {
		s.respondError(w, fmt.Errorf("%w: token is required", errBadRequest))
		return
	}
	if err := s.tokens.Unregister(r.Context(), token); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "unregistered"})
}
