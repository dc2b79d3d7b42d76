package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/inapp"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/push"
	"github.com/campuskit/notify/pkg/queue"
	"github.com/campuskit/notify/pkg/reconcile"
	"github.com/campuskit/notify/pkg/webhook"
)

var (
	errBadRequest      = errors.New("bad request")
	errUnknownProvider = errors.New("unknown provider")
)

// jsonBody is the standard response envelope.
type jsonBody struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *errorDetail   `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(jsonBody{Data: data}); err != nil {
		s.log.Error("failed to encode response", logger.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body := jsonBody{Error: &errorDetail{Code: code, Message: err.Error()}}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		s.log.Error("failed to encode error response", logger.Error(encErr))
	}
}

// statusFor maps domain sentinels to HTTP status codes. Anything
// unmapped is an internal error; handlers validate input before calling
// into the domain, so a surprise here is a server-side bug.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, reconcile.ErrInvalidCallback):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errUnknownProvider):
		return http.StatusNotFound, "unknown_provider"
	case errors.Is(err, webhook.ErrInvalidSignature), errors.Is(err, webhook.ErrMissingSecret):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, webhook.ErrInvalidURL):
		return http.StatusUnprocessableEntity, "invalid_url"
	case errors.Is(err, webhook.ErrSubscriptionNotFound),
		errors.Is(err, push.ErrTokenNotFound),
		errors.Is(err, queue.ErrDeadLetterNotFound),
		errors.Is(err, delivery.ErrLogNotFound),
		errors.Is(err, inapp.ErrRecordNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, inapp.ErrUserIDRequired):
		return http.StatusUnprocessableEntity, "user_id_required"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
