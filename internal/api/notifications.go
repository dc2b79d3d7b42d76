package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/dispatch"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
	"github.com/campuskit/notify/pkg/queue"
)

// submitRequest is the POST /api/notifications body. With Enqueue set
// the notification is queued and dispatched by a worker; otherwise it
// is dispatched inline and the per-channel results are returned.
type submitRequest struct {
	TenantID  string                                        `json:"tenant_id"`
	Type      string                                        `json:"type"`
	Priority  string                                        `json:"priority,omitempty"`
	Channels  []notification.Channel                        `json:"channels"`
	Content   map[notification.Channel]notification.Content `json:"content,omitempty"`
	Recipient notification.Recipient                        `json:"recipient"`
	Enqueue   bool                                          `json:"enqueue,omitempty"`
	RunAt     *time.Time                                    `json:"run_at,omitempty"`
}

type submitResponse struct {
	Notification notification.Notification                       `json:"notification"`
	JobID        *uuid.UUID                                      `json:"job_id,omitempty"`
	Results      map[notification.Channel]dispatch.ChannelResult `json:"results,omitempty"`
}

func parsePriority(s string) (notification.Priority, error) {
	switch s {
	case "", "normal":
		return notification.PriorityNormal, nil
	case "low":
		return notification.PriorityLow, nil
	case "high":
		return notification.PriorityHigh, nil
	case "urgent":
		return notification.PriorityUrgent, nil
	}
	return 0, fmt.Errorf("%w: unknown priority %q", errBadRequest, s)
}

func (req submitRequest) validate() error {
	if req.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", errBadRequest)
	}
	if req.Type == "" {
		return fmt.Errorf("%w: type is required", errBadRequest)
	}
	if len(req.Channels) == 0 {
		return fmt.Errorf("%w: at least one channel is required", errBadRequest)
	}
	for _, ch := range req.Channels {
		if !ch.Valid() {
			return fmt.Errorf("%w: unknown channel %q", errBadRequest, ch)
		}
	}
	return nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		s.respondError(w, err)
		return
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		s.respondError(w, err)
		return
	}

	n := notification.New(req.TenantID, req.Type, priority, req.Channels)
	for ch, content := range req.Content {
		n.Content[ch] = content
	}

	if req.Enqueue {
		var opts []queue.EnqueueOption
		if req.RunAt != nil {
			if delay := time.Until(*req.RunAt); delay > 0 {
				opts = append(opts, queue.WithDelay(delay))
			}
		}
		jobID, err := dispatch.Enqueue(r.Context(), s.enqueuer, n, req.Recipient, opts...)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.log.InfoContext(r.Context(), "notification enqueued",
			logger.NotificationID(n.ID), logger.JobID(jobID), logger.TenantID(n.TenantID))
		s.respond(w, http.StatusAccepted, submitResponse{Notification: n, JobID: &jobID})
		return
	}

	results, err := s.router.Dispatch(r.Context(), &n, req.Recipient)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, submitResponse{Notification: n, Results: results})
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: invalid notification id", errBadRequest))
		return
	}
	logs, err := s.logs.ListByNotification(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, logs)
}
