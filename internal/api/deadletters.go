package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/logger"
)

const defaultDeadLetterLimit = 100

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultDeadLetterLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, fmt.Errorf("%w: invalid limit", errBadRequest))
			return
		}
		limit = n
	}

	letters, err := s.dlq.DeadLetters(r.Context(), q.Get("queue"), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, letters)
}

func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: invalid dead letter id", errBadRequest))
		return
	}

	jobID, err := s.dlq.RequeueDeadLetter(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.log.InfoContext(r.Context(), "dead letter requeued", logger.JobID(jobID))
	s.respond(w, http.StatusOK, map[string]string{"job_id": jobID.String()})
}
