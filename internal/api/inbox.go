package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/inapp"
	"github.com/campuskit/notify/pkg/logger"
)

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		s.respondError(w, fmt.Errorf("%w: user id is required", errBadRequest))
		return
	}

	opts := inapp.ListOptions{}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.respondError(w, fmt.Errorf("%w: invalid limit", errBadRequest))
			return
		}
		opts.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			s.respondError(w, fmt.Errorf("%w: invalid offset", errBadRequest))
			return
		}
		opts.Offset = offset
	}
	opts.OnlyUnread = q.Get("unread") == "true"

	records, err := s.inbox.List(r.Context(), userID, opts)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, records)
}

type markReadRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if len(req.IDs) == 0 {
		s.respondError(w, fmt.Errorf("%w: ids are required", errBadRequest))
		return
	}
	if err := s.inbox.MarkRead(r.Context(), userID, req.IDs...); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "read"})
}

// handleWebsocket upgrades the connection, replays pending in-app
// notifications and then holds the socket open until the client leaves.
// The user id comes from a query parameter; authentication happens
// upstream of this subsystem.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.respondError(w, fmt.Errorf("%w: user_id query parameter is required", errBadRequest))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WarnContext(r.Context(), "websocket upgrade failed",
			logger.UserID(userID), logger.Error(err))
		return
	}

	if err := s.inbox.Replay(r.Context(), userID, conn); err != nil {
		s.log.ErrorContext(r.Context(), "websocket replay failed",
			logger.UserID(userID), logger.Error(err))
		_ = conn.Close()
		return
	}

	// Drain the read side so ping/pong and close frames are processed.
	// Writes flow through the registry until the client disconnects.
	go func() {
		defer func() {
			s.inbox.Disconnect(userID, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
