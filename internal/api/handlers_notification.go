package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// handleListNotifications handles GET /api/notifications?unread=true&limit=
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r)
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	items, err := s.notifications.List(r.Context(), mustIdentity(r).UserID, unreadOnly, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": items})
}

// handleMarkNotificationRead handles POST /api/notifications/{id}/read
func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkRead(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMarkAllNotificationsRead handles POST /api/notifications/read
func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.MarkAllRead(r.Context(), mustIdentity(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
