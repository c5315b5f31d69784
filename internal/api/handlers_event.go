package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// handleCreateEvent handles POST /api/events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.Event
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	event, err := s.events.CreateEvent(r.Context(), mustIdentity(r).UserID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, event)
}

// handleListOpenEvents handles GET /api/events?city= and lists events accepting bookings
func (s *Server) handleListOpenEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	events, err := s.events.ListOpenEvents(r.Context(), r.URL.Query().Get("city"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events, "limit": limit, "offset": offset})
}

// handleListMyEvents handles GET /api/events/mine
func (s *Server) handleListMyEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	events, err := s.events.ListOrganizerEvents(r.Context(), mustIdentity(r).UserID, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events, "limit": limit, "offset": offset})
}

// handleGetEvent handles GET /api/events/{id}
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.events.GetEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, event)
}

// handleUpdateEventStatus handles PUT /api/events/{id}/status
func (s *Server) handleUpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status types.EventStatus `json:"status"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	event, err := s.events.UpdateEventStatus(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"], req.Status)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, event)
}

// handleSetAvailability handles PUT /api/availability for the calling artist
func (s *Server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	var req models.ArtistAvailability
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	slot, err := s.events.SetAvailability(r.Context(), mustIdentity(r).UserID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, slot)
}

// handleListAvailability handles GET /api/availability/{artistId}?from=&to=
func (s *Server) handleListAvailability(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	slots, err := s.events.ListAvailability(r.Context(), mux.Vars(r)["artistId"], from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"availability": slots})
}

// handleDeleteAvailability handles DELETE /api/availability/{id}
func (s *Server) handleDeleteAvailability(w http.ResponseWriter, r *http.Request) {
	if err := s.events.DeleteAvailability(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
