package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/live-vibe/internal/service"
	"github.com/live-vibe/internal/types"
)

// handleCreateBooking handles POST /api/bookings. The caller is the organizer.
func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingInput
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.OrganizerID = mustIdentity(r).UserID

	booking, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, booking)
}

// handleListBookings handles GET /api/bookings?as=artist|promoter.
// Without "as" the role from the caller's token is used.
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	role := identity.Role
	if as := r.URL.Query().Get("as"); as != "" {
		role = types.UserRole(as)
	}

	bookings, err := s.bookings.ListBookings(r.Context(), identity.UserID, role)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"bookings": bookings})
}

// handleGetBooking handles GET /api/bookings/{id}
func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.GetBooking(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, booking)
}

// handleRespondToBooking handles POST /api/bookings/{id}/respond. The caller is the artist.
func (s *Server) handleRespondToBooking(w http.ResponseWriter, r *http.Request) {
	var req service.RespondInput
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.ArtistID = mustIdentity(r).UserID
	req.BookingID = mux.Vars(r)["id"]

	booking, err := s.bookings.RespondToBooking(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, booking)
}

// handleCancelBooking handles POST /api/bookings/{id}/cancel
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.CancelBooking(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, booking)
}

// handleQuoteBooking handles GET /api/bookings/{id}/quote
func (s *Server) handleQuoteBooking(w http.ResponseWriter, r *http.Request) {
	charge, err := s.bookings.QuoteBooking(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, charge)
}

// handlePayBooking handles POST /api/bookings/{id}/pay
func (s *Server) handlePayBooking(w http.ResponseWriter, r *http.Request) {
	var req service.PayBookingInput
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	identity := mustIdentity(r)
	req.OrganizerID = identity.UserID
	req.BookingID = mux.Vars(r)["id"]
	if req.BuyerEmail == "" {
		req.BuyerEmail = identity.Email
	}

	result, err := s.bookings.PayBooking(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleListPayments handles GET /api/payments
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.bookings.ListPayments(r.Context(), mustIdentity(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}
