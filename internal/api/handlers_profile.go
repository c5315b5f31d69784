package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/service"
	"github.com/live-vibe/internal/types"
)

// handleListArtists handles GET /api/profiles/artists?city=&type=&genre=
func (s *Server) handleListArtists(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := r.URL.Query()

	artists, err := s.profiles.ListArtists(r.Context(), models.ArtistFilter{
		City:       q.Get("city"),
		ArtistType: q.Get("type"),
		Genre:      q.Get("genre"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"artists": artists,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleSaveArtistProfile handles PUT /api/profiles/artist. The profile is
// always saved for the caller regardless of the userId in the body.
func (s *Server) handleSaveArtistProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ArtistProfile
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.UserID = mustIdentity(r).UserID

	profile, err := s.profiles.SaveArtistProfile(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleGetArtistProfile handles GET /api/profiles/artist/{userId}
func (s *Server) handleGetArtistProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profiles.GetArtistProfile(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleSavePromoterProfile handles PUT /api/profiles/promoter
func (s *Server) handleSavePromoterProfile(w http.ResponseWriter, r *http.Request) {
	var req models.PromoterProfile
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.UserID = mustIdentity(r).UserID

	profile, err := s.profiles.SavePromoterProfile(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleGetPromoterProfile handles GET /api/profiles/promoter/{userId}
func (s *Server) handleGetPromoterProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profiles.GetPromoterProfile(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleUploadProfilePhoto handles POST /api/profiles/photo (multipart "file").
// An optional "role" form field overrides the role from the token.
func (s *Server) handleUploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, s.config.MaxUploadBytes)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	identity := mustIdentity(r)
	role := identity.Role
	if v := types.UserRole(up.Form["role"]); v != "" {
		role = v
	}

	url, err := s.profiles.UploadProfilePhoto(r.Context(), service.UploadPhotoInput{
		UserID:      identity.UserID,
		Role:        role,
		FileName:    up.FileName,
		ContentType: up.ContentType,
		Data:        up.Data,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}
