package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/live-vibe/internal/service"
)

// handleUploadArt handles POST /api/art (multipart "file", "title", "description")
func (s *Server) handleUploadArt(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, s.config.MaxUploadBytes)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	piece, err := s.art.Upload(r.Context(), service.UploadArtInput{
		UserID:      mustIdentity(r).UserID,
		Title:       up.Form["title"],
		Description: up.Form["description"],
		FileName:    up.FileName,
		ContentType: up.ContentType,
		Data:        up.Data,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, piece)
}

// handleListOwnArt handles GET /api/art
func (s *Server) handleListOwnArt(w http.ResponseWriter, r *http.Request) {
	s.listArt(w, r, mustIdentity(r).UserID)
}

// handleListUserArt handles GET /api/art/user/{userId}
func (s *Server) handleListUserArt(w http.ResponseWriter, r *http.Request) {
	s.listArt(w, r, mux.Vars(r)["userId"])
}

func (s *Server) listArt(w http.ResponseWriter, r *http.Request, userID string) {
	pieces, err := s.art.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"artPieces": pieces})
}

// handleDeleteArt handles DELETE /api/art/{id}
func (s *Server) handleDeleteArt(w http.ResponseWriter, r *http.Request) {
	if err := s.art.Delete(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
