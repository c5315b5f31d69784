package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/service"
)

// usageResponse adds the derived remaining count to the usage row
type usageResponse struct {
	*models.AIGenerationUsage
	Remaining   int  `json:"remaining"`
	CanGenerate bool `json:"canGenerate"`
}

// handleGetAIUsage handles GET /api/ai/usage
func (s *Server) handleGetAIUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.aiStudio.GetUsage(r.Context(), mustIdentity(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, usageResponse{
		AIGenerationUsage: usage,
		Remaining:         usage.Remaining(),
		CanGenerate:       usage.CanGenerate(),
	})
}

// handleCreateAIProject handles POST /api/ai/projects. The project is
// returned as soon as the generation task is submitted; a failed submission
// still yields 201 with the project in the failed state.
func (s *Server) handleCreateAIProject(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProjectInput
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.UserID = mustIdentity(r).UserID

	project, err := s.aiStudio.CreateProject(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

// handleListAIProjects handles GET /api/ai/projects
func (s *Server) handleListAIProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.aiStudio.ListProjects(r.Context(), mustIdentity(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

// handleGetAIProject handles GET /api/ai/projects/{id}
func (s *Server) handleGetAIProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.aiStudio.GetProject(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// handleDeleteAIProject handles DELETE /api/ai/projects/{id}
func (s *Server) handleDeleteAIProject(w http.ResponseWriter, r *http.Request) {
	if err := s.aiStudio.DeleteProject(r.Context(), mustIdentity(r).UserID, mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUploadAIAsset handles POST /api/ai/assets (multipart "file")
func (s *Server) handleUploadAIAsset(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, s.config.MaxUploadBytes)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	url, err := s.aiStudio.UploadAsset(r.Context(), mustIdentity(r).UserID, up.FileName, up.ContentType, up.Data)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"url": url})
}
