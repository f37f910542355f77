package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/pkg/respond"
)

type ProjectService interface {
	Fetch(ctx context.Context)
	List() []model.Project
	Current() *int64
	Create(ctx context.Context, name string, description *string) (model.Project, error)
}

type ProjectHandler struct {
	projects ProjectService
	logger   *zap.Logger
}

func NewProjectHandler(projects ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		logger:   logger,
	}
}

type projectsResponse struct {
	Projects []model.Project `json:"projects"`
	Current  *int64          `json:"current"`
}

// List returns the cached projects; ?refresh=1 refetches them first.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		h.projects.Fetch(r.Context())
	}
	respond.JSON(w, r, http.StatusOK, projectsResponse{
		Projects: h.projects.List(),
		Current:  h.projects.Current(),
	})
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req model.NewProject
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	p, err := h.projects.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}

	respond.JSON(w, r, http.StatusCreated, p)
}
