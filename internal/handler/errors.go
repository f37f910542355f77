package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/api"
	"github.com/BuzzLyutic/task-sync-client/internal/projects"
	"github.com/BuzzLyutic/task-sync-client/pkg/respond"
)

func handleErrors(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		respond.Error(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, api.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, api.ErrValidation), errors.Is(err, projects.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, "validation error")
	case errors.Is(err, api.ErrServer):
		logger.Error("upstream error", zap.Error(err))
		respond.Error(w, r, http.StatusBadGateway, "upstream error")
	default:
		logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
