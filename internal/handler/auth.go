package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/pkg/respond"
)

type SessionService interface {
	Login(ctx context.Context, creds model.Credentials) error
	Logout(ctx context.Context)
	IsAuthenticated() bool
	User() (model.UserProfile, bool)
}

type AuthHandler struct {
	session SessionService
	logger  *zap.Logger
}

func NewAuthHandler(session SessionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		session: session,
		logger:  logger,
	}
}

type sessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *model.UserProfile `json:"user,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		respond.Error(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	if err := h.session.Login(r.Context(), creds); err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, h.state())
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	respond.NoContent(w)
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, h.state())
}

func (h *AuthHandler) state() sessionResponse {
	resp := sessionResponse{Authenticated: h.session.IsAuthenticated()}
	if u, ok := h.session.User(); ok {
		resp.User = &u
	}
	return resp
}
