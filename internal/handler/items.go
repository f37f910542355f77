package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/filter"
	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/pkg/respond"
)

type FeedService interface {
	Items() []model.Item
	Loading() bool
	Scope() model.Scope
}

type ScopeSetter interface {
	SetCurrent(ctx context.Context, id *int64) error
}

type ItemHandler struct {
	feed   FeedService
	scopes ScopeSetter
	logger *zap.Logger
}

func NewItemHandler(feed FeedService, scopes ScopeSetter, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{
		feed:   feed,
		scopes: scopes,
		logger: logger,
	}
}

type itemsResponse struct {
	Scope   model.Scope  `json:"proyecto_id"`
	Loading bool         `json:"loading"`
	Items   []model.Item `json:"items"`
	Tags    []string     `json:"tags"`
}

// List serves the synced list for the current scope, narrowed by the
// completion, tag and sort query parameters.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	completion, err := filter.ParseCompletion(q.Get("completion"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	order, err := filter.ParseSort(q.Get("sort"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view := filter.View{Completion: completion, Tag: q.Get("tag"), Sort: order}

	respond.JSON(w, r, http.StatusOK, h.snapshot(view))
}

type scopeRequest struct {
	ProjectID *int64 `json:"proyecto_id"`
}

// SetScope switches the synced scope; a null proyecto_id selects personal items.
func (h *ItemHandler) SetScope(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProjectID != nil && *req.ProjectID <= 0 {
		respond.Error(w, r, http.StatusBadRequest, "proyecto_id must be positive")
		return
	}

	if err := h.scopes.SetCurrent(r.Context(), req.ProjectID); err != nil {
		// Scope уже переключён, на диск не записалось только значение
		h.logger.Warn("scope change not persisted", zap.Error(err))
	}
	respond.JSON(w, r, http.StatusOK, h.snapshot(filter.View{}))
}

func (h *ItemHandler) snapshot(view filter.View) itemsResponse {
	items := h.feed.Items()
	tags := filter.Tags(items)
	if tags == nil {
		tags = []string{}
	}
	return itemsResponse{
		Scope:   h.feed.Scope(),
		Loading: h.feed.Loading(),
		Items:   view.Apply(items),
		Tags:    tags,
	}
}
