package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/store"
)

var ErrValidation = errors.New("validation error")

type API interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, p model.NewProject) (model.Project, error)
}

// Store holds the user's projects and which one is active. The active
// project survives restarts through the key-value store.
type Store struct {
	api    API
	kv     store.KV
	logger *zap.Logger

	mu          sync.Mutex
	list        []model.Project
	loading     bool
	current     *int64
	subscribers map[int]func(context.Context, model.Scope)
	nextSub     int
}

func New(api API, kv store.KV, logger *zap.Logger) *Store {
	return &Store{
		api:         api,
		kv:          kv,
		logger:      logger,
		list:        []model.Project{},
		subscribers: make(map[int]func(context.Context, model.Scope)),
	}
}

// Restore loads the persisted active project id. A missing or unreadable
// value leaves the personal scope active.
func (s *Store) Restore(ctx context.Context) error {
	id, ok, err := store.ReadValue[*int64](ctx, s.kv, store.KeyActiveProjectID)
	if err != nil {
		return fmt.Errorf("restore active project: %w", err)
	}
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return nil
}

// Fetch reloads the project list. Errors leave an empty list.
func (s *Store) Fetch(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	list, err := s.api.ListProjects(ctx)
	if err != nil {
		s.logger.Error("fetch projects failed", zap.Error(err))
		list = []model.Project{}
	}

	s.mu.Lock()
	s.list = list
	s.loading = false
	s.mu.Unlock()

	s.logger.Debug("projects fetched", zap.Int("count", len(list)))
}

func (s *Store) List() []model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Project{}, s.list...)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Current is the active project id, nil for the personal scope.
func (s *Store) Current() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

func (s *Store) Scope() model.Scope {
	return model.ScopeOf(s.Current())
}

// Active returns the listed project matching the current id.
func (s *Store) Active() (model.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Project{}, false
	}
	for _, p := range s.list {
		if p.ID == *s.current {
			return p, true
		}
	}
	return model.Project{}, false
}

// SetCurrent makes id the active project (nil for personal), persists it and
// notifies subscribers when the scope actually changed.
func (s *Store) SetCurrent(ctx context.Context, id *int64) error {
	next := model.ScopeOf(id)

	s.mu.Lock()
	prev := model.ScopeOf(s.current)
	s.current = next.ProjectIDPtr()
	subs := make([]func(context.Context, model.Scope), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	var persistErr error
	if err := store.SaveValue(ctx, s.kv, store.KeyActiveProjectID, next.ProjectIDPtr()); err != nil {
		persistErr = fmt.Errorf("persist active project: %w", err)
	}

	if prev != next {
		s.logger.Info("active project changed", zap.Stringer("scope", next))
		for _, fn := range subs {
			fn(ctx, next)
		}
	}
	return persistErr
}

// Subscribe registers fn for scope changes made through SetCurrent. fn runs
// synchronously with the caller's context.
func (s *Store) Subscribe(fn func(ctx context.Context, scope model.Scope)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Create adds a project on the server, appends it and makes it current.
func (s *Store) Create(ctx context.Context, name string, description *string) (model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Project{}, fmt.Errorf("%w: project name is required", ErrValidation)
	}

	p, err := s.api.CreateProject(ctx, model.NewProject{Name: name, Description: description})
	if err != nil {
		s.logger.Error("create project failed", zap.String("name", name), zap.Error(err))
		return model.Project{}, fmt.Errorf("create project: %w", err)
	}

	s.mu.Lock()
	s.list = append(s.list, p)
	s.mu.Unlock()

	id := p.ID
	if err := s.SetCurrent(ctx, &id); err != nil {
		s.logger.Warn("created project not persisted as active", zap.Int64("project_id", id), zap.Error(err))
	}
	return p, nil
}
