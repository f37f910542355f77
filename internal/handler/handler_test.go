package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/api"
	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/projects"
)

type MockSession struct {
	mock.Mock
}

func (m *MockSession) Login(ctx context.Context, creds model.Credentials) error {
	return m.Called(ctx, creds).Error(0)
}

func (m *MockSession) Logout(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockSession) IsAuthenticated() bool {
	return m.Called().Bool(0)
}

func (m *MockSession) User() (model.UserProfile, bool) {
	args := m.Called()
	return args.Get(0).(model.UserProfile), args.Bool(1)
}

type MockProjects struct {
	mock.Mock
}

func (m *MockProjects) Fetch(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockProjects) List() []model.Project {
	return m.Called().Get(0).([]model.Project)
}

func (m *MockProjects) Current() *int64 {
	v := m.Called().Get(0)
	if v == nil {
		return nil
	}
	return v.(*int64)
}

func (m *MockProjects) Create(ctx context.Context, name string, description *string) (model.Project, error) {
	args := m.Called(ctx, name, description)
	return args.Get(0).(model.Project), args.Error(1)
}

func (m *MockProjects) SetCurrent(ctx context.Context, id *int64) error {
	return m.Called(ctx, id).Error(0)
}

type stubFeed struct {
	scope   model.Scope
	items   []model.Item
	loading bool
}

func (f *stubFeed) Items() []model.Item { return append([]model.Item{}, f.items...) }
func (f *stubFeed) Loading() bool       { return f.loading }
func (f *stubFeed) Scope() model.Scope  { return f.scope }

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	if v == nil {
		return bytes.NewReader(nil)
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		setupMock func(*MockSession)
		wantCode  int
	}{
		{
			name: "success",
			body: model.Credentials{Email: "ana@example.com", Password: "secret"},
			setupMock: func(m *MockSession) {
				m.On("Login", mock.Anything, model.Credentials{Email: "ana@example.com", Password: "secret"}).Return(nil)
				m.On("IsAuthenticated").Return(true)
				m.On("User").Return(model.UserProfile{ID: 7, Email: "ana@example.com"}, true)
			},
			wantCode: http.StatusOK,
		},
		{
			name:      "empty body",
			body:      nil,
			setupMock: func(m *MockSession) {},
			wantCode:  http.StatusBadRequest,
		},
		{
			name:      "missing password",
			body:      model.Credentials{Email: "ana@example.com"},
			setupMock: func(m *MockSession) {},
			wantCode:  http.StatusBadRequest,
		},
		{
			name: "rejected credentials",
			body: model.Credentials{Email: "ana@example.com", Password: "wrong"},
			setupMock: func(m *MockSession) {
				m.On("Login", mock.Anything, mock.Anything).Return(&api.Error{StatusCode: http.StatusUnauthorized, Message: "invalid"})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "backend down",
			body: model.Credentials{Email: "ana@example.com", Password: "secret"},
			setupMock: func(m *MockSession) {
				m.On("Login", mock.Anything, mock.Anything).Return(&api.Error{StatusCode: http.StatusServiceUnavailable})
			},
			wantCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := new(MockSession)
			tt.setupMock(sess)
			h := NewAuthHandler(sess, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, tt.body))
			w := httptest.NewRecorder()
			h.Login(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				var resp sessionResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.True(t, resp.Authenticated)
				require.NotNil(t, resp.User)
				assert.Equal(t, int64(7), resp.User.ID)
			}
			sess.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	sess := new(MockSession)
	sess.On("Logout", mock.Anything).Return()
	h := NewAuthHandler(sess, zap.NewNop())

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	sess.AssertExpectations(t)
}

func TestItemHandler_List(t *testing.T) {
	pid := int64(5)
	feed := &stubFeed{
		scope: model.ProjectScope(5),
		items: []model.Item{
			{ID: 1, ProjectID: &pid, Type: model.TypeTask, Title: "a", Completed: true, Tags: []string{"home"}},
			{ID: 2, ProjectID: &pid, Type: model.TypeTask, Title: "b", Tags: []string{"work"}},
		},
	}
	h := NewItemHandler(feed, new(MockProjects), zap.NewNop())

	r := chi.NewRouter()
	r.Get("/app/tareas", h.List)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []int64
	}{
		{"all", "", http.StatusOK, []int64{1, 2}},
		{"pending", "?completion=pending", http.StatusOK, []int64{2}},
		{"tag", "?tag=home", http.StatusOK, []int64{1}},
		{"bad completion", "?completion=done", http.StatusBadRequest, nil},
		{"bad sort", "?sort=title", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app/tareas"+tt.query, nil))

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp itemsResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, model.ProjectScope(5), resp.Scope)
			assert.Equal(t, []string{"home", "work"}, resp.Tags)
			got := []int64{}
			for _, it := range resp.Items {
				got = append(got, it.ID)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}

func TestItemHandler_SetScope(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		setupMock func(*MockProjects)
		wantCode  int
	}{
		{
			name: "project",
			body: `{"proyecto_id":5}`,
			setupMock: func(m *MockProjects) {
				m.On("SetCurrent", mock.Anything, mock.MatchedBy(func(id *int64) bool { return id != nil && *id == 5 })).Return(nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "personal",
			body: `{"proyecto_id":null}`,
			setupMock: func(m *MockProjects) {
				m.On("SetCurrent", mock.Anything, (*int64)(nil)).Return(nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name:      "invalid id",
			body:      `{"proyecto_id":-1}`,
			setupMock: func(m *MockProjects) {},
			wantCode:  http.StatusBadRequest,
		},
		{
			name:      "invalid json",
			body:      `{`,
			setupMock: func(m *MockProjects) {},
			wantCode:  http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scopes := new(MockProjects)
			tt.setupMock(scopes)
			h := NewItemHandler(&stubFeed{}, scopes, zap.NewNop())

			w := httptest.NewRecorder()
			h.SetScope(w, httptest.NewRequest(http.MethodPut, "/app/scope", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantCode, w.Code)
			scopes.AssertExpectations(t)
		})
	}
}

func TestProjectHandler(t *testing.T) {
	t.Run("list with refresh", func(t *testing.T) {
		svc := new(MockProjects)
		svc.On("Fetch", mock.Anything).Return()
		svc.On("List").Return([]model.Project{{ID: 1, Name: "Home"}})
		svc.On("Current").Return(nil)
		h := NewProjectHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/projects?refresh=1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp projectsResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Len(t, resp.Projects, 1)
		assert.Nil(t, resp.Current)
		svc.AssertExpectations(t)
	})

	t.Run("create", func(t *testing.T) {
		svc := new(MockProjects)
		svc.On("Create", mock.Anything, "Garden", (*string)(nil)).Return(model.Project{ID: 3, Name: "Garden"}, nil)
		h := NewProjectHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.Create(w, httptest.NewRequest(http.MethodPost, "/projects", jsonBody(t, model.NewProject{Name: "Garden"})))

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("create validation", func(t *testing.T) {
		svc := new(MockProjects)
		svc.On("Create", mock.Anything, "", (*string)(nil)).Return(model.Project{}, projects.ErrValidation)
		h := NewProjectHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.Create(w, httptest.NewRequest(http.MethodPost, "/projects", jsonBody(t, model.NewProject{})))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
