package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/api"
	"github.com/BuzzLyutic/task-sync-client/internal/feed"
	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/realtime"
	"github.com/BuzzLyutic/task-sync-client/internal/testutil"
	"github.com/BuzzLyutic/task-sync-client/pkg/respond"
)

type user int64

func (u user) CurrentUserID() (int64, bool) { return int64(u), true }

func TestFeed_LiveChannel(t *testing.T) {
	pid := int64(5)
	r := chi.NewRouter()
	r.Get("/api/items", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("proyectoId") != "5" || r.URL.Query().Get("tipo") != "task" {
			respond.JSON(w, r, http.StatusOK, []model.Item{})
			return
		}
		respond.JSON(w, r, http.StatusOK, []model.Item{{ID: 1, ProjectID: &pid, Type: model.TypeTask, Title: "existing"}})
	})
	backend := httptest.NewServer(r)
	t.Cleanup(backend.Close)

	push := testutil.NewPushServer(t)
	tokens := api.TokenFunc(func() string { return "tok" })
	client := api.NewClient(backend.URL+"/api", 2*time.Second, tokens, zap.NewNop())
	conn := realtime.NewManager(realtime.Config{URL: push.URL(), DialTimeout: 2 * time.Second}, tokens, zap.NewNop())
	t.Cleanup(conn.Disconnect)

	f := feed.New(client, conn, user(42), zap.NewNop())
	ctx := context.Background()
	f.Open(ctx, model.ProjectScope(5))
	require.Len(t, f.Items(), 1)

	ok := testutil.WaitForCondition(t, 2*time.Second, func() bool {
		return len(push.Received()) >= 2
	})
	require.True(t, ok, "frames: %v", push.Events())
	assert.Equal(t, []string{`authenticate:"tok"`, "join_project:5"}, push.Events()[:2])

	push.Send(t, model.EventItemCreated, model.Item{ID: 2, ProjectID: &pid, Type: model.TypeTask, Title: "pushed"})
	ok = testutil.WaitForCondition(t, 2*time.Second, func() bool {
		return len(f.Items()) == 2
	})
	require.True(t, ok)
	assert.Equal(t, int64(2), f.Items()[0].ID)

	push.Send(t, model.EventItemDeleted, model.ItemDeleted{ID: 1, ProjectID: &pid})
	ok = testutil.WaitForCondition(t, 2*time.Second, func() bool {
		return len(f.Items()) == 1
	})
	require.True(t, ok)

	push.ResetReceived()
	f.SetScope(ctx, model.Personal())
	ok = testutil.WaitForCondition(t, 2*time.Second, func() bool {
		return len(push.Received()) >= 2
	})
	require.True(t, ok, "frames: %v", push.Events())
	assert.Equal(t, []string{"leave_project:5", "join_user_room:42"}, push.Events())
	assert.Empty(t, f.Items())
	assert.Equal(t, []string{"user_42"}, conn.Rooms())
}
