package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/api"
	"github.com/BuzzLyutic/task-sync-client/internal/model"
)

// scopeLister answers every fetch with one task in the requested scope, id
// derived from the scope so the final list shows which fetch won.
type scopeLister struct{}

func (scopeLister) ListItems(_ context.Context, q api.ItemQuery) ([]model.Item, error) {
	id, ok := q.Scope.ProjectID()
	if !ok {
		return []model.Item{task(1000, nil)}, nil
	}
	return []model.Item{task(1000+id, q.Scope.ProjectIDPtr())}, nil
}

func TestConcurrent_CreatesAndReads(t *testing.T) {
	// Run with -race.
	lister := new(MockLister)
	lister.On("ListItems", mock.Anything, query(model.Personal())).Return([]model.Item{}, nil)
	ch := newFakeChannel()
	f := New(lister, ch, testUser, zap.NewNop())
	f.Open(context.Background(), model.Personal())

	const creators = 5
	const perCreator = 20
	const readers = 5

	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < perCreator; j++ {
				item := task(int64(idx*perCreator+j+1), nil)
				item.Title = fmt.Sprintf("Task %d-%d", idx, j)
				ch.push(t, model.EventItemCreated, item)
			}
		}(i)
	}

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = f.Items()
				_ = f.Loading()
			}
		}()
	}

	wg.Wait()
	assert.Len(t, f.Items(), creators*perCreator)
}

func TestConcurrent_DuplicateCreates(t *testing.T) {
	lister := new(MockLister)
	lister.On("ListItems", mock.Anything, query(model.Personal())).Return([]model.Item{}, nil)
	ch := newFakeChannel()
	f := New(lister, ch, testUser, zap.NewNop())
	f.Open(context.Background(), model.Personal())

	const goroutines = 10
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.push(t, model.EventItemCreated, task(7, nil))
		}()
	}
	wg.Wait()

	assert.Len(t, f.Items(), 1, "same item pushed concurrently must be listed once")
}

func TestConcurrent_ScopeChanges(t *testing.T) {
	ch := newFakeChannel()
	f := New(scopeLister{}, ch, testUser, zap.NewNop())
	ctx := context.Background()
	f.Open(ctx, model.Personal())

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			f.SetScope(ctx, model.ProjectScope(id))
		}(int64(i))
	}
	wg.Wait()

	// Whatever order the changes landed in, the list belongs to the final scope.
	scope := f.Scope()
	items := f.Items()
	if assert.Len(t, items, 1) {
		assert.True(t, scope.Matches(items[0].ProjectID), "items %v do not match scope %s", items, scope)
	}
	assert.False(t, f.Loading())
}
