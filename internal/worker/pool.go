// Package worker persists item list snapshots in the background so the last
// known list of every scope is available offline.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/store"
)

var errQueueEmpty = errors.New("no pending snapshots")

// SnapshotKey is the store key holding the list for scope.
func SnapshotKey(scope model.Scope) string {
	return "items:" + scope.String()
}

// Queue holds at most one pending snapshot per key; a newer list for the
// same key replaces the older one and keeps its place in line.
type Queue struct {
	mu      sync.Mutex
	pending map[string][]model.Item
	order   []string
}

func NewQueue() *Queue {
	return &Queue{pending: make(map[string][]model.Item)}
}

func (q *Queue) Enqueue(key string, items []model.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[key]; !ok {
		q.order = append(q.order, key)
	}
	q.pending[key] = append([]model.Item{}, items...)
}

// EnqueueScope is Enqueue under the scope's snapshot key; it matches the
// feed change hook.
func (q *Queue) EnqueueScope(scope model.Scope, items []model.Item) {
	q.Enqueue(SnapshotKey(scope), items)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

func (q *Queue) claim() (string, []model.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return "", nil, false
	}
	key := q.order[0]
	q.order = q.order[1:]
	items := q.pending[key]
	delete(q.pending, key)
	return key, items, true
}

// requeue puts back a snapshot that failed to save unless a newer one arrived meanwhile.
func (q *Queue) requeue(key string, items []model.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[key]; ok {
		return
	}
	q.order = append(q.order, key)
	q.pending[key] = items
}

type Pool struct {
	queue    *Queue
	kv       store.KV
	logger   *zap.Logger
	count    int
	interval time.Duration
	wg       sync.WaitGroup
	stop     chan struct{}
}

func NewPool(queue *Queue, kv store.KV, logger *zap.Logger, count int, interval time.Duration) *Pool {
	if count < 1 {
		count = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Pool{
		queue:    queue,
		kv:       kv,
		logger:   logger,
		count:    count,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting snapshot workers", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Stop() {
	p.logger.Info("Stopping snapshot workers...")
	close(p.stop)
	p.wg.Wait()
	p.logger.Info("Snapshot workers stopped")
}

// Flush saves every pending snapshot on the calling goroutine. Used after
// Stop so nothing queued is lost on shutdown.
func (p *Pool) Flush(ctx context.Context) error {
	for {
		err := p.processNext(ctx, -1)
		if errors.Is(err, errQueueEmpty) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.processNext(ctx, id); err != nil && !errors.Is(err, errQueueEmpty) {
				p.logger.Error("snapshot worker error", zap.Int("worker", id), zap.Error(err))
			}
		}
	}
}

func (p *Pool) processNext(ctx context.Context, workerID int) error {
	key, items, ok := p.queue.claim()
	if !ok {
		return errQueueEmpty
	}

	start := time.Now()
	if err := store.OverwriteList(ctx, p.kv, key, items); err != nil {
		// Вернуть снимок в очередь, если новее ещё не пришёл
		p.queue.requeue(key, items)
		return err
	}

	p.logger.Debug("Snapshot saved",
		zap.Int("worker", workerID),
		zap.String("key", key),
		zap.Int("items", len(items)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
