// Package app wires the client together: storage backend, REST client,
// push connection, session, route guard, projects and the item feed.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/api"
	"github.com/BuzzLyutic/task-sync-client/internal/config"
	"github.com/BuzzLyutic/task-sync-client/internal/feed"
	"github.com/BuzzLyutic/task-sync-client/internal/model"
	"github.com/BuzzLyutic/task-sync-client/internal/projects"
	"github.com/BuzzLyutic/task-sync-client/internal/realtime"
	"github.com/BuzzLyutic/task-sync-client/internal/router"
	"github.com/BuzzLyutic/task-sync-client/internal/session"
	"github.com/BuzzLyutic/task-sync-client/internal/store"
	"github.com/BuzzLyutic/task-sync-client/internal/store/filestore"
	"github.com/BuzzLyutic/task-sync-client/internal/store/pgstore"
	"github.com/BuzzLyutic/task-sync-client/internal/store/sqlitestore"
	"github.com/BuzzLyutic/task-sync-client/internal/worker"
)

type App struct {
	Config   config.Config
	Logger   *zap.Logger
	KV       store.KV
	API      *api.Client
	Conn     *realtime.Manager
	Session  *session.Session
	Router   *router.Router
	Projects *projects.Store
	Queue    *worker.Queue
	Pool     *worker.Pool

	closeKV func()

	mu        sync.Mutex
	feed      *feed.Feed
	listeners []func(model.Scope, []model.Item)
}

// New builds the object graph and restores persisted session and project
// state. Nothing is connected yet.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	kv, closeKV, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		KV:      kv,
		closeKV: closeKV,
	}

	// Token and auth state are read lazily, so the session can be built last.
	tokens := api.TokenFunc(func() string { return a.Session.Token() })
	a.API = api.NewClient(cfg.APIURL, cfg.RequestTimeout, tokens, logger.Named("api"))
	a.Conn = realtime.NewManager(realtime.Config{
		URL:         cfg.SocketURL,
		DialTimeout: cfg.DialTimeout,
	}, tokens, logger.Named("realtime"))

	a.Router, err = router.New(router.DefaultRoutes(), router.AuthFunc(func() bool { return a.Session.IsAuthenticated() }), logger.Named("router"))
	if err != nil {
		closeKV()
		return nil, fmt.Errorf("routes: %w", err)
	}

	a.Session = session.New(a.API, a.Conn, a.Router, kv, logger.Named("session"))
	if err := a.Session.Restore(ctx); err != nil {
		closeKV()
		return nil, err
	}

	a.Projects = projects.New(a.API, kv, logger.Named("projects"))
	if err := a.Projects.Restore(ctx); err != nil {
		logger.Warn("active project not restored", zap.Error(err))
	}
	a.Projects.Subscribe(func(ctx context.Context, scope model.Scope) {
		if f := a.currentFeed(); f != nil {
			f.SetScope(ctx, scope)
		}
	})

	a.Queue = worker.NewQueue()
	a.Pool = worker.NewPool(a.Queue, kv, logger.Named("worker"), cfg.WorkerCount, cfg.SnapshotInterval)

	a.Session.Subscribe(func(authenticated bool) {
		if !authenticated {
			a.stopFeed(context.Background())
		}
	})
	return a, nil
}

// OpenStore opens the configured key-value backend.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.KV, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		s := pgstore.New(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres snapshot store")
		return s, pool.Close, nil
	case config.BackendSQLite:
		path := filepath.Join(cfg.DataDir, "tasksync.db")
		s, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite snapshot store", zap.String("path", path))
		return s, func() { _ = s.Close() }, nil
	default:
		s, err := filestore.New(cfg.DataDir, logger.Named("filestore"))
		if err != nil {
			return nil, nil, fmt.Errorf("open data dir %s: %w", cfg.DataDir, err)
		}
		logger.Info("using file snapshot store", zap.String("dir", s.Dir()))
		return s, func() {}, nil
	}
}

// Start connects when a session exists, loads projects and opens the feed
// for the active scope. Without a session it only starts the workers.
func (a *App) Start(ctx context.Context) {
	a.Pool.Start(ctx)

	if !a.Session.IsAuthenticated() {
		return
	}
	a.Session.CheckAuthAndConnect(ctx)
	a.Projects.Fetch(ctx)
	a.startFeed(ctx)
}

// Watch follows token changes made by other processes sharing the data
// directory. Only the file backend supports it.
func (a *App) Watch(ctx context.Context) error {
	fs, ok := a.KV.(*filestore.Store)
	if !ok {
		return nil
	}
	return fs.Watch(ctx, func(key string) {
		if key != store.KeyToken {
			return
		}
		wasAuthenticated := a.Session.IsAuthenticated()
		if err := a.Session.Reload(ctx); err != nil {
			a.Logger.Warn("reload session failed", zap.Error(err))
			return
		}
		if !wasAuthenticated && a.Session.IsAuthenticated() {
			a.Session.CheckAuthAndConnect(ctx)
			a.Projects.Fetch(ctx)
			a.startFeed(ctx)
		}
	})
}

// Login authenticates and, on success, loads projects and opens the feed.
func (a *App) Login(ctx context.Context, creds model.Credentials) error {
	if err := a.Session.Login(ctx, creds); err != nil {
		return err
	}
	a.Projects.Fetch(ctx)
	a.startFeed(ctx)
	return nil
}

func (a *App) Logout(ctx context.Context) {
	a.stopFeed(ctx)
	a.Session.Logout(ctx)
}

func (a *App) IsAuthenticated() bool { return a.Session.IsAuthenticated() }

func (a *App) User() (model.UserProfile, bool) { return a.Session.User() }

// Items, Loading and Scope expose the running feed; with none running the
// list is empty.
func (a *App) Items() []model.Item {
	if f := a.currentFeed(); f != nil {
		return f.Items()
	}
	return []model.Item{}
}

func (a *App) Loading() bool {
	if f := a.currentFeed(); f != nil {
		return f.Loading()
	}
	return false
}

func (a *App) Scope() model.Scope {
	if f := a.currentFeed(); f != nil {
		return f.Scope()
	}
	return a.Projects.Scope()
}

// Feed returns the running feed, nil when logged out.
func (a *App) Feed() *feed.Feed { return a.currentFeed() }

// OnItems registers fn to receive every list change of the running feed.
func (a *App) OnItems(fn func(scope model.Scope, items []model.Item)) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

func (a *App) itemsChanged(scope model.Scope, items []model.Item) {
	a.Queue.EnqueueScope(scope, items)

	a.mu.Lock()
	listeners := append([]func(model.Scope, []model.Item){}, a.listeners...)
	a.mu.Unlock()
	for _, fn := range listeners {
		fn(scope, items)
	}
}

func (a *App) currentFeed() *feed.Feed {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.feed
}

func (a *App) startFeed(ctx context.Context) *feed.Feed {
	f := feed.New(a.API, a.Conn, a.Session, a.Logger.Named("feed"), feed.WithOnChange(a.itemsChanged))

	a.mu.Lock()
	old := a.feed
	a.feed = f
	a.mu.Unlock()

	if old != nil {
		old.Close(ctx)
	}
	f.Open(ctx, a.Projects.Scope())
	return f
}

func (a *App) stopFeed(ctx context.Context) {
	a.mu.Lock()
	f := a.feed
	a.feed = nil
	a.mu.Unlock()

	if f != nil {
		f.Close(ctx)
	}
}

// Close stops the workers, saves what they had queued and releases the
// connection and the store.
func (a *App) Close(ctx context.Context) {
	a.stopFeed(ctx)
	a.Pool.Stop()
	if err := a.Pool.Flush(ctx); err != nil {
		a.Logger.Warn("flush snapshots failed", zap.Error(err))
	}
	a.Conn.Disconnect()
	a.closeKV()
}
