// Package router holds the route table and the navigation guard: routes
// that require a session send guests to the auth view, guest-only routes
// send signed-in users to the task view.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/pkg/respond"
)

const (
	NameAuth   = "Auth"
	NameTareas = "Tareas"

	PathAuth   = "/auth"
	PathTareas = "/app/tareas"
)

const maxRedirects = 4

var (
	ErrUnknownRoute  = errors.New("unknown route")
	ErrRedirectLoop  = errors.New("redirect loop")
	ErrDuplicateName = errors.New("duplicate route")
)

type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
	Guest        bool
}

func DefaultRoutes() []Route {
	return []Route{
		{Name: NameTareas, Path: PathTareas, RequiresAuth: true},
		{Name: NameAuth, Path: PathAuth, Guest: true},
	}
}

// Decision is the guard result: proceed, or redirect to the named route.
type Decision struct {
	Proceed  bool
	Redirect string
}

// Guard decides whether navigation to `to` may proceed.
func Guard(to Route, authenticated bool) Decision {
	if to.RequiresAuth && !authenticated {
		return Decision{Redirect: NameAuth}
	}
	if to.Guest && authenticated {
		return Decision{Redirect: NameTareas}
	}
	return Decision{Proceed: true}
}

type AuthState interface {
	IsAuthenticated() bool
}

type AuthFunc func() bool

func (f AuthFunc) IsAuthenticated() bool { return f() }

type Router struct {
	byPath map[string]Route
	byName map[string]Route
	auth   AuthState
	logger *zap.Logger

	mu        sync.RWMutex
	current   Route
	listeners []func(Route)
}

func New(routes []Route, auth AuthState, logger *zap.Logger) (*Router, error) {
	r := &Router{
		byPath: make(map[string]Route, len(routes)),
		byName: make(map[string]Route, len(routes)),
		auth:   auth,
		logger: logger,
	}
	for _, route := range routes {
		if _, ok := r.byName[route.Name]; ok {
			return nil, fmt.Errorf("%w: name %s", ErrDuplicateName, route.Name)
		}
		if _, ok := r.byPath[route.Path]; ok {
			return nil, fmt.Errorf("%w: path %s", ErrDuplicateName, route.Path)
		}
		r.byName[route.Name] = route
		r.byPath[route.Path] = route
	}
	return r, nil
}

func (r *Router) Resolve(path string) (Route, bool) {
	route, ok := r.byPath[path]
	return route, ok
}

func (r *Router) ByName(name string) (Route, bool) {
	route, ok := r.byName[name]
	return route, ok
}

// Navigate guards the route at path, follows redirects and makes the final
// route current.
func (r *Router) Navigate(ctx context.Context, path string) error {
	to, ok := r.Resolve(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoute, path)
	}

	for hop := 0; hop <= maxRedirects; hop++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, proceed, err := r.check(to)
		if err != nil {
			return err
		}
		if proceed {
			r.setCurrent(to)
			return nil
		}
		r.logger.Debug("navigation redirected", zap.String("from", to.Path), zap.String("to", target.Path))
		to = target
	}
	return fmt.Errorf("%w: %s", ErrRedirectLoop, path)
}

func (r *Router) check(to Route) (Route, bool, error) {
	d := Guard(to, r.auth.IsAuthenticated())
	if d.Proceed {
		return to, true, nil
	}
	target, ok := r.byName[d.Redirect]
	if !ok {
		return Route{}, false, fmt.Errorf("%w: %s", ErrUnknownRoute, d.Redirect)
	}
	return target, false, nil
}

func (r *Router) Current() Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnNavigate registers fn to be called after every completed navigation.
func (r *Router) OnNavigate(fn func(Route)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Router) setCurrent(route Route) {
	r.mu.Lock()
	r.current = route
	listeners := make([]func(Route), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(route)
	}
}

// Middleware applies the guard for route to HTTP requests: a redirect
// decision answers 303 See Other with the target path.
func (r *Router) Middleware(route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			target, proceed, err := r.check(route)
			if err != nil {
				r.logger.Error("route guard failed", zap.String("path", route.Path), zap.Error(err))
				respond.Error(w, req, http.StatusInternalServerError, "route guard misconfigured")
				return
			}
			if !proceed {
				respond.Redirect(w, req, target.Path)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
