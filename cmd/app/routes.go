package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/app"
	"github.com/BuzzLyutic/task-sync-client/internal/handler"
	"github.com/BuzzLyutic/task-sync-client/internal/router"
)

func newRouter(a *app.App, logger *zap.Logger) http.Handler {
	authRoute, _ := a.Router.ByName(router.NameAuth)
	tareasRoute, _ := a.Router.ByName(router.NameTareas)

	authHandler := handler.NewAuthHandler(a, logger)
	itemHandler := handler.NewItemHandler(a, a.Projects, logger)
	projectHandler := handler.NewProjectHandler(a.Projects, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","push":%q}`, a.Conn.State())
	})

	r.Get("/session", authHandler.Session)
	r.Post("/auth/logout", authHandler.Logout)

	// Guest-only: a logged-in client is sent to the task view.
	r.Group(func(r chi.Router) {
		r.Use(a.Router.Middleware(authRoute))
		r.Get(router.PathAuth, authHandler.Session)
		r.Post("/auth/login", authHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.Router.Middleware(tareasRoute))
		r.Get(router.PathTareas, itemHandler.List)
		r.Put("/app/scope", itemHandler.SetScope)
		r.Get("/projects", projectHandler.List)
		r.Post("/projects", projectHandler.Create)
	})

	return r
}
