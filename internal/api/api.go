package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/savegram-io/savegram/internal/auth"
	"github.com/savegram-io/savegram/internal/batch"
	"github.com/savegram-io/savegram/internal/config"
	"github.com/savegram-io/savegram/internal/database"
	"github.com/savegram-io/savegram/internal/gate"
	"github.com/savegram-io/savegram/internal/quota"
	"github.com/savegram-io/savegram/internal/tasks"
)

type Api struct {
	Config   config.Config
	Router   *chi.Mux
	store    *database.Store
	gate     *gate.Gate
	ledger   *quota.Ledger
	registry *tasks.Registry
	runner   *batch.Runner
	tokens   *auth.TokenManager
}

func NewApi(cfg config.Config, store *database.Store, g *gate.Gate, ledger *quota.Ledger, registry *tasks.Registry, runner *batch.Runner, tokens *auth.TokenManager) (*Api, error) {
	if cfg.APIPort == 0 {
		return nil, errors.New("must have at least a port to start API")
	}

	api := &Api{
		Config:   cfg,
		Router:   chi.NewRouter(),
		store:    store,
		gate:     g,
		ledger:   ledger,
		registry: registry,
		runner:   runner,
		tokens:   tokens,
	}

	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/heartbeat"))

	// Public routes
	r.Post("/auth/login", api.LoginHandler)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(api.TokenAuthMiddleware)

		r.Post("/auth/logout", api.LogoutHandler)
		r.Get("/me", api.MyInfoHandler)
		r.Get("/tasks", api.ListTasksHandler)

		r.Post("/downloads", api.DownloadHandler)
		r.Post("/downloads/batch", api.BatchDownloadHandler)

		// Admin routes; each handler re-checks the admin capability
		// through the gate so bans always win over the role.
		r.Post("/admin/tasks/cancel-all", api.CancelAllTasksHandler)
		r.Get("/admin/stats", api.StatsHandler)
		r.Post("/admin/broadcast", api.BroadcastHandler)
		r.Post("/admin/users/{userID}/role", api.SetRoleHandler)
		r.Post("/admin/users/{userID}/ban", api.BanHandler)
		r.Post("/admin/users/{userID}/unban", api.UnbanHandler)
		r.Get("/admin/users/{userID}/grants", api.GrantsHandler)
	})
}

func (api *Api) Serve() {
	log.Printf("Starting API server on 0.0.0.0:%d", api.Config.APIPort)
	log.Fatal(http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", api.Config.APIPort), api.Router))
}
