package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/jbandu/fleetscraper/internal/api"
	"github.com/jbandu/fleetscraper/internal/middleware"
	"github.com/jbandu/fleetscraper/internal/monitoring"
)

// RegisterRoutes assembles the read-only ops router.
func RegisterRoutes(db *sqlx.DB, monitor *monitoring.Monitor, upSince time.Time) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logging)

	r.Get("/healthz", api.HealthCheckHandler(db, upSince))
	r.Get("/stats", api.StatsHandler(monitor))
	r.Get("/jobs/recent", api.RecentJobsHandler(monitor))

	return r
}
