package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jbandu/fleetscraper/internal/models/entities"
)

// HealthCheckHandler handles GET /healthz
func HealthCheckHandler(db *sqlx.DB, upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		services := make(map[string]entities.ServiceStatus)

		pgstatus := "ok"
		pgDetails := "Postgres Connected"
		if err := db.PingContext(r.Context()); err != nil {
			pgstatus = "down"
			pgDetails = err.Error()
		}
		services["postgres"] = entities.ServiceStatus{
			Status:  pgstatus,
			Details: pgDetails,
		}

		overallStatus := "ok"
		for _, svc := range services {
			if svc.Status != "ok" {
				overallStatus = "down"
				break
			}
		}

		resp := entities.HealthCheckResponse{
			Services: services,
			Status:   overallStatus,
			Uptime:   time.Since(upSince).Round(time.Second).String(),
		}

		w.Header().Set("Content-Type", "application/json")
		if overallStatus != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
