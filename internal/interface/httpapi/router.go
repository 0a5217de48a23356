package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rostersync-service/internal/domain/repository"
	"rostersync-service/pkg/logger"
)

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(uploader RosterUploader, repo repository.RosterRepository, log logger.Logger) *mux.Router {
	r := mux.NewRouter()

	r.Use(RequestLogging(log))
	r.Use(Recovery(log))

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	api := r.PathPrefix("/api/roster").Subrouter()
	api.Use(Auth)

	api.HandleFunc("/upload", UploadRoster(uploader, log)).Methods("POST")
	api.HandleFunc("/periods", ListPeriods(repo, log)).Methods("GET")
	api.HandleFunc("/periods/{period_id}", GetPeriod(repo, log)).Methods("GET")
	api.HandleFunc("/periods/{period_id}", DeletePeriod(repo, log)).Methods("DELETE")
	api.HandleFunc("/days", ListDays(repo, log)).Methods("GET")
	api.HandleFunc("/days/{period_id}/{date}/history", DayHistory(repo, log)).Methods("GET")
	api.HandleFunc("/days/{day_id}/duties", DayDuties(repo, log)).Methods("GET")
	api.HandleFunc("/sync-history", SyncHistory(repo, log)).Methods("GET")

	return r
}
