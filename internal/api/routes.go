package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Tracking redirect; short path because it lands in emails.
	r.HandleFunc("/t/{token}", handler.TrackClick).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Intent routes
	api.HandleFunc("/intents", handler.ListIntents).Methods("GET")
	api.HandleFunc("/intents", handler.CreateIntent).Methods("POST")
	api.HandleFunc("/intents/{id}", handler.GetIntent).Methods("GET")
	api.HandleFunc("/intents/{id}", handler.UpdateIntent).Methods("PUT")
	api.HandleFunc("/intents/{id}", handler.DeactivateIntent).Methods("DELETE")

	// Alert routes
	api.HandleFunc("/alerts", handler.ListAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}/outcome", handler.UpdateAlertOutcome).Methods("PATCH")
	api.HandleFunc("/outcomes/stats", handler.GetOutcomeStats).Methods("GET")

	// Learning routes
	api.HandleFunc("/learning/params", handler.ListParameters).Methods("GET")
	api.HandleFunc("/learning/params/{name}", handler.GetParameter).Methods("GET")
	api.HandleFunc("/learning/params/{name}/history", handler.GetParameterHistory).Methods("GET")
	api.HandleFunc("/learning/params/{name}/revert", handler.RevertParameter).Methods("POST")
	api.HandleFunc("/learning/run", handler.RunLearning).Methods("POST")

	// Pipeline routes
	api.HandleFunc("/pipeline/run", handler.RunMatchingPass).Methods("POST")

	return r
}
