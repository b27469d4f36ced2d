package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/auctionalerts/auction-alert-system/internal/learning"
	"github.com/auctionalerts/auction-alert-system/internal/metrics"
	"github.com/auctionalerts/auction-alert-system/internal/models"
	"github.com/auctionalerts/auction-alert-system/internal/pipeline"
	"github.com/auctionalerts/auction-alert-system/internal/redis"
)

// Store is the persistence surface the HTTP layer needs.
type Store interface {
	Ping() error

	CreateIntent(ctx context.Context, intent *models.UserIntent) error
	UpdateIntent(ctx context.Context, intent *models.UserIntent) error
	GetIntent(ctx context.Context, intentID string) (*models.UserIntent, error)
	ListActiveIntents(ctx context.Context) ([]*models.UserIntent, error)
	DeactivateIntent(ctx context.Context, intentID string) error

	ListAlerts(ctx context.Context, createdAfter time.Time) ([]*models.Alert, error)
	UpdateAlertOutcome(ctx context.Context, alertID string, outcome models.AlertOutcome) error
	MarkAlertClicked(ctx context.Context, trackingToken string) (*models.Alert, error)
	GetAlertByToken(ctx context.Context, trackingToken string) (*models.Alert, error)
	GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error)

	ListParameters(ctx context.Context) ([]*models.LearningParameter, error)
	GetParameter(ctx context.Context, name string) (*models.LearningParameter, error)
	ListHistory(ctx context.Context, name string, limit int) ([]*models.LearningHistoryEntry, error)
}

// Reverter rolls back the most recent change to a learning parameter.
type Reverter interface {
	RevertLastChange(ctx context.Context, name string) (*learning.Change, error)
}

// PassRunner triggers a matching pass on demand.
type PassRunner interface {
	Run(ctx context.Context) (*pipeline.PassSummary, error)
}

// LearnRunner triggers a learning cycle on demand.
type LearnRunner interface {
	Run(ctx context.Context) ([]learning.Change, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store    Store
	reverter Reverter
	pass     PassRunner
	learner  LearnRunner
	redis    *redis.Client
}

// NewHandler creates a new Handler. redisClient may be nil.
func NewHandler(store Store, reverter Reverter, pass PassRunner, learner LearnRunner, redisClient *redis.Client) *Handler {
	return &Handler{
		store:    store,
		reverter: reverter,
		pass:     pass,
		learner:  learner,
		redis:    redisClient,
	}
}

// CreateIntent handles POST /intents
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var intent models.UserIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if intent.IntentID == "" {
		intent.IntentID = "intent_" + uuid.NewString()
	}
	intent.IsActive = true

	if err := h.store.CreateIntent(r.Context(), &intent); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, intent)
}

// ListIntents handles GET /intents
func (h *Handler) ListIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := h.store.ListActiveIntents(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if intents == nil {
		intents = []*models.UserIntent{}
	}
	respondJSON(w, http.StatusOK, intents)
}

// GetIntent handles GET /intents/{id}
func (h *Handler) GetIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := h.store.GetIntent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, intent)
}

// UpdateIntent handles PUT /intents/{id}
func (h *Handler) UpdateIntent(w http.ResponseWriter, r *http.Request) {
	var intent models.UserIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	intent.IntentID = mux.Vars(r)["id"]

	if err := h.store.UpdateIntent(r.Context(), &intent); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, intent)
}

// DeactivateIntent handles DELETE /intents/{id}. Intents are deactivated,
// never deleted, so alert history keeps a valid owner.
func (h *Handler) DeactivateIntent(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeactivateIntent(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAlerts handles GET /alerts?days=N (default 14)
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 14)
	since := time.Now().UTC().AddDate(0, 0, -days)

	alerts, err := h.store.ListAlerts(r.Context(), since)
	if err != nil {
		respondError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	respondJSON(w, http.StatusOK, alerts)
}

// UpdateAlertOutcome handles PATCH /alerts/{id}/outcome. The API accepts
// only the externally-known outcomes; clicks arrive through the tracking
// redirect and ignored/expired are set by the sweep.
func (h *Handler) UpdateAlertOutcome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome models.AlertOutcome `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Outcome != models.OutcomeWon && req.Outcome != models.OutcomeLost {
		http.Error(w, "outcome must be won or lost", http.StatusBadRequest)
		return
	}

	alertID := mux.Vars(r)["id"]
	if err := h.store.UpdateAlertOutcome(r.Context(), alertID, req.Outcome); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"alert_id": alertID,
		"outcome":  string(req.Outcome),
	})
}

// TrackClick handles GET /t/{token}: records the click (first click only)
// and redirects to the listing. Repeat clicks still redirect but change
// nothing.
func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	ctx := r.Context()

	alert, err := h.store.MarkAlertClicked(ctx, token)
	firstClick := err == nil
	if errors.Is(err, models.ErrNotFound) {
		// Either a repeat click or an unknown token.
		alert, err = h.store.GetAlertByToken(ctx, token)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	if firstClick {
		metrics.AlertClicks.Inc()
	}

	url, err := h.resolveRedirect(ctx, token, alert.ItemID)
	if err != nil {
		respondError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// resolveRedirect finds the listing URL for a token, preferring the cache.
func (h *Handler) resolveRedirect(ctx context.Context, token, itemID string) (string, error) {
	if h.redis != nil {
		url, err := h.redis.GetTokenRedirect(ctx, token)
		if err == nil && url != "" {
			return url, nil
		}
		if err != nil && !redis.IsMiss(err) {
			log.Printf("Warning: token cache lookup failed: %v", err)
		}
	}

	item, err := h.store.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	if h.redis != nil {
		if err := h.redis.SetTokenRedirect(ctx, token, item.SourceURL, 30*24*time.Hour); err != nil {
			log.Printf("Warning: failed to cache token redirect: %v", err)
		}
	}
	return item.SourceURL, nil
}

// GetOutcomeStats handles GET /outcomes/stats?days=N (default 14)
func (h *Handler) GetOutcomeStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 14)
	ctx := r.Context()

	if h.redis != nil {
		if stats, err := h.redis.GetOutcomeStats(ctx, days); err == nil {
			respondJSON(w, http.StatusOK, stats)
			return
		}
	}

	alerts, err := h.store.ListAlerts(ctx, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		respondError(w, err)
		return
	}
	var stats models.OutcomeStats
	for _, alert := range alerts {
		stats.Count(alert.Outcome)
	}
	respondJSON(w, http.StatusOK, stats)
}

// ListParameters handles GET /learning/params
func (h *Handler) ListParameters(w http.ResponseWriter, r *http.Request) {
	params, err := h.store.ListParameters(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if params == nil {
		params = []*models.LearningParameter{}
	}
	respondJSON(w, http.StatusOK, params)
}

// GetParameter handles GET /learning/params/{name}
func (h *Handler) GetParameter(w http.ResponseWriter, r *http.Request) {
	param, err := h.store.GetParameter(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, param)
}

// GetParameterHistory handles GET /learning/params/{name}/history?limit=N
func (h *Handler) GetParameterHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListHistory(r.Context(), mux.Vars(r)["name"], queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.LearningHistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// RevertParameter handles POST /learning/params/{name}/revert
func (h *Handler) RevertParameter(w http.ResponseWriter, r *http.Request) {
	change, err := h.reverter.RevertLastChange(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, change)
}

// RunLearning handles POST /learning/run: one on-demand learning cycle.
func (h *Handler) RunLearning(w http.ResponseWriter, r *http.Request) {
	changes, err := h.learner.Run(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if changes == nil {
		changes = []learning.Change{}
	}
	respondJSON(w, http.StatusOK, changes)
}

// RunMatchingPass handles POST /pipeline/run: one on-demand matching pass.
func (h *Handler) RunMatchingPass(w http.ResponseWriter, r *http.Request) {
	summary, err := h.pass.Run(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)

	if err := h.store.Ping(); err != nil {
		services["postgres"] = "unhealthy: " + err.Error()
		health["status"] = "degraded"
	} else {
		services["postgres"] = "healthy"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	respondJSON(w, http.StatusOK, health)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case models.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyExists), errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
