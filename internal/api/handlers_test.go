package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctionalerts/auction-alert-system/internal/learning"
	"github.com/auctionalerts/auction-alert-system/internal/models"
	"github.com/auctionalerts/auction-alert-system/internal/pipeline"
)

type fakeAPIStore struct {
	intents map[string]*models.UserIntent
	alerts  map[string]*models.Alert
	byToken map[string]*models.Alert
	items   map[string]*models.AuctionItem
	params  map[string]*models.LearningParameter
	history map[string][]*models.LearningHistoryEntry
}

func newFakeAPIStore() *fakeAPIStore {
	return &fakeAPIStore{
		intents: map[string]*models.UserIntent{},
		alerts:  map[string]*models.Alert{},
		byToken: map[string]*models.Alert{},
		items:   map[string]*models.AuctionItem{},
		params:  map[string]*models.LearningParameter{},
		history: map[string][]*models.LearningHistoryEntry{},
	}
}

func (f *fakeAPIStore) Ping() error { return nil }

func (f *fakeAPIStore) CreateIntent(ctx context.Context, intent *models.UserIntent) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	if _, ok := f.intents[intent.IntentID]; ok {
		return models.ErrAlreadyExists
	}
	intent.CreatedAt = time.Now().UTC()
	f.intents[intent.IntentID] = intent
	return nil
}

func (f *fakeAPIStore) UpdateIntent(ctx context.Context, intent *models.UserIntent) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	if _, ok := f.intents[intent.IntentID]; !ok {
		return models.ErrNotFound
	}
	f.intents[intent.IntentID] = intent
	return nil
}

func (f *fakeAPIStore) GetIntent(ctx context.Context, id string) (*models.UserIntent, error) {
	intent, ok := f.intents[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return intent, nil
}

func (f *fakeAPIStore) ListActiveIntents(ctx context.Context) ([]*models.UserIntent, error) {
	var out []*models.UserIntent
	for _, in := range f.intents {
		if in.IsActive {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeAPIStore) DeactivateIntent(ctx context.Context, id string) error {
	intent, ok := f.intents[id]
	if !ok {
		return models.ErrNotFound
	}
	intent.IsActive = false
	return nil
}

func (f *fakeAPIStore) ListAlerts(ctx context.Context, createdAfter time.Time) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, a := range f.alerts {
		if a.CreatedAt.After(createdAfter) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAPIStore) UpdateAlertOutcome(ctx context.Context, alertID string, outcome models.AlertOutcome) error {
	alert, ok := f.alerts[alertID]
	if !ok {
		return models.ErrNotFound
	}
	if !alert.Outcome.CanTransitionTo(outcome) {
		return &models.ValidationError{Field: "outcome", Reason: "invalid transition"}
	}
	alert.Outcome = outcome
	return nil
}

func (f *fakeAPIStore) MarkAlertClicked(ctx context.Context, token string) (*models.Alert, error) {
	alert, ok := f.byToken[token]
	if !ok || alert.Outcome != models.OutcomeSent {
		return nil, models.ErrNotFound
	}
	alert.Outcome = models.OutcomeClicked
	return alert, nil
}

func (f *fakeAPIStore) GetAlertByToken(ctx context.Context, token string) (*models.Alert, error) {
	alert, ok := f.byToken[token]
	if !ok {
		return nil, models.ErrNotFound
	}
	return alert, nil
}

func (f *fakeAPIStore) GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error) {
	item, ok := f.items[itemID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return item, nil
}

func (f *fakeAPIStore) ListParameters(ctx context.Context) ([]*models.LearningParameter, error) {
	var out []*models.LearningParameter
	for _, p := range f.params {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeAPIStore) GetParameter(ctx context.Context, name string) (*models.LearningParameter, error) {
	p, ok := f.params[name]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (f *fakeAPIStore) ListHistory(ctx context.Context, name string, limit int) ([]*models.LearningHistoryEntry, error) {
	entries := f.history[name]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

type fakeReverter struct {
	change *learning.Change
	err    error
}

func (f *fakeReverter) RevertLastChange(ctx context.Context, name string) (*learning.Change, error) {
	return f.change, f.err
}

type fakePassRunner struct{ summary *pipeline.PassSummary }

func (f *fakePassRunner) Run(ctx context.Context) (*pipeline.PassSummary, error) {
	return f.summary, nil
}

type fakeLearnRunner struct{ changes []learning.Change }

func (f *fakeLearnRunner) Run(ctx context.Context) ([]learning.Change, error) {
	return f.changes, nil
}

func newTestServer(store *fakeAPIStore) (*httptest.Server, *fakeReverter) {
	reverter := &fakeReverter{}
	handler := NewHandler(store, reverter,
		&fakePassRunner{summary: &pipeline.PassSummary{AlertsCreated: 2}},
		&fakeLearnRunner{changes: []learning.Change{}},
		nil,
	)
	return httptest.NewServer(SetupRoutes(handler)), reverter
}

func validIntentBody() map[string]interface{} {
	return map[string]interface{}{
		"user_id":                "user_1",
		"user_email":             "buyer@example.com",
		"category":               "furniture",
		"keywords":               []string{"oak"},
		"max_price":              "1200",
		"max_distance_miles":     100,
		"min_hours_before_close": 2,
		"max_hours_before_close": 48,
	}
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateIntent(t *testing.T) {
	store := newFakeAPIStore()
	server, _ := newTestServer(store)
	defer server.Close()

	resp := doJSON(t, "POST", server.URL+"/api/v1/intents", validIntentBody())
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.UserIntent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.IntentID)
	assert.True(t, created.IsActive, "new intents start active")
	assert.Len(t, store.intents, 1)
}

func TestCreateIntentValidationFailure(t *testing.T) {
	store := newFakeAPIStore()
	server, _ := newTestServer(store)
	defer server.Close()

	body := validIntentBody()
	body["min_hours_before_close"] = 72 // above max
	resp := doJSON(t, "POST", server.URL+"/api/v1/intents", body)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, store.intents)
}

func TestDeactivateIntent(t *testing.T) {
	store := newFakeAPIStore()
	store.intents["intent_1"] = &models.UserIntent{IntentID: "intent_1", IsActive: true}
	server, _ := newTestServer(store)
	defer server.Close()

	resp := doJSON(t, "DELETE", server.URL+"/api/v1/intents/intent_1", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, store.intents["intent_1"].IsActive)

	resp = doJSON(t, "DELETE", server.URL+"/api/v1/intents/missing", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrackClick(t *testing.T) {
	store := newFakeAPIStore()
	store.items["item_1"] = &models.AuctionItem{
		ItemID: "item_1", SourceURL: "https://hibid.com/lot/item_1",
	}
	store.alerts["alert_1"] = &models.Alert{
		AlertID: "alert_1", ItemID: "item_1", TrackingToken: "tok123",
		Outcome: models.OutcomeSent,
	}
	store.byToken["tok123"] = store.alerts["alert_1"]

	server, _ := newTestServer(store)
	defer server.Close()

	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	// First click transitions sent -> clicked and redirects.
	resp, err := client.Get(server.URL + "/t/tok123")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://hibid.com/lot/item_1", resp.Header.Get("Location"))
	assert.Equal(t, models.OutcomeClicked, store.alerts["alert_1"].Outcome)

	// Repeat click still redirects without changing state.
	resp, err = client.Get(server.URL + "/t/tok123")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, models.OutcomeClicked, store.alerts["alert_1"].Outcome)

	// Unknown token is a 404, not a redirect.
	resp, err = client.Get(server.URL + "/t/bogus")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateAlertOutcome(t *testing.T) {
	store := newFakeAPIStore()
	store.alerts["alert_1"] = &models.Alert{AlertID: "alert_1", Outcome: models.OutcomeClicked}
	server, _ := newTestServer(store)
	defer server.Close()

	resp := doJSON(t, "PATCH", server.URL+"/api/v1/alerts/alert_1/outcome",
		map[string]string{"outcome": "won"})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.OutcomeWon, store.alerts["alert_1"].Outcome)

	// Only the real-world outcomes may be set through the API.
	resp = doJSON(t, "PATCH", server.URL+"/api/v1/alerts/alert_1/outcome",
		map[string]string{"outcome": "clicked"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, "PATCH", server.URL+"/api/v1/alerts/missing/outcome",
		map[string]string{"outcome": "lost"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetOutcomeStats(t *testing.T) {
	store := newFakeAPIStore()
	now := time.Now().UTC()
	for i, outcome := range []models.AlertOutcome{
		models.OutcomeClicked, models.OutcomeIgnored, models.OutcomeSent,
	} {
		id := fmt.Sprintf("alert_%d", i)
		store.alerts[id] = &models.Alert{AlertID: id, Outcome: outcome, CreatedAt: now.Add(-time.Hour)}
	}
	server, _ := newTestServer(store)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/outcomes/stats?days=7")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.OutcomeStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Clicked)
	assert.Equal(t, 1, stats.Ignored)
}

func TestRevertParameter(t *testing.T) {
	store := newFakeAPIStore()
	server, reverter := newTestServer(store)
	defer server.Close()

	reverter.change = &learning.Change{
		ParamName: "confidence_threshold", OldValue: 0.65, NewValue: 0.6,
	}
	resp := doJSON(t, "POST", server.URL+"/api/v1/learning/params/confidence_threshold/revert", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var change learning.Change
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&change))
	assert.Equal(t, 0.6, change.NewValue)

	reverter.change = nil
	reverter.err = fmt.Errorf("no history: %w", models.ErrNotFound)
	resp = doJSON(t, "POST", server.URL+"/api/v1/learning/params/unknown/revert", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunMatchingPass(t *testing.T) {
	server, _ := newTestServer(newFakeAPIStore())
	defer server.Close()

	resp := doJSON(t, "POST", server.URL+"/api/v1/pipeline/run", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary pipeline.PassSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 2, summary.AlertsCreated)
}

func TestListParameters(t *testing.T) {
	store := newFakeAPIStore()
	store.params["max_price"] = &models.LearningParameter{
		ParamName: "max_price", CurrentValue: 1200,
		MinValue: 300, MaxValue: 3000, StepSize: 100,
	}
	server, _ := newTestServer(store)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/learning/params")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var params []*models.LearningParameter
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&params))
	require.Len(t, params, 1)
	assert.Equal(t, "max_price", params[0].ParamName)
}
