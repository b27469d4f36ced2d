package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func testItem() *models.AuctionItem {
	closing := testNow.Add(24 * time.Hour)
	return &models.AuctionItem{
		ItemID:       "hibid:12345",
		Source:       models.SourceHiBid,
		SourceURL:    "https://hibid.com/lot/12345",
		Title:        "Oak dining table",
		Description:  "Solid oak dining table, seats six",
		Category:     models.CategoryFurniture,
		Subtype:      ptr(models.SubtypeDiningTable),
		CurrentPrice: decPtr(900),
		ClosingAt:    &closing,
		PickupLocation: &models.Location{
			City: "Fort Lauderdale", State: "FL",
			// ~40 miles north of the reference point
			Lat: ptr(26.33), Lng: ptr(-80.1373),
		},
	}
}

func testIntent() *models.UserIntent {
	return &models.UserIntent{
		IntentID:            "intent-1",
		UserID:              "user-1",
		Category:            models.CategoryFurniture,
		Subtype:             ptr(models.SubtypeDiningTable),
		Keywords:            []string{"dining", "table"},
		MaxPrice:            decimal.NewFromInt(1200),
		MaxDistanceMiles:    100,
		ReferenceLat:        25.7617,
		ReferenceLng:        -80.1918,
		MinHoursBeforeClose: 2,
		MaxHoursBeforeClose: 48,
		ConfidenceThreshold: 0.6,
		IsActive:            true,
	}
}

func TestScore_FullMatchScenario(t *testing.T) {
	// intent{max_price=1200, max_distance=100mi, threshold=0.6,
	// subtype=dining_table, keywords=[dining table]} against
	// item{price=900, ~40mi, subtype=dining_table, oak dining table}
	res := NewScorer().Score(testItem(), testIntent(), testNow)

	require.False(t, res.Excluded)
	assert.GreaterOrEqual(t, res.Confidence, 0.6)
	assert.True(t, res.AlertWorthy(0.6))
	assert.NotEmpty(t, res.Reasons)
}

func TestScore_CategoryMismatchIsHardFilter(t *testing.T) {
	item := testItem()
	item.Category = models.CategoryElectronics

	res := NewScorer().Score(item, testIntent(), testNow)

	assert.True(t, res.Excluded)
	assert.False(t, res.AlertWorthy(0.0), "category mismatch must exclude regardless of threshold")
	assert.Empty(t, res.Reasons)
}

func TestScore_ClosingWindowIsHardFilter(t *testing.T) {
	tests := []struct {
		name     string
		closeIn  time.Duration
		excluded bool
	}{
		{"closing too soon", 1 * time.Hour, true},
		{"closing too far out", 72 * time.Hour, true},
		{"at minimum bound", 2 * time.Hour, false},
		{"at maximum bound", 48 * time.Hour, false},
		{"inside window", 24 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := testItem()
			closing := testNow.Add(tt.closeIn)
			item.ClosingAt = &closing

			res := NewScorer().Score(item, testIntent(), testNow)
			assert.Equal(t, tt.excluded, res.Excluded)
		})
	}
}

func TestScore_NoClosingTimePassesWindow(t *testing.T) {
	item := testItem()
	item.ClosingAt = nil

	res := NewScorer().Score(item, testIntent(), testNow)
	assert.False(t, res.Excluded)
	assert.Equal(t, 1.0, res.Scores.ClosingWindow)
}

func TestScorePrice_LinearDecay(t *testing.T) {
	intent := testIntent() // max price 1200

	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{"under budget", 900, 1.0},
		{"at budget", 1200, 1.0},
		{"halfway to cutoff", 1500, 0.5},
		{"at 1.5x cutoff", 1800, 0.0},
		{"beyond cutoff floors at zero", 2400, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := testItem()
			item.CurrentPrice = decPtr(tt.price)
			score, _ := scorePrice(item, intent)
			assert.InDelta(t, tt.want, score, 1e-9)
		})
	}
}

func TestScorePrice_UnknownPriceAssumedAcceptable(t *testing.T) {
	item := testItem()
	item.CurrentPrice = nil
	item.StartingPrice = nil

	score, reason := scorePrice(item, testIntent())
	assert.Equal(t, 1.0, score)
	assert.Empty(t, reason)
}

func TestScorePrice_FallsBackToStartingPrice(t *testing.T) {
	item := testItem()
	item.CurrentPrice = nil
	item.StartingPrice = decPtr(1800)

	score, _ := scorePrice(item, testIntent())
	assert.InDelta(t, 0.0, score, 1e-9)
}

func TestScoreDistance_LinearDecay(t *testing.T) {
	intent := testIntent() // reference Miami, 100 mile radius

	unknownLocation := testItem()
	unknownLocation.PickupLocation = nil
	score, _ := scoreDistance(unknownLocation, intent)
	assert.Equal(t, 1.0, score, "unknown location assumed acceptable")

	within := testItem() // ~40 miles
	score, reason := scoreDistance(within, intent)
	assert.Equal(t, 1.0, score)
	assert.NotEmpty(t, reason)

	// Jacksonville is ~320 miles from Miami, past 2x the radius.
	far := testItem()
	far.PickupLocation = &models.Location{City: "Jacksonville", Lat: ptr(30.3322), Lng: ptr(-81.6557)}
	score, _ = scoreDistance(far, intent)
	assert.Equal(t, 0.0, score)

	// ~150 miles should land mid-decay between 100 and 200.
	mid := testItem()
	mid.PickupLocation = &models.Location{City: "Mid", Lat: ptr(27.93), Lng: ptr(-80.1918)}
	score, _ = scoreDistance(mid, intent)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestScoreKeywords(t *testing.T) {
	item := testItem()

	intent := testIntent()
	intent.Keywords = []string{"dining", "table", "mahogany"}
	score, reason := scoreKeywords(item, intent)
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
	assert.Contains(t, reason, "dining")
	assert.NotContains(t, reason, "mahogany")

	intent.Keywords = nil
	score, reason = scoreKeywords(item, intent)
	assert.Equal(t, 1.0, score)
	assert.Empty(t, reason)

	intent.Keywords = []string{"OAK"}
	score, _ = scoreKeywords(item, intent)
	assert.Equal(t, 1.0, score, "keyword match is case-insensitive")
}

func TestScoreSubtype(t *testing.T) {
	item := testItem()

	noPreference := testIntent()
	noPreference.Subtype = nil
	score, _ := scoreSubtype(item, noPreference)
	assert.Equal(t, 1.0, score)

	exact := testIntent()
	score, reason := scoreSubtype(item, exact)
	assert.Equal(t, 1.0, score)
	assert.NotEmpty(t, reason)

	miss := testIntent()
	miss.Subtype = ptr(models.SubtypeSofa)
	score, _ = scoreSubtype(item, miss)
	assert.Equal(t, 0.5, score)
}

func TestScore_ConfidenceAlwaysInUnitRange(t *testing.T) {
	scorer := NewScorer()
	items := []*models.AuctionItem{testItem()}

	// Degenerate variants that push sub-scores to extremes.
	noData := &models.AuctionItem{
		ItemID: "x:1", Source: models.SourceHiBid, Title: "thing",
		Category: models.CategoryFurniture,
	}
	overpriced := testItem()
	overpriced.CurrentPrice = decPtr(99999)
	items = append(items, noData, overpriced)

	for _, item := range items {
		res := scorer.Score(item, testIntent(), testNow)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
}

func TestScore_Deterministic(t *testing.T) {
	scorer := NewScorer()
	item, intent := testItem(), testIntent()

	first := scorer.Score(item, intent, testNow)
	second := scorer.Score(item, intent, testNow)

	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Reasons, second.Reasons)
	assert.Equal(t, first.Scores, second.Scores)
}

func TestScore_ReasonsOnlyForContributingFeatures(t *testing.T) {
	item := testItem()
	item.CurrentPrice = decPtr(1700) // price score < 0.5

	res := NewScorer().Score(item, testIntent(), testNow)
	for _, r := range res.Reasons {
		assert.NotContains(t, r, "budget")
	}
}

func TestNewScorerWithWeights_RejectsBadSum(t *testing.T) {
	_, err := NewScorerWithWeights(Weights{Price: 0.5, Distance: 0.5, Keywords: 0.5, Subtype: 0.5})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	s, err := NewScorerWithWeights(DefaultWeights)
	require.NoError(t, err)
	assert.NotNil(t, s)
}
