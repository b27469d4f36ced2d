package matching

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

func TestMatcher_SkipsInactiveIntents(t *testing.T) {
	inactive := testIntent()
	inactive.IsActive = false

	m := NewMatcher(NewScorer(), 2)
	got := m.Match([]*models.AuctionItem{testItem()}, []*models.UserIntent{inactive}, 0.6, testNow)
	assert.Empty(t, got)
}

func TestMatcher_ReturnsCandidatesSortedByConfidence(t *testing.T) {
	strong := testItem()

	weak := testItem()
	weak.ItemID = "hibid:67890"
	weak.Subtype = ptr(models.SubtypeOther)
	weak.Title = "Wooden table"
	weak.Description = ""

	intent := testIntent()
	intent.ConfidenceThreshold = 0.5

	m := NewMatcher(NewScorer(), 4)
	got := m.Match([]*models.AuctionItem{weak, strong}, []*models.UserIntent{intent}, 0.6, testNow)

	require.Len(t, got, 2)
	assert.Equal(t, strong.ItemID, got[0].Item.ItemID)
	assert.GreaterOrEqual(t, got[0].Result.Confidence, got[1].Result.Confidence)
}

func TestMatcher_DeterministicOrderAcrossRuns(t *testing.T) {
	var items []*models.AuctionItem
	for i := 0; i < 20; i++ {
		item := testItem()
		item.ItemID = fmt.Sprintf("hibid:%03d", i)
		items = append(items, item)
	}
	intents := []*models.UserIntent{testIntent()}

	m := NewMatcher(NewScorer(), 8)
	first := m.Match(items, intents, 0.6, testNow)
	second := m.Match(items, intents, 0.6, testNow)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Item.ItemID, second[i].Item.ItemID)
		assert.Equal(t, first[i].Intent.IntentID, second[i].Intent.IntentID)
	}
}

func TestMatcher_DefaultThresholdAppliesWhenIntentUnpinned(t *testing.T) {
	item := testItem()
	item.Subtype = ptr(models.SubtypeOther) // subtype miss drops confidence to ~0.925

	unpinned := testIntent()
	unpinned.ConfidenceThreshold = 0 // follow the learned default

	m := NewMatcher(NewScorer(), 1)

	got := m.Match([]*models.AuctionItem{item}, []*models.UserIntent{unpinned}, 0.95, testNow)
	assert.Empty(t, got, "learned default 0.95 should reject")

	got = m.Match([]*models.AuctionItem{item}, []*models.UserIntent{unpinned}, 0.6, testNow)
	assert.Len(t, got, 1, "learned default 0.6 should accept")
}
