package matching

import (
	"sort"
	"sync"
	"time"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// Candidate is one alert-worthy (item, intent) pair produced by a
// matching pass.
type Candidate struct {
	Item   *models.AuctionItem
	Intent *models.UserIntent
	Result *MatchResult
}

// Matcher runs the scorer over every (item, intent) combination. Pairs
// share no mutable state, so the work is split across workers without
// locking; only the collected results are guarded.
type Matcher struct {
	scorer  *Scorer
	workers int
}

// NewMatcher returns a Matcher fanning out across the given number of
// workers (minimum 1).
func NewMatcher(scorer *Scorer, workers int) *Matcher {
	if workers < 1 {
		workers = 1
	}
	return &Matcher{scorer: scorer, workers: workers}
}

// Match scores all items against all active intents and returns the
// alert-worthy candidates sorted by confidence descending, with item and
// intent ids as tie-breakers so the ordering is deterministic.
//
// defaultThreshold applies to intents whose own threshold is zero; it is
// the system-wide value owned by the learning loop.
func (m *Matcher) Match(items []*models.AuctionItem, intents []*models.UserIntent, defaultThreshold float64, now time.Time) []Candidate {
	active := make([]*models.UserIntent, 0, len(intents))
	for _, in := range intents {
		if in.IsActive {
			active = append(active, in)
		}
	}
	if len(items) == 0 || len(active) == 0 {
		return nil
	}

	var (
		mu         sync.Mutex
		candidates []Candidate
		wg         sync.WaitGroup
	)

	itemCh := make(chan *models.AuctionItem)
	for w := 0; w < m.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				for _, intent := range active {
					res := m.scorer.Score(item, intent, now)
					threshold := intent.ConfidenceThreshold
					if threshold == 0 {
						threshold = defaultThreshold
					}
					if !res.AlertWorthy(threshold) {
						continue
					}
					mu.Lock()
					candidates = append(candidates, Candidate{Item: item, Intent: intent, Result: res})
					mu.Unlock()
				}
			}
		}()
	}

	for _, item := range items {
		itemCh <- item
	}
	close(itemCh)
	wg.Wait()

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Result.Confidence != b.Result.Confidence {
			return a.Result.Confidence > b.Result.Confidence
		}
		if a.Item.ItemID != b.Item.ItemID {
			return a.Item.ItemID < b.Item.ItemID
		}
		return a.Intent.IntentID < b.Intent.IntentID
	})

	return candidates
}
