// Package matching scores auction items against user intents.
//
// Scoring is a pure computation over immutable inputs: the same (item,
// intent, now) always yields the same confidence and reasons, so the
// matching pass can fan pairs out across workers without locking.
package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/auctionalerts/auction-alert-system/internal/geo"
	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// Weights blend the four soft feature sub-scores into one confidence
// value. They must sum to 1.0. Category and closing-window are hard
// filters applied before weighting, so they carry no weight.
type Weights struct {
	Price    float64
	Distance float64
	Keywords float64
	Subtype  float64
}

// DefaultWeights favor price and keywords, which move the most between
// otherwise similar listings.
var DefaultWeights = Weights{
	Price:    0.30,
	Distance: 0.25,
	Keywords: 0.30,
	Subtype:  0.15,
}

// FeatureScores holds the individual sub-scores, each in [0, 1]. Kept on
// the result for explainability and for tuning the weights offline.
type FeatureScores struct {
	Category      float64 `json:"category"`
	Subtype       float64 `json:"subtype"`
	Price         float64 `json:"price"`
	Distance      float64 `json:"distance"`
	Keywords      float64 `json:"keywords"`
	ClosingWindow float64 `json:"closing_window"`
}

// MatchResult is the outcome of scoring one (item, intent) pair.
type MatchResult struct {
	Confidence float64       `json:"confidence"`
	Reasons    []string      `json:"reasons"`
	Excluded   bool          `json:"excluded"` // failed a hard filter
	Scores     FeatureScores `json:"scores"`
}

// AlertWorthy reports whether the pair cleared both hard filters and the
// given confidence threshold.
func (r *MatchResult) AlertWorthy(threshold float64) bool {
	return !r.Excluded && r.Confidence >= threshold
}

// Scorer computes confidence scores. Stateless and safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer returns a Scorer with the default weights.
func NewScorer() *Scorer {
	return &Scorer{weights: DefaultWeights}
}

// NewScorerWithWeights returns a Scorer with custom weights; the four
// weights must sum to 1.0.
func NewScorerWithWeights(w Weights) (*Scorer, error) {
	sum := w.Price + w.Distance + w.Keywords + w.Subtype
	if sum < 0.999 || sum > 1.001 {
		return nil, &models.ValidationError{Field: "weights", Reason: fmt.Sprintf("must sum to 1.0, got %.3f", sum)}
	}
	return &Scorer{weights: w}, nil
}

// Score evaluates one (item, intent) pair at the given instant. now is a
// parameter rather than read from the clock so scoring stays deterministic
// and re-scoring the same pair is bit-identical.
func (s *Scorer) Score(item *models.AuctionItem, intent *models.UserIntent, now time.Time) *MatchResult {
	res := &MatchResult{}

	// Hard filter: category mismatch excludes the item entirely.
	res.Scores.Category = scoreCategory(item, intent)
	if res.Scores.Category == 0 {
		res.Excluded = true
		return res
	}

	// Hard filter: a known closing time outside the intent's window
	// excludes the item entirely.
	res.Scores.ClosingWindow = scoreClosingWindow(item, intent, now)
	if res.Scores.ClosingWindow == 0 {
		res.Excluded = true
		return res
	}

	subtypeScore, subtypeReason := scoreSubtype(item, intent)
	priceScore, priceReason := scorePrice(item, intent)
	distanceScore, distanceReason := scoreDistance(item, intent)
	keywordScore, keywordReason := scoreKeywords(item, intent)

	res.Scores.Subtype = subtypeScore
	res.Scores.Price = priceScore
	res.Scores.Distance = distanceScore
	res.Scores.Keywords = keywordScore

	confidence := s.weights.Price*priceScore +
		s.weights.Distance*distanceScore +
		s.weights.Keywords*keywordScore +
		s.weights.Subtype*subtypeScore
	res.Confidence = clamp01(confidence)

	// Reasons in fixed feature order, only for sub-scores that
	// contributed at least 0.5 and have something concrete to say.
	res.Reasons = appendReason(res.Reasons, res.Scores.Category, categoryReason(item))
	res.Reasons = appendReason(res.Reasons, subtypeScore, subtypeReason)
	res.Reasons = appendReason(res.Reasons, priceScore, priceReason)
	res.Reasons = appendReason(res.Reasons, distanceScore, distanceReason)
	res.Reasons = appendReason(res.Reasons, keywordScore, keywordReason)
	res.Reasons = appendReason(res.Reasons, res.Scores.ClosingWindow, closingReason(item, now))

	return res
}

func appendReason(reasons []string, score float64, reason string) []string {
	if score >= 0.5 && reason != "" {
		return append(reasons, reason)
	}
	return reasons
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// scoreCategory is a hard filter: 1.0 on exact match, 0.0 otherwise.
func scoreCategory(item *models.AuctionItem, intent *models.UserIntent) float64 {
	if item.Category == intent.Category {
		return 1.0
	}
	return 0.0
}

func categoryReason(item *models.AuctionItem) string {
	return fmt.Sprintf("category match: %s", item.Category)
}

// scoreSubtype is soft: 1.0 when the intent doesn't care or on exact
// match, 0.5 on a miss.
func scoreSubtype(item *models.AuctionItem, intent *models.UserIntent) (float64, string) {
	if intent.Subtype == nil {
		return 1.0, ""
	}
	if item.Subtype != nil && *item.Subtype == *intent.Subtype {
		return 1.0, fmt.Sprintf("subtype match: %s", *item.Subtype)
	}
	return 0.5, ""
}

// scorePrice: unknown price is assumed acceptable. At or under budget
// scores 1.0, then decays linearly to 0 at 1.5x the budget.
func scorePrice(item *models.AuctionItem, intent *models.UserIntent) (float64, string) {
	price, ok := item.EffectivePrice()
	if !ok {
		return 1.0, ""
	}
	if price.LessThanOrEqual(intent.MaxPrice) {
		return 1.0, fmt.Sprintf("price $%s within $%s budget",
			price.StringFixed(0), intent.MaxPrice.StringFixed(0))
	}
	maxPrice := intent.MaxPrice.InexactFloat64()
	if maxPrice <= 0 {
		return 0.0, ""
	}
	over := price.InexactFloat64() - maxPrice
	score := 1.0 - over/(0.5*maxPrice)
	if score < 0 {
		score = 0
	}
	return score, ""
}

// scoreDistance: unknown location is assumed acceptable. Within the radius
// scores 1.0, then decays linearly to 0 at 2x the radius.
func scoreDistance(item *models.AuctionItem, intent *models.UserIntent) (float64, string) {
	if !item.PickupLocation.HasCoordinates() {
		return 1.0, ""
	}
	d := geo.DistanceMiles(
		intent.ReferenceLat, intent.ReferenceLng,
		*item.PickupLocation.Lat, *item.PickupLocation.Lng,
	)
	if d <= intent.MaxDistanceMiles {
		return 1.0, fmt.Sprintf("%.0f miles away, within %.0f mile radius", d, intent.MaxDistanceMiles)
	}
	if intent.MaxDistanceMiles <= 0 {
		return 0.0, ""
	}
	score := 1.0 - (d-intent.MaxDistanceMiles)/intent.MaxDistanceMiles
	if score < 0 {
		score = 0
	}
	return score, ""
}

// scoreKeywords: fraction of intent keywords found as case-insensitive
// substrings of the title and description. No keywords means 1.0.
func scoreKeywords(item *models.AuctionItem, intent *models.UserIntent) (float64, string) {
	if len(intent.Keywords) == 0 {
		return 1.0, ""
	}
	text := strings.ToLower(item.Title + " " + item.Description)
	var matched []string
	for _, kw := range intent.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	score := float64(len(matched)) / float64(len(intent.Keywords))
	if len(matched) == 0 {
		return score, ""
	}
	return score, fmt.Sprintf("keywords found: %s", strings.Join(matched, ", "))
}

// scoreClosingWindow is a hard filter: a known closing time must fall
// within [min, max] hours from now. Listings with no fixed close pass.
func scoreClosingWindow(item *models.AuctionItem, intent *models.UserIntent, now time.Time) float64 {
	if item.ClosingAt == nil {
		return 1.0
	}
	hours := item.ClosingAt.Sub(now).Hours()
	if hours < intent.MinHoursBeforeClose || hours > intent.MaxHoursBeforeClose {
		return 0.0
	}
	return 1.0
}

func closingReason(item *models.AuctionItem, now time.Time) string {
	if item.ClosingAt == nil {
		return ""
	}
	return fmt.Sprintf("closing in %.1f hours", item.ClosingAt.Sub(now).Hours())
}
