package learning

import (
	"fmt"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// Policy maps aggregated outcome statistics to a proposed delta for one
// parameter. Policies return deltas, not absolute values, so they stay
// agnostic to the current value; bounds clamping happens in the loop.
type Policy interface {
	// ProposeDelta returns the signed step to apply and a human-readable
	// reason. A zero delta means no change.
	ProposeDelta(stats models.OutcomeStats, param *models.LearningParameter) (float64, string)
}

// ClickRatePolicy adjusts the confidence threshold to steer alert volume
// into a target engagement band:
//
//	click rate below the band → raise the threshold (fewer alerts)
//	click rate above the band → lower the threshold (more alerts)
//	inside the band, or no signal → no change
type ClickRatePolicy struct {
	// TargetMin/TargetMax bound the acceptable click-rate band.
	TargetMin float64
	TargetMax float64
	// MinAlerts is the minimum number of windowed alerts before the
	// policy will act; thin samples are noise.
	MinAlerts int
}

// DefaultClickRatePolicy targets the 20-50% click-rate band with a
// 10-alert floor.
func DefaultClickRatePolicy() *ClickRatePolicy {
	return &ClickRatePolicy{TargetMin: 0.20, TargetMax: 0.50, MinAlerts: 10}
}

// ProposeDelta implements Policy.
func (p *ClickRatePolicy) ProposeDelta(stats models.OutcomeStats, param *models.LearningParameter) (float64, string) {
	if stats.Total < p.MinAlerts {
		return 0, ""
	}
	rate, ok := stats.ClickRate()
	if !ok {
		// No actionable alerts in the window; treat as no signal.
		return 0, ""
	}

	switch {
	case rate < p.TargetMin:
		return param.StepSize, fmt.Sprintf(
			"click rate %.1f%% below target %.0f%%: raising %s to reduce alert volume",
			rate*100, p.TargetMin*100, param.ParamName)
	case rate > p.TargetMax:
		return -param.StepSize, fmt.Sprintf(
			"click rate %.1f%% above target %.0f%%: lowering %s to surface more items",
			rate*100, p.TargetMax*100, param.ParamName)
	default:
		return 0, ""
	}
}
