package learning

import (
	"time"

	"github.com/jordanhubbard/convreview/pkg/models"
)

// ConfidencePolicy decides how a learning's confidence moves when it is
// applied and the outcome is known.
type ConfidencePolicy interface {
	Next(current float64, correct bool) float64
}

// EWMAPolicy moves confidence a fixed fraction of the way towards 1 on a
// correct outcome and towards 0 on an incorrect one.
type EWMAPolicy struct {
	Rate float64 // 0 < Rate <= 1
}

// DefaultPolicy is used when no policy is configured.
var DefaultPolicy ConfidencePolicy = EWMAPolicy{Rate: 0.2}

// Next implements ConfidencePolicy.
func (p EWMAPolicy) Next(current float64, correct bool) float64 {
	rate := p.Rate
	if rate <= 0 || rate > 1 {
		rate = 0.2
	}
	target := 0.0
	if correct {
		target = 1.0
	}
	return clamp01(current + rate*(target-current))
}

// RecordOutcome applies one observed outcome to l: counters, confidence,
// version and timestamp.
func RecordOutcome(l *models.Learning, correct bool, policy ConfidencePolicy, now time.Time) {
	if policy == nil {
		policy = DefaultPolicy
	}
	l.TimesApplied++
	if correct {
		l.TimesCorrect++
	} else {
		l.TimesIncorrect++
	}
	l.ConfidenceScore = policy.Next(l.ConfidenceScore, correct)
	l.Version++
	l.LastUpdated = now
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
