package scoring

import "github.com/jordanhubbard/convreview/pkg/models"

// PriorityForScore maps a quality score onto a review priority. Lower scores
// are more urgent.
func PriorityForScore(score int) models.Priority {
	switch {
	case score < 50:
		return models.PriorityCritical
	case score < 60:
		return models.PriorityHigh
	case score < 80:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// Band names the rubric band a score falls in.
func Band(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 70:
		return "good"
	case score >= 50:
		return "needs_improvement"
	default:
		return "poor"
	}
}
