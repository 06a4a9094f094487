// Package review holds the lifecycle rules for analyses.
package review

import (
	"errors"
	"fmt"

	"github.com/jordanhubbard/convreview/pkg/models"
)

var (
	// ErrAnalysisClosed is returned for any event on a reviewed or dismissed analysis.
	ErrAnalysisClosed = errors.New("analysis is closed")

	// ErrInvalidTransition is returned when an event does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid analysis transition")
)

// Event is a human or system action on an analysis
type Event string

const (
	EventAgree        Event = "agree"         // reviewer accepts the scorer's verdict
	EventSaveLearning Event = "save_learning" // teaching dialogue produced a learning
	EventDismiss      Event = "dismiss"       // reviewer discards the analysis
	EventStartReview  Event = "start_review"  // reviewer picked it up
	EventRequestInfo  Event = "request_info"  // reviewer is waiting on more context
)

// edge is one allowed transition. An empty from matches every open state.
type edge struct {
	from  models.AnalysisStatus
	event Event
	to    models.AnalysisStatus
}

var edges = []edge{
	{"", EventAgree, models.AnalysisStatusReviewed},
	{"", EventSaveLearning, models.AnalysisStatusReviewed},
	{"", EventDismiss, models.AnalysisStatusDismissed},
	{models.AnalysisStatusPendingReview, EventStartReview, models.AnalysisStatusUnderReview},
	{models.AnalysisStatusNeedsInfo, EventStartReview, models.AnalysisStatusUnderReview},
	{models.AnalysisStatusPendingReview, EventRequestInfo, models.AnalysisStatusNeedsInfo},
	{models.AnalysisStatusUnderReview, EventRequestInfo, models.AnalysisStatusNeedsInfo},
}

// IsClosed reports whether status has no outgoing transitions.
func IsClosed(status models.AnalysisStatus) bool {
	return status == models.AnalysisStatusReviewed || status == models.AnalysisStatusDismissed
}

// InitialStatus triages a fresh analysis: empty conversations are dismissed,
// low scores wait for a human, the rest are provisionally accepted.
func InitialStatus(score, messageCount int) models.AnalysisStatus {
	switch {
	case messageCount == 0:
		return models.AnalysisStatusDismissed
	case score < 50:
		return models.AnalysisStatusPendingReview
	default:
		return models.AnalysisStatusReviewed
	}
}

// Transition returns the state reached by applying ev to from.
func Transition(from models.AnalysisStatus, ev Event) (models.AnalysisStatus, error) {
	if !from.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if IsClosed(from) {
		return "", fmt.Errorf("%w: %s cannot accept %s", ErrAnalysisClosed, from, ev)
	}
	for _, e := range edges {
		if e.event == ev && (e.from == "" || e.from == from) {
			return e.to, nil
		}
	}
	return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
}

// Reachable lists the states one event away from from, in edge order.
func Reachable(from models.AnalysisStatus) []models.AnalysisStatus {
	if IsClosed(from) {
		return nil
	}
	seen := map[models.AnalysisStatus]bool{}
	var out []models.AnalysisStatus
	for _, e := range edges {
		if e.from != "" && e.from != from {
			continue
		}
		if !seen[e.to] {
			seen[e.to] = true
			out = append(out, e.to)
		}
	}
	return out
}
