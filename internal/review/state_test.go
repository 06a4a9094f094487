package review

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/convreview/pkg/models"
)

func TestInitialStatus(t *testing.T) {
	tests := []struct {
		name  string
		score int
		count int
		want  models.AnalysisStatus
	}{
		{"empty conversation", 0, 0, models.AnalysisStatusDismissed},
		{"empty even with score", 90, 0, models.AnalysisStatusDismissed},
		{"poor", 30, 4, models.AnalysisStatusPendingReview},
		{"just below threshold", 49, 4, models.AnalysisStatusPendingReview},
		{"at threshold", 50, 4, models.AnalysisStatusReviewed},
		{"good", 85, 5, models.AnalysisStatusReviewed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InitialStatus(tt.score, tt.count))
		})
	}
}

func TestTransition_FromPending(t *testing.T) {
	tests := []struct {
		event Event
		want  models.AnalysisStatus
	}{
		{EventAgree, models.AnalysisStatusReviewed},
		{EventSaveLearning, models.AnalysisStatusReviewed},
		{EventDismiss, models.AnalysisStatusDismissed},
		{EventStartReview, models.AnalysisStatusUnderReview},
		{EventRequestInfo, models.AnalysisStatusNeedsInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			got, err := Transition(models.AnalysisStatusPendingReview, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransition_ReviewOutcomesFromPending(t *testing.T) {
	// agree and a saved learning only ever close the analysis
	for _, ev := range []Event{EventAgree, EventSaveLearning} {
		got, err := Transition(models.AnalysisStatusPendingReview, ev)
		require.NoError(t, err)
		assert.Contains(t, []models.AnalysisStatus{models.AnalysisStatusReviewed, models.AnalysisStatusDismissed}, got)
	}
}

func TestTransition_ClosedStatesAreFinal(t *testing.T) {
	events := []Event{EventAgree, EventSaveLearning, EventDismiss, EventStartReview, EventRequestInfo}
	for _, from := range []models.AnalysisStatus{models.AnalysisStatusReviewed, models.AnalysisStatusDismissed} {
		assert.True(t, IsClosed(from))
		assert.Empty(t, Reachable(from))
		for _, ev := range events {
			_, err := Transition(from, ev)
			assert.True(t, errors.Is(err, ErrAnalysisClosed), "%s/%s: %v", from, ev, err)
		}
	}
}

func TestTransition_Invalid(t *testing.T) {
	_, err := Transition(models.AnalysisStatusUnderReview, EventStartReview)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Transition(models.AnalysisStatusNeedsInfo, EventRequestInfo)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Transition("archived", EventAgree)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Transition(models.AnalysisStatusPendingReview, Event("disagree"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_NeedsInfoCanStillClose(t *testing.T) {
	got, err := Transition(models.AnalysisStatusNeedsInfo, EventAgree)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusReviewed, got)

	got, err = Transition(models.AnalysisStatusNeedsInfo, EventStartReview)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusUnderReview, got)
}

func TestReachable(t *testing.T) {
	assert.ElementsMatch(t, []models.AnalysisStatus{
		models.AnalysisStatusReviewed,
		models.AnalysisStatusDismissed,
		models.AnalysisStatusUnderReview,
		models.AnalysisStatusNeedsInfo,
	}, Reachable(models.AnalysisStatusPendingReview))
}
