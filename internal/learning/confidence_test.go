package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jordanhubbard/convreview/pkg/models"
)

func TestEWMAPolicy(t *testing.T) {
	p := EWMAPolicy{Rate: 0.5}
	assert.InDelta(t, 0.5, p.Next(1.0, false), 1e-9)
	assert.InDelta(t, 0.75, p.Next(0.5, true), 1e-9)
	assert.InDelta(t, 1.0, p.Next(1.0, true), 1e-9)
	assert.InDelta(t, 0.0, p.Next(0.0, false), 1e-9)
}

func TestEWMAPolicy_Monotone(t *testing.T) {
	p := EWMAPolicy{Rate: 0.2}
	c := 1.0
	for i := 0; i < 10; i++ {
		next := p.Next(c, false)
		assert.LessOrEqual(t, next, c)
		assert.GreaterOrEqual(t, next, 0.0)
		c = next
	}
	for i := 0; i < 10; i++ {
		next := p.Next(c, true)
		assert.GreaterOrEqual(t, next, c)
		assert.LessOrEqual(t, next, 1.0)
		c = next
	}
}

func TestEWMAPolicy_BadRateFallsBack(t *testing.T) {
	assert.InDelta(t, 0.8, EWMAPolicy{}.Next(1.0, false), 1e-9)
	assert.InDelta(t, 0.8, EWMAPolicy{Rate: 3}.Next(1.0, false), 1e-9)
}

func TestRecordOutcome(t *testing.T) {
	l := &models.Learning{ConfidenceScore: 1.0, Version: 1, TimesIncorrect: 1}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	RecordOutcome(l, false, nil, now)
	assert.Equal(t, 1, l.TimesApplied)
	assert.Equal(t, 2, l.TimesIncorrect)
	assert.Equal(t, 0, l.TimesCorrect)
	assert.InDelta(t, 0.8, l.ConfidenceScore, 1e-9)
	assert.Equal(t, 2, l.Version)
	assert.Equal(t, now, l.LastUpdated)

	RecordOutcome(l, true, EWMAPolicy{Rate: 0.5}, now)
	assert.Equal(t, 2, l.TimesApplied)
	assert.Equal(t, 1, l.TimesCorrect)
	assert.InDelta(t, 0.9, l.ConfidenceScore, 1e-9)
	assert.Equal(t, 3, l.Version)
}
