package pipeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/jordanhubbard/convreview/internal/consolidate"
	"github.com/jordanhubbard/convreview/internal/learning"
	"github.com/jordanhubbard/convreview/pkg/messages"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// GetLearning returns one learning.
func (p *Pipeline) GetLearning(ctx context.Context, id string) (*models.Learning, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: learning id is required", ErrInvalidInput)
	}
	return p.store.GetLearning(ctx, id)
}

// ListLearnings returns learnings matching filter, oldest first.
func (p *Pipeline) ListLearnings(ctx context.Context, filter models.LearningFilter) ([]*models.Learning, error) {
	if filter.Category != "" && models.NormalizeCategory(string(filter.Category)) != filter.Category {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, filter.Category)
	}
	return p.store.ListLearnings(ctx, filter)
}

// RecordOutcome records whether applying a learning turned out right and
// updates its confidence through the configured policy.
func (p *Pipeline) RecordOutcome(ctx context.Context, learningID string, correct bool) (*models.Learning, error) {
	l, err := p.GetLearning(ctx, learningID)
	if err != nil {
		return nil, err
	}
	if !l.IsActive {
		return nil, fmt.Errorf("%w: learning %s is inactive", ErrInvalidInput, learningID)
	}

	version := l.Version
	learning.RecordOutcome(l, correct, p.opts.Policy, p.now().UTC())
	if err := p.store.UpdateLearning(ctx, l, version); err != nil {
		return nil, err
	}

	if p.opts.Metrics != nil {
		p.opts.Metrics.LearningOutcomes.WithLabelValues(strconv.FormatBool(correct)).Inc()
	}
	log.Printf("[Pipeline] Learning %s outcome correct=%t, confidence now %.2f", l.ID, correct, l.ConfidenceScore)
	return l, nil
}

// DeactivateLearning retires a learning. History is kept; deactivating twice
// is a no-op.
func (p *Pipeline) DeactivateLearning(ctx context.Context, learningID string) (*models.Learning, error) {
	l, err := p.GetLearning(ctx, learningID)
	if err != nil {
		return nil, err
	}
	if !l.IsActive {
		return l, nil
	}

	version := l.Version
	l.IsActive = false
	l.LastUpdated = p.now().UTC()
	if err := p.store.UpdateLearning(ctx, l, version); err != nil {
		return nil, err
	}

	if p.opts.Metrics != nil {
		p.opts.Metrics.LearningsDeactivated.Inc()
	}
	log.Printf("[Pipeline] Deactivated learning %s", l.ID)
	p.publish(ctx, messages.LearningDeactivated(l.ID, eventSource))
	return l, nil
}

// Suggestions consolidates the active learnings into instruction changes.
func (p *Pipeline) Suggestions(ctx context.Context) (models.SuggestionReport, error) {
	active, err := p.store.ListLearnings(ctx, models.LearningFilter{ActiveOnly: true})
	if err != nil {
		return models.SuggestionReport{}, err
	}
	return consolidate.Generate(active), nil
}
