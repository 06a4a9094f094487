package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/jordanhubbard/convreview/internal/pipeline"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// Activity names as registered on the worker.
const (
	ResolveLeadsActivity = "ResolveLeadsActivity"
	AnalyzeLeadActivity  = "AnalyzeLeadActivity"
	FinishBatchActivity  = "FinishBatchActivity"
)

// FinishBatchInput is the completed item list of a batch run.
type FinishBatchInput struct {
	Result  models.BatchResult
	Trigger string
}

// Activities exposes the batch steps of the pipeline to Temporal
type Activities struct {
	pipeline *pipeline.Pipeline
}

// NewActivities creates a new activities instance
func NewActivities(p *pipeline.Pipeline) *Activities {
	return &Activities{pipeline: p}
}

// ResolveLeadsActivity expands a batch request into lead IDs. Invalid
// requests fail without retry.
func (a *Activities) ResolveLeadsActivity(ctx context.Context, req pipeline.BatchRequest) ([]string, error) {
	ids, err := a.pipeline.ResolveLeads(ctx, req)
	if errors.Is(err, pipeline.ErrInvalidInput) {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidInput", err)
	}
	return ids, err
}

// AnalyzeLeadActivity analyses one lead. Failures are reported in the item.
func (a *Activities) AnalyzeLeadActivity(ctx context.Context, leadID string) (models.BatchItem, error) {
	return a.pipeline.AnalyzeItem(ctx, leadID), nil
}

// FinishBatchActivity totals the run and publishes its completion.
func (a *Activities) FinishBatchActivity(ctx context.Context, input FinishBatchInput) (models.BatchResult, error) {
	result := input.Result
	a.pipeline.FinishBatch(ctx, &result, input.Trigger)
	return result, nil
}
