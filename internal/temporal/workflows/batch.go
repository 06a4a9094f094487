package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jordanhubbard/convreview/internal/pipeline"
	"github.com/jordanhubbard/convreview/internal/temporal/activities"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// BatchAnalysisInput selects the leads of one batch run
type BatchAnalysisInput struct {
	Request pipeline.BatchRequest
	Trigger string
}

// BatchAnalysisWorkflow analyses leads one after another. Each lead is a
// single activity attempt; a failure is recorded and the loop moves on, so
// model calls are never repeated behind the caller's back.
func BatchAnalysisWorkflow(ctx workflow.Context, input BatchAnalysisInput) (models.BatchResult, error) {
	logger := workflow.GetLogger(ctx)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var ids []string
	if err := workflow.ExecuteActivity(ctx, activities.ResolveLeadsActivity, input.Request).Get(ctx, &ids); err != nil {
		return models.BatchResult{}, err
	}
	logger.Info("Batch analysis started", "trigger", input.Trigger, "leads", len(ids))

	result := models.BatchResult{
		Results:   make([]models.BatchItem, 0, len(ids)),
		StartedAt: workflow.Now(ctx).UTC(),
	}
	for _, id := range ids {
		var item models.BatchItem
		if err := workflow.ExecuteActivity(ctx, activities.AnalyzeLeadActivity, id).Get(ctx, &item); err != nil {
			item = models.BatchItem{LeadID: id, Error: err.Error()}
		}
		result.Results = append(result.Results, item)
	}

	var final models.BatchResult
	err := workflow.ExecuteActivity(ctx, activities.FinishBatchActivity, activities.FinishBatchInput{
		Result:  result,
		Trigger: input.Trigger,
	}).Get(ctx, &final)
	if err != nil {
		return result, err
	}

	logger.Info("Batch analysis completed", "analyzed", final.Analyzed, "failed", final.Failed())
	return final, nil
}
