package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/jordanhubbard/convreview/internal/pipeline"
	"github.com/jordanhubbard/convreview/internal/temporal/activities"
	"github.com/jordanhubbard/convreview/pkg/models"
)

type fakeSteps struct {
	mu         sync.Mutex
	analysed   []string
	finished   *activities.FinishBatchInput
	ids        []string
	resolveErr error
}

func (f *fakeSteps) register(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(func(ctx context.Context, req pipeline.BatchRequest) ([]string, error) {
		if f.resolveErr != nil {
			return nil, f.resolveErr
		}
		return f.ids, nil
	}, activity.RegisterOptions{Name: activities.ResolveLeadsActivity})

	env.RegisterActivityWithOptions(func(ctx context.Context, leadID string) (models.BatchItem, error) {
		f.mu.Lock()
		f.analysed = append(f.analysed, leadID)
		f.mu.Unlock()
		switch leadID {
		case "lead-crash":
			return models.BatchItem{}, errors.New("worker lost")
		case "lead-bad":
			return models.BatchItem{LeadID: leadID, Error: "could not extract JSON object from model output: nope"}, nil
		}
		score := 70
		return models.BatchItem{LeadID: leadID, Score: &score, AnalysisID: "an-" + leadID}, nil
	}, activity.RegisterOptions{Name: activities.AnalyzeLeadActivity})

	env.RegisterActivityWithOptions(func(ctx context.Context, in activities.FinishBatchInput) (models.BatchResult, error) {
		f.mu.Lock()
		f.finished = &in
		f.mu.Unlock()
		r := in.Result
		r.Analyzed = len(r.Results) - r.Failed()
		r.CompletedAt = r.StartedAt
		return r, nil
	}, activity.RegisterOptions{Name: activities.FinishBatchActivity})
}

func TestBatchAnalysisWorkflow_SequentialWithIsolation(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	steps := &fakeSteps{ids: []string{"lead-1", "lead-crash", "lead-bad", "lead-2"}}
	steps.register(env)

	env.ExecuteWorkflow(BatchAnalysisWorkflow, BatchAnalysisInput{
		Request: pipeline.BatchRequest{LeadIDs: steps.ids},
		Trigger: pipeline.TriggerRequest,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res models.BatchResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, []string{"lead-1", "lead-crash", "lead-bad", "lead-2"}, steps.analysed)
	require.Len(t, res.Results, 4)
	assert.Equal(t, 2, res.Analyzed)
	assert.Equal(t, "an-lead-1", res.Results[0].AnalysisID)
	assert.Equal(t, "lead-crash", res.Results[1].LeadID)
	assert.Contains(t, res.Results[1].Error, "worker lost")
	assert.NotEmpty(t, res.Results[2].Error)
	assert.Equal(t, "an-lead-2", res.Results[3].AnalysisID)

	require.NotNil(t, steps.finished)
	assert.Equal(t, pipeline.TriggerRequest, steps.finished.Trigger)
}

func TestBatchAnalysisWorkflow_EmptySelection(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	steps := &fakeSteps{}
	steps.register(env)

	env.ExecuteWorkflow(BatchAnalysisWorkflow, BatchAnalysisInput{
		Request: pipeline.BatchRequest{Mode: pipeline.ModeAllUnanalyzed},
		Trigger: pipeline.TriggerBaseline,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var res models.BatchResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, res.Analyzed)
	assert.Empty(t, steps.analysed)
}

func TestBatchAnalysisWorkflow_ResolveFailureStopsRun(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	steps := &fakeSteps{resolveErr: temporal.NewNonRetryableApplicationError("invalid input: unknown mode", "InvalidInput", nil)}
	steps.register(env)

	env.ExecuteWorkflow(BatchAnalysisWorkflow, BatchAnalysisInput{
		Request: pipeline.BatchRequest{Mode: "everything"},
		Trigger: pipeline.TriggerRequest,
	})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Empty(t, steps.analysed)
	assert.Nil(t, steps.finished)
}
