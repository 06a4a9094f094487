// Package temporal runs batch analysis as Temporal workflows.
package temporal

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/jordanhubbard/convreview/internal/pipeline"
	"github.com/jordanhubbard/convreview/internal/temporal/activities"
	temporalclient "github.com/jordanhubbard/convreview/internal/temporal/client"
	"github.com/jordanhubbard/convreview/internal/temporal/workflows"
	"github.com/jordanhubbard/convreview/pkg/config"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// Manager owns the Temporal client and the batch worker
type Manager struct {
	client   *temporalclient.Client
	worker   worker.Worker
	config   *config.TemporalConfig
	pipeline *pipeline.Pipeline
}

// NewManager connects to Temporal and registers the batch workflow and its
// activities on the configured task queue.
func NewManager(cfg *config.TemporalConfig, p *pipeline.Pipeline) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("temporal config cannot be nil")
	}
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}

	c, err := temporalclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}

	w := worker.New(c.GetClient(), cfg.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.BatchAnalysisWorkflow)
	w.RegisterActivity(activities.NewActivities(p))

	log.Printf("[Temporal] Worker registered for task queue: %s", cfg.TaskQueue)

	return &Manager{
		client:   c,
		worker:   w,
		config:   cfg,
		pipeline: p,
	}, nil
}

// Start starts the worker without blocking
func (m *Manager) Start() error {
	if err := m.worker.Start(); err != nil {
		return fmt.Errorf("failed to start temporal worker: %w", err)
	}
	log.Println("[Temporal] Worker started")
	return nil
}

// Stop stops the worker and closes the client
func (m *Manager) Stop() {
	if m.worker != nil {
		m.worker.Stop()
	}
	if m.client != nil {
		m.client.Close()
	}
	log.Println("[Temporal] Manager stopped")
}

// GetClient returns the Temporal client
func (m *Manager) GetClient() *temporalclient.Client {
	return m.client
}

// AnalyzeBatch runs a batch through BatchAnalysisWorkflow and waits for it.
// Requests are validated here so bad input never reaches the server.
func (m *Manager) AnalyzeBatch(ctx context.Context, req pipeline.BatchRequest) (*models.BatchResult, error) {
	if err := m.pipeline.ValidateBatch(req); err != nil {
		return nil, err
	}
	return m.run(ctx, req, pipeline.TriggerRequest)
}

// EnsureBaselineAnalysis runs the baseline selection as a workflow.
func (m *Manager) EnsureBaselineAnalysis(ctx context.Context, daysBack int) (*models.BatchResult, error) {
	req := pipeline.BatchRequest{Mode: pipeline.ModeAllUnanalyzed, DaysBack: daysBack}
	if err := m.pipeline.ValidateBatch(req); err != nil {
		return nil, err
	}
	return m.run(ctx, req, pipeline.TriggerBaseline)
}

func (m *Manager) run(ctx context.Context, req pipeline.BatchRequest, trigger string) (*models.BatchResult, error) {
	opts := client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("batch-%s-%d", trigger, time.Now().UTC().UnixNano()),
		TaskQueue:                m.config.TaskQueue,
		WorkflowExecutionTimeout: m.config.WorkflowExecutionTimeout,
	}

	run, err := m.client.ExecuteWorkflow(ctx, opts, workflows.BatchAnalysisWorkflow, workflows.BatchAnalysisInput{
		Request: req,
		Trigger: trigger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start batch workflow: %w", err)
	}
	log.Printf("[Temporal] Started batch workflow %s (%s)", run.GetID(), trigger)

	var result models.BatchResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("batch workflow %s failed: %w", run.GetID(), err)
	}
	return &result, nil
}
