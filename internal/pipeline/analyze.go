package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jordanhubbard/convreview/internal/review"
	"github.com/jordanhubbard/convreview/pkg/messages"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// ModeAllUnanalyzed selects every lead without an analysis.
const ModeAllUnanalyzed = "all_unanalyzed"

// Batch triggers, used as a metrics label.
const (
	TriggerRequest  = "request"
	TriggerBaseline = "baseline"
)

// BatchRequest selects the leads to analyse: either explicit IDs or a mode.
type BatchRequest struct {
	LeadIDs  []string `json:"leadIds,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	DaysBack int      `json:"daysBack,omitempty"`
}

// Validate rejects requests that would analyse nothing or too much.
func (r BatchRequest) Validate(maxBatch int) error {
	switch {
	case len(r.LeadIDs) > 0 && r.Mode != "":
		return fmt.Errorf("%w: leadIds and mode are mutually exclusive", ErrInvalidInput)
	case len(r.LeadIDs) == 0 && r.Mode == "":
		return fmt.Errorf("%w: leadIds or mode is required", ErrInvalidInput)
	case r.Mode != "" && r.Mode != ModeAllUnanalyzed:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, r.Mode)
	case len(r.LeadIDs) > maxBatch:
		return fmt.Errorf("%w: %d leads requested, at most %d per batch", ErrInvalidInput, len(r.LeadIDs), maxBatch)
	case r.DaysBack < 0:
		return fmt.Errorf("%w: daysBack must not be negative", ErrInvalidInput)
	}
	for _, id := range r.LeadIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty lead id", ErrInvalidInput)
		}
	}
	return nil
}

// ValidateBatch checks req against this pipeline's batch cap.
func (p *Pipeline) ValidateBatch(req BatchRequest) error {
	return req.Validate(p.opts.MaxBatch)
}

// AnalyzeLead scores one lead's current transcript and stores the analysis.
// The analysis is written only after scoring succeeded.
func (p *Pipeline) AnalyzeLead(ctx context.Context, leadID string) (*models.Analysis, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, fmt.Errorf("%w: lead id is required", ErrInvalidInput)
	}
	lead, err := p.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return p.analyze(ctx, lead)
}

func (p *Pipeline) analyze(ctx context.Context, lead *models.Lead) (*models.Analysis, error) {
	msgs := p.parser.Parse(lead.ConversationText)

	res, err := p.scorer.Score(ctx, msgs, lead)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	a := &models.Analysis{
		ID:                   uuid.New().String(),
		LeadID:               lead.ID,
		QualityScore:         res.QualityScore,
		Status:               review.InitialStatus(res.QualityScore, len(msgs)),
		Priority:             res.Priority(),
		Issues:               res.Issues,
		OverallAssessment:    res.OverallAssessment,
		KeyTakeaways:         res.KeyTakeaways,
		ConversationSnapshot: lead.ConversationText,
		MessageCount:         len(msgs),
		LearningsCreated:     []string{},
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := p.store.CreateAnalysis(ctx, a); err != nil {
		return nil, err
	}
	a.Lead = lead.Summary()

	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordAnalysisCreated(string(a.Status), string(a.Priority), a.QualityScore)
	}
	log.Printf("[Pipeline] Analysed lead %s: score=%d status=%s issues=%d", lead.ID, a.QualityScore, a.Status, len(a.Issues))
	p.publish(ctx, messages.AnalysisCreated(lead.ID, a.ID, eventSource, a.QualityScore, string(a.Priority)))
	return a, nil
}

// AnalyzeBatch scores leads one at a time. A failing lead is recorded in its
// result item and the batch moves on.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, req BatchRequest) (*models.BatchResult, error) {
	return p.runBatch(ctx, req, TriggerRequest)
}

// EnsureBaselineAnalysis analyses every lead updated in the last daysBack
// days that has no analysis yet. Running it again only picks up what is
// still missing, so it is safe on startup and on a schedule.
func (p *Pipeline) EnsureBaselineAnalysis(ctx context.Context, daysBack int) (*models.BatchResult, error) {
	return p.runBatch(ctx, BatchRequest{Mode: ModeAllUnanalyzed, DaysBack: daysBack}, TriggerBaseline)
}

func (p *Pipeline) runBatch(ctx context.Context, req BatchRequest, trigger string) (*models.BatchResult, error) {
	ids, err := p.ResolveLeads(ctx, req)
	if err != nil {
		return nil, err
	}

	started := p.now().UTC()
	result := &models.BatchResult{Results: make([]models.BatchItem, 0, len(ids)), StartedAt: started}
	for _, id := range ids {
		if ctx.Err() != nil {
			result.Results = append(result.Results, models.BatchItem{LeadID: id, Error: ctx.Err().Error()})
			continue
		}
		result.Results = append(result.Results, p.AnalyzeItem(ctx, id))
	}
	p.FinishBatch(ctx, result, trigger)
	return result, nil
}

// ResolveLeads validates req and returns the lead IDs it covers, in the
// order they will be processed.
func (p *Pipeline) ResolveLeads(ctx context.Context, req BatchRequest) ([]string, error) {
	if err := req.Validate(p.opts.MaxBatch); err != nil {
		return nil, err
	}
	if req.Mode != ModeAllUnanalyzed {
		return req.LeadIDs, nil
	}

	daysBack := req.DaysBack
	if daysBack == 0 {
		daysBack = p.opts.DefaultDaysBack
	}
	since := p.now().UTC().AddDate(0, 0, -daysBack)
	leads, err := p.store.ListUnanalyzedLeads(ctx, since, p.opts.MaxBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to select leads: %w", err)
	}
	ids := make([]string, 0, len(leads))
	for _, lead := range leads {
		ids = append(ids, lead.ID)
	}
	return ids, nil
}

// AnalyzeItem analyses one lead and reports the outcome as a batch item.
// Errors are carried in the item, never returned.
func (p *Pipeline) AnalyzeItem(ctx context.Context, leadID string) models.BatchItem {
	item := models.BatchItem{LeadID: leadID}
	lead, err := p.store.GetLead(ctx, leadID)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.LeadName = lead.Name()

	a, err := p.analyze(ctx, lead)
	if err != nil {
		log.Printf("[Pipeline] Failed to analyse lead %s: %v", leadID, err)
		item.Error = err.Error()
		return item
	}
	score := a.QualityScore
	item.Score = &score
	item.AnalysisID = a.ID
	return item
}

// FinishBatch fills in the totals of a completed run and reports it.
func (p *Pipeline) FinishBatch(ctx context.Context, result *models.BatchResult, trigger string) {
	failed := result.Failed()
	result.Analyzed = len(result.Results) - failed
	result.CompletedAt = p.now().UTC()
	if result.StartedAt.IsZero() {
		result.StartedAt = result.CompletedAt
	}

	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordBatch(trigger, result.Analyzed, failed, result.CompletedAt.Sub(result.StartedAt).Seconds())
	}
	log.Printf("[Pipeline] Batch (%s) finished: %d analysed, %d failed", trigger, result.Analyzed, failed)
	p.publish(ctx, messages.BatchCompleted(eventSource, result.Analyzed, failed))
}
