package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jordanhubbard/convreview/internal/database"
	"github.com/jordanhubbard/convreview/internal/review"
	"github.com/jordanhubbard/convreview/internal/teaching"
	"github.com/jordanhubbard/convreview/pkg/messages"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// Teaching actions accepted by Teach.
const (
	ActionStartTeaching    = "start_teaching"
	ActionContinueDialogue = "continue_dialogue"
	ActionSaveLearning     = "save_learning"
)

// AgreeResult is the outcome of an agree action
type AgreeResult struct {
	Analysis  *models.Analysis   `json:"analysis"`
	Learnings []*models.Learning `json:"learnings"`
}

// TeachRequest is one call in a caller-held teaching dialogue
type TeachRequest struct {
	AnalysisID      string                `json:"analysisId"`
	IssueIndex      int                   `json:"issueIndex"`
	Action          string                `json:"action"`
	HumanMessage    string                `json:"humanMessage"`
	DialogueHistory []models.DialogueTurn `json:"dialogueHistory"`
	ExpectedVersion *int                  `json:"expectedVersion,omitempty"`
}

// TeachResponse carries either the next dialogue state or the saved learning.
type TeachResponse struct {
	AgentMessage        string                `json:"agentMessage,omitempty"`
	DialogueHistory     []models.DialogueTurn `json:"dialogueHistory,omitempty"`
	LearningID          string                `json:"learningId,omitempty"`
	ConfirmationMessage string                `json:"confirmationMessage,omitempty"`
	Learning            *models.Learning      `json:"learning,omitempty"`
}

// GetAnalysis returns one analysis with its lead summary.
func (p *Pipeline) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	return p.store.GetAnalysis(ctx, id)
}

// ListAnalyses returns analyses matching filter, newest first.
func (p *Pipeline) ListAnalyses(ctx context.Context, filter models.AnalysisFilter) ([]*models.Analysis, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, filter.Priority)
	}
	if filter.MinScore != nil && filter.MaxScore != nil && *filter.MinScore > *filter.MaxScore {
		return nil, fmt.Errorf("%w: minScore is greater than maxScore", ErrInvalidInput)
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	return p.store.ListAnalyses(ctx, filter)
}

// Agree records that the reviewer accepts the analysis. Learnings are
// extracted first; the analysis only closes if extraction succeeded, and
// both are committed together.
func (p *Pipeline) Agree(ctx context.Context, analysisID, feedback string, expectedVersion *int) (*AgreeResult, error) {
	a, err := p.openAnalysis(ctx, analysisID, expectedVersion, review.EventAgree)
	if err != nil {
		return nil, err
	}
	from := a.Status
	next, _ := review.Transition(from, review.EventAgree)

	learnings, err := p.extractor.FromAgreement(ctx, a, feedback)
	if err != nil {
		return nil, err
	}

	version := a.Version
	now := p.now().UTC()
	agreed := true
	a.Status = next
	a.AgreedWithSophie = &agreed
	if strings.TrimSpace(feedback) != "" {
		a.UserFeedback = &feedback
	}
	a.ReviewedAt = &now
	for _, l := range learnings {
		a.LearningsCreated = append(a.LearningsCreated, l.ID)
	}

	if err := p.store.CommitReview(ctx, a, version, learnings); err != nil {
		return nil, err
	}

	p.afterReview(ctx, a, from, learnings)
	if learnings == nil {
		learnings = []*models.Learning{}
	}
	return &AgreeResult{Analysis: a, Learnings: learnings}, nil
}

// Dismiss closes an analysis without producing learnings.
func (p *Pipeline) Dismiss(ctx context.Context, analysisID, reason string, expectedVersion *int) (*models.Analysis, error) {
	return p.ApplyEvent(ctx, analysisID, review.EventDismiss, reason, expectedVersion)
}

// ApplyEvent moves an analysis along the review lifecycle for events that
// carry no learnings (dismiss, start_review, request_info). note, when set,
// is stored as the reviewer's feedback.
func (p *Pipeline) ApplyEvent(ctx context.Context, analysisID string, ev review.Event, note string, expectedVersion *int) (*models.Analysis, error) {
	switch ev {
	case review.EventDismiss, review.EventStartReview, review.EventRequestInfo:
	default:
		return nil, fmt.Errorf("%w: event %q cannot be applied directly", ErrInvalidInput, ev)
	}

	a, err := p.openAnalysis(ctx, analysisID, expectedVersion, ev)
	if err != nil {
		return nil, err
	}
	from := a.Status
	next, err := review.Transition(from, ev)
	if err != nil {
		return nil, err
	}

	version := a.Version
	a.Status = next
	if strings.TrimSpace(note) != "" {
		a.UserFeedback = &note
	}
	if review.IsClosed(next) {
		now := p.now().UTC()
		a.ReviewedAt = &now
	}
	if err := p.store.UpdateAnalysis(ctx, a, version); err != nil {
		return nil, err
	}

	p.afterReview(ctx, a, from, nil)
	return a, nil
}

// Teach dispatches one teaching-dialogue action. Only save_learning writes.
func (p *Pipeline) Teach(ctx context.Context, req TeachRequest) (*TeachResponse, error) {
	if strings.TrimSpace(req.AnalysisID) == "" {
		return nil, fmt.Errorf("%w: analysisId is required", ErrInvalidInput)
	}
	switch req.Action {
	case ActionStartTeaching, ActionContinueDialogue, ActionSaveLearning:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, req.Action)
	}

	a, err := p.openAnalysis(ctx, req.AnalysisID, req.ExpectedVersion, review.EventSaveLearning)
	if err != nil {
		return nil, err
	}

	var history []models.DialogueTurn
	switch req.Action {
	case ActionStartTeaching:
		history, err = p.engine.StartTeaching(ctx, a, req.IssueIndex, req.HumanMessage)
	case ActionContinueDialogue:
		history, err = p.engine.ContinueDialogue(ctx, a, req.IssueIndex, req.HumanMessage, req.DialogueHistory)
	case ActionSaveLearning:
		return p.saveLearning(ctx, a, req)
	}
	if err != nil {
		return nil, teachingError(err)
	}
	return &TeachResponse{
		AgentMessage:    history[len(history)-1].Message,
		DialogueHistory: history,
	}, nil
}

func (p *Pipeline) saveLearning(ctx context.Context, a *models.Analysis, req TeachRequest) (*TeachResponse, error) {
	l, err := p.engine.SaveLearning(ctx, a, req.IssueIndex, req.DialogueHistory, req.HumanMessage)
	if err != nil {
		return nil, teachingError(err)
	}

	from := a.Status
	next, _ := review.Transition(from, review.EventSaveLearning)
	version := a.Version
	now := p.now().UTC()
	agreed := false
	feedback := reviewerFeedback(l.DialogueTranscript)
	a.Status = next
	a.AgreedWithSophie = &agreed
	if feedback != "" {
		a.UserFeedback = &feedback
	}
	a.ReviewedAt = &now
	a.LearningsCreated = append(a.LearningsCreated, l.ID)

	if err := p.store.CommitReview(ctx, a, version, []*models.Learning{l}); err != nil {
		return nil, err
	}

	p.afterReview(ctx, a, from, []*models.Learning{l})
	return &TeachResponse{
		LearningID:          l.ID,
		ConfirmationMessage: fmt.Sprintf("Saved learning %q (%s). The analysis is now %s.", l.Title, l.Category, a.Status),
		Learning:            l,
	}, nil
}

// openAnalysis loads an analysis that ev may still act on.
func (p *Pipeline) openAnalysis(ctx context.Context, id string, expectedVersion *int, ev review.Event) (*models.Analysis, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	a, err := p.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != a.Version {
		return nil, fmt.Errorf("analysis %s is at version %d, not %d: %w", id, a.Version, *expectedVersion, database.ErrStaleWrite)
	}
	if review.IsClosed(a.Status) {
		return nil, fmt.Errorf("analysis %s is %s, cannot %s: %w", id, a.Status, ev, review.ErrAnalysisClosed)
	}
	return a, nil
}

func (p *Pipeline) afterReview(ctx context.Context, a *models.Analysis, from models.AnalysisStatus, learnings []*models.Learning) {
	p.recordTransition(from, a.Status)
	ids := make([]string, 0, len(learnings))
	for _, l := range learnings {
		ids = append(ids, l.ID)
		if p.opts.Metrics != nil {
			p.opts.Metrics.LearningsCreated.WithLabelValues(string(l.Source), string(l.Category)).Inc()
		}
		p.publish(ctx, messages.LearningCreated(l.ID, eventSource, string(l.Category), string(l.Source)))
	}
	log.Printf("[Pipeline] Analysis %s moved %s -> %s (%d learnings)", a.ID, from, a.Status, len(ids))
	p.publish(ctx, messages.AnalysisReviewed(a.LeadID, a.ID, eventSource, string(a.Status), ids))
}

// teachingError marks caller mistakes as input errors; model failures pass through.
func teachingError(err error) error {
	for _, target := range []error{
		teaching.ErrIssueNotFound, teaching.ErrEmptyMessage,
		teaching.ErrInvalidHistory, teaching.ErrHistoryTooShort,
	} {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return err
}

// reviewerFeedback is the last thing the human said in the dialogue.
func reviewerFeedback(turns []models.DialogueTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleHuman {
			return turns[i].Message
		}
	}
	return ""
}
