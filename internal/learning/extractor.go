// Package learning turns reviewed analyses into durable learnings.
package learning

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jordanhubbard/convreview/internal/metrics"
	"github.com/jordanhubbard/convreview/internal/provider"
	"github.com/jordanhubbard/convreview/internal/structured"
	"github.com/jordanhubbard/convreview/pkg/models"
)

const (
	purposeDialogue  = "extract_dialogue"
	purposeAgreement = "extract_agreement"
)

// Options configures an Extractor
type Options struct {
	Temperature float64 // kept low; output must parse as JSON
	MaxTokens   int
	Metrics     *metrics.Metrics
}

// Extractor asks the model for structured learnings. It never persists.
type Extractor struct {
	llm  provider.Completer
	opts Options
	now  func() time.Time
}

// NewExtractor creates an extractor using llm.
func NewExtractor(llm provider.Completer, opts Options) *Extractor {
	return &Extractor{llm: llm, opts: opts, now: time.Now}
}

// rawLearning accepts both snake_case and camelCase keys.
type rawLearning struct {
	Category       string `json:"category"`
	Title          string `json:"title"`
	UserGuidance   string `json:"user_guidance"`
	UserGuidanceCC string `json:"userGuidance"`
	DoThis         string `json:"do_this"`
	DoThisCC       string `json:"doThis"`
	DontDoThis     string `json:"dont_do_this"`
	DontDoThisCC   string `json:"dontDoThis"`
	Priority       string `json:"priority"`
	IssueType      string `json:"issue_type"`
	IssueTypeCC    string `json:"issueType"`
}

func (r rawLearning) userGuidance() string { return pick(r.UserGuidance, r.UserGuidanceCC) }
func (r rawLearning) doThis() string       { return pick(r.DoThis, r.DoThisCC) }
func (r rawLearning) dontDoThis() string   { return pick(r.DontDoThis, r.DontDoThisCC) }
func (r rawLearning) issueType() string    { return pick(r.IssueType, r.IssueTypeCC) }

func (r rawLearning) validate(raw string) error {
	if strings.TrimSpace(r.Title) == "" {
		return &structured.ExtractionFailure{Raw: raw, Reason: "learning has no title"}
	}
	if r.userGuidance() == "" && r.doThis() == "" {
		return &structured.ExtractionFailure{Raw: raw, Reason: "learning has neither guidance nor do_this"}
	}
	return nil
}

// FromDialogue summarises a teaching dialogue about one disputed issue into a
// draft learning. transcript is the full dialogue including the final human
// turn. Failures leave nothing behind; the caller persists the result.
func (e *Extractor) FromDialogue(ctx context.Context, a *models.Analysis, issue models.Issue, transcript []models.DialogueTurn) (*models.Learning, error) {
	completion, err := e.llm.Complete(ctx, provider.CompletionRequest{
		Purpose:     purposeDialogue,
		System:      fmt.Sprintf(dialogueExtractionPrompt, categoryList()),
		Messages:    []provider.ChatMessage{{Role: "user", Content: dialogueUserPrompt(a, issue, transcript)}},
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	var r rawLearning
	if err := structured.Extract(completion.Content).Decode(&r); err != nil {
		e.failed(purposeDialogue)
		return nil, err
	}
	if err := r.validate(completion.Content); err != nil {
		e.failed(purposeDialogue)
		return nil, err
	}

	l := e.draft(r, models.SourceTeachingDialogue, a.ID)
	l.OriginalIssue = issue.IssueType
	l.TimesIncorrect = 1
	l.DialogueTranscript = append([]models.DialogueTurn(nil), transcript...)
	return l, nil
}

// FromAgreement turns a confirmed analysis into zero or more draft learnings.
// An analysis without issues yields none and makes no model call.
func (e *Extractor) FromAgreement(ctx context.Context, a *models.Analysis, feedback string) ([]*models.Learning, error) {
	if len(a.Issues) == 0 {
		return nil, nil
	}

	completion, err := e.llm.Complete(ctx, provider.CompletionRequest{
		Purpose:     purposeAgreement,
		System:      fmt.Sprintf(agreementExtractionPrompt, categoryList()),
		Messages:    []provider.ChatMessage{{Role: "user", Content: agreementUserPrompt(a, feedback)}},
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Learnings []rawLearning `json:"learnings"`
	}
	if err := structured.Extract(completion.Content).Decode(&envelope); err != nil {
		e.failed(purposeAgreement)
		return nil, err
	}

	out := make([]*models.Learning, 0, len(envelope.Learnings))
	for _, r := range envelope.Learnings {
		if err := r.validate(completion.Content); err != nil {
			log.Printf("[Learning] Skipping incomplete learning for analysis %s: %v", a.ID, err)
			continue
		}
		l := e.draft(r, models.SourceUserAgreed, a.ID)
		l.TimesCorrect = 1
		l.OriginalIssue = originalIssue(r.issueType(), a.Issues)
		out = append(out, l)
	}
	return out, nil
}

func (e *Extractor) draft(r rawLearning, source models.LearningSource, analysisID string) *models.Learning {
	now := e.now()
	return &models.Learning{
		ID:                   uuid.New().String(),
		Category:             models.NormalizeCategory(r.Category),
		Title:                strings.TrimSpace(r.Title),
		UserGuidance:         strings.TrimSpace(r.userGuidance()),
		DoThis:               strings.TrimSpace(r.doThis()),
		DontDoThis:           strings.TrimSpace(r.dontDoThis()),
		Priority:             models.NormalizePriority(r.Priority),
		ConfidenceScore:      1.0,
		Version:              1,
		IsActive:             true,
		Source:               source,
		DialogueTranscript:   []models.DialogueTurn{},
		ConversationExamples: []string{analysisID},
		LastUpdated:          now,
		CreatedAt:            now,
	}
}

func (e *Extractor) failed(purpose string) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.ExtractionFailures.WithLabelValues(purpose).Inc()
	}
}

// originalIssue picks the issue type a learning came from: the model's
// answer when it names one, or the only issue when there is exactly one.
func originalIssue(named string, issues []models.Issue) models.IssueType {
	if named != "" {
		return models.NormalizeIssueType(named)
	}
	if len(issues) == 1 {
		return issues[0].IssueType
	}
	return ""
}

func pick(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
