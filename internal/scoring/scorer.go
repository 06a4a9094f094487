// Package scoring rates automated sales conversations against a fixed rubric.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/jordanhubbard/convreview/internal/cache"
	"github.com/jordanhubbard/convreview/internal/metrics"
	"github.com/jordanhubbard/convreview/internal/provider"
	"github.com/jordanhubbard/convreview/internal/structured"
	"github.com/jordanhubbard/convreview/pkg/models"
)

const purpose = "score"

// Result is the scorer's verdict on one conversation.
type Result struct {
	QualityScore      int            `json:"qualityScore"`
	OverallAssessment string         `json:"overallAssessment"`
	KeyTakeaways      []string       `json:"keyTakeaways"`
	Issues            []models.Issue `json:"issues"`

	// Skipped is set when there was nothing to score and no model call was made.
	Skipped bool `json:"-"`
	// Cached is set when the result came from the score cache.
	Cached bool `json:"-"`
	// DroppedIssues counts issues discarded for pointing outside the transcript.
	DroppedIssues int `json:"-"`
}

// Priority derives the review priority from the score.
func (r *Result) Priority() models.Priority {
	return PriorityForScore(r.QualityScore)
}

// Options configures a Scorer
type Options struct {
	Model       string // part of the cache key
	Temperature float64
	MaxTokens   int
	Cache       cache.Backend
	CacheTTL    time.Duration
	Metrics     *metrics.Metrics
}

// Scorer sends transcripts to the completion service with the rubric
type Scorer struct {
	llm  provider.Completer
	opts Options
}

// NewScorer creates a scorer. A nil Cache disables caching.
func NewScorer(llm provider.Completer, opts Options) *Scorer {
	return &Scorer{llm: llm, opts: opts}
}

// Score rates msgs. Zero messages short-circuit to a skipped zero score
// without calling the model. Unparseable model output returns a
// *structured.ExtractionFailure; transport failures a *provider.UpstreamError.
func (s *Scorer) Score(ctx context.Context, msgs []models.Message, lead *models.Lead) (*Result, error) {
	if len(msgs) == 0 {
		return &Result{QualityScore: 0, Skipped: true, Issues: []models.Issue{}, KeyTakeaways: []string{}}, nil
	}

	prompt := userPrompt(msgs, lead)
	key := ""
	if s.opts.Cache != nil {
		status := ""
		if lead != nil {
			status = lead.Status
		}
		key = cache.GenerateKey(s.opts.Model, status, FormatTranscript(msgs))
		if res, ok := s.fromCache(ctx, key); ok {
			return res, nil
		}
	}

	completion, err := s.llm.Complete(ctx, provider.CompletionRequest{
		Purpose:     purpose,
		System:      SystemPrompt(),
		Messages:    []provider.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	res, err := parseResult(completion.Content, len(msgs))
	if err != nil {
		if s.opts.Metrics != nil {
			s.opts.Metrics.ExtractionFailures.WithLabelValues(purpose).Inc()
		}
		return nil, err
	}
	if res.DroppedIssues > 0 {
		log.Printf("[Scorer] Dropped %d issue(s) with message indexes outside 1..%d", res.DroppedIssues, len(msgs))
	}

	if key != "" {
		s.toCache(ctx, key, res)
	}
	return res, nil
}

func (s *Scorer) fromCache(ctx context.Context, key string) (*Result, bool) {
	entry, ok := s.opts.Cache.Get(ctx, key)
	if !ok {
		if s.opts.Metrics != nil {
			s.opts.Metrics.CacheMisses.Inc()
		}
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(entry.Value, &res); err != nil {
		log.Printf("[Scorer] Ignoring unreadable cache entry: %v", err)
		return nil, false
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.CacheHits.Inc()
	}
	res.Cached = true
	return &res, true
}

func (s *Scorer) toCache(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.opts.Cache.Set(ctx, key, data, s.opts.CacheTTL, s.opts.Model); err != nil {
		log.Printf("[Scorer] Failed to cache score: %v", err)
	}
}

// rawResult accepts both snake_case and camelCase keys from the model.
type rawResult struct {
	QualityScore       *float64   `json:"quality_score"`
	QualityScoreCamel  *float64   `json:"qualityScore"`
	Overall            string     `json:"overall_assessment"`
	OverallCamel       string     `json:"overallAssessment"`
	KeyTakeaways       []string   `json:"key_takeaways"`
	KeyTakeawaysCamel  []string   `json:"keyTakeaways"`
	Issues             []rawIssue `json:"issues"`
	IssuesIdentified   []rawIssue `json:"issues_identified"`
	IssuesIdentifiedCC []rawIssue `json:"issuesIdentified"`
}

type rawIssue struct {
	IssueType              string   `json:"issue_type"`
	IssueTypeCamel         string   `json:"issueType"`
	MessageIndex           *float64 `json:"message_index"`
	MessageIndexCamel      *float64 `json:"messageIndex"`
	Explanation            string   `json:"explanation"`
	ActualResponse         string   `json:"actual_response"`
	ActualResponseCamel    string   `json:"actualResponse"`
	SuggestedResponse      string   `json:"suggested_response"`
	SuggestedResponseCamel string   `json:"suggestedResponse"`
}

func parseResult(raw string, messageCount int) (*Result, error) {
	extracted := structured.Extract(raw)
	var r rawResult
	if err := extracted.Decode(&r); err != nil {
		return nil, err
	}

	score := firstNumber(r.QualityScore, r.QualityScoreCamel)
	if score == nil {
		return nil, &structured.ExtractionFailure{Raw: raw, Reason: "quality_score missing"}
	}

	res := &Result{
		QualityScore:      clampScore(*score),
		OverallAssessment: strings.TrimSpace(firstString(r.Overall, r.OverallCamel)),
		KeyTakeaways:      firstSlice(r.KeyTakeaways, r.KeyTakeawaysCamel),
		Issues:            []models.Issue{},
	}
	if res.KeyTakeaways == nil {
		res.KeyTakeaways = []string{}
	}

	issues := r.Issues
	if len(issues) == 0 {
		issues = r.IssuesIdentified
	}
	if len(issues) == 0 {
		issues = r.IssuesIdentifiedCC
	}
	for _, ri := range issues {
		idx := firstNumber(ri.MessageIndex, ri.MessageIndexCamel)
		if idx == nil || *idx != math.Trunc(*idx) || int(*idx) < 1 || int(*idx) > messageCount {
			res.DroppedIssues++
			continue
		}
		res.Issues = append(res.Issues, models.Issue{
			IssueType:         models.NormalizeIssueType(firstString(ri.IssueType, ri.IssueTypeCamel)),
			MessageIndex:      int(*idx),
			Explanation:       strings.TrimSpace(ri.Explanation),
			ActualResponse:    strings.TrimSpace(firstString(ri.ActualResponse, ri.ActualResponseCamel)),
			SuggestedResponse: strings.TrimSpace(firstString(ri.SuggestedResponse, ri.SuggestedResponseCamel)),
		})
	}
	return res, nil
}

func clampScore(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	n := int(math.Round(f))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func firstNumber(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstSlice(vals ...[]string) []string {
	for _, v := range vals {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

// String implements fmt.Stringer for log lines.
func (r *Result) String() string {
	return fmt.Sprintf("score=%d band=%s issues=%d", r.QualityScore, Band(r.QualityScore), len(r.Issues))
}
