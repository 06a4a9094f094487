// Package pipeline wires parsing, scoring, review and teaching into the
// operations the API exposes. It owns every write to the store.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jordanhubbard/convreview/internal/learning"
	"github.com/jordanhubbard/convreview/internal/messagebus"
	"github.com/jordanhubbard/convreview/internal/metrics"
	"github.com/jordanhubbard/convreview/internal/scoring"
	"github.com/jordanhubbard/convreview/internal/teaching"
	"github.com/jordanhubbard/convreview/internal/transcript"
	"github.com/jordanhubbard/convreview/pkg/messages"
	"github.com/jordanhubbard/convreview/pkg/models"
)

// ErrInvalidInput marks malformed requests. Nothing is called or written.
var ErrInvalidInput = errors.New("invalid input")

const eventSource = "convreview"

// Store is the persistence the pipeline needs. *database.Database satisfies it.
type Store interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	ListUnanalyzedLeads(ctx context.Context, since time.Time, limit int) ([]*models.Lead, error)

	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, filter models.AnalysisFilter) ([]*models.Analysis, error)
	UpdateAnalysis(ctx context.Context, a *models.Analysis, expectedVersion int) error
	CommitReview(ctx context.Context, a *models.Analysis, expectedVersion int, learnings []*models.Learning) error

	GetLearning(ctx context.Context, id string) (*models.Learning, error)
	ListLearnings(ctx context.Context, filter models.LearningFilter) ([]*models.Learning, error)
	UpdateLearning(ctx context.Context, l *models.Learning, expectedVersion int) error
}

// Options configures a Pipeline
type Options struct {
	MaxBatch        int // per-run cap on analysed leads
	DefaultDaysBack int
	Policy          learning.ConfidencePolicy
	Metrics         *metrics.Metrics
	Events          messagebus.EventPublisher // optional
}

// Pipeline coordinates the review flow
type Pipeline struct {
	store     Store
	parser    *transcript.Parser
	scorer    *scoring.Scorer
	engine    *teaching.Engine
	extractor *learning.Extractor
	opts      Options
	now       func() time.Time
}

// New creates a pipeline.
func New(store Store, parser *transcript.Parser, scorer *scoring.Scorer, engine *teaching.Engine, extractor *learning.Extractor, opts Options) *Pipeline {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 100
	}
	if opts.DefaultDaysBack <= 0 {
		opts.DefaultDaysBack = 30
	}
	if opts.Policy == nil {
		opts.Policy = learning.DefaultPolicy
	}
	if parser == nil {
		parser = transcript.NewParser(nil)
	}
	return &Pipeline{
		store:     store,
		parser:    parser,
		scorer:    scorer,
		engine:    engine,
		extractor: extractor,
		opts:      opts,
		now:       time.Now,
	}
}

// publish sends an event if a publisher is configured. Failures are logged;
// the write that produced the event has already committed.
func (p *Pipeline) publish(ctx context.Context, event *messages.EventMessage) {
	if p.opts.Events == nil || event == nil {
		return
	}
	if err := p.opts.Events.PublishEvent(ctx, event); err != nil {
		log.Printf("[Pipeline] Failed to publish %s: %v", event.Type, err)
		return
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	}
}

func (p *Pipeline) recordTransition(from, to models.AnalysisStatus) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordTransition(string(from), string(to))
	}
}
