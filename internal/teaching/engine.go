// Package teaching runs short clarifying dialogues when a reviewer rejects
// an issue. The engine is stateless: callers hold the dialogue and send it
// back on every turn.
package teaching

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jordanhubbard/convreview/internal/learning"
	"github.com/jordanhubbard/convreview/internal/provider"
	"github.com/jordanhubbard/convreview/internal/structured"
	"github.com/jordanhubbard/convreview/pkg/models"
)

const (
	purposeTeach = "teach"
	maxSentences = 3
)

// Options configures an Engine
type Options struct {
	Temperature      float64
	MaxTokens        int
	MinHistoryToSave int // saving requires at least this many turns
}

// Engine drives teaching dialogues
type Engine struct {
	llm       provider.Completer
	extractor *learning.Extractor
	opts      Options
	now       func() time.Time
}

// NewEngine creates a teaching engine. Saved dialogues are summarised by extractor.
func NewEngine(llm provider.Completer, extractor *learning.Extractor, opts Options) *Engine {
	if opts.MinHistoryToSave <= 0 {
		opts.MinHistoryToSave = 3
	}
	return &Engine{llm: llm, extractor: extractor, opts: opts, now: time.Now}
}

// StartTeaching opens a dialogue about the issue at issueIndex (0-based).
// The returned history holds the human turn and the agent's question.
func (e *Engine) StartTeaching(ctx context.Context, a *models.Analysis, issueIndex int, humanMessage string) ([]models.DialogueTurn, error) {
	issue, err := issueAt(a, issueIndex)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(humanMessage) == "" {
		return nil, ErrEmptyMessage
	}

	history := []models.DialogueTurn{e.turn(models.RoleHuman, humanMessage)}
	return e.reply(ctx, a, issue, history)
}

// ContinueDialogue appends the human turn to history and asks for the next
// question. history is not modified.
func (e *Engine) ContinueDialogue(ctx context.Context, a *models.Analysis, issueIndex int, humanMessage string, history []models.DialogueTurn) ([]models.DialogueTurn, error) {
	issue, err := issueAt(a, issueIndex)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(humanMessage) == "" {
		return nil, ErrEmptyMessage
	}
	if err := validateHistory(history); err != nil {
		return nil, err
	}
	if len(history)%2 != 0 {
		return nil, fmt.Errorf("%w: awaiting an agent reply", ErrInvalidHistory)
	}

	next := make([]models.DialogueTurn, 0, len(history)+2)
	next = append(next, history...)
	next = append(next, e.turn(models.RoleHuman, humanMessage))
	return e.reply(ctx, a, issue, next)
}

// SaveLearning summarises the dialogue into a draft learning. Nothing is
// persisted here. finalHumanMessage, when set, is appended as the last turn.
func (e *Engine) SaveLearning(ctx context.Context, a *models.Analysis, issueIndex int, history []models.DialogueTurn, finalHumanMessage string) (*models.Learning, error) {
	issue, err := issueAt(a, issueIndex)
	if err != nil {
		return nil, err
	}
	if err := validateHistory(history); err != nil {
		return nil, err
	}
	if len(history) < e.opts.MinHistoryToSave {
		return nil, fmt.Errorf("%w: have %d turns, need %d", ErrHistoryTooShort, len(history), e.opts.MinHistoryToSave)
	}

	transcript := make([]models.DialogueTurn, 0, len(history)+1)
	transcript = append(transcript, history...)
	if strings.TrimSpace(finalHumanMessage) != "" {
		transcript = append(transcript, e.turn(models.RoleHuman, finalHumanMessage))
	}

	l, err := e.extractor.FromDialogue(ctx, a, issue, transcript)
	if err != nil {
		log.Printf("[Teaching] Learning extraction failed for analysis %s issue %d: %v", a.ID, issueIndex, err)
		return nil, err
	}
	return l, nil
}

func (e *Engine) reply(ctx context.Context, a *models.Analysis, issue models.Issue, history []models.DialogueTurn) ([]models.DialogueTurn, error) {
	msgs := make([]provider.ChatMessage, 0, len(history))
	for _, t := range history {
		role := "user"
		if t.Role == models.RoleAgent {
			role = "assistant"
		}
		msgs = append(msgs, provider.ChatMessage{Role: role, Content: t.Message})
	}

	completion, err := e.llm.Complete(ctx, provider.CompletionRequest{
		Purpose:     purposeTeach,
		System:      systemPrompt(a, issue, history[0].Message),
		Messages:    msgs,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	text := clampSentences(completion.Content, maxSentences)
	if text == "" {
		return nil, &structured.ExtractionFailure{Raw: completion.Content, Reason: "empty teaching reply"}
	}
	return append(history, e.turn(models.RoleAgent, text)), nil
}

func (e *Engine) turn(role models.DialogueRole, msg string) models.DialogueTurn {
	return models.DialogueTurn{Role: role, Message: strings.TrimSpace(msg), Timestamp: e.now().UTC()}
}

func issueAt(a *models.Analysis, index int) (models.Issue, error) {
	issue, ok := a.Issue(index)
	if !ok {
		n := 0
		if a != nil {
			n = len(a.Issues)
		}
		return models.Issue{}, fmt.Errorf("%w: index %d, analysis has %d issue(s)", ErrIssueNotFound, index, n)
	}
	return issue, nil
}

// validateHistory checks the dialogue starts with the human and alternates.
func validateHistory(history []models.DialogueTurn) error {
	if len(history) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidHistory)
	}
	for i, t := range history {
		want := models.RoleHuman
		if i%2 == 1 {
			want = models.RoleAgent
		}
		if t.Role != want {
			return fmt.Errorf("%w: turn %d is %q, expected %q", ErrInvalidHistory, i, t.Role, want)
		}
		if strings.TrimSpace(t.Message) == "" {
			return fmt.Errorf("%w: turn %d is empty", ErrInvalidHistory, i)
		}
	}
	return nil
}
