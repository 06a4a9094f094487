package teaching

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/convreview/internal/learning"
	"github.com/jordanhubbard/convreview/internal/provider"
	"github.com/jordanhubbard/convreview/internal/structured"
	"github.com/jordanhubbard/convreview/pkg/models"
)

func newTestEngine(mock *provider.MockProvider) *Engine {
	client := provider.NewClient(mock, provider.Options{Model: "test"})
	e := NewEngine(client, learning.NewExtractor(client, learning.Options{Temperature: 0.2}), Options{Temperature: 0.7})
	e.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return e
}

func testAnalysis() *models.Analysis {
	return &models.Analysis{
		ID:                   "an-1",
		QualityScore:         35,
		ConversationSnapshot: "1. AGENT: we can fit panels next week\n2. CUSTOMER: I'm renting\n3. AGENT: great, shall I book?\n",
		MessageCount:         3,
		Issues: []models.Issue{
			{IssueType: models.IssueLostContext, MessageIndex: 3, Explanation: "ignored that the customer rents", ActualResponse: "great, shall I book?"},
			{IssueType: models.IssuePrematureClose, MessageIndex: 3, Explanation: "asked to book too early"},
		},
	}
}

const savedLearning = `{"category": "context_maintenance", "title": "Check tenancy first", "user_guidance": "Renters need landlord consent",
	"do_this": "Ask whether the landlord has agreed", "dont_do_this": "Offer to book", "priority": "high"}`

func TestStartTeaching(t *testing.T) {
	mock := provider.NewMockProvider("Do you think the agent should have stopped? Or asked about the landlord?")
	e := newTestEngine(mock)

	history, err := e.StartTeaching(context.Background(), testAnalysis(), 0, "Renting is fine if the landlord agrees")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleHuman, history[0].Role)
	assert.Equal(t, "Renting is fine if the landlord agrees", history[0].Message)
	assert.Equal(t, models.RoleAgent, history[1].Role)

	req, _ := mock.LastRequest()
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Nil(t, req.ResponseFormat)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "ignored that the customer rents")
	assert.Contains(t, req.Messages[0].Content, "Renting is fine if the landlord agrees")
	assert.Contains(t, req.Messages[0].Content, "I'm renting")
	assert.Equal(t, "user", req.Messages[1].Role)
}

func TestStartTeaching_Validation(t *testing.T) {
	mock := provider.NewMockProvider("unused")
	e := newTestEngine(mock)

	_, err := e.StartTeaching(context.Background(), testAnalysis(), 2, "hmm")
	assert.ErrorIs(t, err, ErrIssueNotFound)

	_, err = e.StartTeaching(context.Background(), testAnalysis(), -1, "hmm")
	assert.ErrorIs(t, err, ErrIssueNotFound)

	_, err = e.StartTeaching(context.Background(), testAnalysis(), 0, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Equal(t, 0, mock.Calls())
}

func TestStartTeaching_UpstreamFailureIsRetryable(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.EnqueueError(&provider.StatusError{StatusCode: http.StatusServiceUnavailable})

	_, err := newTestEngine(mock).StartTeaching(context.Background(), testAnalysis(), 0, "objection")

	var upstream *provider.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.True(t, upstream.Retryable)
}

func TestContinueDialogue(t *testing.T) {
	mock := provider.NewMockProvider("First question?", "Second question?")
	e := newTestEngine(mock)
	a := testAnalysis()

	history, err := e.StartTeaching(context.Background(), a, 0, "objection")
	require.NoError(t, err)

	next, err := e.ContinueDialogue(context.Background(), a, 0, "answer one", history)
	require.NoError(t, err)
	require.Len(t, next, 4)
	assert.Len(t, history, 2, "input history must not be modified")
	assert.Equal(t, "answer one", next[2].Message)
	assert.Equal(t, "Second question?", next[3].Message)

	// The full history is replayed
	req, _ := mock.LastRequest()
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, "First question?", req.Messages[2].Content)
	assert.Equal(t, "answer one", req.Messages[3].Content)
}

func TestContinueDialogue_InvalidHistory(t *testing.T) {
	e := newTestEngine(provider.NewMockProvider())
	a := testAnalysis()

	tests := []struct {
		name    string
		history []models.DialogueTurn
	}{
		{"empty", nil},
		{"starts with agent", []models.DialogueTurn{{Role: models.RoleAgent, Message: "q"}, {Role: models.RoleHuman, Message: "a"}}},
		{"awaiting reply", []models.DialogueTurn{{Role: models.RoleHuman, Message: "a"}}},
		{"blank turn", []models.DialogueTurn{{Role: models.RoleHuman, Message: "a"}, {Role: models.RoleAgent, Message: " "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ContinueDialogue(context.Background(), a, 0, "more", tt.history)
			assert.ErrorIs(t, err, ErrInvalidHistory)
		})
	}
}

func TestAgentReplyIsClamped(t *testing.T) {
	mock := provider.NewMockProvider("One. Two? Three! Four. Five.")
	history, err := newTestEngine(mock).StartTeaching(context.Background(), testAnalysis(), 0, "objection")
	require.NoError(t, err)
	assert.Equal(t, "One. Two? Three!", history[1].Message)
}

func TestAgentReplyEmpty(t *testing.T) {
	mock := provider.NewMockProvider("   ")
	_, err := newTestEngine(mock).StartTeaching(context.Background(), testAnalysis(), 0, "objection")
	var failure *structured.ExtractionFailure
	assert.True(t, errors.As(err, &failure))
}

func TestClampSentences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Short.", "Short."},
		{"No terminator at all", "No terminator at all"},
		{"A. B. C. D.", "A. B. C."},
		{"Really?! Yes. Ok. Extra.", "Really?! Yes. Ok."},
		{"Costs 4.5k. Fine? Sure. More.", "Costs 4.5k. Fine? Sure."},
		{"Wait... what? ok. no.", "Wait... what? ok."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampSentences(tt.in, 3), tt.in)
	}
}

func TestSaveLearning_TooShort(t *testing.T) {
	mock := provider.NewMockProvider("Question?", savedLearning)
	e := newTestEngine(mock)
	a := testAnalysis()

	history, err := e.StartTeaching(context.Background(), a, 0, "objection")
	require.NoError(t, err)

	_, err = e.SaveLearning(context.Background(), a, 0, history, "final")
	assert.ErrorIs(t, err, ErrHistoryTooShort)
	assert.Equal(t, 1, mock.Calls())
}

func TestSaveLearning_Garbage(t *testing.T) {
	mock := provider.NewMockProvider("Q1?", "Q2?", "this is not json at all")
	e := newTestEngine(mock)
	a := testAnalysis()

	h, err := e.StartTeaching(context.Background(), a, 0, "objection")
	require.NoError(t, err)
	h, err = e.ContinueDialogue(context.Background(), a, 0, "answer", h)
	require.NoError(t, err)

	l, err := e.SaveLearning(context.Background(), a, 0, h, "done")
	assert.Nil(t, l)
	var failure *structured.ExtractionFailure
	assert.True(t, errors.As(err, &failure))
	assert.Equal(t, 3, mock.Calls(), "content failures are not retried")
}

func TestTeachingRoundTrip(t *testing.T) {
	mock := provider.NewMockProvider("Why is renting acceptable?", "Who should confirm?", "When should it be asked?", savedLearning)
	e := newTestEngine(mock)
	a := testAnalysis()
	ctx := context.Background()

	h, err := e.StartTeaching(ctx, a, 0, "Renting is fine")
	require.NoError(t, err)
	h, err = e.ContinueDialogue(ctx, a, 0, "Landlords often agree", h)
	require.NoError(t, err)
	h, err = e.ContinueDialogue(ctx, a, 0, "The customer should", h)
	require.NoError(t, err)
	require.Len(t, h, 6)

	l, err := e.SaveLearning(ctx, a, 0, h, "Before offering to book")
	require.NoError(t, err)

	assert.Equal(t, 1, l.TimesIncorrect)
	assert.Equal(t, models.SourceTeachingDialogue, l.Source)
	assert.Equal(t, models.IssueLostContext, l.OriginalIssue)

	var human []string
	for _, turn := range l.DialogueTranscript {
		if turn.Role == models.RoleHuman {
			human = append(human, turn.Message)
		}
	}
	assert.Equal(t, []string{"Renting is fine", "Landlords often agree", "The customer should", "Before offering to book"}, human)
	require.Len(t, l.DialogueTranscript, 7)
	assert.Equal(t, h, l.DialogueTranscript[:6])

	// Extraction ran at the lower temperature with JSON mode
	req, _ := mock.LastRequest()
	assert.InDelta(t, 0.2, req.Temperature, 1e-9)
	assert.NotNil(t, req.ResponseFormat)
}
