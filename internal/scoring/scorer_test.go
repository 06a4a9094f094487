package scoring

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/convreview/internal/cache"
	"github.com/jordanhubbard/convreview/internal/provider"
	"github.com/jordanhubbard/convreview/internal/structured"
	"github.com/jordanhubbard/convreview/internal/transcript"
	"github.com/jordanhubbard/convreview/pkg/models"
)

func newTestScorer(mock *provider.MockProvider, opts Options) *Scorer {
	return NewScorer(provider.NewClient(mock, provider.Options{Model: "test-model"}), opts)
}

func parse(t *testing.T, text string) []models.Message {
	t.Helper()
	return transcript.NewParser(nil).Parse(text)
}

const negativeTranscript = `[10:00 01/03/2024] Sophie: Hi Sam, following up on your solar enquiry
[10:05 01/03/2024] Sam: not interested, please stop
[10:06 01/03/2024] Sophie: Understood, I won't message again
[10:07 01/03/2024] Sam: thanks
[10:08 01/03/2024] Sophie: Take care`

const overclaimTranscript = `[09:00 02/03/2024] Sophie: Hi Alex, thanks for your interest
[09:02 02/03/2024] Alex: how much could I save?
[09:03 02/03/2024] Sophie: you'll save 95% on your bills!
[09:10 02/03/2024] Alex: that sounds too good to be true`

func TestScore_ZeroMessagesSkipsModel(t *testing.T) {
	mock := provider.NewMockProvider(`{"quality_score": 90}`)
	s := newTestScorer(mock, Options{})

	res, err := s.Score(context.Background(), parse(t, ""), nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, res.QualityScore)
	assert.Equal(t, 0, mock.Calls())
}

func TestScore_ScenarioNegativeCustomerGoodAgent(t *testing.T) {
	mock := provider.NewMockProvider(`{"qualityScore": 85, "issues": []}`)
	s := newTestScorer(mock, Options{})

	msgs := parse(t, negativeTranscript)
	require.Len(t, msgs, 5)

	res, err := s.Score(context.Background(), msgs, &models.Lead{FirstName: "Sam", Status: "not_interested"})
	require.NoError(t, err)
	assert.Equal(t, 85, res.QualityScore)
	assert.Empty(t, res.Issues)
	assert.Equal(t, models.PriorityLow, res.Priority())
	assert.Equal(t, 1, mock.Calls())

	req, _ := mock.LastRequest()
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "trust_issue")
	assert.Contains(t, req.Messages[1].Content, "Lead: Sam")
	assert.Contains(t, req.Messages[1].Content, "2. [2024-03-01 10:05] CUSTOMER: not interested, please stop")
}

func TestScore_ScenarioOverclaim(t *testing.T) {
	for _, tc := range []struct {
		score int
		want  models.Priority
	}{
		{30, models.PriorityCritical},
		{55, models.PriorityHigh},
	} {
		reply := `{"quality_score": ` + strconv.Itoa(tc.score) + `, "overall_assessment": "Unrealistic savings claim.",
			"issues": [{"issue_type": "trust_issue", "message_index": 3, "explanation": "95% savings is not credible",
			"actual_response": "you'll save 95% on your bills!", "suggested_response": "Most customers see a meaningful reduction."}]}`
		mock := provider.NewMockProvider(reply)
		s := newTestScorer(mock, Options{})

		res, err := s.Score(context.Background(), parse(t, overclaimTranscript), nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Priority())
		require.Len(t, res.Issues, 1)
		assert.Equal(t, models.IssueTrustIssue, res.Issues[0].IssueType)
		assert.Equal(t, 3, res.Issues[0].MessageIndex)
		assert.Equal(t, "you'll save 95% on your bills!", res.Issues[0].ActualResponse)
	}
}

func TestScore_NormalisesModelOutput(t *testing.T) {
	reply := "Here is my review:\n```json\n" + `{
		"quality_score": 112.4,
		"key_takeaways": ["slow down"],
		"issues": [
			{"issueType": "Too Pushy", "messageIndex": 1, "explanation": "pressure"},
			{"issue_type": "made_up_type", "message_index": 2},
			{"issue_type": "repetitive", "message_index": 0},
			{"issue_type": "repetitive", "message_index": 99},
			{"issue_type": "repetitive"}
		]
	}` + "\n```"
	mock := provider.NewMockProvider(reply)
	s := newTestScorer(mock, Options{})

	res, err := s.Score(context.Background(), parse(t, overclaimTranscript), nil)
	require.NoError(t, err)
	assert.Equal(t, 100, res.QualityScore)
	assert.Equal(t, []string{"slow down"}, res.KeyTakeaways)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, models.IssueTooPushy, res.Issues[0].IssueType)
	assert.Equal(t, models.IssueOther, res.Issues[1].IssueType)
	assert.Equal(t, 3, res.DroppedIssues)
}

func TestScore_ClampsNegative(t *testing.T) {
	mock := provider.NewMockProvider(`{"quality_score": -20}`)
	res, err := newTestScorer(mock, Options{}).Score(context.Background(), parse(t, overclaimTranscript), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.QualityScore)
	assert.NotNil(t, res.Issues)
}

func TestScore_ExtractionFailure(t *testing.T) {
	for _, reply := range []string{
		"I am unable to score this conversation.",
		`{"overall_assessment": "no score given"}`,
	} {
		mock := provider.NewMockProvider(reply)
		_, err := newTestScorer(mock, Options{}).Score(context.Background(), parse(t, overclaimTranscript), nil)

		var failure *structured.ExtractionFailure
		assert.True(t, errors.As(err, &failure), "reply %q: %v", reply, err)
	}
}

func TestScore_UpstreamFailure(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.EnqueueError(&provider.StatusError{StatusCode: http.StatusServiceUnavailable})

	_, err := newTestScorer(mock, Options{}).Score(context.Background(), parse(t, overclaimTranscript), nil)

	var upstream *provider.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.True(t, upstream.Retryable)
}

func TestScore_Cache(t *testing.T) {
	c := cache.New(&cache.Config{Enabled: true, DefaultTTL: time.Hour, MaxSize: 10})
	defer c.Close()

	mock := provider.NewMockProvider(`{"quality_score": 64, "issues": [{"issue_type": "too_long", "message_index": 1}]}`)
	s := newTestScorer(mock, Options{Model: "test-model", Cache: c})
	msgs := parse(t, overclaimTranscript)
	lead := &models.Lead{Status: "contacted"}

	first, err := s.Score(context.Background(), msgs, lead)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := s.Score(context.Background(), msgs, lead)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.QualityScore, second.QualityScore)
	assert.Equal(t, first.Issues, second.Issues)
	assert.Equal(t, 1, mock.Calls())

	// A status change is a different scoring context
	_, err = s.Score(context.Background(), msgs, &models.Lead{Status: "booked"})
	assert.ErrorIs(t, err, provider.ErrNoScriptedResponse)
	assert.Equal(t, 2, mock.Calls())
}

func TestFormatTranscript(t *testing.T) {
	out := FormatTranscript(parse(t, "Sophie: hi\nJo: hello"))
	assert.Equal(t, "1. AGENT: hi\n2. CUSTOMER: hello\n", out)
}

func TestSystemPrompt_ListsEveryIssueType(t *testing.T) {
	prompt := SystemPrompt()
	for _, it := range models.IssueTypes {
		assert.True(t, strings.Contains(prompt, "- "+string(it)+":"), "missing %s", it)
	}
}
