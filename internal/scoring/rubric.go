package scoring

import (
	"fmt"
	"strings"

	"github.com/jordanhubbard/convreview/pkg/models"
)

const rubricPrompt = `You review conversations between an automated sales agent and a sales lead.
Score the AGENT's conduct, not the customer's interest level.

Score bands:
- 90-100 excellent: honest, well paced, handles objections, stops when asked
- 70-89 good: minor lapses in tone or timing
- 50-69 needs improvement: noticeable mistakes a human rep would not make
- below 50 poor: misleading, pushy, ignores the customer, or damages trust

Issue types (use exactly these values):
%s

Message numbers refer to the numbered transcript lines. Only flag AGENT messages.

Respond with a single JSON object and nothing else:
{
  "quality_score": <integer 0-100>,
  "overall_assessment": "<2-3 sentences>",
  "key_takeaways": ["<short lesson>", ...],
  "issues": [
    {
      "issue_type": "<one of the issue types>",
      "message_index": <message number>,
      "explanation": "<what went wrong>",
      "actual_response": "<the agent's words>",
      "suggested_response": "<what the agent should have said>"
    }
  ]
}`

var issueDescriptions = map[models.IssueType]string{
	models.IssueTrustIssue:         "claims or phrasing that make the customer doubt the agent",
	models.IssueTooPushy:           "pressure after hesitation or repeated asks",
	models.IssueLostContext:        "forgets or contradicts earlier details",
	models.IssueIgnoredObjection:   "moves on without addressing a concern",
	models.IssueWrongInformation:   "factually incorrect statements",
	models.IssueUnrealisticClaim:   "promises that sound too good to be true",
	models.IssuePoorTiming:         "messages at the wrong moment or cadence",
	models.IssueTooLong:            "walls of text for a chat channel",
	models.IssueRepetitive:         "repeats the same pitch or question",
	models.IssueUnprofessionalTone: "slang, sarcasm or inappropriate familiarity",
	models.IssueMissedBuyingSignal: "customer showed interest and the agent did not act",
	models.IssuePrematureClose:     "asks for commitment before the customer is ready",
	models.IssueFailedToStop:       "keeps messaging after the customer asked to stop",
	models.IssueUnclearMessage:     "confusing or ambiguous wording",
}

// SystemPrompt returns the fixed scoring rubric.
func SystemPrompt() string {
	var b strings.Builder
	for _, t := range models.IssueTypes {
		fmt.Fprintf(&b, "- %s: %s\n", t, issueDescriptions[t])
	}
	return fmt.Sprintf(rubricPrompt, strings.TrimRight(b.String(), "\n"))
}

// FormatTranscript renders messages as the numbered transcript the rubric
// refers to. Numbering is 1-based.
func FormatTranscript(msgs []models.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		speaker := "CUSTOMER"
		if m.Sender == models.SenderAgent {
			speaker = "AGENT"
		}
		if m.HasTimestamp() {
			fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, m.Timestamp.Format("2006-01-02 15:04"), speaker, m.Content)
		} else {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, speaker, m.Content)
		}
	}
	return b.String()
}

func userPrompt(msgs []models.Message, lead *models.Lead) string {
	var b strings.Builder
	if lead != nil {
		if name := lead.Name(); name != "" {
			fmt.Fprintf(&b, "Lead: %s\n", name)
		}
		if lead.Status != "" {
			fmt.Fprintf(&b, "Current lead status: %s\n", lead.Status)
		}
		b.WriteString("\n")
	}
	b.WriteString("Transcript:\n")
	b.WriteString(FormatTranscript(msgs))
	return b.String()
}
