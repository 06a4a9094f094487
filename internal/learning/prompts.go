package learning

import (
	"fmt"
	"strings"

	"github.com/jordanhubbard/convreview/pkg/models"
)

const dialogueExtractionPrompt = `You turn a reviewer's correction of an automated sales agent into one reusable lesson.

The reviewer disagreed with an issue flagged by the quality scorer and explained why in a short dialogue.
Summarise what the reviewer taught, not what the scorer originally claimed.

Categories: %s
Priorities: critical, high, medium, low

Respond with a single JSON object and nothing else:
{
  "category": "<one category>",
  "title": "<short imperative title>",
  "user_guidance": "<the reviewer's point in their own terms>",
  "do_this": "<what the agent should do>",
  "dont_do_this": "<what the agent should avoid>",
  "priority": "<priority>"
}`

const agreementExtractionPrompt = `A reviewer agreed with a quality review of an automated sales conversation.
Turn the confirmed issues into reusable lessons for the agent. Merge issues that teach the same lesson.
Return an empty list if nothing generalises beyond this conversation.

Categories: %s
Priorities: critical, high, medium, low

Respond with a single JSON object and nothing else:
{
  "learnings": [
    {
      "category": "<one category>",
      "title": "<short imperative title>",
      "user_guidance": "<the lesson in one or two sentences>",
      "do_this": "<what the agent should do>",
      "dont_do_this": "<what the agent should avoid>",
      "priority": "<priority>",
      "issue_type": "<issue type this came from>"
    }
  ]
}`

func categoryList() string {
	names := make([]string, len(models.LearningCategories))
	for i, c := range models.LearningCategories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func describeIssue(b *strings.Builder, n int, issue models.Issue) {
	fmt.Fprintf(b, "Issue %d (%s, message %d)\n", n, issue.IssueType, issue.MessageIndex)
	fmt.Fprintf(b, "  Explanation: %s\n", issue.Explanation)
	if issue.ActualResponse != "" {
		fmt.Fprintf(b, "  Agent said: %s\n", issue.ActualResponse)
	}
	if issue.SuggestedResponse != "" {
		fmt.Fprintf(b, "  Scorer suggested: %s\n", issue.SuggestedResponse)
	}
}

func dialogueUserPrompt(a *models.Analysis, issue models.Issue, transcript []models.DialogueTurn) string {
	var b strings.Builder
	b.WriteString("Conversation under review:\n")
	b.WriteString(a.ConversationSnapshot)
	b.WriteString("\nDisputed issue:\n")
	describeIssue(&b, 1, issue)
	b.WriteString("\nTeaching dialogue:\n")
	for _, turn := range transcript {
		speaker := "Reviewer"
		if turn.Role == models.RoleAgent {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Message)
	}
	return b.String()
}

func agreementUserPrompt(a *models.Analysis, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quality score: %d\n", a.QualityScore)
	fmt.Fprintf(&b, "Overall assessment: %s\n\n", a.OverallAssessment)
	for i, issue := range a.Issues {
		describeIssue(&b, i+1, issue)
	}
	if feedback != "" {
		fmt.Fprintf(&b, "\nReviewer comment: %s\n", feedback)
	}
	return b.String()
}
