package teaching

import (
	"fmt"
	"strings"

	"github.com/jordanhubbard/convreview/pkg/models"
)

const teachingPrompt = `You are the quality reviewer for an automated sales agent. A human reviewer disagrees with one issue you flagged.
Your job is to understand WHY, so the lesson can be recorded accurately.

Rules:
- Ask exactly one short clarifying question per reply.
- Never more than 3 sentences. Never lecture or defend your original verdict.
- Focus on what the agent should have done differently, and when the rule applies.

Conversation under review:
%s
Issue you flagged (%s, message %d):
Explanation: %s
Agent said: %s
You suggested: %s

The reviewer's objection:
%s`

func systemPrompt(a *models.Analysis, issue models.Issue, objection string) string {
	return fmt.Sprintf(teachingPrompt,
		a.ConversationSnapshot,
		issue.IssueType, issue.MessageIndex,
		issue.Explanation,
		orNone(issue.ActualResponse),
		orNone(issue.SuggestedResponse),
		objection,
	)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

// clampSentences keeps at most n sentences of s.
func clampSentences(s string, n int) string {
	s = strings.TrimSpace(s)
	count := 0
	runes := []rune(s)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Runs like "?!" or "..." end one sentence
		if i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
			continue
		}
		if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
			count++
			if count == n {
				return strings.TrimSpace(string(runes[:i+1]))
			}
		}
	}
	return s
}
