// Package consolidate assembles active learnings into suggested changes to
// the production instruction set. It is pure: the same learnings always give
// the same report.
package consolidate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jordanhubbard/convreview/pkg/models"
)

const emptyMessage = "No active learnings yet. Agree with analyses or teach corrections to build up suggestions."

// Generate builds the suggestion report for learnings. Inactive learnings are ignored.
func Generate(learnings []*models.Learning) models.SuggestionReport {
	groups := map[models.LearningCategory][]*models.Learning{}
	counts := map[models.LearningCategory]int{}
	total := 0
	for _, l := range learnings {
		if l == nil || !l.IsActive {
			continue
		}
		total++
		counts[l.Category]++
		groups[l.Category] = append(groups[l.Category], l)
	}

	report := models.SuggestionReport{
		Suggestions:    []models.Suggestion{},
		TotalLearnings: total,
		CategoryCounts: counts,
	}
	if total == 0 {
		report.Message = emptyMessage
		return report
	}

	for _, b := range builders {
		group := groups[b.category]
		if len(group) == 0 {
			continue
		}
		report.Suggestions = append(report.Suggestions, b.build(group))
	}

	sort.SliceStable(report.Suggestions, func(i, j int) bool {
		pi, pj := report.Suggestions[i].Priority.Rank(), report.Suggestions[j].Priority.Rank()
		if pi != pj {
			return pi < pj
		}
		return report.Suggestions[i].ID < report.Suggestions[j].ID
	})

	if len(report.Suggestions) == 0 {
		report.Message = fmt.Sprintf("%d active learning(s), none in a category with a suggestion template yet.", total)
	}
	return report
}

func (b builder) build(group []*models.Learning) models.Suggestion {
	sorted := make([]*models.Learning, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		a, c := sorted[i], sorted[j]
		if a.Priority.Rank() != c.Priority.Rank() {
			return a.Priority.Rank() < c.Priority.Rank()
		}
		if a.Title != c.Title {
			return a.Title < c.Title
		}
		return a.ID < c.ID
	})

	evidence := make([]string, 0, len(sorted))
	seen := map[string]bool{}
	for _, l := range sorted {
		if !seen[l.Title] {
			seen[l.Title] = true
			evidence = append(evidence, l.Title)
		}
	}
	sort.Strings(evidence)

	s := models.Suggestion{
		ID:            b.id,
		Title:         b.title,
		Priority:      groupPriority(sorted),
		Section:       b.section,
		Category:      b.category,
		LearningCount: len(sorted),
		Evidence:      evidence,
		Reasoning:     reasoning(sorted),
	}

	body := b.body(sorted)
	if b.section == models.SectionReplaceExisting {
		s.CurrentText = b.currentText
		s.SuggestedReplacement = body
	} else {
		s.SuggestedAddition = body
	}
	return s
}

// body renders the section text: do rules first, then don't rules, each
// deduplicated in learning order.
func (b builder) body(sorted []*models.Learning) string {
	var do, dont []string
	seenDo, seenDont := map[string]bool{}, map[string]bool{}
	for _, l := range sorted {
		if d := strings.TrimSpace(l.DoThis); d != "" && !seenDo[d] {
			seenDo[d] = true
			do = append(do, d)
		}
		if d := strings.TrimSpace(l.DontDoThis); d != "" && !seenDont[d] {
			seenDont[d] = true
			dont = append(dont, d)
		}
	}

	var sb strings.Builder
	sb.WriteString(b.heading)
	sb.WriteString("\n")
	for _, d := range do {
		fmt.Fprintf(&sb, "- DO: %s\n", d)
	}
	for _, d := range dont {
		fmt.Fprintf(&sb, "- DON'T: %s\n", d)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func groupPriority(sorted []*models.Learning) models.Priority {
	best := models.PriorityLow
	for _, l := range sorted {
		if l.Priority.Valid() && l.Priority.Rank() < best.Rank() {
			best = l.Priority
		}
	}
	return best
}

func reasoning(sorted []*models.Learning) string {
	taught, agreed := 0, 0
	sum := 0.0
	for _, l := range sorted {
		switch l.Source {
		case models.SourceTeachingDialogue:
			taught++
		case models.SourceUserAgreed:
			agreed++
		}
		sum += l.ConfidenceScore
	}
	return fmt.Sprintf("Backed by %d learning(s): %d from teaching dialogues, %d from agreed reviews. Average confidence %.2f.",
		len(sorted), taught, agreed, sum/float64(len(sorted)))
}
