package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/convreview/pkg/models"
)

func learning(id string, cat models.LearningCategory, title string, p models.Priority) *models.Learning {
	return &models.Learning{
		ID:              id,
		Category:        cat,
		Title:           title,
		DoThis:          "do " + title,
		DontDoThis:      "avoid " + title,
		Priority:        p,
		ConfidenceScore: 1.0,
		IsActive:        true,
		Source:          models.SourceTeachingDialogue,
	}
}

func TestGenerate_Empty(t *testing.T) {
	report := Generate(nil)
	assert.NotNil(t, report.Suggestions)
	assert.Empty(t, report.Suggestions)
	assert.Equal(t, 0, report.TotalLearnings)
	assert.NotEmpty(t, report.Message)
}

func TestGenerate_IgnoresInactive(t *testing.T) {
	l := learning("l1", models.CategoryTrustConcern, "Be honest", models.PriorityHigh)
	l.IsActive = false

	report := Generate([]*models.Learning{l})
	assert.Empty(t, report.Suggestions)
	assert.Equal(t, 0, report.TotalLearnings)
	assert.Equal(t, emptyMessage, report.Message)
}

func TestGenerate_Sections(t *testing.T) {
	learnings := []*models.Learning{
		learning("l1", models.CategoryPriceObjection, "Give ranges", models.PriorityMedium),
		learning("l2", models.CategoryTrustConcern, "No headline savings", models.PriorityCritical),
		learning("l3", models.CategoryFollowupStrategy, "Stop when asked", models.PriorityHigh),
		learning("l4", models.CategoryTimingObjection, "Offer a later date", models.PriorityLow),
		learning("l5", models.CategoryContextMaintenance, "Remember tenancy", models.PriorityMedium),
		learning("l6", models.CategoryMessageStyle, "Shorter messages", models.PriorityHigh),
	}

	report := Generate(learnings)
	assert.Equal(t, 6, report.TotalLearnings)
	assert.Equal(t, 1, report.CategoryCounts[models.CategoryMessageStyle])
	assert.Empty(t, report.Message)
	require.Len(t, report.Suggestions, 5)

	byID := map[string]models.Suggestion{}
	for _, s := range report.Suggestions {
		byID[s.ID] = s
	}

	price := byID["price-objection"]
	assert.Equal(t, models.SectionReplaceExisting, price.Section)
	assert.NotEmpty(t, price.CurrentText)
	assert.Contains(t, price.SuggestedReplacement, "- DO: do Give ranges")
	assert.Empty(t, price.SuggestedAddition)

	timing := byID["timing-objection"]
	assert.Equal(t, models.SectionReplaceExisting, timing.Section)
	assert.NotEmpty(t, timing.CurrentText)

	for _, id := range []string{"trust-psychology", "stop-messaging", "context-maintenance"} {
		s := byID[id]
		assert.Equal(t, models.SectionNew, s.Section, id)
		assert.Empty(t, s.CurrentText, id)
		assert.NotEmpty(t, s.SuggestedAddition, id)
	}

	// Most urgent first, ties broken by id
	var order []string
	for _, s := range report.Suggestions {
		order = append(order, s.ID)
	}
	assert.Equal(t, []string{"trust-psychology", "stop-messaging", "context-maintenance", "price-objection", "timing-objection"}, order)
}

func TestGenerate_GroupDetails(t *testing.T) {
	a := learning("a", models.CategoryPriceObjection, "Zebra rule", models.PriorityLow)
	b := learning("b", models.CategoryPriceObjection, "Alpha rule", models.PriorityHigh)
	c := learning("c", models.CategoryPriceObjection, "Alpha rule", models.PriorityMedium)
	c.DoThis = b.DoThis
	c.Source = models.SourceUserAgreed
	c.ConfidenceScore = 0.5

	report := Generate([]*models.Learning{a, b, c})
	require.Len(t, report.Suggestions, 1)
	s := report.Suggestions[0]

	assert.Equal(t, 3, s.LearningCount)
	assert.Equal(t, []string{"Alpha rule", "Zebra rule"}, s.Evidence)
	assert.Equal(t, models.PriorityHigh, s.Priority)
	assert.Equal(t, "PRICE OBJECTIONS\n- DO: do Alpha rule\n- DO: do Zebra rule\n- DON'T: avoid Alpha rule\n- DON'T: avoid Zebra rule", s.SuggestedReplacement)
	assert.Contains(t, s.Reasoning, "2 from teaching dialogues, 1 from agreed reviews")
	assert.Contains(t, s.Reasoning, "0.83")
}

func TestGenerate_Deterministic(t *testing.T) {
	learnings := []*models.Learning{
		learning("l1", models.CategoryPriceObjection, "Give ranges", models.PriorityMedium),
		learning("l2", models.CategoryPriceObjection, "Mention finance", models.PriorityMedium),
		learning("l3", models.CategoryTrustConcern, "No headline savings", models.PriorityCritical),
		learning("l4", models.CategoryFollowupStrategy, "Stop when asked", models.PriorityHigh),
	}
	reversed := make([]*models.Learning, len(learnings))
	for i, l := range learnings {
		reversed[len(learnings)-1-i] = l
	}

	assert.Equal(t, Generate(learnings), Generate(learnings))
	assert.Equal(t, Generate(learnings), Generate(reversed))
}

func TestGenerate_NoTemplateForCategory(t *testing.T) {
	report := Generate([]*models.Learning{
		learning("l1", models.CategoryGeneralEthos, "Be kind", models.PriorityLow),
	})
	assert.Empty(t, report.Suggestions)
	assert.Equal(t, 1, report.TotalLearnings)
	assert.Contains(t, report.Message, "1 active learning")
}
