package consolidate

import "github.com/jordanhubbard/convreview/pkg/models"

// builder describes how one learning category becomes an instruction-set suggestion.
type builder struct {
	id          string
	title       string
	category    models.LearningCategory
	section     models.SuggestionSection
	currentText string // only for REPLACE_EXISTING
	heading     string
}

// Current production wording for sections that suggestions rewrite.
const (
	currentPriceSection = `PRICE OBJECTIONS
If the customer says it is too expensive, explain the long-term savings and mention that finance options are available.`

	currentTimingSection = `TIMING OBJECTIONS
If the customer says now is not a good time, ask when would be better and schedule a follow-up.`
)

// builders in presentation order
var builders = []builder{
	{
		id:       "trust-psychology",
		title:    "Add UK customer psychology and trust guidance",
		category: models.CategoryTrustConcern,
		section:  models.SectionNew,
		heading:  "BUILDING TRUST (UK CUSTOMERS)",
	},
	{
		id:          "price-objection",
		title:       "Rewrite the price objection section",
		category:    models.CategoryPriceObjection,
		section:     models.SectionReplaceExisting,
		currentText: currentPriceSection,
		heading:     "PRICE OBJECTIONS",
	},
	{
		id:          "timing-objection",
		title:       "Rewrite the timing objection section",
		category:    models.CategoryTimingObjection,
		section:     models.SectionReplaceExisting,
		currentText: currentTimingSection,
		heading:     "TIMING OBJECTIONS",
	},
	{
		id:       "stop-messaging",
		title:    "Add rules for when to stop messaging",
		category: models.CategoryFollowupStrategy,
		section:  models.SectionNew,
		heading:  "WHEN TO STOP MESSAGING",
	},
	{
		id:       "context-maintenance",
		title:    "Add context maintenance rules",
		category: models.CategoryContextMaintenance,
		section:  models.SectionNew,
		heading:  "REMEMBERING CONTEXT",
	},
}
