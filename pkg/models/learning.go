package models

import (
	"strings"
	"time"
)

// LearningCategory groups learnings by the part of the sales playbook they affect
type LearningCategory string

const (
	CategoryPriceObjection     LearningCategory = "price_objection"
	CategoryTimingObjection    LearningCategory = "timing_objection"
	CategoryTrustConcern       LearningCategory = "trust_concern"
	CategoryContextMaintenance LearningCategory = "context_maintenance"
	CategoryMessageStyle       LearningCategory = "message_style"
	CategoryFollowupStrategy   LearningCategory = "followup_strategy"
	CategoryGeneralEthos       LearningCategory = "general_ethos"
	CategoryOther              LearningCategory = "other"
)

// LearningCategories lists every category, catch-all last.
var LearningCategories = []LearningCategory{
	CategoryPriceObjection, CategoryTimingObjection, CategoryTrustConcern,
	CategoryContextMaintenance, CategoryMessageStyle, CategoryFollowupStrategy,
	CategoryGeneralEthos, CategoryOther,
}

// NormalizeCategory maps free text from the model onto a known category.
func NormalizeCategory(raw string) LearningCategory {
	c := LearningCategory(normalizeEnum(raw))
	for _, known := range LearningCategories {
		if c == known {
			return c
		}
	}
	return CategoryOther
}

// NormalizePriority maps free text onto a priority, defaulting to medium.
func NormalizePriority(raw string) Priority {
	p := Priority(normalizeEnum(raw))
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

// LearningSource records how a learning came to exist
type LearningSource string

const (
	SourceUserAgreed       LearningSource = "user_agreed"
	SourceTeachingDialogue LearningSource = "teaching_dialogue"
	SourceConsolidated     LearningSource = "consolidated"
)

// DialogueRole identifies the speaker of a teaching-dialogue turn
type DialogueRole string

const (
	RoleHuman DialogueRole = "human"
	RoleAgent DialogueRole = "agent"
)

// DialogueTurn is one message inside a teaching session. Sessions are held
// by the caller and only persisted as a learning's transcript.
type DialogueTurn struct {
	Role      DialogueRole `json:"role"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}

// Learning is a durable lesson extracted from human review of an analysis.
// Learnings are never deleted; superseded ones are deactivated.
type Learning struct {
	ID                   string           `json:"id"`
	Category             LearningCategory `json:"category"`
	Title                string           `json:"title"`
	UserGuidance         string           `json:"userGuidance"`
	DoThis               string           `json:"doThis"`
	DontDoThis           string           `json:"dontDoThis"`
	Priority             Priority         `json:"priority"`
	ConfidenceScore      float64          `json:"confidenceScore"`
	TimesApplied         int              `json:"timesApplied"`
	TimesCorrect         int              `json:"timesCorrect"`
	TimesIncorrect       int              `json:"timesIncorrect"`
	Version              int              `json:"version"`
	IsActive             bool             `json:"isActive"`
	Source               LearningSource   `json:"source"`
	OriginalIssue        IssueType        `json:"originalIssue,omitempty"`
	DialogueTranscript   []DialogueTurn   `json:"dialogueTranscript"`
	ConversationExamples []string         `json:"conversationExamples"`
	LastUpdated          time.Time        `json:"lastUpdated"`
	CreatedAt            time.Time        `json:"createdAt"`
}

// LearningFilter narrows learning listings
type LearningFilter struct {
	Category   LearningCategory
	ActiveOnly bool
	Limit      int
}

func normalizeEnum(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}
