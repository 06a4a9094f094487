package models

// SuggestionSection says whether a suggestion adds a new instruction section
// or rewrites an existing one
type SuggestionSection string

const (
	SectionNew             SuggestionSection = "NEW_SECTION"
	SectionReplaceExisting SuggestionSection = "REPLACE_EXISTING"
)

// Suggestion is a proposed change to the production instruction set, backed
// by the learnings listed in Evidence.
type Suggestion struct {
	ID                   string            `json:"id"`
	Title                string            `json:"title"`
	Priority             Priority          `json:"priority"`
	Section              SuggestionSection `json:"section"`
	Category             LearningCategory  `json:"category"`
	LearningCount        int               `json:"learningCount"`
	Evidence             []string          `json:"evidence"`
	CurrentText          string            `json:"currentText,omitempty"`
	SuggestedAddition    string            `json:"suggestedAddition,omitempty"`
	SuggestedReplacement string            `json:"suggestedReplacement,omitempty"`
	Reasoning            string            `json:"reasoning"`
}

// SuggestionReport is the consolidated view over all active learnings
type SuggestionReport struct {
	Suggestions    []Suggestion             `json:"suggestions"`
	TotalLearnings int                      `json:"totalLearnings"`
	CategoryCounts map[LearningCategory]int `json:"categoryCounts"`
	Message        string                   `json:"message,omitempty"`
}
