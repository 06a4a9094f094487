package models

import "time"

// AnalysisStatus represents where an analysis sits in the review lifecycle
type AnalysisStatus string

const (
	AnalysisStatusPendingReview AnalysisStatus = "pending_review"
	AnalysisStatusUnderReview   AnalysisStatus = "under_review"
	AnalysisStatusReviewed      AnalysisStatus = "reviewed"
	AnalysisStatusNeedsInfo     AnalysisStatus = "needs_info"
	AnalysisStatusDismissed     AnalysisStatus = "dismissed"
)

// Valid reports whether s is a known status.
func (s AnalysisStatus) Valid() bool {
	switch s {
	case AnalysisStatusPendingReview, AnalysisStatusUnderReview, AnalysisStatusReviewed,
		AnalysisStatusNeedsInfo, AnalysisStatusDismissed:
		return true
	}
	return false
}

// Priority is the urgency tier shared by analyses, learnings and suggestions
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities, 0 being the most urgent. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() < 4
}

// BatchItem is the per-lead outcome of a batch analysis run.
// Exactly one of AnalysisID or Error is set.
type BatchItem struct {
	LeadID     string `json:"leadId"`
	LeadName   string `json:"leadName,omitempty"`
	Score      *int   `json:"score,omitempty"`
	AnalysisID string `json:"analysisId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchResult summarises a batch analysis run
type BatchResult struct {
	Analyzed    int         `json:"analyzed"`
	Results     []BatchItem `json:"results"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt time.Time   `json:"completedAt"`
}

// Failed counts the items that carry an error.
func (r *BatchResult) Failed() int {
	n := 0
	for _, item := range r.Results {
		if item.Error != "" {
			n++
		}
	}
	return n
}
