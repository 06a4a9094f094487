package models

import (
	"strings"
	"time"
)

// Lead is the transcript-bearing record owned by the lead-management store.
// This service only reads leads.
type Lead struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Status           string     `json:"status"`
	ConversationText string     `json:"conversationText"`
	LastMessageAt    *time.Time `json:"lastMessageAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Name returns the display name of the lead.
func (l *Lead) Name() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Summary returns the lightweight view embedded in analysis listings.
func (l *Lead) Summary() *LeadSummary {
	return &LeadSummary{ID: l.ID, FirstName: l.FirstName, LastName: l.LastName, Status: l.Status}
}

// LeadSummary is the dereferenced lead shown alongside an analysis
type LeadSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Status    string `json:"status"`
}
