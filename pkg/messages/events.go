package messages

import "time"

// Event types published by the review pipeline
const (
	TypeAnalysisCreated     = "analysis.created"
	TypeAnalysisReviewed    = "analysis.reviewed"
	TypeLearningCreated     = "learning.created"
	TypeLearningDeactivated = "learning.deactivated"
	TypeBatchCompleted      = "batch.completed"
)

// EventMessage represents a pipeline event sent via NATS
type EventMessage struct {
	Type          string                 `json:"type"`   // "analysis.created", "learning.created", etc.
	Source        string                 `json:"source"` // Service that generated the event
	LeadID        string                 `json:"lead_id,omitempty"`
	EntityID      string                 `json:"entity_id,omitempty"` // Analysis ID or Learning ID
	Event         EventData              `json:"event"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// EventData contains the event-specific information
type EventData struct {
	Action      string                 `json:"action"`   // "created", "reviewed", "deactivated", "completed"
	Category    string                 `json:"category"` // "analysis", "learning", "batch"
	Description string                 `json:"description,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Subject returns the NATS subject the event is published on.
func (e *EventMessage) Subject() string {
	return "convreview.events." + e.Type
}

// AnalysisCreated creates an analysis.created event
func AnalysisCreated(leadID, analysisID, source string, score int, priority string) *EventMessage {
	return &EventMessage{
		Type:     TypeAnalysisCreated,
		Source:   source,
		LeadID:   leadID,
		EntityID: analysisID,
		Event: EventData{
			Action:   "created",
			Category: "analysis",
			Data: map[string]interface{}{
				"quality_score": score,
				"priority":      priority,
			},
		},
		Timestamp: time.Now(),
	}
}

// AnalysisReviewed creates an analysis.reviewed event. status is the state
// the analysis moved into.
func AnalysisReviewed(leadID, analysisID, source, status string, learningIDs []string) *EventMessage {
	return &EventMessage{
		Type:     TypeAnalysisReviewed,
		Source:   source,
		LeadID:   leadID,
		EntityID: analysisID,
		Event: EventData{
			Action:   "reviewed",
			Category: "analysis",
			Data: map[string]interface{}{
				"status":            status,
				"learnings_created": learningIDs,
			},
		},
		Timestamp: time.Now(),
	}
}

// LearningCreated creates a learning.created event
func LearningCreated(learningID, source, category, learningSource string) *EventMessage {
	return &EventMessage{
		Type:     TypeLearningCreated,
		Source:   source,
		EntityID: learningID,
		Event: EventData{
			Action:   "created",
			Category: "learning",
			Data: map[string]interface{}{
				"category": category,
				"source":   learningSource,
			},
		},
		Timestamp: time.Now(),
	}
}

// LearningDeactivated creates a learning.deactivated event
func LearningDeactivated(learningID, source string) *EventMessage {
	return &EventMessage{
		Type:     TypeLearningDeactivated,
		Source:   source,
		EntityID: learningID,
		Event: EventData{
			Action:   "deactivated",
			Category: "learning",
		},
		Timestamp: time.Now(),
	}
}

// BatchCompleted creates a batch.completed event
func BatchCompleted(source string, analyzed, failed int) *EventMessage {
	return &EventMessage{
		Type:   TypeBatchCompleted,
		Source: source,
		Event: EventData{
			Action:   "completed",
			Category: "batch",
			Data: map[string]interface{}{
				"analyzed": analyzed,
				"failed":   failed,
			},
		},
		Timestamp: time.Now(),
	}
}
