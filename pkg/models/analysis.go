package models

import "time"

// IssueType categorises a defect found in an automated conversation
type IssueType string

const (
	IssueTrustIssue         IssueType = "trust_issue"
	IssueTooPushy           IssueType = "too_pushy"
	IssueLostContext        IssueType = "lost_context"
	IssueIgnoredObjection   IssueType = "ignored_objection"
	IssueWrongInformation   IssueType = "wrong_information"
	IssueUnrealisticClaim   IssueType = "unrealistic_claim"
	IssuePoorTiming         IssueType = "poor_timing"
	IssueTooLong            IssueType = "too_long"
	IssueRepetitive         IssueType = "repetitive"
	IssueUnprofessionalTone IssueType = "unprofessional_tone"
	IssueMissedBuyingSignal IssueType = "missed_buying_signal"
	IssuePrematureClose     IssueType = "premature_close"
	IssueFailedToStop       IssueType = "failed_to_stop"
	IssueUnclearMessage     IssueType = "unclear_message"
	IssueOther              IssueType = "other"
)

// IssueTypes lists the named categories in rubric order (the catch-all is excluded).
var IssueTypes = []IssueType{
	IssueTrustIssue, IssueTooPushy, IssueLostContext, IssueIgnoredObjection,
	IssueWrongInformation, IssueUnrealisticClaim, IssuePoorTiming, IssueTooLong,
	IssueRepetitive, IssueUnprofessionalTone, IssueMissedBuyingSignal,
	IssuePrematureClose, IssueFailedToStop, IssueUnclearMessage,
}

// NormalizeIssueType maps free text from the model onto a known issue type.
func NormalizeIssueType(raw string) IssueType {
	t := IssueType(normalizeEnum(raw))
	for _, known := range IssueTypes {
		if t == known {
			return t
		}
	}
	return IssueOther
}

// Issue is one defect inside an Analysis. MessageIndex is 1-based into the
// parsed conversation.
type Issue struct {
	IssueType         IssueType `json:"issueType"`
	MessageIndex      int       `json:"messageIndex"`
	Explanation       string    `json:"explanation"`
	ActualResponse    string    `json:"actualResponse"`
	SuggestedResponse string    `json:"suggestedResponse"`
}

// Analysis is one scored evaluation of one conversation
type Analysis struct {
	ID                   string         `json:"id"`
	LeadID               string         `json:"leadId"`
	QualityScore         int            `json:"qualityScore"`
	Status               AnalysisStatus `json:"status"`
	Priority             Priority       `json:"priority"`
	Issues               []Issue        `json:"issues"`
	OverallAssessment    string         `json:"overallAssessment"`
	KeyTakeaways         []string       `json:"keyTakeaways"`
	ConversationSnapshot string         `json:"conversationSnapshot"`
	MessageCount         int            `json:"messageCount"`
	UserFeedback         *string        `json:"userFeedback,omitempty"`
	AgreedWithSophie     *bool          `json:"agreedWithSophie,omitempty"`
	LearningsCreated     []string       `json:"learningsCreated"`
	Version              int            `json:"version"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
	ReviewedAt           *time.Time     `json:"reviewedAt,omitempty"`

	// Lead is dereferenced on list/get and never stored with the analysis.
	Lead *LeadSummary `json:"lead,omitempty"`
}

// Issue returns the issue at a 0-based index.
func (a *Analysis) Issue(index int) (Issue, bool) {
	if a == nil || index < 0 || index >= len(a.Issues) {
		return Issue{}, false
	}
	return a.Issues[index], true
}

// AnalysisFilter narrows analysis listings. Zero values mean "no filter".
type AnalysisFilter struct {
	Status   AnalysisStatus
	Priority Priority
	MinScore *int
	MaxScore *int
	Limit    int
}
