package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// LeadStatus is the routing state of a lead. The first three values are
// derived from confidence by the classifier; the rest are set by people.
type LeadStatus string

const (
	LeadStatusAutoAssigned   LeadStatus = "AUTO_ASSIGNED"
	LeadStatusQualified      LeadStatus = "QUALIFIED"
	LeadStatusReviewRequired LeadStatus = "REVIEW_REQUIRED"
	LeadStatusDiscarded      LeadStatus = "DISCARDED"
	LeadStatusAccepted       LeadStatus = "ACCEPTED"
	LeadStatusRejected       LeadStatus = "REJECTED"
	LeadStatusConverted      LeadStatus = "CONVERTED"
)

// AllLeadStatuses lists every status in display order.
var AllLeadStatuses = []LeadStatus{
	LeadStatusAutoAssigned,
	LeadStatusQualified,
	LeadStatusReviewRequired,
	LeadStatusDiscarded,
	LeadStatusAccepted,
	LeadStatusRejected,
	LeadStatusConverted,
}

// IsValid reports whether s is a known status.
func (s LeadStatus) IsValid() bool {
	for _, v := range AllLeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further action may change s.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusRejected || s == LeadStatusConverted
}

// ActionType is a human decision recorded against a lead.
type ActionType string

const (
	ActionAccept  ActionType = "ACCEPT"
	ActionReject  ActionType = "REJECT"
	ActionConvert ActionType = "CONVERT"
)

// ErrInvalidTransition is returned when an action does not apply to the
// lead's current status.
var ErrInvalidTransition = eris.New("model: invalid lead status transition")

// Transition returns the status a lead moves to when action is applied.
func Transition(from LeadStatus, action ActionType) (LeadStatus, error) {
	if from.IsTerminal() {
		return from, eris.Wrapf(ErrInvalidTransition, "%s is terminal", from)
	}
	switch action {
	case ActionAccept:
		return LeadStatusAccepted, nil
	case ActionReject:
		return LeadStatusRejected, nil
	case ActionConvert:
		if from != LeadStatusAccepted {
			return from, eris.Wrapf(ErrInvalidTransition, "convert requires %s, lead is %s", LeadStatusAccepted, from)
		}
		return LeadStatusConverted, nil
	default:
		return from, eris.Errorf("model: unknown action %q", action)
	}
}

// Company describes the organisation a lead refers to.
type Company struct {
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
	Location string `json:"location,omitempty"`
}

// CompanyRecord is a deduplicated company. Leads naming the same firm under
// different legal suffixes share one record through NormalizedName.
type CompanyRecord struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalizedName"`
	Industry       string    `json:"industry,omitempty"`
	Location       string    `json:"location,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Lead is a signal after it has been matched to a product and scored.
type Lead struct {
	ID          string      `json:"id"`
	Company     Company     `json:"company"`
	CompanyID   string      `json:"companyId,omitempty"`
	Source      string      `json:"source,omitempty"`
	SourceURL   string      `json:"sourceUrl,omitempty"`
	ProductCode string      `json:"productCode"`
	Signal      Signal      `json:"signal"`
	Score       ScoreResult `json:"score"`
	Priority    Priority    `json:"priority"`
	Status      LeadStatus  `json:"status"`
	AssignedTo  string      `json:"assignedTo,omitempty"`
	Actions     []Action    `json:"actions,omitempty"`
	Notes       []Note      `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Confidence is a shortcut for Score.FinalConfidence.
func (l Lead) Confidence() float64 {
	return l.Score.FinalConfidence
}

// Action records a status change made by a sales officer.
type Action struct {
	ID                 string     `json:"id"`
	LeadID             string     `json:"leadId"`
	Type               ActionType `json:"action"`
	FromStatus         LeadStatus `json:"fromStatus"`
	ToStatus           LeadStatus `json:"toStatus"`
	Actor              string     `json:"actor,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	NextFollowUp       *time.Time `json:"nextFollowUp,omitempty"`
	EstimatedDealValue *float64   `json:"estimatedDealValue,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// ActionRequest is the input for applying an action to a lead.
type ActionRequest struct {
	Type               ActionType `json:"action"`
	Actor              string     `json:"actor,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	NextFollowUp       *time.Time `json:"nextFollowUp,omitempty"`
	EstimatedDealValue *float64   `json:"estimatedDealValue,omitempty"`
}

// Note is a free-text comment attached to a lead.
type Note struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"leadId"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeadStats summarises stored leads.
type LeadStats struct {
	Total             int                `json:"total"`
	ByStatus          map[LeadStatus]int `json:"byStatus"`
	AverageConfidence float64            `json:"averageConfidence"`
}

// LeadInput is a signal as it arrives from ingestion, before scoring. An
// empty ProductCode asks the pipeline to infer candidate products.
type LeadInput struct {
	Company     Company `json:"company"`
	Source      string  `json:"source,omitempty"`
	SourceURL   string  `json:"sourceUrl,omitempty"`
	ProductCode string  `json:"productCode,omitempty"`
	Signal      Signal  `json:"signal"`
}
