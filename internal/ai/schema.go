// Package ai implements the text-classification boundary: one outbound
// call per email, returning a constrained JSON analysis. The response
// is untrusted; anything that does not decode into the documented
// schema surfaces as a SchemaError so callers handle the degraded case
// explicitly.
package ai

import (
	"fmt"

	"github.com/familyhub/schoolmail-backend/internal/models"
)

// ExtractedEvent is one calendar event found in an email.
type ExtractedEvent struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	EventType   string `json:"event_type"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	AllDay      bool   `json:"all_day"`
	Location    string `json:"location,omitempty"`
}

// ExtractedAction is one action item found in an email.
type ExtractedAction struct {
	ActionType string `json:"action_type"`
	ActionText string `json:"action_text"`
	DueDate    string `json:"due_date,omitempty"`
	Priority   string `json:"priority"`
}

// ChildMention is one child the classifier believes the email concerns.
type ChildMention struct {
	ChildName     string  `json:"child_name"`
	RelevanceType string  `json:"relevance_type"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// Analysis is the full structured classification of one email.
type Analysis struct {
	Category         string            `json:"category"`
	Priority         string            `json:"priority"`
	ActionRequired   bool              `json:"action_required"`
	ConfidenceScore  float64           `json:"confidence_score"`
	Summary          string            `json:"summary"`
	ExtractedEvents  []ExtractedEvent  `json:"extracted_events,omitempty"`
	ExtractedActions []ExtractedAction `json:"extracted_actions,omitempty"`
	ChildMentions    []ChildMention    `json:"child_mentions,omitempty"`
}

// DefaultAnalysis is the safe fallback when a response cannot be
// decoded: lowest-commitment values that never block ingestion.
func DefaultAnalysis() *Analysis {
	return &Analysis{
		Category:        string(models.CategoryOther),
		Priority:        string(models.PriorityMedium),
		ActionRequired:  false,
		ConfidenceScore: 0,
		Summary:         "Unable to analyze email",
	}
}

// SchemaError reports a response that did not match the expected JSON
// schema. Raw carries the offending payload for diagnostics.
type SchemaError struct {
	Raw string
	Err error
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	return fmt.Sprintf("classification response did not match schema: %v", e.Err)
}

// Unwrap returns the underlying decode error
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// normalize clamps fields to their documented domains so a
// syntactically valid but out-of-range response cannot leak bad values
// into storage.
func (a *Analysis) normalize() {
	if !validCategory(a.Category) {
		a.Category = string(models.CategoryOther)
	}
	if !validPriority(a.Priority) {
		a.Priority = string(models.PriorityMedium)
	}
	if a.ConfidenceScore < 0 {
		a.ConfidenceScore = 0
	}
	if a.ConfidenceScore > 1 {
		a.ConfidenceScore = 1
	}
	for i := range a.ExtractedActions {
		if !validPriority(a.ExtractedActions[i].Priority) {
			a.ExtractedActions[i].Priority = string(models.PriorityMedium)
		}
	}
	for i := range a.ChildMentions {
		if c := &a.ChildMentions[i]; c.Confidence < 0 {
			c.Confidence = 0
		} else if c.Confidence > 1 {
			c.Confidence = 1
		}
	}
}

func validCategory(c string) bool {
	switch models.EmailCategory(c) {
	case models.CategorySchoolNotice, models.CategoryHomework, models.CategoryEvent,
		models.CategoryPermission, models.CategoryGrade, models.CategoryBehavior,
		models.CategorySports, models.CategoryTransportation, models.CategoryFundraising,
		models.CategoryOther:
		return true
	}
	return false
}

func validPriority(p string) bool {
	switch models.EmailPriority(p) {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return true
	}
	return false
}
