package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the grade lifecycle moments published for external
// consumers (gradebook, notifications).
type EventType string

const (
	EventSubmissionCompleted     EventType = "submission.completed"
	EventSubmissionAutoCompleted EventType = "submission.auto_completed"
	EventSubmissionEvaluated     EventType = "submission.evaluated"
	EventGradesReleased          EventType = "submission.grades_released"
)

// GradeEvent is the envelope on the wire. Data carries a typed payload.
type GradeEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// SubmissionGradePayload reports one submission's score to the external
// gradebook consumer. Test-drive submissions never produce one.
type SubmissionGradePayload struct {
	SubmissionID uint       `json:"submission_id"`
	AssessmentID uint       `json:"assessment_id"`
	UserID       string     `json:"user_id"`
	TotalScore   float64    `json:"total_score"`
	TotalPoints  float64    `json:"total_points"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	Released     bool       `json:"released"`
	AutoComplete bool       `json:"auto_complete"`
}

// NewGradeEvent wraps a payload in the standard envelope.
func NewGradeEvent(eventType EventType, data any) *GradeEvent {
	return &GradeEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "submission-service",
		Version:   "1.0",
		Timestamp: time.Now(),
		Data:      data,
	}
}
