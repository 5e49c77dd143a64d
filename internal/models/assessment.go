package models

import (
	"time"

	"gorm.io/gorm"
)

type AssessmentStatus string

const (
	StatusDraft     AssessmentStatus = "Draft"
	StatusPublished AssessmentStatus = "Published"
	StatusRetracted AssessmentStatus = "Retracted"
	StatusArchived  AssessmentStatus = "Archived"
)

// Assessment is the published test definition submissions are made against.
// Authoring happens elsewhere; this service reads the delivery-relevant
// fields: dates, time limit, tries and grading policy.
type Assessment struct {
	ID      uint             `json:"id" gorm:"primaryKey"`
	Title   string           `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Context string           `json:"context" gorm:"not null;size:100;index"`
	Status  AssessmentStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Published Retracted Archived"`

	// Delivery window
	OpenDate        *time.Time `json:"open_date"`
	DueDate         *time.Time `json:"due_date"`
	AcceptUntilDate *time.Time `json:"accept_until_date"`
	RetractDate     *time.Time `json:"retract_date"`
	AllowLateSubmit bool       `json:"allow_late_submit" gorm:"default:false"`

	// TimeLimit is in milliseconds; nil or 0 means untimed.
	TimeLimit *int64 `json:"time_limit"`

	// Tries is the attempt limit; nil means unlimited.
	Tries *int `json:"tries" validate:"omitempty,min=1"`

	// AutoRelease marks grades released the moment a submission completes.
	AutoRelease bool `json:"auto_release" gorm:"default:false"`

	// ReportToGradebook asks for completion events to be published for the
	// external gradebook consumer.
	ReportToGradebook bool `json:"report_to_gradebook" gorm:"default:false"`

	CreatedBy string         `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []Question `json:"questions" gorm:"foreignKey:AssessmentID"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// IsTimed reports whether the assessment carries a positive time limit.
func (a *Assessment) IsTimed() bool {
	return a.TimeLimit != nil && *a.TimeLimit > 0
}

// IsOpen checks whether the assessment admits test-taker action at asOf.
// Grace extends every closing date; it does not advance the open date.
func (a *Assessment) IsOpen(asOf time.Time, grace time.Duration) bool {
	if a.Status != StatusPublished {
		return false
	}
	if a.OpenDate != nil && asOf.Before(*a.OpenDate) {
		return false
	}
	if a.RetractDate != nil && !asOf.Before(a.RetractDate.Add(grace)) {
		return false
	}
	if a.AcceptUntilDate != nil && !asOf.Before(a.AcceptUntilDate.Add(grace)) {
		return false
	}
	if a.DueDate != nil && !a.AllowLateSubmit && !asOf.Before(a.DueDate.Add(grace)) {
		return false
	}
	return true
}

// SubmitUntilDate is the hard cutoff for accepting work: the earliest of
// retract, accept-until and (when late work is disallowed) due date.
func (a *Assessment) SubmitUntilDate() *time.Time {
	var rv *time.Time
	pick := func(t *time.Time) {
		if t == nil {
			return
		}
		if rv == nil || t.Before(*rv) {
			rv = t
		}
	}
	pick(a.RetractDate)
	pick(a.AcceptUntilDate)
	if !a.AllowLateSubmit {
		pick(a.DueDate)
	}
	return rv
}

// TotalPoints sums the authored points over all questions.
func (a *Assessment) TotalPoints() float64 {
	var total float64
	for i := range a.Questions {
		total += a.Questions[i].Points
	}
	return total
}

// QuestionByID finds a question by id, or nil.
func (a *Assessment) QuestionByID(id uint) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i]
		}
	}
	return nil
}
