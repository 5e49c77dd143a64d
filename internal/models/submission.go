package models

import (
	"time"

	"gorm.io/gorm"
)

// UntimedWarnHorizon bounds the countdown reported for untimed submissions
// whose assessment closes soon. Overridable via configuration.
const UntimedWarnHorizon = 2 * time.Hour

// ExpirationCause says which policy produced an expiration countdown.
type ExpirationCause string

const (
	ExpireTimeLimit  ExpirationCause = "time_limit"
	ExpireClosedDate ExpirationCause = "closed_date"
)

// Expiration is the countdown surface handed to delivery so it can warn the
// test-taker. Duration counts from now; Limit is the governing window.
type Expiration struct {
	Cause    ExpirationCause `json:"cause"`
	Time     *time.Time      `json:"time,omitempty"`
	Limit    time.Duration   `json:"limit"`
	Duration time.Duration   `json:"duration"`
}

// Submission is one test-taking attempt by one user on one assessment.
//
// A zero ID marks a phantom: a non-persisted placeholder standing in for "no
// attempt yet", synthesized so callers always get exactly one representative
// per user/assessment pair. Phantoms never reach the store.
type Submission struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	AssessmentID uint   `json:"assessment_id" gorm:"not null;index:idx_submissions_user_assessment"`
	UserID       string `json:"user_id" gorm:"not null;size:255;index:idx_submissions_user_assessment"`

	StartedAt   *time.Time `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	IsComplete  bool       `json:"is_complete" gorm:"default:false;index"`
	IsReleased  bool       `json:"is_released" gorm:"default:false"`

	// TestDrive attempts are previews made without submit permission; they
	// bypass window and tries checks and never reach the gradebook.
	TestDrive bool `json:"test_drive" gorm:"default:false"`

	// Evaluator fields; the only mutable state once complete.
	EvalScore   *float64   `json:"eval_score"`
	EvalComment *string    `json:"eval_comment" gorm:"type:text"`
	EvaluatedBy *string    `json:"evaluated_by" gorm:"size:255"`
	EvaluatedAt *time.Time `json:"evaluated_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Assessment Assessment         `json:"assessment" gorm:"foreignKey:AssessmentID"`
	Answers    []SubmissionAnswer `json:"answers" gorm:"foreignKey:SubmissionID"`

	// Officializer outputs, never stored.
	SiblingCount int         `json:"sibling_count" gorm:"-"`
	Best         *Submission `json:"best,omitempty" gorm:"-"`
}

func (Submission) TableName() string {
	return "submissions"
}

// NewPhantom builds the placeholder submission for a user/assessment pair
// with no real attempt.
func NewPhantom(assessment *Assessment, userID string) *Submission {
	s := &Submission{UserID: userID}
	if assessment != nil {
		s.AssessmentID = assessment.ID
		s.Assessment = *assessment
	}
	return s
}

// IsPhantom reports whether this submission is an unpersisted placeholder.
func (s *Submission) IsPhantom() bool {
	return s.ID == 0
}

func (s *Submission) IsStarted() bool {
	return s.StartedAt != nil
}

// IsInProgress means started but not yet complete.
func (s *Submission) IsInProgress() bool {
	return s.IsStarted() && !s.IsComplete
}

// ElapsedTime is time from start to submit, or to asOf while in progress.
func (s *Submission) ElapsedTime(asOf time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := asOf
	if s.SubmittedAt != nil {
		end = *s.SubmittedAt
	}
	if end.Before(*s.StartedAt) {
		return 0
	}
	return end.Sub(*s.StartedAt)
}

// WhenOver computes the hard cutoff for this submission, or nil when no
// timer or deadline governs it. Unstarted and complete submissions are
// never over.
func (s *Submission) WhenOver() *time.Time {
	if s.StartedAt == nil {
		return nil
	}
	if s.IsComplete {
		return nil
	}

	a := &s.Assessment
	var rv *time.Time

	if a.IsTimed() {
		t := s.StartedAt.Add(time.Duration(*a.TimeLimit) * time.Millisecond)
		rv = &t
	}

	if until := a.SubmitUntilDate(); until != nil {
		if rv == nil || until.Before(*rv) {
			rv = until
		}
	}

	return rv
}

// IsOver reports whether the submission is past its cutoff plus grace at
// asOf.
func (s *Submission) IsOver(asOf time.Time, grace time.Duration) bool {
	over := s.WhenOver()
	if over == nil {
		return false
	}
	return asOf.After(over.Add(grace))
}

// Expiration computes the countdown shown to the test-taker. Distinct from
// IsOver: an untimed submission whose assessment closes within
// UntimedWarnHorizon still reports a bounded countdown even though no hard
// timer governs the attempt.
func (s *Submission) Expiration(now time.Time, horizon time.Duration) *Expiration {
	a := &s.Assessment
	rv := &Expiration{}

	closed := a.SubmitUntilDate()
	rv.Time = closed

	var endTime time.Time

	if a.IsTimed() {
		rv.Limit = time.Duration(*a.TimeLimit) * time.Millisecond

		start := now
		if s.StartedAt != nil {
			start = *s.StartedAt
		}
		endTime = start.Add(rv.Limit)

		if closed != nil && closed.Before(endTime) {
			endTime = *closed
			rv.Cause = ExpireClosedDate
		} else {
			rv.Cause = ExpireTimeLimit
		}
	} else {
		if closed == nil {
			return nil
		}
		endTime = *closed

		// a far-off closing date is not worth a countdown
		if endTime.After(now.Add(horizon)) {
			return nil
		}

		rv.Limit = horizon
		rv.Cause = ExpireClosedDate
	}

	till := endTime.Sub(now)
	if till < 0 {
		till = 0
	}
	rv.Duration = till

	return rv
}

// TotalScore is the evaluator score plus the sum of answer scores.
func (s *Submission) TotalScore() float64 {
	var total float64
	if s.EvalScore != nil {
		total += *s.EvalScore
	}
	for i := range s.Answers {
		total += s.Answers[i].TotalScore()
	}
	return total
}

// AnswerFor returns the recorded answer for a question, or nil.
func (s *Submission) AnswerFor(questionID uint) *SubmissionAnswer {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return &s.Answers[i]
		}
	}
	return nil
}
