package models

import "time"

// SubmissionAnswer records one answer to one question within a submission.
// Created lazily the first time a question is answered or visited.
type SubmissionAnswer struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	SubmissionID uint `json:"submission_id" gorm:"not null;index:idx_answers_submission_question"`
	QuestionID   uint `json:"question_id" gorm:"not null;index:idx_answers_submission_question"`

	MarkedForReview bool       `json:"marked_for_review" gorm:"default:false"`
	Rationale       *string    `json:"rationale" gorm:"type:text"`
	SubmittedAt     *time.Time `json:"submitted_at"`

	EvalScore   *float64   `json:"eval_score"`
	EvalComment *string    `json:"eval_comment" gorm:"type:text"`
	EvaluatedBy *string    `json:"evaluated_by" gorm:"size:255"`
	EvaluatedAt *time.Time `json:"evaluated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Entries holds both the active set and the recycle pool; detached rows
	// keep their evaluator annotations so a re-added selection gets them
	// back.
	Entries []SubmissionAnswerEntry `json:"entries" gorm:"foreignKey:AnswerID"`
}

// SubmissionAnswerEntry is the smallest unit of recorded answer data, bound
// to one question part. Fixed-shape types carry exactly one entry per
// expected unit; variable-shape types (multiple-correct, file upload) grow
// and shrink with the test-taker's selections.
type SubmissionAnswerEntry struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	AnswerID uint `json:"answer_id" gorm:"not null;index"`
	PartID   uint `json:"part_id" gorm:"not null"`
	Position int  `json:"position" gorm:"not null"`

	// SelectedAnswerID references the authored choice picked, when the type
	// selects among authored answers.
	SelectedAnswerID *uint `json:"selected_answer_id"`

	// Text holds free-text input (fill-in value, numeric value, upload ref).
	Text *string `json:"text" gorm:"type:text"`

	// AutoScore caches the last computed score for this entry.
	AutoScore *float64 `json:"auto_score"`

	EvalScore   *float64 `json:"eval_score"`
	EvalComment *string  `json:"eval_comment" gorm:"type:text"`

	// Detached entries are the recycle pool: removed from the active set but
	// retained so their annotations survive re-selection.
	Detached bool `json:"-" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SubmissionAnswer) TableName() string {
	return "submission_answers"
}

func (SubmissionAnswerEntry) TableName() string {
	return "submission_answer_entries"
}

// ActiveEntries returns the entries currently in use, excluding the recycle
// pool, in position order as stored.
func (a *SubmissionAnswer) ActiveEntries() []*SubmissionAnswerEntry {
	var rv []*SubmissionAnswerEntry
	for i := range a.Entries {
		if !a.Entries[i].Detached {
			rv = append(rv, &a.Entries[i])
		}
	}
	return rv
}

// DetachedEntries returns the recycle pool.
func (a *SubmissionAnswer) DetachedEntries() []*SubmissionAnswerEntry {
	var rv []*SubmissionAnswerEntry
	for i := range a.Entries {
		if a.Entries[i].Detached {
			rv = append(rv, &a.Entries[i])
		}
	}
	return rv
}

// TotalScore is the evaluator score plus the cached auto scores of the
// active entries.
func (a *SubmissionAnswer) TotalScore() float64 {
	var total float64
	if a.EvalScore != nil {
		total += *a.EvalScore
	}
	for _, e := range a.ActiveEntries() {
		if e.AutoScore != nil {
			total += *e.AutoScore
		}
		if e.EvalScore != nil {
			total += *e.EvalScore
		}
	}
	return total
}

// SelectedAnswerIDs collects the authored answer ids the active entries
// point at, skipping empty selections.
func (a *SubmissionAnswer) SelectedAnswerIDs() []uint {
	var rv []uint
	for _, e := range a.ActiveEntries() {
		if e.SelectedAnswerID != nil {
			rv = append(rv, *e.SelectedAnswerID)
		}
	}
	return rv
}
