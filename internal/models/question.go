package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionType is the closed set of question kinds this service scores.
// Scoring and alignment switch exhaustively over these values.
type QuestionType string

const (
	QuestionFillIn          QuestionType = "fill_in"
	QuestionNumeric         QuestionType = "numeric"
	QuestionTrueFalse       QuestionType = "true_false"
	QuestionMultipleChoice  QuestionType = "multiple_choice"
	QuestionMultipleCorrect QuestionType = "multiple_correct"
	QuestionMatching        QuestionType = "matching"
	QuestionEssay           QuestionType = "essay"
	QuestionFileUpload      QuestionType = "file_upload"
	QuestionSurvey          QuestionType = "survey"
)

// AllQuestionTypes lists every member of the closed set, for validation.
var AllQuestionTypes = []QuestionType{
	QuestionFillIn,
	QuestionNumeric,
	QuestionTrueFalse,
	QuestionMultipleChoice,
	QuestionMultipleCorrect,
	QuestionMatching,
	QuestionEssay,
	QuestionFileUpload,
	QuestionSurvey,
}

// AutoScores reports whether this type is ever auto-scored. Essay, file
// upload and survey answers only carry evaluator scores.
func (t QuestionType) AutoScores() bool {
	switch t {
	case QuestionEssay, QuestionFileUpload, QuestionSurvey:
		return false
	}
	return true
}

// VariableEntries reports whether the number of answer entries is
// test-taker controlled rather than derived from the authored structure.
func (t QuestionType) VariableEntries() bool {
	return t == QuestionMultipleCorrect || t == QuestionFileUpload
}

// Question is the authored structure this service consumes read-only.
// Authoring and editing live in a separate service; rows here are a
// replicated projection sufficient for delivery, alignment and scoring.
type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	AssessmentID uint         `json:"assessment_id" gorm:"not null;index"`
	Type         QuestionType `json:"type" gorm:"not null;size:32" validate:"required,question_type"`
	Position     int          `json:"position" gorm:"not null"`
	Points       float64      `json:"points" gorm:"not null;default:0"`

	// Fill-in behavior flags
	CaseSensitive     bool `json:"case_sensitive" gorm:"default:false"`
	AnyOrder          bool `json:"any_order" gorm:"default:false"`
	MutuallyExclusive bool `json:"mutually_exclusive" gorm:"default:false"`

	// Delivery flags
	ShuffleChoices bool `json:"shuffle_choices" gorm:"default:false"`

	// Rich presentation payload (prompt text, attachment refs). Opaque here.
	Presentation datatypes.JSON `json:"presentation" gorm:"type:jsonb"`

	Parts []QuestionPart `json:"parts" gorm:"foreignKey:QuestionID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuestionPart is one slot of a question. Single-part for most types; for
// matching each part is one pair-slot whose correct choice lives among its
// answers.
type QuestionPart struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null"`
	Prompt     string `json:"prompt" gorm:"type:text"`

	Answers []AuthoredAnswer `json:"answers" gorm:"foreignKey:PartID"`
}

// AuthoredAnswer is one authored choice, pattern or label within a part.
// For fill-in/numeric the Text field holds the correct pattern; for choice
// types IsCorrect marks the keyed answer(s). A matching distractor is a
// choice that belongs to no pair and is never correct.
type AuthoredAnswer struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	PartID   uint   `json:"part_id" gorm:"not null;index"`
	Position int    `json:"position" gorm:"not null"`
	Text     string `json:"text" gorm:"type:text"`

	IsCorrect    bool `json:"is_correct" gorm:"default:false"`
	IsDistractor bool `json:"is_distractor" gorm:"default:false"`
}

func (Question) TableName() string {
	return "questions"
}

func (QuestionPart) TableName() string {
	return "question_parts"
}

func (AuthoredAnswer) TableName() string {
	return "authored_answers"
}

// SinglePart returns the question's only part, or nil when the question has
// no parts (a data error for every type but matching with zero pairs).
func (q *Question) SinglePart() *QuestionPart {
	if len(q.Parts) == 0 {
		return nil
	}
	return &q.Parts[0]
}

// CorrectAnswers collects the authored answers marked correct in the
// question's single part.
func (q *Question) CorrectAnswers() []*AuthoredAnswer {
	part := q.SinglePart()
	if part == nil {
		return nil
	}
	var rv []*AuthoredAnswer
	for i := range part.Answers {
		if part.Answers[i].IsCorrect {
			rv = append(rv, &part.Answers[i])
		}
	}
	return rv
}

// MatchCorrectChoice returns the correct choice for one matching pair-slot,
// or nil when the part carries none (authoring error).
func (p *QuestionPart) MatchCorrectChoice() *AuthoredAnswer {
	for i := range p.Answers {
		if p.Answers[i].IsCorrect {
			return &p.Answers[i]
		}
	}
	return nil
}
