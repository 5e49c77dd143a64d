package services

import (
	"context"
	"sort"

	"gorm.io/datatypes"

	"github.com/examhub/submission-service/internal/models"
	"github.com/examhub/submission-service/internal/shuffle"
)

// ChoiceView is one delivered choice with its positional label, assigned
// after shuffling.
type ChoiceView struct {
	AnswerID uint   `json:"answer_id"`
	Label    string `json:"label"`
	Text     string `json:"text"`
}

// MatchView is one delivered matching prompt.
type MatchView struct {
	PartID uint   `json:"part_id"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// QuestionLayout is the per-question delivery order for one submission. The
// same submission always gets the same order across page loads.
type QuestionLayout struct {
	QuestionID   uint                `json:"question_id"`
	Type         models.QuestionType `json:"type"`
	Points       float64             `json:"points"`
	Presentation datatypes.JSON      `json:"presentation,omitempty"`
	Choices      []ChoiceView        `json:"choices,omitempty"`
	Matches      []MatchView         `json:"matches,omitempty"`

	// Selected carries the attempt's current choice selections so a page
	// reload restores them.
	Selected []uint `json:"selected,omitempty"`
}

// Layout renders the stable delivery order of every question of a
// submission. Only the submission's own user receives it.
func (s *submissionService) layout(submission *models.Submission) []QuestionLayout {
	questions := append([]models.Question(nil), submission.Assessment.Questions...)
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].Position < questions[j].Position
	})

	answers := make(map[uint]*models.SubmissionAnswer, len(submission.Answers))
	for i := range submission.Answers {
		answers[submission.Answers[i].QuestionID] = &submission.Answers[i]
	}

	rv := make([]QuestionLayout, 0, len(questions))
	for i := range questions {
		l := questionLayout(&questions[i], submission.ID)
		if a := answers[questions[i].ID]; a != nil {
			l.Selected = a.SelectedAnswerIDs()
		}
		rv = append(rv, l)
	}
	return rv
}

// Layout is the delivery surface: the ordered questions with their shuffled
// choices for one in-progress or completed attempt.
func (s *submissionService) Layout(ctx context.Context, submissionID uint, userID string) ([]QuestionLayout, error) {
	submission, err := s.loadWithAnswers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.UserID != userID {
		if err := s.security.CanGrade(ctx, userID, &submission.Assessment); err != nil {
			return nil, err
		}
	}
	return s.layout(submission), nil
}

func questionLayout(q *models.Question, submissionID uint) QuestionLayout {
	layout := QuestionLayout{
		QuestionID:   q.ID,
		Type:         q.Type,
		Points:       q.Points,
		Presentation: q.Presentation,
	}

	switch q.Type {
	case models.QuestionMatching:
		layout.Matches, layout.Choices = matchingLayout(q, submissionID)

	case models.QuestionTrueFalse:
		// true/false never shuffles
		layout.Choices = choiceViews(q, identityPerm(choiceCount(q)))

	case models.QuestionMultipleChoice, models.QuestionMultipleCorrect:
		n := choiceCount(q)
		perm := identityPerm(n)
		if q.ShuffleChoices {
			perm = shuffle.ChoiceOrder(q.ID, submissionID, n)
		}
		layout.Choices = choiceViews(q, perm)
	}

	return layout
}

// matchingLayout shuffles both sides of a matching question: the prompts and
// the pooled choices, distractors mixed in. Matches draw first.
func matchingLayout(q *models.Question, submissionID uint) ([]MatchView, []ChoiceView) {
	parts := append([]models.QuestionPart(nil), q.Parts...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].Position < parts[j].Position })

	var pool []*models.AuthoredAnswer
	for i := range parts {
		for j := range parts[i].Answers {
			a := &parts[i].Answers[j]
			if a.IsCorrect || a.IsDistractor {
				pool = append(pool, a)
			}
		}
	}

	matchPerm, choicePerm := shuffle.MatchingOrder(q.ID, submissionID, len(parts), len(pool))

	matches := make([]MatchView, len(parts))
	for pos, src := range matchPerm {
		matches[pos] = MatchView{
			PartID: parts[src].ID,
			Label:  shuffle.MatchLabel(pos),
			Prompt: parts[src].Prompt,
		}
	}

	choices := make([]ChoiceView, len(pool))
	for pos, src := range choicePerm {
		choices[pos] = ChoiceView{
			AnswerID: pool[src].ID,
			Label:    shuffle.ChoiceLabel(pos),
			Text:     pool[src].Text,
		}
	}
	return matches, choices
}

func choiceViews(q *models.Question, perm []int) []ChoiceView {
	part := q.SinglePart()
	if part == nil {
		return nil
	}
	answers := append([]models.AuthoredAnswer(nil), part.Answers...)
	sort.Slice(answers, func(i, j int) bool { return answers[i].Position < answers[j].Position })

	rv := make([]ChoiceView, len(answers))
	for pos, src := range perm {
		rv[pos] = ChoiceView{
			AnswerID: answers[src].ID,
			Label:    shuffle.ChoiceLabel(pos),
			Text:     answers[src].Text,
		}
	}
	return rv
}

func choiceCount(q *models.Question) int {
	if part := q.SinglePart(); part != nil {
		return len(part.Answers)
	}
	return 0
}

func identityPerm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}
