// Package scoring holds the pure per-question-type grading strategies and
// the answer entry alignment rules. Nothing here touches the store or
// blocks; the service layer feeds it questions and recorded answers.
package scoring

import (
	"math"
	"strings"

	"github.com/examhub/submission-service/internal/models"
)

// Result is the outcome of auto-scoring one answer.
type Result struct {
	// AutoScore is the total automatic score, rounded to 2 decimal places
	// and never negative.
	AutoScore float64

	// Correct reports per-entry correctness, index-aligned with the
	// answer's active entries. Nil for types that are never auto-scored.
	Correct []bool
}

// Score grades one recorded answer against its question. The switch over
// question types is exhaustive: adding a kind without a strategy is a
// compile-visible hole here, not a scattered conditional.
//
// Malformed input (unparsable numbers, empty text) never errors; the entry
// is simply not correct. The only error condition is an answer whose entry
// shape no longer matches the question, surfaced as *MisalignedEntriesError.
func Score(q *models.Question, answer *models.SubmissionAnswer) (Result, error) {
	if err := Verify(q, answer); err != nil {
		return Result{}, err
	}

	entries := answer.ActiveEntries()

	switch q.Type {
	case models.QuestionFillIn:
		return scoreFillIn(q, entries), nil
	case models.QuestionNumeric:
		return scoreNumeric(q, entries), nil
	case models.QuestionTrueFalse, models.QuestionMultipleChoice:
		return scoreSingleChoice(q, entries), nil
	case models.QuestionMultipleCorrect:
		return scoreMultipleCorrect(q, entries), nil
	case models.QuestionMatching:
		return scoreMatching(q, entries), nil
	case models.QuestionEssay, models.QuestionFileUpload, models.QuestionSurvey:
		// evaluator-scored only
		return Result{}, nil
	}

	// unreachable for the closed type set
	return Result{}, nil
}

// Apply scores the answer and writes the per-entry auto scores back onto
// the active entries, the way stored submissions carry their cached scores.
func Apply(q *models.Question, answer *models.SubmissionAnswer) (Result, error) {
	res, err := Score(q, answer)
	if err != nil {
		return Result{}, err
	}

	entries := answer.ActiveEntries()
	if res.Correct == nil {
		for _, e := range entries {
			e.AutoScore = nil
		}
		return res, nil
	}

	scores := entryScores(q, res, len(entries))
	for i, e := range entries {
		v := scores[i]
		e.AutoScore = &v
	}
	return res, nil
}

// entryScores distributes the answer's auto score across its entries so
// the cached per-entry values sum back to it. Exact-set multiple-correct
// is all-or-nothing; the per-blank types carry their share per correct
// entry.
func entryScores(q *models.Question, res Result, n int) []float64 {
	scores := make([]float64, n)

	switch q.Type {
	case models.QuestionTrueFalse, models.QuestionMultipleChoice:
		if n > 0 && res.Correct[0] {
			scores[0] = res.AutoScore
		}
	case models.QuestionMultipleCorrect:
		if res.AutoScore > 0 && n > 0 {
			share := q.Points / float64(n)
			for i := range scores {
				scores[i] = share
			}
		}
	default:
		share := perEntryShare(q, n)
		for i := range scores {
			if i < len(res.Correct) && res.Correct[i] {
				scores[i] = share
			}
		}
	}
	return scores
}

// scoreFillIn grades textual blanks. Each blank contributes points/N; the
// authored pattern supports alternation (a|b|c) and the * wildcard. With
// any-order set, a value is correct when it matches some not-yet-consumed
// authored pattern anywhere in the question.
func scoreFillIn(q *models.Question, entries []*models.SubmissionAnswerEntry) Result {
	part := q.SinglePart()
	n := len(part.Answers)
	correct := make([]bool, len(entries))

	if q.AnyOrder {
		consumed := make([]bool, n)
		for i, e := range entries {
			if e.Text == nil {
				continue
			}
			for j := range part.Answers {
				if consumed[j] {
					continue
				}
				if matchFillInPattern(*e.Text, part.Answers[j].Text, q.CaseSensitive) {
					consumed[j] = true
					correct[i] = true
					break
				}
			}
		}
	} else {
		for i, e := range entries {
			if e.Text == nil {
				continue
			}
			correct[i] = matchFillInPattern(*e.Text, part.Answers[i].Text, q.CaseSensitive)
		}
	}

	if q.MutuallyExclusive {
		zeroDuplicates(q, entries, correct)
	}

	return Result{AutoScore: partialScore(q.Points, n, correct), Correct: correct}
}

// scoreNumeric grades numeric blanks: inclusive range test against a single
// value or a low|high pattern, comma accepted as the decimal separator.
func scoreNumeric(q *models.Question, entries []*models.SubmissionAnswerEntry) Result {
	part := q.SinglePart()
	n := len(part.Answers)
	correct := make([]bool, len(entries))

	for i, e := range entries {
		if e.Text == nil {
			continue
		}
		correct[i] = matchNumericPattern(*e.Text, part.Answers[i].Text)
	}

	return Result{AutoScore: partialScore(q.Points, n, correct), Correct: correct}
}

// scoreSingleChoice grades true/false and multiple-choice: full points when
// the single selected choice is the authored correct one.
func scoreSingleChoice(q *models.Question, entries []*models.SubmissionAnswerEntry) Result {
	correct := make([]bool, len(entries))

	entry := entries[0]
	if entry.SelectedAnswerID != nil {
		if chosen := answerByID(q, *entry.SelectedAnswerID); chosen != nil && chosen.IsCorrect {
			correct[0] = true
		}
	}

	score := 0.0
	if correct[0] {
		score = roundScore(q.Points)
	}
	return Result{AutoScore: score, Correct: correct}
}

// scoreMultipleCorrect grades by exact set equality: full points only when
// the selected set of choice ids equals the authored correct set. No
// partial credit; per-entry correctness still reports which individual
// selections were keyed.
func scoreMultipleCorrect(q *models.Question, entries []*models.SubmissionAnswerEntry) Result {
	correctSet := make(map[uint]bool)
	for _, a := range q.CorrectAnswers() {
		correctSet[a.ID] = true
	}

	selected := make(map[uint]bool)
	correct := make([]bool, len(entries))
	for i, e := range entries {
		if e.SelectedAnswerID == nil {
			continue
		}
		selected[*e.SelectedAnswerID] = true
		correct[i] = correctSet[*e.SelectedAnswerID]
	}

	exact := len(selected) == len(correctSet)
	if exact {
		for id := range correctSet {
			if !selected[id] {
				exact = false
				break
			}
		}
	}

	score := 0.0
	if exact && len(correctSet) > 0 {
		score = roundScore(q.Points)
	}
	return Result{AutoScore: score, Correct: correct}
}

// scoreMatching grades pair-slots: one entry per part, correct when the
// selected choice id equals the part's authored correct choice. Distractor
// choices belong to no part and are never correct.
func scoreMatching(q *models.Question, entries []*models.SubmissionAnswerEntry) Result {
	correct := make([]bool, len(entries))

	for i, e := range entries {
		part := partByID(q, e.PartID)
		if part == nil || e.SelectedAnswerID == nil {
			continue
		}
		keyed := part.MatchCorrectChoice()
		if keyed != nil && keyed.ID == *e.SelectedAnswerID {
			correct[i] = true
		}
	}

	return Result{AutoScore: partialScore(q.Points, len(q.Parts), correct), Correct: correct}
}

// zeroDuplicates enforces mutually-exclusive blanks: a value that also
// matches a later blank with the identical authored pattern only counts
// once, at the later position.
func zeroDuplicates(q *models.Question, entries []*models.SubmissionAnswerEntry, correct []bool) {
	part := q.SinglePart()
	for i := 0; i < len(entries)-1; i++ {
		if !correct[i] || entries[i].Text == nil {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Text == nil {
				continue
			}
			if !sameText(*entries[i].Text, *entries[j].Text, q.CaseSensitive) {
				continue
			}
			if part.Answers[i].Text == part.Answers[j].Text {
				correct[i] = false
				break
			}
		}
	}
}

func sameText(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// partialScore sums points/n shares over the correct entries, rounds to 2
// decimal places (half-up at the 0.01 granularity) and floors at 0.
func partialScore(points float64, n int, correct []bool) float64 {
	if n <= 0 {
		return 0
	}
	share := points / float64(n)
	var total float64
	for _, c := range correct {
		if c {
			total += share
		}
	}
	return roundScore(total)
}

func perEntryShare(q *models.Question, entryCount int) float64 {
	switch q.Type {
	case models.QuestionFillIn, models.QuestionNumeric:
		if part := q.SinglePart(); part != nil && len(part.Answers) > 0 {
			return q.Points / float64(len(part.Answers))
		}
	case models.QuestionMatching:
		if len(q.Parts) > 0 {
			return q.Points / float64(len(q.Parts))
		}
	default:
		if entryCount > 0 {
			return q.Points / float64(entryCount)
		}
	}
	return 0
}

// roundScore rounds half-up to 2 decimal places and floors at 0.
func roundScore(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Floor(v*100+0.5) / 100
}

func answerByID(q *models.Question, id uint) *models.AuthoredAnswer {
	for pi := range q.Parts {
		for ai := range q.Parts[pi].Answers {
			if q.Parts[pi].Answers[ai].ID == id {
				return &q.Parts[pi].Answers[ai]
			}
		}
	}
	return nil
}

func partByID(q *models.Question, id uint) *models.QuestionPart {
	for i := range q.Parts {
		if q.Parts[i].ID == id {
			return &q.Parts[i]
		}
	}
	return nil
}
