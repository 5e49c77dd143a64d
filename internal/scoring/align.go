package scoring

import (
	"fmt"

	"github.com/examhub/submission-service/internal/models"
)

// EntryShape describes the expected number and identity of answer entries
// for a question, derived from its authored structure.
type EntryShape struct {
	// Fixed means the count is structural; variable-shape types let the
	// test-taker grow and shrink the set (minimum one).
	Fixed bool

	// Count is the expected entry count for fixed shapes, the minimum for
	// variable shapes.
	Count int

	// PartIDs binds entries to parts by position. For single-part types it
	// repeats the one part id; for matching it lists one part per pair-slot.
	PartIDs []uint

	// AnswerIDs binds entries 1:1 to authored answers by position, for
	// fill-in and numeric blanks. Nil otherwise.
	AnswerIDs []uint
}

// MisalignedEntriesError signals an integrity violation between a
// question's current structure and a submission's recorded answer shape,
// typically an authored question changing shape mid-attempt. Fixed-shape
// mismatches are never silently corrected.
type MisalignedEntriesError struct {
	QuestionID uint
	Reason     string
}

func (e *MisalignedEntriesError) Error() string {
	return fmt.Sprintf("misaligned answer entries for question %d: %s", e.QuestionID, e.Reason)
}

func misaligned(q *models.Question, format string, args ...any) error {
	return &MisalignedEntriesError{QuestionID: q.ID, Reason: fmt.Sprintf(format, args...)}
}

// Align derives the expected entry shape for a question.
func Align(q *models.Question) EntryShape {
	switch q.Type {
	case models.QuestionFillIn, models.QuestionNumeric:
		// one entry per authored blank, bound by position
		part := q.SinglePart()
		shape := EntryShape{Fixed: true}
		if part == nil {
			return shape
		}
		shape.Count = len(part.Answers)
		for range part.Answers {
			shape.PartIDs = append(shape.PartIDs, part.ID)
		}
		for i := range part.Answers {
			shape.AnswerIDs = append(shape.AnswerIDs, part.Answers[i].ID)
		}
		return shape

	case models.QuestionMatching:
		// one entry per pair-slot
		shape := EntryShape{Fixed: true, Count: len(q.Parts)}
		for i := range q.Parts {
			shape.PartIDs = append(shape.PartIDs, q.Parts[i].ID)
		}
		return shape

	case models.QuestionMultipleCorrect, models.QuestionFileUpload:
		shape := EntryShape{Fixed: false, Count: 1}
		if part := q.SinglePart(); part != nil {
			shape.PartIDs = []uint{part.ID}
		}
		return shape

	default:
		// true/false, multiple-choice, essay, survey: one entry, one part
		shape := EntryShape{Fixed: true, Count: 1}
		if part := q.SinglePart(); part != nil {
			shape.PartIDs = []uint{part.ID}
		}
		return shape
	}
}

// Verify is the hard integrity check: any mismatch between the answer's
// active entries and the question's current shape is a
// *MisalignedEntriesError, never a repair.
func Verify(q *models.Question, answer *models.SubmissionAnswer) error {
	shape := Align(q)
	entries := answer.ActiveEntries()

	if !shape.Fixed {
		if len(entries) < shape.Count {
			return misaligned(q, "want at least %d entries, have %d", shape.Count, len(entries))
		}
		return nil
	}

	if len(entries) != shape.Count {
		return misaligned(q, "want %d entries, have %d", shape.Count, len(entries))
	}
	for i, e := range entries {
		if i < len(shape.PartIDs) && e.PartID != shape.PartIDs[i] {
			return misaligned(q, "entry %d bound to part %d, want %d", i, e.PartID, shape.PartIDs[i])
		}
	}
	return nil
}

// NewAnswer lazily creates an answer for a question with entries matching
// its aligned shape. Variable-shape types start with the minimum one entry.
func NewAnswer(q *models.Question, submissionID uint) *models.SubmissionAnswer {
	shape := Align(q)
	answer := &models.SubmissionAnswer{
		SubmissionID: submissionID,
		QuestionID:   q.ID,
	}

	count := shape.Count
	if count < 1 && !shape.Fixed {
		count = 1
	}
	for i := 0; i < count; i++ {
		entry := models.SubmissionAnswerEntry{Position: i}
		if i < len(shape.PartIDs) {
			entry.PartID = shape.PartIDs[i]
		} else if len(shape.PartIDs) > 0 {
			entry.PartID = shape.PartIDs[0]
		}
		answer.Entries = append(answer.Entries, entry)
	}
	return answer
}

// SetTexts records free-text values position-for-position onto the active
// entries of a fixed-shape answer.
func SetTexts(q *models.Question, answer *models.SubmissionAnswer, texts []string) error {
	if err := Verify(q, answer); err != nil {
		return err
	}
	entries := answer.ActiveEntries()
	for i, e := range entries {
		if i < len(texts) {
			t := texts[i]
			e.Text = &t
		} else {
			e.Text = nil
		}
		e.AutoScore = nil
	}
	return nil
}

// SetSelections resizes a variable-shape answer to the given authored
// answer ids. Entries dropped from the selection move to the recycle pool;
// re-added selections reuse pooled entries before allocating new ones, so
// evaluator annotations on a re-added entry survive.
func SetSelections(q *models.Question, answer *models.SubmissionAnswer, answerIDs []uint) error {
	if !q.Type.VariableEntries() {
		return misaligned(q, "selection resize on fixed-shape type %s", q.Type)
	}

	keep := make(map[uint]bool, len(answerIDs))
	for _, id := range answerIDs {
		keep[id] = true
	}

	// detach entries no longer selected
	for i := range answer.Entries {
		e := &answer.Entries[i]
		if e.Detached || e.SelectedAnswerID == nil {
			continue
		}
		if !keep[*e.SelectedAnswerID] {
			e.Detached = true
			e.AutoScore = nil
		}
	}

	shape := Align(q)
	var partID uint
	if len(shape.PartIDs) > 0 {
		partID = shape.PartIDs[0]
	}

	for _, id := range answerIDs {
		if findSelection(answer, id) != nil {
			continue
		}

		// prefer a pooled entry that held this same selection, then a blank
		// active slot, then any pooled entry, then allocate
		entry := findDetached(answer, &id)
		if entry == nil {
			entry = findActiveBlank(answer)
		}
		if entry == nil {
			entry = findDetached(answer, nil)
		}
		if entry == nil {
			answer.Entries = append(answer.Entries, models.SubmissionAnswerEntry{PartID: partID})
			entry = &answer.Entries[len(answer.Entries)-1]
		}

		sel := id
		entry.Detached = false
		entry.SelectedAnswerID = &sel
		entry.AutoScore = nil
	}

	// leftover blank slots leave the active set once real selections exist
	if len(answerIDs) > 0 {
		for i := range answer.Entries {
			e := &answer.Entries[i]
			if !e.Detached && e.SelectedAnswerID == nil {
				e.Detached = true
			}
		}
	}

	// the active set never goes empty; keep one blank entry
	if len(answer.ActiveEntries()) == 0 {
		if entry := findDetached(answer, nil); entry != nil {
			entry.Detached = false
			entry.SelectedAnswerID = nil
		} else {
			answer.Entries = append(answer.Entries, models.SubmissionAnswerEntry{PartID: partID})
		}
	}

	renumber(answer)
	return nil
}

// SetUploads resizes a file-upload answer to the given upload references,
// one entry per file. Removed references move to the recycle pool the same
// way dropped selections do.
func SetUploads(q *models.Question, answer *models.SubmissionAnswer, refs []string) error {
	if q.Type != models.QuestionFileUpload {
		return misaligned(q, "upload set on type %s", q.Type)
	}

	keep := make(map[string]bool, len(refs))
	for _, r := range refs {
		keep[r] = true
	}

	for i := range answer.Entries {
		e := &answer.Entries[i]
		if e.Detached || e.Text == nil {
			continue
		}
		if !keep[*e.Text] {
			e.Detached = true
		}
	}

	shape := Align(q)
	var partID uint
	if len(shape.PartIDs) > 0 {
		partID = shape.PartIDs[0]
	}

	for _, ref := range refs {
		if findText(answer, ref) != nil {
			continue
		}

		entry := findDetachedText(answer, ref)
		if entry == nil {
			entry = findActiveBlank(answer)
		}
		if entry == nil {
			entry = findDetached(answer, nil)
		}
		if entry == nil {
			answer.Entries = append(answer.Entries, models.SubmissionAnswerEntry{PartID: partID})
			entry = &answer.Entries[len(answer.Entries)-1]
		}

		r := ref
		entry.Detached = false
		entry.Text = &r
	}

	if len(refs) > 0 {
		for i := range answer.Entries {
			e := &answer.Entries[i]
			if !e.Detached && e.Text == nil {
				e.Detached = true
			}
		}
	}

	if len(answer.ActiveEntries()) == 0 {
		if entry := findDetached(answer, nil); entry != nil {
			entry.Detached = false
			entry.Text = nil
		} else {
			answer.Entries = append(answer.Entries, models.SubmissionAnswerEntry{PartID: partID})
		}
	}

	renumber(answer)
	return nil
}

// SetMatch records the selected choice for one matching pair-slot.
func SetMatch(q *models.Question, answer *models.SubmissionAnswer, partID uint, choiceID *uint) error {
	if q.Type != models.QuestionMatching {
		return misaligned(q, "match selection on type %s", q.Type)
	}
	if err := Verify(q, answer); err != nil {
		return err
	}
	for _, e := range answer.ActiveEntries() {
		if e.PartID == partID {
			e.SelectedAnswerID = choiceID
			e.AutoScore = nil
			return nil
		}
	}
	return misaligned(q, "no entry bound to part %d", partID)
}

// SetChoice records the single selection of a true/false or multiple-choice
// answer.
func SetChoice(q *models.Question, answer *models.SubmissionAnswer, choiceID *uint) error {
	if err := Verify(q, answer); err != nil {
		return err
	}
	entries := answer.ActiveEntries()
	entries[0].SelectedAnswerID = choiceID
	entries[0].AutoScore = nil
	return nil
}

func findSelection(answer *models.SubmissionAnswer, id uint) *models.SubmissionAnswerEntry {
	for i := range answer.Entries {
		e := &answer.Entries[i]
		if !e.Detached && e.SelectedAnswerID != nil && *e.SelectedAnswerID == id {
			return e
		}
	}
	return nil
}

// findDetached returns a pooled entry, preferring one whose prior selection
// matches want when given.
func findDetached(answer *models.SubmissionAnswer, want *uint) *models.SubmissionAnswerEntry {
	for i := range answer.Entries {
		e := &answer.Entries[i]
		if !e.Detached {
			continue
		}
		if want == nil {
			return e
		}
		if e.SelectedAnswerID != nil && *e.SelectedAnswerID == *want {
			return e
		}
	}
	return nil
}

// findActiveBlank returns an active entry carrying no value yet.
func findActiveBlank(answer *models.SubmissionAnswer) *models.SubmissionAnswerEntry {
	for i := range answer.Entries {
		e := &answer.Entries[i]
		if !e.Detached && e.SelectedAnswerID == nil && e.Text == nil {
			return e
		}
	}
	return nil
}

func findText(answer *models.SubmissionAnswer, text string) *models.SubmissionAnswerEntry {
	for i := range answer.Entries {
		e := &answer.Entries[i]
		if !e.Detached && e.Text != nil && *e.Text == text {
			return e
		}
	}
	return nil
}

// findDetachedText returns the pooled entry that held the same reference.
func findDetachedText(answer *models.SubmissionAnswer, text string) *models.SubmissionAnswerEntry {
	for i := range answer.Entries {
		e := &answer.Entries[i]
		if e.Detached && e.Text != nil && *e.Text == text {
			return e
		}
	}
	return nil
}

func renumber(answer *models.SubmissionAnswer) {
	pos := 0
	for i := range answer.Entries {
		if answer.Entries[i].Detached {
			continue
		}
		answer.Entries[i].Position = pos
		pos++
	}
}
