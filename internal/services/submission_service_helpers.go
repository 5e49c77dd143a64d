package services

import (
	"context"
	"time"

	"github.com/examhub/submission-service/internal/cache"
	"github.com/examhub/submission-service/internal/events"
	"github.com/examhub/submission-service/internal/models"
	"github.com/examhub/submission-service/internal/repositories"
	"github.com/examhub/submission-service/internal/scoring"
)

const submissionCacheTTL = 5 * time.Minute

// loadWithAnswers is the read path: cache first, then the store with the
// full assessment and answer graph preloaded.
func (s *submissionService) loadWithAnswers(ctx context.Context, id uint) (*models.Submission, error) {
	var cached models.Submission
	if err := s.cache.Get(ctx, cache.SubmissionKey(id), &cached); err == nil {
		return &cached, nil
	}

	submission, err := s.repo.Submission().GetByIDWithAnswers(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, storeErr("load submission", err)
	}

	if err := s.cache.Set(ctx, cache.SubmissionKey(id), submission, submissionCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "submission_id", id, "error", err)
	}
	return submission, nil
}

// loadAssessment reads a published assessment with its question graph,
// cache first. This service never mutates assessments, so the entry only
// ages out by TTL.
func (s *submissionService) loadAssessment(ctx context.Context, id uint) (*models.Assessment, error) {
	var cached models.Assessment
	if err := s.cache.Get(ctx, cache.AssessmentKey(id), &cached); err == nil {
		return &cached, nil
	}

	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, storeErr("load assessment", err)
	}

	if err := s.cache.Set(ctx, cache.AssessmentKey(id), assessment, submissionCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "assessment_id", id, "error", err)
	}
	return assessment, nil
}

func (s *submissionService) invalidate(ctx context.Context, id uint) {
	if err := s.cache.Delete(ctx, cache.SubmissionKey(id)); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "submission_id", id, "error", err)
	}
}

// applyInput routes one question's input to the entry setter its type needs,
// then rescores the touched answer. Shape mismatches surface as
// *MisalignedEntriesError and are never repaired here.
func (s *submissionService) applyInput(submission *models.Submission, input *AnswerInput, now time.Time) (*models.SubmissionAnswer, error) {
	question := submission.Assessment.QuestionByID(input.QuestionID)
	if question == nil {
		return nil, ErrQuestionNotFound
	}

	answer := submission.AnswerFor(input.QuestionID)
	if answer == nil {
		submission.Answers = append(submission.Answers, *scoring.NewAnswer(question, submission.ID))
		answer = &submission.Answers[len(submission.Answers)-1]
	}

	var err error
	switch question.Type {
	case models.QuestionFillIn, models.QuestionNumeric,
		models.QuestionEssay, models.QuestionSurvey:
		err = scoring.SetTexts(question, answer, input.Texts)

	case models.QuestionTrueFalse, models.QuestionMultipleChoice:
		err = scoring.SetChoice(question, answer, input.ChoiceID)

	case models.QuestionMultipleCorrect:
		err = scoring.SetSelections(question, answer, input.SelectedIDs)

	case models.QuestionFileUpload:
		err = scoring.SetUploads(question, answer, input.Texts)

	case models.QuestionMatching:
		for _, m := range input.Matches {
			if err = scoring.SetMatch(question, answer, m.PartID, m.ChoiceID); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	answer.MarkedForReview = input.MarkedForReview
	answer.Rationale = input.Rationale
	answer.SubmittedAt = &now

	if _, err := scoring.Apply(question, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// finish closes a submission at the given moment, rescoring every answer so
// stored scores reflect the question structure at completion time.
func (s *submissionService) finish(ctx context.Context, submission *models.Submission, at time.Time, auto bool) error {
	for i := range submission.Answers {
		answer := &submission.Answers[i]
		question := submission.Assessment.QuestionByID(answer.QuestionID)
		if question == nil {
			continue
		}
		if _, err := scoring.Apply(question, answer); err != nil {
			return err
		}
	}

	submission.SubmittedAt = &at
	submission.IsComplete = true
	if submission.Assessment.AutoRelease {
		submission.IsReleased = true
	}

	err := s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		if err := tx.Submission().Update(ctx, submission); err != nil {
			return err
		}
		for i := range submission.Answers {
			if err := tx.Submission().SaveAnswer(ctx, &submission.Answers[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("complete submission", err)
	}

	s.invalidate(ctx, submission.ID)

	eventType := events.EventSubmissionCompleted
	if auto {
		eventType = events.EventSubmissionAutoCompleted
	}
	s.publish(ctx, submission, eventType, auto)

	s.logger.InfoContext(ctx, "submission completed",
		"submission_id", submission.ID,
		"user_id", submission.UserID,
		"auto", auto,
		"score", submission.TotalScore())
	return nil
}

// publish reports a grade lifecycle moment. Test drives never leave the
// service; publish failures are logged, not surfaced, the grade is already
// durable.
func (s *submissionService) publish(ctx context.Context, submission *models.Submission, eventType events.EventType, auto bool) {
	if submission.TestDrive {
		return
	}
	if eventType == events.EventSubmissionCompleted || eventType == events.EventSubmissionAutoCompleted {
		if !submission.Assessment.ReportToGradebook {
			return
		}
	}

	payload := &events.SubmissionGradePayload{
		SubmissionID: submission.ID,
		AssessmentID: submission.AssessmentID,
		UserID:       submission.UserID,
		TotalScore:   submission.TotalScore(),
		TotalPoints:  submission.Assessment.TotalPoints(),
		SubmittedAt:  submission.SubmittedAt,
		Released:     submission.IsReleased,
		AutoComplete: auto,
	}

	event := events.NewGradeEvent(eventType, payload)
	if err := s.publisher.PublishGradeEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "grade event publish failed",
			"submission_id", submission.ID, "event_type", eventType, "error", err)
	}
}
