package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/examhub/submission-service/internal/cache"
	"github.com/examhub/submission-service/internal/events"
	"github.com/examhub/submission-service/internal/models"
	"github.com/examhub/submission-service/internal/utils"
)

func newTestService(repo *MockRepository, security SecurityService, now time.Time) (*submissionService, *events.MockEventPublisher) {
	publisher := events.NewMockEventPublisher(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	svc := NewSubmissionService(
		repo, security, missCache{}, publisher,
		testLogger(), utils.NewValidator(), testConfig(),
	).(*submissionService)
	svc.now = func() time.Time { return now }
	return svc, publisher
}

func publishedAssessment(id uint) *models.Assessment {
	return &models.Assessment{
		ID:        id,
		Title:     "Midterm",
		Context:   "course-101",
		Status:    models.StatusPublished,
		CreatedBy: "teacher-1",
	}
}

func TestSubmissionService_Begin(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("opens a new attempt", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		assessment := publishedAssessment(1)
		repo.assessments.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(assessment, nil)
		repo.submissions.On("GetInProgress", mock.Anything, uint(1), "student-1").Return(nil, gorm.ErrRecordNotFound)
		repo.submissions.On("Create", mock.Anything, mock.MatchedBy(func(s *models.Submission) bool {
			return s.UserID == "student-1" && s.StartedAt != nil && s.StartedAt.Equal(now) && !s.TestDrive
		})).Return(nil)

		submission, err := svc.Begin(ctx, 1, "student-1", false)
		require.NoError(t, err)
		assert.True(t, submission.IsInProgress())
		repo.submissions.AssertExpectations(t)
	})

	t.Run("cached assessment skips the store", func(t *testing.T) {
		repo := newMockRepository()
		publisher := events.NewMockEventPublisher(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		svc := NewSubmissionService(
			repo, allowAllSecurity{},
			stubCache{key: cache.AssessmentKey(1), value: publishedAssessment(1)},
			publisher, testLogger(), utils.NewValidator(), testConfig(),
		).(*submissionService)
		svc.now = func() time.Time { return now }

		repo.submissions.On("GetInProgress", mock.Anything, uint(1), "student-1").Return(nil, gorm.ErrRecordNotFound)
		repo.submissions.On("Create", mock.Anything, mock.Anything).Return(nil)

		submission, err := svc.Begin(ctx, 1, "student-1", false)
		require.NoError(t, err)
		assert.Equal(t, "Midterm", submission.Assessment.Title)
		repo.assessments.AssertNotCalled(t, "GetByIDWithQuestions", mock.Anything, mock.Anything)
	})

	t.Run("resumes the open attempt instead of creating a second", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		assessment := publishedAssessment(1)
		open := &models.Submission{ID: 9, AssessmentID: 1, UserID: "student-1", StartedAt: timePtr(now.Add(-time.Minute))}
		repo.assessments.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(assessment, nil)
		repo.submissions.On("GetInProgress", mock.Anything, uint(1), "student-1").Return(open, nil)

		submission, err := svc.Begin(ctx, 1, "student-1", false)
		require.NoError(t, err)
		assert.Equal(t, uint(9), submission.ID)
		repo.submissions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("closed window is rejected", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		assessment := publishedAssessment(1)
		assessment.AcceptUntilDate = timePtr(now.Add(-time.Hour))
		repo.assessments.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(assessment, nil)

		_, err := svc.Begin(ctx, 1, "student-1", false)
		assert.ErrorIs(t, err, ErrAssessmentClosed)
	})

	t.Run("tries limit is enforced", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		assessment := publishedAssessment(1)
		assessment.Tries = intPtr(2)
		repo.assessments.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(assessment, nil)
		repo.submissions.On("GetInProgress", mock.Anything, uint(1), "student-1").Return(nil, gorm.ErrRecordNotFound)
		repo.submissions.On("CountByUser", mock.Anything, uint(1), "student-1").Return(2, nil)

		_, err := svc.Begin(ctx, 1, "student-1", false)
		assert.ErrorIs(t, err, ErrAttemptsExhausted)
	})

	t.Run("test drive bypasses window and tries", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		assessment := publishedAssessment(1)
		assessment.AcceptUntilDate = timePtr(now.Add(-time.Hour))
		assessment.Tries = intPtr(1)
		repo.assessments.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(assessment, nil)
		repo.submissions.On("GetInProgress", mock.Anything, uint(1), "teacher-1").Return(nil, gorm.ErrRecordNotFound)
		repo.submissions.On("Create", mock.Anything, mock.MatchedBy(func(s *models.Submission) bool {
			return s.TestDrive
		})).Return(nil)

		submission, err := svc.Begin(ctx, 1, "teacher-1", true)
		require.NoError(t, err)
		assert.True(t, submission.TestDrive)
		repo.submissions.AssertNotCalled(t, "CountByUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("permission denial passes through", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, denyAllSecurity{}, now)

		repo.assessments.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(publishedAssessment(1), nil)

		_, err := svc.Begin(ctx, 1, "outsider", false)
		assert.True(t, IsPermissionDenied(err))
	})

	t.Run("unknown assessment", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		repo.assessments.On("GetByIDWithQuestions", mock.Anything, uint(404)).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.Begin(ctx, 404, "student-1", false)
		assert.ErrorIs(t, err, ErrAssessmentNotFound)
	})
}

// inProgressSubmission builds a started submission on a one-question
// true/false assessment worth 5 points; choice 1 is keyed.
func inProgressSubmission(now time.Time) *models.Submission {
	assessment := publishedAssessment(1)
	assessment.Questions = []models.Question{
		{
			ID: 21, AssessmentID: 1, Type: models.QuestionTrueFalse, Points: 5,
			Parts: []models.QuestionPart{{
				ID: 210, QuestionID: 21,
				Answers: []models.AuthoredAnswer{
					{ID: 211, PartID: 210, Position: 0, Text: "True", IsCorrect: true},
					{ID: 212, PartID: 210, Position: 1, Text: "False"},
				},
			}},
		},
	}
	return &models.Submission{
		ID:           9,
		AssessmentID: 1,
		UserID:       "student-1",
		StartedAt:    timePtr(now.Add(-10 * time.Minute)),
		Assessment:   *assessment,
	}
}

func TestSubmissionService_EnterAnswers(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("records and scores the answer", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)
		repo.submissions.On("SaveAnswer", mock.Anything, mock.MatchedBy(func(a *models.SubmissionAnswer) bool {
			entries := a.ActiveEntries()
			return a.QuestionID == 21 && len(entries) == 1 &&
				entries[0].AutoScore != nil && *entries[0].AutoScore == 5.0
		})).Return(nil)

		err := svc.EnterAnswers(ctx, 9, "student-1", []AnswerInput{
			{QuestionID: 21, ChoiceID: choicePtr(211)},
		})
		require.NoError(t, err)
		repo.submissions.AssertExpectations(t)
	})

	t.Run("only the owner may answer", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(inProgressSubmission(now), nil)

		err := svc.EnterAnswers(ctx, 9, "someone-else", []AnswerInput{{QuestionID: 21}})
		assert.True(t, IsPermissionDenied(err))
	})

	t.Run("complete submission rejects entry", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.IsComplete = true
		submission.SubmittedAt = timePtr(now.Add(-time.Minute))
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)

		err := svc.EnterAnswers(ctx, 9, "student-1", []AnswerInput{{QuestionID: 21}})
		assert.ErrorIs(t, err, ErrAlreadyComplete)
	})

	t.Run("expired attempt is closed and the entry rejected", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.Assessment.TimeLimit = int64Ptr((5 * time.Minute).Milliseconds())
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)
		repo.submissions.On("Update", mock.Anything, mock.Anything).Return(nil)
		repo.submissions.On("SaveAnswer", mock.Anything, mock.Anything).Return(nil)

		err := svc.EnterAnswers(ctx, 9, "student-1", []AnswerInput{
			{QuestionID: 21, ChoiceID: choicePtr(211)},
		})
		assert.ErrorIs(t, err, ErrAssessmentClosed)
		assert.True(t, submission.IsComplete)
	})

	t.Run("unknown question", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(inProgressSubmission(now), nil)

		err := svc.EnterAnswers(ctx, 9, "student-1", []AnswerInput{{QuestionID: 999}})
		assert.ErrorIs(t, err, ErrQuestionNotFound)
	})
}

func TestSubmissionService_AutoComplete(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("closes the attempt even when the reload fails", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(nil, assert.AnError)
		repo.submissions.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Submission) bool {
			return s.ID == 9 && s.IsComplete
		})).Return(nil)

		err := svc.AutoComplete(ctx, submission)
		require.NoError(t, err)
		assert.True(t, submission.IsComplete)
		repo.submissions.AssertExpectations(t)
	})
}

func TestSubmissionService_Complete(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("finishes at the current moment", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)
		repo.submissions.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Submission) bool {
			return s.IsComplete && s.SubmittedAt != nil && s.SubmittedAt.Equal(now)
		})).Return(nil)

		result, err := svc.Complete(ctx, 9, "student-1")
		require.NoError(t, err)
		assert.True(t, result.IsComplete)
		repo.submissions.AssertExpectations(t)
	})

	t.Run("second complete is a no-op", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.IsComplete = true
		submission.SubmittedAt = timePtr(now.Add(-time.Minute))
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)

		result, err := svc.Complete(ctx, 9, "student-1")
		require.NoError(t, err)
		assert.True(t, result.IsComplete)
		repo.submissions.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("auto release marks the grade visible", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.Assessment.AutoRelease = true
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)
		repo.submissions.On("Update", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.Complete(ctx, 9, "student-1")
		require.NoError(t, err)
		assert.True(t, result.IsReleased)
	})

	t.Run("completion reports to the gradebook when asked", func(t *testing.T) {
		repo := newMockRepository()
		svc, publisher := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.Assessment.ReportToGradebook = true
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)
		repo.submissions.On("Update", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Complete(ctx, 9, "student-1")
		require.NoError(t, err)

		published := publisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventSubmissionCompleted, published[0].Type)
	})

	t.Run("test drives never publish", func(t *testing.T) {
		repo := newMockRepository()
		svc, publisher := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.TestDrive = true
		submission.Assessment.ReportToGradebook = true
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)
		repo.submissions.On("Update", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Complete(ctx, 9, "student-1")
		require.NoError(t, err)
		assert.Empty(t, publisher.GetPublishedEvents())
	})
}

func TestSubmissionService_Evaluate(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	completed := func() *models.Submission {
		submission := inProgressSubmission(now)
		submission.IsComplete = true
		submission.SubmittedAt = timePtr(now.Add(-time.Hour))
		submission.Answers = []models.SubmissionAnswer{{
			ID: 31, SubmissionID: 9, QuestionID: 21,
			Entries: []models.SubmissionAnswerEntry{{ID: 310, AnswerID: 31, PartID: 210}},
		}}
		return submission
	}

	t.Run("records evaluator fields with attribution", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := completed()
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)
		repo.submissions.On("Update", mock.Anything, mock.Anything).Return(nil)
		repo.submissions.On("SaveAnswer", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.Evaluate(ctx, 9, "grader-1", EvaluationInput{
			Score:   floatPtr(2.5),
			Comment: strPtrS("partial credit for working"),
			Answers: []AnswerEvaluation{{QuestionID: 21, Score: floatPtr(1.0)}},
		})
		require.NoError(t, err)
		require.NotNil(t, result.EvaluatedBy)
		assert.Equal(t, "grader-1", *result.EvaluatedBy)
		assert.Equal(t, 2.5, *result.EvalScore)
		require.NotNil(t, result.Answers[0].EvalScore)
		assert.Equal(t, 1.0, *result.Answers[0].EvalScore)
	})

	t.Run("in-progress submissions cannot be evaluated", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(inProgressSubmission(now), nil)

		_, err := svc.Evaluate(ctx, 9, "grader-1", EvaluationInput{Score: floatPtr(1)})
		assert.ErrorIs(t, err, ErrNotInProgress)
	})

	t.Run("grading permission is required", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, denyAllSecurity{}, now)

		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(completed(), nil)

		_, err := svc.Evaluate(ctx, 9, "grader-1", EvaluationInput{Score: floatPtr(1)})
		assert.True(t, IsPermissionDenied(err))
	})
}

func TestSubmissionService_Countdown(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("timed attempt counts down from its start", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now) // started 10 minutes ago
		submission.Assessment.TimeLimit = int64Ptr((30 * time.Minute).Milliseconds())
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)

		exp, err := svc.Countdown(ctx, 9, "student-1")
		require.NoError(t, err)
		require.NotNil(t, exp)
		assert.Equal(t, models.ExpireTimeLimit, exp.Cause)
		assert.Equal(t, 20*time.Minute, exp.Duration)
	})

	t.Run("untimed with a distant close reports nothing", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.Assessment.AcceptUntilDate = timePtr(now.Add(72 * time.Hour))
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)

		exp, err := svc.Countdown(ctx, 9, "student-1")
		require.NoError(t, err)
		assert.Nil(t, exp)
	})

	t.Run("untimed but closing soon warns", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.Assessment.AcceptUntilDate = timePtr(now.Add(45 * time.Minute))
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)

		exp, err := svc.Countdown(ctx, 9, "student-1")
		require.NoError(t, err)
		require.NotNil(t, exp)
		assert.Equal(t, models.ExpireClosedDate, exp.Cause)
		assert.Equal(t, 45*time.Minute, exp.Duration)
	})
}
