package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/examhub/submission-service/internal/models"
)

func TestSubmissionService_Layout(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("choices in stable order with current selections", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		submission := inProgressSubmission(now)
		submission.Answers = []models.SubmissionAnswer{{
			ID: 91, SubmissionID: 9, QuestionID: 21,
			Entries: []models.SubmissionAnswerEntry{
				{AnswerID: 91, PartID: 210, SelectedAnswerID: choicePtr(211)},
			},
		}}
		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(submission, nil)

		layouts, err := svc.Layout(ctx, 9, "student-1")
		require.NoError(t, err)
		require.Len(t, layouts, 1)

		q := layouts[0]
		assert.Equal(t, uint(21), q.QuestionID)
		require.Len(t, q.Choices, 2)
		assert.Equal(t, "A.", q.Choices[0].Label)
		assert.Equal(t, uint(211), q.Choices[0].AnswerID)
		assert.Equal(t, []uint{211}, q.Selected)
	})

	t.Run("unanswered question carries no selections", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, allowAllSecurity{}, now)

		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(inProgressSubmission(now), nil)

		layouts, err := svc.Layout(ctx, 9, "student-1")
		require.NoError(t, err)
		require.Len(t, layouts, 1)
		assert.Empty(t, layouts[0].Selected)
	})

	t.Run("only the owner or a grader may view", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestService(repo, denyAllSecurity{}, now)

		repo.submissions.On("GetByIDWithAnswers", mock.Anything, uint(9)).Return(inProgressSubmission(now), nil)

		_, err := svc.Layout(ctx, 9, "someone-else")
		assert.True(t, IsPermissionDenied(err))
	})
}
