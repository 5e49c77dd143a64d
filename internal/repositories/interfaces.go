package repositories

import (
	"context"
	"errors"

	"github.com/examhub/submission-service/internal/models"
	"gorm.io/gorm"
)

// Repository aggregates the per-entity stores and carries the transaction
// boundary. Multi-row writes (a submission with its answers and entries) go
// through WithTx so partial writes are never observable.
type Repository interface {
	Submission() SubmissionRepository
	Assessment() AssessmentRepository

	// WithTx runs fn against a repository bound to one transaction,
	// committing on nil and rolling back on error.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// SubmissionRepository is the abstract store for submissions and their
// answer entries.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.Submission, error)
	Update(ctx context.Context, submission *models.Submission) error
	SaveAnswer(ctx context.Context, answer *models.SubmissionAnswer) error

	// GetInProgress finds the open submission for a user/assessment pair,
	// or a not-found error. At most one may exist.
	GetInProgress(ctx context.Context, assessmentID uint, userID string) (*models.Submission, error)

	// CountByUser counts real (non-test-drive) attempts for the tries
	// limit.
	CountByUser(ctx context.Context, assessmentID uint, userID string) (int, error)

	// GetByUserContext loads all submissions by one user to assessments in
	// a context, assessments preloaded, for officializing by assessment.
	GetByUserContext(ctx context.Context, userID, context string) ([]*models.Submission, error)

	// GetByAssessment loads all submissions to one assessment, for
	// officializing by user.
	GetByAssessment(ctx context.Context, assessmentID uint) ([]*models.Submission, error)

	// GetOpen lists every in-progress submission with its assessment, for
	// the timeout sweep.
	GetOpen(ctx context.Context) ([]*models.Submission, error)
}

// AssessmentRepository reads the published assessment structure this core
// consumes; authoring writes happen elsewhere.
type AssessmentRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Assessment, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Assessment, error)
	GetByContext(ctx context.Context, context string) ([]*models.Assessment, error)
}

// IsNotFoundError reports whether err is the store's missing-row condition.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
