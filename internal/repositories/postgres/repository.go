package postgres

import (
	"context"

	"github.com/examhub/submission-service/internal/repositories"
	"gorm.io/gorm"
)

// Repository is the gorm-backed store aggregate.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Submission() repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: r.db}
}

func (r *Repository) Assessment() repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{db: r.db}
}

// WithTx binds a repository to one transaction; gorm commits on nil and
// rolls back when fn errors or panics.
func (r *Repository) WithTx(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}
