package postgres

import (
	"context"

	"github.com/examhub/submission-service/internal/models"
	"gorm.io/gorm"
)

type AssessmentPostgreSQL struct {
	db *gorm.DB
}

func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	var assessment models.Assessment
	if err := a.db.WithContext(ctx).First(&assessment, id).Error; err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (a *AssessmentPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Assessment, error) {
	var assessment models.Assessment
	if err := a.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC")
		}).
		Preload("Questions.Parts", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_parts.position ASC")
		}).
		Preload("Questions.Parts.Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("authored_answers.position ASC")
		}).
		First(&assessment, id).Error; err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (a *AssessmentPostgreSQL) GetByContext(ctx context.Context, context string) ([]*models.Assessment, error) {
	var assessments []*models.Assessment
	err := a.db.WithContext(ctx).
		Where("context = ? AND status = ?", context, models.StatusPublished).
		Order("id ASC").
		Find(&assessments).Error
	return assessments, err
}
