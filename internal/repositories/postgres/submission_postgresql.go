package postgres

import (
	"context"

	"github.com/examhub/submission-service/internal/models"
	"gorm.io/gorm"
)

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, submission *models.Submission) error {
	return s.db.WithContext(ctx).Omit("Assessment").Create(submission).Error
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).
		Preload("Assessment").
		First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).
		Preload("Assessment").
		Preload("Assessment.Questions.Parts.Answers").
		Preload("Answers.Entries").
		First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) Update(ctx context.Context, submission *models.Submission) error {
	return s.db.WithContext(ctx).Omit("Assessment", "Answers").Save(submission).Error
}

// SaveAnswer persists an answer with all of its entries, recycle pool
// included.
func (s *SubmissionPostgreSQL) SaveAnswer(ctx context.Context, answer *models.SubmissionAnswer) error {
	return s.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(answer).Error
}

func (s *SubmissionPostgreSQL) GetInProgress(ctx context.Context, assessmentID uint, userID string) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).
		Preload("Assessment").
		Where("assessment_id = ? AND user_id = ? AND started_at IS NOT NULL AND is_complete = ?", assessmentID, userID, false).
		Order("id ASC").
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) CountByUser(ctx context.Context, assessmentID uint, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ? AND user_id = ? AND test_drive = ?", assessmentID, userID, false).
		Count(&count).Error
	return int(count), err
}

func (s *SubmissionPostgreSQL) GetByUserContext(ctx context.Context, userID, context string) ([]*models.Submission, error) {
	var submissions []*models.Submission
	err := s.db.WithContext(ctx).
		Joins("JOIN assessments ON assessments.id = submissions.assessment_id").
		Where("submissions.user_id = ? AND assessments.context = ? AND submissions.test_drive = ?", userID, context, false).
		Preload("Assessment").
		Preload("Answers.Entries").
		Order("submissions.assessment_id ASC, submissions.id ASC").
		Find(&submissions).Error
	return submissions, err
}

func (s *SubmissionPostgreSQL) GetByAssessment(ctx context.Context, assessmentID uint) ([]*models.Submission, error) {
	var submissions []*models.Submission
	err := s.db.WithContext(ctx).
		Where("assessment_id = ? AND test_drive = ?", assessmentID, false).
		Preload("Assessment").
		Preload("Answers.Entries").
		Order("user_id ASC, id ASC").
		Find(&submissions).Error
	return submissions, err
}

func (s *SubmissionPostgreSQL) GetOpen(ctx context.Context) ([]*models.Submission, error) {
	var submissions []*models.Submission
	err := s.db.WithContext(ctx).
		Where("started_at IS NOT NULL AND is_complete = ?", false).
		Preload("Assessment").
		Find(&submissions).Error
	return submissions, err
}
