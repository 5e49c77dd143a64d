package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/examhub/submission-service/internal/cache"
	"github.com/examhub/submission-service/internal/config"
	"github.com/examhub/submission-service/internal/models"
	"github.com/examhub/submission-service/internal/repositories"
	"github.com/examhub/submission-service/internal/utils"
)

// MockSubmissionRepository is a mock implementation of SubmissionRepository
type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockSubmissionRepository) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Submission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockSubmissionRepository) SaveAnswer(ctx context.Context, answer *models.SubmissionAnswer) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func (m *MockSubmissionRepository) GetInProgress(ctx context.Context, assessmentID uint, userID string) (*models.Submission, error) {
	args := m.Called(ctx, assessmentID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) CountByUser(ctx context.Context, assessmentID uint, userID string) (int, error) {
	args := m.Called(ctx, assessmentID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockSubmissionRepository) GetByUserContext(ctx context.Context, userID, context string) ([]*models.Submission, error) {
	args := m.Called(ctx, userID, context)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) GetByAssessment(ctx context.Context, assessmentID uint) ([]*models.Submission, error) {
	args := m.Called(ctx, assessmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) GetOpen(ctx context.Context) ([]*models.Submission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Submission), args.Error(1)
}

// MockAssessmentRepository is a mock implementation of AssessmentRepository
type MockAssessmentRepository struct {
	mock.Mock
}

func (m *MockAssessmentRepository) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assessment), args.Error(1)
}

func (m *MockAssessmentRepository) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Assessment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assessment), args.Error(1)
}

func (m *MockAssessmentRepository) GetByContext(ctx context.Context, context string) ([]*models.Assessment, error) {
	args := m.Called(ctx, context)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Assessment), args.Error(1)
}

// MockRepository aggregates the entity mocks; WithTx runs the callback
// against itself so service transaction bodies execute inline.
type MockRepository struct {
	submissions *MockSubmissionRepository
	assessments *MockAssessmentRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		submissions: &MockSubmissionRepository{},
		assessments: &MockAssessmentRepository{},
	}
}

func (m *MockRepository) Submission() repositories.SubmissionRepository { return m.submissions }
func (m *MockRepository) Assessment() repositories.AssessmentRepository { return m.assessments }
func (m *MockRepository) WithTx(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

// allowAllSecurity grants everything; tests exercising denial use denyAll.
type allowAllSecurity struct{}

func (allowAllSecurity) ResolveUser(context.Context, string) (*models.User, error) {
	return &models.User{ID: "tester", Role: models.RoleStudent}, nil
}
func (allowAllSecurity) CanSubmit(context.Context, string, *models.Assessment) error { return nil }
func (allowAllSecurity) CanManage(context.Context, string, *models.Assessment) error { return nil }
func (allowAllSecurity) CanGrade(context.Context, string, *models.Assessment) error  { return nil }

type denyAllSecurity struct{}

func (denyAllSecurity) ResolveUser(context.Context, string) (*models.User, error) {
	return nil, ErrPermissionDenied
}
func (denyAllSecurity) CanSubmit(_ context.Context, userID string, a *models.Assessment) error {
	return NewPermissionError(userID, assessmentID(a), "assessment", "submit", "denied")
}
func (denyAllSecurity) CanManage(_ context.Context, userID string, a *models.Assessment) error {
	return NewPermissionError(userID, assessmentID(a), "assessment", "manage", "denied")
}
func (denyAllSecurity) CanGrade(_ context.Context, userID string, a *models.Assessment) error {
	return NewPermissionError(userID, assessmentID(a), "assessment", "grade", "denied")
}

// stubCache serves exactly one canned value, JSON-encoded like the real
// cache does, and misses everything else.
type stubCache struct {
	key   string
	value interface{}
}

func (c stubCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (c stubCache) Delete(context.Context, string) error                          { return nil }
func (c stubCache) DeletePattern(context.Context, string) error                   { return nil }

func (c stubCache) Get(_ context.Context, key string, dest interface{}) error {
	if key != c.key {
		return cache.ErrCacheMiss
	}
	b, err := json.Marshal(c.value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

// missCache always misses so services hit the mocked store.
type missCache struct{}

func (missCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (missCache) Get(context.Context, string, interface{}) error                { return cache.ErrCacheMiss }
func (missCache) Delete(context.Context, string) error                          { return nil }
func (missCache) DeletePattern(context.Context, string) error                   { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Grace:              2 * time.Minute,
		SweepInterval:      time.Minute,
		UntimedWarnHorizon: 2 * time.Hour,
	}
}

func testLogger() utils.Logger {
	return utils.NewDevelopmentLogger()
}

func timePtr(t time.Time) *time.Time    { return &t }
func int64Ptr(v int64) *int64           { return &v }
func intPtr(v int) *int                 { return &v }
func floatPtr(v float64) *float64       { return &v }
func strPtrS(s string) *string          { return &s }
func choicePtr(id uint) *uint           { return &id }
