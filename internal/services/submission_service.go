package services

import (
	"context"
	"time"

	"github.com/examhub/submission-service/internal/cache"
	"github.com/examhub/submission-service/internal/config"
	"github.com/examhub/submission-service/internal/events"
	"github.com/examhub/submission-service/internal/models"
	"github.com/examhub/submission-service/internal/repositories"
	"github.com/examhub/submission-service/internal/utils"
)

// AnswerInput carries one question's worth of test-taker input. Exactly one
// of the value fields is meaningful per question type; the service dispatches
// on the question, not on which fields the client filled.
type AnswerInput struct {
	QuestionID uint `json:"question_id" validate:"required"`

	// Texts sets free-text blanks position-for-position (fill-in, numeric,
	// essay, file reference).
	Texts []string `json:"texts,omitempty"`

	// ChoiceID sets the single selection of true/false and multiple-choice.
	ChoiceID *uint `json:"choice_id,omitempty"`

	// SelectedIDs resizes a multiple-correct selection set.
	SelectedIDs []uint `json:"selected_ids,omitempty"`

	// Matches sets matching pair-slots.
	Matches []MatchInput `json:"matches,omitempty"`

	MarkedForReview bool    `json:"marked_for_review"`
	Rationale       *string `json:"rationale,omitempty"`
}

type MatchInput struct {
	PartID   uint  `json:"part_id" validate:"required"`
	ChoiceID *uint `json:"choice_id"`
}

// AnswerEvaluation is an evaluator's manual adjustment to one answer.
type AnswerEvaluation struct {
	QuestionID uint     `json:"question_id" validate:"required"`
	Score      *float64 `json:"score,omitempty"`
	Comment    *string  `json:"comment,omitempty"`
}

// EvaluationInput is an evaluator's pass over one submission.
type EvaluationInput struct {
	Score   *float64           `json:"score,omitempty"`
	Comment *string            `json:"comment,omitempty"`
	Answers []AnswerEvaluation `json:"answers,omitempty"`

	// Release marks the grade visible immediately, ahead of any bulk
	// release.
	Release bool `json:"release"`
}

// SubmissionService owns the attempt lifecycle: begin, enter answers,
// complete, evaluate, release. All deadline math is delegated to the
// submission model; this layer enforces who may act and when, and keeps
// stored answers scored.
type SubmissionService interface {
	// Begin opens an attempt. When the user already has one in progress it
	// is returned as-is; at most one open attempt exists per user and
	// assessment.
	Begin(ctx context.Context, assessmentID uint, userID string, testDrive bool) (*models.Submission, error)

	// Get loads a submission with answers. Test-takers see their own;
	// managers and graders see any in their assessments.
	Get(ctx context.Context, id uint, userID string) (*models.Submission, error)

	// EnterAnswers records test-taker input against an in-progress
	// submission, rescoring each touched answer. A submission found past
	// its cutoff is auto-completed instead and the entry rejected.
	EnterAnswers(ctx context.Context, submissionID uint, userID string, inputs []AnswerInput) error

	// Complete finishes an attempt at the current moment. Calling it on an
	// already complete submission is a no-op returning the submission.
	Complete(ctx context.Context, submissionID uint, userID string) (*models.Submission, error)

	// AutoComplete finishes an overdue attempt at its computed cutoff, not
	// at the wall clock. Invoked by the timeout sweeper on behalf of the
	// submission's own user. Already complete submissions are skipped.
	AutoComplete(ctx context.Context, submission *models.Submission) error

	// Evaluate records a grader's pass over a completed submission.
	Evaluate(ctx context.Context, submissionID uint, evaluatorID string, input EvaluationInput) (*models.Submission, error)

	// ReleaseGrades marks every completed submission to the assessment
	// released and reports the grades out.
	ReleaseGrades(ctx context.Context, assessmentID uint, userID string) (int, error)

	// Countdown reports the expiration surface for an in-progress attempt,
	// or nil when nothing bounds it soon.
	Countdown(ctx context.Context, submissionID uint, userID string) (*models.Expiration, error)

	// Layout renders the stable per-submission delivery order of every
	// question, shuffled choices labeled in delivered position.
	Layout(ctx context.Context, submissionID uint, userID string) ([]QuestionLayout, error)
}

type submissionService struct {
	repo      repositories.Repository
	security  SecurityService
	cache     cache.CacheService
	publisher events.EventPublisher
	logger    utils.Logger
	validator *utils.Validator

	grace   time.Duration
	horizon time.Duration

	// now is swapped in tests
	now func() time.Time
}

func NewSubmissionService(
	repo repositories.Repository,
	security SecurityService,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	logger utils.Logger,
	validator *utils.Validator,
	cfg *config.Config,
) SubmissionService {
	grace := cfg.Grace
	horizon := cfg.UntimedWarnHorizon
	if horizon <= 0 {
		horizon = models.UntimedWarnHorizon
	}
	return &submissionService{
		repo:      repo,
		security:  security,
		cache:     cacheService,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		grace:     grace,
		horizon:   horizon,
		now:       time.Now,
	}
}

func (s *submissionService) Begin(ctx context.Context, assessmentID uint, userID string, testDrive bool) (*models.Submission, error) {
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	if err := s.security.CanSubmit(ctx, userID, assessment); err != nil {
		return nil, err
	}

	now := s.now()

	// test drives preview regardless of window and tries
	if !testDrive {
		if !assessment.IsOpen(now, s.grace) {
			return nil, ErrAssessmentClosed
		}
	}

	// one open attempt per user and assessment; reopening is idempotent
	existing, err := s.repo.Submission().GetInProgress(ctx, assessmentID, userID)
	if err == nil {
		s.logger.InfoContext(ctx, "resuming open submission",
			"submission_id", existing.ID, "user_id", userID)
		existing.Assessment = *assessment
		return existing, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, storeErr("find open submission", err)
	}

	if !testDrive && assessment.Tries != nil {
		count, err := s.repo.Submission().CountByUser(ctx, assessmentID, userID)
		if err != nil {
			return nil, storeErr("count attempts", err)
		}
		if count >= *assessment.Tries {
			return nil, ErrAttemptsExhausted
		}
	}

	submission := &models.Submission{
		AssessmentID: assessmentID,
		UserID:       userID,
		StartedAt:    &now,
		TestDrive:    testDrive,
	}

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		return tx.Submission().Create(ctx, submission)
	})
	if err != nil {
		return nil, storeErr("create submission", err)
	}

	submission.Assessment = *assessment
	s.logger.InfoContext(ctx, "submission started",
		"submission_id", submission.ID,
		"assessment_id", assessmentID,
		"user_id", userID,
		"test_drive", testDrive)

	return submission, nil
}

func (s *submissionService) Get(ctx context.Context, id uint, userID string) (*models.Submission, error) {
	submission, err := s.loadWithAnswers(ctx, id)
	if err != nil {
		return nil, err
	}

	if submission.UserID != userID {
		if err := s.security.CanGrade(ctx, userID, &submission.Assessment); err != nil {
			return nil, err
		}
	}
	return submission, nil
}

func (s *submissionService) EnterAnswers(ctx context.Context, submissionID uint, userID string, inputs []AnswerInput) error {
	for i := range inputs {
		if err := s.validator.Validate(&inputs[i]); err != nil {
			return err
		}
	}

	submission, err := s.loadWithAnswers(ctx, submissionID)
	if err != nil {
		return err
	}
	if submission.UserID != userID {
		return NewPermissionError(userID, submissionID, "submission", "answer", "not the owner")
	}
	if submission.IsComplete {
		return ErrAlreadyComplete
	}
	if !submission.IsInProgress() {
		return ErrNotInProgress
	}

	now := s.now()
	if submission.IsOver(now, s.grace) {
		// the attempt ended while the client was working; close it and
		// reject the late entry
		if err := s.AutoComplete(ctx, submission); err != nil {
			s.logger.ErrorContext(ctx, "auto-complete on late entry failed",
				"submission_id", submissionID, "error", err)
		}
		return ErrAssessmentClosed
	}

	var touched []*models.SubmissionAnswer
	for i := range inputs {
		answer, err := s.applyInput(submission, &inputs[i], now)
		if err != nil {
			return err
		}
		touched = append(touched, answer)
	}

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		for _, answer := range touched {
			if err := tx.Submission().SaveAnswer(ctx, answer); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("save answers", err)
	}

	s.invalidate(ctx, submissionID)
	return nil
}

func (s *submissionService) Complete(ctx context.Context, submissionID uint, userID string) (*models.Submission, error) {
	submission, err := s.loadWithAnswers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.UserID != userID {
		return nil, NewPermissionError(userID, submissionID, "submission", "complete", "not the owner")
	}
	if submission.IsComplete {
		return submission, nil
	}
	if !submission.IsStarted() {
		return nil, ErrNotInProgress
	}

	now := s.now()
	if err := s.finish(ctx, submission, now, false); err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *submissionService) AutoComplete(ctx context.Context, submission *models.Submission) error {
	if submission.IsComplete {
		return nil
	}
	if !submission.IsStarted() {
		return ErrNotInProgress
	}

	// complete at the computed cutoff, not at the sweep moment
	over := submission.WhenOver()
	at := s.now()
	if over != nil {
		at = *over
	}

	if len(submission.Answers) == 0 && !submission.IsPhantom() {
		full, err := s.loadWithAnswers(ctx, submission.ID)
		if err != nil {
			// still close the attempt; its answers just keep their last
			// cached scores
			s.logger.WarnContext(ctx, "reload before auto-complete failed",
				"submission_id", submission.ID, "error", err)
		} else {
			full.SiblingCount = submission.SiblingCount
			*submission = *full
		}
	}

	return s.finish(ctx, submission, at, true)
}

func (s *submissionService) Evaluate(ctx context.Context, submissionID uint, evaluatorID string, input EvaluationInput) (*models.Submission, error) {
	if err := s.validator.Validate(&input); err != nil {
		return nil, err
	}

	submission, err := s.loadWithAnswers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if err := s.security.CanGrade(ctx, evaluatorID, &submission.Assessment); err != nil {
		return nil, err
	}
	if !submission.IsComplete {
		return nil, ErrNotInProgress
	}

	now := s.now()
	submission.EvalScore = input.Score
	submission.EvalComment = input.Comment
	submission.EvaluatedBy = &evaluatorID
	submission.EvaluatedAt = &now

	for i := range input.Answers {
		ae := &input.Answers[i]
		answer := submission.AnswerFor(ae.QuestionID)
		if answer == nil {
			return nil, ErrQuestionNotFound
		}
		answer.EvalScore = ae.Score
		answer.EvalComment = ae.Comment
		answer.EvaluatedBy = &evaluatorID
		answer.EvaluatedAt = &now
	}

	released := input.Release && !submission.IsReleased
	if released {
		submission.IsReleased = true
	}

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
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
		return nil, storeErr("save evaluation", err)
	}

	s.invalidate(ctx, submissionID)
	s.publish(ctx, submission, events.EventSubmissionEvaluated, false)
	if released {
		s.publish(ctx, submission, events.EventGradesReleased, false)
	}

	s.logger.InfoContext(ctx, "submission evaluated",
		"submission_id", submissionID, "evaluated_by", evaluatorID)
	return submission, nil
}

func (s *submissionService) ReleaseGrades(ctx context.Context, assessmentID uint, userID string) (int, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrAssessmentNotFound
		}
		return 0, storeErr("load assessment", err)
	}
	if err := s.security.CanManage(ctx, userID, assessment); err != nil {
		return 0, err
	}

	submissions, err := s.repo.Submission().GetByAssessment(ctx, assessmentID)
	if err != nil {
		return 0, storeErr("load submissions", err)
	}

	var toRelease []*models.Submission
	for _, sub := range submissions {
		if sub.IsComplete && !sub.IsReleased && !sub.TestDrive {
			toRelease = append(toRelease, sub)
		}
	}

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		for _, sub := range toRelease {
			sub.IsReleased = true
			if err := tx.Submission().Update(ctx, sub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, storeErr("release grades", err)
	}

	for _, sub := range toRelease {
		sub.Assessment = *assessment
		s.invalidate(ctx, sub.ID)
		s.publish(ctx, sub, events.EventGradesReleased, false)
	}

	s.logger.InfoContext(ctx, "grades released",
		"assessment_id", assessmentID, "count", len(toRelease), "released_by", userID)
	return len(toRelease), nil
}

func (s *submissionService) Countdown(ctx context.Context, submissionID uint, userID string) (*models.Expiration, error) {
	submission, err := s.loadWithAnswers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.UserID != userID {
		return nil, NewPermissionError(userID, submissionID, "submission", "view", "not the owner")
	}
	return submission.Expiration(s.now(), s.horizon), nil
}
