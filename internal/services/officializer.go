package services

import (
	"context"
	"sort"
	"time"

	"github.com/examhub/submission-service/internal/config"
	"github.com/examhub/submission-service/internal/models"
	"github.com/examhub/submission-service/internal/repositories"
	"github.com/examhub/submission-service/internal/utils"
)

// OfficializerService reduces the pile of attempts to one official
// submission per user/assessment pair. Callers always get exactly one
// representative per pair: a phantom stands in where no attempt exists.
//
// The official pick: an in-progress attempt always wins; otherwise the
// highest total score, with the later-submitted attempt breaking ties.
// Overdue in-progress attempts found along the way are auto-completed
// before the pick so they compete on their final score.
type OfficializerService interface {
	// ByAssessment returns the official submission of every user who has
	// attempted the assessment. Caller must be able to grade it. When
	// exemptUserID is non-empty that user is kept ungrouped: all of their
	// started attempts appear, with the official one still annotated.
	ByAssessment(ctx context.Context, assessmentID uint, callerID, exemptUserID string) ([]*models.Submission, error)

	// ByUser returns one official submission per published assessment in
	// the context for the given user, phantoms included for assessments
	// not yet attempted. Users see their own; managers see anyone's.
	ByUser(ctx context.Context, userID, contextID, callerID string) ([]*models.Submission, error)

	// Official reduces one user's attempts on one assessment. Callers
	// read their own; anyone else's requires grade permission.
	Official(ctx context.Context, assessmentID uint, userID, callerID string) (*models.Submission, error)
}

type officializerService struct {
	repo       repositories.Repository
	security   SecurityService
	submission SubmissionService
	logger     utils.Logger
	grace      time.Duration
	now        func() time.Time
}

func NewOfficializerService(
	repo repositories.Repository,
	security SecurityService,
	submission SubmissionService,
	logger utils.Logger,
	cfg *config.Config,
) OfficializerService {
	return &officializerService{
		repo:       repo,
		security:   security,
		submission: submission,
		logger:     logger,
		grace:      cfg.Grace,
		now:        time.Now,
	}
}

func (s *officializerService) ByAssessment(ctx context.Context, assessmentID uint, callerID, exemptUserID string) ([]*models.Submission, error) {
	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, storeErr("load assessment", err)
	}
	if err := s.security.CanGrade(ctx, callerID, assessment); err != nil {
		return nil, err
	}

	all, err := s.repo.Submission().GetByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, storeErr("load submissions", err)
	}

	byUser := make(map[string][]*models.Submission)
	var order []string
	for _, sub := range all {
		if sub.TestDrive {
			continue
		}
		sub.Assessment = *assessment
		if _, seen := byUser[sub.UserID]; !seen {
			order = append(order, sub.UserID)
		}
		byUser[sub.UserID] = append(byUser[sub.UserID], sub)
	}
	sort.Strings(order)

	var rv []*models.Submission
	for _, userID := range order {
		members := byUser[userID]
		official := s.officialize(ctx, members)
		if official == nil {
			continue
		}
		if userID == exemptUserID {
			// the exempt user stays ungrouped; the official member keeps
			// its annotations so the caller can still single it out
			for _, sub := range members {
				if sub.IsStarted() {
					rv = append(rv, sub)
				}
			}
			continue
		}
		rv = append(rv, official)
	}
	return rv, nil
}

func (s *officializerService) ByUser(ctx context.Context, userID, contextID, callerID string) ([]*models.Submission, error) {
	if callerID != userID {
		// managers in the context may inspect anyone's official picks
		if err := s.security.CanManage(ctx, callerID, nil); err != nil {
			return nil, err
		}
	}

	assessments, err := s.repo.Assessment().GetByContext(ctx, contextID)
	if err != nil {
		return nil, storeErr("load assessments", err)
	}

	all, err := s.repo.Submission().GetByUserContext(ctx, userID, contextID)
	if err != nil {
		return nil, storeErr("load submissions", err)
	}

	byAssessment := make(map[uint][]*models.Submission)
	for _, sub := range all {
		if sub.TestDrive {
			continue
		}
		byAssessment[sub.AssessmentID] = append(byAssessment[sub.AssessmentID], sub)
	}

	var rv []*models.Submission
	for _, assessment := range assessments {
		subs := byAssessment[assessment.ID]
		for _, sub := range subs {
			sub.Assessment = *assessment
		}

		official := s.officialize(ctx, subs)
		if official == nil {
			// no attempt yet; the phantom keeps the pair represented
			official = models.NewPhantom(assessment, userID)
		}
		rv = append(rv, official)
	}
	return rv, nil
}

func (s *officializerService) Official(ctx context.Context, assessmentID uint, userID, callerID string) (*models.Submission, error) {
	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, storeErr("load assessment", err)
	}
	if callerID != userID {
		if err := s.security.CanGrade(ctx, callerID, assessment); err != nil {
			return nil, err
		}
	}

	all, err := s.repo.Submission().GetByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, storeErr("load submissions", err)
	}

	var mine []*models.Submission
	for _, sub := range all {
		if sub.UserID != userID || sub.TestDrive {
			continue
		}
		sub.Assessment = *assessment
		mine = append(mine, sub)
	}

	if official := s.officialize(ctx, mine); official != nil {
		return official, nil
	}
	return models.NewPhantom(assessment, userID), nil
}

// officialize reduces one user's attempts on one assessment to the official
// one, annotating it with the sibling count and the best-scored completed
// sibling. Nil when the slice holds no started attempt.
func (s *officializerService) officialize(ctx context.Context, subs []*models.Submission) *models.Submission {
	now := s.now()

	var started []*models.Submission
	for _, sub := range subs {
		if !sub.IsStarted() {
			continue
		}

		// an expired open attempt competes on its final score
		if sub.IsInProgress() && sub.IsOver(now, s.grace) {
			if err := s.submission.AutoComplete(ctx, sub); err != nil {
				s.logger.ErrorContext(ctx, "auto-complete during officialize failed",
					"submission_id", sub.ID, "error", err)
			}
		}
		started = append(started, sub)
	}
	if len(started) == 0 {
		return nil
	}

	official := started[0]
	for _, sub := range started[1:] {
		if better(sub, official) {
			official = sub
		}
	}

	official.SiblingCount = len(started)
	official.Best = bestCompleted(started)
	return official
}

// better orders two started attempts: in-progress beats complete, then
// higher score, then later submission.
func better(a, b *models.Submission) bool {
	if a.IsInProgress() != b.IsInProgress() {
		return a.IsInProgress()
	}
	as, bs := a.TotalScore(), b.TotalScore()
	if as != bs {
		return as > bs
	}
	return laterSubmitted(a, b)
}

func bestCompleted(subs []*models.Submission) *models.Submission {
	var best *models.Submission
	for _, sub := range subs {
		if !sub.IsComplete {
			continue
		}
		if best == nil {
			best = sub
			continue
		}
		if sub.TotalScore() > best.TotalScore() ||
			(sub.TotalScore() == best.TotalScore() && laterSubmitted(sub, best)) {
			best = sub
		}
	}
	return best
}

func laterSubmitted(a, b *models.Submission) bool {
	if a.SubmittedAt == nil {
		return false
	}
	if b.SubmittedAt == nil {
		return true
	}
	return a.SubmittedAt.After(*b.SubmittedAt)
}
