package services

import (
	"context"
	"sync"
	"time"

	"github.com/examhub/submission-service/internal/config"
	"github.com/examhub/submission-service/internal/repositories"
	"github.com/examhub/submission-service/internal/utils"
)

// Sweeper is the background pass that closes abandoned attempts: test-takers
// who walked away from a timed or closing assessment without pressing
// submit. Each expired submission is completed at its own computed cutoff,
// acting as the submission's user, never as an operator.
type Sweeper struct {
	repo       repositories.Repository
	submission SubmissionService
	logger     utils.Logger

	interval time.Duration
	grace    time.Duration
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewSweeper(
	repo repositories.Repository,
	submission SubmissionService,
	logger utils.Logger,
	cfg *config.Config,
) *Sweeper {
	return &Sweeper{
		repo:       repo,
		submission: submission,
		logger:     logger,
		interval:   cfg.SweepInterval,
		grace:      cfg.Grace,
		now:        time.Now,
	}
}

// Start launches the sweep loop. A zero interval disables it.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx)
	s.logger.Info("timeout sweeper started", "interval", s.interval)
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("timeout sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: every open submission past its cutoff by at least
// twice the grace period is auto-completed. The double margin keeps the
// sweeper from racing a test-taker still inside their own grace window.
// Per-submission failures are logged and the pass continues.
func (s *Sweeper) Sweep(ctx context.Context) int {
	open, err := s.repo.Submission().GetOpen(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep scan failed", "error", err)
		return 0
	}

	now := s.now()
	swept := 0

	for _, sub := range open {
		if ctx.Err() != nil {
			return swept
		}
		if sub.IsComplete {
			// raced a manual complete since the scan
			continue
		}
		if !sub.IsOver(now, 2*s.grace) {
			continue
		}

		if err := s.submission.AutoComplete(ctx, sub); err != nil {
			s.logger.ErrorContext(ctx, "sweep auto-complete failed",
				"submission_id", sub.ID, "user_id", sub.UserID, "error", err)
			continue
		}

		swept++
		s.logger.InfoContext(ctx, "swept expired submission",
			"submission_id", sub.ID,
			"user_id", sub.UserID,
			"assessment_id", sub.AssessmentID)
	}

	if swept > 0 {
		s.logger.InfoContext(ctx, "sweep pass finished", "swept", swept, "scanned", len(open))
	}
	return swept
}
