package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tp(t time.Time) *time.Time { return &t }
func i64(v int64) *int64        { return &v }

func TestAssessment_SubmitUntilDate(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	t.Run("earliest closing date wins", func(t *testing.T) {
		a := &Assessment{
			DueDate:         tp(now.Add(24 * time.Hour)),
			AcceptUntilDate: tp(now.Add(48 * time.Hour)),
			RetractDate:     tp(now.Add(72 * time.Hour)),
		}
		require.NotNil(t, a.SubmitUntilDate())
		assert.Equal(t, now.Add(24*time.Hour), *a.SubmitUntilDate())
	})

	t.Run("late submit ignores the due date", func(t *testing.T) {
		a := &Assessment{
			DueDate:         tp(now.Add(24 * time.Hour)),
			AcceptUntilDate: tp(now.Add(48 * time.Hour)),
			AllowLateSubmit: true,
		}
		assert.Equal(t, now.Add(48*time.Hour), *a.SubmitUntilDate())
	})

	t.Run("no closing dates means no cutoff", func(t *testing.T) {
		assert.Nil(t, (&Assessment{AllowLateSubmit: true, DueDate: tp(now)}).SubmitUntilDate())
	})
}

func TestSubmission_WhenOver(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	started := now.Add(-20 * time.Minute)

	t.Run("time limit from start", func(t *testing.T) {
		s := &Submission{
			StartedAt:  &started,
			Assessment: Assessment{TimeLimit: i64((30 * time.Minute).Milliseconds())},
		}
		require.NotNil(t, s.WhenOver())
		assert.Equal(t, started.Add(30*time.Minute), *s.WhenOver())
	})

	t.Run("closing date trims the timer", func(t *testing.T) {
		closes := now.Add(5 * time.Minute)
		s := &Submission{
			StartedAt: &started,
			Assessment: Assessment{
				TimeLimit:       i64((30 * time.Minute).Milliseconds()),
				AcceptUntilDate: &closes,
			},
		}
		assert.Equal(t, closes, *s.WhenOver())
	})

	t.Run("unstarted and complete attempts are never over", func(t *testing.T) {
		timed := Assessment{TimeLimit: i64(1000)}
		assert.Nil(t, (&Submission{Assessment: timed}).WhenOver())
		assert.Nil(t, (&Submission{StartedAt: &started, IsComplete: true, Assessment: timed}).WhenOver())
	})

	t.Run("grace defers the verdict", func(t *testing.T) {
		s := &Submission{
			StartedAt:  &started,
			Assessment: Assessment{TimeLimit: i64((19 * time.Minute).Milliseconds())},
		}
		// over by one minute: inside a two-minute grace, past a 30s one
		assert.False(t, s.IsOver(now, 2*time.Minute))
		assert.True(t, s.IsOver(now, 30*time.Second))
	})
}

func TestSubmission_Expiration(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	started := now.Add(-10 * time.Minute)

	t.Run("timed attempt reports the limit cause", func(t *testing.T) {
		s := &Submission{
			StartedAt:  &started,
			Assessment: Assessment{TimeLimit: i64((30 * time.Minute).Milliseconds())},
		}
		exp := s.Expiration(now, UntimedWarnHorizon)
		require.NotNil(t, exp)
		assert.Equal(t, ExpireTimeLimit, exp.Cause)
		assert.Equal(t, 30*time.Minute, exp.Limit)
		assert.Equal(t, 20*time.Minute, exp.Duration)
	})

	t.Run("closing date overrides a longer timer", func(t *testing.T) {
		closes := now.Add(5 * time.Minute)
		s := &Submission{
			StartedAt: &started,
			Assessment: Assessment{
				TimeLimit:       i64((30 * time.Minute).Milliseconds()),
				AcceptUntilDate: &closes,
			},
		}
		exp := s.Expiration(now, UntimedWarnHorizon)
		require.NotNil(t, exp)
		assert.Equal(t, ExpireClosedDate, exp.Cause)
		assert.Equal(t, 5*time.Minute, exp.Duration)
	})

	t.Run("untimed warns only inside the horizon", func(t *testing.T) {
		far := &Submission{
			StartedAt:  &started,
			Assessment: Assessment{AcceptUntilDate: tp(now.Add(3 * time.Hour))},
		}
		assert.Nil(t, far.Expiration(now, UntimedWarnHorizon))

		soon := &Submission{
			StartedAt:  &started,
			Assessment: Assessment{AcceptUntilDate: tp(now.Add(90 * time.Minute))},
		}
		exp := soon.Expiration(now, UntimedWarnHorizon)
		require.NotNil(t, exp)
		assert.Equal(t, ExpireClosedDate, exp.Cause)
		assert.Equal(t, UntimedWarnHorizon, exp.Limit)
		assert.Equal(t, 90*time.Minute, exp.Duration)
	})

	t.Run("past cutoff clamps to zero", func(t *testing.T) {
		s := &Submission{
			StartedAt:  &started,
			Assessment: Assessment{TimeLimit: i64((5 * time.Minute).Milliseconds())},
		}
		exp := s.Expiration(now, UntimedWarnHorizon)
		require.NotNil(t, exp)
		assert.Equal(t, time.Duration(0), exp.Duration)
	})
}

func TestSubmission_TotalScore(t *testing.T) {
	eval := 2.0
	entryScore := 3.5
	s := &Submission{
		EvalScore: &eval,
		Answers: []SubmissionAnswer{{
			Entries: []SubmissionAnswerEntry{
				{AutoScore: &entryScore},
				{AutoScore: &entryScore, Detached: true},
			},
		}},
	}
	assert.Equal(t, 5.5, s.TotalScore(), "detached entries never count")
}

func TestNewPhantom(t *testing.T) {
	t.Run("carries the assessment", func(t *testing.T) {
		a := &Assessment{ID: 7, Title: "Quiz"}
		p := NewPhantom(a, "student-1")
		assert.True(t, p.IsPhantom())
		assert.Equal(t, uint(7), p.AssessmentID)
		assert.Equal(t, "Quiz", p.Assessment.Title)
		assert.Equal(t, "student-1", p.UserID)
	})

	t.Run("nil assessment", func(t *testing.T) {
		p := NewPhantom(nil, "student-1")
		assert.True(t, p.IsPhantom())
		assert.Zero(t, p.AssessmentID)
	})
}
