package services

import (
	"errors"
	"fmt"

	"github.com/examhub/submission-service/internal/scoring"

	apperrors "github.com/examhub/submission-service/internal/errors"
)

// ===== DOMAIN CONDITIONS =====
//
// Permission, window and limit conditions are results the caller handles,
// not faults. Integrity (misaligned entries) and store failures abort the
// operation.

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrAssessmentClosed  = errors.New("assessment is not open for submission")
	ErrAttemptsExhausted = errors.New("attempt limit reached")
	ErrAlreadyComplete   = errors.New("submission already complete")
	ErrNotInProgress     = errors.New("submission is not in progress")

	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrQuestionNotFound   = errors.New("question not found in assessment")

	ErrStoreFailure = errors.New("store operation failed")
)

// Use shared validation errors from the errors package.
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// MisalignedEntriesError re-exports the scoring integrity error so callers
// can test for it without importing the scoring package.
type MisalignedEntriesError = scoring.MisalignedEntriesError

// PermissionError carries the who/what/why of a denied action.
type PermissionError struct {
	UserID   string `json:"user_id"`
	Resource string `json:"resource"`
	TargetID uint   `json:"target_id"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.TargetID, pe.Reason)
}

func (pe *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

func NewPermissionError(userID string, targetID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:   userID,
		Resource: resource,
		TargetID: targetID,
		Action:   action,
		Reason:   reason,
	}
}

// storeErr wraps a persistence failure as a hard fault.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreFailure, err)
}

// ===== PREDICATES =====

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsDomainCondition(err error) bool {
	return errors.Is(err, ErrAssessmentClosed) ||
		errors.Is(err, ErrAttemptsExhausted) ||
		errors.Is(err, ErrAlreadyComplete) ||
		errors.Is(err, ErrNotInProgress)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, ErrAssessmentNotFound) ||
		errors.Is(err, ErrQuestionNotFound)
}

func IsMisaligned(err error) bool {
	var me *MisalignedEntriesError
	return errors.As(err, &me)
}

func IsValidation(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}
