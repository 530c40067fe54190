package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrReasonRequired      = errors.New("reason_required")
	ErrContractorNotFound  = errors.New("contractor_not_found")
	// ErrNotEligible is returned when the commit-time re-check of the
	// debit mode fails: the subscription was cancelled, or the trial
	// credit was already spent, after the caller's eligibility preview.
	ErrNotEligible = errors.New("not_eligible")
)

// InsufficientCreditsError carries the current balance so callers can
// offer an alternative payment path.
type InsufficientCreditsError struct {
	Balance int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient_credits: balance=%d", e.Balance)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
