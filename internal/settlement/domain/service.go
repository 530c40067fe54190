// Package domain defines commission settlement for completed jobs. A job
// settles at most once; the commission_paid flag on the job row is the
// idempotency guard.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrAlreadySettled  = errors.New("already_settled")
	ErrJobNotFound     = errors.New("job_not_found")
	ErrJobNotCompleted = errors.New("job_not_completed")
	ErrNotConfirmed    = errors.New("not_confirmed")
	ErrNoWinner        = errors.New("no_winner")
	ErrInvalidAmount   = errors.New("invalid_amount")
)

type SettleRequest struct {
	JobID       snowflake.ID
	FinalAmount int64
	Reason      string
	// Force skips the completed and customer-confirmed gates. Admin only.
	Force bool
}

// Settlement reports what a settle run charged.
type Settlement struct {
	JobID        snowflake.ID `json:"job_id"`
	ContractorID snowflake.ID `json:"contractor_id"`
	FinalAmount  int64        `json:"final_amount"`
	Commission   int64        `json:"commission"`
	Exempt       bool         `json:"exempt"`
}

type Service interface {
	// Settle charges the platform commission against the winning
	// contractor. Subscriber pay-in-full purchases are exempt; repeat
	// calls return ErrAlreadySettled without charging twice.
	Settle(ctx context.Context, req SettleRequest) (*Settlement, error)
	// MarkCompleted records the winning contractor and the final job
	// value, and settles immediately when the customer has already
	// confirmed. reason is carried onto the commission deduction.
	MarkCompleted(ctx context.Context, jobID, contractorID snowflake.ID, finalAmount int64, reason string) error
	// ConfirmByCustomer flips the customer confirmation and settles if
	// the job is already completed with a winner.
	ConfirmByCustomer(ctx context.Context, jobID snowflake.ID) error
}
