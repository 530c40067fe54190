// Package domain defines slot allocation for a job's limited purchase
// positions. The cap is enforced by atomic check-and-increment, never by
// caller-side reads.
package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrSlotsFull       = errors.New("slots_full")
	ErrAlreadyReserved = errors.New("already_reserved")
	ErrInvalidLimit    = errors.New("invalid_limit")
	ErrJobLocked       = errors.New("job_locked")
	ErrJobNotFound     = errors.New("job_not_found")
)

// SlotsFullError carries the job's cap so callers can report capacity.
type SlotsFullError struct {
	MaxContractors int
}

func (e *SlotsFullError) Error() string {
	return fmt.Sprintf("slots_full: max_contractors=%d", e.MaxContractors)
}

func (e *SlotsFullError) Unwrap() error {
	return ErrSlotsFull
}

type Service interface {
	// ReserveTx performs the atomic check-and-increment against the job's
	// access counter inside the caller's transaction. The reservation is
	// provisional: if the dependent debit or payment step fails, the
	// caller must compensate with ReleaseTx.
	ReserveTx(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) error
	Release(ctx context.Context, jobID snowflake.ID) error
	// SetLimit changes the cap, rejecting any value below the current
	// number of granted slots rather than evicting existing grants.
	SetLimit(ctx context.Context, jobID snowflake.ID, newMax int) error
}
