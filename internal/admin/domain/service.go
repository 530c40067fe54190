// Package domain defines the admin override surface. Every operation
// requires an admin actor and a written reason, and leaves an audit-log
// entry naming both.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	settlementdomain "github.com/tradecore/leadengine/internal/settlement/domain"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrReasonRequired = errors.New("reason_required")
	ErrInvalidPrice   = errors.New("invalid_price")
	ErrJobNotFound    = errors.New("job_not_found")
)

type Service interface {
	// OverrideLeadPrice pins the lead price for one job, taking priority
	// over the service price table. A zero price clears the override.
	OverrideLeadPrice(ctx context.Context, jobID snowflake.ID, price int64, reason string) error
	SetContractorLimit(ctx context.Context, jobID snowflake.ID, newMax int, reason string) error
	// LockJob stops further purchases without touching existing grants.
	LockJob(ctx context.Context, jobID snowflake.ID, reason string) error
	UnlockJob(ctx context.Context, jobID snowflake.ID, reason string) error
	// ForceApproveWinner records the winning contractor directly,
	// bypassing customer selection. Settlement rules are unchanged.
	ForceApproveWinner(ctx context.Context, jobID, contractorID snowflake.ID, reason string) error
	AdjustCredits(ctx context.Context, contractorID snowflake.ID, amount int64, txType creditdomain.TransactionType, reason string) (*creditdomain.CreditTransaction, error)
	// ForceSettle settles a job without the completion and
	// customer-confirmation gates.
	ForceSettle(ctx context.Context, jobID snowflake.ID, finalAmount int64, reason string) (*settlementdomain.Settlement, error)
}
