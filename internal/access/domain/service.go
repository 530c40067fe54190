package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidMethod       = errors.New("invalid_method")
	ErrPaymentNotConfirmed = errors.New("payment_not_confirmed")
	ErrPaymentRefRequired  = errors.New("payment_ref_required")
	ErrJobNotFound         = errors.New("job_not_found")
	ErrContractorNotFound  = errors.New("contractor_not_found")
)

// InvalidMethodError carries the eligible set so the caller can offer an
// alternative path.
type InvalidMethodError struct {
	Method   Method
	Eligible []Method
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("invalid_method: %s not in eligible set %v", e.Method, e.Eligible)
}

func (e *InvalidMethodError) Unwrap() error {
	return ErrInvalidMethod
}

type PurchaseRequest struct {
	ContractorID snowflake.ID
	JobID        snowflake.ID
	Method       Method
	// PaymentRef is the gateway payment-intent id. Required for card
	// methods; grant creation is keyed by it to absorb webhook and
	// redirect retries.
	PaymentRef string
}

type CheckAccessResponse struct {
	HasAccess       bool     `json:"has_access"`
	LeadPrice       int64    `json:"lead_price"`
	EligibleMethods []Method `json:"eligible_methods"`
}

// LeadView is the unlocked view of a job. Customer contact fields are
// populated only when the contractor holds an access grant.
type LeadView struct {
	JobID         snowflake.ID `json:"job_id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	JobSize       string       `json:"job_size"`
	Budget        *int64       `json:"budget,omitempty"`
	HasAccess     bool         `json:"has_access"`
	CustomerName  *string      `json:"customer_name,omitempty"`
	CustomerPhone *string      `json:"customer_phone,omitempty"`
	CustomerEmail *string      `json:"customer_email,omitempty"`
}

type Service interface {
	// Purchase is idempotent: a repeat call for the same pair returns the
	// existing grant with no double debit, and a duplicate payment-intent
	// confirmation returns the grant it already produced.
	Purchase(ctx context.Context, req PurchaseRequest) (*AccessGrant, error)
	CheckAccess(ctx context.Context, contractorID, jobID snowflake.ID) (CheckAccessResponse, error)
	Lead(ctx context.Context, contractorID, jobID snowflake.ID) (LeadView, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, grant *AccessGrant) error
	FindByPair(ctx context.Context, db *gorm.DB, contractorID, jobID snowflake.ID) (*AccessGrant, error)
	FindByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*AccessGrant, error)
}
