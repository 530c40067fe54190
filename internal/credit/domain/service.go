package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/tradecore/leadengine/pkg/db/pagination"
	"gorm.io/gorm"
)

// DebitMode selects the commit-time eligibility check for a debit.
type DebitMode string

const (
	// DebitModeSubscriber requires an active subscription at commit time.
	DebitModeSubscriber DebitMode = "SUBSCRIBER"
	// DebitModeTrial spends the lifetime free-trial credit; only valid for
	// small jobs, which the caller has already established.
	DebitModeTrial DebitMode = "TRIAL"
)

type DebitRequest struct {
	ContractorID snowflake.ID
	Amount       int64 // defaults to 1
	Mode         DebitMode
	Reason       string
}

type CreditRequest struct {
	ContractorID snowflake.ID
	Amount       int64 // signed, non-zero
	Type         TransactionType
	Reason       string
	AdminUserID  *string
}

type HistoryRequest struct {
	ContractorID snowflake.ID
	pagination.Pagination
}

type HistoryResponse struct {
	pagination.PageInfo
	Transactions []CreditTransaction `json:"transactions"`
}

// ResetSummary reports one weekly reset sweep.
type ResetSummary struct {
	Processed     int
	ToppedUp      int
	TrialsGranted int
}

type Service interface {
	Balance(ctx context.Context, contractorID snowflake.ID) (int64, error)
	// Debit atomically decrements the balance, re-validating eligibility
	// and never letting the balance go below zero. DebitTx runs inside the
	// caller's transaction so a purchase can compose it with slot commit.
	Debit(ctx context.Context, req DebitRequest) (*CreditTransaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (*CreditTransaction, error)
	// Credit always succeeds for an existing contractor: it appends a
	// ledger entry and applies the signed amount to the cached balance.
	Credit(ctx context.Context, req CreditRequest) (*CreditTransaction, error)
	CreditTx(ctx context.Context, tx *gorm.DB, req CreditRequest) (*CreditTransaction, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
	// WeeklyReset tops subscriber balances up to their weekly limit and
	// grants non-subscribers their one lifetime trial credit. Contractors
	// reset less than seven days ago are left alone.
	WeeklyReset(ctx context.Context, batchSize int) (ResetSummary, error)
}

type Repository interface {
	InsertTransaction(ctx context.Context, db *gorm.DB, tx *CreditTransaction) error
	ListByContractor(ctx context.Context, db *gorm.DB, contractorID snowflake.ID, beforeID snowflake.ID, limit int) ([]CreditTransaction, error)
}
