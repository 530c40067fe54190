// Package domain contains the credit ledger models. The ledger is
// append-only; the balance cached on the contractor row is maintained in
// the same transaction as every ledger row so the two never diverge.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeAddition         TransactionType = "ADDITION"
	TransactionTypeDeduction        TransactionType = "DEDUCTION"
	TransactionTypeWeeklyAllocation TransactionType = "WEEKLY_ALLOCATION"
	TransactionTypeBonus            TransactionType = "BONUS"
)

// CreditTransaction is an immutable audit entry. Amount is signed: debits
// and commission deductions are negative, allocations positive.
type CreditTransaction struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	ContractorID snowflake.ID    `gorm:"not null;index"`
	Amount       int64           `gorm:"not null"`
	Type         TransactionType `gorm:"type:text;not null"`
	Reason       string          `gorm:"type:text;not null"`
	AdminUserID  *string         `gorm:"type:text"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }
