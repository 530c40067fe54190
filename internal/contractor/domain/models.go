// Package domain contains the contractor persistence model. Credit
// balances on it are mutated only by the credit ledger and admin
// adjustments, always together with a transaction row.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus mirrors the billing provider's view of a contractor's plan.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "NONE"
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
)

type Contractor struct {
	ID                 snowflake.ID       `gorm:"primaryKey"`
	DisplayName        string             `gorm:"type:text;not null"`
	Email              *string            `gorm:"type:text"`
	CreditsBalance     int64              `gorm:"not null;default:0"`
	WeeklyCreditsLimit int64              `gorm:"not null;default:0"`
	LastCreditReset    time.Time          `gorm:"not null"`
	SubscriptionActive bool               `gorm:"not null;default:false"`
	SubscriptionStatus SubscriptionStatus `gorm:"type:text;not null;default:NONE"`
	SubscriptionPlan   *string            `gorm:"type:text"`
	TrialCreditGranted bool               `gorm:"not null;default:false"`
	TrialCreditUsed    bool               `gorm:"not null;default:false"`
	CreatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Contractor) TableName() string { return "contractors" }

// IsSubscriber reports whether the contractor currently holds an active
// paid subscription.
func (c Contractor) IsSubscriber() bool {
	return c.SubscriptionActive && c.SubscriptionStatus == SubscriptionStatusActive
}

// HasUnusedTrialCredit reports whether the lifetime free-trial credit has
// been granted and not yet spent.
func (c Contractor) HasUnusedTrialCredit() bool {
	return c.TrialCreditGranted && !c.TrialCreditUsed
}
