// Package domain contains the access grant model and the purchase
// operations exposed by the engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Method is a way of paying for a lead unlock.
type Method string

const (
	// MethodCredit spends one ledger credit; commission applies on
	// completion.
	MethodCredit Method = "CREDIT"
	// MethodStripe is pay-per-lead by card, VAT added on top; commission
	// applies on completion.
	MethodStripe Method = "STRIPE"
	// MethodStripeSubscriber pays the lead price in full with no later
	// commission. Subscribers only.
	MethodStripeSubscriber Method = "STRIPE_SUBSCRIBER"
)

// AccessGrant records that a contractor purchased access to a job.
// Created exactly once per (contractor, job) pair; immutable afterwards.
type AccessGrant struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	ContractorID    snowflake.ID `gorm:"not null;uniqueIndex:ux_access_grants_contractor_job,priority:1"`
	JobID           snowflake.ID `gorm:"not null;uniqueIndex:ux_access_grants_contractor_job,priority:2;index"`
	Method          Method       `gorm:"type:text;not null"`
	PaidAmount      int64        `gorm:"not null"`
	PaymentIntentID *string      `gorm:"type:text;uniqueIndex"`
	PurchasedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AccessGrant) TableName() string { return "access_grants" }
