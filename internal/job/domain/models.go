// Package domain contains persistence models for jobs and their per-size
// service price tables.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// JobSize buckets a job for pricing.
type JobSize string

const (
	JobSizeSmall  JobSize = "SMALL"
	JobSizeMedium JobSize = "MEDIUM"
	JobSizeLarge  JobSize = "LARGE"
)

// JobStatus represents lifecycle states for a posted job.
type JobStatus string

const (
	JobStatusOpen      JobStatus = "OPEN"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Job is a customer posting. The access counters on it are the source of
// truth for slot allocation and are mutated only through atomic updates.
type Job struct {
	ID                    snowflake.ID  `gorm:"primaryKey"`
	ServiceID             *snowflake.ID `gorm:"index"`
	Title                 string        `gorm:"type:text;not null"`
	Description           string        `gorm:"type:text"`
	JobSize               JobSize       `gorm:"type:text;not null"`
	Budget                *int64        `gorm:""`
	LeadPriceOverride     *int64        `gorm:""`
	MaxContractors        int           `gorm:"not null;default:5"`
	ContractorsWithAccess int           `gorm:"not null;default:0"`
	Status                JobStatus     `gorm:"type:text;not null;default:OPEN"`
	Locked                bool          `gorm:"not null;default:false"`
	CustomerName          *string       `gorm:"type:text"`
	CustomerPhone         *string       `gorm:"type:text"`
	CustomerEmail         *string       `gorm:"type:text"`
	WonByContractorID     *snowflake.ID `gorm:""`
	FinalAmount           *int64        `gorm:""`
	CommissionPaid        bool          `gorm:"not null;default:false"`
	CustomerConfirmed     bool          `gorm:"not null;default:false"`
	CreatedAt             time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Job) TableName() string { return "jobs" }

// Service is the per-job-size lead price table for a trade category.
type Service struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	Name           string       `gorm:"type:text;not null"`
	SmallJobPrice  int64        `gorm:"not null;default:0"`
	MediumJobPrice int64        `gorm:"not null;default:0"`
	LargeJobPrice  int64        `gorm:"not null;default:0"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Service) TableName() string { return "services" }
