package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	contractordomain "github.com/tradecore/leadengine/internal/contractor/domain"
	"github.com/tradecore/leadengine/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() contractordomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, contractor *contractordomain.Contractor) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO contractors (
			id, display_name, email, credits_balance, weekly_credits_limit,
			last_credit_reset, subscription_active, subscription_status,
			subscription_plan, trial_credit_granted, trial_credit_used,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contractor.ID,
		contractor.DisplayName,
		contractor.Email,
		contractor.CreditsBalance,
		contractor.WeeklyCreditsLimit,
		contractor.LastCreditReset,
		contractor.SubscriptionActive,
		contractor.SubscriptionStatus,
		contractor.SubscriptionPlan,
		contractor.TrialCreditGranted,
		contractor.TrialCreditUsed,
		contractor.CreatedAt,
		contractor.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*contractordomain.Contractor, error) {
	return r.findByID(ctx, conn, id, "")
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*contractordomain.Contractor, error) {
	return r.findByID(ctx, conn, id, db.ForUpdate(conn))
}

func (r *repo) findByID(ctx context.Context, conn *gorm.DB, id snowflake.ID, lock string) (*contractordomain.Contractor, error) {
	var contractor contractordomain.Contractor
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM contractors WHERE id = ?`+lock,
		id,
	).Scan(&contractor).Error
	if err != nil {
		return nil, err
	}
	if contractor.ID == 0 {
		return nil, nil
	}
	return &contractor, nil
}
