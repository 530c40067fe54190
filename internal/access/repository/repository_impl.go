package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/tradecore/leadengine/internal/access/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() accessdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, grant *accessdomain.AccessGrant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO access_grants (
			id, contractor_id, job_id, method, paid_amount, payment_intent_id, purchased_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		grant.ID,
		grant.ContractorID,
		grant.JobID,
		grant.Method,
		grant.PaidAmount,
		grant.PaymentIntentID,
		grant.PurchasedAt,
	).Error
}

func (r *repo) FindByPair(ctx context.Context, db *gorm.DB, contractorID, jobID snowflake.ID) (*accessdomain.AccessGrant, error) {
	var grant accessdomain.AccessGrant
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM access_grants WHERE contractor_id = ? AND job_id = ?`,
		contractorID, jobID,
	).Scan(&grant).Error
	if err != nil {
		return nil, err
	}
	if grant.ID == 0 {
		return nil, nil
	}
	return &grant, nil
}

func (r *repo) FindByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*accessdomain.AccessGrant, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, nil
	}

	var grant accessdomain.AccessGrant
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM access_grants WHERE payment_intent_id = ?`,
		paymentIntentID,
	).Scan(&grant).Error
	if err != nil {
		return nil, err
	}
	if grant.ID == 0 {
		return nil, nil
	}
	return &grant, nil
}
