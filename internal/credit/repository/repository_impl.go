package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() creditdomain.Repository {
	return &repo{}
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *creditdomain.CreditTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (
			id, contractor_id, amount, type, reason, admin_user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.ContractorID,
		tx.Amount,
		tx.Type,
		tx.Reason,
		tx.AdminUserID,
		tx.CreatedAt,
	).Error
}

func (r *repo) ListByContractor(ctx context.Context, db *gorm.DB, contractorID snowflake.ID, beforeID snowflake.ID, limit int) ([]creditdomain.CreditTransaction, error) {
	query := `SELECT * FROM credit_transactions WHERE contractor_id = ?`
	args := []any{contractorID}
	if beforeID != 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var transactions []creditdomain.CreditTransaction
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}
