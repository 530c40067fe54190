package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/tradecore/leadengine/internal/actorcontext"
	admindomain "github.com/tradecore/leadengine/internal/admin/domain"
	auditdomain "github.com/tradecore/leadengine/internal/audit/domain"
	"github.com/tradecore/leadengine/internal/clock"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	settlementdomain "github.com/tradecore/leadengine/internal/settlement/domain"
	slotdomain "github.com/tradecore/leadengine/internal/slot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Credits    creditdomain.Service
	Slots      slotdomain.Service
	Settlement settlementdomain.Service
	Audit      auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	credits    creditdomain.Service
	slots      slotdomain.Service
	settlement settlementdomain.Service
	audit      auditdomain.Service
}

func NewService(p Params) admindomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("admin.service"),
		clock:      p.Clock,
		credits:    p.Credits,
		slots:      p.Slots,
		settlement: p.Settlement,
		audit:      p.Audit,
	}
}

// authorize returns the acting admin id. Reason-less or anonymous
// overrides are rejected before any state changes.
func (s *Service) authorize(ctx context.Context, reason string) (string, error) {
	adminID, ok := actorcontext.AdminIDFromContext(ctx)
	if !ok {
		return "", admindomain.ErrUnauthorized
	}
	if strings.TrimSpace(reason) == "" {
		return "", admindomain.ErrReasonRequired
	}
	return adminID, nil
}

func (s *Service) OverrideLeadPrice(ctx context.Context, jobID snowflake.ID, price int64, reason string) error {
	adminID, err := s.authorize(ctx, reason)
	if err != nil {
		return err
	}
	if price < 0 {
		return admindomain.ErrInvalidPrice
	}

	var override *int64
	if price > 0 {
		override = &price
	}

	return s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		result := conn.WithContext(ctx).Exec(
			`UPDATE jobs SET lead_price_override = ?, updated_at = ? WHERE id = ?`,
			override, s.clock.Now(), jobID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return admindomain.ErrJobNotFound
		}
		return s.auditTx(ctx, conn, "admin.override_lead_price", "job", jobID.String(), adminID, reason, map[string]any{
			"price": price,
		})
	})
}

func (s *Service) SetContractorLimit(ctx context.Context, jobID snowflake.ID, newMax int, reason string) error {
	adminID, err := s.authorize(ctx, reason)
	if err != nil {
		return err
	}

	if err := s.slots.SetLimit(ctx, jobID, newMax); err != nil {
		return err
	}
	return s.audit.AuditLog(ctx, "admin.set_contractor_limit", "job", ptr(jobID.String()), map[string]any{
		"admin_user_id":   adminID,
		"reason":          reason,
		"max_contractors": newMax,
	})
}

func (s *Service) LockJob(ctx context.Context, jobID snowflake.ID, reason string) error {
	return s.setLocked(ctx, jobID, true, reason, "admin.lock_job")
}

func (s *Service) UnlockJob(ctx context.Context, jobID snowflake.ID, reason string) error {
	return s.setLocked(ctx, jobID, false, reason, "admin.unlock_job")
}

func (s *Service) setLocked(ctx context.Context, jobID snowflake.ID, locked bool, reason, action string) error {
	adminID, err := s.authorize(ctx, reason)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		result := conn.WithContext(ctx).Exec(
			`UPDATE jobs SET locked = ?, updated_at = ? WHERE id = ?`,
			locked, s.clock.Now(), jobID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return admindomain.ErrJobNotFound
		}
		return s.auditTx(ctx, conn, action, "job", jobID.String(), adminID, reason, nil)
	})
}

func (s *Service) ForceApproveWinner(ctx context.Context, jobID, contractorID snowflake.ID, reason string) error {
	adminID, err := s.authorize(ctx, reason)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		result := conn.WithContext(ctx).Exec(
			`UPDATE jobs SET won_by_contractor_id = ?, updated_at = ? WHERE id = ?`,
			contractorID, s.clock.Now(), jobID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return admindomain.ErrJobNotFound
		}
		return s.auditTx(ctx, conn, "admin.force_approve_winner", "job", jobID.String(), adminID, reason, map[string]any{
			"contractor_id": contractorID.String(),
		})
	})
}

func (s *Service) AdjustCredits(ctx context.Context, contractorID snowflake.ID, amount int64, txType creditdomain.TransactionType, reason string) (*creditdomain.CreditTransaction, error) {
	adminID, err := s.authorize(ctx, reason)
	if err != nil {
		return nil, err
	}
	if txType == "" {
		txType = creditdomain.TransactionTypeAddition
	}

	txn, err := s.credits.Credit(ctx, creditdomain.CreditRequest{
		ContractorID: contractorID,
		Amount:       amount,
		Type:         txType,
		Reason:       reason,
		AdminUserID:  &adminID,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("admin credit adjustment",
		zap.String("admin_user_id", adminID),
		zap.Int64("contractor_id", int64(contractorID)),
		zap.Int64("amount", amount),
		zap.String("type", string(txType)))

	err = s.audit.AuditLog(ctx, "admin.adjust_credits", "contractor", ptr(contractorID.String()), map[string]any{
		"admin_user_id":  adminID,
		"reason":         reason,
		"amount":         amount,
		"type":           string(txType),
		"transaction_id": txn.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) ForceSettle(ctx context.Context, jobID snowflake.ID, finalAmount int64, reason string) (*settlementdomain.Settlement, error) {
	adminID, err := s.authorize(ctx, reason)
	if err != nil {
		return nil, err
	}

	settled, err := s.settlement.Settle(ctx, settlementdomain.SettleRequest{
		JobID:       jobID,
		FinalAmount: finalAmount,
		Reason:      reason,
		Force:       true,
	})
	if err != nil {
		return nil, err
	}

	err = s.audit.AuditLog(ctx, "admin.force_settle", "job", ptr(jobID.String()), map[string]any{
		"admin_user_id": adminID,
		"reason":        reason,
		"final_amount":  finalAmount,
		"commission":    settled.Commission,
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

func (s *Service) auditTx(ctx context.Context, conn *gorm.DB, action, targetType, targetID, adminID, reason string, metadata map[string]any) error {
	payload := map[string]any{
		"admin_user_id": adminID,
		"reason":        reason,
	}
	for key, value := range metadata {
		payload[key] = value
	}
	return s.audit.AuditLogTx(ctx, conn, action, targetType, &targetID, payload)
}

func ptr(s string) *string { return &s }
