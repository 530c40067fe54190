package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/tradecore/leadengine/internal/access/domain"
	auditdomain "github.com/tradecore/leadengine/internal/audit/domain"
	"github.com/tradecore/leadengine/internal/clock"
	"github.com/tradecore/leadengine/internal/config"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
	obsmetrics "github.com/tradecore/leadengine/internal/observability/metrics"
	settlementdomain "github.com/tradecore/leadengine/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config     config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	JobRepo    jobdomain.Repository
	AccessRepo accessdomain.Repository
	Credits    creditdomain.Service
	Audit      auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	jobRepo    jobdomain.Repository
	accessRepo accessdomain.Repository
	credits    creditdomain.Service
	audit      auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) settlementdomain.Service {
	return &Service{
		cfg:        p.Config,
		db:         p.DB,
		log:        p.Log.Named("settlement.service"),
		clock:      p.Clock,
		jobRepo:    p.JobRepo,
		accessRepo: p.AccessRepo,
		credits:    p.Credits,
		audit:      p.Audit,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Settle(ctx context.Context, req settlementdomain.SettleRequest) (*settlementdomain.Settlement, error) {
	if req.FinalAmount <= 0 {
		return nil, settlementdomain.ErrInvalidAmount
	}

	var settlement *settlementdomain.Settlement
	err := s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		var err error
		settlement, err = s.settleTx(ctx, conn, req)
		return err
	})
	if err != nil {
		s.obsMetrics.IncSettlement("rejected")
		return nil, err
	}

	s.obsMetrics.IncSettlement("ok")
	s.log.Info("job settled",
		zap.Int64("job_id", int64(settlement.JobID)),
		zap.Int64("contractor_id", int64(settlement.ContractorID)),
		zap.Int64("final_amount", settlement.FinalAmount),
		zap.Int64("commission", settlement.Commission),
		zap.Bool("exempt", settlement.Exempt))
	return settlement, nil
}

func (s *Service) settleTx(ctx context.Context, conn *gorm.DB, req settlementdomain.SettleRequest) (*settlementdomain.Settlement, error) {
	job, err := s.jobRepo.FindByIDForUpdate(ctx, conn, req.JobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, settlementdomain.ErrJobNotFound
	}
	if job.CommissionPaid {
		return nil, settlementdomain.ErrAlreadySettled
	}
	if job.WonByContractorID == nil {
		return nil, settlementdomain.ErrNoWinner
	}
	if !req.Force {
		if job.Status != jobdomain.JobStatusCompleted {
			return nil, settlementdomain.ErrJobNotCompleted
		}
		if !job.CustomerConfirmed {
			return nil, settlementdomain.ErrNotConfirmed
		}
	}

	winnerID := *job.WonByContractorID
	commission, exempt, err := s.commissionFor(ctx, conn, winnerID, req.JobID, req.FinalAmount)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	// The row lock above already serializes settlers; the guard still
	// re-checks the flag so an unlocked dialect cannot double-charge.
	result := conn.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET commission_paid = ?, final_amount = ?, status = ?, updated_at = ?
		 WHERE id = ? AND commission_paid = ?`,
		true, req.FinalAmount, jobdomain.JobStatusCompleted, now, req.JobID, false,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, settlementdomain.ErrAlreadySettled
	}

	if commission > 0 {
		reason := req.Reason
		if reason == "" {
			reason = fmt.Sprintf("commission on completed job %d", req.JobID)
		}
		_, err = s.credits.CreditTx(ctx, conn, creditdomain.CreditRequest{
			ContractorID: winnerID,
			Amount:       -commission,
			Type:         creditdomain.TransactionTypeDeduction,
			Reason:       reason,
		})
		if err != nil {
			return nil, err
		}
	}

	jobID := req.JobID.String()
	err = s.audit.AuditLogTx(ctx, conn, "settlement.settle", "job", &jobID, map[string]any{
		"contractor_id": winnerID.String(),
		"final_amount":  req.FinalAmount,
		"commission":    commission,
		"exempt":        exempt,
		"forced":        req.Force,
	})
	if err != nil {
		return nil, err
	}

	return &settlementdomain.Settlement{
		JobID:        req.JobID,
		ContractorID: winnerID,
		FinalAmount:  req.FinalAmount,
		Commission:   commission,
		Exempt:       exempt,
	}, nil
}

// commissionFor computes the platform fee for the winner's access method.
// Credit and pay-per-lead card unlocks owe the percentage fee; a
// subscriber who paid the lead price in full owes nothing, and neither
// does a winner who never purchased access (admin approved).
func (s *Service) commissionFor(ctx context.Context, conn *gorm.DB, contractorID, jobID snowflake.ID, finalAmount int64) (int64, bool, error) {
	grant, err := s.accessRepo.FindByPair(ctx, conn, contractorID, jobID)
	if err != nil {
		return 0, false, err
	}
	if grant == nil || grant.Method == accessdomain.MethodStripeSubscriber {
		return 0, true, nil
	}
	return finalAmount * s.cfg.CommissionRatePercent / 100, false, nil
}

func (s *Service) MarkCompleted(ctx context.Context, jobID, contractorID snowflake.ID, finalAmount int64, reason string) error {
	if finalAmount <= 0 {
		return settlementdomain.ErrInvalidAmount
	}

	var confirmed bool
	err := s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		job, err := s.jobRepo.FindByIDForUpdate(ctx, conn, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return settlementdomain.ErrJobNotFound
		}
		if job.CommissionPaid {
			return settlementdomain.ErrAlreadySettled
		}
		confirmed = job.CustomerConfirmed

		return conn.WithContext(ctx).Exec(
			`UPDATE jobs
			 SET status = ?, won_by_contractor_id = ?, final_amount = ?, updated_at = ?
			 WHERE id = ?`,
			jobdomain.JobStatusCompleted, contractorID, finalAmount, s.clock.Now(), jobID,
		).Error
	})
	if err != nil {
		return err
	}

	if !confirmed {
		return nil
	}
	_, err = s.Settle(ctx, settlementdomain.SettleRequest{
		JobID:       jobID,
		FinalAmount: finalAmount,
		Reason:      reason,
	})
	return err
}

func (s *Service) ConfirmByCustomer(ctx context.Context, jobID snowflake.ID) error {
	var job *jobdomain.Job
	err := s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		var err error
		job, err = s.jobRepo.FindByIDForUpdate(ctx, conn, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return settlementdomain.ErrJobNotFound
		}
		return conn.WithContext(ctx).Exec(
			`UPDATE jobs SET customer_confirmed = ?, updated_at = ? WHERE id = ?`,
			true, s.clock.Now(), jobID,
		).Error
	})
	if err != nil {
		return err
	}

	if job.CommissionPaid || job.Status != jobdomain.JobStatusCompleted ||
		job.WonByContractorID == nil || job.FinalAmount == nil {
		return nil
	}
	_, err = s.Settle(ctx, settlementdomain.SettleRequest{
		JobID:       jobID,
		FinalAmount: *job.FinalAmount,
	})
	return err
}
