package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tradecore/leadengine/internal/clock"
	contractordomain "github.com/tradecore/leadengine/internal/contractor/domain"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	obsmetrics "github.com/tradecore/leadengine/internal/observability/metrics"
	"github.com/tradecore/leadengine/pkg/db"
	"github.com/tradecore/leadengine/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const resetInterval = 7 * 24 * time.Hour

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           creditdomain.Repository
	ContractorRepo contractordomain.Repository
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           creditdomain.Repository
	contractorRepo contractordomain.Repository
	obsMetrics     *obsmetrics.Metrics
}

func NewService(p Params) creditdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("credit.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		contractorRepo: p.ContractorRepo,
		obsMetrics:     p.ObsMetrics,
	}
}

func (s *Service) Balance(ctx context.Context, contractorID snowflake.ID) (int64, error) {
	contractor, err := s.contractorRepo.FindByID(ctx, s.db, contractorID)
	if err != nil {
		return 0, err
	}
	if contractor == nil {
		return 0, creditdomain.ErrContractorNotFound
	}
	return contractor.CreditsBalance, nil
}

func (s *Service) Debit(ctx context.Context, req creditdomain.DebitRequest) (*creditdomain.CreditTransaction, error) {
	var tx *creditdomain.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		var err error
		tx, err = s.DebitTx(ctx, conn, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// DebitTx is the atomic compare-and-decrement. The WHERE clause re-checks
// both the balance floor and the debit mode's eligibility so a stale
// eligibility preview can never overdraw or spend a cancelled
// subscription's credit.
func (s *Service) DebitTx(ctx context.Context, conn *gorm.DB, req creditdomain.DebitRequest) (*creditdomain.CreditTransaction, error) {
	amount := req.Amount
	if amount == 0 {
		amount = 1
	}
	if amount < 0 {
		return nil, creditdomain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, creditdomain.ErrReasonRequired
	}

	now := s.clock.Now()
	var result *gorm.DB
	switch req.Mode {
	case creditdomain.DebitModeTrial:
		result = conn.WithContext(ctx).Exec(
			`UPDATE contractors
			 SET credits_balance = credits_balance - ?, trial_credit_used = ?, updated_at = ?
			 WHERE id = ? AND credits_balance >= ? AND trial_credit_granted = ? AND trial_credit_used = ?`,
			amount, true, now, req.ContractorID, amount, true, false,
		)
	default:
		result = conn.WithContext(ctx).Exec(
			`UPDATE contractors
			 SET credits_balance = credits_balance - ?, updated_at = ?
			 WHERE id = ? AND credits_balance >= ? AND subscription_active = ?`,
			amount, now, req.ContractorID, amount, true,
		)
	}
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		s.obsMetrics.IncCreditDebit("rejected")
		return nil, s.classifyDebitFailure(ctx, conn, req, amount)
	}

	tx := &creditdomain.CreditTransaction{
		ID:           s.genID.Generate(),
		ContractorID: req.ContractorID,
		Amount:       -amount,
		Type:         creditdomain.TransactionTypeDeduction,
		Reason:       reason,
		CreatedAt:    now,
	}
	if err := s.repo.InsertTransaction(ctx, conn, tx); err != nil {
		return nil, err
	}
	s.obsMetrics.IncCreditDebit("ok")
	return tx, nil
}

// classifyDebitFailure distinguishes a missing contractor, an empty
// balance, and a raced eligibility change after a zero-row update.
func (s *Service) classifyDebitFailure(ctx context.Context, conn *gorm.DB, req creditdomain.DebitRequest, amount int64) error {
	contractor, err := s.contractorRepo.FindByID(ctx, conn, req.ContractorID)
	if err != nil {
		return err
	}
	if contractor == nil {
		return creditdomain.ErrContractorNotFound
	}
	if contractor.CreditsBalance < amount {
		return &creditdomain.InsufficientCreditsError{Balance: contractor.CreditsBalance}
	}
	return creditdomain.ErrNotEligible
}

func (s *Service) Credit(ctx context.Context, req creditdomain.CreditRequest) (*creditdomain.CreditTransaction, error) {
	var tx *creditdomain.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		var err error
		tx, err = s.CreditTx(ctx, conn, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Service) CreditTx(ctx context.Context, conn *gorm.DB, req creditdomain.CreditRequest) (*creditdomain.CreditTransaction, error) {
	if req.Amount == 0 {
		return nil, creditdomain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, creditdomain.ErrReasonRequired
	}
	txType := req.Type
	if txType == "" {
		txType = creditdomain.TransactionTypeAddition
	}

	now := s.clock.Now()
	result := conn.WithContext(ctx).Exec(
		`UPDATE contractors SET credits_balance = credits_balance + ?, updated_at = ? WHERE id = ?`,
		req.Amount, now, req.ContractorID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, creditdomain.ErrContractorNotFound
	}

	tx := &creditdomain.CreditTransaction{
		ID:           s.genID.Generate(),
		ContractorID: req.ContractorID,
		Amount:       req.Amount,
		Type:         txType,
		Reason:       reason,
		AdminUserID:  req.AdminUserID,
		CreatedAt:    now,
	}
	if err := s.repo.InsertTransaction(ctx, conn, tx); err != nil {
		return nil, err
	}
	s.obsMetrics.IncCreditGrant(string(txType))
	return tx, nil
}

func (s *Service) History(ctx context.Context, req creditdomain.HistoryRequest) (creditdomain.HistoryResponse, error) {
	limit := req.PageSize
	if limit <= 0 {
		limit = 10
	}

	var beforeID snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return creditdomain.HistoryResponse{}, err
		}
		parsed, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return creditdomain.HistoryResponse{}, err
		}
		beforeID = parsed
	}

	transactions, err := s.repo.ListByContractor(ctx, s.db, req.ContractorID, beforeID, limit+1)
	if err != nil {
		return creditdomain.HistoryResponse{}, err
	}

	resp := creditdomain.HistoryResponse{Transactions: transactions}
	if len(transactions) > limit {
		resp.Transactions = transactions[:limit]
		resp.HasMore = true
		last := resp.Transactions[limit-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: last.ID.String()})
		if err != nil {
			return creditdomain.HistoryResponse{}, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}

// WeeklyReset claims due contractors with row locks so a sweep never races
// an in-flight debit: both paths serialize on the contractor row.
func (s *Service) WeeklyReset(ctx context.Context, batchSize int) (creditdomain.ResetSummary, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	summary := creditdomain.ResetSummary{}
	now := s.clock.Now()
	cutoff := now.Add(-resetInterval)

	err := s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		var due []contractordomain.Contractor
		if err := conn.WithContext(ctx).Raw(
			`SELECT * FROM contractors
			 WHERE last_credit_reset <= ?
			 ORDER BY id
			 LIMIT ?`+db.ForUpdateSkipLocked(conn),
			cutoff, batchSize,
		).Scan(&due).Error; err != nil {
			return err
		}

		for _, contractor := range due {
			if err := s.resetOne(ctx, conn, contractor, now, &summary); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return creditdomain.ResetSummary{}, err
	}
	return summary, nil
}

func (s *Service) resetOne(ctx context.Context, conn *gorm.DB, contractor contractordomain.Contractor, now time.Time, summary *creditdomain.ResetSummary) error {
	summary.Processed++

	if contractor.IsSubscriber() {
		delta := contractor.WeeklyCreditsLimit - contractor.CreditsBalance
		if delta > 0 {
			// Top up to the ceiling, not additive. The guard re-checks the
			// balance so a debit committed between claim and update cannot
			// push the result above the limit.
			result := conn.WithContext(ctx).Exec(
				`UPDATE contractors
				 SET credits_balance = ?, last_credit_reset = ?, updated_at = ?
				 WHERE id = ? AND credits_balance = ?`,
				contractor.WeeklyCreditsLimit, now, now, contractor.ID, contractor.CreditsBalance,
			)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				s.obsMetrics.IncResetContractor("skipped_raced")
				return nil
			}
			tx := &creditdomain.CreditTransaction{
				ID:           s.genID.Generate(),
				ContractorID: contractor.ID,
				Amount:       delta,
				Type:         creditdomain.TransactionTypeWeeklyAllocation,
				Reason:       "weekly credit allocation (top-up to " + strconv.FormatInt(contractor.WeeklyCreditsLimit, 10) + ")",
				CreatedAt:    now,
			}
			if err := s.repo.InsertTransaction(ctx, conn, tx); err != nil {
				return err
			}
			summary.ToppedUp++
			s.obsMetrics.IncResetContractor("topped_up")
		} else {
			if err := s.touchReset(ctx, conn, contractor.ID, now); err != nil {
				return err
			}
			s.obsMetrics.IncResetContractor("at_ceiling")
		}
		return nil
	}

	// Non-subscribers get exactly one lifetime free-trial credit, never
	// renewed on later sweeps.
	if !contractor.TrialCreditGranted {
		result := conn.WithContext(ctx).Exec(
			`UPDATE contractors
			 SET credits_balance = credits_balance + 1, trial_credit_granted = ?,
			     last_credit_reset = ?, updated_at = ?
			 WHERE id = ? AND trial_credit_granted = ?`,
			true, now, now, contractor.ID, false,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			s.obsMetrics.IncResetContractor("skipped_raced")
			return nil
		}
		tx := &creditdomain.CreditTransaction{
			ID:           s.genID.Generate(),
			ContractorID: contractor.ID,
			Amount:       1,
			Type:         creditdomain.TransactionTypeBonus,
			Reason:       "free trial credit",
			CreatedAt:    now,
		}
		if err := s.repo.InsertTransaction(ctx, conn, tx); err != nil {
			return err
		}
		summary.TrialsGranted++
		s.obsMetrics.IncResetContractor("trial_granted")
		return nil
	}

	if err := s.touchReset(ctx, conn, contractor.ID, now); err != nil {
		return err
	}
	s.obsMetrics.IncResetContractor("no_change")
	return nil
}

func (s *Service) touchReset(ctx context.Context, conn *gorm.DB, id snowflake.ID, now time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE contractors SET last_credit_reset = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	).Error
}
