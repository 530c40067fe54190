package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
	slotdomain "github.com/tradecore/leadengine/internal/slot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	JobRepo jobdomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	jobRepo jobdomain.Repository
}

func NewService(p Params) slotdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("slot.service"),
		jobRepo: p.JobRepo,
	}
}

// ReserveTx increments the access counter only while it is below the cap.
// Two concurrent callers cannot both observe room: the UPDATE's WHERE
// clause is the only admission check.
func (s *Service) ReserveTx(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) error {
	result := tx.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET contractors_with_access = contractors_with_access + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND locked = ? AND contractors_with_access < max_contractors`,
		jobID, false,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	job, err := s.jobRepo.FindByID(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return slotdomain.ErrJobNotFound
	}
	if job.Locked {
		return slotdomain.ErrJobLocked
	}
	return &slotdomain.SlotsFullError{MaxContractors: job.MaxContractors}
}

// ReleaseTx is the compensating decrement for a failed purchase. Floored
// at zero so a duplicate release cannot underflow the counter.
func (s *Service) ReleaseTx(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET contractors_with_access = contractors_with_access - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND contractors_with_access > 0`,
		jobID,
	).Error
}

func (s *Service) Release(ctx context.Context, jobID snowflake.ID) error {
	return s.ReleaseTx(ctx, s.db, jobID)
}

func (s *Service) SetLimit(ctx context.Context, jobID snowflake.ID, newMax int) error {
	if newMax < 1 {
		return slotdomain.ErrInvalidLimit
	}

	result := s.db.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET max_contractors = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND contractors_with_access <= ?`,
		newMax, jobID, newMax,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	job, err := s.jobRepo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return slotdomain.ErrJobNotFound
	}
	return slotdomain.ErrInvalidLimit
}
