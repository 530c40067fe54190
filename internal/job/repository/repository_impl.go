package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
	"github.com/tradecore/leadengine/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() jobdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, job *jobdomain.Job) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO jobs (
			id, service_id, title, description, job_size, budget, lead_price_override,
			max_contractors, contractors_with_access, status, locked,
			customer_name, customer_phone, customer_email,
			won_by_contractor_id, final_amount, commission_paid, customer_confirmed,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.ServiceID,
		job.Title,
		job.Description,
		job.JobSize,
		job.Budget,
		job.LeadPriceOverride,
		job.MaxContractors,
		job.ContractorsWithAccess,
		job.Status,
		job.Locked,
		job.CustomerName,
		job.CustomerPhone,
		job.CustomerEmail,
		job.WonByContractorID,
		job.FinalAmount,
		job.CommissionPaid,
		job.CustomerConfirmed,
		job.CreatedAt,
		job.UpdatedAt,
	).Error
}

func (r *repo) InsertService(ctx context.Context, conn *gorm.DB, service *jobdomain.Service) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO services (
			id, name, small_job_price, medium_job_price, large_job_price, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		service.ID,
		service.Name,
		service.SmallJobPrice,
		service.MediumJobPrice,
		service.LargeJobPrice,
		service.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*jobdomain.Job, error) {
	return r.findByID(ctx, conn, id, "")
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*jobdomain.Job, error) {
	return r.findByID(ctx, conn, id, db.ForUpdate(conn))
}

func (r *repo) findByID(ctx context.Context, conn *gorm.DB, id snowflake.ID, lock string) (*jobdomain.Job, error) {
	var job jobdomain.Job
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM jobs WHERE id = ?`+lock,
		id,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) FindService(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*jobdomain.Service, error) {
	var service jobdomain.Service
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM services WHERE id = ?`,
		id,
	).Scan(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if service.ID == 0 {
		return nil, nil
	}
	return &service, nil
}
