package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	InsertService(ctx context.Context, db *gorm.DB, service *Service) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	FindService(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Service, error)
}

var (
	ErrJobNotFound     = errors.New("job_not_found")
	ErrServiceNotFound = errors.New("service_not_found")
)
