package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contractor *Contractor) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contractor, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contractor, error)
}

var (
	ErrContractorNotFound = errors.New("contractor_not_found")
)
