package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	AuditLog(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error
	// AuditLogTx writes the entry inside the caller's transaction so the
	// audit trail commits or rolls back with the change it describes.
	AuditLogTx(ctx context.Context, tx *gorm.DB, action string, targetType string, targetID *string, metadata map[string]any) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
}

var (
	ErrInvalidAction = errors.New("invalid_action")
)
