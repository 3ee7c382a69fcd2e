package persistence

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tidyops/backend/internal/domain/shared"
)

// TenantScope restricts a query to one tenant's rows
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// translateError maps GORM sentinel errors to domain errors
func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// requireAffected returns ErrNotFound when a write touched no rows
func requireAffected(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
