package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/infrastructure/persistence/models"
)

// GormAppointmentRepository implements scheduling.AppointmentRepository
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository creates a GormAppointmentRepository
func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// FindByDate returns one day of a tenant's appointments ordered by start time
func (r *GormAppointmentRepository) FindByDate(ctx context.Context, tenantID uuid.UUID, date string) ([]scheduling.Appointment, error) {
	var rows []models.AppointmentModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("date = ?", date).
		Order("start_time ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]scheduling.Appointment, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// FindByIDForTenant finds an appointment within a tenant
func (r *GormAppointmentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Appointment, error) {
	var m models.AppointmentModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// Save inserts or updates an appointment
func (r *GormAppointmentRepository) Save(ctx context.Context, a *scheduling.Appointment) error {
	return r.db.WithContext(ctx).Save(models.AppointmentModelFromDomain(a)).Error
}

// DeleteForTenant deletes an appointment within a tenant
func (r *GormAppointmentRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return requireAffected(r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.AppointmentModel{}))
}

var _ scheduling.AppointmentRepository = (*GormAppointmentRepository)(nil)
