package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/infrastructure/persistence/models"
)

// GormClientRepository implements crm.ClientRepository
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindAllForTenant returns a tenant's clients ordered by name
func (r *GormClientRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]crm.Client, error) {
	return r.find(r.db.WithContext(ctx).Scopes(TenantScope(tenantID)).Order("name ASC"))
}

// FindByIDForTenant finds a client within a tenant
func (r *GormClientRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Client, error) {
	var m models.ClientModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindInactive returns active clients never serviced or last serviced before
// since, longest-idle first.
func (r *GormClientRepository) FindInactive(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]crm.Client, error) {
	return r.find(r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("status = ?", crm.ClientStatusActive).
		Where("last_service_date IS NULL OR last_service_date < ?", since).
		Order("last_service_date ASC, name ASC"))
}

// Save inserts or updates a client
func (r *GormClientRepository) Save(ctx context.Context, c *crm.Client) error {
	return r.db.WithContext(ctx).Save(models.ClientModelFromDomain(c)).Error
}

// DeleteForTenant deletes a client within a tenant
func (r *GormClientRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return requireAffected(r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.ClientModel{}))
}

func (r *GormClientRepository) find(q *gorm.DB) ([]crm.Client, error) {
	var rows []models.ClientModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]crm.Client, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

var _ crm.ClientRepository = (*GormClientRepository)(nil)
