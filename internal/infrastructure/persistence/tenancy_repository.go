package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tidyops/backend/internal/domain/shared"
	"github.com/tidyops/backend/internal/domain/tenancy"
	"github.com/tidyops/backend/internal/infrastructure/persistence/models"
)

// GormProfileRepository implements tenancy.ProfileRepository
type GormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a GormProfileRepository
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

// FindByUserID returns the profile of a user, or ErrNotFound
func (r *GormProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*tenancy.Profile, error) {
	var m models.ProfileModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// GormMembershipRepository implements tenancy.MembershipRepository
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository creates a GormMembershipRepository
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// FindByUserID returns a user's memberships with their companies, oldest first
func (r *GormMembershipRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (tenancy.Memberships, error) {
	var rows []models.MembershipModel
	if err := r.db.WithContext(ctx).
		Preload("Company").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make(tenancy.Memberships, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// GormCompanySwitcher implements tenancy.CompanySwitcher
type GormCompanySwitcher struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCompanySwitcher creates a GormCompanySwitcher
func NewGormCompanySwitcher(db *gorm.DB) *GormCompanySwitcher {
	return &GormCompanySwitcher{db: db, now: time.Now}
}

// SwitchActiveCompany sets the profile's active company after verifying, in
// the same transaction, that the user is a member of it.
func (s *GormCompanySwitcher) SwitchActiveCompany(ctx context.Context, userID, companyID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.MembershipModel{}).
			Where("user_id = ? AND company_id = ?", userID, companyID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrUnknownCompany
		}

		return requireAffected(tx.Model(&models.ProfileModel{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"active_company_id": companyID,
				"updated_at":        s.now(),
			}))
	})
}

var (
	_ tenancy.ProfileRepository    = (*GormProfileRepository)(nil)
	_ tenancy.MembershipRepository = (*GormMembershipRepository)(nil)
	_ tenancy.CompanySwitcher      = (*GormCompanySwitcher)(nil)
)
