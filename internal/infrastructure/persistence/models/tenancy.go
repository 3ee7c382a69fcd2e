package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tidyops/backend/internal/domain/tenancy"
)

// CompanyModel is a tenant
type CompanyModel struct {
	BaseModel
	Name        string     `gorm:"type:varchar(200);not null"`
	Slug        string     `gorm:"type:varchar(100);not null;uniqueIndex"`
	Type        string     `gorm:"type:varchar(50);not null;default:'cleaning'"`
	Status      string     `gorm:"type:varchar(20);not null;default:'active'"`
	TrialEndsAt *time.Time `gorm:"column:trial_ends_at"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the model to a domain Company
func (m *CompanyModel) ToDomain() tenancy.Company {
	return tenancy.Company{
		ID:          m.ID,
		Name:        m.Name,
		Slug:        m.Slug,
		Type:        m.Type,
		Status:      m.Status,
		TrialEndsAt: m.TrialEndsAt,
	}
}

// MembershipModel links a user to a company with a role
type MembershipModel struct {
	BaseModel
	UserID    uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_company,priority:1"`
	CompanyID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_company,priority:2"`
	Role      tenancy.Role `gorm:"type:varchar(20);not null;default:'member'"`
	Company   CompanyModel `gorm:"foreignKey:CompanyID"`
}

// TableName returns the table name for GORM
func (MembershipModel) TableName() string {
	return "company_memberships"
}

// ToDomain converts the model, including its preloaded company
func (m *MembershipModel) ToDomain() tenancy.Membership {
	return tenancy.Membership{
		ID:        m.ID,
		CompanyID: m.CompanyID,
		Role:      m.Role,
		Company:   m.Company.ToDomain(),
	}
}

// ProfileModel holds per-user settings, including the active company
type ProfileModel struct {
	UserID          uuid.UUID    `gorm:"type:uuid;primaryKey"`
	FullName        string       `gorm:"type:varchar(200)"`
	CompanyID       *uuid.UUID   `gorm:"type:uuid"`
	ActiveCompanyID *uuid.UUID   `gorm:"type:uuid"`
	Role            tenancy.Role `gorm:"type:varchar(20);not null;default:'member'"`
	IsPlatformAdmin bool         `gorm:"not null;default:false"`
	CreatedAt       time.Time    `gorm:"not null"`
	UpdatedAt       time.Time    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProfileModel) TableName() string {
	return "profiles"
}

// ToDomain converts the model to a domain Profile
func (m *ProfileModel) ToDomain() *tenancy.Profile {
	return &tenancy.Profile{
		UserID:          m.UserID,
		FullName:        m.FullName,
		CompanyID:       m.CompanyID,
		ActiveCompanyID: m.ActiveCompanyID,
		Role:            m.Role,
		IsPlatformAdmin: m.IsPlatformAdmin,
	}
}
