package models

import (
	"time"

	"github.com/tidyops/backend/internal/domain/crm"
)

// ClientModel is the persistence model for crm.Client
type ClientModel struct {
	TenantAggregateModel
	Name            string            `gorm:"type:varchar(200);not null"`
	Email           string            `gorm:"type:varchar(200)"`
	Phone           string            `gorm:"type:varchar(50)"`
	Address         string            `gorm:"type:text"`
	Status          crm.ClientStatus  `gorm:"type:varchar(20);not null;default:'active'"`
	Stage           crm.PipelineStage `gorm:"type:varchar(20);not null;default:'lead'"`
	LastServiceDate *time.Time        `gorm:"index"`
	Notes           string            `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the model to a domain Client
func (m *ClientModel) ToDomain() *crm.Client {
	return &crm.Client{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		Name:                m.Name,
		Email:               m.Email,
		Phone:               m.Phone,
		Address:             m.Address,
		Status:              m.Status,
		Stage:               m.Stage,
		LastServiceDate:     m.LastServiceDate,
		Notes:               m.Notes,
	}
}

// FromDomain populates the model from a domain Client
func (m *ClientModel) FromDomain(c *crm.Client) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Address = c.Address
	m.Status = c.Status
	m.Stage = c.Stage
	m.LastServiceDate = c.LastServiceDate
	m.Notes = c.Notes
}

// ClientModelFromDomain creates a persistence model from a domain Client
func ClientModelFromDomain(c *crm.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}
