package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tidyops/backend/internal/domain/scheduling"
)

// AppointmentModel is the persistence model for scheduling.Appointment
type AppointmentModel struct {
	TenantAggregateModel
	ClientID       uuid.UUID                    `gorm:"type:uuid;not null;index"`
	TechnicianID   *uuid.UUID                   `gorm:"type:uuid;index"`
	Date           string                       `gorm:"type:varchar(10);not null;index"`
	StartTime      string                       `gorm:"type:varchar(5);not null"`
	EndTime        string                       `gorm:"type:varchar(5);not null"`
	ServiceType    scheduling.ServiceType       `gorm:"type:varchar(30);not null"`
	Status         scheduling.AppointmentStatus `gorm:"type:varchar(20);not null;default:'scheduled'"`
	Price          decimal.Decimal              `gorm:"type:decimal(12,2);not null;default:0"`
	CommissionRate decimal.Decimal              `gorm:"type:decimal(5,4);not null;default:0"`
	Notes          string                       `gorm:"type:text"`
	CompletedAt    *time.Time
}

// TableName returns the table name for GORM
func (AppointmentModel) TableName() string {
	return "appointments"
}

// ToDomain converts the model to a domain Appointment
func (m *AppointmentModel) ToDomain() *scheduling.Appointment {
	return &scheduling.Appointment{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		ClientID:            m.ClientID,
		TechnicianID:        m.TechnicianID,
		Date:                m.Date,
		StartTime:           m.StartTime,
		EndTime:             m.EndTime,
		ServiceType:         m.ServiceType,
		Status:              m.Status,
		Price:               m.Price,
		CommissionRate:      m.CommissionRate,
		Notes:               m.Notes,
		CompletedAt:         m.CompletedAt,
	}
}

// FromDomain populates the model from a domain Appointment
func (m *AppointmentModel) FromDomain(a *scheduling.Appointment) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.ClientID = a.ClientID
	m.TechnicianID = a.TechnicianID
	m.Date = a.Date
	m.StartTime = a.StartTime
	m.EndTime = a.EndTime
	m.ServiceType = a.ServiceType
	m.Status = a.Status
	m.Price = a.Price
	m.CommissionRate = a.CommissionRate
	m.Notes = a.Notes
	m.CompletedAt = a.CompletedAt
}

// AppointmentModelFromDomain creates a persistence model from a domain Appointment
func AppointmentModelFromDomain(a *scheduling.Appointment) *AppointmentModel {
	m := &AppointmentModel{}
	m.FromDomain(a)
	return m
}
