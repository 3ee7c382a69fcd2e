package workspace

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tidyops/backend/internal/domain/scheduling"
)

// CreateAppointmentInput holds the fields of a new appointment
type CreateAppointmentInput struct {
	ClientID       uuid.UUID
	Date           string
	StartTime      string
	EndTime        string
	ServiceType    scheduling.ServiceType
	Price          decimal.Decimal
	TechnicianID   *uuid.UUID
	CommissionRate decimal.Decimal
	Notes          string
}

// RescheduleAppointmentInput moves an appointment
type RescheduleAppointmentInput struct {
	Date      string
	StartTime string
	EndTime   string
}

// ClientInput holds the editable fields of a client
type ClientInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Notes   string
}
