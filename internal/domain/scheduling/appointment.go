package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tidyops/backend/internal/domain/shared"
)

// DateLayout is the calendar date format used for appointment days
const DateLayout = "2006-01-02"

// clockLayout is the time-of-day format for start and end times
const clockLayout = "15:04"

// AppointmentStatus represents the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
)

// ServiceType is the kind of cleaning job
type ServiceType string

const (
	ServiceStandard   ServiceType = "standard"
	ServiceDeep       ServiceType = "deep"
	ServiceMoveOut    ServiceType = "move_out"
	ServicePostBuild  ServiceType = "post_construction"
	ServiceCommercial ServiceType = "commercial"
)

// Appointment is a scheduled cleaning job for one client on one day
type Appointment struct {
	shared.TenantAggregateRoot
	ClientID       uuid.UUID
	TechnicianID   *uuid.UUID
	Date           string // YYYY-MM-DD
	StartTime      string // HH:MM
	EndTime        string // HH:MM
	ServiceType    ServiceType
	Status         AppointmentStatus
	Price          decimal.Decimal
	CommissionRate decimal.Decimal // fraction of price paid to the technician
	Notes          string
	CompletedAt    *time.Time
}

// NewAppointment creates a scheduled appointment
func NewAppointment(tenantID, clientID uuid.UUID, date, start, end string, serviceType ServiceType, price decimal.Decimal) (*Appointment, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrContextNotReady
	}
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client is required")
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	if serviceType == "" {
		serviceType = ServiceStandard
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}

	return &Appointment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ClientID:            clientID,
		Date:                date,
		StartTime:           start,
		EndTime:             end,
		ServiceType:         serviceType,
		Status:              AppointmentStatusScheduled,
		Price:               price,
		CommissionRate:      decimal.Zero,
	}, nil
}

// AssignTechnician sets the technician and commission rate
func (a *Appointment) AssignTechnician(technicianID uuid.UUID, rate decimal.Decimal) error {
	if a.isClosed() {
		return shared.NewDomainError("INVALID_STATE", "Cannot assign a technician to a closed appointment")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError("INVALID_COMMISSION_RATE", "Commission rate must be between 0 and 1")
	}
	a.TechnicianID = &technicianID
	a.CommissionRate = rate
	a.Touch()
	return nil
}

// SetNotes replaces the appointment notes
func (a *Appointment) SetNotes(notes string) {
	a.Notes = strings.TrimSpace(notes)
	a.Touch()
}

// Reschedule moves the appointment to another day or time window
func (a *Appointment) Reschedule(date, start, end string) error {
	if a.isClosed() {
		return shared.NewDomainError("INVALID_STATE", "Cannot reschedule a closed appointment")
	}
	if err := ValidateDate(date); err != nil {
		return err
	}
	if err := validateWindow(start, end); err != nil {
		return err
	}
	a.Date = date
	a.StartTime = start
	a.EndTime = end
	a.Status = AppointmentStatusScheduled
	a.Touch()
	return nil
}

// Start marks the job as in progress
func (a *Appointment) Start() error {
	if a.Status != AppointmentStatusScheduled {
		return shared.NewDomainError("INVALID_STATE", "Only scheduled appointments can be started")
	}
	a.Status = AppointmentStatusInProgress
	a.Touch()
	return nil
}

// Complete marks the job as done
func (a *Appointment) Complete(at time.Time) error {
	if a.isClosed() {
		return shared.NewDomainError("INVALID_STATE", "Appointment is already closed")
	}
	a.Status = AppointmentStatusCompleted
	a.CompletedAt = &at
	a.Touch()
	return nil
}

// Cancel cancels a job that has not been completed
func (a *Appointment) Cancel() error {
	if a.Status == AppointmentStatusCompleted {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel a completed appointment")
	}
	if a.Status == AppointmentStatusCancelled {
		return nil
	}
	a.Status = AppointmentStatusCancelled
	a.Touch()
	return nil
}

// Commission returns the technician's share of the price
func (a *Appointment) Commission() decimal.Decimal {
	if a.TechnicianID == nil {
		return decimal.Zero
	}
	return a.Price.Mul(a.CommissionRate).Round(2)
}

func (a *Appointment) isClosed() bool {
	return a.Status == AppointmentStatusCompleted || a.Status == AppointmentStatusCancelled
}

// ValidateDate checks a YYYY-MM-DD calendar date
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return shared.NewDomainError("INVALID_DATE", "Date must be formatted as YYYY-MM-DD")
	}
	return nil
}

func validateWindow(start, end string) error {
	s, err := time.Parse(clockLayout, start)
	if err != nil {
		return shared.NewDomainError("INVALID_TIME", "Start time must be formatted as HH:MM")
	}
	e, err := time.Parse(clockLayout, end)
	if err != nil {
		return shared.NewDomainError("INVALID_TIME", "End time must be formatted as HH:MM")
	}
	if !e.After(s) {
		return shared.NewDomainError("INVALID_TIME", "End time must be after start time")
	}
	return nil
}
