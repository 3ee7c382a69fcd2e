package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// AppointmentRepository defines the interface for appointment persistence
type AppointmentRepository interface {
	// FindByDate returns a tenant's appointments for one day ordered by start time
	FindByDate(ctx context.Context, tenantID uuid.UUID, date string) ([]Appointment, error)

	// FindByIDForTenant finds an appointment by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error)

	// Save creates or updates an appointment
	Save(ctx context.Context, appointment *Appointment) error

	// DeleteForTenant deletes an appointment within a tenant
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}
