package workspace

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/domain/shared"
	"github.com/tidyops/backend/internal/infrastructure/cache"
	"github.com/tidyops/backend/internal/infrastructure/telemetry"
)

// DayQuery is a cached view of one tenant's appointments for a date
type DayQuery = cache.Query[string, scheduling.Appointment]

// AppointmentService schedules jobs for the active company
type AppointmentService struct {
	*scope
	repo    scheduling.AppointmentRepository
	clients crm.ClientRepository
	store   *cache.Store[scheduling.Appointment]
	queries *queryRegistry

	// clientsChanged is called after completing a job updates its client
	clientsChanged func(ctx context.Context, tenantID uuid.UUID)
}

func newAppointmentService(sc *scope, repo scheduling.AppointmentRepository, clients crm.ClientRepository, store *cache.Store[scheduling.Appointment]) *AppointmentService {
	return &AppointmentService{
		scope:   sc,
		repo:    repo,
		clients: clients,
		store:   store,
		queries: newQueryRegistry(),
	}
}

// NewDayQuery returns a query keyed "{tenant}-{date}" that lives as long as the
// workspace and refetches when another process changes the tenant's schedule
func (s *AppointmentService) NewDayQuery() *DayQuery {
	q := s.newDayQuery()
	s.queries.add(q)
	return q
}

func (s *AppointmentService) newDayQuery() *DayQuery {
	return cache.NewQuery(s.store,
		func(ctx context.Context, tenantID uuid.UUID, date string) ([]scheduling.Appointment, error) {
			ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
			return s.repo.FindByDate(ctx, tenantID, date)
		},
		func(date string) string { return date },
		cache.WithQueryLogger(s.logger),
		cache.WithErrorMessage(userMessage),
	)
}

// ListByDate returns the active company's appointments for date, through the cache
func (s *AppointmentService) ListByDate(ctx context.Context, date string) ([]scheduling.Appointment, error) {
	if err := scheduling.ValidateDate(date); err != nil {
		return nil, err
	}
	tenantID := s.tenantID()
	if tenantID == uuid.Nil {
		return []scheduling.Appointment{}, nil
	}

	q := s.newDayQuery()
	defer q.Close()
	state, err := q.LoadAndWait(ctx, tenantID, date)
	if err != nil {
		return nil, err
	}
	if state.Err != nil {
		return nil, state.Err
	}
	return state.Data, nil
}

// Get returns one appointment of the active company
func (s *AppointmentService) Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	tenantID, err := s.requireTenant()
	if err != nil {
		return nil, err
	}
	return s.repo.FindByIDForTenant(ctx, tenantID, id)
}

// Create schedules a new appointment for one of the company's clients
func (s *AppointmentService) Create(ctx context.Context, input CreateAppointmentInput) (*scheduling.Appointment, error) {
	tenantID, err := s.requireTenant()
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "appointments", "create",
		telemetry.WithAttribute(telemetry.SpanAttrCompanyID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrDate, input.Date))
	defer span.End()

	if _, err := s.clients.FindByIDForTenant(ctx, tenantID, input.ClientID); err != nil {
		return nil, err
	}

	a, err := scheduling.NewAppointment(tenantID, input.ClientID, input.Date, input.StartTime, input.EndTime, input.ServiceType, input.Price)
	if err != nil {
		return nil, err
	}
	if input.TechnicianID != nil {
		if err := a.AssignTechnician(*input.TechnicianID, input.CommissionRate); err != nil {
			return nil, err
		}
	}
	if input.Notes != "" {
		a.SetNotes(input.Notes)
	}
	if userID := s.user.Get(); userID != uuid.Nil {
		a.SetCreatedBy(userID)
	}

	if err := s.repo.Save(ctx, a); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Appointment created",
		zap.String("appointment_id", a.ID.String()),
		zap.String("company_id", tenantID.String()),
		zap.String("date", a.Date))
	s.afterWrite(ctx, tenantID)
	return a, nil
}

// Reschedule moves an appointment to another day or window
func (s *AppointmentService) Reschedule(ctx context.Context, id uuid.UUID, input RescheduleAppointmentInput) (*scheduling.Appointment, error) {
	return s.mutate(ctx, id, func(a *scheduling.Appointment) error {
		return a.Reschedule(input.Date, input.StartTime, input.EndTime)
	})
}

// Complete marks a job done and records the service on its client
func (s *AppointmentService) Complete(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	now := s.now()
	a, err := s.mutate(ctx, id, func(a *scheduling.Appointment) error {
		return a.Complete(now)
	})
	if err != nil {
		return nil, err
	}

	client, err := s.clients.FindByIDForTenant(ctx, a.TenantID, a.ClientID)
	if err != nil {
		s.logger.Warn("Completed appointment has no client",
			zap.String("appointment_id", a.ID.String()),
			zap.Error(err))
		return a, nil
	}
	client.RecordService(now)
	if err := s.clients.Save(ctx, client); err != nil {
		s.logger.Error("Failed to record service date on client",
			zap.String("client_id", client.ID.String()),
			zap.Error(err))
		return a, nil
	}
	if s.clientsChanged != nil {
		s.clientsChanged(ctx, a.TenantID)
	}
	return a, nil
}

// Cancel cancels an appointment
func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	return s.mutate(ctx, id, func(a *scheduling.Appointment) error {
		return a.Cancel()
	})
}

// Delete removes an appointment
func (s *AppointmentService) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := s.requireTenant()
	if err != nil {
		return err
	}
	if err := s.repo.DeleteForTenant(ctx, tenantID, id); err != nil {
		return err
	}
	s.afterWrite(ctx, tenantID)
	return nil
}

// InvalidateAll drops every cached date of the active company
func (s *AppointmentService) InvalidateAll(ctx context.Context) int {
	tenantID := s.tenantID()
	if tenantID == uuid.Nil {
		return 0
	}
	n := s.store.InvalidateTenant(tenantID)
	s.queries.refreshTenant(tenantID)
	s.publish(ctx, tenantID, cache.EntityAppointments)
	return n
}

func (s *AppointmentService) mutate(ctx context.Context, id uuid.UUID, fn func(*scheduling.Appointment) error) (*scheduling.Appointment, error) {
	tenantID, err := s.requireTenant()
	if err != nil {
		return nil, err
	}
	a, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, tenantID)
	return a, nil
}

// afterWrite invalidates every date partition, since a write may move a job
// between days, and announces the change to other processes
func (s *AppointmentService) afterWrite(ctx context.Context, tenantID uuid.UUID) {
	s.store.InvalidateTenant(tenantID)
	s.queries.refreshTenant(tenantID)
	s.publish(ctx, tenantID, cache.EntityAppointments)
}

func (s *AppointmentService) remoteChange(tenantID uuid.UUID) {
	s.queries.refreshTenant(tenantID)
}

func (s *AppointmentService) close() {
	s.queries.closeAll()
}

// userMessage turns a fetch failure into text safe to show to users
func userMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "Failed to load data, please retry"
}
