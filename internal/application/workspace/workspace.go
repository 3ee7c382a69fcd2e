// Package workspace builds the session-scoped dependency graph.
//
// A Workspace bundles a session resolver with the services that read and
// write the active company's data. Switching company or signing out never
// patches a workspace in place: the Manager builds a new one and closes the
// old, so no query or selector can carry one tenant's data into another.
package workspace

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/application/session"
	"github.com/tidyops/backend/internal/domain/shared"
	"github.com/tidyops/backend/internal/infrastructure/cache"
)

// ChangePublisher announces local writes to other processes
type ChangePublisher interface {
	Notify(ctx context.Context, tenantID uuid.UUID, entity string) error
}

// ChangeFeed delivers changes made by other processes
type ChangeFeed interface {
	OnChange(listener func(cache.ChangeMessage)) (unsubscribe func())
}

// scope is what every service of a workspace shares
type scope struct {
	tenant       session.Selector[uuid.UUID]
	user         session.Selector[uuid.UUID]
	publisher    ChangePublisher
	logger       *zap.Logger
	now          func() time.Time
	fetchTimeout time.Duration
	closed       atomic.Bool
}

// tenantID is the active company, uuid.Nil once the workspace is closed
func (sc *scope) tenantID() uuid.UUID {
	if sc.closed.Load() {
		return uuid.Nil
	}
	return sc.tenant.Get()
}

func (sc *scope) requireTenant() (uuid.UUID, error) {
	tenantID := sc.tenantID()
	if tenantID == uuid.Nil {
		return uuid.Nil, shared.ErrContextNotReady
	}
	return tenantID, nil
}

func (sc *scope) publish(ctx context.Context, tenantID uuid.UUID, entity string) {
	if sc.publisher == nil {
		return
	}
	if err := sc.publisher.Notify(ctx, tenantID, entity); err != nil {
		sc.logger.Warn("Failed to publish data change",
			zap.String("company_id", tenantID.String()),
			zap.String("entity", entity),
			zap.Error(err))
	}
}

// Workspace is one generation of the session-scoped graph
type Workspace struct {
	Generation   uint64
	Resolver     *session.Resolver
	Appointments *AppointmentService
	Clients      *ClientService

	scope       *scope
	unsubscribe func()
}

// CompanyID returns the active company of the workspace
func (w *Workspace) CompanyID() uuid.UUID {
	return w.scope.tenantID()
}

// Close tears the workspace down. Services stay callable but see no tenant.
func (w *Workspace) Close() {
	if !w.scope.closed.CompareAndSwap(false, true) {
		return
	}
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	w.Appointments.close()
	w.Clients.close()
	w.Resolver.Close()
}

func (w *Workspace) remoteChange(msg cache.ChangeMessage) {
	switch msg.Entity {
	case cache.EntityAppointments:
		w.Appointments.remoteChange(msg.TenantID)
	case cache.EntityClients:
		w.Clients.remoteChange(msg.TenantID)
	}
}
