package workspace

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/infrastructure/cache"
)

// DefaultInactiveDays is the idle period after which a client counts as inactive
const DefaultInactiveDays = 30

// ClientQuery is a cached view of one tenant's clients
type ClientQuery = cache.Query[struct{}, crm.Client]

// ClientService manages the active company's clients
type ClientService struct {
	*scope
	repo    crm.ClientRepository
	store   *cache.Store[crm.Client]
	queries *queryRegistry
}

func newClientService(sc *scope, repo crm.ClientRepository, store *cache.Store[crm.Client]) *ClientService {
	return &ClientService{
		scope:   sc,
		repo:    repo,
		store:   store,
		queries: newQueryRegistry(),
	}
}

// NewQuery returns a query keyed by the bare tenant id that lives as long as
// the workspace
func (s *ClientService) NewQuery() *ClientQuery {
	q := s.newQuery()
	s.queries.add(q)
	return q
}

func (s *ClientService) newQuery() *ClientQuery {
	return cache.NewQuery(s.store,
		func(ctx context.Context, tenantID uuid.UUID, _ struct{}) ([]crm.Client, error) {
			ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
			return s.repo.FindAllForTenant(ctx, tenantID)
		},
		nil,
		cache.WithQueryLogger(s.logger),
		cache.WithErrorMessage(userMessage),
	)
}

// List returns the active company's clients, through the cache
func (s *ClientService) List(ctx context.Context) ([]crm.Client, error) {
	tenantID := s.tenantID()
	if tenantID == uuid.Nil {
		return []crm.Client{}, nil
	}

	q := s.newQuery()
	defer q.Close()
	state, err := q.LoadAndWait(ctx, tenantID, struct{}{})
	if err != nil {
		return nil, err
	}
	if state.Err != nil {
		return nil, state.Err
	}
	return state.Data, nil
}

// ListInactive returns active clients with no service in the last days days.
// It always reads from the repository.
func (s *ClientService) ListInactive(ctx context.Context, days int) ([]crm.Client, error) {
	tenantID := s.tenantID()
	if tenantID == uuid.Nil {
		return []crm.Client{}, nil
	}
	if days <= 0 {
		days = DefaultInactiveDays
	}
	return s.repo.FindInactive(ctx, tenantID, daysAgo(s.now(), days))
}

// Get returns one client of the active company
func (s *ClientService) Get(ctx context.Context, id uuid.UUID) (*crm.Client, error) {
	tenantID, err := s.requireTenant()
	if err != nil {
		return nil, err
	}
	return s.repo.FindByIDForTenant(ctx, tenantID, id)
}

// Create adds a client in the lead stage
func (s *ClientService) Create(ctx context.Context, input ClientInput) (*crm.Client, error) {
	tenantID, err := s.requireTenant()
	if err != nil {
		return nil, err
	}
	c, err := crm.NewClient(tenantID, input.Name)
	if err != nil {
		return nil, err
	}
	if err := c.Update(input.Name, input.Email, input.Phone, input.Address, input.Notes); err != nil {
		return nil, err
	}
	if userID := s.user.Get(); userID != uuid.Nil {
		c.SetCreatedBy(userID)
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("Client created",
		zap.String("client_id", c.ID.String()),
		zap.String("company_id", tenantID.String()))
	s.afterWrite(ctx, tenantID)
	return c, nil
}

// Update replaces a client's contact details
func (s *ClientService) Update(ctx context.Context, id uuid.UUID, input ClientInput) (*crm.Client, error) {
	return s.mutate(ctx, id, func(c *crm.Client) error {
		return c.Update(input.Name, input.Email, input.Phone, input.Address, input.Notes)
	})
}

// MoveStage moves a client to another pipeline stage
func (s *ClientService) MoveStage(ctx context.Context, id uuid.UUID, stage crm.PipelineStage) (*crm.Client, error) {
	return s.mutate(ctx, id, func(c *crm.Client) error {
		return c.MoveToStage(stage)
	})
}

// Delete removes a client
func (s *ClientService) Delete(ctx context.Context, id uuid.UUID) error {
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

// Invalidate drops the cached client list of the active company
func (s *ClientService) Invalidate(ctx context.Context) int {
	tenantID := s.tenantID()
	if tenantID == uuid.Nil {
		return 0
	}
	n := s.store.InvalidateTenant(tenantID)
	s.queries.refreshTenant(tenantID)
	s.publish(ctx, tenantID, cache.EntityClients)
	return n
}

func (s *ClientService) mutate(ctx context.Context, id uuid.UUID, fn func(*crm.Client) error) (*crm.Client, error) {
	tenantID, err := s.requireTenant()
	if err != nil {
		return nil, err
	}
	c, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, tenantID)
	return c, nil
}

func (s *ClientService) afterWrite(ctx context.Context, tenantID uuid.UUID) {
	s.store.InvalidateTenant(tenantID)
	s.queries.refreshTenant(tenantID)
	s.publish(ctx, tenantID, cache.EntityClients)
}

func (s *ClientService) remoteChange(tenantID uuid.UUID) {
	s.queries.refreshTenant(tenantID)
}

func (s *ClientService) close() {
	s.queries.closeAll()
}

// daysAgo is midnight UTC days days before now
func daysAgo(now time.Time, days int) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
}
