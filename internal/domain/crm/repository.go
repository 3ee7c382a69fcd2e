package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClientRepository defines the interface for client persistence
type ClientRepository interface {
	// FindAllForTenant returns a tenant's clients ordered by name
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]Client, error)

	// FindByIDForTenant finds a client by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)

	// FindInactive returns clients with no service since the cutoff
	FindInactive(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]Client, error)

	// Save creates or updates a client
	Save(ctx context.Context, client *Client) error

	// DeleteForTenant deletes a client within a tenant
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}
