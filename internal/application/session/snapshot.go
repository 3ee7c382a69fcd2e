// Package session resolves who is signed in and which company is active.
//
// A Resolver is built once per workspace. Initialize bootstraps it from the
// identity provider and the tenancy repositories; afterwards it follows the
// provider's auth events until Close. Readers observe immutable Snapshots,
// either whole or through narrow Selectors.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/domain/tenancy"
)

// Status is the state of the resolver's bootstrap state machine
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusResolving     Status = "resolving"
	StatusReady         Status = "ready"
	StatusError         Status = "error"
)

// Snapshot is an immutable view of the session context
type Snapshot struct {
	Status                Status                   `json:"status"`
	User                  *identity.Principal      `json:"user"`
	IsAuthenticated       bool                     `json:"is_authenticated"`
	IsLoading             bool                     `json:"is_loading"`
	ActiveCompanyID       *uuid.UUID               `json:"active_company_id"`
	Memberships           tenancy.Memberships      `json:"-"`
	Company               *tenancy.CompanySnapshot `json:"company"`
	IsPlatformAdmin       bool                     `json:"is_platform_admin"`
	PlatformContextLoaded bool                     `json:"platform_context_loaded"`
	Hint                  *Hint                    `json:"hint,omitempty"`
}

// CompanyID returns the active company, or uuid.Nil when the context is not ready
func (s Snapshot) CompanyID() uuid.UUID {
	if s.ActiveCompanyID == nil {
		return uuid.Nil
	}
	return *s.ActiveCompanyID
}

// UserID returns the signed-in user, or uuid.Nil
func (s Snapshot) UserID() uuid.UUID {
	if s.User == nil {
		return uuid.Nil
	}
	return s.User.ID
}

// Hint is the non-sensitive part of a session kept across restarts. It only
// seeds optimistic reads and is never trusted for authorization.
type Hint struct {
	ActiveCompanyID *uuid.UUID `json:"active_company_id,omitempty"`
	IsAuthenticated bool       `json:"is_authenticated"`
}

// HintStore persists the session hint
type HintStore interface {
	// Load returns the stored hint, or nil when none was saved
	Load(ctx context.Context) (*Hint, error)
	Save(ctx context.Context, hint Hint) error
	Clear(ctx context.Context) error
}
