package tenancy

import "github.com/google/uuid"

// Profile is the per-user record holding company preferences
type Profile struct {
	UserID          uuid.UUID
	FullName        string
	CompanyID       *uuid.UUID // company the user signed up with
	ActiveCompanyID *uuid.UUID // last company the user switched to
	Role            Role
	IsPlatformAdmin bool
}

// ResolveActiveCompanyID picks the active company preference, falling back to the
// signup company. Nil means the user has no company context.
func (p *Profile) ResolveActiveCompanyID() *uuid.UUID {
	if p == nil {
		return nil
	}
	if p.ActiveCompanyID != nil && *p.ActiveCompanyID != uuid.Nil {
		id := *p.ActiveCompanyID
		return &id
	}
	if p.CompanyID != nil && *p.CompanyID != uuid.Nil {
		id := *p.CompanyID
		return &id
	}
	return nil
}
