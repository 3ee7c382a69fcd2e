package tenancy

import (
	"time"

	"github.com/google/uuid"
)

// Membership associates a user with a company and carries the user's role there
type Membership struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Role      Role
	Company   Company
}

// Memberships is the set of companies a user belongs to
type Memberships []Membership

// Find returns the membership for the given company, or nil
func (ms Memberships) Find(companyID uuid.UUID) *Membership {
	if companyID == uuid.Nil {
		return nil
	}
	for i := range ms {
		if ms[i].CompanyID == companyID {
			return &ms[i]
		}
	}
	return nil
}

// Contains reports whether the user is a member of the company
func (ms Memberships) Contains(companyID uuid.UUID) bool {
	return ms.Find(companyID) != nil
}

// CompanyIDs returns the company ids in membership order
func (ms Memberships) CompanyIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.CompanyID)
	}
	return ids
}

// ResolveCompany builds the active company snapshot.
// It returns nil when no company is active or the id matches no membership.
func ResolveCompany(ms Memberships, activeCompanyID *uuid.UUID, now time.Time) *CompanySnapshot {
	if activeCompanyID == nil {
		return nil
	}
	m := ms.Find(*activeCompanyID)
	if m == nil {
		return nil
	}
	return &CompanySnapshot{
		ID:                 m.CompanyID,
		Name:               m.Company.Name,
		Slug:               m.Company.Slug,
		Type:               m.Company.Type,
		Status:             m.Company.Status,
		Role:               m.Role,
		SubscriptionStatus: DeriveSubscriptionStatus(m.Company.TrialEndsAt, now),
		TrialEndsAt:        m.Company.TrialEndsAt,
	}
}
