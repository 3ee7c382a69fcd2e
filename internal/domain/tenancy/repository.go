package tenancy

import (
	"context"

	"github.com/google/uuid"
)

// ProfileRepository loads user profiles
type ProfileRepository interface {
	// FindByUserID returns the profile for a user, or shared.ErrNotFound
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

// MembershipRepository loads the companies a user belongs to
type MembershipRepository interface {
	// FindByUserID returns all memberships of a user with their company records
	FindByUserID(ctx context.Context, userID uuid.UUID) (Memberships, error)
}

// CompanySwitcher performs the privileged active-company change.
// Implementations must verify membership and return shared.ErrUnknownCompany otherwise.
type CompanySwitcher interface {
	SwitchActiveCompany(ctx context.Context, userID, companyID uuid.UUID) error
}
