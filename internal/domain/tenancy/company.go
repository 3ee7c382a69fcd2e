package tenancy

import (
	"time"

	"github.com/google/uuid"
)

// Role is the role a user holds inside a company
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// IsValid reports whether the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanManage reports whether the role may manage company settings and staff
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// SubscriptionStatus is the billing state derived from a company's trial window
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionTrial   SubscriptionStatus = "trial"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Company is the tenant record as seen through a membership
type Company struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Type        string
	Status      string
	TrialEndsAt *time.Time
}

// DeriveSubscriptionStatus maps a trial expiry onto a subscription status.
// No expiry means the company is on a paid plan.
func DeriveSubscriptionStatus(trialEndsAt *time.Time, now time.Time) SubscriptionStatus {
	if trialEndsAt == nil {
		return SubscriptionActive
	}
	if trialEndsAt.After(now) {
		return SubscriptionTrial
	}
	return SubscriptionExpired
}

// CompanySnapshot is the denormalized view of the active company
type CompanySnapshot struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	Slug               string             `json:"slug"`
	Type               string             `json:"type"`
	Status             string             `json:"status"`
	Role               Role               `json:"role"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty"`
}

// TrialDaysLeft returns the whole days remaining in the trial, or 0 when not on trial
func (s *CompanySnapshot) TrialDaysLeft(now time.Time) int {
	if s == nil || s.SubscriptionStatus != SubscriptionTrial || s.TrialEndsAt == nil {
		return 0
	}
	left := s.TrialEndsAt.Sub(now)
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) > 0 {
		days++
	}
	return days
}
