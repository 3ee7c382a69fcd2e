package tenancy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDeriveSubscriptionStatus(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		trialEndsAt *time.Time
		want        SubscriptionStatus
	}{
		{"no trial means active", nil, SubscriptionActive},
		{"trial ending in the future", ptr(now.Add(48 * time.Hour)), SubscriptionTrial},
		{"trial ended in the past", ptr(now.Add(-time.Minute)), SubscriptionExpired},
		{"trial ending exactly now is expired", ptr(now), SubscriptionExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveSubscriptionStatus(tt.trialEndsAt, now))
		})
	}
}

func TestProfile_ResolveActiveCompanyID(t *testing.T) {
	signup := uuid.New()
	active := uuid.New()

	t.Run("prefers active company", func(t *testing.T) {
		p := &Profile{CompanyID: &signup, ActiveCompanyID: &active}
		got := p.ResolveActiveCompanyID()
		require.NotNil(t, got)
		assert.Equal(t, active, *got)
	})

	t.Run("falls back to signup company", func(t *testing.T) {
		p := &Profile{CompanyID: &signup}
		got := p.ResolveActiveCompanyID()
		require.NotNil(t, got)
		assert.Equal(t, signup, *got)
	})

	t.Run("treats nil uuid as unset", func(t *testing.T) {
		p := &Profile{CompanyID: &signup, ActiveCompanyID: ptr(uuid.Nil)}
		got := p.ResolveActiveCompanyID()
		require.NotNil(t, got)
		assert.Equal(t, signup, *got)
	})

	t.Run("no company at all", func(t *testing.T) {
		assert.Nil(t, (&Profile{}).ResolveActiveCompanyID())
	})

	t.Run("nil profile", func(t *testing.T) {
		var p *Profile
		assert.Nil(t, p.ResolveActiveCompanyID())
	})
}

func TestResolveCompany(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	a, b := uuid.New(), uuid.New()
	ms := Memberships{
		{ID: uuid.New(), CompanyID: a, Role: RoleOwner, Company: Company{ID: a, Name: "Sparkle Co", Slug: "sparkle"}},
		{ID: uuid.New(), CompanyID: b, Role: RoleMember, Company: Company{ID: b, Name: "Mop Bros", TrialEndsAt: ptr(now.Add(36 * time.Hour))}},
	}

	t.Run("matching membership", func(t *testing.T) {
		snap := ResolveCompany(ms, &b, now)
		require.NotNil(t, snap)
		assert.Equal(t, b, snap.ID)
		assert.Equal(t, "Mop Bros", snap.Name)
		assert.Equal(t, RoleMember, snap.Role)
		assert.Equal(t, SubscriptionTrial, snap.SubscriptionStatus)
		assert.Equal(t, 2, snap.TrialDaysLeft(now))
	})

	t.Run("paid company", func(t *testing.T) {
		snap := ResolveCompany(ms, &a, now)
		require.NotNil(t, snap)
		assert.Equal(t, SubscriptionActive, snap.SubscriptionStatus)
		assert.Equal(t, 0, snap.TrialDaysLeft(now))
	})

	t.Run("unknown company resolves to nil", func(t *testing.T) {
		assert.Nil(t, ResolveCompany(ms, ptr(uuid.New()), now))
	})

	t.Run("nil active id resolves to nil", func(t *testing.T) {
		assert.Nil(t, ResolveCompany(ms, nil, now))
	})

	t.Run("empty memberships resolves to nil", func(t *testing.T) {
		assert.Nil(t, ResolveCompany(nil, &a, now))
	})
}

func TestMemberships(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ms := Memberships{{CompanyID: a, Role: RoleAdmin}, {CompanyID: b, Role: RoleMember}}

	assert.True(t, ms.Contains(a))
	assert.False(t, ms.Contains(uuid.New()))
	assert.False(t, ms.Contains(uuid.Nil))
	assert.Equal(t, []uuid.UUID{a, b}, ms.CompanyIDs())
	assert.Equal(t, RoleAdmin, ms.Find(a).Role)
}

func TestRole(t *testing.T) {
	assert.True(t, RoleOwner.IsValid())
	assert.True(t, RoleMember.IsValid())
	assert.False(t, Role("guest").IsValid())
	assert.True(t, RoleAdmin.CanManage())
	assert.False(t, RoleMember.CanManage())
}
