package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/tidyops/backend/internal/application/session"
	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/domain/tenancy"
)

// SignInRequest carries a token issued by the identity provider
// @Description Token issued by the identity provider
type SignInRequest struct {
	Token string `json:"token" binding:"required,max=8192" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// SwitchCompanyRequest selects the active company
// @Description Company to make active
type SwitchCompanyRequest struct {
	CompanyID string `json:"company_id" binding:"required,uuid" example:"3f1c2a4e-8b7d-4c6a-9e2f-1a2b3c4d5e6f"`
}

// MembershipResponse is one company the user belongs to
// @Description One company the user belongs to
type MembershipResponse struct {
	CompanyID   uuid.UUID    `json:"company_id" example:"3f1c2a4e-8b7d-4c6a-9e2f-1a2b3c4d5e6f"`
	CompanyName string       `json:"company_name" example:"Sparkle Cleaning"`
	Role        tenancy.Role `json:"role" example:"owner"`
}

// CompanyResponse is the active company with its trial countdown
// @Description The active company with its trial countdown
type CompanyResponse struct {
	*tenancy.CompanySnapshot
	TrialDaysLeft int `json:"trial_days_left" example:"9"`
}

// SessionResponse is the session context as seen by the client
// @Description The session context as seen by the client
type SessionResponse struct {
	Status                session.Status       `json:"status" example:"ready" enums:"uninitialized,resolving,ready,error"`
	IsAuthenticated       bool                 `json:"is_authenticated" example:"true"`
	IsLoading             bool                 `json:"is_loading" example:"false"`
	PlatformContextLoaded bool                 `json:"platform_context_loaded" example:"true"`
	IsPlatformAdmin       bool                 `json:"is_platform_admin" example:"false"`
	User                  *identity.Principal  `json:"user"`
	ActiveCompanyID       *uuid.UUID           `json:"active_company_id"`
	Company               *CompanyResponse     `json:"company"`
	Memberships           []MembershipResponse `json:"memberships"`
	Generation            uint64               `json:"generation" example:"3"`
}

func newSessionResponse(snap session.Snapshot, generation uint64, now time.Time) SessionResponse {
	resp := SessionResponse{
		Status:                snap.Status,
		IsAuthenticated:       snap.IsAuthenticated,
		IsLoading:             snap.IsLoading,
		PlatformContextLoaded: snap.PlatformContextLoaded,
		IsPlatformAdmin:       snap.IsPlatformAdmin,
		User:                  snap.User,
		ActiveCompanyID:       snap.ActiveCompanyID,
		Memberships:           make([]MembershipResponse, 0, len(snap.Memberships)),
		Generation:            generation,
	}
	if snap.Company != nil {
		resp.Company = &CompanyResponse{
			CompanySnapshot: snap.Company,
			TrialDaysLeft:   snap.Company.TrialDaysLeft(now),
		}
	}
	for _, m := range snap.Memberships {
		resp.Memberships = append(resp.Memberships, MembershipResponse{
			CompanyID:   m.CompanyID,
			CompanyName: m.Company.Name,
			Role:        m.Role,
		})
	}
	return resp
}
