package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/tidyops/backend/internal/application/workspace"
	"github.com/tidyops/backend/internal/domain/crm"
)

// ClientRequest is the body of POST /clients and PUT /clients/:id
// @Description Request body for creating or updating a client
type ClientRequest struct {
	Name    string `json:"name" binding:"required,max=200" example:"Amy Chen"`
	Email   string `json:"email" binding:"omitempty,email" example:"amy@example.com"`
	Phone   string `json:"phone" binding:"max=50" example:"+1 555 0100"`
	Address string `json:"address" binding:"max=500" example:"12 Elm Street"`
	Notes   string `json:"notes" binding:"max=2000" example:"Two dogs"`
}

func (r ClientRequest) toInput() workspace.ClientInput {
	return workspace.ClientInput{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
		Notes:   r.Notes,
	}
}

// MoveStageRequest is the body of PUT /clients/:id/stage
// @Description Request body for moving a client in the pipeline
type MoveStageRequest struct {
	Stage string `json:"stage" binding:"required,oneof=lead contacted quoted won lost" example:"quoted"`
}

// InactiveClientsQuery selects how far back a client counts as active
// @Description How far back a client counts as active
type InactiveClientsQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=3650" example:"30"`
}

// ClientResponse is a client as returned by the API
// @Description A client as returned by the API
type ClientResponse struct {
	ID              uuid.UUID         `json:"id" example:"7d2b9f4c-1a3e-4f6d-8c5b-2e9a1f0b3c4d"`
	CompanyID       uuid.UUID         `json:"company_id" example:"3f1c2a4e-8b7d-4c6a-9e2f-1a2b3c4d5e6f"`
	Name            string            `json:"name" example:"Amy Chen"`
	Email           string            `json:"email,omitempty" example:"amy@example.com"`
	Phone           string            `json:"phone,omitempty" example:"+1 555 0100"`
	Address         string            `json:"address,omitempty" example:"12 Elm Street"`
	Status          crm.ClientStatus  `json:"status" example:"active" enums:"active,inactive"`
	Stage           crm.PipelineStage `json:"stage" example:"won" enums:"lead,contacted,quoted,won,lost"`
	LastServiceDate *time.Time        `json:"last_service_date,omitempty"`
	Notes           string            `json:"notes,omitempty" example:"Two dogs"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toClientResponse(c *crm.Client) ClientResponse {
	return ClientResponse{
		ID:              c.ID,
		CompanyID:       c.TenantID,
		Name:            c.Name,
		Email:           c.Email,
		Phone:           c.Phone,
		Address:         c.Address,
		Status:          c.Status,
		Stage:           c.Stage,
		LastServiceDate: c.LastServiceDate,
		Notes:           c.Notes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toClientResponses(items []crm.Client) []ClientResponse {
	out := make([]ClientResponse, len(items))
	for i := range items {
		out[i] = toClientResponse(&items[i])
	}
	return out
}
