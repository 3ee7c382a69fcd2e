package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tidyops/backend/internal/application/workspace"
	"github.com/tidyops/backend/internal/domain/scheduling"
)

// ListAppointmentsQuery selects one day of the schedule
// @Description Day of the schedule to list
type ListAppointmentsQuery struct {
	Date string `form:"date" binding:"required,calendar_date" example:"2024-03-15"`
}

// CreateAppointmentRequest is the body of POST /appointments
// @Description Request body for scheduling a job
type CreateAppointmentRequest struct {
	ClientID       string          `json:"client_id" binding:"required,uuid" example:"7d2b9f4c-1a3e-4f6d-8c5b-2e9a1f0b3c4d"`
	Date           string          `json:"date" binding:"required,calendar_date" example:"2024-03-15"`
	StartTime      string          `json:"start_time" binding:"required,clock_time" example:"09:00"`
	EndTime        string          `json:"end_time" binding:"required,clock_time" example:"12:00"`
	ServiceType    string          `json:"service_type" binding:"omitempty,oneof=standard deep move_out post_construction commercial" example:"deep"`
	Price          decimal.Decimal `json:"price" example:"125.00" swaggertype:"string"`
	TechnicianID   *string         `json:"technician_id" binding:"omitempty,uuid" example:"c2d4e6f8-0a1b-4c3d-8e5f-6a7b8c9d0e1f"`
	CommissionRate decimal.Decimal `json:"commission_rate" example:"0.15" swaggertype:"string"`
	Notes          string          `json:"notes" binding:"max=2000" example:"Key under the mat"`
}

func (r CreateAppointmentRequest) toInput() workspace.CreateAppointmentInput {
	input := workspace.CreateAppointmentInput{
		ClientID:       uuid.MustParse(r.ClientID),
		Date:           r.Date,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		ServiceType:    scheduling.ServiceType(r.ServiceType),
		Price:          r.Price,
		CommissionRate: r.CommissionRate,
		Notes:          r.Notes,
	}
	if r.TechnicianID != nil {
		id := uuid.MustParse(*r.TechnicianID)
		input.TechnicianID = &id
	}
	return input
}

// RescheduleAppointmentRequest is the body of PUT /appointments/:id/reschedule
// @Description Request body for moving a job to another day or window
type RescheduleAppointmentRequest struct {
	Date      string `json:"date" binding:"required,calendar_date" example:"2024-03-16"`
	StartTime string `json:"start_time" binding:"required,clock_time" example:"13:00"`
	EndTime   string `json:"end_time" binding:"required,clock_time" example:"15:00"`
}

// AppointmentResponse is an appointment as returned by the API
// @Description An appointment as returned by the API
type AppointmentResponse struct {
	ID             uuid.UUID                    `json:"id" example:"a4e1c7b2-6f3d-4e8a-9b1c-5d2f7e0a3b6c"`
	CompanyID      uuid.UUID                    `json:"company_id" example:"3f1c2a4e-8b7d-4c6a-9e2f-1a2b3c4d5e6f"`
	ClientID       uuid.UUID                    `json:"client_id" example:"7d2b9f4c-1a3e-4f6d-8c5b-2e9a1f0b3c4d"`
	TechnicianID   *uuid.UUID                   `json:"technician_id,omitempty"`
	Date           string                       `json:"date" example:"2024-03-15"`
	StartTime      string                       `json:"start_time" example:"09:00"`
	EndTime        string                       `json:"end_time" example:"12:00"`
	ServiceType    scheduling.ServiceType       `json:"service_type" example:"deep" enums:"standard,deep,move_out,post_construction,commercial"`
	Status         scheduling.AppointmentStatus `json:"status" example:"scheduled" enums:"scheduled,in_progress,completed,cancelled"`
	Price          decimal.Decimal              `json:"price" example:"125.00" swaggertype:"string"`
	CommissionRate decimal.Decimal              `json:"commission_rate" example:"0.15" swaggertype:"string"`
	Commission     decimal.Decimal              `json:"commission" example:"18.75" swaggertype:"string"`
	Notes          string                       `json:"notes,omitempty" example:"Key under the mat"`
	CompletedAt    *time.Time                   `json:"completed_at,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		CompanyID:      a.TenantID,
		ClientID:       a.ClientID,
		TechnicianID:   a.TechnicianID,
		Date:           a.Date,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		ServiceType:    a.ServiceType,
		Status:         a.Status,
		Price:          a.Price,
		CommissionRate: a.CommissionRate,
		Commission:     a.Commission(),
		Notes:          a.Notes,
		CompletedAt:    a.CompletedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toAppointmentResponses(items []scheduling.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(items))
	for i := range items {
		out[i] = toAppointmentResponse(&items[i])
	}
	return out
}
