package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tidyops/backend/internal/application/workspace"
	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

// AppointmentHandler serves the active company's schedule
type AppointmentHandler struct {
	BaseHandler
}

// NewAppointmentHandler creates an AppointmentHandler
func NewAppointmentHandler() *AppointmentHandler {
	return &AppointmentHandler{}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *AppointmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/appointments")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id/reschedule", h.Reschedule)
	g.PUT("/:id/complete", h.Complete)
	g.PUT("/:id/cancel", h.Cancel)
	g.DELETE("/:id", h.Delete)
}

// List godoc
// @ID           listAppointments
// @Summary      List appointments of a day
// @Description  Returns the appointments of one day for the active company, served through the cache
// @Tags         appointments
// @Produce      json
// @Param        date query string true "Day of the schedule" format(date) example(2024-03-15)
// @Success      200 {object} dto.Response{data=[]AppointmentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	var q ListAppointmentsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	items, err := ws.Appointments.ListByDate(c.Request.Context(), q.Date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(toAppointmentResponses(items)))
}

// Get godoc
// @ID           getAppointment
// @Summary      Get an appointment
// @Description  Returns one appointment of the active company
// @Tags         appointments
// @Produce      json
// @Param        id path string true "Appointment ID" format(uuid)
// @Success      200 {object} dto.Response{data=AppointmentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	a, err := ws.Appointments.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAppointmentResponse(a))
}

// Create godoc
// @ID           createAppointment
// @Summary      Schedule a job
// @Description  Creates an appointment for a client of the active company
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Param        request body CreateAppointmentRequest true "Appointment creation request"
// @Success      201 {object} dto.Response{data=AppointmentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := ws.Appointments.Create(c.Request.Context(), req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toAppointmentResponse(a))
}

// Reschedule godoc
// @ID           rescheduleAppointment
// @Summary      Reschedule a job
// @Description  Moves a scheduled job to another day or time window
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Param        id path string true "Appointment ID" format(uuid)
// @Param        request body RescheduleAppointmentRequest true "New date and window"
// @Success      200 {object} dto.Response{data=AppointmentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /appointments/{id}/reschedule [put]
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	var req RescheduleAppointmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := ws.Appointments.Reschedule(c.Request.Context(), id, workspace.RescheduleAppointmentInput{
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAppointmentResponse(a))
}

// Complete godoc
// @ID           completeAppointment
// @Summary      Complete a job
// @Description  Marks a scheduled job done and records the client's last service date
// @Tags         appointments
// @Produce      json
// @Param        id path string true "Appointment ID" format(uuid)
// @Success      200 {object} dto.Response{data=AppointmentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /appointments/{id}/complete [put]
func (h *AppointmentHandler) Complete(c *gin.Context) {
	h.transition(c, func(ctx context.Context, s *workspace.AppointmentService, id uuid.UUID) (*scheduling.Appointment, error) {
		return s.Complete(ctx, id)
	})
}

// Cancel godoc
// @ID           cancelAppointment
// @Summary      Cancel a job
// @Description  Cancels a scheduled job
// @Tags         appointments
// @Produce      json
// @Param        id path string true "Appointment ID" format(uuid)
// @Success      200 {object} dto.Response{data=AppointmentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /appointments/{id}/cancel [put]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	h.transition(c, func(ctx context.Context, s *workspace.AppointmentService, id uuid.UUID) (*scheduling.Appointment, error) {
		return s.Cancel(ctx, id)
	})
}

// Delete godoc
// @ID           deleteAppointment
// @Summary      Delete an appointment
// @Description  Removes a job from the schedule
// @Tags         appointments
// @Produce      json
// @Param        id path string true "Appointment ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /appointments/{id} [delete]
func (h *AppointmentHandler) Delete(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	if err := ws.Appointments.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func (h *AppointmentHandler) transition(c *gin.Context, fn func(context.Context, *workspace.AppointmentService, uuid.UUID) (*scheduling.Appointment, error)) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	a, err := fn(c.Request.Context(), ws.Appointments, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAppointmentResponse(a))
}
