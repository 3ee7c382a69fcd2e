package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

// ClientHandler serves the active company's client list and pipeline
type ClientHandler struct {
	BaseHandler
}

// NewClientHandler creates a ClientHandler
func NewClientHandler() *ClientHandler {
	return &ClientHandler{}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *ClientHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/clients")
	g.GET("", h.List)
	g.GET("/inactive", h.ListInactive)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PUT("/:id/stage", h.MoveStage)
	g.DELETE("/:id", h.Delete)
}

// List godoc
// @ID           listClients
// @Summary      List clients
// @Description  Returns every client of the active company, served through the cache
// @Tags         clients
// @Produce      json
// @Success      200 {object} dto.Response{data=[]ClientResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	items, err := ws.Clients.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(toClientResponses(items)))
}

// ListInactive godoc
// @ID           listInactiveClients
// @Summary      List inactive clients
// @Description  Returns active clients with no service in the last days
// @Tags         clients
// @Produce      json
// @Param        days query int false "Days without service" default(30) minimum(1) maximum(3650)
// @Success      200 {object} dto.Response{data=[]ClientResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /clients/inactive [get]
func (h *ClientHandler) ListInactive(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	var q InactiveClientsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	items, err := ws.Clients.ListInactive(c.Request.Context(), q.Days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(toClientResponses(items)))
}

// Get godoc
// @ID           getClient
// @Summary      Get a client
// @Description  Returns one client of the active company
// @Tags         clients
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Success      200 {object} dto.Response{data=ClientResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /clients/{id} [get]
func (h *ClientHandler) Get(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	client, err := ws.Clients.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toClientResponse(client))
}

// Create godoc
// @ID           createClient
// @Summary      Create a client
// @Description  Adds a client at the start of the pipeline
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        request body ClientRequest true "Client details"
// @Success      201 {object} dto.Response{data=ClientResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	var req ClientRequest
	if !h.BindJSON(c, &req) {
		return
	}
	client, err := ws.Clients.Create(c.Request.Context(), req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toClientResponse(client))
}

// Update godoc
// @ID           updateClient
// @Summary      Update a client
// @Description  Replaces a client's details
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Param        request body ClientRequest true "Client details"
// @Success      200 {object} dto.Response{data=ClientResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /clients/{id} [put]
func (h *ClientHandler) Update(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	var req ClientRequest
	if !h.BindJSON(c, &req) {
		return
	}
	client, err := ws.Clients.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toClientResponse(client))
}

// MoveStage godoc
// @ID           moveClientStage
// @Summary      Move a client in the pipeline
// @Description  Moves a client to another pipeline column
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Param        request body MoveStageRequest true "Target stage"
// @Success      200 {object} dto.Response{data=ClientResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /clients/{id}/stage [put]
func (h *ClientHandler) MoveStage(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	var req MoveStageRequest
	if !h.BindJSON(c, &req) {
		return
	}
	client, err := ws.Clients.MoveStage(c.Request.Context(), id, crm.PipelineStage(req.Stage))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toClientResponse(client))
}

// Delete godoc
// @ID           deleteClient
// @Summary      Delete a client
// @Description  Removes a client
// @Tags         clients
// @Produce      json
// @Param        id path string true "Client ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /clients/{id} [delete]
func (h *ClientHandler) Delete(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	if err := ws.Clients.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
