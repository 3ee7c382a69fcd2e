package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/infrastructure/logger"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
	"github.com/tidyops/backend/internal/interfaces/http/middleware"
)

// SessionHandler exposes the session context: read it, sign in, switch
// company and sign out
type SessionHandler struct {
	BaseHandler
	workspaces middleware.WorkspaceSource
	auth       identity.Authenticator
	now        func() time.Time
}

// NewSessionHandler creates a SessionHandler. Sign-in is only routed when
// auth is non-nil.
func NewSessionHandler(workspaces middleware.WorkspaceSource, auth identity.Authenticator) *SessionHandler {
	return &SessionHandler{
		workspaces: workspaces,
		auth:       auth,
		now:        time.Now,
	}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/session")
	g.GET("", h.Get)
	if h.auth != nil {
		g.POST("", h.SignIn)
	}
	g.POST("/switch-company", h.SwitchCompany)
	g.POST("/logout", h.Logout)
}

// Get godoc
// @ID           getSession
// @Summary      Get the session context
// @Description  Returns the resolved session: user, memberships, active company and loading flags
// @Tags         session
// @Produce      json
// @Success      200 {object} dto.Response{data=SessionResponse}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /session [get]
func (h *SessionHandler) Get(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	h.Success(c, newSessionResponse(ws.Resolver.Snapshot(), ws.Generation, h.now()))
}

// SignIn godoc
// @ID           signIn
// @Summary      Sign in
// @Description  Hands a token issued by the identity provider to the session. The resolver re-resolves the context
// @Description  when the provider announces the new session.
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        request body SignInRequest true "Identity provider token"
// @Success      200 {object} dto.Response{data=SessionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /session [post]
func (h *SessionHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if _, err := h.auth.SignIn(c.Request.Context(), req.Token); err != nil {
		logger.GetGinLogger(c).Info("Sign-in rejected", zap.Error(err))
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeTokenInvalid, "Token was rejected by the identity provider")
		return
	}
	h.respondCurrent(c)
}

// SwitchCompany godoc
// @ID           switchCompany
// @Summary      Switch the active company
// @Description  Makes another membership the active company and rebuilds the workspace around it
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        request body SwitchCompanyRequest true "Company to activate"
// @Success      200 {object} dto.Response{data=SessionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /session/switch-company [post]
func (h *SessionHandler) SwitchCompany(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	var req SwitchCompanyRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := ws.Resolver.SwitchCompany(c.Request.Context(), uuid.MustParse(req.CompanyID)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.respondCurrent(c)
}

// Logout godoc
// @ID           logout
// @Summary      Sign out
// @Description  Signs out. Local state is cleared even when the provider cannot be reached,
// @Description  so the response is always the signed-out context.
// @Tags         session
// @Produce      json
// @Success      200 {object} dto.Response{data=SessionResponse}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	if err := ws.Resolver.Logout(c.Request.Context()); err != nil {
		logger.GetGinLogger(c).Warn("Remote sign-out failed", zap.Error(err))
	}
	h.respondCurrent(c)
}

// respondCurrent answers with the live workspace, which a switch or sign-out
// may have replaced during the request
func (h *SessionHandler) respondCurrent(c *gin.Context) {
	ws := h.workspaces.Current()
	if ws == nil {
		ws = middleware.GetWorkspace(c)
	}
	if ws == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Session context is still loading")
		return
	}
	h.Success(c, newSessionResponse(ws.Resolver.Snapshot(), ws.Generation, h.now()))
}
