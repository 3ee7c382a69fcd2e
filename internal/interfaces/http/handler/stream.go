package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/application/session"
	"github.com/tidyops/backend/internal/application/workspace"
	"github.com/tidyops/backend/internal/infrastructure/cache"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

// Stream event names
const (
	StreamEventState     = "state"
	StreamEventHeartbeat = "heartbeat"
	StreamEventClosed    = "closed"
)

// Reasons carried by a closed event
const (
	StreamClosedWorkspace      = "workspace_closed"
	StreamClosedCompanyChanged = "company_changed"
)

// StreamState is the data of a state event
// @Description Current result of a live list
type StreamState[R any] struct {
	CompanyID uuid.UUID `json:"company_id" example:"3f1c2a4e-8b7d-4c6a-9e2f-1a2b3c4d5e6f"`
	Data      []R       `json:"data"`
	IsLoading bool      `json:"is_loading" example:"false"`
	Error     string    `json:"error,omitempty" example:"Could not load appointments"`
}

// StreamClosed is the data of a closed event
// @Description Sent once before the server ends a stream
type StreamClosed struct {
	Reason string `json:"reason" example:"company_changed" enums:"workspace_closed,company_changed"`
}

// StreamHandler keeps a cache query open per connection and pushes every
// state it settles on as a Server-Sent Event
type StreamHandler struct {
	BaseHandler
	logger     *zap.Logger
	heartbeat  time.Duration
	maxClients int
	clients    atomic.Int64
}

// StreamOption is a functional option for configuring the handler
type StreamOption func(*StreamHandler)

// WithStreamLogger sets the logger for the handler
func WithStreamLogger(logger *zap.Logger) StreamOption {
	return func(h *StreamHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithStreamHeartbeat sets the heartbeat interval
func WithStreamHeartbeat(interval time.Duration) StreamOption {
	return func(h *StreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// WithStreamMaxClients caps concurrent streams; 0 means unlimited
func WithStreamMaxClients(max int) StreamOption {
	return func(h *StreamHandler) {
		h.maxClients = max
	}
}

// NewStreamHandler creates a StreamHandler
func NewStreamHandler(opts ...StreamOption) *StreamHandler {
	h := &StreamHandler{
		logger:     zap.NewNop(),
		heartbeat:  30 * time.Second,
		maxClients: 1000,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes implements router.RouteRegistrar
func (h *StreamHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/appointments/stream", h.Appointments)
	rg.GET("/clients/stream", h.Clients)
}

// ClientCount returns the number of open streams
func (h *StreamHandler) ClientCount() int {
	return int(h.clients.Load())
}

// Appointments godoc
// @ID           streamAppointments
// @Summary      Follow one day of the schedule
// @Description  Streams the appointments of a day as Server-Sent Events. A state event is sent on connect
// @Description  and after every local or remote change; a closed event ends the stream when the company changes.
// @Tags         appointments
// @Produce      text/event-stream
// @Param        date query string true "Day to follow" format(date) example(2024-03-15)
// @Success      200 {string} string "SSE stream"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /appointments/stream [get]
func (h *StreamHandler) Appointments(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	var q ListAppointmentsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if !h.acquire(c) {
		return
	}
	defer h.clients.Add(-1)
	serveQuery(h, c, ws, ws.Appointments.NewDayQuery(), q.Date, toAppointmentResponses)
}

// Clients godoc
// @ID           streamClients
// @Summary      Follow the client list
// @Description  Streams the client list as Server-Sent Events, with the same events as the appointment stream
// @Tags         clients
// @Produce      text/event-stream
// @Success      200 {string} string "SSE stream"
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /clients/stream [get]
func (h *StreamHandler) Clients(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	if !h.acquire(c) {
		return
	}
	defer h.clients.Add(-1)
	serveQuery(h, c, ws, ws.Clients.NewQuery(), struct{}{}, toClientResponses)
}

func (h *StreamHandler) acquire(c *gin.Context) bool {
	if n := h.clients.Add(1); h.maxClients > 0 && n > int64(h.maxClients) {
		h.clients.Add(-1)
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Maximum number of stream connections reached")
		return false
	}
	return true
}

// serveQuery loads q for the workspace's company and writes its states until
// the client leaves, the query is closed with its workspace, or the active
// company changes
func serveQuery[P, T, R any](h *StreamHandler, c *gin.Context, ws *workspace.Workspace, q *cache.Query[P, T], params P, convert func([]T) []R) {
	defer q.Close()
	tenantID := ws.CompanyID()
	log := h.logger.With(zap.String("path", c.FullPath()), zap.String("company_id", tenantID.String()))

	updates := make(chan struct{}, 1)
	unsubscribe := q.Subscribe(func(cache.State[T]) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	companyChanged := make(chan struct{})
	var changedOnce sync.Once
	onCompany := func(id uuid.UUID) {
		if id != tenantID {
			changedOnce.Do(func() { close(companyChanged) })
		}
	}
	companySel := session.CompanyID(ws.Resolver)
	unwatch := companySel.Watch(onCompany)
	defer unwatch()
	onCompany(companySel.Get())

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	// streams outlive the server's write timeout
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("Stream keeps the server write deadline", zap.Error(err))
	}

	q.Load(c.Request.Context(), tenantID, params)
	log.Info("Stream opened")

	var seq uint64
	sendState := func() {
		seq++
		state := q.State()
		h.sendEvent(c.Writer, StreamEventState, seq, StreamState[R]{
			CompanyID: tenantID,
			Data:      convert(state.Data),
			IsLoading: state.IsLoading,
			Error:     state.Error,
		})
		c.Writer.Flush()
	}
	sendClosed := func(reason string) {
		seq++
		h.sendEvent(c.Writer, StreamEventClosed, seq, StreamClosed{Reason: reason})
		c.Writer.Flush()
		log.Info("Stream closed by server", zap.String("reason", reason))
	}
	sendState()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			log.Info("Stream client disconnected")
			return
		case <-companyChanged:
			sendClosed(StreamClosedCompanyChanged)
			return
		case <-q.Done():
			sendClosed(StreamClosedWorkspace)
			return
		case <-ticker.C:
			seq++
			h.sendEvent(c.Writer, StreamEventHeartbeat, seq, gin.H{"timestamp": time.Now().Unix()})
			c.Writer.Flush()
		case <-updates:
			sendState()
		}
	}
}

// sendEvent writes an SSE event to the response writer
func (h *StreamHandler) sendEvent(w io.Writer, event string, id uint64, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal stream event", zap.String("event", event), zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "id: %d\n", id)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
