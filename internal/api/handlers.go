// Package api serves the orchestrator over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/fleet"
	"nathanbeddoewebdev/mcfleet/internal/history"
	"nathanbeddoewebdev/mcfleet/internal/orchestrator"
)

// Fleet is the orchestrator surface the handlers call.
type Fleet interface {
	FetchServers(ctx context.Context) ([]domain.ServerIdentity, error)
	GetServerStatus(ctx context.Context, id int) (*domain.ServerSnapshot, error)
	StartServer(ctx context.Context, id int) (orchestrator.StartResult, error)
	StopServer(ctx context.Context, id int) (bool, error)
	SendCommand(ctx context.Context, id int, command string) error
	ListTrackedServers() []domain.ServerState
	HostStatus() domain.HostStatus
	History(limit int, subject string) ([]history.Entry, error)
	SubscribeStopped() (<-chan fleet.StateChange, func())
}

// CommandRequest is the body of POST /servers/:id/command.
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// StopResult is the body returned by POST /servers/:id/stop.
type StopResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// StartResponse is the body returned by POST /servers/:id/start.
type StartResponse struct {
	orchestrator.StartResult
	Error string `json:"error,omitempty"`
}

// Handler serves the fleet endpoints.
type Handler struct {
	fleet Fleet
}

// NewHandler creates a handler backed by f.
func NewHandler(f Fleet) *Handler {
	return &Handler{fleet: f}
}

// Health answers liveness probes.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListServers handles GET /servers.
func (h *Handler) ListServers(c *gin.Context) {
	servers, err := h.fleet.FetchServers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if servers == nil {
		servers = []domain.ServerIdentity{}
	}
	c.JSON(http.StatusOK, servers)
}

// GetServer handles GET /servers/:id.
func (h *Handler) GetServer(c *gin.Context) {
	id, ok := serverID(c)
	if !ok {
		return
	}
	snap, err := h.fleet.GetServerStatus(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// StartServer handles POST /servers/:id/start. A start that fails for any
// reason other than an unknown server is reported with ok=false.
func (h *Handler) StartServer(c *gin.Context) {
	id, ok := serverID(c)
	if !ok {
		return
	}
	res, err := h.fleet.StartServer(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		abortWithError(c, err)
		return
	}
	resp := StartResponse{StartResult: res}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// StopServer handles POST /servers/:id/stop.
func (h *Handler) StopServer(c *gin.Context) {
	id, ok := serverID(c)
	if !ok {
		return
	}
	stopped, err := h.fleet.StopServer(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		abortWithError(c, err)
		return
	}
	resp := StopResult{OK: stopped}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// SendCommand handles POST /servers/:id/command.
func (h *Handler) SendCommand(c *gin.Context) {
	id, ok := serverID(c)
	if !ok {
		return
	}
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.fleet.SendCommand(c.Request.Context(), id, req.Command); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Fleet handles GET /fleet.
func (h *Handler) Fleet(c *gin.Context) {
	states := h.fleet.ListTrackedServers()
	if states == nil {
		states = []domain.ServerState{}
	}
	c.JSON(http.StatusOK, states)
}

// Host handles GET /host.
func (h *Handler) Host(c *gin.Context) {
	c.JSON(http.StatusOK, h.fleet.HostStatus())
}

// History handles GET /history.
func (h *Handler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := h.fleet.History(limit, c.Query("subject"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

// StoppedEvents streams one "stopped" server-sent event per server
// transition to Stopped until the client goes away.
func (h *Handler) StoppedEvents(c *gin.Context) {
	changes, cancel := h.fleet.SubscribeStopped()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("stopped", change)
			return true
		}
	})
}

func serverID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid server id " + strconv.Quote(c.Param("id"))})
		return 0, false
	}
	return id, true
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrHistoryUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrProvider),
		errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrRateLimited):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
