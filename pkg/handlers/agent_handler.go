package handlers

import (
	"context"
	"net/http"

	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"
	"gtm-agent-api/pkg/services"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// AgentHandler exposes the conversational diagnostic.
type AgentHandler struct {
	sessions *services.SessionService
	log      *logger.Logger
}

func NewAgentHandler(sessions *services.SessionService, log *logger.Logger) *AgentHandler {
	return &AgentHandler{
		sessions: sessions,
		log:      log.With("handler", "agent"),
	}
}

// Start opens a session from a product URL or description.
func (h *AgentHandler) Start(c *gin.Context) {
	if isMaintenanceMode.Load() {
		RespondMessage(c, http.StatusServiceUnavailable, "maintenance", "Server is in maintenance mode")
		return
	}

	var req models.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondMessage(c, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	resp, err := h.sessions.Start(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Message applies one user turn and streams the result as server-sent
// events. Validation errors are returned as JSON before the stream opens.
func (h *AgentHandler) Message(c *gin.Context) {
	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondMessage(c, http.StatusBadRequest, "bad_request", "thread_id is required")
		return
	}

	streaming := false
	emit := func(ev models.StreamEvent) {
		if !streaming {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			streaming = true
		}
		if err := sse.Encode(c.Writer, sse.Event{Data: ev}); err != nil {
			h.log.Warn("stream write failed", "thread_id", req.ThreadID, "event", ev.Event, "error", err)
			return
		}
		c.Writer.Flush()
	}

	// A started build must finish even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.sessions.Submit(ctx, req, emit); err != nil {
		if streaming {
			h.log.Error("submit failed mid-stream", "thread_id", req.ThreadID, "error", err)
			return
		}
		RespondError(c, err)
	}
}

// State returns the session snapshot used to hydrate a client.
func (h *AgentHandler) State(c *gin.Context) {
	state, err := h.sessions.State(c.Param("thread_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
