package handlers

import (
	"fmt"
	"net/http"

	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"
	"gtm-agent-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// ArtifactHandler serves stored artifacts and the scorecard export.
type ArtifactHandler struct {
	artifacts *services.ArtifactService
	sessions  *services.SessionService
	log       *logger.Logger
}

func NewArtifactHandler(artifacts *services.ArtifactService, sessions *services.SessionService, log *logger.Logger) *ArtifactHandler {
	return &ArtifactHandler{
		artifacts: artifacts,
		sessions:  sessions,
		log:       log.With("handler", "artifact"),
	}
}

// Write stores an artifact under the thread.
func (h *ArtifactHandler) Write(c *gin.Context) {
	var req models.WriteArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondMessage(c, http.StatusBadRequest, "bad_request", "artifact_type is required")
		return
	}
	meta, err := h.artifacts.Write(c.Request.Context(), c.Param("thread_id"), c.Param("filename"), req.Content, req.ArtifactType)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *ArtifactHandler) List(c *gin.Context) {
	list, err := h.artifacts.List(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": list})
}

// Download returns the raw artifact as an attachment.
func (h *ArtifactHandler) Download(c *gin.Context) {
	filename := c.Param("filename")
	content, mediaType, err := h.artifacts.Read(c.Request.Context(), c.Param("thread_id"), filename)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, mediaType, []byte(content))
}

// ExportScorecard renders the revealed scorecard as a spreadsheet.
func (h *ArtifactHandler) ExportScorecard(c *gin.Context) {
	threadID := c.Param("thread_id")
	sc, err := h.sessions.RevealedScorecard(threadID)
	if err != nil {
		RespondError(c, err)
		return
	}
	data, err := services.ExportScorecard(sc)
	if err != nil {
		h.log.Error("scorecard export failed", "thread_id", threadID, "error", err)
		RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="gtm-scorecard.xlsx"`)
	c.Data(http.StatusOK, services.ScorecardXLSXContentType, data)
}
