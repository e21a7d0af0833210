package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"gtm-agent-api/pkg/models"
	"gtm-agent-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// DiagnosticHandler serves the question catalog, level catalog and stateless scoring.
type DiagnosticHandler struct{}

func NewDiagnosticHandler() *DiagnosticHandler {
	return &DiagnosticHandler{}
}

func (h *DiagnosticHandler) GetQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": services.GetAllQuestions()})
}

func (h *DiagnosticHandler) GetQuestion(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		RespondError(c, fmt.Errorf("%w: question number must be an integer", services.ErrOutOfRange))
		return
	}
	q, err := services.GetQuestion(n)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// GetLevel returns the escalator description of a level plus what it takes to move up.
func (h *DiagnosticHandler) GetLevel(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		RespondError(c, fmt.Errorf("%w: level must be an integer", services.ErrOutOfRange))
		return
	}
	info, err := services.LevelInfo(level)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": info, "level_up": services.LevelUpCriteria(level)})
}

// Score scores an answer set without a session.
func (h *DiagnosticHandler) Score(c *gin.Context) {
	var req models.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondMessage(c, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	c.JSON(http.StatusOK, services.Score(req.Answers, req.CompanyContext))
}
