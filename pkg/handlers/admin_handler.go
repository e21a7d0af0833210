package handlers

import (
	"crypto/subtle"
	"net/http"
	"sync/atomic"

	config "gtm-agent-api/configs"
	"gtm-agent-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// isMaintenanceMode blocks new sessions and fails the health check while set.
var isMaintenanceMode atomic.Bool

// AdminHandler toggles maintenance mode.
type AdminHandler struct {
	AdminUsername string
	AdminPassword string
	log           *logger.Logger
}

func NewAdminHandler(cfg *config.Config, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		log:           log.With("handler", "admin"),
	}
}

// AdminCredentials is the body of the maintenance endpoints.
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authorize rejects the request unless the body carries the admin credentials.
// Empty configured credentials never match.
func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondMessage(c, http.StatusBadRequest, "bad_request", "Username and password are required")
		return false
	}
	if h.AdminUsername == "" || h.AdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.AdminUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.AdminPassword)) != 1 {
		h.log.Warn("rejected admin credentials", "username", input.Username)
		RespondMessage(c, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
		return false
	}
	return true
}

func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	isMaintenanceMode.Store(true)
	h.log.Info("maintenance mode started")
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode started"})
}

func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	isMaintenanceMode.Store(false)
	h.log.Info("maintenance mode stopped")
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode stopped"})
}

func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isMaintenanceMode": isMaintenanceMode.Load()})
}

// HealthCheck answers load balancer probes.
func HealthCheck(c *gin.Context) {
	if isMaintenanceMode.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
