package server

import (
	"crypto/subtle"
	"net/http"

	"gtm-agent-api/pkg/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if app.Config.OTelEnabled {
		r.Use(otelgin.Middleware(app.Config.OTelServiceName))
	}
	r.Use(app.Monitoring.LoggingMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-KEY")
	r.Use(cors.New(corsConfig))

	agentHandler := handlers.NewAgentHandler(app.Sessions, app.Log)
	diagnosticHandler := handlers.NewDiagnosticHandler()
	artifactHandler := handlers.NewArtifactHandler(app.Artifacts, app.Sessions, app.Log)
	adminHandler := handlers.NewAdminHandler(app.Config, app.Log)
	monitoringHandler := handlers.NewMonitoringHandler(app.Monitoring)

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(app.Config.APIKey))
	{
		agent := v1.Group("/agent")
		{
			agent.POST("/start", agentHandler.Start)
			agent.POST("/message", agentHandler.Message)
			agent.GET("/state/:thread_id", agentHandler.State)
		}

		diagnostic := v1.Group("/diagnostic")
		{
			diagnostic.GET("/questions", diagnosticHandler.GetQuestions)
			diagnostic.GET("/questions/:n", diagnosticHandler.GetQuestion)
			diagnostic.GET("/levels/:level", diagnosticHandler.GetLevel)
			diagnostic.POST("/score", diagnosticHandler.Score)
		}

		artifacts := v1.Group("/artifacts")
		{
			artifacts.GET("/:thread_id", artifactHandler.List)
			artifacts.GET("/:thread_id/export/scorecard.xlsx", artifactHandler.ExportScorecard)
			artifacts.GET("/:thread_id/:filename", artifactHandler.Download)
			artifacts.PUT("/:thread_id/:filename", artifactHandler.Write)
		}

		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	return r
}

// authMiddleware checks X-API-KEY. An empty or placeholder key disables auth.
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || apiKey == "default_secret_key" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("X-API-KEY")), []byte(apiKey)) != 1 {
			handlers.RespondMessage(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		c.Next()
	}
}
