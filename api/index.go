package handler

import (
	"context"
	"log"
	"net/http"
	"sync"

	config "gtm-agent-api/configs"
	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/server"

	"github.com/gin-gonic/gin"
)

var (
	app  http.Handler
	once sync.Once
)

// setupApp builds the router once per serverless instance. Environment
// variables come from the platform, so .env is not loaded here.
func setupApp() http.Handler {
	once.Do(func() {
		cfg := config.LoadConfig()
		gin.SetMode(gin.ReleaseMode)

		appLog, err := logger.New(cfg.Environment)
		if err != nil {
			log.Printf("logger init failed, falling back to no-op: %v", err)
			appLog = logger.NewNop()
		}

		a, err := server.NewApp(context.Background(), cfg, appLog, server.Options{})
		if err != nil {
			appLog.Error("application init failed", "error", err)
			app = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"service unavailable","code":"init_failed"}}`, http.StatusServiceUnavailable)
			})
			return
		}
		app = server.NewRouter(a)
	})
	return app
}

// Handler is the serverless entry point.
func Handler(w http.ResponseWriter, r *http.Request) {
	setupApp().ServeHTTP(w, r)
}
