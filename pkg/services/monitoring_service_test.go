package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gtm-agent-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoringService_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	svc := NewMonitoringService(NewMetrics(reg), logger.NewNop())

	r := gin.New()
	r.Use(svc.LoggingMiddleware())
	r.GET("/api/v1/diagnostic/questions", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/admin/health-status", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/api/v1/diagnostic/questions", "/api/v1/admin/health-status", "/boom"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	data := svc.GetDashboardData(1)
	assert.Equal(t, map[string]int{"/api/v1/diagnostic/questions": 1, "/boom": 1}, data.Endpoints)
	require.Len(t, data.RecentErrors, 1)
	assert.Equal(t, "/boom", data.RecentErrors[0].Path)
	assert.Equal(t, 2, data.RequestsOverTime[0]["requests"])

	// the histogram sees admin calls too
	assert.Equal(t, 3, testutil.CollectAndCount(reg, "gtm_http_request_duration_seconds"))
}

func TestMonitoringService_DashboardWindow(t *testing.T) {
	svc := NewMonitoringService(nil, logger.NewNop())
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.LogRequest(LogEntry{Timestamp: now.Add(-10 * time.Minute), Path: "/a", StatusCode: 200, ResponseTime: 20 * time.Millisecond})
	svc.LogRequest(LogEntry{Timestamp: now.Add(-20 * time.Minute), Path: "/a", StatusCode: 404, ResponseTime: 40 * time.Millisecond})
	svc.LogRequest(LogEntry{Timestamp: now.Add(-3 * time.Hour), Path: "/old", StatusCode: 200})

	data := svc.GetDashboardData(2)

	require.Len(t, data.RequestsOverTime, 2)
	assert.Equal(t, "11:00", data.RequestsOverTime[0]["time"])
	assert.Equal(t, "12:00", data.RequestsOverTime[1]["time"])
	assert.Equal(t, 2, data.RequestsOverTime[1]["requests"])
	assert.Equal(t, map[string]int{"/a": 2}, data.Endpoints)
	assert.Equal(t, []map[string]interface{}{{"endpoint": "/a", "responseTime": int64(30)}}, data.AvgResponseTimes)
	assert.Equal(t, map[string]interface{}{"name": "4xx Client Error", "value": 1}, data.StatusCodes[1])
	assert.Empty(t, data.RecentErrors)
}
