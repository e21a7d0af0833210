package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"gtm-agent-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// maxLogEntries bounds the in-memory request log.
const maxLogEntries = 10000

// LogEntry is a single recorded request.
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// MonitoringService keeps a rolling request log for the dashboard and feeds
// the latency histogram.
type MonitoringService struct {
	logs    []LogEntry
	mu      sync.RWMutex
	metrics *Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewMonitoringService(metrics *Metrics, log *logger.Logger) *MonitoringService {
	return &MonitoringService{
		logs:    make([]LogEntry, 0),
		metrics: metrics,
		log:     log.With("service", "monitoring"),
		now:     time.Now,
	}
}

// LogRequest records a request, dropping the oldest entries past the cap.
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = append([]LogEntry(nil), s.logs[len(s.logs)-maxLogEntries:]...)
	}
}

// LoggingMiddleware logs every request and records it for the dashboard.
// Admin and monitoring calls are logged but not counted.
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()

		c.Next()

		elapsed := time.Since(start)
		path := c.Request.URL.Path
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(c.Request.Method, route, status, elapsed)

		kvs := []interface{}{"method", c.Request.Method, "path", path, "status", status, "elapsed", elapsed}
		switch {
		case status >= 500:
			s.log.Error("request", kvs...)
		case status >= 400:
			s.log.Warn("request", kvs...)
		default:
			s.log.Debug("request", kvs...)
		}

		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}
		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   status,
			ResponseTime: elapsed,
		})
	}
}

// DashboardData is the aggregated view served by the monitoring endpoint.
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
}

// GetDashboardData aggregates the last periodHours of requests in hourly UTC buckets.
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now().UTC()
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	filtered := make([]LogEntry, 0)
	for _, entry := range s.logs {
		if entry.Timestamp.After(since) {
			filtered = append(filtered, entry)
		}
	}

	// oldest bucket first
	buckets := make(map[string]int, periodHours)
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketKeys := make([]string, periodHours)
	for i := 0; i < periodHours; i++ {
		t := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		bucketKeys[i] = t.Format(time.RFC3339)
		buckets[bucketKeys[i]] = 0
		requestsOverTime[i] = map[string]interface{}{"time": t.Format("15:00"), "requests": 0}
	}
	for _, entry := range filtered {
		key := entry.Timestamp.UTC().Truncate(time.Hour).Format(time.RFC3339)
		if _, ok := buckets[key]; ok {
			buckets[key]++
		}
	}
	for i, key := range bucketKeys {
		requestsOverTime[i]["requests"] = buckets[key]
	}

	endpoints := make(map[string]int)
	for _, entry := range filtered {
		endpoints[entry.Path]++
	}

	classes := []string{"2xx Success", "4xx Client Error", "5xx Server Error"}
	counts := make(map[string]int, len(classes))
	for _, entry := range filtered {
		switch {
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			counts[classes[0]]++
		case entry.StatusCode >= 400 && entry.StatusCode < 500:
			counts[classes[1]]++
		case entry.StatusCode >= 500:
			counts[classes[2]]++
		}
	}
	statusCodes := make([]map[string]interface{}, 0, len(classes))
	for _, name := range classes {
		statusCodes = append(statusCodes, map[string]interface{}{"name": name, "value": counts[name]})
	}

	sums := make(map[string]time.Duration)
	hits := make(map[string]int)
	for _, entry := range filtered {
		sums[entry.Path] += entry.ResponseTime
		hits[entry.Path]++
	}
	paths := make([]string, 0, len(sums))
	for p := range sums {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		avg := sums[p].Milliseconds() / int64(hits[p])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": p, "responseTime": avg})
	}

	recentErrors := make([]LogEntry, 0)
	for i := len(filtered) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filtered[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filtered[i])
		}
	}

	return DashboardData{
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusCodes,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
	}
}
