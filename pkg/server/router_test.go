package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	config "gtm-agent-api/configs"
	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"
	"gtm-agent-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type staticProvider struct{}

func (staticProvider) FetchContext(_ context.Context, rawURL string) models.CompanyContext {
	return models.CompanyContext{
		Success:            true,
		CompanyName:        "Acme",
		ProductDescription: "Payroll for tiny teams",
		KeyFeatures:        []string{"Tax filing"},
		SourceURL:          "https://" + rawURL,
	}
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, req services.ContentRequest) (string, error) {
	return "generated " + string(req.Type), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:          "0",
		Environment:   "test",
		AdminUsername: "admin",
		AdminPassword: "secret",
		LLMProvider:   "anthropic",
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := NewApp(context.Background(), cfg, logger.NewNop(), Options{
		Store:     services.NewMemoryArtifactStore(),
		Provider:  staticProvider{},
		Generator: echoGenerator{},
	})
	require.NoError(t, err)
	return NewRouter(app)
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func readEvents(t *testing.T, body string) []models.StreamEvent {
	t.Helper()
	var events []models.StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev models.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev))
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []models.StreamEvent) []models.StreamEventType {
	out := make([]models.StreamEventType, len(events))
	for i, ev := range events {
		out[i] = ev.Event
	}
	return out
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	doJSON(r, http.MethodPost, "/api/v1/agent/start", map[string]string{"product_description": "x"})
	w = doJSON(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gtm_sessions_started_total 1")
}

func TestFullConversation(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := doJSON(r, http.MethodPost, "/api/v1/agent/start", map[string]string{"product_url": "acme.com"})
	require.Equal(t, http.StatusOK, w.Code)
	var start models.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))
	require.NotEmpty(t, start.ThreadID)
	assert.Equal(t, "Acme", start.CompanyContext.CompanyName)
	assert.Equal(t, "q1_icp", start.Question.QuestionID)

	for _, answer := range []string{
		"SMB Founders (1-50 employees)",
		"Crystal clear - customers describe it to us",
	} {
		w = doJSON(r, http.MethodPost, "/api/v1/agent/message", map[string]string{"thread_id": start.ThreadID, "selected_option": answer})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	}

	w = doJSON(r, http.MethodPost, "/api/v1/agent/message", map[string]string{"thread_id": start.ThreadID, "selected_option": "Revenue from target ICP"})
	events := readEvents(t, w.Body.String())
	assert.Equal(t, []models.StreamEventType{models.EventUserMessage, models.EventMessage, models.EventOptions, models.EventDone}, eventTypes(events))

	w = doJSON(r, http.MethodGet, "/api/v1/artifacts/"+start.ThreadID+"/export/scorecard.xlsx", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "scorecard_not_ready", decodeError(t, w).Error.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/agent/message", map[string]string{"thread_id": start.ThreadID, "decision": "confirm"})
	require.Equal(t, http.StatusOK, w.Code)
	events = readEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventScorecard, events[1].Event)
	require.NotNil(t, events[1].Scorecard)
	assert.Equal(t, 3, events[1].Scorecard.Level)
	assert.Equal(t, models.EventDone, events[len(events)-1].Event)

	w = doJSON(r, http.MethodGet, "/api/v1/agent/state/"+start.ThreadID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state models.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, models.SessionArtifactsEmitted, state.Phase)
	assert.Len(t, state.Artifacts, 5)

	w = doJSON(r, http.MethodGet, "/api/v1/artifacts/"+start.ThreadID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Artifacts []models.ArtifactMetadata `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Artifacts, 5)

	w = doJSON(r, http.MethodGet, "/api/v1/artifacts/"+start.ThreadID+"/gtm-narrative.md", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="gtm-narrative.md"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "# Strategic Narrative: Acme\n\ngenerated narrative", w.Body.String())

	w = doJSON(r, http.MethodGet, "/api/v1/artifacts/"+start.ThreadID+"/export/scorecard.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	level, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", level)
}

func TestMessageErrors(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := doJSON(r, http.MethodPost, "/api/v1/agent/message", map[string]string{"thread_id": "missing", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session_not_found", decodeError(t, w).Error.Code)
	assert.NotEqual(t, "text/event-stream", w.Header().Get("Content-Type"))

	w = doJSON(r, http.MethodPost, "/api/v1/agent/message", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/agent/start", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decodeError(t, w).Error.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/agent/state/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiagnosticRoutes(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := doJSON(r, http.MethodGet, "/api/v1/diagnostic/questions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Questions []models.DiagnosticQuestion `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Questions, 3)

	w = doJSON(r, http.MethodGet, "/api/v1/diagnostic/questions/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "q2_problem")

	for _, n := range []string{"0", "4", "abc"} {
		w = doJSON(r, http.MethodGet, "/api/v1/diagnostic/questions/"+n, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, n)
		assert.Equal(t, "out_of_range", decodeError(t, w).Error.Code)
	}

	w = doJSON(r, http.MethodGet, "/api/v1/diagnostic/levels/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ICP Definition")

	w = doJSON(r, http.MethodPost, "/api/v1/diagnostic/score", models.ScoreRequest{Answers: models.Answers{}})
	require.Equal(t, http.StatusOK, w.Code)
	var sc models.Scorecard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sc))
	assert.Equal(t, 1, sc.Level)
	assert.NotEmpty(t, sc.Recommendations)
}

func TestArtifactWriteValidation(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := doJSON(r, http.MethodPut, "/api/v1/artifacts/t1/notes.md", models.WriteArtifactRequest{Content: strings.Repeat("a", 500), ArtifactType: models.ArtifactNarrative})
	require.Equal(t, http.StatusOK, w.Code)
	var meta models.ArtifactMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, 500, meta.SizeBytes)
	assert.Len(t, meta.ContentPreview, 200)

	w = doJSON(r, http.MethodPut, "/api/v1/artifacts/t1/bad%20name.md", models.WriteArtifactRequest{Content: "x", ArtifactType: models.ArtifactNarrative})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_filename", decodeError(t, w).Error.Code)

	w = doJSON(r, http.MethodPut, "/api/v1/artifacts/t1/a.md", models.WriteArtifactRequest{Content: "x", ArtifactType: "slides"})
	assert.Equal(t, "invalid_type", decodeError(t, w).Error.Code)

	w = doJSON(r, http.MethodPut, "/api/v1/artifacts/t1/a.md", models.WriteArtifactRequest{Content: strings.Repeat("a", services.MaxArtifactBytes+1), ArtifactType: models.ArtifactNarrative})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/artifacts/t1/missing.md", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "artifact_not_found", decodeError(t, w).Error.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "k3y"
	r := newTestRouter(t, cfg)

	w := doJSON(r, http.MethodGet, "/api/v1/diagnostic/questions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diagnostic/questions", nil)
	req.Header.Set("X-API-KEY", "k3y")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaintenanceMode(t *testing.T) {
	r := newTestRouter(t, testConfig())
	creds := map[string]string{"username": "admin", "password": "secret"}

	w := doJSON(r, http.MethodPost, "/api/v1/admin/maintenance/start", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/maintenance/start", creds)
	require.Equal(t, http.StatusOK, w.Code)
	t.Cleanup(func() { doJSON(r, http.MethodPost, "/api/v1/admin/maintenance/stop", creds) })

	w = doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/agent/start", map[string]string{"product_description": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/maintenance/stop", creds)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMonitoringLogs(t *testing.T) {
	r := newTestRouter(t, testConfig())
	doJSON(r, http.MethodGet, "/api/v1/diagnostic/questions", nil)

	w := doJSON(r, http.MethodGet, "/api/v1/monitoring/logs?period=1h", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data services.DashboardData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, 1, data.Endpoints["/api/v1/diagnostic/questions"])
}

func TestNewApp_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "bard"
	cfg.AnthropicAPIKey = "x"
	_, err := NewApp(context.Background(), cfg, logger.NewNop(), Options{Store: services.NewMemoryArtifactStore()})
	assert.Error(t, err)
}
