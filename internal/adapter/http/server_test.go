package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/renewgrid/sitescout/internal/adapter/http"
	"github.com/renewgrid/sitescout/internal/domain"
	"github.com/renewgrid/sitescout/internal/observability"
)

// --- mocks ---

type mockService struct {
	report    *domain.SurveyReport
	surveyErr error
	estimate  domain.PointEstimate
	pointErr  error

	mu          sync.Mutex
	surveyReqs  []domain.SurveyRequest
	pointQuerys []domain.PointQuery
}

func (m *mockService) Survey(_ context.Context, req domain.SurveyRequest) (*domain.SurveyReport, error) {
	m.mu.Lock()
	m.surveyReqs = append(m.surveyReqs, req)
	m.mu.Unlock()
	if m.surveyErr != nil {
		return nil, m.surveyErr
	}
	return m.report, nil
}

func (m *mockService) EstimatePoint(_ context.Context, q domain.PointQuery) (domain.PointEstimate, error) {
	m.mu.Lock()
	m.pointQuerys = append(m.pointQuerys, q)
	m.mu.Unlock()
	return m.estimate, m.pointErr
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.SurveyResult
}

func (m *mockPublisher) PublishResults(_ context.Context, results []domain.SurveyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, results...)
	return nil
}

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReport() *domain.SurveyReport {
	value, vegetation, score := 7.2, 1.0, 7.15
	return &domain.SurveyReport{
		OptimalPoint: domain.OptimalPoint{Lat: 12.5, Lon: 75.5},
		Value:        &value,
		Vegetation:   &vegetation,
		Score:        &score,
		PlantType:    domain.PlantWind,
		Stats: domain.PerformanceStats{
			TotalSamples:     6000,
			ResolutionMeters: 1500,
			AreaKm2:          215432.11,
			PassesCompleted:  4,
		},
		Window:   domain.DateRange{Start: "2023-01-01", End: "2023-06-01"},
		Boundary: domain.Boundary{West: 74.0, South: 11.5, East: 78.5, North: 15.5},
	}
}

func newTestServer(svc *mockService, pinger *mockPinger, events httpadapter.ResultPublisher) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, pinger, events, discardLogger(), observability.NewMetricsForTesting())
}

func doJSON(t *testing.T, srv *httpadapter.Server, method, path, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	rec := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	srv.ServeHTTP(rec, req)

	var parsed map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

const validSurveyBody = `{
	"boundary": {"lonMin": 74.0, "latMin": 11.5, "lonMax": 78.5, "latMax": 15.5},
	"time": {"start": "2023-01-01", "end": "2023-06-01"},
	"plant_type": "wind"
}`

// --- survey endpoint ---

func TestSurveyEndpoint_Success(t *testing.T) {
	svc := &mockService{report: testReport()}
	srv := newTestServer(svc, &mockPinger{}, nil)

	rec, _ := doJSON(t, srv, http.MethodPost, "/get_optimal_location", validSurveyBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.SurveyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 12.5, report.OptimalPoint.Lat)
	assert.Equal(t, 1500, report.Stats.ResolutionMeters)
	assert.Equal(t, domain.PlantWind, report.PlantType)

	require.Len(t, svc.surveyReqs, 1)
	assert.NotEmpty(t, svc.surveyReqs[0].RequestID, "handler assigns a request ID")
}

func TestSurveyEndpoint_MissingFieldsListsAll(t *testing.T) {
	srv := newTestServer(&mockService{report: testReport()}, &mockPinger{}, nil)

	rec, body := doJSON(t, srv, http.MethodPost, "/get_optimal_location", `{"plant_type": "wind"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var msg string
	require.NoError(t, json.Unmarshal(body["error"], &msg))
	assert.Contains(t, msg, "boundary")
	assert.Contains(t, msg, "time")
}

func TestSurveyEndpoint_ErrorStatusByKind(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid input", domain.Errorf(domain.KindInvalidInput, "validate", "latMin must be less than latMax"), http.StatusBadRequest},
		{"no data", domain.Errorf(domain.KindNoData, "compose", "no wind data available"), http.StatusNotFound},
		{"no valid samples", domain.Errorf(domain.KindNoValidSamples, "sample", "no valid samples found"), http.StatusNotFound},
		{"no valid location", domain.Errorf(domain.KindNoValidLocation, "select", "no valid locations found within boundary"), http.StatusNotFound},
		{"upstream", domain.Errorf(domain.KindUpstream, "sample_region", "status 502"), http.StatusInternalServerError},
		{"untagged", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&mockService{surveyErr: tt.err}, &mockPinger{}, nil)

			rec, body := doJSON(t, srv, http.MethodPost, "/get_optimal_location", validSurveyBody)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, string(body["error"]), tt.err.Error())
		})
	}
}

func TestSurveyEndpoint_PublishesResults(t *testing.T) {
	events := &mockPublisher{}
	srv := newTestServer(&mockService{report: testReport()}, &mockPinger{}, events)

	rec, _ := doJSON(t, srv, http.MethodPost, "/get_optimal_location", validSurveyBody)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, events.published, 1)
	assert.Equal(t, domain.OutcomeOK, events.published[0].Outcome)
	require.NotNil(t, events.published[0].Report)

	// Failures publish too.
	srv = newTestServer(&mockService{surveyErr: domain.Errorf(domain.KindNoData, "compose", "empty")}, &mockPinger{}, events)
	doJSON(t, srv, http.MethodPost, "/get_optimal_location", validSurveyBody)
	require.Len(t, events.published, 2)
	assert.Equal(t, "no_data", events.published[1].Outcome)
}

// --- legacy point endpoint ---

func TestLegacyEndpoint_SuccessAlways200(t *testing.T) {
	value := 6.4
	svc := &mockService{estimate: domain.PointEstimate{Lat: 12.97, Lon: 77.59, Plant: domain.PlantWind, Value: &value}}
	srv := newTestServer(svc, &mockPinger{}, nil)

	rec, body := doJSON(t, srv, http.MethodPost, "/get_optimal_locations",
		`{"power_type": "wind", "location": {"lat": 12.97, "lon": 77.59}, "time": {"start": "2023-01-01", "end": "2023-06-01"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "6.4", string(body["wind_speed"]))
	assert.JSONEq(t, "12.97", string(body["lat"]))
	assert.NotContains(t, body, "error")

	require.Len(t, svc.pointQuerys, 1)
	assert.Equal(t, "wind", svc.pointQuerys[0].PlantType)
}

func TestLegacyEndpoint_NullValueWhenNoBandData(t *testing.T) {
	svc := &mockService{estimate: domain.PointEstimate{Lat: 1, Lon: 1, Plant: domain.PlantThermal}}
	srv := newTestServer(svc, &mockPinger{}, nil)

	rec, body := doJSON(t, srv, http.MethodPost, "/get_optimal_locations",
		`{"power_type": "thermal", "location": {"lat": 1, "lon": 1}, "time": {"start": "2023-01-01", "end": "2023-06-01"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(body["thermal_value"]))
}

func TestLegacyEndpoint_ErrorsStill200(t *testing.T) {
	tests := []struct {
		name string
		body string
		svc  *mockService
		want string
	}{
		{
			name: "malformed json",
			body: "not-json{{{",
			svc:  &mockService{},
			want: "no JSON data received",
		},
		{
			name: "missing fields listed together",
			body: `{"location": {"lat": 1, "lon": 2}}`,
			svc:  &mockService{},
			want: "missing required fields: power_type, time",
		},
		{
			name: "estimate failure",
			body: `{"power_type": "solar", "location": {"lat": 1, "lon": 2}, "time": {"start": "2023-01-01", "end": "2023-06-01"}}`,
			svc:  &mockService{pointErr: domain.Errorf(domain.KindNoData, "compose", "no data available for the selected period")},
			want: "no data available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.svc, &mockPinger{}, nil)

			rec, body := doJSON(t, srv, http.MethodPost, "/get_optimal_locations", tt.body)
			assert.Equal(t, http.StatusOK, rec.Code, "legacy endpoint never changes status")

			var msg string
			require.NoError(t, json.Unmarshal(body["error"], &msg))
			assert.Contains(t, msg, tt.want)
		})
	}
}

// --- operational endpoints ---

func TestEngineHealth_Healthy(t *testing.T) {
	srv := newTestServer(&mockService{}, &mockPinger{}, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"healthy"`, string(body["status"]))
	assert.JSONEq(t, `"connected"`, string(body["earth_engine"]))
	assert.Contains(t, body, "response_time_ms")
}

func TestEngineHealth_Unhealthy(t *testing.T) {
	srv := newTestServer(&mockService{}, &mockPinger{err: errors.New("connection refused")}, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `"unhealthy"`, string(body["status"]))
	assert.Contains(t, string(body["error"]), "connection refused")
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockService{}, &mockPinger{}, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"healthy"`, string(body["status"]))
}

func TestReadyzProbesEngineUntilFirstSuccess(t *testing.T) {
	pinger := &mockPinger{err: errors.New("engine down")}
	srv := newTestServer(&mockService{}, pinger, nil)

	rec, _ := doJSON(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	pinger.err = nil
	rec, _ = doJSON(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Once reached, readiness sticks even if later probes would fail.
	pinger.err = errors.New("engine down again")
	rec, _ = doJSON(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	srv := newTestServer(&mockService{}, &mockPinger{}, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `"endpoint not found"`, string(body["error"]))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockService{}, &mockPinger{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- ops server ---

func TestOpsServer_Readyz(t *testing.T) {
	srv := httpadapter.NewOpsServer(":0", &mockReadiness{err: errors.New("not ready yet")}, discardLogger())

	rec, body := doJSON(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(body["error"]), "not ready yet")

	srv = httpadapter.NewOpsServer(":0", &mockReadiness{}, discardLogger())
	rec, body = doJSON(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"ready"`, string(body["status"]))
}
