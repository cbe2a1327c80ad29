package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/staylens/internal/config"
	"github.com/stwalsh4118/staylens/internal/dataset"
	apierrors "github.com/stwalsh4118/staylens/internal/errors"
	"github.com/stwalsh4118/staylens/internal/logger"
	"github.com/stwalsh4118/staylens/internal/metrics"
	"github.com/stwalsh4118/staylens/internal/middleware"
	"github.com/stwalsh4118/staylens/internal/models"
	"github.com/stwalsh4118/staylens/internal/services"
	"github.com/stwalsh4118/staylens/internal/views"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(t *testing.T, rps float64, burst int, m *metrics.Metrics) *gin.Engine {
	t.Helper()

	ds := dataset.New([]models.Listing{
		{ID: "1", Neighbourhood: "City of London", PropertyType: "Entire rental unit", Price: 150},
		{ID: "2", Neighbourhood: "Camden", PropertyType: "Private room in home", Price: 60},
	})
	cfg := &config.Config{
		Server:    config.ServerConfig{Env: "test"},
		CORS:      config.CORSConfig{Origins: []string{"http://localhost:3000"}},
		RateLimit: config.RateLimitConfig{RPS: rps, Burst: burst},
	}
	svc := services.NewDashboardService(ds, views.NewRegistry(views.Options{}), m, logger.Nop(), services.DashboardOptions{
		DefaultNeighbourhoods: []string{"City of London"},
	})

	return newRouter(routerDeps{cfg: cfg, log: logger.Nop(), ds: ds, service: svc, metrics: m})
}

func serve(router http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	router := testRouter(t, 0, 0, metrics.New())

	tests := []struct {
		target string
		status int
	}{
		{"/health", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/api/v1/info", http.StatusOK},
		{"/api/v1/facets", http.StatusOK},
		{"/api/v1/views", http.StatusOK},
		{"/api/v1/views/map?neighbourhood=Camden", http.StatusOK},
		{"/api/v1/views/map", http.StatusNoContent},
		{"/api/v1/views/map/geojson?neighbourhood=", http.StatusOK},
		{"/api/v1/views/property-type/chart.png?property_type=Entire+rental+unit", http.StatusOK},
		{"/api/v1/views/unknown", http.StatusNotFound},
		{"/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := serve(router, tt.target, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestRouter_MetricsExposition(t *testing.T) {
	router := testRouter(t, 0, 0, metrics.New())

	serve(router, "/api/v1/views/map?neighbourhood=Camden", nil)
	w := serve(router, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `staylens_view_evaluations_total{status="updated",transport="rest",view="map"} 1`)
	assert.Contains(t, body, `staylens_http_requests_total{method="GET",route="/api/v1/views/:view",status="200"} 1`)
}

func TestRouter_MetricsDisabled(t *testing.T) {
	router := testRouter(t, 0, 0, nil)

	assert.Equal(t, http.StatusNotFound, serve(router, "/metrics", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, "/api/v1/views/map?neighbourhood=Camden", nil).Code)
}

func TestRouter_RateLimit(t *testing.T) {
	router := testRouter(t, 0.001, 1, metrics.New())

	assert.Equal(t, http.StatusOK, serve(router, "/api/v1/facets", nil).Code)

	w := serve(router, "/api/v1/facets", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var response apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, apierrors.ErrTooManyRequests, response.Error.Code)

	assert.Equal(t, http.StatusOK, serve(router, "/health", nil).Code, "health checks are not limited")
}

func TestRouter_CORS(t *testing.T) {
	router := testRouter(t, 0, 0, nil)

	w := serve(router, "/api/v1/facets", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()

	assert.NotNil(t, cmd.Flags().Lookup("host"))
	assert.NotNil(t, cmd.Flags().Lookup("port"))
	assert.Error(t, cmd.Args(cmd, []string{"extra"}))
}
