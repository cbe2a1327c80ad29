package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/staylens/internal/dataset"
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

// mockDashboardService is a mock implementation of services.DashboardService.
type mockDashboardService struct {
	mock.Mock
}

func (m *mockDashboardService) Facets(ctx context.Context) services.Facets {
	args := m.Called(ctx)
	return args.Get(0).(services.Facets)
}

func (m *mockDashboardService) Views() []views.Binding {
	args := m.Called()
	return args.Get(0).([]views.Binding)
}

func (m *mockDashboardService) Evaluate(ctx context.Context, view string, in views.Inputs) views.Result {
	args := m.Called(ctx, view, in)
	return args.Get(0).(views.Result)
}

func (m *mockDashboardService) NewSession() *views.Session {
	args := m.Called()
	return args.Get(0).(*views.Session)
}

func (m *mockDashboardService) Update(ctx context.Context, session *views.Session, view string, in views.Inputs) views.Result {
	args := m.Called(ctx, session, view, in)
	return args.Get(0).(views.Result)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

// testDataset is a small London sample used by the end-to-end handler tests.
func testDataset() *dataset.Dataset {
	return dataset.New([]models.Listing{
		{
			ID: "1", Name: strPtr("Camden Loft"), Neighbourhood: "Camden", PropertyType: "Entire home",
			Price: 100, NumberOfReviews: 4, Latitude: floatPtr(51.54), Longitude: floatPtr(-0.14),
			Availability365: intPtr(100), Superhost: models.True,
		},
		{
			ID: "2", Neighbourhood: "Camden", PropertyType: "Private room",
			Price: 300, NumberOfReviews: 1, Latitude: floatPtr(51.53), Longitude: floatPtr(-0.15),
			Availability365: intPtr(300), Superhost: models.False,
		},
		{
			ID: "3", Neighbourhood: "Hackney", PropertyType: "Entire home",
			Price: 200, Latitude: floatPtr(51.55), Longitude: floatPtr(-0.06),
			Superhost: models.True,
		},
	})
}

// newRealService wires the dashboard service over testDataset.
func newRealService(m *metrics.Metrics) services.DashboardService {
	return services.NewDashboardService(
		testDataset(),
		views.NewRegistry(views.Options{HistogramBuckets: 2}),
		m,
		logger.Nop(),
		services.DashboardOptions{DefaultNeighbourhoods: []string{"Camden"}},
	)
}

// setupViewRouter creates a test router with middleware and the view routes.
func setupViewRouter(service services.DashboardService) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Nop()))
	router.Use(middleware.Recovery(logger.Nop()))

	handler := NewViewHandler(service)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/facets", handler.Facets)
		v1.GET("/views", handler.List)
		v1.GET("/views/:view", handler.Get)
		v1.GET("/views/:view/chart.png", handler.Chart)
		v1.GET("/views/:view/geojson", handler.GeoJSON)
	}

	return router
}
