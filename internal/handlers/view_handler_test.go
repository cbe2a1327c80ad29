package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/staylens/internal/errors"
	"github.com/stwalsh4118/staylens/internal/filter"
	"github.com/stwalsh4118/staylens/internal/models"
	"github.com/stwalsh4118/staylens/internal/services"
	"github.com/stwalsh4118/staylens/internal/views"
)

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.ErrorDetail {
	t.Helper()
	var response apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response.Error
}

func TestViewHandler_QueryParsing(t *testing.T) {
	horizon := models.Horizon90

	tests := []struct {
		name     string
		query    string
		expected views.Inputs
	}{
		{
			name:     "nothing selected",
			query:    "",
			expected: views.Inputs{},
		},
		{
			name:  "repeated neighbourhoods",
			query: "?neighbourhood=Camden&neighbourhood=Hackney",
			expected: views.Inputs{
				Neighbourhoods: []string{"Camden", "Hackney"},
			},
		},
		{
			name:  "present but empty neighbourhood",
			query: "?neighbourhood=",
			expected: views.Inputs{
				Neighbourhoods: []string{},
			},
		},
		{
			name:  "property type fills single and multi inputs",
			query: "?property_type=Entire+home&property_type=Private+room",
			expected: views.Inputs{
				PropertyTypes: []string{"Entire home", "Private room"},
				PropertyType:  strPtr("Entire home"),
			},
		},
		{
			name:  "price range and horizon",
			query: "?price_min=50&price_max=250.5&horizon=availability_90",
			expected: views.Inputs{
				PriceRange: &filter.Range{Min: 50, Max: 250.5},
				Horizon:    &horizon,
			},
		},
		{
			name:  "host flags",
			query: "?host_flag=superhost&host_flag=identity_verified",
			expected: views.Inputs{
				HostFlags: []models.HostFlag{models.FlagSuperhost, models.FlagIdentityVerified},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockDashboardService)
			svc.On("Evaluate", mock.Anything, views.ViewMap, tt.expected).
				Return(views.Result{View: views.ViewMap, Status: views.StatusUpdated, Payload: &views.Payload{View: views.ViewMap}})

			w := get(t, setupViewRouter(svc), "/api/v1/views/map"+tt.query)

			assert.Equal(t, http.StatusOK, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestViewHandler_InvalidQuery(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		expectedCode string
		detailKey    string
	}{
		{"unknown horizon", "?horizon=45", apierrors.ErrValidation, "Horizon"},
		{"price min without max", "?price_min=10", apierrors.ErrValidation, "PriceMax"},
		{"non-numeric price", "?price_min=cheap&price_max=10", apierrors.ErrBadRequest, "error"},
		{"non-finite price", "?price_min=NaN&price_max=10", apierrors.ErrValidation, "price_min"},
		{"unknown host flag", "?host_flag=friendly", apierrors.ErrValidation, "host_flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockDashboardService)

			w := get(t, setupViewRouter(svc), "/api/v1/views/overall-stats"+tt.query)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			detail := decodeError(t, w)
			assert.Equal(t, tt.expectedCode, detail.Code)
			assert.Contains(t, detail.Details, tt.detailKey)
			assert.NotEmpty(t, detail.RequestID)
			svc.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestViewHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name           string
		result         views.Result
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "missing input",
			result: views.Result{Status: views.StatusNoUpdate, Err: &views.MissingInputError{
				View: views.ViewOverallStats, Inputs: []string{views.InputHorizon},
			}},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "invalid range",
			result:         views.Result{Status: views.StatusRejected, Err: &filter.InvalidRangeError{Min: 500, Max: 100}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apierrors.ErrInvalidRange,
		},
		{
			name:           "other rejection",
			result:         views.Result{Status: views.StatusRejected, Err: models.ErrUnknownHorizon},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apierrors.ErrValidation,
		},
		{
			name:           "unknown view",
			result:         views.Result{Status: views.StatusError, Err: views.ErrUnknownView},
			expectedStatus: http.StatusNotFound,
			expectedCode:   apierrors.ErrNotFound,
		},
		{
			name:           "compute failure",
			result:         views.Result{Status: views.StatusError, Err: errors.New("boom")},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   apierrors.ErrViewFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockDashboardService)
			svc.On("Evaluate", mock.Anything, views.ViewOverallStats, mock.Anything).Return(tt.result)

			w := get(t, setupViewRouter(svc), "/api/v1/views/overall-stats")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Code)
			} else {
				assert.Empty(t, w.Body.String())
				assert.Equal(t, views.InputHorizon, w.Header().Get(MissingInputsHeader))
			}
		})
	}
}

func TestViewHandler_EndToEnd(t *testing.T) {
	router := setupViewRouter(newRealService(nil))

	t.Run("price distribution", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/price-distribution?neighbourhood=Camden&neighbourhood=Hackney&price_min=0&price_max=500")
		require.Equal(t, http.StatusOK, w.Code)

		var payload views.Payload
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, "Price Distribution", payload.Title)
		assert.Equal(t, 3, payload.Rows)
		require.Len(t, payload.Bars, 2)
		assert.Equal(t, 1.0, payload.Bars[0].Value)
		assert.Equal(t, 2.0, payload.Bars[1].Value)
	})

	t.Run("overall stats with undefined availability", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/overall-stats?horizon=365&price_min=0&price_max=500")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"availability":null`)
		assert.Contains(t, w.Body.String(), `"label":"n/a"`)
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/price-distribution?neighbourhood=Camden&price_min=500&price_max=100")
		require.Equal(t, http.StatusBadRequest, w.Code)

		detail := decodeError(t, w)
		assert.Equal(t, apierrors.ErrInvalidRange, detail.Code)
		assert.Equal(t, 500.0, detail.Details["min"])
	})

	t.Run("property type needs a selection", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/property-type?property_type=")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, views.InputPropertyType, w.Header().Get(MissingInputsHeader))
	})

	t.Run("unknown view", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/heatmap")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestViewHandler_Facets(t *testing.T) {
	router := setupViewRouter(newRealService(nil))

	w := get(t, router, "/api/v1/facets")
	require.Equal(t, http.StatusOK, w.Code)

	var facets services.Facets
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &facets))
	assert.Equal(t, []string{"Camden", "Hackney"}, facets.Neighbourhoods)
	assert.Equal(t, []string{"Camden"}, facets.Defaults.Neighbourhoods)
	require.NotNil(t, facets.Price)
	assert.Equal(t, 100.0, facets.Price.Min)
	assert.Equal(t, 300.0, facets.Price.Max)
}

func TestViewHandler_List(t *testing.T) {
	router := setupViewRouter(newRealService(nil))

	w := get(t, router, "/api/v1/views")
	require.Equal(t, http.StatusOK, w.Code)

	var response ViewsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 4, response.Count)
	assert.Equal(t, views.ViewMap, response.Views[0].Name)
	assert.Equal(t, []string{views.InputNeighbourhoods}, response.Views[0].Required)
}

func TestViewHandler_Chart(t *testing.T) {
	router := setupViewRouter(newRealService(nil))

	t.Run("renders png", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/property-type/chart.png?property_type=Entire+home")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

		_, err := png.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
		assert.NoError(t, err)
	})

	t.Run("empty selection has nothing to draw", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/property-type/chart.png?property_type=Castle")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Zero(t, w.Body.Len())
		assert.Empty(t, w.Header().Get(MissingInputsHeader))
	})

	t.Run("empty map selection has nothing to draw", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/map/chart.png?neighbourhood=Atlantis")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Zero(t, w.Body.Len())
	})
}

func TestViewHandler_GeoJSON(t *testing.T) {
	router := setupViewRouter(newRealService(nil))

	t.Run("map points as features", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/map/geojson?neighbourhood=Camden")
		require.Equal(t, http.StatusOK, w.Code)

		var fc models.FeatureCollection
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
		assert.Equal(t, "FeatureCollection", fc.Type)
		require.Len(t, fc.Features, 2)
		assert.Equal(t, "1", fc.Features[0].Properties["id"])
		assert.Equal(t, -0.14, fc.Features[0].Geometry.Lon)
	})

	t.Run("other views have no geojson", func(t *testing.T) {
		w := get(t, router, "/api/v1/views/overall-stats/geojson")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
