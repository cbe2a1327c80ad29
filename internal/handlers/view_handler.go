package handlers

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/staylens/internal/errors"
	"github.com/stwalsh4118/staylens/internal/filter"
	"github.com/stwalsh4118/staylens/internal/middleware"
	"github.com/stwalsh4118/staylens/internal/models"
	"github.com/stwalsh4118/staylens/internal/render"
	"github.com/stwalsh4118/staylens/internal/services"
	"github.com/stwalsh4118/staylens/internal/views"
)

// Query parameter names for widget selections.
const (
	ParamNeighbourhood = "neighbourhood"
	ParamPropertyType  = "property_type"
	ParamHostFlag      = "host_flag"
	ParamPriceMin      = "price_min"
	ParamPriceMax      = "price_max"
	ParamHorizon       = "horizon"
)

// MissingInputsHeader lists the inputs a 204 response is waiting for.
const MissingInputsHeader = "X-Missing-Inputs"

// ViewHandler serves facets and view payloads.
type ViewHandler struct {
	service services.DashboardService
}

// NewViewHandler creates a new ViewHandler instance.
func NewViewHandler(service services.DashboardService) *ViewHandler {
	return &ViewHandler{
		service: service,
	}
}

// ViewQuery holds the scalar query parameters of a view request. Repeatable
// parameters are read separately so an absent parameter can be told apart
// from an empty one.
type ViewQuery struct {
	PriceMin *float64 `form:"price_min" binding:"required_with=PriceMax"`
	PriceMax *float64 `form:"price_max" binding:"required_with=PriceMin"`
	Horizon  string   `form:"horizon" binding:"omitempty,oneof=30 60 90 365 availability_30 availability_60 availability_90 availability_365"`
}

// ViewsResponse lists the available views.
type ViewsResponse struct {
	Views []views.Binding `json:"views"`
	Count int             `json:"count"`
}

// Facets handles GET /api/v1/facets endpoint.
func (h *ViewHandler) Facets(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Facets(c.Request.Context()))
}

// List handles GET /api/v1/views endpoint.
func (h *ViewHandler) List(c *gin.Context) {
	bindings := h.service.Views()
	c.JSON(http.StatusOK, ViewsResponse{
		Views: bindings,
		Count: len(bindings),
	})
}

// Get handles GET /api/v1/views/:view endpoint.
func (h *ViewHandler) Get(c *gin.Context) {
	res, ok := h.evaluate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res.Payload)
}

// Chart handles GET /api/v1/views/:view/chart.png endpoint.
func (h *ViewHandler) Chart(c *gin.Context) {
	res, ok := h.evaluate(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.PNG(&buf, res.Payload); err != nil {
		if errors.Is(err, render.ErrNoData) {
			c.Status(http.StatusNoContent)
			return
		}
		apierrors.InternalServerError(c, "Failed to render chart", err)
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// GeoJSON handles GET /api/v1/views/:view/geojson endpoint. Only the map view
// has a geographic rendering.
func (h *ViewHandler) GeoJSON(c *gin.Context) {
	if c.Param("view") != views.ViewMap {
		apierrors.NotFound(c, "View "+c.Param("view")+" has no GeoJSON rendering")
		return
	}

	res, ok := h.evaluate(c)
	if !ok {
		return
	}

	features := make([]models.Feature, 0, len(res.Payload.Points))
	for _, p := range res.Payload.Points {
		features = append(features, models.NewFeature(p.Lat, p.Lon, map[string]interface{}{
			"id":                p.ID,
			"label":             p.Label,
			"price":             p.Color,
			"number_of_reviews": p.Size,
		}))
	}

	c.JSON(http.StatusOK, models.NewFeatureCollection(features))
}

// evaluate parses the selection, runs the view and writes every non-200
// outcome. It reports whether the caller should write the payload.
func (h *ViewHandler) evaluate(c *gin.Context) (views.Result, bool) {
	view := c.Param("view")

	in, ok := bindInputs(c)
	if !ok {
		return views.Result{}, false
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Processing view request", map[string]interface{}{
			"view":       view,
			"has_inputs": inputNames(in),
		})
	}

	res := h.service.Evaluate(c.Request.Context(), view, in)

	switch res.Status {
	case views.StatusUpdated:
		return res, true
	case views.StatusNoUpdate:
		var missing *views.MissingInputError
		if errors.As(res.Err, &missing) {
			c.Header(MissingInputsHeader, strings.Join(missing.Inputs, ","))
		}
		c.Status(http.StatusNoContent)
	case views.StatusRejected:
		var rangeErr *filter.InvalidRangeError
		if errors.As(res.Err, &rangeErr) {
			apierrors.InvalidRange(c, rangeErr.Min, rangeErr.Max)
		} else {
			apierrors.ValidationFailed(c, map[string]interface{}{"selection": res.Err.Error()})
		}
	default:
		if errors.Is(res.Err, views.ErrUnknownView) {
			apierrors.NotFound(c, "Unknown view "+view)
		} else {
			apierrors.ViewError(c, view, res.Err)
		}
	}
	return res, false
}

// bindInputs reads the widget selections from the query string. It writes a
// 400 response and returns false when a parameter is malformed.
func bindInputs(c *gin.Context) (views.Inputs, bool) {
	var q ViewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return views.Inputs{}, false
		}
		apierrors.BadRequest(c, "Invalid query parameters", map[string]interface{}{"error": err.Error()})
		return views.Inputs{}, false
	}

	var in views.Inputs

	if values, ok := c.GetQueryArray(ParamNeighbourhood); ok {
		in.Neighbourhoods = nonEmpty(values)
	}
	if values, ok := c.GetQueryArray(ParamPropertyType); ok {
		in.PropertyTypes = nonEmpty(values)
		first := ""
		if len(in.PropertyTypes) > 0 {
			first = in.PropertyTypes[0]
		}
		in.PropertyType = &first
	}
	if values, ok := c.GetQueryArray(ParamHostFlag); ok {
		in.HostFlags = make([]models.HostFlag, 0, len(values))
		for _, v := range nonEmpty(values) {
			flag, err := models.ParseHostFlag(v)
			if err != nil {
				apierrors.ValidationFailed(c, map[string]interface{}{ParamHostFlag: err.Error()})
				return views.Inputs{}, false
			}
			in.HostFlags = append(in.HostFlags, flag)
		}
	}

	if q.PriceMin != nil && q.PriceMax != nil {
		if !finite(*q.PriceMin) || !finite(*q.PriceMax) {
			apierrors.ValidationFailed(c, map[string]interface{}{
				ParamPriceMin: "Must be a finite number",
				ParamPriceMax: "Must be a finite number",
			})
			return views.Inputs{}, false
		}
		in.PriceRange = &filter.Range{Min: *q.PriceMin, Max: *q.PriceMax}
	}

	if q.Horizon != "" {
		horizon, err := models.ParseHorizon(q.Horizon)
		if err != nil {
			apierrors.ValidationFailed(c, map[string]interface{}{ParamHorizon: err.Error()})
			return views.Inputs{}, false
		}
		in.Horizon = &horizon
	}

	return in, true
}

// nonEmpty drops blank values and always returns a non-nil slice.
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inputNames(in views.Inputs) []string {
	names := make([]string, 0, 6)
	for _, name := range []string{
		views.InputNeighbourhoods, views.InputPropertyTypes, views.InputPropertyType,
		views.InputPriceRange, views.InputHorizon, views.InputHostFlags,
	} {
		if in.Has(name) {
			names = append(names, name)
		}
	}
	return names
}
