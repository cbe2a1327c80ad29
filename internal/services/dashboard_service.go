package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/stwalsh4118/staylens/internal/dataset"
	"github.com/stwalsh4118/staylens/internal/filter"
	"github.com/stwalsh4118/staylens/internal/logger"
	"github.com/stwalsh4118/staylens/internal/metrics"
	"github.com/stwalsh4118/staylens/internal/models"
	"github.com/stwalsh4118/staylens/internal/views"
)

// Transport labels used in metrics and logs.
const (
	TransportREST      = "rest"
	TransportWebsocket = "websocket"
)

// Price slider settings.
const (
	PriceMarkInterval     = 100
	MaxPriceMarks         = 20
	DistributionPriceStep = 5
	OverallPriceStep      = 10
)

// DefaultPropertyTypeOptions is how many property types the radio widget offers.
const DefaultPropertyTypeOptions = 15

// Option is one entry of a fixed enumeration widget.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// PriceMark is one labelled tick on a price slider.
type PriceMark struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// PriceFacet describes the price sliders.
type PriceFacet struct {
	Min              float64     `json:"min"`
	Max              float64     `json:"max"`
	Marks            []PriceMark `json:"marks"`
	DistributionStep float64     `json:"distribution_step"`
	OverallStep      float64     `json:"overall_step"`
}

// Defaults is the initial state of every widget.
type Defaults struct {
	Neighbourhoods []string          `json:"neighbourhoods"`
	PriceRange     *filter.Range     `json:"price_range"`
	Horizon        models.Horizon    `json:"horizon"`
	PropertyType   *string           `json:"property_type"`
	PropertyTypes  []string          `json:"property_types"`
	HostFlags      []models.HostFlag `json:"host_flags"`
}

// Facets are the value domains of the user input surface.
type Facets struct {
	Rows                int            `json:"rows"`
	Neighbourhoods      []string       `json:"neighbourhoods"`
	PropertyTypes       []string       `json:"property_types"`
	PropertyTypeOptions []string       `json:"property_type_options"`
	Price               *PriceFacet    `json:"price"`
	MaxAvailability     map[string]int `json:"max_availability"`
	Horizons            []Option       `json:"horizons"`
	HostFlags           []Option       `json:"host_flags"`
	Defaults            Defaults       `json:"defaults"`
}

// DashboardOptions configures facet defaults.
type DashboardOptions struct {
	DefaultNeighbourhoods []string
	PropertyTypeOptions   int
}

// DashboardService evaluates views against the loaded dataset.
type DashboardService interface {
	// Facets returns the widget value domains and defaults.
	Facets(ctx context.Context) Facets

	// Views returns every view binding in display order.
	Views() []views.Binding

	// Evaluate computes one view without any session state.
	Evaluate(ctx context.Context, view string, in views.Inputs) views.Result

	// NewSession starts a per-connection session that remembers the last
	// rendered payload of each view.
	NewSession() *views.Session

	// Update evaluates a view within a session.
	Update(ctx context.Context, session *views.Session, view string, in views.Inputs) views.Result
}

// dashboardService is the concrete implementation of DashboardService.
type dashboardService struct {
	ds       *dataset.Dataset
	registry *views.Registry
	metrics  *metrics.Metrics
	log      *logger.Logger
	opts     DashboardOptions

	facetsOnce sync.Once
	facets     Facets
}

// NewDashboardService creates a new instance of DashboardService. m may be nil.
func NewDashboardService(ds *dataset.Dataset, registry *views.Registry, m *metrics.Metrics, log *logger.Logger, opts DashboardOptions) DashboardService {
	if opts.PropertyTypeOptions <= 0 {
		opts.PropertyTypeOptions = DefaultPropertyTypeOptions
	}
	return &dashboardService{
		ds:       ds,
		registry: registry,
		metrics:  m,
		log:      log.WithComponent("dashboard"),
		opts:     opts,
	}
}

// Facets computes the facets once and then serves the cached value.
func (s *dashboardService) Facets(ctx context.Context) Facets {
	s.facetsOnce.Do(func() {
		s.facets = s.buildFacets()
		s.log.Debug("Facets computed", map[string]interface{}{
			"neighbourhoods": len(s.facets.Neighbourhoods),
			"property_types": len(s.facets.PropertyTypes),
		})
	})
	return s.facets
}

func (s *dashboardService) buildFacets() Facets {
	hoods := s.ds.DistinctNeighbourhoods()
	types := s.ds.DistinctPropertyTypes()

	options := types
	if len(options) > s.opts.PropertyTypeOptions {
		options = options[:s.opts.PropertyTypeOptions]
	}

	f := Facets{
		Rows:                s.ds.Len(),
		Neighbourhoods:      hoods,
		PropertyTypes:       types,
		PropertyTypeOptions: options,
		MaxAvailability:     make(map[string]int, len(models.Horizons)),
		Horizons:            make([]Option, 0, len(models.Horizons)),
		HostFlags:           make([]Option, 0, len(models.HostFlags)),
		Defaults: Defaults{
			Neighbourhoods: defaultNeighbourhoods(hoods, s.opts.DefaultNeighbourhoods),
			Horizon:        models.Horizon365,
			PropertyTypes:  []string{},
			HostFlags:      []models.HostFlag{},
		},
	}

	for _, h := range models.Horizons {
		f.MaxAvailability[h.Column()] = s.ds.MaxAvailability(h)
		f.Horizons = append(f.Horizons, Option{Value: h.Column(), Label: h.Label()})
	}
	for _, flag := range models.HostFlags {
		f.HostFlags = append(f.HostFlags, Option{Value: string(flag), Label: flag.Label()})
	}
	if len(options) > 0 {
		first := options[0]
		f.Defaults.PropertyType = &first
	}

	if lo, hi, ok := s.ds.PriceRange(); ok {
		f.Price = &PriceFacet{
			Min:              lo,
			Max:              hi,
			Marks:            priceMarks(lo, hi),
			DistributionStep: DistributionPriceStep,
			OverallStep:      OverallPriceStep,
		}
		f.Defaults.PriceRange = &filter.Range{Min: lo, Max: hi}
	}

	return f
}

// defaultNeighbourhoods keeps the configured defaults that exist in the dataset.
func defaultNeighbourhoods(available, wanted []string) []string {
	present := make(map[string]struct{}, len(available))
	for _, n := range available {
		present[n] = struct{}{}
	}
	out := make([]string, 0, len(wanted))
	for _, w := range wanted {
		if _, ok := present[w]; ok {
			out = append(out, w)
		}
	}
	return out
}

// priceMarks ticks the slider every PriceMarkInterval from lo, widening the
// interval in whole multiples of it when the range would need more than
// MaxPriceMarks ticks.
func priceMarks(lo, hi float64) []PriceMark {
	start, end := math.Trunc(lo), math.Trunc(hi)
	interval := float64(PriceMarkInterval)
	if span := end - start; span/interval > MaxPriceMarks {
		interval = math.Ceil(span/MaxPriceMarks/PriceMarkInterval) * PriceMarkInterval
	}

	marks := make([]PriceMark, 0)
	for v := start; v < end && len(marks) < MaxPriceMarks; v += interval {
		marks = append(marks, PriceMark{Value: v, Label: fmt.Sprintf("£%.0f", v)})
	}
	return marks
}

// Views returns every view binding in display order.
func (s *dashboardService) Views() []views.Binding {
	return s.registry.Bindings()
}

// Evaluate computes one view without any session state.
func (s *dashboardService) Evaluate(ctx context.Context, view string, in views.Inputs) views.Result {
	start := time.Now()
	res := s.registry.Evaluate(s.ds, view, in)
	s.record(TransportREST, res, time.Since(start))
	return res
}

// NewSession starts a per-connection session.
func (s *dashboardService) NewSession() *views.Session {
	return views.NewSession(s.registry, s.ds)
}

// Update evaluates a view within a session, falling back to the last
// rendered payload when there is nothing new to show.
func (s *dashboardService) Update(ctx context.Context, session *views.Session, view string, in views.Inputs) views.Result {
	start := time.Now()
	res := session.Update(view, in)
	s.record(TransportWebsocket, res, time.Since(start))
	return res
}

func (s *dashboardService) record(transport string, res views.Result, elapsed time.Duration) {
	rows := -1
	if res.Status == views.StatusUpdated && res.Payload != nil {
		rows = res.Payload.Rows
	}

	fields := map[string]interface{}{
		"view":        res.View,
		"status":      string(res.Status),
		"transport":   transport,
		"duration_ms": elapsed.Milliseconds(),
	}
	if rows >= 0 {
		fields["rows"] = rows
	}

	switch res.Status {
	case views.StatusUpdated:
		s.log.Debug("View evaluated", fields)
	case views.StatusNoUpdate:
		s.log.Debug("View has missing inputs", fields)
	case views.StatusRejected:
		s.log.Warn("View update rejected", withError(fields, res.Err))
	default:
		if errors.Is(res.Err, views.ErrUnknownView) {
			s.log.Warn("Unknown view requested", withError(fields, res.Err))
		} else {
			s.log.Error("View evaluation failed", res.Err, fields)
		}
	}

	// unknown view names are not recorded as labels
	if _, ok := s.registry.Get(res.View); ok {
		s.metrics.ObserveView(res.View, string(res.Status), transport, rows, elapsed)
	}
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	if err != nil {
		fields["error"] = err.Error()
	}
	return fields
}
