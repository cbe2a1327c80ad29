// Package views binds each dashboard view to the filter inputs it declares and
// the aggregation that turns the filtered rows into a chart-ready payload.
//
// A binding is a pure function of the dataset and its current inputs. When a
// required input is absent the binding yields no update, and a Session keeps
// showing the last payload it rendered for that view.
package views

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/staylens/internal/aggregate"
	"github.com/stwalsh4118/staylens/internal/dataset"
	"github.com/stwalsh4118/staylens/internal/filter"
	"github.com/stwalsh4118/staylens/internal/models"
)

// View names.
const (
	ViewMap               = "map"
	ViewPriceDistribution = "price-distribution"
	ViewPropertyType      = "property-type"
	ViewOverallStats      = "overall-stats"
)

// Input names.
const (
	InputNeighbourhoods = "neighbourhoods"
	InputPropertyTypes  = "property_types"
	InputPropertyType   = "property_type"
	InputPriceRange     = "price_range"
	InputHorizon        = "horizon"
	InputHostFlags      = "host_flags"
)

// DefaultHistogramBuckets is the price-distribution bucket count.
const DefaultHistogramBuckets = 50

var ErrUnknownView = errors.New("unknown view")

// Inputs carries the current value of every widget. A nil field means the
// widget has no selection yet; an empty slice is an explicit empty selection.
type Inputs struct {
	Neighbourhoods []string          `json:"neighbourhoods"`
	PropertyTypes  []string          `json:"property_types"`
	PropertyType   *string           `json:"property_type"`
	PriceRange     *filter.Range     `json:"price_range"`
	Horizon        *models.Horizon   `json:"horizon"`
	HostFlags      []models.HostFlag `json:"host_flags"`
}

// Has reports whether the named input has a value.
func (in Inputs) Has(name string) bool {
	switch name {
	case InputNeighbourhoods:
		return in.Neighbourhoods != nil
	case InputPropertyTypes:
		return in.PropertyTypes != nil
	case InputPropertyType:
		return in.PropertyType != nil && *in.PropertyType != ""
	case InputPriceRange:
		return in.PriceRange != nil
	case InputHorizon:
		return in.Horizon != nil
	case InputHostFlags:
		return in.HostFlags != nil
	}
	return false
}

// MissingInputError means a binding's required input has no value yet. It
// produces no update rather than a failure.
type MissingInputError struct {
	View   string
	Inputs []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("view %s is missing required inputs: %s", e.View, strings.Join(e.Inputs, ", "))
}

// Payload is the chart-ready output of one view.
type Payload struct {
	View           string     `json:"view"`
	Title          string     `json:"title"`
	XAxisTitle     string     `json:"x_axis_title,omitempty"`
	YAxisTitle     string     `json:"y_axis_title,omitempty"`
	ColorAxisTitle string     `json:"color_axis_title,omitempty"`
	SizeAxisTitle  string     `json:"size_axis_title,omitempty"`
	Rows           int        `json:"rows"`
	Points         []MapPoint `json:"points,omitempty"`
	Bars           []Bar      `json:"bars,omitempty"`
}

// MapPoint is one listing on the map view.
type MapPoint struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Color float64 `json:"color"`
	Size  float64 `json:"size"`
	Label string  `json:"label"`
}

// Bar is one category or histogram bucket.
type Bar struct {
	Category       string           `json:"category"`
	Lower          *float64         `json:"lower,omitempty"`
	Upper          *float64         `json:"upper,omitempty"`
	Value          float64          `json:"value"`
	Secondary      *aggregate.Value `json:"secondary,omitempty"`
	SecondaryLabel string           `json:"secondary_label,omitempty"`
	Availability   *aggregate.Value `json:"availability,omitempty"`
	Label          string           `json:"label,omitempty"`
}

// Status is the outcome of evaluating a binding.
type Status string

const (
	StatusUpdated  Status = "updated"
	StatusNoUpdate Status = "no_update"
	StatusRejected Status = "rejected"
	StatusError    Status = "error"
)

// Result is the outcome of one evaluation. Payload is set only when Status
// is StatusUpdated, except from a Session which also returns the previous
// payload on no-update and rejection.
type Result struct {
	View    string
	Status  Status
	Payload *Payload
	Err     error
}

// Options tunes the bindings.
type Options struct {
	HistogramBuckets int
	Policy           filter.EmptySelectionPolicy
}

// Binding declares a view's inputs and how to compute it.
type Binding struct {
	Name     string   `json:"name"`
	Inputs   []string `json:"inputs"`
	Required []string `json:"required"`

	compute func(ds *dataset.Dataset, in Inputs, b filter.Builder, opts Options) (*Payload, error)
}

func (b Binding) missing(in Inputs) []string {
	var out []string
	for _, name := range b.Required {
		if !in.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Registry holds the four view bindings.
type Registry struct {
	bindings map[string]Binding
	order    []string
	opts     Options
}

// NewRegistry builds the registry of dashboard views.
func NewRegistry(opts Options) *Registry {
	if opts.HistogramBuckets == 0 {
		opts.HistogramBuckets = DefaultHistogramBuckets
	}
	r := &Registry{bindings: make(map[string]Binding), opts: opts}
	for _, b := range []Binding{mapBinding, priceDistributionBinding, propertyTypeBinding, overallStatsBinding} {
		r.bindings[b.Name] = b
		r.order = append(r.order, b.Name)
	}
	return r
}

// Names returns the view names in display order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Bindings returns every binding in display order.
func (r *Registry) Bindings() []Binding {
	out := make([]Binding, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.bindings[name])
	}
	return out
}

// Get looks up a binding by view name.
func (r *Registry) Get(name string) (Binding, bool) {
	b, ok := r.bindings[name]
	return b, ok
}

// Evaluate computes one view. A panic inside the binding is reported as
// StatusError for that view only.
func (r *Registry) Evaluate(ds *dataset.Dataset, view string, in Inputs) (res Result) {
	res.View = view

	b, ok := r.bindings[view]
	if !ok {
		res.Status = StatusError
		res.Err = fmt.Errorf("%w: %q", ErrUnknownView, view)
		return res
	}

	if missing := b.missing(in); len(missing) > 0 {
		res.Status = StatusNoUpdate
		res.Err = &MissingInputError{View: view, Inputs: missing}
		return res
	}

	defer func() {
		if rec := recover(); rec != nil {
			res.Status = StatusError
			res.Payload = nil
			res.Err = fmt.Errorf("view %s failed: %v", view, rec)
		}
	}()

	payload, err := b.compute(ds, in, filter.Builder{Policy: r.opts.Policy}, r.opts)
	if err != nil {
		res.Status = classify(err)
		res.Err = err
		return res
	}

	res.Status = StatusUpdated
	res.Payload = payload
	return res
}

func classify(err error) Status {
	var rangeErr *filter.InvalidRangeError
	var missingErr *MissingInputError
	switch {
	case errors.As(err, &missingErr):
		return StatusNoUpdate
	case errors.As(err, &rangeErr),
		errors.Is(err, models.ErrUnknownHorizon),
		errors.Is(err, models.ErrUnknownHostFlag):
		return StatusRejected
	default:
		return StatusError
	}
}

// Session remembers the last payload rendered for each view on one
// connection. It is not safe for concurrent use.
type Session struct {
	registry *Registry
	ds       *dataset.Dataset
	last     map[string]*Payload
}

// NewSession starts a session with nothing rendered.
func NewSession(registry *Registry, ds *dataset.Dataset) *Session {
	return &Session{
		registry: registry,
		ds:       ds,
		last:     make(map[string]*Payload),
	}
}

// Update evaluates a view. On no-update or rejection the result carries the
// previously rendered payload, if any.
func (s *Session) Update(view string, in Inputs) Result {
	res := s.registry.Evaluate(s.ds, view, in)
	switch res.Status {
	case StatusUpdated:
		s.last[view] = res.Payload
	case StatusNoUpdate, StatusRejected:
		res.Payload = s.last[view]
	}
	return res
}

// Last returns the last payload rendered for view.
func (s *Session) Last(view string) (*Payload, bool) {
	p, ok := s.last[view]
	return p, ok
}
