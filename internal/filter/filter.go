// Package filter turns a set of user-selected filter values into a pure
// row predicate over listings.
package filter

import (
	"fmt"
	"math"

	"github.com/stwalsh4118/staylens/internal/models"
)

// Predicate reports whether a listing belongs to the filtered subset.
type Predicate func(models.Listing) bool

// EmptySelectionPolicy decides what an explicitly empty multi-select means.
type EmptySelectionPolicy int

const (
	// MatchAll treats an empty selection like an absent one.
	MatchAll EmptySelectionPolicy = iota
	// MatchNone treats an empty selection as "select nothing".
	MatchNone
)

// ParsePolicy maps the EMPTY_SELECTION config value onto a policy.
func ParsePolicy(s string) (EmptySelectionPolicy, error) {
	switch s {
	case "", "all":
		return MatchAll, nil
	case "none":
		return MatchNone, nil
	default:
		return MatchAll, fmt.Errorf("unknown empty selection policy %q", s)
	}
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// InvalidRangeError is returned when a range's bounds are out of order or NaN.
type InvalidRangeError struct {
	Min float64
	Max float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid price range: min %g is greater than max %g", e.Min, e.Max)
}

// Validate checks that the range is well formed.
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
		return &InvalidRangeError{Min: r.Min, Max: r.Max}
	}
	return nil
}

// Criteria is one combination of filter values. A nil field places no
// constraint on its axis.
type Criteria struct {
	Neighbourhoods []string
	PropertyTypes  []string
	PriceRange     *Range
	Horizon        *models.Horizon
	HostFlags      []models.HostFlag
}

// Builder builds predicates under a fixed empty-selection policy.
type Builder struct {
	Policy EmptySelectionPolicy
}

// Build returns the conjunction of every constrained axis in c.
func (b Builder) Build(c Criteria) (Predicate, error) {
	if c.PriceRange != nil {
		if err := c.PriceRange.Validate(); err != nil {
			return nil, err
		}
	}
	if c.Horizon != nil && !c.Horizon.Valid() {
		return nil, fmt.Errorf("%w: %d", models.ErrUnknownHorizon, int(*c.Horizon))
	}
	flags := make([]models.HostFlag, 0, len(c.HostFlags))
	for _, f := range c.HostFlags {
		parsed, err := models.ParseHostFlag(string(f))
		if err != nil {
			return nil, err
		}
		flags = append(flags, parsed)
	}

	var preds []Predicate

	if p, ok := b.membership(c.Neighbourhoods, func(l models.Listing) string { return l.Neighbourhood }); ok {
		preds = append(preds, p)
	}
	if p, ok := b.membership(c.PropertyTypes, func(l models.Listing) string { return l.PropertyType }); ok {
		preds = append(preds, p)
	}
	if c.PriceRange != nil {
		r := *c.PriceRange
		preds = append(preds, func(l models.Listing) bool { return r.Contains(l.Price) })
	}
	if len(flags) > 0 {
		preds = append(preds, func(l models.Listing) bool {
			for _, f := range flags {
				if l.Flag(f) != models.True {
					return false
				}
			}
			return true
		})
	}

	switch len(preds) {
	case 0:
		return All(), nil
	case 1:
		return preds[0], nil
	}
	return func(l models.Listing) bool {
		for _, p := range preds {
			if !p(l) {
				return false
			}
		}
		return true
	}, nil
}

// membership builds a set-membership predicate for one categorical axis.
// ok is false when the axis places no constraint.
func (b Builder) membership(values []string, field func(models.Listing) string) (Predicate, bool) {
	if values == nil {
		return nil, false
	}
	if len(values) == 0 {
		if b.Policy == MatchNone {
			return None(), true
		}
		return nil, false
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return func(l models.Listing) bool {
		_, ok := set[field(l)]
		return ok
	}, true
}

// Build builds a predicate under the default MatchAll policy.
func Build(c Criteria) (Predicate, error) {
	return Builder{}.Build(c)
}

// All matches every listing.
func All() Predicate {
	return func(models.Listing) bool { return true }
}

// None matches no listing.
func None() Predicate {
	return func(models.Listing) bool { return false }
}
