// Package aggregate reduces a filtered set of listings to chart-ready
// summaries. Every function is pure and safe for concurrent use.
package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/stwalsh4118/staylens/internal/models"
)

var ErrInvalidBucketCount = errors.New("bucket count must be at least 1")

// Field extracts a numeric value from a listing. ok is false when the value
// is missing.
type Field struct {
	Name  string
	Value func(models.Listing) (v float64, ok bool)
}

// Key extracts the grouping key from a listing.
type Key struct {
	Name  string
	Value func(models.Listing) string
}

var (
	Price = Field{Name: "price", Value: func(l models.Listing) (float64, bool) {
		return l.Price, true
	}}
	Reviews = Field{Name: "number_of_reviews", Value: func(l models.Listing) (float64, bool) {
		return float64(l.NumberOfReviews), true
	}}

	ByNeighbourhood = Key{Name: "neighbourhood", Value: func(l models.Listing) string { return l.Neighbourhood }}
	ByPropertyType  = Key{Name: "property_type", Value: func(l models.Listing) string { return l.PropertyType }}
)

// AvailabilityField reads the availability counter for a horizon.
func AvailabilityField(h models.Horizon) Field {
	return Field{Name: h.Column(), Value: func(l models.Listing) (float64, bool) {
		v := l.Availability(h)
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	}}
}

// FieldByName looks up a numeric field by its column name.
func FieldByName(name string) (Field, error) {
	switch name {
	case Price.Name:
		return Price, nil
	case Reviews.Name:
		return Reviews, nil
	}
	h, err := models.ParseHorizon(name)
	if err != nil {
		return Field{}, fmt.Errorf("unknown field %q", name)
	}
	return AvailabilityField(h), nil
}

// Value is a reduction result that may be undefined, such as the mean of
// no values. Undefined values encode as JSON null.
type Value struct {
	V       float64
	Defined bool
}

// Defined wraps v as a defined Value.
func Defined(v float64) Value {
	return Value{V: v, Defined: true}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var f *float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f == nil {
		*v = Value{}
		return nil
	}
	*v = Defined(*f)
	return nil
}

// Bucket is one histogram bin. Lower is inclusive; Upper is exclusive except
// for the last bucket.
type Bucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram counts rows into equal-width buckets spanning the observed range
// of field. Rows where the field is missing are skipped.
func Histogram(rows []models.Listing, field Field, buckets int) ([]Bucket, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBucketCount, buckets)
	}

	values := make([]float64, 0, len(rows))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, l := range rows {
		v, ok := field.Value(l)
		if !ok {
			continue
		}
		values = append(values, v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(values) == 0 {
		return []Bucket{}, nil
	}
	width := (hi - lo) / float64(buckets)
	// ranges too narrow or too wide to split in float64 collapse into one bucket
	if lo == hi || width == 0 || math.IsInf(width, 0) {
		return []Bucket{{Lower: lo, Upper: hi, Count: len(values)}}, nil
	}

	out := make([]Bucket, buckets)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[buckets-1].Upper = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= buckets {
			i = buckets - 1
		}
		// guard against float error pushing a value below its bucket's bound
		for i > 0 && v < out[i].Lower {
			i--
		}
		for i < buckets-1 && v >= out[i].Upper {
			i++
		}
		out[i].Count++
	}
	return out, nil
}

// GroupCount is the number of rows sharing a key.
type GroupCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CountBy counts rows per key, largest count first; ties are ordered by key.
func CountBy(rows []models.Listing, key Key) []GroupCount {
	counts := make(map[string]int)
	for _, l := range rows {
		counts[key.Value(l)]++
	}
	out := make([]GroupCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, GroupCount{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Reduction folds the rows of one group into a single Value.
type Reduction struct {
	Name   string
	Reduce func(rows []models.Listing) Value
}

// Mean averages field over the group, ignoring missing values. It is
// undefined when no row has a value.
func Mean(name string, field Field) Reduction {
	return Reduction{Name: name, Reduce: func(rows []models.Listing) Value {
		var sum float64
		var n int
		for _, l := range rows {
			if v, ok := field.Value(l); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			return Value{}
		}
		return Defined(sum / float64(n))
	}}
}

// Count counts the rows of the group.
func Count(name string) Reduction {
	return Reduction{Name: name, Reduce: func(rows []models.Listing) Value {
		return Defined(float64(len(rows)))
	}}
}

// GroupRecord holds one group's reductions, aligned with the reductions
// passed to GroupAggregate.
type GroupRecord struct {
	Key    string  `json:"key"`
	Values []Value `json:"values"`
}

// Get returns the value at position i, undefined when out of range.
func (r GroupRecord) Get(i int) Value {
	if i < 0 || i >= len(r.Values) {
		return Value{}
	}
	return r.Values[i]
}

// GroupAggregate applies every reduction to each group present in rows.
// Records are ordered by key.
func GroupAggregate(rows []models.Listing, key Key, reductions ...Reduction) []GroupRecord {
	groups := make(map[string][]models.Listing)
	for _, l := range rows {
		k := key.Value(l)
		groups[k] = append(groups[k], l)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]GroupRecord, 0, len(keys))
	for _, k := range keys {
		rec := GroupRecord{Key: k, Values: make([]Value, len(reductions))}
		for i, r := range reductions {
			rec.Values[i] = r.Reduce(groups[k])
		}
		out = append(out, rec)
	}
	return out
}
