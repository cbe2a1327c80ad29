// Package dataset holds the cleaned, immutable listings table and the facet
// lists derived from it. A Dataset is loaded once at startup and then shared
// read-only by every request.
package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stwalsh4118/staylens/internal/filter"
	"github.com/stwalsh4118/staylens/internal/logger"
	"github.com/stwalsh4118/staylens/internal/models"
	"github.com/stwalsh4118/staylens/internal/source"
)

// Source column names.
const (
	ColID               = "id"
	ColName             = "name"
	ColNeighbourhood    = "neighbourhood_cleansed"
	ColPropertyType     = "property_type"
	ColPrice            = "price"
	ColLatitude         = "latitude"
	ColLongitude        = "longitude"
	ColNumberOfReviews  = "number_of_reviews"
	ColSuperhost        = "host_is_superhost"
	ColHasProfilePic    = "host_has_profile_pic"
	ColIdentityVerified = "host_identity_verified"
)

// RequiredColumns must all be present in the source table.
var RequiredColumns = []string{
	ColID,
	ColNeighbourhood,
	ColPropertyType,
	ColPrice,
	ColLatitude,
	ColLongitude,
	ColNumberOfReviews,
	models.Horizon30.Column(),
	models.Horizon60.Column(),
	models.Horizon90.Column(),
	models.Horizon365.Column(),
	ColSuperhost,
	ColHasProfilePic,
	ColIdentityVerified,
}

// SourceColumns is every column the cleaner reads; database sources select
// only these.
var SourceColumns = append(append([]string{}, RequiredColumns...), ColName)

// LoadError reports that the dataset could not be built from its source.
type LoadError struct {
	Source  string
	Missing []string
	Err     error
}

func (e *LoadError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("failed to load dataset from %s: missing required columns: %s",
			e.Source, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("failed to load dataset from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadStats summarises what the cleaner did to the raw table.
type LoadStats struct {
	RowsRead                    int `json:"rows_read"`
	RowsKept                    int `json:"rows_kept"`
	DroppedMissingNeighbourhood int `json:"dropped_missing_neighbourhood"`
	DroppedInvalidPrice         int `json:"dropped_invalid_price"`
	PropertyTypeDefaulted       int `json:"property_type_defaulted"`
	CoordinatesMissing          int `json:"coordinates_missing"`
	AvailabilityMissing         int `json:"availability_missing"`
}

// Dataset is the immutable, cleaned listings table.
type Dataset struct {
	rows     []models.Listing
	stats    LoadStats
	source   string
	loadedAt time.Time

	neighbourhoodsOnce sync.Once
	neighbourhoods     []string

	propertyTypesOnce sync.Once
	propertyTypes     []string

	priceOnce sync.Once
	priceMin  float64
	priceMax  float64
	priceOK   bool

	availabilityOnce sync.Once
	maxAvailability  map[models.Horizon]int
}

// Load reads the raw table from r and cleans it into a Dataset.
func Load(ctx context.Context, r source.Reader, log *logger.Logger) (*Dataset, error) {
	desc := r.Describe()
	log.Info("Loading dataset", map[string]interface{}{
		"source": desc,
	})

	start := time.Now()
	table, err := r.Read(ctx)
	if err != nil {
		log.Error("Failed to read dataset source", err, map[string]interface{}{
			"source": desc,
		})
		return nil, &LoadError{Source: desc, Err: err}
	}

	ds, err := FromTable(table, desc)
	if err != nil {
		log.Error("Failed to clean dataset", err, map[string]interface{}{
			"source": desc,
		})
		return nil, err
	}

	stats := ds.Stats()
	log.Info("Dataset loaded", map[string]interface{}{
		"source":                        desc,
		"rows_read":                     stats.RowsRead,
		"rows_kept":                     stats.RowsKept,
		"dropped_missing_neighbourhood": stats.DroppedMissingNeighbourhood,
		"dropped_invalid_price":         stats.DroppedInvalidPrice,
		"property_type_defaulted":       stats.PropertyTypeDefaulted,
		"duration_ms":                   time.Since(start).Milliseconds(),
	})
	if stats.DroppedMissingNeighbourhood+stats.DroppedInvalidPrice > 0 {
		log.Warn("Dropped unusable listing rows", map[string]interface{}{
			"missing_neighbourhood": stats.DroppedMissingNeighbourhood,
			"invalid_price":         stats.DroppedInvalidPrice,
		})
	}

	return ds, nil
}

// FromTable cleans a raw table. desc names the table's origin in errors.
func FromTable(table *source.Table, desc string) (*Dataset, error) {
	if table == nil {
		return nil, &LoadError{Source: desc, Err: fmt.Errorf("%w: no table", source.ErrMalformed)}
	}

	idx := table.ColumnIndex()
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{
			Source:  desc,
			Missing: missing,
			Err:     fmt.Errorf("%w: missing required columns: %s", source.ErrMalformed, strings.Join(missing, ", ")),
		}
	}

	nameIdx, hasName := idx[ColName]
	cell := func(row []string, col string) string {
		return row[idx[col]]
	}

	stats := LoadStats{RowsRead: len(table.Rows)}
	rows := make([]models.Listing, 0, len(table.Rows))

	for _, row := range table.Rows {
		hood := cell(row, ColNeighbourhood)
		if isMissing(hood) {
			stats.DroppedMissingNeighbourhood++
			continue
		}
		price, ok := parsePrice(cell(row, ColPrice))
		if !ok {
			stats.DroppedInvalidPrice++
			continue
		}

		l := models.Listing{
			ID:               strings.TrimSpace(cell(row, ColID)),
			Neighbourhood:    strings.TrimSpace(hood),
			PropertyType:     strings.TrimSpace(cell(row, ColPropertyType)),
			Price:            price,
			Latitude:         parseCoordinate(cell(row, ColLatitude), 90),
			Longitude:        parseCoordinate(cell(row, ColLongitude), 180),
			Availability30:   parseAvailability(cell(row, models.Horizon30.Column()), models.Horizon30),
			Availability60:   parseAvailability(cell(row, models.Horizon60.Column()), models.Horizon60),
			Availability90:   parseAvailability(cell(row, models.Horizon90.Column()), models.Horizon90),
			Availability365:  parseAvailability(cell(row, models.Horizon365.Column()), models.Horizon365),
			Superhost:        models.ParseTriState(cell(row, ColSuperhost)),
			HasProfilePic:    models.ParseTriState(cell(row, ColHasProfilePic)),
			IdentityVerified: models.ParseTriState(cell(row, ColIdentityVerified)),
		}
		if hasName {
			l.Name = parseOptionalString(row[nameIdx])
		}
		if reviews, ok := parseCount(cell(row, ColNumberOfReviews)); ok {
			l.NumberOfReviews = reviews
		}
		if isMissing(l.PropertyType) {
			l.PropertyType = models.UnknownPropertyType
			stats.PropertyTypeDefaulted++
		}
		if _, _, ok := l.Coordinates(); !ok {
			stats.CoordinatesMissing++
		}
		for _, h := range models.Horizons {
			if l.Availability(h) == nil {
				stats.AvailabilityMissing++
				break
			}
		}

		rows = append(rows, l)
	}
	stats.RowsKept = len(rows)

	return &Dataset{
		rows:     rows,
		stats:    stats,
		source:   desc,
		loadedAt: time.Now().UTC(),
	}, nil
}

// New builds a Dataset from listings that are already clean. The slice is copied.
func New(listings []models.Listing) *Dataset {
	rows := make([]models.Listing, len(listings))
	copy(rows, listings)
	return &Dataset{
		rows:     rows,
		stats:    LoadStats{RowsRead: len(rows), RowsKept: len(rows)},
		source:   "memory",
		loadedAt: time.Now().UTC(),
	}
}

// Rows returns every listing. The returned slice must not be modified.
func (d *Dataset) Rows() []models.Listing {
	return d.rows[:len(d.rows):len(d.rows)]
}

// Len returns the number of listings.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Stats returns the cleaning summary.
func (d *Dataset) Stats() LoadStats {
	return d.stats
}

// Source describes where the rows were read from.
func (d *Dataset) Source() string {
	return d.source
}

// LoadedAt returns when the dataset was built.
func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// Filter returns the listings matching pred, in dataset order.
func (d *Dataset) Filter(pred filter.Predicate) []models.Listing {
	if pred == nil {
		pred = filter.All()
	}
	out := make([]models.Listing, 0)
	for _, l := range d.rows {
		if pred(l) {
			out = append(out, l)
		}
	}
	return out
}

// DistinctNeighbourhoods returns the sorted set of neighbourhoods.
func (d *Dataset) DistinctNeighbourhoods() []string {
	d.neighbourhoodsOnce.Do(func() {
		d.neighbourhoods = distinct(d.rows, func(l models.Listing) string { return l.Neighbourhood })
	})
	return d.neighbourhoods
}

// DistinctPropertyTypes returns the sorted set of property types.
func (d *Dataset) DistinctPropertyTypes() []string {
	d.propertyTypesOnce.Do(func() {
		d.propertyTypes = distinct(d.rows, func(l models.Listing) string { return l.PropertyType })
	})
	return d.propertyTypes
}

// PriceRange returns the smallest and largest price. ok is false for an
// empty dataset.
func (d *Dataset) PriceRange() (lo, hi float64, ok bool) {
	d.priceOnce.Do(func() {
		for i, l := range d.rows {
			if i == 0 || l.Price < d.priceMin {
				d.priceMin = l.Price
			}
			if i == 0 || l.Price > d.priceMax {
				d.priceMax = l.Price
			}
		}
		d.priceOK = len(d.rows) > 0
	})
	return d.priceMin, d.priceMax, d.priceOK
}

// MaxAvailability returns the largest known availability for the horizon,
// or 0 when no listing has one.
func (d *Dataset) MaxAvailability(h models.Horizon) int {
	d.availabilityOnce.Do(func() {
		d.maxAvailability = make(map[models.Horizon]int, len(models.Horizons))
		for _, l := range d.rows {
			for _, hz := range models.Horizons {
				if v := l.Availability(hz); v != nil && *v > d.maxAvailability[hz] {
					d.maxAvailability[hz] = *v
				}
			}
		}
	})
	return d.maxAvailability[h]
}

func distinct(rows []models.Listing, field func(models.Listing) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, l := range rows {
		v := field(l)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
