package views

import (
	"fmt"
	"math"
	"strconv"

	"github.com/stwalsh4118/staylens/internal/aggregate"
	"github.com/stwalsh4118/staylens/internal/dataset"
	"github.com/stwalsh4118/staylens/internal/filter"
)

var mapBinding = Binding{
	Name:     ViewMap,
	Inputs:   []string{InputNeighbourhoods},
	Required: []string{InputNeighbourhoods},
	compute:  computeMap,
}

var priceDistributionBinding = Binding{
	Name:     ViewPriceDistribution,
	Inputs:   []string{InputNeighbourhoods, InputPriceRange},
	Required: []string{InputNeighbourhoods, InputPriceRange},
	compute:  computePriceDistribution,
}

var propertyTypeBinding = Binding{
	Name:     ViewPropertyType,
	Inputs:   []string{InputPropertyType},
	Required: []string{InputPropertyType},
	compute:  computePropertyType,
}

var overallStatsBinding = Binding{
	Name:     ViewOverallStats,
	Inputs:   []string{InputPropertyTypes, InputHorizon, InputHostFlags, InputPriceRange},
	Required: []string{InputHorizon, InputPriceRange},
	compute:  computeOverallStats,
}

func computeMap(ds *dataset.Dataset, in Inputs, b filter.Builder, _ Options) (*Payload, error) {
	pred, err := b.Build(filter.Criteria{Neighbourhoods: in.Neighbourhoods})
	if err != nil {
		return nil, err
	}
	rows := ds.Filter(pred)

	points := make([]MapPoint, 0, len(rows))
	for _, l := range rows {
		lat, lon, ok := l.Coordinates()
		if !ok {
			continue
		}
		points = append(points, MapPoint{
			ID:    l.ID,
			Lat:   lat,
			Lon:   lon,
			Color: l.Price,
			Size:  float64(l.NumberOfReviews),
			Label: l.Label(),
		})
	}

	return &Payload{
		View:           ViewMap,
		Title:          "Listings by Neighbourhood",
		XAxisTitle:     "Longitude",
		YAxisTitle:     "Latitude",
		ColorAxisTitle: "Price (£)",
		SizeAxisTitle:  "Number of Reviews",
		Rows:           len(rows),
		Points:         points,
	}, nil
}

func computePriceDistribution(ds *dataset.Dataset, in Inputs, b filter.Builder, opts Options) (*Payload, error) {
	pred, err := b.Build(filter.Criteria{
		Neighbourhoods: in.Neighbourhoods,
		PriceRange:     in.PriceRange,
	})
	if err != nil {
		return nil, err
	}
	rows := ds.Filter(pred)

	buckets, err := aggregate.Histogram(rows, aggregate.Price, opts.HistogramBuckets)
	if err != nil {
		return nil, fmt.Errorf("failed to build price histogram: %w", err)
	}

	bars := make([]Bar, 0, len(buckets))
	for _, bk := range buckets {
		lower, upper := bk.Lower, bk.Upper
		bars = append(bars, Bar{
			Category: formatAmount(lower) + "-" + formatAmount(upper),
			Lower:    &lower,
			Upper:    &upper,
			Value:    float64(bk.Count),
		})
	}

	return &Payload{
		View:       ViewPriceDistribution,
		Title:      "Price Distribution",
		XAxisTitle: "Price (£)",
		YAxisTitle: "Count",
		Rows:       len(rows),
		Bars:       bars,
	}, nil
}

func computePropertyType(ds *dataset.Dataset, in Inputs, b filter.Builder, _ Options) (*Payload, error) {
	propertyType := *in.PropertyType
	pred, err := b.Build(filter.Criteria{PropertyTypes: []string{propertyType}})
	if err != nil {
		return nil, err
	}
	rows := ds.Filter(pred)

	groups := aggregate.CountBy(rows, aggregate.ByNeighbourhood)
	bars := make([]Bar, 0, len(groups))
	for _, g := range groups {
		bars = append(bars, Bar{Category: g.Key, Value: float64(g.Count)})
	}

	return &Payload{
		View:       ViewPropertyType,
		Title:      "Count of listings by neighbourhood for " + propertyType,
		XAxisTitle: "Neighbourhood",
		YAxisTitle: "Number of Listings",
		Rows:       len(rows),
		Bars:       bars,
	}, nil
}

func computeOverallStats(ds *dataset.Dataset, in Inputs, b filter.Builder, _ Options) (*Payload, error) {
	pred, err := b.Build(filter.Criteria{
		PropertyTypes: in.PropertyTypes,
		PriceRange:    in.PriceRange,
		Horizon:       in.Horizon,
		HostFlags:     in.HostFlags,
	})
	if err != nil {
		return nil, err
	}
	rows := ds.Filter(pred)

	records := aggregate.GroupAggregate(rows, aggregate.ByNeighbourhood,
		aggregate.Mean("avg_availability", aggregate.AvailabilityField(*in.Horizon)),
		aggregate.Mean("avg_price", aggregate.Price),
		aggregate.Count("count"),
	)

	bars := make([]Bar, 0, len(records))
	for _, rec := range records {
		availability, price := rec.Get(0), rec.Get(1)
		bars = append(bars, Bar{
			Category:       rec.Key,
			Value:          rec.Get(2).V,
			Secondary:      &price,
			SecondaryLabel: formatPrice(price),
			Availability:   &availability,
			Label:          formatDays(availability),
		})
	}

	return &Payload{
		View:           ViewOverallStats,
		Title:          "Property Count, Average Price, and Availability by Neighbourhood",
		XAxisTitle:     "Neighbourhood",
		YAxisTitle:     "Count of Properties",
		ColorAxisTitle: "Average Price",
		Rows:           len(rows),
		Bars:           bars,
	}, nil
}

func formatDays(v aggregate.Value) string {
	if !v.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%d days", int(math.Round(v.V)))
}

func formatPrice(v aggregate.Value) string {
	if !v.Defined {
		return "n/a"
	}
	return fmt.Sprintf("£%.2f", v.V)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
