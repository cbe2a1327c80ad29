package models

import (
	"encoding/json"
	"fmt"
)

// Point is a GeoJSON Point geometry in WGS84.
// GeoJSON orders coordinates as [longitude, latitude].
type Point struct {
	Lon float64
	Lat float64
}

// MarshalJSON implements json.Marshaler, producing a GeoJSON Point.
func (p Point) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}{
		Type:        "Point",
		Coordinates: [2]float64{p.Lon, p.Lat},
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler for GeoJSON Point input.
func (p *Point) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point: %w", err)
	}

	if geom.Type != "" && geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}

	p.Lon = geom.Coordinates[0]
	p.Lat = geom.Coordinates[1]

	return nil
}

// Feature is a GeoJSON Feature with a Point geometry.
type Feature struct {
	Properties map[string]interface{} `json:"properties"`
	Type       string                 `json:"type"`
	Geometry   Point                  `json:"geometry"`
}

// NewFeature builds a Point feature with the given properties.
func NewFeature(lat, lon float64, properties map[string]interface{}) Feature {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	return Feature{
		Type:       "Feature",
		Geometry:   Point{Lon: lon, Lat: lat},
		Properties: properties,
	}
}

// FeatureCollection is a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection wraps features; a nil slice is encoded as [].
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}
