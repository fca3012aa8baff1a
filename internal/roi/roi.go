package roi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ROI is a polygonal region of interest in longitude/latitude (EPSG:4326).
// It is read-only after construction: filters and reductions receive the
// geometry, nothing mutates it.
type ROI struct {
	geometry orb.Geometry
}

// New wraps a Polygon or MultiPolygon.
func New(geometry orb.Geometry) (*ROI, error) {
	switch geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return &ROI{geometry: geometry}, nil
	default:
		return nil, fmt.Errorf("geometry must be Polygon or MultiPolygon, got %s", geometry.GeoJSONType())
	}
}

// FromFile reads a GeoJSON file holding a FeatureCollection, a Feature or
// a bare geometry. For collections the first polygonal feature wins.
func FromFile(path string) (*ROI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roi file: %v", err)
	}

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		for _, feature := range fc.Features {
			region, err := New(feature.Geometry)
			if err == nil {
				return region, nil
			}
		}
		return nil, fmt.Errorf("no Polygon or MultiPolygon feature found in %s", path)
	}

	if feature, err := geojson.UnmarshalFeature(data); err == nil {
		return New(feature.Geometry)
	}

	geometry, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s as GeoJSON: %v", path, err)
	}
	return New(geometry.Geometry())
}

// ToFile writes the region as a single-feature GeoJSON FeatureCollection.
func ToFile(region *ROI, path string) error {
	if region == nil {
		return fmt.Errorf("no region to export")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(region.geometry))

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal feature collection: %v", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (r *ROI) Geometry() orb.Geometry {
	return r.geometry
}

func (r *ROI) Bound() orb.Bound {
	return r.geometry.Bound()
}

// Centroid returns the planar centroid, used to anchor point-based
// collaborators such as weather archives.
func (r *ROI) Centroid() (orb.Point, error) {
	centroid, area := planar.CentroidArea(r.geometry)
	if area <= 0 {
		return orb.Point{}, fmt.Errorf("region has no area")
	}
	return centroid, nil
}
