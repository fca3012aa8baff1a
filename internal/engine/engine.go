package engine

import (
	"context"
	"time"

	"github.com/paulmach/orb"
)

// Platform is the contract with the remote geospatial computation service:
// collection filtering, per-image introspection, region reductions with a
// pixel ceiling, geometry measurements and raster download. Client talks
// to the real service; tests substitute in-memory fakes.
type Platform interface {
	ListImages(ctx context.Context, query ImageQuery) ([]string, error)
	ImageInfo(ctx context.Context, assetID string) (*ImageInfo, error)
	BandNames(ctx context.Context, img *Image) ([]string, error)
	ReduceRegion(ctx context.Context, img *Image, params ReduceParams) (map[string]float64, error)
	Area(ctx context.Context, geometry orb.Geometry) (float64, error)
	IntersectionArea(ctx context.Context, first, second orb.Geometry) (float64, error)
	AggregateCollection(ctx context.Context, query AggregateQuery) (float64, error)
	DownloadImage(ctx context.Context, img *Image, params DownloadParams) ([]byte, error)
}

// ImageQuery filters a collection by region and acquisition time. Start
// and End are day-granular and both inclusive: images acquired strictly
// after End are excluded.
type ImageQuery struct {
	Collection string
	Region     orb.Geometry
	Start      *time.Time
	End        *time.Time
	Limit      int
}

// ImageInfo carries the per-asset metadata the platform returns in a
// single round-trip.
type ImageInfo struct {
	AssetID    string
	Properties map[string]any
	Footprint  orb.Geometry
}

// Float reads a numeric property, nil when the key is missing or not a
// number. Absent and zero stay distinct.
func (info *ImageInfo) Float(key string) *float64 {
	if info == nil || info.Properties == nil {
		return nil
	}
	switch v := info.Properties[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

// String reads a string property, fallback when missing.
func (info *ImageInfo) String(key, fallback string) string {
	if info == nil || info.Properties == nil {
		return fallback
	}
	if v, ok := info.Properties[key].(string); ok {
		return v
	}
	return fallback
}

func (info *ImageInfo) Has(key string) bool {
	if info == nil || info.Properties == nil {
		return false
	}
	_, ok := info.Properties[key]
	return ok
}

type ReduceParams struct {
	Reducer   string
	Geometry  orb.Geometry
	Scale     int
	MaxPixels float64
}

// AggregateQuery reduces a whole collection over a region and interval to
// a single scalar, e.g. summed precipitation over one calendar year.
type AggregateQuery struct {
	Collection string
	Band       string
	Reducer    string
	Region     orb.Geometry
	Start      time.Time
	End        time.Time
	Scale      int
}

type DownloadParams struct {
	Region orb.Geometry
	Scale  int
	Format string
}
