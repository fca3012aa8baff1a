package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
	"github.com/verdantia/earthscout/internal/clouds"
	"github.com/verdantia/earthscout/internal/engine"
	"github.com/verdantia/earthscout/internal/roi"
)

const DefaultMaxImages = 500

var ErrMissingROI = errors.New("a region of interest is required to list collection images")

// Record is one catalog row for one image. Pointer fields are absent when
// the sensor family does not report them or when fetching them failed;
// absent never collapses to zero.
type Record struct {
	AssetID        string    `csv:"id"`
	Date           time.Time `csv:"date"`
	Satellite      string    `csv:"satellite"`
	CloudCover     *float64  `csv:"img_cloud_cover"`
	SolarElevation *float64  `csv:"solar_elevation"`
	SolarAzimuth   *float64  `csv:"solar_azimuth"`
	ROICoverage    float64   `csv:"proportion_roi_pct"`
	ClearSky       *float64  `csv:"clear_sky_pct"`
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}

type Options struct {
	// MaxImages caps how many images are processed; the first MaxImages
	// ids in platform order survive. Zero means zero.
	MaxImages       int
	ComputeClearSky bool
	TimeRange       *TimeRange
	// Workers > 1 processes images on a bounded pool; output order still
	// follows the platform's id order.
	Workers int
	Debug   bool
}

func DefaultOptions() Options {
	return Options{MaxImages: DefaultMaxImages}
}

// List builds the catalog of a collection over a region: spatial filter,
// optional temporal filter, a hard cap, then one metadata round-trip per
// image plus an optional clear-sky score. A failing image yields a record
// with absent fields, it never aborts the rest of the batch. Only the
// missing-region precondition and collection resolution are fatal.
func List(ctx context.Context, platform engine.Platform, collection string, region *roi.ROI, opts Options) ([]Record, error) {
	if region == nil {
		return nil, ErrMissingROI
	}
	if collection == "" {
		return nil, errors.New("a collection id is required")
	}
	if opts.MaxImages < 0 {
		return nil, fmt.Errorf("max images must not be negative, got %d", opts.MaxImages)
	}

	query := engine.ImageQuery{
		Collection: collection,
		Region:     region.Geometry(),
		Limit:      opts.MaxImages,
	}
	if opts.TimeRange != nil {
		start, end := opts.TimeRange.Start, opts.TimeRange.End
		query.Start, query.End = &start, &end
	}

	ids, err := platform.ListImages(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve collection %s: %w", collection, err)
	}
	if len(ids) > opts.MaxImages {
		ids = ids[:opts.MaxImages]
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	roiArea, err := platform.Area(ctx, region.Geometry())
	if err != nil {
		return nil, fmt.Errorf("failed to measure region area: %w", err)
	}

	records := make([]Record, len(ids))
	bar := progressbar.Default(int64(len(ids)), "collecting metadata")

	if opts.Workers > 1 {
		var mu sync.Mutex
		wp := workerpool.New(opts.Workers)
		for i, id := range ids {
			i, id := i, id
			wp.Submit(func() {
				record := buildRecord(ctx, platform, id, region, roiArea, opts)
				mu.Lock()
				records[i] = record
				bar.Add(1)
				mu.Unlock()
			})
		}
		wp.StopWait()
	} else {
		for i, id := range ids {
			records[i] = buildRecord(ctx, platform, id, region, roiArea, opts)
			bar.Add(1)
		}
	}

	return records, nil
}

func buildRecord(ctx context.Context, platform engine.Platform, id string, region *roi.ROI, roiArea float64, opts Options) Record {
	record := Record{AssetID: id, Satellite: "unknown"}

	info, err := platform.ImageInfo(ctx, id)
	if err != nil {
		if opts.Debug {
			fmt.Printf("[DEBUG] failed to fetch metadata for %s: %v\n", id, err)
		}
	} else {
		applyProperties(&record, info)
		record.ROICoverage = regionCoverage(ctx, platform, info, region, roiArea, opts.Debug)
	}

	if opts.ComputeClearSky {
		record.ClearSky = clouds.ClearSkyPercentage(ctx, platform, engine.NewImage(id), region.Geometry(), opts.Debug)
	}

	return record
}

func applyProperties(record *Record, info *engine.ImageInfo) {
	switch {
	case info.Has("SPACECRAFT_ID"): // Landsat
		record.Satellite = info.String("SPACECRAFT_ID", "unknown")
		record.CloudCover = info.Float("CLOUD_COVER")
		record.SolarElevation = info.Float("SUN_ELEVATION")
		record.SolarAzimuth = info.Float("SUN_AZIMUTH")
	case info.Has("SPACECRAFT_NAME"): // Sentinel
		record.Satellite = info.String("SPACECRAFT_NAME", "unknown")
		record.CloudCover = info.Float("CLOUDY_PIXEL_PERCENTAGE")
		if zenith := info.Float("MEAN_SOLAR_ZENITH_ANGLE"); zenith != nil {
			elevation := 90 - *zenith
			record.SolarElevation = &elevation
		}
		record.SolarAzimuth = info.Float("MEAN_SOLAR_AZIMUTH_ANGLE")
	default:
		record.Satellite = info.String("platform", "unknown")
		record.CloudCover = info.Float("CLOUD_COVER")
	}

	if ms := info.Float("system:time_start"); ms != nil {
		record.Date = time.UnixMilli(int64(*ms)).UTC()
	}
}

// regionCoverage is the footprint/region overlap as a percentage of the
// region's own area; failures count as no overlap.
func regionCoverage(ctx context.Context, platform engine.Platform, info *engine.ImageInfo, region *roi.ROI, roiArea float64, debug bool) float64 {
	if info.Footprint == nil || roiArea <= 0 {
		return 0
	}
	intersection, err := platform.IntersectionArea(ctx, info.Footprint, region.Geometry())
	if err != nil {
		if debug {
			fmt.Printf("[DEBUG] failed to intersect footprint of %s: %v\n", info.AssetID, err)
		}
		return 0
	}
	if intersection <= 0 {
		return 0
	}
	return intersection / roiArea * 100
}

// SaveCSV writes the catalog to path, creating parent directories.
func SaveCSV(records []Record, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %v", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&records, file); err != nil {
		return fmt.Errorf("failed to write catalog csv: %v", err)
	}
	return nil
}
