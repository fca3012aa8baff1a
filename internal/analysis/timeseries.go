package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
	"github.com/verdantia/earthscout/internal/catalog"
	"github.com/verdantia/earthscout/internal/clouds"
	"github.com/verdantia/earthscout/internal/engine"
)

const reducePixelBudget = 1e9

// IndexPoint is one spectral-index sample over the region for one image.
// Mean and Std are absent when the reduction failed or found no valid
// pixels.
type IndexPoint struct {
	AssetID string    `csv:"id"`
	Date    time.Time `csv:"date"`
	Index   string    `csv:"index"`
	Mean    *float64  `csv:"mean"`
	Std     *float64  `csv:"std"`
}

// IndexTimeseries computes the named spectral index (NDVI, NDWI, NDMI, ...)
// for every catalog record, reduced over the region by mean and standard
// deviation. Scale zero auto-detects the sensor family's native
// resolution per image. Per-image failures yield absent values and the
// series continues.
func IndexTimeseries(ctx context.Context, platform engine.Platform, records []catalog.Record, region orb.Geometry, index string, scale int, debug bool) []IndexPoint {
	points := make([]IndexPoint, 0, len(records))
	bar := progressbar.Default(int64(len(records)), "computing "+index)

	for _, record := range records {
		point := IndexPoint{AssetID: record.AssetID, Date: record.Date, Index: index}
		img := engine.NewImage(record.AssetID).SpectralIndex(index)

		usedScale := scale
		if usedScale == 0 {
			bands, err := platform.BandNames(ctx, img)
			if err != nil {
				if debug {
					fmt.Printf("[DEBUG] failed to inspect bands of %s: %v\n", record.AssetID, err)
				}
				points = append(points, point)
				bar.Add(1)
				continue
			}
			usedScale = clouds.DetectFamily(bands).Scale()
			if debug {
				fmt.Printf("[DEBUG] auto-detected scale %dm for %s\n", usedScale, record.AssetID)
			}
		}

		stats, err := platform.ReduceRegion(ctx, img.Select(index), engine.ReduceParams{
			Reducer:   "meanStdDev",
			Geometry:  region,
			Scale:     usedScale,
			MaxPixels: reducePixelBudget,
		})
		if err != nil {
			if debug {
				fmt.Printf("[DEBUG] failed to compute %s for %s: %v\n", index, record.AssetID, err)
			}
		} else {
			if mean, ok := stats[index+"_mean"]; ok {
				point.Mean = &mean
			}
			if std, ok := stats[index+"_stdDev"]; ok {
				point.Std = &std
			}
		}

		points = append(points, point)
		bar.Add(1)
	}

	return points
}

// SaveCSV writes the series to path, creating parent directories.
func SaveCSV(points []IndexPoint, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create timeseries file: %v", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&points, file); err != nil {
		return fmt.Errorf("failed to write timeseries csv: %v", err)
	}
	return nil
}
