package climate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/verdantia/earthscout/internal/cache"
	"github.com/verdantia/earthscout/internal/engine"
	"github.com/verdantia/earthscout/internal/roi"
)

// DefaultCollection is a daily precipitation archive at ~5km resolution.
const (
	DefaultCollection = "UCSB-CHG/CHIRPS/DAILY"
	DefaultBand       = "precipitation"
	defaultScale      = 5000
)

// YearlyPrecipitation is the summed precipitation over the region for one
// calendar year; TotalMM is absent when that year's aggregation failed.
type YearlyPrecipitation struct {
	Year    int      `csv:"year"`
	TotalMM *float64 `csv:"total_mm"`
}

type Summary struct {
	Years  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// PrecipitationSeries aggregates the collection over the region one
// calendar year at a time, so a long range never turns into a single
// oversized request. A year that fails stays in the series with an absent
// total. Complete series are cached on disk; climate archives do not
// change once published.
func PrecipitationSeries(ctx context.Context, platform engine.Platform, region *roi.ROI, collection, band string, firstYear, lastYear int, debug bool) ([]YearlyPrecipitation, error) {
	if region == nil {
		return nil, errors.New("a region of interest is required to aggregate precipitation")
	}
	if firstYear > lastYear {
		return nil, fmt.Errorf("invalid year range %d-%d", firstYear, lastYear)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	if band == "" {
		band = DefaultBand
	}

	fileCache := cache.NewFileCache[[]YearlyPrecipitation]("climate")
	regionJSON, _ := json.Marshal(region.Geometry())
	key := fileCache.Key(collection, band, firstYear, lastYear, string(regionJSON))
	if cached, ok := fileCache.Get(key); ok {
		if debug {
			fmt.Printf("[DEBUG] precipitation series %d-%d served from cache\n", firstYear, lastYear)
		}
		return cached, nil
	}

	series := make([]YearlyPrecipitation, 0, lastYear-firstYear+1)
	complete := true

	for year := firstYear; year <= lastYear; year++ {
		total, err := platform.AggregateCollection(ctx, engine.AggregateQuery{
			Collection: collection,
			Band:       band,
			Reducer:    "sum",
			Region:     region.Geometry(),
			Start:      time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:        time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
			Scale:      defaultScale,
		})
		if err != nil {
			if debug {
				fmt.Printf("[DEBUG] failed to aggregate %d: %v\n", year, err)
			}
			series = append(series, YearlyPrecipitation{Year: year})
			complete = false
			continue
		}
		series = append(series, YearlyPrecipitation{Year: year, TotalMM: &total})
	}

	// Partial series are not cached: a transient failure today should not
	// shadow a working year tomorrow.
	if complete {
		if err := fileCache.Set(key, series); err != nil && debug {
			fmt.Printf("[DEBUG] failed to cache precipitation series: %v\n", err)
		}
	}

	return series, nil
}

// Summarize reduces the yearly totals to summary statistics, skipping
// absent years.
func Summarize(series []YearlyPrecipitation) (*Summary, error) {
	totals := make([]float64, 0, len(series))
	for _, year := range series {
		if year.TotalMM != nil {
			totals = append(totals, *year.TotalMM)
		}
	}
	if len(totals) == 0 {
		return nil, errors.New("no yearly totals available to summarize")
	}

	mean, err := stats.Mean(totals)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(totals)
	if err != nil {
		return nil, err
	}
	stdDev, err := stats.StandardDeviation(totals)
	if err != nil {
		return nil, err
	}
	min, err := stats.Min(totals)
	if err != nil {
		return nil, err
	}
	max, err := stats.Max(totals)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Years:  len(totals),
		Mean:   mean,
		Median: median,
		StdDev: stdDev,
		Min:    min,
		Max:    max,
	}, nil
}
