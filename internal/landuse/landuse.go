package landuse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/airbusgeo/godal"
	"github.com/verdantia/earthscout/internal/engine"
	"github.com/verdantia/earthscout/internal/roi"
)

const (
	// DefaultAsset is an annual land-use/land-cover classification map.
	DefaultAsset = "projects/mapbiomas-public/assets/brazil_coverage"
	DefaultBand  = "classification"
	DefaultScale = 30
)

// Labels for the classification codes we expect to meet; unlisted codes
// are reported as "class <code>".
var classLabels = map[int]string{
	3:  "forest formation",
	4:  "savanna formation",
	9:  "forest plantation",
	11: "wetland",
	12: "grassland",
	15: "pasture",
	18: "agriculture",
	21: "mosaic of uses",
	24: "urban area",
	25: "other non-vegetated area",
	33: "river, lake and ocean",
}

// ClassShare is the share of the region covered by one land-use class.
type ClassShare struct {
	Code    int     `csv:"code"`
	Label   string  `csv:"label"`
	Pixels  int     `csv:"pixels"`
	Percent float64 `csv:"percent"`
}

// Percentages downloads the classification band clipped to the region and
// counts class codes pixel by pixel. No-data pixels are excluded from the
// denominator.
func Percentages(ctx context.Context, platform engine.Platform, region *roi.ROI, asset, band string, scale int, debug bool) ([]ClassShare, error) {
	if region == nil {
		return nil, errors.New("a region of interest is required to extract land use")
	}
	if asset == "" {
		asset = DefaultAsset
	}
	if band == "" {
		band = DefaultBand
	}
	if scale == 0 {
		scale = DefaultScale
	}

	img := engine.NewImage(asset).Select(band)
	raw, err := platform.DownloadImage(ctx, img, engine.DownloadParams{
		Region: region.Geometry(),
		Scale:  scale,
		Format: "GEO_TIFF",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download classification raster: %w", err)
	}

	tmp, err := os.CreateTemp("", "landuse-*.tif")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp raster file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp raster file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp raster file: %v", err)
	}

	counts, total, err := countClasses(tmp.Name())
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, errors.New("no valid land-use pixels inside the region")
	}
	if debug {
		fmt.Printf("[DEBUG] counted %d classified pixels over %d classes\n", total, len(counts))
	}

	return shares(counts, total), nil
}

func countClasses(path string) (map[int]int, int, error) {
	godal.RegisterInternalDrivers()

	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("%s", msg)
	}))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open classification raster: %v", err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, 0, errors.New("classification raster has no bands")
	}
	band := bands[0]
	nodata, hasNodata := band.NoData()

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	counts := make(map[int]int)
	total := 0

	row := make([]float64, width)
	for y := 0; y < height; y++ {
		if err := band.Read(0, y, row, width, 1); err != nil {
			return nil, 0, fmt.Errorf("failed to read classification row %d: %w", y, err)
		}
		for _, value := range row {
			if hasNodata && value == nodata {
				continue
			}
			counts[int(value)]++
			total++
		}
	}

	return counts, total, nil
}

// shares turns raw class counts into labeled percentages, largest first.
func shares(counts map[int]int, total int) []ClassShare {
	result := make([]ClassShare, 0, len(counts))
	for code, pixels := range counts {
		label, ok := classLabels[code]
		if !ok {
			label = fmt.Sprintf("class %d", code)
		}
		result = append(result, ClassShare{
			Code:    code,
			Label:   label,
			Pixels:  pixels,
			Percent: float64(pixels) / float64(total) * 100,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Pixels != result[j].Pixels {
			return result[i].Pixels > result[j].Pixels
		}
		return result[i].Code < result[j].Code
	})
	return result
}
