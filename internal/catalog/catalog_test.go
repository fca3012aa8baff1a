package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/verdantia/earthscout/internal/engine"
	"github.com/verdantia/earthscout/internal/roi"
)

var testPolygon = orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

type fakePlatform struct {
	ids      []string
	listErr  error
	infos    map[string]*engine.ImageInfo
	infoErrs map[string]error
	bands    map[string][]string
	area     float64
	areaErr  error
	overlap  func(first, second orb.Geometry) (float64, error)
	reduce   func(img *engine.Image, params engine.ReduceParams) (map[string]float64, error)

	// mu guards the recorded state; List hits the fake from several
	// goroutines when Workers > 1.
	mu        sync.Mutex
	calls     int
	lastQuery engine.ImageQuery
}

func (f *fakePlatform) record() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakePlatform) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePlatform) ListImages(ctx context.Context, query engine.ImageQuery) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.lastQuery = query
	f.mu.Unlock()
	return f.ids, f.listErr
}

func (f *fakePlatform) ImageInfo(ctx context.Context, assetID string) (*engine.ImageInfo, error) {
	f.record()
	if err, ok := f.infoErrs[assetID]; ok {
		return nil, err
	}
	info, ok := f.infos[assetID]
	if !ok {
		return nil, errors.New("unknown asset")
	}
	return info, nil
}

func (f *fakePlatform) BandNames(ctx context.Context, img *engine.Image) ([]string, error) {
	f.record()
	return f.bands[img.AssetID()], nil
}

func (f *fakePlatform) ReduceRegion(ctx context.Context, img *engine.Image, params engine.ReduceParams) (map[string]float64, error) {
	f.record()
	if f.reduce == nil {
		return nil, errors.New("not implemented")
	}
	return f.reduce(img, params)
}

func (f *fakePlatform) Area(ctx context.Context, geometry orb.Geometry) (float64, error) {
	f.record()
	return f.area, f.areaErr
}

func (f *fakePlatform) IntersectionArea(ctx context.Context, first, second orb.Geometry) (float64, error) {
	f.record()
	if f.overlap == nil {
		return 0, errors.New("not implemented")
	}
	return f.overlap(first, second)
}

func (f *fakePlatform) AggregateCollection(ctx context.Context, query engine.AggregateQuery) (float64, error) {
	f.record()
	return 0, errors.New("not implemented")
}

func (f *fakePlatform) DownloadImage(ctx context.Context, img *engine.Image, params engine.DownloadParams) ([]byte, error) {
	f.record()
	return nil, errors.New("not implemented")
}

func testRegion(t *testing.T) *roi.ROI {
	t.Helper()
	region, err := roi.New(testPolygon)
	if err != nil {
		t.Fatalf("failed to build region: %v", err)
	}
	return region
}

func fullOverlap(area float64) func(orb.Geometry, orb.Geometry) (float64, error) {
	return func(orb.Geometry, orb.Geometry) (float64, error) { return area, nil }
}

func TestListRequiresRegion(t *testing.T) {
	platform := &fakePlatform{}

	_, err := List(context.Background(), platform, "COPERNICUS/S2_SR_HARMONIZED", nil, DefaultOptions())
	if !errors.Is(err, ErrMissingROI) {
		t.Fatalf("expected ErrMissingROI, got %v", err)
	}
	if platform.callCount() != 0 {
		t.Errorf("expected no platform calls before validation, got %d", platform.callCount())
	}
}

func TestListRequiresCollection(t *testing.T) {
	platform := &fakePlatform{}

	_, err := List(context.Background(), platform, "", testRegion(t), DefaultOptions())
	if err == nil {
		t.Fatal("expected an error")
	}
	if platform.callCount() != 0 {
		t.Errorf("expected no platform calls before validation, got %d", platform.callCount())
	}
}

func TestListRejectsNegativeMaxImages(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxImages = -1

	_, err := List(context.Background(), &fakePlatform{}, "collection", testRegion(t), opts)
	if err == nil || !strings.Contains(err.Error(), "negative") {
		t.Fatalf("expected a negative cap error, got %v", err)
	}
}

func TestListEmptyCollection(t *testing.T) {
	platform := &fakePlatform{}

	records, err := List(context.Background(), platform, "collection", testRegion(t), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestListPropagatesCollectionFailure(t *testing.T) {
	platform := &fakePlatform{listErr: errors.New("collection not found")}

	_, err := List(context.Background(), platform, "missing", testRegion(t), DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "collection not found") {
		t.Fatalf("expected the listing failure to propagate, got %v", err)
	}
}

func TestListTruncatesToMaxImages(t *testing.T) {
	platform := &fakePlatform{
		ids:  []string{"a", "b", "c"},
		area: 100,
		infos: map[string]*engine.ImageInfo{
			"a": {AssetID: "a"},
			"b": {AssetID: "b"},
		},
	}

	opts := DefaultOptions()
	opts.MaxImages = 2
	records, err := List(context.Background(), platform, "collection", testRegion(t), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].AssetID != "a" || records[1].AssetID != "b" {
		t.Errorf("expected the first two ids in order, got %+v", records)
	}
}

func TestListMaxImagesZeroMeansZero(t *testing.T) {
	platform := &fakePlatform{ids: []string{"a", "b"}}

	records, err := List(context.Background(), platform, "collection", testRegion(t), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected an empty catalog, got %d records", len(records))
	}
}

func TestListPassesTimeRange(t *testing.T) {
	platform := &fakePlatform{}
	start := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC)

	opts := DefaultOptions()
	opts.TimeRange = &TimeRange{Start: start, End: end}
	if _, err := List(context.Background(), platform, "collection", testRegion(t), opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if platform.lastQuery.Start == nil || !platform.lastQuery.Start.Equal(start) {
		t.Errorf("expected start %v, got %v", start, platform.lastQuery.Start)
	}
	if platform.lastQuery.End == nil || !platform.lastQuery.End.Equal(end) {
		t.Errorf("expected end %v, got %v", end, platform.lastQuery.End)
	}
	if platform.lastQuery.Limit != DefaultMaxImages {
		t.Errorf("expected limit %d, got %d", DefaultMaxImages, platform.lastQuery.Limit)
	}
}

func TestListMapsLandsatProperties(t *testing.T) {
	platform := &fakePlatform{
		ids:     []string{"LC08/A"},
		area:    100,
		overlap: fullOverlap(100),
		infos: map[string]*engine.ImageInfo{
			"LC08/A": {
				AssetID:   "LC08/A",
				Footprint: testPolygon,
				Properties: map[string]any{
					"SPACECRAFT_ID":     "LANDSAT_8",
					"CLOUD_COVER":       23.5,
					"SUN_ELEVATION":     45.1,
					"SUN_AZIMUTH":       130.2,
					"system:time_start": float64(1672531200000),
				},
			},
		},
	}

	records, err := List(context.Background(), platform, "LANDSAT/LC08/C02/T1_L2", testRegion(t), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record := records[0]

	if record.Satellite != "LANDSAT_8" {
		t.Errorf("expected LANDSAT_8, got %s", record.Satellite)
	}
	if record.CloudCover == nil || *record.CloudCover != 23.5 {
		t.Errorf("unexpected cloud cover: %v", record.CloudCover)
	}
	if record.SolarElevation == nil || *record.SolarElevation != 45.1 {
		t.Errorf("unexpected solar elevation: %v", record.SolarElevation)
	}
	want := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !record.Date.Equal(want) {
		t.Errorf("expected date %v, got %v", want, record.Date)
	}
	if record.ROICoverage != 100 {
		t.Errorf("expected full coverage, got %f", record.ROICoverage)
	}
}

func TestListMapsSentinelProperties(t *testing.T) {
	platform := &fakePlatform{
		ids:     []string{"S2/A"},
		area:    100,
		overlap: fullOverlap(50),
		infos: map[string]*engine.ImageInfo{
			"S2/A": {
				AssetID:   "S2/A",
				Footprint: testPolygon,
				Properties: map[string]any{
					"SPACECRAFT_NAME":          "Sentinel-2A",
					"CLOUDY_PIXEL_PERCENTAGE":  8.25,
					"MEAN_SOLAR_ZENITH_ANGLE":  30.0,
					"MEAN_SOLAR_AZIMUTH_ANGLE": 145.7,
				},
			},
		},
	}

	records, err := List(context.Background(), platform, "COPERNICUS/S2_SR_HARMONIZED", testRegion(t), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record := records[0]

	if record.Satellite != "Sentinel-2A" {
		t.Errorf("expected Sentinel-2A, got %s", record.Satellite)
	}
	if record.CloudCover == nil || *record.CloudCover != 8.25 {
		t.Errorf("unexpected cloud cover: %v", record.CloudCover)
	}
	if record.SolarElevation == nil || *record.SolarElevation != 60 {
		t.Errorf("expected elevation 90-zenith=60, got %v", record.SolarElevation)
	}
	if record.SolarAzimuth == nil || *record.SolarAzimuth != 145.7 {
		t.Errorf("unexpected solar azimuth: %v", record.SolarAzimuth)
	}
	if record.ROICoverage != 50 {
		t.Errorf("expected 50%% coverage, got %f", record.ROICoverage)
	}
	if !record.Date.IsZero() {
		t.Errorf("expected zero date without a timestamp, got %v", record.Date)
	}
}

func TestListGenericPlatformFallsBackToPlatformProperty(t *testing.T) {
	platform := &fakePlatform{
		ids:     []string{"MODIS/A"},
		area:    100,
		overlap: fullOverlap(100),
		infos: map[string]*engine.ImageInfo{
			"MODIS/A": {
				AssetID:    "MODIS/A",
				Footprint:  testPolygon,
				Properties: map[string]any{"platform": "Terra"},
			},
		},
	}

	records, err := List(context.Background(), platform, "MODIS/061/MOD09GA", testRegion(t), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Satellite != "Terra" {
		t.Errorf("expected Terra, got %s", records[0].Satellite)
	}
	if records[0].CloudCover != nil {
		t.Errorf("expected absent cloud cover, got %v", records[0].CloudCover)
	}
}

func TestListIsolatesPerImageFailures(t *testing.T) {
	platform := &fakePlatform{
		ids:      []string{"broken", "LC08/A"},
		area:     100,
		overlap:  fullOverlap(100),
		infoErrs: map[string]error{"broken": errors.New("metadata unavailable")},
		infos: map[string]*engine.ImageInfo{
			"LC08/A": {
				AssetID:    "LC08/A",
				Footprint:  testPolygon,
				Properties: map[string]any{"SPACECRAFT_ID": "LANDSAT_8"},
			},
		},
	}

	records, err := List(context.Background(), platform, "collection", testRegion(t), DefaultOptions())
	if err != nil {
		t.Fatalf("expected per-image failures to be absorbed, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected both records, got %d", len(records))
	}

	if records[0].Satellite != "unknown" || records[0].CloudCover != nil || records[0].ROICoverage != 0 {
		t.Errorf("expected degraded record for the broken image, got %+v", records[0])
	}
	if records[1].Satellite != "LANDSAT_8" {
		t.Errorf("expected the healthy image to survive, got %+v", records[1])
	}
}

func TestListComputesClearSkyPerFamily(t *testing.T) {
	infos := map[string]*engine.ImageInfo{
		"LC08/A": {
			AssetID:    "LC08/A",
			Footprint:  testPolygon,
			Properties: map[string]any{"SPACECRAFT_ID": "LANDSAT_8"},
		},
		"S2/A": {
			AssetID:    "S2/A",
			Footprint:  testPolygon,
			Properties: map[string]any{"SPACECRAFT_NAME": "Sentinel-2A"},
		},
		"MYSTERY/A": {
			AssetID:    "MYSTERY/A",
			Footprint:  testPolygon,
			Properties: map[string]any{},
		},
	}
	platform := &fakePlatform{
		ids:     []string{"LC08/A", "S2/A", "MYSTERY/A"},
		area:    100,
		overlap: fullOverlap(100),
		infos:   infos,
		bands: map[string][]string{
			"LC08/A":    {"SR_B4", "QA_PIXEL"},
			"S2/A":      {"B4", "SCL", "MSK_CLDPRB"},
			"MYSTERY/A": {"B1"},
		},
		reduce: func(img *engine.Image, params engine.ReduceParams) (map[string]float64, error) {
			switch {
			case img.AssetID() == "S2/A" && params.Reducer == "sum":
				// Empty scene-class mask triggers the probability fallback.
				return map[string]float64{"mask": 0}, nil
			case img.AssetID() == "LC08/A":
				return map[string]float64{"clear": 1.0}, nil
			case img.AssetID() == "S2/A":
				return map[string]float64{"clear": 0.4}, nil
			}
			return map[string]float64{}, nil
		},
	}

	opts := DefaultOptions()
	opts.ComputeClearSky = true
	records, err := List(context.Background(), platform, "collection", testRegion(t), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if records[0].ClearSky == nil || *records[0].ClearSky != 100 {
		t.Errorf("expected 100 for the fully clear image, got %v", records[0].ClearSky)
	}
	if records[1].ClearSky == nil || *records[1].ClearSky != 40 {
		t.Errorf("expected 40 via the probability fallback, got %v", records[1].ClearSky)
	}
	if records[2].ClearSky != nil {
		t.Errorf("expected absent score for the unrecognized sensor, got %v", *records[2].ClearSky)
	}
}

func TestListWithWorkersPreservesOrder(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	infos := make(map[string]*engine.ImageInfo, len(ids))
	for _, id := range ids {
		infos[id] = &engine.ImageInfo{
			AssetID:    id,
			Footprint:  testPolygon,
			Properties: map[string]any{"platform": id},
		}
	}
	platform := &fakePlatform{ids: ids, area: 100, overlap: fullOverlap(100), infos: infos}

	opts := DefaultOptions()
	opts.Workers = 3
	records, err := List(context.Background(), platform, "collection", testRegion(t), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, id := range ids {
		if records[i].AssetID != id {
			t.Fatalf("expected %s at position %d, got %s", id, i, records[i].AssetID)
		}
	}
}

func TestSaveCSV(t *testing.T) {
	cover := 23.5
	records := []Record{
		{
			AssetID:     "LC08/A",
			Date:        time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
			Satellite:   "LANDSAT_8",
			CloudCover:  &cover,
			ROICoverage: 100,
		},
		{AssetID: "broken", Satellite: "unknown"},
	}

	path := filepath.Join(t.TempDir(), "catalog", "out.csv")
	if err := SaveCSV(records, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "id,date,satellite") {
		t.Errorf("expected csv header, got %s", content)
	}
	if !strings.Contains(content, "LANDSAT_8") || !strings.Contains(content, "23.5") {
		t.Errorf("expected record values in output, got %s", content)
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 3 {
		t.Errorf("expected header plus two rows, got %d lines", len(lines))
	}
}
