package roi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

const featureCollectionJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "farm"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-45.0, -21.0], [-44.9, -21.0], [-44.9, -20.9], [-45.0, -20.9], [-45.0, -21.0]]]
      }
    }
  ]
}`

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region.geojson")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestFromFileFeatureCollection(t *testing.T) {
	region, err := FromFile(writeTempFile(t, featureCollectionJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := region.Geometry().(orb.Polygon); !ok {
		t.Errorf("expected a Polygon, got %T", region.Geometry())
	}
}

func TestFromFileBareGeometry(t *testing.T) {
	content := `{"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	region, err := FromFile(writeTempFile(t, content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bound := region.Bound()
	if bound.Max[0] != 1 || bound.Max[1] != 1 {
		t.Errorf("unexpected bound: %v", bound)
	}
}

func TestFromFileSkipsNonPolygonalFeatures(t *testing.T) {
	content := `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [0, 0]}},
    {"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}
  ]
}`
	region, err := FromFile(writeTempFile(t, content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := region.Geometry().(orb.Polygon); !ok {
		t.Errorf("expected the polygonal feature to win, got %T", region.Geometry())
	}
}

func TestFromFileRejectsPointOnly(t *testing.T) {
	content := `{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [0, 0]}}`
	_, err := FromFile(writeTempFile(t, content))
	if err == nil {
		t.Fatal("expected an error for a point geometry")
	}
	if !strings.Contains(err.Error(), "Polygon") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewRejectsUnsupportedGeometry(t *testing.T) {
	if _, err := New(orb.Point{0, 0}); err == nil {
		t.Error("expected an error for a Point")
	}
	if _, err := New(orb.LineString{{0, 0}, {1, 1}}); err == nil {
		t.Error("expected an error for a LineString")
	}
}

func TestToFileRoundTrip(t *testing.T) {
	original, err := New(orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "region.geojson")
	if err := ToFile(original, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored, err := FromFile(path)
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if !restored.Bound().Equal(original.Bound()) {
		t.Errorf("expected bound %v, got %v", original.Bound(), restored.Bound())
	}
}

func TestCentroid(t *testing.T) {
	region, err := New(orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	centroid, err := region.Centroid()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if centroid[0] != 1 || centroid[1] != 1 {
		t.Errorf("expected centroid (1, 1), got %v", centroid)
	}
}
