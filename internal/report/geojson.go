package report

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/coordcheck/internal/model"
)

// geoJSONWriter buffers features and writes one FeatureCollection on Close.
type geoJSONWriter struct {
	path     string
	features []*geojson.Feature
}

func newGeoJSONWriter(path string) *geoJSONWriter {
	return &geoJSONWriter{path: path, features: []*geojson.Feature{}}
}

func (g *geoJSONWriter) Record(_ context.Context, res model.PointResult) error {
	g.features = append(g.features, &geojson.Feature{
		ID:       strconv.Itoa(res.Line),
		Geometry: res.Location.Point(),
		Properties: map[string]any{
			"line":           res.Line,
			"name":           res.Name,
			"distance_m":     res.Distance,
			"max_distance_m": res.MaxDistance,
			"within_limit":   !res.Exceeded(),
			"exceeded_by_m":  res.ExceededBy(),
		},
	})
	return nil
}

func (g *geoJSONWriter) Close() error {
	data, err := json.MarshalIndent(&geojson.FeatureCollection{Features: g.features}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal geojson")
	}
	if err := os.WriteFile(g.path, data, 0o644); err != nil {
		return eris.Wrap(err, "report: write geojson")
	}
	return nil
}
