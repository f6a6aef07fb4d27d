// Package report exports point results to CSV, GeoJSON, XLSX, and ESRI
// Shapefile files.
package report

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/coordcheck/internal/model"
)

// Writer records point results into an output file. Close must be called to
// flush buffered formats.
type Writer interface {
	Record(ctx context.Context, res model.PointResult) error
	Close() error
}

// Format identifies an output file format.
type Format string

const (
	FormatCSV       Format = "csv"
	FormatGeoJSON   Format = "geojson"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
)

// DetectFormat maps a file extension to its report format.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".shp":
		return FormatShapefile, nil
	default:
		return "", eris.Errorf("report: unsupported output format %q", ext)
	}
}

// Open creates the output file at path in the format implied by its extension.
func Open(path string) (Writer, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return newCSVWriter(path)
	case FormatGeoJSON:
		return newGeoJSONWriter(path), nil
	case FormatXLSX:
		return newXLSXWriter(path)
	default:
		return newShapefileWriter(path)
	}
}

// columns shared by the tabular formats.
var columns = []string{"line", "name", "latitude", "longitude", "distance_m", "max_distance_m", "within_limit", "exceeded_by_m"}

func formatMeters(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
