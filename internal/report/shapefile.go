package report

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/coordcheck/internal/model"
)

// nameFieldSize is the widest character field a DBF file allows.
const nameFieldSize = 254

// wgs84PRJ is the ESRI WKT for geographic WGS84 coordinates.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// DBF field names are limited to 10 characters.
var shapefileFields = []shp.Field{
	shp.NumberField("LINE", 10),
	shp.StringField("NAME", nameFieldSize),
	shp.FloatField("DIST_M", 16, 2),
	shp.FloatField("MAX_M", 16, 2),
	shp.NumberField("WITHIN", 1),
	shp.NumberField("EXCEED_M", 12),
}

// shapefileWriter writes a POINT shapefile with lon/lat coordinates and a
// .prj sidecar declaring WGS84.
type shapefileWriter struct {
	w *shp.Writer
}

func newShapefileWriter(path string) (*shapefileWriter, error) {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return nil, eris.Wrap(err, "report: create shapefile")
	}
	if err := w.SetFields(shapefileFields); err != nil {
		w.Close()
		return nil, eris.Wrap(err, "report: set shapefile fields")
	}

	base := path
	if strings.HasSuffix(strings.ToLower(base), ".shp") {
		base = base[:len(base)-len(".shp")]
	}
	if err := os.WriteFile(base+".prj", []byte(wgs84PRJ), 0o644); err != nil {
		w.Close()
		return nil, eris.Wrap(err, "report: write shapefile projection")
	}
	return &shapefileWriter{w: w}, nil
}

func (s *shapefileWriter) Record(_ context.Context, res model.PointResult) error {
	n := int(s.w.Write(&shp.Point{X: res.Location.Lon, Y: res.Location.Lat}))

	within := 0
	if !res.Exceeded() {
		within = 1
	}
	values := []any{res.Line, dbfString(res.Name, nameFieldSize), res.Distance, res.MaxDistance, within, res.ExceededBy()}
	for i, v := range values {
		if err := s.w.WriteAttribute(n, i, v); err != nil {
			return eris.Wrapf(err, "report: write shapefile line %d field %d", res.Line, i)
		}
	}
	return nil
}

// dbfString fits s into a character field of n bytes. Empty records are
// zero-filled, so the value is padded with spaces as DBF readers expect.
func dbfString(s string, n int) string {
	s = truncateBytes(s, n)
	return s + strings.Repeat(" ", n-len(s))
}

// truncateBytes cuts s to at most n bytes without splitting a UTF-8
// sequence.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (s *shapefileWriter) Close() error {
	s.w.Close()
	return nil
}
