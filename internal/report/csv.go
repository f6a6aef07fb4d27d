package report

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/coordcheck/internal/model"
)

// csvRow is the CSV layout of one result; field order matches columns.
type csvRow struct {
	Line         int    `csv:"line"`
	Name         string `csv:"name"`
	Latitude     string `csv:"latitude"`
	Longitude    string `csv:"longitude"`
	DistanceM    string `csv:"distance_m"`
	MaxDistanceM string `csv:"max_distance_m"`
	WithinLimit  bool   `csv:"within_limit"`
	ExceededByM  int    `csv:"exceeded_by_m"`
}

func toCSVRow(res model.PointResult) csvRow {
	return csvRow{
		Line:         res.Line,
		Name:         res.Name,
		Latitude:     res.Location.LatString(),
		Longitude:    res.Location.LonString(),
		DistanceM:    formatMeters(res.Distance),
		MaxDistanceM: formatMeters(res.MaxDistance),
		WithinLimit:  !res.Exceeded(),
		ExceededByM:  res.ExceededBy(),
	}
}

type csvWriter struct {
	f   *os.File
	w   *csv.Writer
	enc *csvutil.Encoder
}

func newCSVWriter(path string) (*csvWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: create csv")
	}

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false
	if err := enc.EncodeHeader(csvRow{}); err != nil {
		f.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "report: write csv header")
	}

	return &csvWriter{f: f, w: w, enc: enc}, nil
}

func (c *csvWriter) Record(_ context.Context, res model.PointResult) error {
	if err := c.enc.Encode(toCSVRow(res)); err != nil {
		return eris.Wrapf(err, "report: encode csv line %d", res.Line)
	}
	return nil
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close() //nolint:errcheck
		return eris.Wrap(err, "report: flush csv")
	}
	return eris.Wrap(c.f.Close(), "report: close csv")
}
