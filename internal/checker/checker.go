// Package checker validates tab-separated coordinate rows against the
// configured center location.
package checker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coordcheck/internal/config"
	"github.com/sells-group/coordcheck/internal/geodesy"
	"github.com/sells-group/coordcheck/internal/model"
)

// maxLineSize bounds a single data line.
const maxLineSize = 1 << 20

// Recorder receives every successfully evaluated row.
type Recorder interface {
	Record(ctx context.Context, res model.PointResult) error
}

// Option configures a Processor.
type Option func(*Processor)

// WithRecorders adds recorders that receive each point result in order.
func WithRecorders(recs ...Recorder) Option {
	return func(p *Processor) { p.recorders = append(p.recorders, recs...) }
}

// WithSeparator sets where the blank line after each row is written.
func WithSeparator(w io.Writer) Option {
	return func(p *Processor) { p.sep = w }
}

// WithLogger overrides the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) { p.log = l }
}

// Processor runs one pass over a data file.
type Processor struct {
	cfg       *config.Config
	recorders []Recorder
	sep       io.Writer
	log       *zap.Logger
}

// New creates a Processor for cfg. cfg must not be modified afterwards.
func New(cfg *config.Config, opts ...Option) *Processor {
	p := &Processor{
		cfg: cfg,
		sep: io.Discard,
		log: zap.L(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// row holds the three consumed fields of one data line.
type row struct {
	line int
	name string
	x, y string
}

// Run reads r line by line and evaluates every row. Rows over the maximum
// distance are counted as errors; malformed rows, including non-finite or
// out-of-range coordinates, are skipped. Only I/O,
// cancellation, and recorder failures abort the run.
func (p *Processor) Run(ctx context.Context, r io.Reader) (model.Summary, error) {
	var sum model.Summary

	enc, err := config.ResolveEncoding(p.cfg.Input.Encoding)
	if err != nil {
		return sum, err
	}

	scanner := bufio.NewScanner(enc.NewDecoder().Reader(r))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return sum, eris.Wrap(ctx.Err(), "checker: context cancelled")
		}

		sum.LinesRead++
		if p.cfg.Input.Header && sum.LinesRead == 1 {
			continue
		}
		sum.LinesParsed++

		rw, ok := p.split(sum.LinesRead, scanner.Text())
		if !ok {
			sum.LinesSkipped++
			continue
		}

		x, y, err := parseXY(rw)
		if err != nil {
			p.skip(rw, err)
			sum.LinesSkipped++
			continue
		}

		p.log.Info(rw.name)
		res, err := p.evaluate(rw, x, y)
		if err != nil {
			p.skip(rw, err)
			sum.LinesSkipped++
			fmt.Fprintln(p.sep)
			continue
		}

		for _, rec := range p.recorders {
			if err := rec.Record(ctx, res); err != nil {
				return sum, eris.Wrapf(err, "checker: record line %d", rw.line)
			}
		}

		if res.Exceeded() {
			sum.LinesError++
		} else {
			sum.LinesOK++
		}
		fmt.Fprintln(p.sep)
	}
	if err := scanner.Err(); err != nil {
		return sum, eris.Wrap(err, "checker: read data")
	}

	fmt.Fprintln(p.sep)
	p.logSummary(sum)

	return sum, nil
}

// split extracts the configured columns from a tab-separated line.
func (p *Processor) split(line int, text string) (row, bool) {
	fields := strings.Split(text, "\t")
	in := p.cfg.Input
	if len(fields) < in.MaxColumn() {
		p.log.Warn("skipping short row",
			zap.Int("line", line),
			zap.Int("fields", len(fields)),
			zap.Int("required", in.MaxColumn()),
		)
		return row{}, false
	}
	return row{
		line: line,
		name: fields[in.Name-1],
		x:    fields[in.X-1],
		y:    fields[in.Y-1],
	}, true
}

func (p *Processor) skip(rw row, err error) {
	p.log.Warn("skipping row", zap.Int("line", rw.line), zap.String("name", rw.name), zap.Error(err))
}

// parseXY reads the raw x/y fields. Non-finite values such as NaN or Inf
// are rejected.
func parseXY(rw row) (x, y float64, err error) {
	x, err = strconv.ParseFloat(strings.TrimSpace(rw.x), 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "checker: x %q", rw.x)
	}
	y, err = strconv.ParseFloat(strings.TrimSpace(rw.y), 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "checker: y %q", rw.y)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, 0, eris.Errorf("checker: x/y must be finite, got %q / %q", rw.x, rw.y)
	}
	return x, y, nil
}

// evaluate resolves the row to WGS84 and measures it against the center.
func (p *Processor) evaluate(rw row, x, y float64) (model.PointResult, error) {
	center := p.cfg.Center
	res := model.PointResult{
		Line:        rw.line,
		Name:        rw.name,
		X:           rw.x,
		Y:           rw.y,
		MaxDistance: center.MaxDistance,
	}

	var err error
	coords := p.cfg.Coordinates
	if coords.Format == config.FormatUTM {
		p.log.Debug("  UTM: " + rw.x + " / " + rw.y)
		res.Location, err = geodesy.UTMToLatLon(x, y, coords.Zone, coords.Hemisphere)
		if err != nil {
			return res, err
		}
	} else {
		res.Location = geodesy.LatLon{Lat: y, Lon: x}
		if err := res.Location.Validate(); err != nil {
			return res, err
		}
	}
	p.log.Debug("  WGS84: " + res.Location.String())

	res.Distance = geodesy.Distance(res.Location, center.Location())
	if math.IsNaN(res.Distance) || math.IsInf(res.Distance, 0) {
		return res, eris.Errorf("checker: distance from %s is not finite", res.Location)
	}
	p.log.Debug(fmt.Sprintf("  %.2f meters from '%s'", res.Distance, center.Name))

	if res.Exceeded() {
		p.log.Error(fmt.Sprintf("  Exceeds maximum allowed distance by %d meters", res.ExceededBy()))
	}

	return res, nil
}

func (p *Processor) logSummary(sum model.Summary) {
	p.log.Info("   Lines read: " + strconv.Itoa(sum.LinesRead))
	p.log.Info(" Lines parsed: " + strconv.Itoa(sum.LinesParsed))
	p.log.Info("Without error: " + strconv.Itoa(sum.LinesOK))
	p.log.Info("   With error: " + strconv.Itoa(sum.LinesError))
	if sum.LinesSkipped > 0 {
		p.log.Warn("      Skipped: " + strconv.Itoa(sum.LinesSkipped))
	}
}
