package config

import (
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/sells-group/coordcheck/internal/geodesy"
)

// Top-level groups of the configuration file.
const (
	GroupCoordinates = "coordinates"
	GroupCenter      = "center location"
	GroupInput       = "input"
)

// Format is the coordinate system of the x/y data columns.
type Format string

const (
	FormatUTM   Format = "utm"
	FormatWGS84 Format = "wgs84"
)

// Config is the validated, read-only configuration of one check run.
type Config struct {
	Coordinates CoordinatesConfig `json:"coordinates"`
	Center      CenterConfig      `json:"center"`
	Input       InputConfig       `json:"input"`
}

// CoordinatesConfig describes how to read the x/y columns.
type CoordinatesConfig struct {
	Format     Format             `json:"format"`
	Zone       int                `json:"zone,omitempty"`       // utm only
	Hemisphere geodesy.Hemisphere `json:"hemisphere,omitempty"` // utm only
}

// CenterConfig is the reference location points are measured against.
type CenterConfig struct {
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	MaxDistance float64 `json:"max_distance"` // meters
}

// Location returns the center as a WGS84 position.
func (c CenterConfig) Location() geodesy.LatLon {
	return geodesy.LatLon{Lat: c.Lat, Lon: c.Lon}
}

// InputConfig holds 1-based column positions within a tab-separated row.
type InputConfig struct {
	Name     int    `json:"name"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Header   bool   `json:"header"`
	Encoding string `json:"encoding"`
}

// MaxColumn is the number of fields a row needs to be usable.
func (c InputConfig) MaxColumn() int {
	return max(c.Name, c.X, c.Y)
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Error is a configuration problem meant for the user. Each line is printed
// on its own. Usage marks problems with the --config argument itself.
type Error struct {
	Lines []string
	Usage bool
	Err   error
}

func (e *Error) Error() string {
	msg := strings.Join(e.Lines, ": ")
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(lines ...string) *Error {
	return &Error{Lines: lines}
}

// Document is a loaded, not yet validated, configuration file.
type Document struct {
	path string
	v    *viper.Viper
}

// Path returns the file the document was read from.
func (d *Document) Path() string { return d.path }

// Load reads the YAML file at path. The file must be a regular file that is
// neither group- nor world-readable, and must hold a mapping.
func Load(path string) (*Document, error) {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return nil, &Error{Lines: []string{"--config is not a file"}, Usage: true}
	}
	if st.Mode().Perm()&0o044 != 0 {
		return nil, &Error{Lines: []string{"--config must not be group or world readable"}, Usage: true}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Lines: []string{"Error loading config file"}, Err: eris.Wrap(err, "config: read file")}
	}

	return &Document{path: path, v: v}, nil
}

// Get returns a top-level setting. A missing or null key is an error.
func (d *Document) Get(name string) (any, error) {
	val := d.v.Get(name)
	if val == nil {
		return nil, newError("Error: requested config value does not exist!", "Value: "+name)
	}
	return val, nil
}

// Lookup returns a second-level setting. ok is false when either level is
// missing, the first level is not a mapping, or the value is null.
func (d *Document) Lookup(name1, name2 string) (val any, ok bool) {
	group, ok := d.v.Get(name1).(map[string]any)
	if !ok {
		return nil, false
	}
	val, ok = group[strings.ToLower(name2)]
	if !ok || val == nil {
		return nil, false
	}
	return val, true
}

// Parse validates the document and returns the typed configuration. Checks
// run in a fixed order and the first failure is returned. A missing group is
// reported through the message of its first key.
func Parse(d *Document) (*Config, error) {
	var cfg Config

	if err := parseCoordinates(d, &cfg.Coordinates); err != nil {
		return nil, err
	}
	if err := parseCenter(d, &cfg.Center); err != nil {
		return nil, err
	}
	if err := parseInput(d, &cfg.Input); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func parseCoordinates(d *Document, c *CoordinatesConfig) error {
	formatErr := newError("Please set the coordinate system format in the config file", "Must be one of 'utm' or 'wgs84'")
	raw, ok := d.Lookup(GroupCoordinates, "format")
	if !ok {
		return formatErr
	}
	format, isString := raw.(string)
	if !isString || (Format(format) != FormatUTM && Format(format) != FormatWGS84) {
		return formatErr
	}
	c.Format = Format(format)

	if c.Format != FormatUTM {
		return nil
	}

	raw, ok = d.Lookup(GroupCoordinates, "zone")
	if !ok {
		return newError("UTM coordinate system requires a 'zone' specification")
	}
	zone, ok := asInt(raw)
	if !ok {
		return newError("'zone' specification must be an integer")
	}
	if zone < 1 || zone > 60 {
		return newError("'zone' specification must be between 1 and 60")
	}
	c.Zone = zone

	hemiErr := newError("UTM coordinate system requires a 'hemisphere' specification")
	raw, ok = d.Lookup(GroupCoordinates, "hemisphere")
	if !ok {
		return hemiErr
	}
	s, isString := raw.(string)
	if !isString {
		return hemiErr
	}
	h, err := geodesy.ParseHemisphere(s)
	if err != nil {
		return hemiErr
	}
	c.Hemisphere = h

	return nil
}

func parseCenter(d *Document, c *CenterConfig) error {
	raw, ok := d.Lookup(GroupCenter, "name")
	if !ok {
		return newError("Specify a name for the coordinates center")
	}
	c.Name = cast.ToString(raw)

	fields := []struct {
		key  string
		what string
		dst  *float64
	}{
		{"lat", "Specify a latitude for the coordinates center", &c.Lat},
		{"lon", "Specify a longitude for the coordinates center", &c.Lon},
		{"max distance", "Specify a maximum distance for the coordinates center", &c.MaxDistance},
	}
	for _, f := range fields {
		raw, ok := d.Lookup(GroupCenter, f.key)
		if !ok {
			return newError(f.what)
		}
		v, ok := asFloat(raw)
		if !ok {
			return newError("center location '" + f.key + "' must be a number")
		}
		*f.dst = v
	}

	// Negated comparisons also reject NaN.
	if !(c.Lat >= -90 && c.Lat <= 90) {
		return newError("center location 'lat' must be between -90 and 90")
	}
	if !(c.Lon >= -180 && c.Lon <= 180) {
		return newError("center location 'lon' must be between -180 and 180")
	}
	if math.IsInf(c.MaxDistance, 0) || !(c.MaxDistance >= 0) {
		return newError("center location 'max distance' must be a finite number of 0 or more")
	}

	return nil
}

func parseInput(d *Document, c *InputConfig) error {
	columns := []struct {
		key  string
		what string
		dst  *int
	}{
		{"name", "the name", &c.Name},
		{"x", "the x coordinates", &c.X},
		{"y", "the y coordinates", &c.Y},
	}
	for _, col := range columns {
		raw, ok := d.Lookup(GroupInput, col.key)
		if !ok {
			return newError("Specify a column for " + col.what + " in the input file")
		}
		n, ok := asInt(raw)
		if !ok {
			return newError("input " + col.key + " column must be an integer")
		}
		if n < 1 {
			return newError("input " + col.key + " column must be 1 or greater")
		}
		*col.dst = n
	}

	raw, ok := d.Lookup(GroupInput, "header")
	if !ok {
		return newError("Specify if the input file has a header")
	}
	header, ok := raw.(bool)
	if !ok {
		return newError("input header column must be a flag")
	}
	c.Header = header

	if c.Name == c.X || c.Name == c.Y || c.X == c.Y {
		return newError("Overlapping column numbers")
	}

	c.Encoding = "utf-8"
	if raw, ok := d.Lookup(GroupInput, "encoding"); ok {
		label := strings.TrimSpace(cast.ToString(raw))
		if _, err := ResolveEncoding(label); err != nil {
			return &Error{Lines: []string{"unsupported input encoding \"" + label + "\""}, Err: err}
		}
		c.Encoding = label
	}

	return nil
}

// ResolveEncoding maps a WHATWG encoding label to its decoder. An empty
// label means UTF-8.
func ResolveEncoding(label string) (encoding.Encoding, error) {
	if label == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "config: unsupported encoding %q", label)
	}
	return enc, nil
}

// asInt accepts integers and integral floats. Strings and booleans are rejected.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// asFloat accepts numbers and numeric strings.
func asFloat(v any) (float64, bool) {
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// InitLogger initializes the global zap logger. The console format prints
// "LEVEL: message" lines to stderr without timestamps.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Development = false
		zapCfg.DisableStacktrace = true
		zapCfg.DisableCaller = true
		zapCfg.EncoderConfig.TimeKey = ""
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapCfg.EncoderConfig.ConsoleSeparator = ": "
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
