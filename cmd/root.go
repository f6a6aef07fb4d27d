package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/coordcheck/internal/config"
)

var (
	configPath string
	dataPath   string
	outputPath string
	storePath  string
	logFormat  string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "coordcheck",
	Short: "Check point coordinates against a reference location",
	Long: `Reads a tab-separated data file with UTM or WGS84 coordinates, converts UTM
to latitude/longitude, and flags every point farther from the configured
center location than the configured maximum distance.`,
	Example: `  # Check a file and print per-point results
  coordcheck -c coordcheck.yml -d points.tsv

  # Only show points that exceed the limit, export results as GeoJSON
  coordcheck -c coordcheck.yml -d points.tsv -q -o points.geojson

  # Record the run in a local SQLite database
  coordcheck -c coordcheck.yml -d points.tsv --store runs.db`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) > 0 {
			return &usageError{msg: "unexpected arguments: " + args[0]}
		}
		return nil
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := checkHome(); err != nil {
			return err
		}
		if err := validateFlags(); err != nil {
			return err
		}
		if err := config.InitLogger(config.LogConfig{Level: logLevel(), Format: logFormat}); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := runCheck(cmd.Context(), checkOptions{
			ConfigPath: configPath,
			DataPath:   dataPath,
			OutputPath: outputPath,
			StorePath:  storePath,
		}, cmd.OutOrStdout())
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	f := rootCmd.Flags()
	// No -h shorthand; pflag still maps a bare -h to a help request.
	f.Bool("help", false, "show this help")
	f.StringVarP(&configPath, "config", "c", "", "configuration file (required)")
	f.StringVarP(&dataPath, "data", "d", "", "data file (required)")
	f.BoolVarP(&verbose, "verbose", "v", false, "be more verbose")
	f.BoolVarP(&quiet, "quiet", "q", false, "run quietly")
	f.StringVarP(&outputPath, "output", "o", "", "write results to a .csv, .geojson, .json, .xlsx, or .shp file")
	f.StringVar(&storePath, "store", "", "record the run in this SQLite database")
	f.StringVar(&logFormat, "log-format", "console", "log format: console or json")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	})
}

// validateFlags enforces the flag rules cobra cannot express with the
// messages users of the tool expect.
func validateFlags() error {
	if verbose && quiet {
		return &usageError{msg: "--verbose and --quiet can't be set at the same time"}
	}
	if configPath == "" {
		return &usageError{msg: "configfile is required"}
	}
	if dataPath == "" {
		return &usageError{msg: "data file is required"}
	}
	if logFormat != "console" && logFormat != "json" {
		return &usageError{msg: "--log-format must be console or json"}
	}
	return nil
}

func logLevel() string {
	switch {
	case verbose:
		return "debug"
	case quiet:
		return "error"
	default:
		return "info"
	}
}

// checkHome requires $HOME to name an existing directory.
func checkHome() error {
	home, ok := os.LookupEnv("HOME")
	if !ok || home == "" {
		return eris.New("$HOME is not set!")
	}
	st, err := os.Stat(home)
	if err != nil || !st.IsDir() {
		return eris.New("$HOME does not point to a directory!")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		_ = zap.L().Sync()
		reportError(os.Stderr, rootCmd, err)
		os.Exit(1)
	}
}
