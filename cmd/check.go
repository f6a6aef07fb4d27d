package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coordcheck/internal/checker"
	"github.com/sells-group/coordcheck/internal/config"
	"github.com/sells-group/coordcheck/internal/model"
	"github.com/sells-group/coordcheck/internal/report"
	"github.com/sells-group/coordcheck/internal/store"
)

// checkOptions are the paths one check run works with. OutputPath and
// StorePath are optional.
type checkOptions struct {
	ConfigPath string
	DataPath   string
	OutputPath string
	StorePath  string
}

// runCheck loads and validates the configuration, then evaluates every row
// of the data file. Blank separator lines go to stdout.
func runCheck(ctx context.Context, opts checkOptions, stdout io.Writer) (summary model.Summary, err error) {
	log := zap.L()

	log.Debug("config file: " + opts.ConfigPath)
	doc, err := config.Load(opts.ConfigPath)
	if err != nil {
		return summary, err
	}
	cfg, err := config.Parse(doc)
	if err != nil {
		return summary, err
	}

	f, err := os.Open(opts.DataPath)
	if err != nil {
		return summary, eris.Wrap(err, "check: open data file")
	}
	defer f.Close() //nolint:errcheck
	log.Debug("data file: " + opts.DataPath)

	var recorders []checker.Recorder

	if opts.OutputPath != "" {
		w, openErr := report.Open(opts.OutputPath)
		if openErr != nil {
			return summary, openErr
		}
		defer func() {
			if closeErr := w.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		recorders = append(recorders, w)
	}

	if opts.StorePath != "" {
		st, openErr := store.NewSQLite(opts.StorePath)
		if openErr != nil {
			return summary, openErr
		}
		defer st.Close() //nolint:errcheck

		if migErr := st.Migrate(ctx); migErr != nil {
			return summary, migErr
		}
		run, runErr := st.CreateRun(ctx, model.Run{
			ConfigPath: opts.ConfigPath,
			DataPath:   opts.DataPath,
			CenterName: cfg.Center.Name,
			Format:     string(cfg.Coordinates.Format),
		})
		if runErr != nil {
			return summary, runErr
		}
		log.Debug("recording run", zap.String("run_id", run.ID), zap.String("store", opts.StorePath))

		defer func() {
			status := model.RunStatusComplete
			if err != nil {
				status = model.RunStatusFailed
			}
			finishErr := st.FinishRun(context.WithoutCancel(ctx), run.ID, status, summary)
			if finishErr != nil && err == nil {
				err = finishErr
			}
		}()
		recorders = append(recorders, store.ForRun(st, run.ID))
	}

	proc := checker.New(cfg,
		checker.WithRecorders(recorders...),
		checker.WithSeparator(stdout),
	)
	summary, err = proc.Run(ctx, f)
	return summary, err
}
