package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coordcheck/internal/config"
)

// usageError is a command-line mistake; help is printed before the message.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// reportError prints err for the user. It is the only place errors reach
// the terminal; the caller decides the exit status.
func reportError(w io.Writer, cmd *cobra.Command, err error) {
	var (
		ue  *usageError
		cfg *config.Error
	)
	switch {
	case errors.As(err, &ue):
		fmt.Fprint(w, cmd.UsageString())
		fmt.Fprintf(w, "\nError: %s\n", ue.msg)
	case errors.As(err, &cfg) && cfg.Usage:
		fmt.Fprint(w, cmd.UsageString())
		fmt.Fprintf(w, "\nError: %s\n", strings.Join(cfg.Lines, "\n"))
	case errors.As(err, &cfg):
		if cfg.Err != nil {
			zap.L().Debug("config error", zap.Error(cfg.Err))
		}
		fmt.Fprintln(w)
		for _, line := range cfg.Lines {
			fmt.Fprintln(w, line)
			fmt.Fprintln(w)
		}
	default:
		fmt.Fprintf(w, "\nError: %s\n", err)
	}
}
