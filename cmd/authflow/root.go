package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/panyam/authflow/internal/logging"
)

type globalFlags struct {
	logFormat string
	logLevel  string
}

// NewRootCmd creates the root command for the authflow CLI.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "authflow",
		Short: "authflow - email/password sign-in flow",
		Long: `authflow runs a small identity server and a terminal front end that
walks a user through login, signup and logout against it.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newRunCmd(flags))

	return cmd
}

func (f *globalFlags) logger(w io.Writer) *slog.Logger {
	return logging.Setup("authflow", version, f.logFormat, logging.ParseLevel(f.logLevel), w)
}
