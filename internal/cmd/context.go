package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/remcomokveld/dagger/internal/config"
	"github.com/remcomokveld/dagger/internal/log"
	"github.com/remcomokveld/dagger/internal/report"
	"github.com/remcomokveld/dagger/internal/version"
)

// CommandContext holds the loaded configuration and the values of the
// persistent flags for one command invocation.
type CommandContext struct {
	Config  *config.Config
	Logger  *log.Logger
	NoColor bool

	Out    io.Writer
	ErrOut io.Writer
}

// NewCommandContext loads configuration and sets up logging for cmd.
// Commands call this first in their RunE:
//
//	func runCommand(cmd *cobra.Command, args []string) error {
//		cmdCtx, err := NewCommandContext(cmd)
//		if err != nil {
//			return err
//		}
//		// Use cmdCtx.Config, cmdCtx.Logger, etc.
//	}
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.LoadOptions{File: configFile})
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	log.SetDefaultLogger(logger)

	return &CommandContext{
		Config:  cfg,
		Logger:  logger,
		NoColor: noColor,
		Out:     cmd.OutOrStdout(),
		ErrOut:  cmd.ErrOrStderr(),
	}, nil
}

// Formatter returns a report formatter writing to the command's output.
func (c *CommandContext) Formatter(format string) (report.Formatter, error) {
	return report.NewFormatter(format, &report.FormatterOptions{
		Writer:  c.Out,
		NoColor: c.NoColor,
	})
}

func newLogger(cfg config.LogConfig, w io.Writer) (*log.Logger, error) {
	logCfg, err := log.FromStrings(cfg.Level, cfg.Format, w)
	if err != nil {
		return nil, fmt.Errorf("invalid flag value for logging: %w", err)
	}
	logCfg.ServiceName = "relocheck"
	logCfg.ServiceVersion = version.GetInfo().Short()
	return log.New(logCfg), nil
}
