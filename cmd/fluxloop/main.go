package main

import (
	"os"

	"github.com/fluxloop/fluxloop-cli/internal/cli"
	"github.com/fluxloop/fluxloop-cli/internal/config"
	"github.com/fluxloop/fluxloop-cli/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	command := NewFluxLoopCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewFluxLoopCommand() *cobra.Command {
	logLevel := "error"
	if cfg, err := config.New(); err == nil {
		logLevel = cfg.Service.LogLevel
	}

	cmd := &cobra.Command{
		Use:   "fluxloop [flags] [options]",
		Short: "fluxloop manages test data, personas, scenarios and evaluation jobs on the FluxLoop platform.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			lvl, err := zapcore.ParseLevel(logLevel)
			if err != nil {
				lvl = zapcore.ErrorLevel
			}
			logger := log.InitLog(zap.NewAtomicLevelAt(lvl))
			zap.ReplaceGlobals(logger)
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log verbosity: debug, info, warn or error.")

	cmd.AddCommand(cli.NewCmdLogin())
	cmd.AddCommand(cli.NewCmdLogout())
	cmd.AddCommand(cli.NewCmdProjects())
	cmd.AddCommand(cli.NewCmdScenarios())
	cmd.AddCommand(cli.NewCmdData())
	cmd.AddCommand(cli.NewCmdPersonas())
	cmd.AddCommand(cli.NewCmdEvaluate())
	cmd.AddCommand(cli.NewCmdInfo())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
