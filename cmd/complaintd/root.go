package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joelkehle/hmrc-complaints/internal/config"
	"github.com/joelkehle/hmrc-complaints/internal/logging"
)

// app carries what every subcommand needs once the root has loaded config.
type app struct {
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "complaintd",
		Short:         "HMRC complaint drafting service",
		Long:          "complaintd extracts case facts, classifies HMRC complaints and penalty appeals, streams generated letters and answers guidance questions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			slog.SetDefault(logger)
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./complaintd.yaml or $HOME/complaintd.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newExtractCmd(a),
		newClassifyCmd(a),
		newIngestCmd(a),
	)
	return root
}
