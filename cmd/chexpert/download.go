package main

import (
	"github.com/spf13/cobra"

	"github.com/tsawler/go-chexpert/dataset"
	"github.com/tsawler/go-chexpert/logging"
)

func downloadCmd() *cobra.Command {
	var (
		output     string
		noKaggle   bool
		logDir     string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and organize the dataset archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := logging.New("CheXpertDownloader", logDir)
			if err != nil {
				return err
			}
			defer closeLog()

			cfg := dataset.DefaultConfig()
			if configPath != "" {
				cfg, err = dataset.LoadConfig(configPath)
				if err != nil {
					return err
				}
			}

			manager, err := dataset.NewManager(dataset.ManagerConfig{
				OutputDir: output,
				Dataset:   cfg,
				UseKaggle: !noKaggle,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			return manager.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "./data", "base data directory")
	cmd.Flags().BoolVar(&noKaggle, "no-kaggle", false, "skip the Kaggle API attempt")
	cmd.Flags().StringVar(&logDir, "log-dir", "logs", "directory for per-run log files")
	cmd.Flags().StringVar(&configPath, "config", "", "optional dataset config YAML (overrides defaults)")
	return cmd
}
