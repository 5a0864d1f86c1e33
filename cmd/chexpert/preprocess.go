package main

import (
	"github.com/spf13/cobra"

	"github.com/tsawler/go-chexpert/logging"
	"github.com/tsawler/go-chexpert/split"
)

func preprocessCmd() *cobra.Command {
	var (
		input  string
		output string
		seed   int64
		logDir string
	)

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Split the metadata CSV into train/val/test partitions by patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := logging.New("CheXpertPreprocessor", logDir)
			if err != nil {
				return err
			}
			defer closeLog()

			preprocessor, err := split.NewPreprocessor(input, output, seed, logger)
			if err != nil {
				logger.Error().Err(err).Msg("preprocessing aborted")
				return err
			}

			return preprocessor.Process()
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "./data/raw", "path to the raw data folder")
	cmd.Flags().StringVarP(&output, "output", "o", "./data/processed", "path for the processed CSVs")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed for the train/val patient draw")
	cmd.Flags().StringVar(&logDir, "log-dir", "logs", "directory for per-run log files")
	return cmd
}
