package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chexpert",
		Short:         "CheXpert dataset preparation pipeline",
		Long:          "Downloads the CheXpert chest radiograph dataset, normalizes its layout, and splits it into leakage-aware train/val/test partitions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(downloadCmd())
	cmd.AddCommand(preprocessCmd())
	return cmd
}
