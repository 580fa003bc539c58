package main

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/i474232898/weather-pipeline/internal/pipeline"
)

var (
	runDateFlag string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run ingest and notify once, as the scheduler would",
		RunE:  runOnce,
	}
)

func init() {
	runCmd.Flags().StringVar(&runDateFlag, "date", "", "run date as YYYY-MM-DD (default today)")
}

func runOnce(cmd *cobra.Command, _ []string) error {
	runDate := pipeline.Today()
	if runDateFlag != "" {
		d, err := civil.ParseDate(runDateFlag)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		runDate = d
	}

	d, err := setup("")
	if err != nil {
		return err
	}
	defer d.l.Stop()

	res, err := d.runner.Run(cmd.Context(), runDate)
	if err != nil {
		return fmt.Errorf("run %s: %w", res.ID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s stored %s\n", res.ID, res.Path)
	return nil
}
