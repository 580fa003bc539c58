package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weather-pipeline",
	Short: "Monthly weather pipeline: fetch observations, store them in HDFS, chart them to Telegram",
	Long: `weather-pipeline fetches daily observations for the configured cities,
writes them to WebHDFS under a dated path and the latest path, renders a
temperature chart and sends it to Telegram. The same process can serve the
Telegram bot and a small HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, runCmd, sendPlotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
