package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-pipeline/internal/pipeline"
)

var (
	plotPath     string
	plotChatID   int64
	plotBotToken string

	sendPlotCmd = &cobra.Command{
		Use:   "send-plot",
		Short: "Render the chart for a stored dataset and send it to a chat",
		RunE:  sendPlot,
	}
)

func init() {
	f := sendPlotCmd.Flags()
	f.StringVar(&plotPath, "hdfs-path", pipeline.LatestPath.String(), "dataset path in the object store")
	f.Int64Var(&plotChatID, "chat-id", 0, "destination chat (default TELEGRAM_CHAT_ID)")
	f.StringVar(&plotBotToken, "bot-token", "", "bot token (default TELEGRAM_BOT_TOKEN)")
}

func sendPlot(cmd *cobra.Command, _ []string) error {
	d, err := setup(plotBotToken)
	if err != nil {
		return err
	}
	defer d.l.Stop()

	chatID := plotChatID
	if chatID == 0 {
		chatID = d.cfg.Telegram.ChatID
	}
	if chatID == 0 {
		return fmt.Errorf("no chat id: pass --chat-id or set TELEGRAM_CHAT_ID")
	}

	if err := d.pipeline.SendChart(cmd.Context(), pipeline.Path(plotPath), chatID); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✅ Chart sent")
	return nil
}
