package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gnemet/propertygrid/internal/events"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print load events from NATS as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("nats-url")
		if url == "" {
			url = cfg.Events.NATSURL
		}
		if url == "" {
			return errors.New("no NATS URL: set events.nats_url or --nats-url")
		}
		topic, _ := cmd.Flags().GetString("topic")

		sub, err := events.NewNATSSubscriber(url)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return tailEvents(ctx, sub, topic)
	},
}

func init() {
	eventsCmd.Flags().String("nats-url", "", "NATS server URL (default from config)")
	eventsCmd.Flags().String("topic", events.TopicAll, "subject to subscribe to")
}

func tailEvents(ctx context.Context, sub events.Subscriber, topic string) error {
	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Println(string(data))
				continue
			}
			fmt.Println(formatEvent(data))
		}
	}
}

// formatEvent renders a load event on one line. Unknown payloads are printed raw.
func formatEvent(data []byte) string {
	var ev struct {
		RequestID    string `json:"request_id"`
		Table        string `json:"table"`
		TotalCount   *int   `json:"total_count"`
		Pages        int    `json:"pages"`
		ServerDriven bool   `json:"server_driven"`
		Page         int    `json:"page"`
		Error        string `json:"error"`
		DurationMs   int64  `json:"duration_ms"`
	}
	if err := json.Unmarshal(data, &ev); err != nil || ev.Table == "" {
		return string(data)
	}
	if ev.Error != "" {
		return fmt.Sprintf("FAILED    %-8s page=%d %dms %s (%s)", ev.Table, ev.Page+1, ev.DurationMs, ev.Error, ev.RequestID)
	}
	total := 0
	if ev.TotalCount != nil {
		total = *ev.TotalCount
	}
	return fmt.Sprintf("COMPLETED %-8s total=%d pages=%d server=%t %dms (%s)",
		ev.Table, total, ev.Pages, ev.ServerDriven, ev.DurationMs, ev.RequestID)
}
