package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jordanhubbard/convreview/internal/messagebus"
	"github.com/jordanhubbard/convreview/pkg/messages"
)

func newEventsCommand() *cobra.Command {
	var (
		natsURL  string
		stream   string
		consumer string
	)
	cmd := &cobra.Command{
		Use:   "events [event-type]",
		Short: "Tail review events from NATS",
		Long: `Prints every event published by the server as one JSON line. With no
event type all events are shown; "analysis.*" selects one family.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventType := ""
			if len(args) == 1 {
				eventType = args[0]
			}

			bus, err := messagebus.NewNatsMessageBus(messagebus.Config{URL: natsURL, StreamName: stream})
			if err != nil {
				return err
			}
			defer bus.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := bus.SubscribeEvents(eventType, consumer, func(ev *messages.EventMessage) {
				enc.Encode(ev)
			}); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			return nil
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats-url", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	cmd.Flags().StringVar(&stream, "stream", "CONVREVIEW", "JetStream stream name")
	cmd.Flags().StringVar(&consumer, "consumer", "convreviewctl", "Durable consumer name")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
