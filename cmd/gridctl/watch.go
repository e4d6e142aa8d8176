package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chrisboulton/gridsocket-go"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <topic>...",
		Short: "Print broadcasts for the given topics until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, stop, err := newClient(opts)
			if err != nil {
				return err
			}
			defer stop()

			out := cmd.OutOrStdout()
			for _, topic := range args {
				client.RegisterHandler(topic, gridsocket.HandlerFunc(func(ev gridsocket.Event) {
					fmt.Fprintf(out, "%s\t%s\t%s\n", ev.Topic, ev.Action, ev.Payload)
				}))
			}

			client.Connect()
			opts.logger.Info("watching", slog.Any("topics", client.Topics()))

			<-cmd.Context().Done()
			return nil
		},
	}
}
