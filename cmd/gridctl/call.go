package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrisboulton/gridsocket-go/modes"
)

func newCallCmd(opts *globalOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "call <json-message>",
		Short: "Send one call and print the reply data",
		Long: `Send a JSON object to the backend as a call and print the reply data.

A requestId is added to the message. With --mode, the data folder of that
operating mode is added as the "folder" field.

Examples:
  gridctl call '{"action":"getData","chartName":"power"}'
  gridctl call --mode grid_running '{"action":"getData","chartName":"soc"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := parseMessage(args[0])
			if err != nil {
				return err
			}
			if mode != "" {
				m, ok := modes.DefaultRegistry().Lookup(mode)
				if !ok {
					return fmt.Errorf("%w: %q", modes.ErrUnknownMode, mode)
				}
				msg["folder"] = m.FolderPath()
			}

			client, stop, err := newClient(opts)
			if err != nil {
				return err
			}
			defer stop()

			data, err := client.Call(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return printJSON(cmd, data)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "operating mode whose data folder is sent along")
	return cmd
}

// parseMessage decodes a call message given on the command line.
func parseMessage(s string) (map[string]any, error) {
	var msg map[string]any
	if err := json.Unmarshal([]byte(s), &msg); err != nil {
		return nil, fmt.Errorf("message must be a JSON object: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message must be a JSON object")
	}
	return msg, nil
}

func printJSON(cmd *cobra.Command, data []byte) error {
	if len(data) == 0 {
		data = []byte("null")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(out.Bytes())
	return err
}
