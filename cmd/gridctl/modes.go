package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/chrisboulton/gridsocket-go/modes"
)

func newModesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modes",
		Short: "List the simulated operating modes",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all modes and their data folders",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				data := pterm.TableData{{"ID", "LABEL", "FOLDER"}}
				for _, m := range modes.DefaultRegistry().All() {
					data = append(data, []string{m.ID, m.Label, m.FolderPath()})
				}
				table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
				return err
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Describe one mode",
			Long:  "Describe one mode. Unknown ids report an error and show the default mode, as the dashboard does.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				selector := modes.NewSelector(modes.DefaultRegistry(), nil)
				m, selErr := selector.Select(args[0])

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", m.Label, m.ID)
				fmt.Fprintf(out, "folder: %s\n", selector.FolderPath())
				fmt.Fprintf(out, "%s\n", m.Description)
				return selErr
			},
		},
	)
	return cmd
}
