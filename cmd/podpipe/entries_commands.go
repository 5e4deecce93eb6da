package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEntriesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Inspect and manage published feed entries",
	}
	cmd.AddCommand(newEntriesListCommand(ctx))
	cmd.AddCommand(newEntriesRemoveCommand(ctx))
	return cmd
}

func newEntriesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the entries podcast clients see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			resp, err := apiClient.Entries(cmd.Context())
			if err != nil {
				return err
			}
			if len(resp.Entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "feed is empty")
				return nil
			}

			rows := make([][]string, 0, len(resp.Entries))
			for _, entry := range resp.Entries {
				rows = append(rows, []string{
					entry.ID,
					truncate(entry.Title, 48),
					entry.Duration,
					formatBytes(entry.MediaLength),
					relativeTime(entry.PublishedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Entry", "Title", "Duration", "Size", "Published"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
			if resp.Total > len(resp.Entries) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d older entr(ies) beyond the presentation cap\n",
					resp.Total-len(resp.Entries))
			}
			return nil
		},
	}
}

func newEntriesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ENTRY_ID",
		Short: "Remove an entry from the feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			found, err := apiClient.RemoveEntry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "entry %s not found\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed entry %s\n", args[0])
			return nil
		},
	}
}
