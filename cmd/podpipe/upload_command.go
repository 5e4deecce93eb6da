package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"podpipe/internal/config"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string
	var wait bool

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Submit a local media file for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			accepted, err := api.Upload(cmd.Context(), path, title, description)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "accepted job %s\n", accepted.JobID)
			if !wait {
				return nil
			}
			return waitForJob(cmd, ctx, accepted.JobID)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Override the entry title")
	cmd.Flags().StringVar(&description, "description", "", "Override the entry description")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the job reaches a terminal state")
	return cmd
}
