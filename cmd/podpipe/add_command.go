package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podpipe/internal/jobs"
	"podpipe/internal/sourceid"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string
	var wait bool

	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Submit a remote source for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate locally first so obvious typos fail without a daemon
			// round trip.
			if _, err := sourceid.Resolve(args[0]); err != nil {
				return err
			}

			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			accepted, err := api.Submit(cmd.Context(), args[0], title, description)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "accepted job %s (token %s)\n", accepted.JobID, accepted.ContentToken)
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

func waitForJob(cmd *cobra.Command, ctx *commandContext, jobID string) error {
	api, err := ctx.apiClient()
	if err != nil {
		return err
	}

	lastLine := ""
	for {
		job, err := api.Job(cmd.Context(), jobID)
		if err != nil {
			return err
		}

		line := formatJobProgress(job)
		if line != lastLine {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			lastLine = line
		}

		switch jobs.Status(job.Status) {
		case jobs.StatusCompleted:
			if job.Duplicate {
				fmt.Fprintf(cmd.OutOrStdout(), "already in feed as entry %s\n", job.EntryID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "published entry %s\n", job.EntryID)
			}
			if job.Warning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", job.Warning)
			}
			return nil
		case jobs.StatusFailed:
			return fmt.Errorf("job failed: %s", job.ErrorMessage)
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(2 * time.Second):
		}
	}
}
