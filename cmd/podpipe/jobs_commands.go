package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podpipe/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage pipeline jobs",
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsCancelCommand(ctx))
	cmd.AddCommand(newJobsRetryCommand(ctx))
	cmd.AddCommand(newJobsClearCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			items, err := apiClient.Jobs(cmd.Context(), state)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, job := range items {
				rows = append(rows, []string{
					shortID(job.ID),
					job.Kind,
					job.Status,
					truncate(jobLabel(job), 40),
					formatJobProgress(job),
					relativeTime(job.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Kind", "Status", "Source", "Progress", "Created"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (pending, acquiring, transcoding, publishing, completed, failed)")
	return cmd
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := apiClient.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled job %s\n", job.ID)
			return nil
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry JOB_ID",
		Short: "Requeue a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := apiClient.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued job %s\n", job.ID)
			return nil
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove terminal jobs from the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			removed, err := apiClient.ClearJobs(cmd.Context(), state)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d job(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "completed", "Which jobs to clear (completed, failed, all)")
	return cmd
}

func jobLabel(job api.Job) string {
	if job.Title != "" {
		return job.Title
	}
	return job.Source
}
