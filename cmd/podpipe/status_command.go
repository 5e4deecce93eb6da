package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"podpipe/internal/api"
	"podpipe/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status [JOB_ID]",
		Short: "Show daemon status or the progress of a single job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if watch {
					return waitForJob(cmd, ctx, args[0])
				}
				return showJob(cmd, ctx, args[0])
			}
			return showDaemonStatus(cmd, ctx)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Poll a job until it reaches a terminal state")
	return cmd
}

func showJob(cmd *cobra.Command, ctx *commandContext, jobID string) error {
	apiClient, err := ctx.apiClient()
	if err != nil {
		return err
	}
	job, err := apiClient.Job(cmd.Context(), jobID)
	if err != nil {
		return err
	}

	rows := [][]string{
		{"ID", job.ID},
		{"Kind", job.Kind},
		{"Source", job.Source},
		{"Status", job.Status},
		{"Progress", formatJobProgress(job)},
		{"Created", formatTimestamp(job.CreatedAt)},
		{"Updated", formatTimestamp(job.UpdatedAt)},
	}
	if job.Title != "" {
		rows = append(rows, []string{"Title", job.Title})
	}
	if job.ContentToken != "" {
		rows = append(rows, []string{"Token", job.ContentToken})
	}
	if job.EntryID != "" {
		rows = append(rows, []string{"Entry", job.EntryID})
	}
	if job.Warning != "" {
		rows = append(rows, []string{"Warning", job.Warning})
	}
	if job.ErrorMessage != "" {
		rows = append(rows, []string{"Error", job.ErrorMessage})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
	return nil
}

func showDaemonStatus(cmd *cobra.Command, ctx *commandContext) error {
	apiClient, err := ctx.apiClient()
	if err != nil {
		return err
	}
	status, err := apiClient.Status(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "daemon running (pid %d)\n", status.PID)
	fmt.Fprintf(cmd.OutOrStdout(), "feed entries: %d (revision %d)\n", status.FeedEntries, status.FeedRevision)

	states := make([]string, 0, len(status.JobStats))
	for state := range status.JobStats {
		states = append(states, state)
	}
	sort.Strings(states)

	rows := make([][]string, 0, len(states))
	for _, state := range states {
		rows = append(rows, []string{state, fmt.Sprintf("%d", status.JobStats[state])})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"State", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
	return nil
}

func formatJobProgress(job api.Job) string {
	stage := job.ProgressStage
	if stage == "" {
		stage = job.Status
	}
	line := fmt.Sprintf("%s %.0f%%", stage, job.ProgressPercent)
	if jobs.Status(job.Status) == jobs.StatusAcquiring && job.TotalBytes > 0 {
		line += " (" + formatByteProgress(job.DownloadedBytes, job.TotalBytes) + ")"
	}
	if job.ProgressMessage != "" {
		line += " - " + job.ProgressMessage
	}
	return line
}

func formatTimestamp(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return at.Local().Format("2006-01-02 15:04:05")
}
