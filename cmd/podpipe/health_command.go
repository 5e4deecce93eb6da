package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podpipe/internal/deps"
	"podpipe/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon readiness, or the local environment when it is down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			resp, err := apiClient.Health(cmd.Context())
			if err == nil {
				rows := make([][]string, 0, len(resp.Stages))
				for _, stage := range resp.Stages {
					state := "ready"
					if !stage.Ready {
						state = "not ready"
					}
					rows = append(rows, []string{stage.Name, state, stage.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Stage", "State", "Detail"}, rows, nil))
				if !resp.Ready {
					return fmt.Errorf("daemon reports one or more stages not ready")
				}
				fmt.Fprintln(out, "daemon healthy")
				return nil
			}

			fmt.Fprintf(out, "daemon unreachable (%v); checking local environment\n", err)
			return runLocalChecks(cmd, ctx)
		},
	}
}

func runLocalChecks(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, 8)
	failed := false
	for _, result := range preflight.Run(cfg) {
		state := "ok"
		if !result.Passed {
			state = "failed"
			failed = true
		}
		rows = append(rows, []string{result.Name, state, result.Detail})
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		state := "ok"
		switch {
		case status.Available:
		case status.Optional:
			state = "missing (optional)"
		default:
			state = "missing"
			failed = true
		}
		rows = append(rows, []string{status.Name, state, status.Detail})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "State", "Detail"}, rows, nil))
	if failed {
		return fmt.Errorf("environment checks failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "environment ready")
	return nil
}
