package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"podpipe/internal/acquire"
	"podpipe/internal/daemon"
	"podpipe/internal/deps"
	"podpipe/internal/feed"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/preflight"
	"podpipe/internal/publish"
	"podpipe/internal/services/ffmpeg"
	"podpipe/internal/services/ytdlp"
	"podpipe/internal/transcode"
	"podpipe/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			if !skipPreflight {
				failed := false
				for _, result := range preflight.Run(cfg) {
					if !result.Passed {
						failed = true
						fmt.Fprintf(cmd.ErrOrStderr(), "preflight: %s: %s\n", result.Name, result.Detail)
					}
				}
				for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
					if !status.Available && !status.Optional {
						failed = true
						fmt.Fprintf(cmd.ErrOrStderr(), "missing dependency: %s (%s)\n", status.Name, status.Detail)
					}
				}
				if failed {
					return fmt.Errorf("environment checks failed; fix the issues above or rerun with --skip-preflight")
				}
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := jobs.Open(runCtx, cfg.JobsDBPath())
			if err != nil {
				return err
			}
			feedStore, err := feed.NewStore(cfg.FeedPath(), feed.ChannelFromConfig(cfg), cfg.Feed.MaxItems)
			if err != nil {
				_ = store.Close()
				return err
			}

			downloader := ytdlp.NewCLI(ytdlp.WithBinary(cfg.Tools.YtDlp))
			converter := ffmpeg.NewCLI(
				ffmpeg.WithBinary(cfg.Tools.FFmpeg),
				ffmpeg.WithProbeBinary(cfg.Tools.FFprobe),
			)

			manager := workflow.New(cfg, store,
				acquire.New(cfg, store, feedStore, downloader, logger),
				transcode.New(cfg, converter, logger),
				publish.New(cfg, feedStore, logger),
				logger)

			d, err := daemon.New(cfg, store, feedStore, manager, logger)
			if err != nil {
				_ = store.Close()
				return err
			}
			if err := d.Start(runCtx); err != nil {
				_ = store.Close()
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "podpipe daemon listening on %s\n", d.Addr())
			fmt.Fprintf(cmd.OutOrStdout(), "feed: %s\n", cfg.FeedPath())

			<-runCtx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "shutting down")
			return d.Close()
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks at startup")
	return cmd
}
