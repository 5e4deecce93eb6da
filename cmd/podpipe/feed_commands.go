package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"podpipe/internal/config"
	"podpipe/internal/feed"
)

func newFeedCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Work with the RSS document",
	}
	cmd.AddCommand(newFeedShowCommand(ctx))
	cmd.AddCommand(newFeedImportCommand(ctx))
	return cmd
}

func newFeedShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the RSS document served to podcast clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			payload, err := apiClient.Feed(cmd.Context())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(payload)
			return err
		},
	}
}

func newFeedImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge entries from an existing RSS document into the feed",
		Long: "Merge entries from an existing RSS document into the feed. The " +
			"daemon owns the feed while running, so imports require it to be stopped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// The daemon is the feed's single writer; refuse to race it.
			daemonLock := flock.New(filepath.Join(cfg.Paths.DataDir, "podpipe.lock"))
			held, err := daemonLock.TryLock()
			if err != nil {
				return fmt.Errorf("check daemon lock: %w", err)
			}
			if !held {
				return fmt.Errorf("daemon is running; stop it before importing")
			}
			defer func() { _ = daemonLock.Unlock() }()

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = file.Close() }()

			channel, entries, err := feed.ParseRSS(file)
			if err != nil {
				return err
			}

			store, err := feed.NewStore(cfg.FeedPath(), feed.ChannelFromConfig(cfg), cfg.Feed.MaxItems)
			if err != nil {
				return err
			}
			added, err := store.Import(entries)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d entr(ies) from %q\n",
				added, len(entries), channel.Title)
			return nil
		},
	}
}
