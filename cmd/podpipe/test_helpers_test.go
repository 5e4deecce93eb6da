package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podpipe/internal/config"
	"podpipe/internal/daemon"
	"podpipe/internal/feed"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/stage"
	"podpipe/internal/testsupport"
	"podpipe/internal/workflow"
)

type parkedStage struct{ name string }

func (s parkedStage) Prepare(context.Context, *jobs.Job) error { return nil }
func (s parkedStage) Execute(ctx context.Context, _ *jobs.Job) error {
	<-ctx.Done()
	return ctx.Err()
}
func (s parkedStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name, "ok")
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobs.Store
	feed       *feed.Store
	daemon     *daemon.Daemon
	address    string
	configPath string
}

// setupCLITestEnv starts a daemon whose workers stay parked, so submitted
// jobs remain observable in their queued state.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Workflow.QueuePollInterval = 3600

	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)
	manager := workflow.New(cfg, store,
		parkedStage{name: "acquirer"}, parkedStage{name: "transcoder"}, parkedStage{name: "publisher"},
		logging.NewNop())

	d, err := daemon.New(cfg, store, feedStore, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		feed:       feedStore,
		daemon:     d,
		address:    d.Addr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, address, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if address != "" {
		flags = append(flags, "--address", address)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nscratch_dir = %q\nmedia_dir = %q\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\n",
		cfg.Paths.ScratchDir,
		cfg.Paths.MediaDir,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
