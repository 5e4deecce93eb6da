package daemon

import (
	"context"
	"testing"

	"podpipe/internal/logging"
	"podpipe/internal/testsupport"
	"podpipe/internal/workflow"
)

func newStoppedDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Workflow.QueuePollInterval = 3600

	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)
	manager := workflow.New(cfg, store,
		idleStage{name: "acquirer"}, idleStage{name: "transcoder"}, idleStage{name: "publisher"},
		logging.NewNop())

	d, err := New(cfg, store, feedStore, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newStoppedDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second start should error")
	}
	if d.Addr() == "" {
		t.Fatal("expected bound address")
	}

	status := d.Status(context.Background())
	if !status.Running || len(status.Stages) != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}

	d.Stop()
	d.Stop() // idempotent
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	first := newStoppedDaemon(t)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	// Same data directory means the same lock file.
	second, err := New(first.cfg, first.store, first.feed, workflow.New(first.cfg, first.store,
		idleStage{name: "a"}, idleStage{name: "t"}, idleStage{name: "p"}, logging.NewNop()),
		logging.NewNop())
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance should fail to acquire the lock")
	}
}
