package ytdlp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/yt-dlp"))
	if cli.binary != "/opt/yt-dlp" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestProbeRequiresURL(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Probe(context.Background(), ""); err == nil {
		t.Fatal("expected error when url is empty")
	}
}

func TestDownloadRequiresDestDir(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "  ", nil); err == nil {
		t.Fatal("expected error when destination directory is empty")
	}
}

func TestProbeSuccess(t *testing.T) {
	setHelperCommand(t, "probe")

	cli := NewCLI()
	meta, err := cli.Probe(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if meta.ID != "dQw4w9WgXcQ" {
		t.Fatalf("expected source id, got %q", meta.ID)
	}
	if meta.Title != "Test Clip" || meta.Duration != 212.5 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestProbeFailureSurfacesStderr(t *testing.T) {
	setHelperCommand(t, "probefail")

	cli := NewCLI()
	_, err := cli.Probe(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected probe failure")
	}
}

func TestDownloadSuccess(t *testing.T) {
	setHelperCommand(t, "download")

	cli := NewCLI()
	var updates []ProgressUpdate
	path, err := cli.Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", t.TempDir(), func(update ProgressUpdate) {
		updates = append(updates, update)
	})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if path != "/scratch/dQw4w9WgXcQ.webm" {
		t.Fatalf("unexpected output path %q", path)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(updates))
	}
	if updates[0].Percent != 25 {
		t.Fatalf("expected 25%% from byte counts, got %f", updates[0].Percent)
	}
	if updates[len(updates)-1].Status != "finished" || updates[len(updates)-1].Percent != 100 {
		t.Fatalf("expected finished update, got %+v", updates[len(updates)-1])
	}
}

func TestDownloadSkipsNAFields(t *testing.T) {
	setHelperCommand(t, "nafields")

	cli := NewCLI()
	var updates []ProgressUpdate
	if _, err := cli.Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", t.TempDir(), func(update ProgressUpdate) {
		updates = append(updates, update)
	}); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].TotalBytes != 0 || updates[0].Percent != 0 {
		t.Fatalf("NA fields should parse as zero: %+v", updates[0])
	}
}

func TestDownloadFailure(t *testing.T) {
	setHelperCommand(t, "downloadfail")

	cli := NewCLI()
	if _, err := cli.Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", t.TempDir(), nil); err == nil {
		t.Fatal("expected download failure error")
	}
}

func TestDownloadWithoutOutputPath(t *testing.T) {
	setHelperCommand(t, "nooutput")

	cli := NewCLI()
	if _, err := cli.Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", t.TempDir(), nil); err == nil {
		t.Fatal("expected error when yt-dlp prints no output path")
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("YTDLP_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("YTDLP_HELPER_MODE") {
	case "probe":
		fmt.Println(`{"id":"dQw4w9WgXcQ","title":"Test Clip","description":"a clip","duration":212.5,"uploader":"Tester","ext":"webm"}`)
		os.Exit(0)
	case "probefail":
		fmt.Fprintln(os.Stderr, "ERROR: Video unavailable")
		os.Exit(1)
	case "download":
		fmt.Println("podpipe-progress|downloading|256|1024|2048.5|30")
		fmt.Println("podpipe-progress|downloading|1024|1024|2048.5|0")
		fmt.Println("podpipe-progress|finished|1024|1024|NA|NA")
		fmt.Println("/scratch/dQw4w9WgXcQ.webm")
		os.Exit(0)
	case "nafields":
		fmt.Println("podpipe-progress|downloading|512|NA|NA|NA")
		fmt.Println("/scratch/dQw4w9WgXcQ.webm")
		os.Exit(0)
	case "downloadfail":
		fmt.Fprintln(os.Stderr, "ERROR: network unreachable")
		os.Exit(1)
	case "nooutput":
		fmt.Println("podpipe-progress|finished|10|10|NA|NA")
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
