// Package ytdlp wraps the yt-dlp command-line downloader.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// progressPrefix tags the progress lines emitted via --progress-template so
// they can be told apart from yt-dlp's other output.
const progressPrefix = "podpipe-progress"

// ProgressUpdate captures a download progress event.
type ProgressUpdate struct {
	Status          string
	Percent         float64
	DownloadedBytes int64
	TotalBytes      int64
	SpeedBPS        float64
	ETASeconds      int64
}

// Metadata describes a remote source without downloading it.
type Metadata struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	Uploader    string  `json:"uploader"`
	Ext         string  `json:"ext"`
}

// Client defines yt-dlp behaviour.
type Client interface {
	Probe(ctx context.Context, url string) (*Metadata, error)
	Download(ctx context.Context, url, destDir string, progress func(ProgressUpdate)) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the yt-dlp command-line downloader.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "yt-dlp"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Probe fetches source metadata without downloading media.
func (c *CLI) Probe(ctx context.Context, url string) (*Metadata, error) {
	if url == "" {
		return nil, errors.New("url required")
	}

	args := []string{"--dump-json", "--no-download", "--no-playlist", url}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp probe failed: %w: %s", err, firstLine(stderr.String()))
	}

	var meta Metadata
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	return &meta, nil
}

// Download fetches the best available audio stream into destDir and returns
// the downloaded file path. The output file is named after the source ID.
func (c *CLI) Download(ctx context.Context, url, destDir string, progress func(ProgressUpdate)) (string, error) {
	if url == "" {
		return "", errors.New("url required")
	}
	if strings.TrimSpace(destDir) == "" {
		return "", errors.New("destination directory required")
	}

	template := progressPrefix + "|%(progress.status)s|%(progress.downloaded_bytes)s|%(progress.total_bytes)s|%(progress.speed)s|%(progress.eta)s"
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-part",
		"-f", "bestaudio/best",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		"--progress-template", template,
		"--print", "after_move:filepath",
		"--no-simulate",
		url,
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start yt-dlp: %w", err)
	}

	var outputPath string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if update, ok := parseProgressLine(line); ok {
			if progress != nil {
				progress(update)
			}
			continue
		}
		// The after_move print is the only non-progress stdout line.
		outputPath = line
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read yt-dlp output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("yt-dlp download failed: %w: %s", err, firstLine(stderr.String()))
	}
	if outputPath == "" {
		return "", errors.New("yt-dlp reported no output file")
	}
	return outputPath, nil
}

func parseProgressLine(line string) (ProgressUpdate, bool) {
	if !strings.HasPrefix(line, progressPrefix+"|") {
		return ProgressUpdate{}, false
	}
	fields := strings.Split(line, "|")
	if len(fields) != 6 {
		return ProgressUpdate{}, false
	}

	update := ProgressUpdate{
		Status:          fields[1],
		DownloadedBytes: parseInt(fields[2]),
		TotalBytes:      parseInt(fields[3]),
		SpeedBPS:        parseFloat(fields[4]),
		ETASeconds:      parseInt(fields[5]),
	}
	if update.TotalBytes > 0 {
		update.Percent = float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
	}
	if update.Status == "finished" {
		update.Percent = 100
	}
	return update, true
}

// yt-dlp renders unknown template fields as "NA"; treat those as zero.
func parseInt(value string) int64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return int64(parsed)
}

func parseFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return parsed
}

func firstLine(output string) string {
	output = strings.TrimSpace(output)
	if idx := strings.IndexByte(output, '\n'); idx >= 0 {
		output = output[:idx]
	}
	if output == "" {
		return "no diagnostic output"
	}
	return output
}

var _ Client = (*CLI)(nil)
