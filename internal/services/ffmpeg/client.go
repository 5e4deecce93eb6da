// Package ffmpeg wraps the ffmpeg and ffprobe command-line tools.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Request describes a single audio extraction.
type Request struct {
	InputPath  string
	OutputPath string
	Format     string // "mp3" or "m4a"
	Quality    int    // VBR quality for mp3, 0 (best) to 9
	SampleRate int
	Channels   int
}

// Client defines transcoding behaviour.
type Client interface {
	Transcode(ctx context.Context, req Request) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithProbeBinary overrides the ffprobe binary name.
func WithProbeBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.probeBinary = binary
		}
	}
}

// CLI wraps ffmpeg and ffprobe.
type CLI struct {
	binary      string
	probeBinary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", probeBinary: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Transcode extracts the audio track from the input into the requested
// container, dropping any video stream.
func (c *CLI) Transcode(ctx context.Context, req Request) error {
	if req.InputPath == "" {
		return errors.New("input path required")
	}
	if req.OutputPath == "" {
		return errors.New("output path required")
	}

	codec, err := codecFor(req.Format)
	if err != nil {
		return err
	}

	args := []string{
		"-loglevel", "error",
		"-i", req.InputPath,
		"-vn",
		"-acodec", codec,
	}
	if req.Format == "mp3" {
		args = append(args, "-q:a", strconv.Itoa(req.Quality))
	} else {
		args = append(args, "-b:a", "160k")
	}
	if req.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(req.SampleRate))
	}
	if req.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(req.Channels))
	}
	args = append(args, "-y", req.OutputPath)

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg transcode failed: %w: %s", err, firstLine(stderr.String()))
	}
	return nil
}

// ProbeDuration returns the media duration in seconds.
func (c *CLI) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if path == "" {
		return 0, errors.New("input path required")
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	cmd := commandContext(ctx, c.probeBinary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, firstLine(stderr.String()))
	}

	raw := strings.TrimSpace(stdout.String())
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", raw, err)
	}
	return duration, nil
}

func codecFor(format string) (string, error) {
	switch format {
	case "mp3":
		return "libmp3lame", nil
	case "m4a":
		return "aac", nil
	default:
		return "", fmt.Errorf("unsupported audio format %q", format)
	}
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
