package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ExtractionError wraps an ffmpeg failure with its captured stderr so the
// underlying tool error can be surfaced for diagnostics.
type ExtractionError struct {
	Stderr string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := "audio extraction failed"
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, firstLine(e.Stderr))
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Extractor converts an uploaded video container into a decodable wav track
// suitable for speech-to-text.
type Extractor struct {
	ffmpegPath string
	timeout    time.Duration
	runner     commandRunner
	stat       func(name string) (os.FileInfo, error)
}

func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{
		ffmpegPath: "ffmpeg",
		timeout:    timeout,
		runner:     &execRunner{},
		stat:       os.Stat,
	}
}

// NewExtractorForTests constructs an extractor with injectable dependencies.
func NewExtractorForTests(ffmpegPath string, runner commandRunner, stat func(string) (os.FileInfo, error)) *Extractor {
	return &Extractor{
		ffmpegPath: ffmpegPath,
		timeout:    time.Second,
		runner:     runner,
		stat:       stat,
	}
}

// Extract runs ffmpeg on the video and returns the produced audio path. The
// audio file lands next to the video with a .wav suffix; the caller owns
// cleanup of both.
func (e *Extractor) Extract(ctx context.Context, videoPath string) (string, error) {
	if strings.TrimSpace(videoPath) == "" {
		return "", &ExtractionError{Err: errors.New("video path is required")}
	}
	if _, err := e.stat(videoPath); err != nil {
		return "", &ExtractionError{Err: fmt.Errorf("cannot access video: %w", err)}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	audioPath := audioPathFor(videoPath)
	args := buildFFmpegArgs(videoPath, audioPath)

	result, err := e.runner.Run(ctx, e.ffmpegPath, args...)
	if err != nil {
		return "", &ExtractionError{Stderr: result.Stderr, Err: err}
	}
	if _, err := e.stat(audioPath); err != nil {
		return "", &ExtractionError{Stderr: result.Stderr, Err: fmt.Errorf("ffmpeg completed but output is missing: %w", err)}
	}

	return audioPath, nil
}

// buildFFmpegArgs produces mono 16k PCM WAV, the input Whisper expects.
func buildFFmpegArgs(videoPath, audioPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		audioPath,
	}
}

func audioPathFor(videoPath string) string {
	base := strings.TrimSuffix(videoPath, extOf(videoPath))
	return base + ".wav"
}

func extOf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && !strings.ContainsAny(path[i:], "/\\") {
		return path[i:]
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
