package transcoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/heyjunin/TubeBrew/pkg/errors"
	"github.com/heyjunin/TubeBrew/pkg/logger"
)

// ProgressFunc receives a percentage (0-100) and a status message.
type ProgressFunc func(percent int, message string)

// Job describes one conversion.
type Job struct {
	Input  string
	Output string
	// Title names the item in status messages.
	Title string
	// Index and Total locate the item in its batch.
	Index int
	Total int
}

// Converter turns a downloaded video into an audio file.
type Converter interface {
	ToMP3(ctx context.Context, job Job, onProgress ProgressFunc) (string, error)
}

// Transcoder runs ffmpeg.
type Transcoder struct {
	options Options
	logger  logger.Logger
}

// New creates a new Transcoder with the default logger.
func New(options Options) *Transcoder {
	return NewWithDeps(options, logger.NewLogger())
}

// NewWithDeps creates a new Transcoder with a custom logger.
func NewWithDeps(options Options, log logger.Logger) *Transcoder {
	return &Transcoder{
		options: options.withDefaults(),
		logger:  log,
	}
}

// CheckBinary verifies that ffmpeg is available.
func (t *Transcoder) CheckBinary(ctx context.Context) error {
	if err := exec.CommandContext(ctx, t.options.FFmpegBinary, "-version").Run(); err != nil {
		return errors.Wrap(err, errors.SystemError, "FFmpeg is not available", errors.ErrFFmpegUnavailable)
	}
	return nil
}

// Args returns the ffmpeg arguments for converting input to an MP3 at output.
func (t *Transcoder) Args(input, output string) []string {
	args := []string{
		"-i", input,
		"-vn",
		"-ab", t.options.AudioBitrate,
		"-ar", strconv.Itoa(t.options.SampleRate),
	}
	args = append(args, t.options.ExtraParams...)
	return append(args, "-y", output)
}

// ToMP3 converts job.Input to job.Output. Every ffmpeg line carrying "time=" produces a
// "Converting <title> to MP3 (i/n)" update. The percentage is derived from the input duration
// when ffprobe can read it and is 50 otherwise.
func (t *Transcoder) ToMP3(ctx context.Context, job Job, onProgress ProgressFunc) (string, error) {
	if onProgress == nil {
		onProgress = func(int, string) {}
	}

	if err := os.MkdirAll(filepath.Dir(job.Output), 0755); err != nil {
		return "", errors.Wrap(err, errors.SystemError, "Failed to create output directory", errors.ErrOutputDirectoryCreationFailed)
	}

	args := t.Args(job.Input, job.Output)
	t.logger.Debug("Executing FFmpeg command", "ffmpeg", map[string]interface{}{
		"command": t.options.FFmpegBinary + " " + strings.Join(args, " "),
	})

	duration := t.ProbeDuration(ctx, job.Input)
	message := fmt.Sprintf("Converting %s to MP3 (%d/%d)", job.Title, job.Index, job.Total)

	cmd := exec.CommandContext(ctx, t.options.FFmpegBinary, args...)

	// stdout and stderr share one pipe so progress lines are seen whichever stream ffmpeg uses.
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", errors.Wrap(err, errors.SystemError, "Failed to create output pipe", errors.ErrFFmpegStart)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return "", errors.Wrap(err, errors.TranscodingError, "Failed to start FFmpeg", errors.ErrFFmpegStart)
	}
	pw.Close()

	lastLine := scanOutput(pr, func(line string) {
		t.logger.Debug(line, "ffmpeg", nil)
		if !strings.Contains(line, "time=") {
			return
		}
		onProgress(conversionPercent(line, duration), message)
	})
	pr.Close()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			os.Remove(job.Output)
			return "", errors.Wrap(ctx.Err(), errors.CanceledError, "Conversion canceled", errors.ErrCanceled)
		}
		details := err.Error()
		if lastLine != "" {
			details = lastLine
		}
		return "", errors.New(errors.TranscodingError, "FFmpeg command failed", details, errors.ErrFFmpegFailed)
	}

	onProgress(100, fmt.Sprintf("Conversion finished: %s", job.Title))

	t.logger.Debug("Conversion completed", "transcoder", map[string]interface{}{
		"input":  job.Input,
		"output": job.Output,
	})
	return job.Output, nil
}

// scanOutput calls fn for each line (split on \n or \r) and returns the last non-empty line.
func scanOutput(r io.Reader, fn func(string)) string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLinesOrCR)

	last := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		last = line
		fn(line)
	}
	return last
}

// scanLinesOrCR is bufio.ScanLines that also breaks on a bare carriage return,
// which ffmpeg uses to redraw its status line.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var timeRegex = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

// conversionPercent maps an ffmpeg status line to a percentage of duration.
// Without a known duration or a parsable time it returns 50.
func conversionPercent(line string, duration float64) int {
	if duration <= 0 {
		return 50
	}
	matches := timeRegex.FindStringSubmatch(line)
	if len(matches) < 4 {
		return 50
	}
	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.ParseFloat(matches[3], 64)

	current := float64(hours*3600+minutes*60) + seconds
	percent := int(current / duration * 100)
	if percent < 0 {
		return 0
	}
	if percent > 99 {
		return 99
	}
	return percent
}
