package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/heyjunin/TubeBrew/pkg/errors"
	"github.com/heyjunin/TubeBrew/pkg/logger"
)

// ProgressFunc receives a percentage (0-100) and a status message.
type ProgressFunc func(percent int, message string)

// Request describes one item of a batch.
type Request struct {
	URL string
	// Name overrides the output file name. Empty means the video title.
	Name string
	// Index is the 1-based position in the batch and Total its size. Both only feed status messages.
	Index int
	Total int
}

func (r Request) label() string {
	if r.Name == "" {
		return "video"
	}
	return r.Name
}

// Result is a finished download.
type Result struct {
	// Title is the name used for the output files.
	Title string
	Path  string
	Bytes int64
}

// Extractor downloads a single video.
type Extractor interface {
	Download(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error)
}

// Downloader fetches videos through yt-dlp and writes them into OutputDir.
type Downloader struct {
	options Options
	src     source
	log     logger.Logger
}

// New creates a Downloader backed by yt-dlp.
func New(options Options) *Downloader {
	return newWithSource(options, ytdlpSource{}, logger.NewLogger())
}

func newWithSource(options Options, src source, log logger.Logger) *Downloader {
	return &Downloader{
		options: options.withDefaults(),
		src:     src,
		log:     log,
	}
}

// Options returns the effective options.
func (d *Downloader) Options() Options {
	return d.options
}

// CheckBinary verifies that the extractor executable runs.
func (d *Downloader) CheckBinary(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, d.options.Binary, "--version").Output()
	if err != nil {
		return errors.Wrap(err, errors.SystemError, "yt-dlp is not available", errors.ErrExtractorUnavailable)
	}
	d.log.Debug("Found yt-dlp", "downloader", map[string]interface{}{
		"binary":  d.options.Binary,
		"version": strings.TrimSpace(string(out)),
	})
	return nil
}

// Download resolves req.URL, then streams the selected format to OutputDir/<title>.<merge format>.
func (d *Downloader) Download(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	if onProgress == nil {
		onProgress = func(int, string) {}
	}

	ctx, cancel := context.WithTimeout(ctx, d.options.Timeout)
	defer cancel()

	if err := os.MkdirAll(d.options.OutputDir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.SystemError, "Failed to create output directory", errors.ErrOutputDirectoryCreationFailed)
	}

	cookies := d.cookiesFile()

	d.log.Debug("Resolving video", "downloader", map[string]interface{}{
		"url":     req.URL,
		"index":   req.Index,
		"total":   req.Total,
		"cookies": cookies != "",
	})

	m, err := d.src.Resolve(ctx, req.URL, resolveOptions{
		Binary:      d.options.Binary,
		CookiesFile: cookies,
		MergeFormat: d.options.MergeFormat,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		return nil, extractionError(err)
	}

	title := req.Name
	if title == "" {
		title = m.Title()
	}
	if title == "" {
		title = "output"
	}
	outputPath := filepath.Join(d.options.OutputDir, SanitizeFileName(title)+"."+d.options.MergeFormat)

	file, err := os.Create(outputPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.SystemError, "Failed to create output file", errors.ErrOutputFileCreationFailed)
	}

	stream, err := m.Open(ctx, d.options.Format)
	if err != nil {
		file.Close()
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		if errors.IsAppOnlyContent(err) {
			return nil, extractionError(err)
		}
		return nil, errors.Wrap(err, errors.DownloadError, "Failed to start download", errors.ErrDownloadStart)
	}

	status := fmt.Sprintf("(%d/%d)", req.Index, req.Total)
	size := m.SizeHint()
	reader := &progressReader{
		reader: stream,
		size:   size,
		onPercent: func(percent int) {
			onProgress(percent, fmt.Sprintf("Downloading %s %s", req.label(), status))
		},
	}

	written, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil && ctx.Err() == nil {
		// yt-dlp blocks on a full pipe once nothing reads it, so stop it before waiting.
		cancel()
		stream.Close()
		os.Remove(outputPath)
		return nil, errors.Wrap(err, errors.DownloadError, "Failed to write file", errors.ErrDownloadStream)
	}

	// Close waits for yt-dlp. A killed or failed process still ends the stream with EOF.
	streamErr := stream.Close()
	if ctx.Err() != nil {
		os.Remove(outputPath)
		return nil, contextError(ctx)
	}
	if streamErr != nil {
		os.Remove(outputPath)
		if errors.IsAppOnlyContent(streamErr) {
			return nil, extractionError(streamErr)
		}
		return nil, errors.Wrap(streamErr, errors.DownloadError, "Download failed", errors.ErrDownloadStream)
	}
	if written == 0 {
		os.Remove(outputPath)
		return nil, errors.New(errors.DownloadError, "Extractor produced no data", req.URL, errors.ErrDownloadStream)
	}
	if size > 0 && written < size/truncationRatio {
		os.Remove(outputPath)
		return nil, errors.New(errors.DownloadError, "Download truncated",
			fmt.Sprintf("got %s of about %s", humanize.Bytes(uint64(written)), humanize.Bytes(uint64(size))), errors.ErrDownloadTruncated)
	}

	onProgress(100, fmt.Sprintf("Download finished: %s %s", req.label(), status))

	d.log.Debug("Download completed", "downloader", map[string]interface{}{
		"path": outputPath,
		"size": humanize.Bytes(uint64(written)),
	})

	return &Result{Title: title, Path: outputPath, Bytes: written}, nil
}

// cookiesFile returns the configured cookies file if it exists on disk.
func (d *Downloader) cookiesFile() string {
	path := d.options.CookiesFile
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		d.log.Warn("Cookies file not found, continuing without it", "downloader", map[string]interface{}{
			"path": path,
		})
		return ""
	}
	return path
}

// truncationRatio bounds how far below the size hint a finished download may
// end. Hints come from format metadata and overshoot the merged file, so only
// gross shortfalls count.
const truncationRatio = 2

// contextError reports why ctx ended: a timeout fails the item, a cancel marks it canceled.
func contextError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(ctx.Err(), errors.DownloadError, "Download timed out", errors.ErrDownloadTimeout)
	}
	return errors.Wrap(ctx.Err(), errors.CanceledError, "Download canceled", errors.ErrCanceled)
}

func extractionError(err error) error {
	if errors.IsAppOnlyContent(err) {
		return errors.Wrap(err, errors.ExtractionError, "App-only content", errors.ErrAppOnlyContent)
	}
	return errors.Wrap(err, errors.ExtractionError, "Failed to retrieve video", errors.ErrMetadataFailed)
}

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	repeatedSpaces   = regexp.MustCompile(`\s+`)
)

// SanitizeFileName strips characters that are invalid in file names on common filesystems.
func SanitizeFileName(name string) string {
	sanitized := invalidFileChars.ReplaceAllString(name, "")
	sanitized = repeatedSpaces.ReplaceAllString(sanitized, " ")
	sanitized = strings.Trim(sanitized, ". ")

	if len(sanitized) > 200 {
		sanitized = strings.ToValidUTF8(sanitized[:200], "")
	}
	if sanitized == "" {
		sanitized = "output"
	}
	return sanitized
}

// progressReader wraps the extractor stream and reports whole-percent changes.
type progressReader struct {
	reader    io.Reader
	size      int64
	read      int64
	last      int
	onPercent func(int)
}

// Read implements io.Reader.
func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		percent := pr.percent()
		if percent != pr.last || pr.read == int64(n) {
			pr.last = percent
			pr.onPercent(percent)
		}
	}
	return n, err
}

// percent is read/max(size,1)*100, kept below 100 until the stream ends.
// An unknown size reports 0.
func (pr *progressReader) percent() int {
	if pr.size <= 0 {
		return 0
	}
	p := int(pr.read * 100 / pr.size)
	if p > 99 {
		p = 99
	}
	return p
}
