package downloader

import (
	"time"
)

const (
	// DefaultFormat picks the best video and audio streams, falling back to the best combined one.
	DefaultFormat = "bestvideo+bestaudio/best"
	// DefaultMergeFormat is the container the extractor merges separate streams into.
	DefaultMergeFormat = "mp4"
	// DefaultBinary is the extractor executable looked up on PATH.
	DefaultBinary = "yt-dlp"
	// DefaultOutputDir is used when no output directory is configured.
	DefaultOutputDir = "downloads"
)

// Options represents configuration options for the Downloader.
type Options struct {
	// OutputDir receives the downloaded files. It is created if missing.
	OutputDir string
	// CookiesFile is a Netscape cookies.txt passed to the extractor when it exists.
	CookiesFile string
	// Format is the extractor format selector.
	Format string
	// MergeFormat is the container used when video and audio are merged.
	MergeFormat string
	// Binary is the yt-dlp executable.
	Binary string
	// Timeout bounds a single download. Zero means 30 minutes.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.MergeFormat == "" {
		o.MergeFormat = DefaultMergeFormat
	}
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Minute
	}
	return o
}
