// Package config loads and saves the TubeBrew INI settings file.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/heyjunin/TubeBrew/pkg/downloader"
	"github.com/heyjunin/TubeBrew/pkg/errors"
	"github.com/heyjunin/TubeBrew/pkg/runlog"
	"gopkg.in/ini.v1"
)

// Config holds every setting that can come from the file or the command line.
type Config struct {
	// [download]
	OutputDir   string
	CookiesFile string
	Format      string
	MergeFormat string
	YTDLP       string

	// [transcode]
	ToMP3        bool
	FFmpeg       string
	FFprobe      string
	AudioBitrate string
	SampleRate   int

	// [log]
	LogDir   string
	LogLevel string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		OutputDir:    downloader.DefaultOutputDir,
		Format:       downloader.DefaultFormat,
		MergeFormat:  downloader.DefaultMergeFormat,
		YTDLP:        downloader.DefaultBinary,
		FFmpeg:       "ffmpeg",
		FFprobe:      "ffprobe",
		AudioBitrate: "192k",
		SampleRate:   44100,
		LogDir:       runlog.DefaultDir,
		LogLevel:     "info",
	}
}

// DefaultPath returns <user config dir>/tubebrew/config.ini.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "tubebrew", "config.ini")
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ValidationError, "Failed to parse config file", errors.ErrInvalidConfig)
	}

	download := file.Section("download")
	cfg.OutputDir = download.Key("output_dir").MustString(cfg.OutputDir)
	cfg.CookiesFile = download.Key("cookies_file").MustString(cfg.CookiesFile)
	cfg.Format = download.Key("format").MustString(cfg.Format)
	cfg.MergeFormat = download.Key("merge_format").MustString(cfg.MergeFormat)
	cfg.YTDLP = download.Key("yt_dlp").MustString(cfg.YTDLP)

	transcode := file.Section("transcode")
	cfg.ToMP3 = transcode.Key("mp3").MustBool(cfg.ToMP3)
	cfg.FFmpeg = transcode.Key("ffmpeg").MustString(cfg.FFmpeg)
	cfg.FFprobe = transcode.Key("ffprobe").MustString(cfg.FFprobe)
	cfg.AudioBitrate = transcode.Key("audio_bitrate").MustString(cfg.AudioBitrate)
	cfg.SampleRate = transcode.Key("sample_rate").MustInt(cfg.SampleRate)

	logSection := file.Section("log")
	cfg.LogDir = logSection.Key("dir").MustString(cfg.LogDir)
	cfg.LogLevel = logSection.Key("level").MustString(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New(errors.ValidationError, "Invalid sample rate", "sample_rate must be positive", errors.ErrInvalidConfig)
	}
	if c.MergeFormat == "" {
		return errors.New(errors.ValidationError, "Invalid merge format", "merge_format must not be empty", errors.ErrInvalidConfig)
	}
	return nil
}

// Save writes cfg to path as INI, creating parent directories.
func Save(path string, cfg *Config) error {
	file := ini.Empty()

	download := file.Section("download")
	download.Key("output_dir").SetValue(cfg.OutputDir)
	download.Key("cookies_file").SetValue(cfg.CookiesFile)
	download.Key("format").SetValue(cfg.Format)
	download.Key("merge_format").SetValue(cfg.MergeFormat)
	download.Key("yt_dlp").SetValue(cfg.YTDLP)

	transcode := file.Section("transcode")
	transcode.Key("mp3").SetValue(strconv.FormatBool(cfg.ToMP3))
	transcode.Key("ffmpeg").SetValue(cfg.FFmpeg)
	transcode.Key("ffprobe").SetValue(cfg.FFprobe)
	transcode.Key("audio_bitrate").SetValue(cfg.AudioBitrate)
	transcode.Key("sample_rate").SetValue(strconv.Itoa(cfg.SampleRate))

	logSection := file.Section("log")
	logSection.Key("dir").SetValue(cfg.LogDir)
	logSection.Key("level").SetValue(cfg.LogLevel)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, errors.SystemError, "Failed to create config directory", errors.ErrConfigWriteFailed)
	}
	if err := file.SaveTo(path); err != nil {
		return errors.Wrap(err, errors.SystemError, "Failed to write config file", errors.ErrConfigWriteFailed)
	}
	return nil
}
