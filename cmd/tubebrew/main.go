package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heyjunin/TubeBrew/pkg/batch"
	"github.com/heyjunin/TubeBrew/pkg/config"
	"github.com/heyjunin/TubeBrew/pkg/downloader"
	"github.com/heyjunin/TubeBrew/pkg/errors"
	"github.com/heyjunin/TubeBrew/pkg/logger"
	"github.com/heyjunin/TubeBrew/pkg/progress"
	"github.com/heyjunin/TubeBrew/pkg/runlog"
	"github.com/heyjunin/TubeBrew/pkg/transcoder"
	"github.com/spf13/cobra"
)

var version = "dev"

// progressThrottle limits how often --progress-file is rewritten.
const progressThrottle = 250 * time.Millisecond

var (
	// Input options
	taskFile    string
	cookiesFile string

	// Output options
	outputDir string
	toMP3     bool

	// Logging options
	logDir         string
	logLevel       string
	quiet          bool
	progressFile   string
	progressFormat string

	// Advanced options
	configPath   string
	ffmpegBinary string
	ytdlpBinary  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

// errorHint returns the user-facing explanation for a structured error's code.
func errorHint(err error) string {
	var se *errors.StructuredError
	if !stderrors.As(err, &se) {
		return ""
	}
	if _, ok := errors.ErrorMessages[se.Code]; !ok {
		return ""
	}
	return errors.GetErrorMessage(se.Code)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tubebrew [url[,name]...]",
		Short: "☕ TubeBrew - batch video downloader with optional MP3 conversion",
		Long: `☕ TubeBrew - downloads a list of videos as MP4 files through yt-dlp and can convert
each of them to MP3 with ffmpeg.

Each task is one "url[,name]" line. The optional name replaces the video title as the
output file name. Tasks come from the arguments, from --file, or from an interactive
prompt when neither is given.`,
		Example: `  tubebrew https://youtube.com/watch?v=xxxx,video1
  tubebrew -f list.txt --mp3 -o ~/Music
  cat list.txt | tubebrew -f -`,
		SilenceUsage: true,
		RunE:         runBatch,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to the INI config file")

	// Input flags
	rootCmd.Flags().StringVarP(&taskFile, "file", "f", "", "Read url[,name] lines from a file ('-' for stdin)")
	rootCmd.Flags().StringVar(&cookiesFile, "cookies", "", "cookies.txt passed to yt-dlp for logged-in downloads")

	// Output flags
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", downloader.DefaultOutputDir, "Directory for downloaded files")
	rootCmd.Flags().BoolVar(&toMP3, "mp3", false, "Also convert every video to MP3")

	// Logging flags
	rootCmd.Flags().StringVar(&logDir, "log-dir", runlog.DefaultDir, "Directory for per-run log files")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	rootCmd.Flags().StringVar(&progressFile, "progress-file", "", "Write the current progress to this file")
	rootCmd.Flags().StringVar(&progressFormat, "progress-format", "text", "Progress file format: 'text' or 'json'")

	// Advanced flags
	rootCmd.Flags().StringVar(&ffmpegBinary, "ffmpeg", "ffmpeg", "Path to ffmpeg binary")
	rootCmd.Flags().StringVar(&ytdlpBinary, "yt-dlp", downloader.DefaultBinary, "Path to yt-dlp binary")

	rootCmd.AddCommand(newVersionCmd(), newConfigCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "tubebrew", version)
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}
			if err := config.Save(configPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", configPath)
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configPath)
		},
	})
	return configCmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	logger.Setup(logger.Config{Level: cfg.LogLevel})

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	go func() {
		select {
		case sig := <-signalChan:
			logger.Info("Received signal, canceling batch", "main", map[string]interface{}{
				"signal": sig.String(),
			})
			cancel()
		case <-ctx.Done():
		}
	}()

	tasks, err := readTasks(args, taskFile, os.Stdin, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	dl := downloader.New(downloader.Options{
		OutputDir:   cfg.OutputDir,
		CookiesFile: cfg.CookiesFile,
		Format:      cfg.Format,
		MergeFormat: cfg.MergeFormat,
		Binary:      cfg.YTDLP,
	})
	if err := dl.CheckBinary(ctx); err != nil {
		return err
	}

	var conv transcoder.Converter
	if cfg.ToMP3 {
		tr := transcoder.New(transcoder.Options{
			FFmpegBinary:  cfg.FFmpeg,
			FFprobeBinary: cfg.FFprobe,
			AudioBitrate:  cfg.AudioBitrate,
			SampleRate:    cfg.SampleRate,
		})
		if err := tr.CheckBinary(ctx); err != nil {
			return err
		}
		conv = tr
	}

	runLog, err := runlog.Create(cfg.LogDir)
	if err != nil {
		return err
	}
	defer runLog.Close()

	runner := batch.NewRunner(batch.Options{OutputDir: cfg.OutputDir, ToMP3: cfg.ToMP3}, dl, conv, runLog)

	reporter := progress.NewReporter(
		progress.WithQuiet(quiet),
		progress.WithWriter(cmd.ErrOrStderr()),
		progress.WithProgressFile(progressFile),
		progress.WithProgressFileFormat(progressFormat),
		progress.WithThrottle(progressThrottle),
	)

	logger.Info("Starting batch", "main", map[string]interface{}{
		"tasks":   len(tasks),
		"output":  cfg.OutputDir,
		"mp3":     cfg.ToMP3,
		"run_log": runLog.Path(),
	})

	results := pump(runner.Start(ctx, tasks), reporter)

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(results))
	if err := runLog.Complete(); err != nil {
		logger.Warn("Failed to finish run log", "main", map[string]interface{}{
			"path":  runLog.Path(),
			"error": err.Error(),
		})
	}

	if failed := batch.Failed(results); failed > 0 {
		return fmt.Errorf("%d of %d item(s) failed, see %s", failed, len(results), runLog.Path())
	}
	return nil
}

// pump forwards job events to the reporter until the job finishes.
func pump(job *batch.Job, reporter progress.Reporter) []batch.Result {
	reporter.Start(100)
	for ev := range job.Events() {
		reporter.Update(ev.Percent, ev.Message)
	}
	reporter.Complete()
	return <-job.Done()
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("mp3") {
		cfg.ToMP3 = toMP3
	}
	if flags.Changed("cookies") {
		cfg.CookiesFile = cookiesFile
	}
	if flags.Changed("log-dir") {
		cfg.LogDir = logDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("ffmpeg") {
		cfg.FFmpeg = ffmpegBinary
	}
	if flags.Changed("yt-dlp") {
		cfg.YTDLP = ytdlpBinary
	}
}
