// Package batch runs a list of download tasks on a single background worker.
// The worker emits progress events and finishes with one result per task.
package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/heyjunin/TubeBrew/pkg/downloader"
	"github.com/heyjunin/TubeBrew/pkg/errors"
	"github.com/heyjunin/TubeBrew/pkg/logger"
	"github.com/heyjunin/TubeBrew/pkg/runlog"
	"github.com/heyjunin/TubeBrew/pkg/tasklist"
	"github.com/heyjunin/TubeBrew/pkg/transcoder"
)

// Options configures a Runner.
type Options struct {
	// OutputDir receives videos and MP3s. Defaults to "downloads".
	OutputDir string
	// ToMP3 converts every downloaded video to MP3.
	ToMP3 bool
}

// Event is one progress notification from the worker.
type Event struct {
	Percent int
	Message string
	// Index is the 1-based task the event belongs to, Total the batch size.
	Index     int
	Total     int
	Timestamp time.Time
}

// Runner processes tasks sequentially.
type Runner struct {
	options   Options
	extractor downloader.Extractor
	converter transcoder.Converter
	runLog    *runlog.Log
	logger    logger.Logger
}

// NewRunner creates a Runner. converter may be nil when ToMP3 is false; runLog may be nil.
func NewRunner(options Options, extractor downloader.Extractor, converter transcoder.Converter, runLog *runlog.Log) *Runner {
	if options.OutputDir == "" {
		options.OutputDir = downloader.DefaultOutputDir
	}
	return &Runner{
		options:   options,
		extractor: extractor,
		converter: converter,
		runLog:    runLog,
		logger:    logger.NewLogger(),
	}
}

// WithLogger replaces the diagnostic logger.
func (r *Runner) WithLogger(l logger.Logger) *Runner {
	r.logger = l
	return r
}

// Job is a batch running in the background.
type Job struct {
	id     string
	events chan Event
	done   chan []Result
}

// ID identifies the job in logs.
func (j *Job) ID() string {
	return j.id
}

// Events delivers progress in order. It is closed when the batch ends.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Done delivers the results once, after the last event, and is then closed.
func (j *Job) Done() <-chan []Result {
	return j.done
}

// Wait drains Events and returns the results.
func (j *Job) Wait() []Result {
	for range j.events {
	}
	return <-j.done
}

// Start launches the worker goroutine. The caller must consume Events (or call Wait).
func (r *Runner) Start(ctx context.Context, tasks []tasklist.Task) *Job {
	job := &Job{
		id:     uuid.New().String(),
		events: make(chan Event, 16),
		done:   make(chan []Result, 1),
	}

	go func() {
		results := r.run(ctx, job.id, tasks, func(ev Event) {
			job.events <- ev
		})
		close(job.events)
		job.done <- results
		close(job.done)
	}()

	return job
}

// Run processes tasks on the calling goroutine, passing every event to onEvent.
func (r *Runner) Run(ctx context.Context, tasks []tasklist.Task, onEvent func(Event)) []Result {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return r.run(ctx, uuid.New().String(), tasks, onEvent)
}

func (r *Runner) run(ctx context.Context, jobID string, tasks []tasklist.Task, emit func(Event)) []Result {
	total := len(tasks)
	results := make([]Result, 0, total)

	r.logger.Debug("Batch started", "batch", map[string]interface{}{
		"job":    jobID,
		"tasks":  total,
		"mp3":    r.options.ToMP3,
		"output": r.options.OutputDir,
	})
	r.runLog.Printf("Batch %s started: %d item(s), output %s", jobID, total, r.options.OutputDir)

	if err := os.MkdirAll(r.options.OutputDir, 0755); err != nil {
		dirErr := errors.Wrap(err, errors.SystemError, "Failed to create output directory", errors.ErrOutputDirectoryCreationFailed)
		for _, task := range tasks {
			results = append(results, r.fail(task, dirErr))
		}
		return results
	}

	for i, task := range tasks {
		idx := i + 1
		if ctx.Err() != nil {
			results = append(results, r.fail(task, errors.Wrap(ctx.Err(), errors.CanceledError, "Canceled", errors.ErrCanceled)))
			continue
		}

		progress := func(percent int, message string) {
			emit(Event{Percent: percent, Message: message, Index: idx, Total: total, Timestamp: time.Now()})
			r.runLog.Write(message)
		}

		result, err := r.process(ctx, task, idx, total, progress)
		if err != nil {
			results = append(results, r.fail(task, err))
			continue
		}
		results = append(results, result)
	}

	r.logger.Debug("Batch finished", "batch", map[string]interface{}{
		"job":    jobID,
		"tasks":  total,
		"failed": Failed(results),
	})
	return results
}

func (r *Runner) process(ctx context.Context, task tasklist.Task, idx, total int, progress func(int, string)) (Result, error) {
	res, err := r.extractor.Download(ctx, downloader.Request{
		URL:   task.URL,
		Name:  task.Name,
		Index: idx,
		Total: total,
	}, progress)
	if err != nil {
		return Result{}, err
	}

	result := Result{URL: task.URL, VideoPath: res.Path}
	if !r.options.ToMP3 {
		return result, nil
	}
	if r.converter == nil {
		return Result{}, errors.New(errors.ValidationError, "MP3 conversion requested without a converter", "", errors.ErrInvalidConfig)
	}

	audioPath := strings.TrimSuffix(res.Path, filepath.Ext(res.Path)) + ".mp3"
	audio, err := r.converter.ToMP3(ctx, transcoder.Job{
		Input:  res.Path,
		Output: audioPath,
		Title:  res.Title,
		Index:  idx,
		Total:  total,
	}, progress)
	if err != nil {
		return Result{}, err
	}
	result.AudioPath = audio
	return result, nil
}

func (r *Runner) fail(task tasklist.Task, err error) Result {
	text := ErrorText(err)
	r.runLog.Printf("ERROR: URL %s - %s", task.URL, text)
	r.logger.Debug("Item failed", "batch", map[string]interface{}{
		"url":   task.URL,
		"error": err.Error(),
	})
	return Result{URL: task.URL, Err: err}
}
