package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/heyjunin/TubeBrew/pkg/logger"
	"github.com/schollz/progressbar/v3"
)

// ProgressEvent represents a single progress update event, often serialized to JSON.
type ProgressEvent struct {
	// Status indicates the overall status ("initialized", "started", "processing", "completed").
	Status string `json:"status"`
	// Percent is the completion of the current item, 0 to 100.
	Percent int `json:"percent"`
	// Message is the status text shown next to the bar, e.g. "Downloading video1 (1/3)".
	Message string `json:"message"`
	// Timestamp marks when the event occurred in RFC3339 format.
	Timestamp string `json:"timestamp"`
}

// Label renders the event the way the bar displays it: "<message> - <percent>%".
func (e ProgressEvent) Label() string {
	return fmt.Sprintf("%s - %d%%", e.Message, e.Percent)
}

// Reporter receives percentage progress and status text from long-running work.
type Reporter interface {
	// Start resets the reporter for a new run of total units (normally 100).
	Start(total int64)
	// Update sets the current percentage and status message.
	Update(percent int, message string)
	// Complete marks the run as finished.
	Complete()
	// Updates returns a channel that emits ProgressEvent updates.
	// The channel is closed by Complete.
	Updates() <-chan ProgressEvent
	// JSON returns the latest ProgressEvent as a JSON string.
	JSON() (string, error)
}

type reporterOptions struct {
	throttle           time.Duration
	progressFilePath   string
	progressFileFormat string
	writer             io.Writer
	quiet              bool
}

// ReporterOption is a function type used to configure a DefaultReporter.
type ReporterOption func(*reporterOptions)

// WithThrottle sets the minimum interval between Update calls that reach the
// Updates channel and the progress file. The bar itself is always redrawn.
func WithThrottle(duration time.Duration) ReporterOption {
	return func(opts *reporterOptions) {
		opts.throttle = duration
	}
}

// WithProgressFile sets a file that is overwritten with the current progress on every update.
// If the path is empty (default), no file will be written.
func WithProgressFile(path string) ReporterOption {
	return func(opts *reporterOptions) {
		opts.progressFilePath = path
	}
}

// WithProgressFileFormat sets the format for the progress file ("text" or "json").
// "text" writes only the percentage.
func WithProgressFileFormat(format string) ReporterOption {
	return func(opts *reporterOptions) {
		if format == "json" || format == "text" {
			opts.progressFileFormat = format
		} else {
			logger.Warn("Invalid progress file format specified, defaulting to 'text'", "progress", map[string]interface{}{
				"format": format,
			})
			opts.progressFileFormat = "text"
		}
	}
}

// WithWriter sets where the console bar is drawn. Defaults to os.Stderr.
func WithWriter(w io.Writer) ReporterOption {
	return func(opts *reporterOptions) {
		opts.writer = w
	}
}

// WithQuiet disables the console bar. Events and the progress file still work.
func WithQuiet(quiet bool) ReporterOption {
	return func(opts *reporterOptions) {
		opts.quiet = quiet
	}
}

// DefaultReporter draws a github.com/schollz/progressbar/v3 bar and
// sends ProgressEvent updates to a channel.
type DefaultReporter struct {
	Total      int64
	Current    int64
	Started    time.Time
	Bar        *progressbar.ProgressBar
	opts       reporterOptions
	updatesCh  chan ProgressEvent
	lastUpdate time.Time
	Event      ProgressEvent
	closed     bool
	mu         sync.Mutex
}

// NewReporter creates a new DefaultReporter.
func NewReporter(opts ...ReporterOption) *DefaultReporter {
	options := reporterOptions{
		progressFileFormat: "text",
		writer:             os.Stderr,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.quiet {
		options.writer = io.Discard
	}

	return &DefaultReporter{
		opts: options,
		Event: ProgressEvent{
			Status:    "initialized",
			Timestamp: time.Now().Format(time.RFC3339),
		},
		lastUpdate: time.Now(),
		updatesCh:  make(chan ProgressEvent, 64),
	}
}

// Start initializes the progress tracking and draws a fresh bar.
func (r *DefaultReporter) Start(total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if total <= 0 {
		total = 100
	}
	r.Total = total
	r.Current = 0
	r.Started = time.Now()
	r.Event.Status = "started"
	r.Event.Percent = 0
	r.Event.Timestamp = time.Now().Format(time.RFC3339)

	r.Bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("Processing..."),
		progressbar.OptionSetWriter(r.opts.writer),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	r.sendUpdateInternal()
	r.writeProgressFileInternal()
}

// Update sets the current percentage and status text.
// Values outside 0..100 are clamped. Calls before Start or after Complete are ignored.
func (r *DefaultReporter) Update(percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Bar == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	r.Current = int64(percent) * r.Total / 100

	r.Event.Percent = percent
	r.Event.Message = message
	r.Event.Status = "processing"
	r.Event.Timestamp = time.Now().Format(time.RFC3339)

	r.Bar.Describe(r.Event.Label())
	_ = r.Bar.Set64(r.Current)

	now := time.Now()
	if now.Sub(r.lastUpdate) < r.opts.throttle {
		return
	}
	r.lastUpdate = now

	r.sendUpdateInternal()
	r.writeProgressFileInternal()
}

// Complete finishes the bar, sends a final event and closes the Updates channel.
func (r *DefaultReporter) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Bar == nil || r.closed {
		return
	}

	_ = r.Bar.Finish()
	r.Current = r.Total
	r.Event.Percent = 100
	r.Event.Status = "completed"
	r.Event.Timestamp = time.Now().Format(time.RFC3339)

	r.sendUpdateInternal()
	r.writeProgressFileInternal()
	r.Bar = nil
	r.closed = true
	close(r.updatesCh)
}

// Updates returns the channel for receiving ProgressEvent updates.
func (r *DefaultReporter) Updates() <-chan ProgressEvent {
	return r.updatesCh
}

// JSON returns the current progress event as a JSON string.
func (r *DefaultReporter) JSON() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.Marshal(r.Event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal progress event: %w", err)
	}
	return string(data), nil
}

// Requires lock to be held by caller.
func (r *DefaultReporter) sendUpdateInternal() {
	if r.closed {
		return
	}
	select {
	case r.updatesCh <- r.Event:
	default:
	}
}

// Requires lock to be held by caller.
func (r *DefaultReporter) writeProgressFileInternal() {
	if r.opts.progressFilePath == "" {
		return
	}

	var content []byte
	var err error

	switch r.opts.progressFileFormat {
	case "json":
		content, err = json.MarshalIndent(r.Event, "", "  ")
		if err != nil {
			logger.Warn("Failed to marshal progress event to JSON", "progress", map[string]interface{}{
				"path":  r.opts.progressFilePath,
				"error": err.Error(),
			})
			return
		}
	default:
		content = []byte(fmt.Sprintf("%d", r.Event.Percent))
	}

	if err = os.WriteFile(r.opts.progressFilePath, content, 0644); err != nil {
		logger.Warn("Failed to write progress file", "progress", map[string]interface{}{
			"path":   r.opts.progressFilePath,
			"format": r.opts.progressFileFormat,
			"error":  err.Error(),
		})
	}
}

// Nop is a Reporter that does nothing. Its Updates channel is always closed.
type Nop struct{}

// Start does nothing.
func (Nop) Start(int64) {}

// Update does nothing.
func (Nop) Update(int, string) {}

// Complete does nothing.
func (Nop) Complete() {}

// JSON returns an empty object.
func (Nop) JSON() (string, error) {
	return "{}", nil
}

// Updates returns a closed channel.
func (Nop) Updates() <-chan ProgressEvent {
	ch := make(chan ProgressEvent)
	close(ch)
	return ch
}
