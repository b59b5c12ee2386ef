// Package runlog writes the per-run, human readable log file: one
// "[YYYY-MM-DD HH:MM:SS] message" line per status update plus a completion marker.
package runlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/heyjunin/TubeBrew/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultDir is where run logs go when no directory is configured.
	DefaultDir = "logs"
	// CompletionMarker is appended once the results were shown to the user.
	CompletionMarker = "\n=== Completed ===\n"

	fileLayout = "20060102_150405"
	lineLayout = "2006-01-02 15:04:05"
)

// Log is an open run log. A nil *Log discards everything.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger zerolog.Logger
}

// Create opens dir/<timestamp>.log, creating dir if needed.
func Create(dir string) (*Log, error) {
	return createAt(dir, time.Now())
}

func createAt(dir string, now time.Time) (*Log, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.SystemError, "Failed to create log directory", errors.ErrOutputDirectoryCreationFailed)
	}

	path := filepath.Join(dir, now.Format(fileLayout)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(err, errors.SystemError, "Failed to create run log", errors.ErrLogFileCreationFailed)
	}

	return &Log{
		file:   f,
		path:   path,
		logger: zerolog.New(newLineWriter(f)).With().Timestamp().Logger(),
	}, nil
}

// newLineWriter renders zerolog events as "[time] message" with no level or fields.
func newLineWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:             out,
		NoColor:         true,
		PartsOrder:      []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
		FormatTimestamp: formatTimestamp,
	}
}

func formatTimestamp(i interface{}) string {
	t := time.Now()
	switch v := i.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			t = time.Unix(n, 0)
		}
	case string:
		if parsed, err := time.Parse(zerolog.TimeFieldFormat, v); err == nil {
			t = parsed
		}
	}
	return "[" + t.Local().Format(lineLayout) + "]"
}

// Path returns the file being written, or "" for a nil Log.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Write appends one timestamped line.
func (l *Log) Write(message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	l.logger.Log().Msg(message)
}

// Printf is Write with formatting.
func (l *Log) Printf(format string, args ...interface{}) {
	l.Write(fmt.Sprintf(format, args...))
}

// Complete appends the completion marker.
func (l *Log) Complete() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	_, err := io.WriteString(l.file, CompletionMarker)
	return err
}

// Close closes the underlying file. Further writes are dropped.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
