// Package tasklist parses the "url[,name]" lines a user pastes into a batch.
package tasklist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/heyjunin/TubeBrew/pkg/errors"
)

// Task is one video to fetch. An empty Name means the video title is used for the file name.
type Task struct {
	URL  string
	Name string
}

// ErrNoInput is returned when the input has nothing to download.
var ErrNoInput = errors.New(errors.ValidationError, "Please enter at least one URL", "", errors.ErrNoInput)

// Parse reads one task per line. Blank lines are skipped and each line is split on its first comma.
func Parse(text string) ([]Task, error) {
	return ParseReader(strings.NewReader(text))
}

// ParseReader is Parse over a stream.
func ParseReader(r io.Reader) ([]Task, error) {
	var tasks []Task

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		task, ok, err := parseLine(scanner.Text(), lineNo)
		if err != nil {
			return nil, err
		}
		if ok {
			tasks = append(tasks, task)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ValidationError, "Failed to read task list", errors.ErrInvalidInputFile)
	}

	if len(tasks) == 0 {
		return nil, ErrNoInput
	}
	return tasks, nil
}

// FromArgs treats every argument as one line.
func FromArgs(args []string) ([]Task, error) {
	return Parse(strings.Join(args, "\n"))
}

func parseLine(line string, lineNo int) (Task, bool, error) {
	if strings.TrimSpace(line) == "" {
		return Task{}, false, nil
	}

	parts := strings.SplitN(line, ",", 2)
	task := Task{URL: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		task.Name = strings.TrimSpace(parts[1])
	}

	if task.URL == "" {
		return Task{}, false, errors.New(errors.ValidationError, "Missing URL", fmt.Sprintf("line %d", lineNo), errors.ErrEmptyURL)
	}
	return task, true, nil
}
