package main

import (
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/heyjunin/TubeBrew/pkg/errors"
	"github.com/heyjunin/TubeBrew/pkg/tasklist"
	"github.com/mattn/go-isatty"
)

const promptHelp = `Enter one URL per line, optionally followed by a comma and an output name.
Example:
  https://youtube.com/watch?v=xxxx,video1
Finish with an empty line or Ctrl-D.
`

// readTasks picks the task source: arguments first, then --file, then stdin.
// An interactive prompt is shown only when stdin is a terminal.
func readTasks(args []string, file string, stdin *os.File, prompt io.Writer) ([]tasklist.Task, error) {
	if len(args) > 0 {
		return tasklist.FromArgs(args)
	}

	switch {
	case file == "-":
		return tasklist.ParseReader(stdin)
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrap(err, errors.ValidationError, "Failed to open task list", errors.ErrInvalidInputFile)
		}
		defer f.Close()
		return tasklist.ParseReader(f)
	}

	if !isatty.IsTerminal(stdin.Fd()) && !isatty.IsCygwinTerminal(stdin.Fd()) {
		return tasklist.ParseReader(stdin)
	}

	text, err := promptTasks(prompt)
	if err != nil {
		return nil, err
	}
	return tasklist.Parse(text)
}

// promptTasks collects pasted lines until an empty line, Ctrl-D or Ctrl-C.
func promptTasks(out io.Writer) (string, error) {
	io.WriteString(out, promptHelp)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "> ",
		Stdout:       out,
		HistoryLimit: -1,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.SystemError, "Failed to start prompt", errors.ErrInvalidInputFile)
	}
	defer rl.Close()

	var lines []string
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			return "", tasklist.ErrNoInput
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, errors.SystemError, "Failed to read input", errors.ErrInvalidInputFile)
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
