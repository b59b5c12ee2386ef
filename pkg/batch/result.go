package batch

import (
	"fmt"
	"strings"

	"github.com/heyjunin/TubeBrew/pkg/errors"
)

const appOnlyHint = "\n\nThis video is YouTube app-only content.\n" +
	"Supplying a cookies.txt exported from a logged-in browser session may make it downloadable."

// Result is the outcome of one task.
type Result struct {
	URL       string
	VideoPath string
	// AudioPath is set when the item was converted to MP3.
	AudioPath string
	Err       error
}

// OK reports whether the item succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// String renders the line shown to the user: the output paths on success,
// "URL: <url> error: <message>" on failure.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("URL: %s error: %s", r.URL, ErrorText(r.Err))
	}
	if r.AudioPath != "" {
		return r.VideoPath + "\n" + r.AudioPath
	}
	return r.VideoPath
}

// ErrorText is the user-facing message for err, with a cookies hint for app-only content.
func ErrorText(err error) string {
	msg := err.Error()
	if errors.IsAppOnlyContent(err) {
		msg += appOnlyHint
	}
	return msg
}

// Summary joins the result lines with blank lines between them.
func Summary(results []Result) string {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n\n")
}

// Failed counts the results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
