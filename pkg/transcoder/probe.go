package transcoder

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
)

// ffprobeOutput is the subset of `ffprobe -print_format json -show_format` we read.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the duration of a media file in seconds, or 0 if it cannot be read.
func (t *Transcoder) ProbeDuration(ctx context.Context, path string) float64 {
	output, err := exec.CommandContext(ctx,
		t.options.FFprobeBinary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	).Output()
	if err != nil {
		return 0
	}
	return parseProbeDuration(output)
}

func parseProbeDuration(output []byte) float64 {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0
	}
	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || duration < 0 {
		return 0
	}
	return duration
}
