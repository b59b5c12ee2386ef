package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/heyjunin/TubeBrew/pkg/batch"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// renderSummary draws every result, separated by blank lines, inside a box.
func renderSummary(results []batch.Result) string {
	blocks := make([]string, len(results))
	var written uint64
	for i, r := range results {
		if !r.OK() {
			blocks[i] = errorStyle.Render(r.String())
			continue
		}
		blocks[i] = r.String()
		written += fileSize(r.VideoPath) + fileSize(r.AudioPath)
	}

	failed := batch.Failed(results)
	footer := fmt.Sprintf("%d succeeded, %d failed, %s written", len(results)-failed, failed, humanize.Bytes(written))

	body := titleStyle.Render("Completed") + "\n\n" + strings.Join(blocks, "\n\n") + "\n\n" + footer
	return boxStyle.Render(body)
}

func fileSize(path string) uint64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return uint64(info.Size())
}
