package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/wader/goutubedl"
)

// source resolves a URL into downloadable media.
type source interface {
	Resolve(ctx context.Context, url string, opts resolveOptions) (media, error)
}

type resolveOptions struct {
	Binary      string
	CookiesFile string
	MergeFormat string
}

// media is a resolved video that can be streamed.
type media interface {
	Title() string
	// SizeHint estimates the number of bytes Open will produce, 0 if unknown.
	SizeHint() int64
	Open(ctx context.Context, format string) (io.ReadCloser, error)
}

// goutubedl keeps the binary path in a package variable.
var pathMu sync.Mutex

type ytdlpSource struct{}

func (ytdlpSource) Resolve(ctx context.Context, url string, opts resolveOptions) (media, error) {
	pathMu.Lock()
	goutubedl.Path = opts.Binary
	pathMu.Unlock()

	proc := &processLog{}
	result, err := goutubedl.New(ctx, url, goutubedl.Options{
		Type:              goutubedl.TypeSingle,
		Cookies:           opts.CookiesFile,
		MergeOutputFormat: opts.MergeFormat,
		StderrFn:          proc.attach,
	})
	if err != nil {
		return nil, err
	}
	return &ytdlpMedia{result: result, proc: proc}, nil
}

type ytdlpMedia struct {
	result goutubedl.Result
	proc   *processLog
}

func (m *ytdlpMedia) Title() string {
	return m.result.Info.Title
}

// SizeHint adds the largest video-only and audio-only formats, which is what the
// default selector merges. Without separate streams it uses the largest format.
func (m *ytdlpMedia) SizeHint() int64 {
	var video, audio, largest float64
	for _, f := range m.result.Info.Formats {
		hasVideo := f.VCodec != "" && f.VCodec != "none"
		hasAudio := f.ACodec != "" && f.ACodec != "none"
		switch {
		case hasVideo && !hasAudio && f.Filesize > video:
			video = f.Filesize
		case hasAudio && !hasVideo && f.Filesize > audio:
			audio = f.Filesize
		}
		if f.Filesize > largest {
			largest = f.Filesize
		}
	}
	if video > 0 && audio > 0 {
		return int64(video + audio)
	}
	return int64(largest)
}

// Open starts the download. Close on the returned stream waits for yt-dlp to
// exit and reports a failed run, which the stream itself only shows as EOF.
func (m *ytdlpMedia) Open(ctx context.Context, format string) (io.ReadCloser, error) {
	dr, err := m.result.Download(ctx, format)
	if err != nil {
		return nil, err
	}
	return &ytdlpStream{DownloadResult: dr, proc: m.proc}, nil
}

type ytdlpStream struct {
	*goutubedl.DownloadResult
	proc *processLog
}

func (s *ytdlpStream) Close() error {
	closeErr := s.DownloadResult.Close()
	if err := s.proc.err(); err != nil {
		return err
	}
	return closeErr
}

// processLog tracks the latest yt-dlp process of a media and the ERROR lines it
// printed on stderr.
type processLog struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	errors  []string
	partial []byte
}

// attach is used as goutubedl.Options.StderrFn, so it runs once per process.
func (p *processLog) attach(cmd *exec.Cmd) io.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cmd = cmd
	p.errors = nil
	p.partial = nil
	return p
}

func (p *processLog) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partial = append(p.partial, b...)
	for {
		i := bytes.IndexAny(p.partial, "\r\n")
		if i < 0 {
			break
		}
		p.record(string(p.partial[:i]))
		p.partial = p.partial[i+1:]
	}
	return len(b), nil
}

// Requires lock to be held by caller.
func (p *processLog) record(line string) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "ERROR:") {
		p.errors = append(p.errors, line)
	}
}

// err reports the failure of a process that has exited, nil while it runs or
// when it succeeded.
func (p *processLog) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.partial) > 0 {
		p.record(string(p.partial))
		p.partial = nil
	}
	if len(p.errors) > 0 {
		return fmt.Errorf("%s", p.errors[len(p.errors)-1])
	}
	if p.cmd != nil && p.cmd.ProcessState != nil && !p.cmd.ProcessState.Success() {
		return fmt.Errorf("yt-dlp exited with %s", p.cmd.ProcessState)
	}
	return nil
}
