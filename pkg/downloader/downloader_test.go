package downloader

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heyjunin/TubeBrew/pkg/errors"
	"github.com/heyjunin/TubeBrew/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMedia serves fixed content.
type fakeMedia struct {
	title    string
	content  []byte
	size     int64
	openErr  error
	closeErr error
	format   string
}

func (m *fakeMedia) Title() string   { return m.title }
func (m *fakeMedia) SizeHint() int64 { return m.size }
func (m *fakeMedia) Open(_ context.Context, format string) (io.ReadCloser, error) {
	m.format = format
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &fakeStream{Reader: bytes.NewReader(m.content), closeErr: m.closeErr}, nil
}

// fakeStream reports closeErr on Close, the way a failed yt-dlp run does.
type fakeStream struct {
	io.Reader
	closeErr error
}

func (s *fakeStream) Close() error { return s.closeErr }

// fakeSource records what it was asked to resolve.
type fakeSource struct {
	media      *fakeMedia
	resolveErr error
	// blockUntilDone makes Resolve wait for ctx like a running yt-dlp would.
	blockUntilDone bool
	gotURL         string
	gotOpts        resolveOptions
}

func (s *fakeSource) Resolve(ctx context.Context, url string, opts resolveOptions) (media, error) {
	s.gotURL = url
	s.gotOpts = opts
	if s.blockUntilDone {
		<-ctx.Done()
		return nil, stderrors.New("signal: killed")
	}
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return s.media, nil
}

type progressCall struct {
	percent int
	message string
}

func collect(calls *[]progressCall) ProgressFunc {
	return func(percent int, message string) {
		*calls = append(*calls, progressCall{percent, message})
	}
}

func TestNewDefaults(t *testing.T) {
	d := New(Options{})
	opts := d.Options()
	assert.Equal(t, DefaultOutputDir, opts.OutputDir)
	assert.Equal(t, DefaultFormat, opts.Format)
	assert.Equal(t, DefaultMergeFormat, opts.MergeFormat)
	assert.Equal(t, DefaultBinary, opts.Binary)
	assert.Equal(t, 30*time.Minute, opts.Timeout)
}

func TestDownloadUsesName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	src := &fakeSource{media: &fakeMedia{title: "Some Title", content: []byte("0123456789"), size: 10}}
	d := newWithSource(Options{OutputDir: dir}, src, logger.Nop())

	var calls []progressCall
	res, err := d.Download(context.Background(), Request{URL: "https://v.example/1", Name: "video1", Index: 1, Total: 2}, collect(&calls))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "video1.mp4"), res.Path)
	assert.Equal(t, "video1", res.Title)
	assert.Equal(t, int64(10), res.Bytes)
	assert.Equal(t, "https://v.example/1", src.gotURL)
	assert.Equal(t, DefaultFormat, src.media.format)
	assert.Equal(t, "mp4", src.gotOpts.MergeFormat)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	require.NotEmpty(t, calls)
	assert.Equal(t, "Downloading video1 (1/2)", calls[0].message)
	last := calls[len(calls)-1]
	assert.Equal(t, progressCall{100, "Download finished: video1 (1/2)"}, last)
	for _, c := range calls[:len(calls)-1] {
		assert.True(t, c.percent >= 0 && c.percent < 100, "percent %d", c.percent)
	}
}

func TestDownloadFallsBackToTitle(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{media: &fakeMedia{title: `My: "Clip"/Part 1`, content: []byte("x")}}
	d := newWithSource(Options{OutputDir: dir}, src, logger.Nop())

	var calls []progressCall
	res, err := d.Download(context.Background(), Request{URL: "u", Index: 3, Total: 3}, collect(&calls))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "My ClipPart 1.mp4"), res.Path)
	assert.Equal(t, "Download finished: video (3/3)", calls[len(calls)-1].message)
	// Unknown size keeps the bar at 0 until the end.
	assert.Equal(t, 0, calls[0].percent)
}

func TestDownloadNoTitle(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{media: &fakeMedia{content: []byte("x")}}
	d := newWithSource(Options{OutputDir: dir}, src, logger.Nop())

	res, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "output.mp4"), res.Path)
}

func TestDownloadCookies(t *testing.T) {
	dir := t.TempDir()
	cookies := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File\n"), 0644))

	src := &fakeSource{media: &fakeMedia{title: "t", content: []byte("x")}}
	d := newWithSource(Options{OutputDir: dir, CookiesFile: cookies}, src, logger.Nop())
	_, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, cookies, src.gotOpts.CookiesFile)

	missing := newWithSource(Options{OutputDir: dir, CookiesFile: filepath.Join(dir, "nope.txt")}, src, logger.Nop())
	_, err = missing.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", src.gotOpts.CookiesFile)
}

func TestDownloadResolveErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"generic", stderrors.New("ERROR: Unsupported URL"), errors.ErrMetadataFailed},
		{"app only", stderrors.New("ERROR: [youtube] x: " + errors.AppOnlyMarker), errors.ErrAppOnlyContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newWithSource(Options{OutputDir: t.TempDir()}, &fakeSource{resolveErr: tt.err}, logger.Nop())
			_, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
			require.Error(t, err)

			var se *errors.StructuredError
			require.True(t, stderrors.As(err, &se))
			assert.Equal(t, errors.ExtractionError, se.Type)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDownloadEmptyStreamRemovesFile(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{media: &fakeMedia{title: "empty"}}
	d := newWithSource(Options{OutputDir: dir}, src, logger.Nop())

	_, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.DownloadError))

	_, statErr := os.Stat(filepath.Join(dir, "empty.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadOpenError(t *testing.T) {
	src := &fakeSource{media: &fakeMedia{title: "t", openErr: stderrors.New("requested format is not available")}}
	d := newWithSource(Options{OutputDir: t.TempDir()}, src, logger.Nop())

	_, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested format is not available")
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"video1":              "video1",
		`a/b\c:d*e?f"g<h>i|j`: "abcdefghij",
		"  spaced   out  ":    "spaced out",
		"...dots...":          "dots",
		"":                    "output",
		"///":                 "output",
		"日本語のタイトル":            "日本語のタイトル",
		"tab\tand\nnewline":   "tabandnewline",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFileName(in), "input %q", in)
	}

	long := strings.Repeat("a", 300)
	assert.Len(t, SanitizeFileName(long), 200)
}

func TestProgressReaderPercent(t *testing.T) {
	var got []int
	pr := &progressReader{
		reader:    strings.NewReader(strings.Repeat("x", 100)),
		size:      50,
		onPercent: func(p int) { got = append(got, p) },
	}
	buf := make([]byte, 25)
	for {
		if _, err := pr.Read(buf); err != nil {
			break
		}
	}
	// Oversized streams stay below 100 until the caller reports completion.
	assert.Equal(t, []int{50, 99}, got)
}

// writeFakeYTDLP creates a shell script standing in for yt-dlp. Metadata requests
// print a single-format info document of the given size; downloads run body.
func writeFakeYTDLP(t *testing.T, size int, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp script requires a POSIX shell")
	}
	script := fmt.Sprintf(`#!/bin/sh
mode=info
for arg; do
  case "$arg" in
    --load-info*) mode=download ;;
  esac
done
if [ "$mode" = info ]; then
  cat >/dev/null
  printf '{"id":"abc123","title":"Clip","extractor":"generic","formats":[{"format_id":"18","ext":"mp4","vcodec":"avc1","acodec":"mp4a","filesize":%d}]}\n'
  exit 0
fi
%s
`, size, body)
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestDownloadExtractorErrorMidStream(t *testing.T) {
	bin := writeFakeYTDLP(t, 4096, `head -c 4096 /dev/zero
echo "ERROR: fragment 3 not found" >&2
exit 1`)
	dir := t.TempDir()
	d := New(Options{OutputDir: dir, Binary: bin})

	var calls []progressCall
	res, err := d.Download(context.Background(), Request{URL: "https://v.example/clip", Index: 1, Total: 1}, collect(&calls))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsType(err, errors.DownloadError))
	assert.Contains(t, err.Error(), "fragment 3 not found")

	_, statErr := os.Stat(filepath.Join(dir, "Clip.mp4"))
	assert.True(t, os.IsNotExist(statErr), "partial file must be removed")
	for _, c := range calls {
		assert.NotContains(t, c.message, "Download finished")
	}
}

func TestDownloadExtractorExitStatus(t *testing.T) {
	bin := writeFakeYTDLP(t, 4096, `head -c 4096 /dev/zero
exit 2`)
	dir := t.TempDir()
	d := New(Options{OutputDir: dir, Binary: bin})

	_, err := d.Download(context.Background(), Request{URL: "https://v.example/clip", Index: 1, Total: 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.DownloadError))
	assert.Contains(t, err.Error(), "exit status 2")

	_, statErr := os.Stat(filepath.Join(dir, "Clip.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadWithFakeExtractor(t *testing.T) {
	bin := writeFakeYTDLP(t, 4096, `head -c 4096 /dev/zero`)
	dir := t.TempDir()
	d := New(Options{OutputDir: dir, Binary: bin})

	res, err := d.Download(context.Background(), Request{URL: "https://v.example/clip", Index: 1, Total: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Clip.mp4"), res.Path)
	assert.Equal(t, int64(4096), res.Bytes)
}

func TestDownloadCanceledMidStream(t *testing.T) {
	bin := writeFakeYTDLP(t, 8192, `head -c 4096 /dev/zero
exec sleep 5`)
	dir := t.TempDir()
	d := New(Options{OutputDir: dir, Binary: bin})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	start := time.Now()
	_, err := d.Download(ctx, Request{URL: "https://v.example/clip", Index: 1, Total: 1}, func(percent int, _ string) {
		if percent > 0 {
			once.Do(cancel)
		}
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.True(t, errors.IsType(err, errors.CanceledError))
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(dir, "Clip.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadCanceledWhileResolving(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	d := newWithSource(Options{OutputDir: t.TempDir()}, &fakeSource{blockUntilDone: true}, logger.Nop())
	_, err := d.Download(ctx, Request{URL: "u", Index: 1, Total: 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.CanceledError))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadTimeout(t *testing.T) {
	d := newWithSource(Options{OutputDir: t.TempDir(), Timeout: 20 * time.Millisecond}, &fakeSource{blockUntilDone: true}, logger.Nop())
	_, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.DownloadError))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownloadStreamCloseError(t *testing.T) {
	tests := []struct {
		name     string
		closeErr error
		wantType errors.ErrorType
	}{
		{"failed run", stderrors.New("ERROR: unable to download video data: HTTP Error 403"), errors.DownloadError},
		{"app only", stderrors.New("ERROR: " + errors.AppOnlyMarker), errors.ExtractionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := &fakeSource{media: &fakeMedia{title: "clip", content: []byte("partial"), closeErr: tt.closeErr}}
			d := newWithSource(Options{OutputDir: dir}, src, logger.Nop())

			_, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType))
			assert.ErrorIs(t, err, tt.closeErr)

			_, statErr := os.Stat(filepath.Join(dir, "clip.mp4"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestDownloadTruncated(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{media: &fakeMedia{title: "clip", content: []byte("0123456789"), size: 1000}}
	d := newWithSource(Options{OutputDir: dir}, src, logger.Nop())

	_, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
	require.Error(t, err)
	var se *errors.StructuredError
	require.True(t, stderrors.As(err, &se))
	assert.Equal(t, errors.ErrDownloadTruncated, se.Code)

	_, statErr := os.Stat(filepath.Join(dir, "clip.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

// levelLogger records the level of every message.
type levelLogger struct {
	mu     sync.Mutex
	levels []string
}

func (l *levelLogger) add(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels = append(l.levels, level)
}

func (l *levelLogger) Debug(string, string, map[string]interface{}) { l.add("debug") }
func (l *levelLogger) Info(string, string, map[string]interface{})  { l.add("info") }
func (l *levelLogger) Warn(string, string, map[string]interface{})  { l.add("warn") }
func (l *levelLogger) Error(string, string, map[string]interface{}) { l.add("error") }

func TestDownloadLogsPerItemAtDebug(t *testing.T) {
	log := &levelLogger{}
	src := &fakeSource{media: &fakeMedia{title: "clip", content: []byte("x")}}
	d := newWithSource(Options{OutputDir: t.TempDir()}, src, log)

	_, err := d.Download(context.Background(), Request{URL: "u", Index: 1, Total: 1}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, log.levels)
	// Anything above debug would break the progress bar on stderr.
	for _, level := range log.levels {
		assert.Equal(t, "debug", level)
	}
}
