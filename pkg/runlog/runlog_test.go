package runlog

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linePattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] (.*)$`)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(string(data), "\n")
}

func TestCreateNamesFileByTimestamp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2024, 3, 9, 7, 5, 1, 0, time.Local)

	l, err := createAt(dir, now)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, filepath.Join(dir, "20240309_070501.log"), l.Path())
	_, err = os.Stat(l.Path())
	assert.NoError(t, err)
}

func TestWriteFormatsLines(t *testing.T) {
	l, err := Create(t.TempDir())
	require.NoError(t, err)

	l.Write("Downloading video1 (1/2)")
	l.Printf("Conversion finished: %s", "video1")
	require.NoError(t, l.Close())

	lines := readLines(t, l.Path())
	require.GreaterOrEqual(t, len(lines), 2)

	m := linePattern.FindStringSubmatch(lines[0])
	require.NotNil(t, m, "line %q", lines[0])
	assert.Equal(t, "Downloading video1 (1/2)", m[1])

	m = linePattern.FindStringSubmatch(lines[1])
	require.NotNil(t, m, "line %q", lines[1])
	assert.Equal(t, "Conversion finished: video1", m[1])
}

func TestCompleteAppendsMarker(t *testing.T) {
	l, err := Create(t.TempDir())
	require.NoError(t, err)

	l.Write("ERROR: URL https://x - boom")
	require.NoError(t, l.Complete())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), CompletionMarker))
}

func TestNilLogIsNoop(t *testing.T) {
	var l *Log
	l.Write("x")
	l.Printf("%d", 1)
	assert.NoError(t, l.Complete())
	assert.NoError(t, l.Close())
	assert.Equal(t, "", l.Path())
}

func TestWriteAfterCloseIsDropped(t *testing.T) {
	l, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	l.Write("late")
	assert.NoError(t, l.Complete())
}

func TestCreateFailsOnFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := Create(filepath.Join(blocker, "logs"))
	assert.Error(t, err)
}
