package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeBody(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestScanKeywordCountsLinesWithMatch(t *testing.T) {
	t.Parallel()

	path := writeBody(t, "foo\nfoo bar\nbaz\n")

	count, err := ScanKeyword(path, []byte("foo"), false)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestScanKeywordEmptyKeywordReturnsZero(t *testing.T) {
	t.Parallel()

	path := writeBody(t, "foo\nbar\n")

	count, err := ScanKeyword(path, nil, false)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestScanKeywordTrailingLineWithoutNewline(t *testing.T) {
	t.Parallel()

	path := writeBody(t, "first\nlast-match")

	count, err := ScanKeyword(path, []byte("match"), false)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestScanKeywordStopAtFirst(t *testing.T) {
	t.Parallel()

	path := writeBody(t, "hit\nhit\nhit\n")

	count, err := ScanKeyword(path, []byte("hit"), true)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBuildPathJoinsUnderDocroot(t *testing.T) {
	t.Parallel()

	full, err := BuildPath("/docs", "a/b.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/docs", "a/b.txt"), full)
}

func TestBuildPathRejectsOverflow(t *testing.T) {
	t.Parallel()

	long := make([]byte, maxPathLen+10)
	for i := range long {
		long[i] = 'x'
	}

	_, err := BuildPath("/docs", string(long))
	require.ErrorIs(t, err, ErrPathOverflow)
}
