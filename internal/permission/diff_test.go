package permission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnifiedDiffShowsChangedLine(t *testing.T) {
	before := "line one\nline two\nline three\n"
	after := "line one\nline TWO\nline three\n"

	diff := UnifiedDiff("file.txt", before, after)
	require.Contains(t, diff, "-line two")
	require.Contains(t, diff, "+line TWO")
}

func TestElideLinesTruncatesLongLines(t *testing.T) {
	long := strings.Repeat("x", maxDiffLineWidth+50)
	out := elideLines(long)
	require.Less(t, len(out), len(long))
	require.Contains(t, out, "…")
}

func TestFormatBashCommandShortPassesThrough(t *testing.T) {
	cmd := "ls -la"
	require.Equal(t, cmd, FormatBashCommand(cmd))
}
