package permission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := map[string]Classification{
		"read_file":    Read,
		"list_dir":     Read,
		"write_file":   Edit,
		"edit_file":    Edit,
		"bash":         Bash,
		"web_fetch":    Web,
		"some_unknown": Other,
	}
	for tool, want := range cases {
		require.Equal(t, want, Classify(tool), "tool %s", tool)
	}
}

func TestModeTable(t *testing.T) {
	require.True(t, requiresApproval(Safe, Edit))
	require.True(t, requiresApproval(Safe, Bash))
	require.True(t, requiresApproval(Safe, Web))
	require.False(t, requiresApproval(Safe, Read))

	require.True(t, requiresApproval(Default, Edit))
	require.True(t, requiresApproval(Default, Web))
	require.False(t, requiresApproval(Default, Bash))
	require.False(t, requiresApproval(Default, Read))

	require.False(t, requiresApproval(Yolo, Edit))
	require.False(t, requiresApproval(Yolo, Bash))
	require.False(t, requiresApproval(Yolo, Web))
	require.False(t, requiresApproval(Yolo, Read))
}
