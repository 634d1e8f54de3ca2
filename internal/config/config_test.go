package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaselby/aleph/internal/permission"
)

func TestResolveHomeDefaultsToDotAleph(t *testing.T) {
	t.Setenv("ALEPH_HOME", "")
	home := ResolveHome()
	require.True(t, filepath.IsAbs(home) || home == ".aleph")
}

func TestResolveHomeHonorsEnv(t *testing.T) {
	t.Setenv("ALEPH_HOME", "/tmp/custom-aleph-home")
	require.Equal(t, "/tmp/custom-aleph-home", ResolveHome())
}

func TestDefaultHasSaneValues(t *testing.T) {
	t.Setenv("ALEPH_HOME", "/tmp/aleph-home")
	cfg := Default()
	require.Equal(t, permission.Default, cfg.DefaultMode)
	require.Equal(t, 3, cfg.MaxDepth)
	require.Equal(t, "/tmp/aleph-home/inbox", cfg.Inbox())
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Equal(t, permission.Default, cfg.DefaultMode)
}

func TestLoadOverlaysFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default_mode":"yolo","max_depth":5}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, permission.Yolo, cfg.DefaultMode)
	require.Equal(t, 5, cfg.MaxDepth)
}
