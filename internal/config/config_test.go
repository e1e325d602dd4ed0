package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distrip/internal/config"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestLoadCoordinatorConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "coordinator.json", `{
		"in_path": "/media/in",
		"out_path": "/media/out",
		"listen_addr": ":9090",
		"rip_config": {"a_tracks": ["eng"], "s_tracks": ["eng"], "min_dur": 40, "max_dur": 200},
		"hb_config": {"quality": 20, "h264_preset": "medium", "h264_profile": "high", "h264_level": "4.1"},
		"fixes": {"remove_duplicate_tracks": true, "split_every_chapters": 5}
	}`)

	cfg, err := config.LoadCoordinatorConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/media/in", cfg.InPath)
	assert.Equal(t, "/media/out", cfg.OutPath)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, []string{"eng"}, cfg.RipConfig.AudioLangs)
	assert.Equal(t, 40, cfg.RipConfig.MinMinutes)
	assert.Equal(t, "medium", cfg.HBConfig.X264Preset)
	assert.True(t, cfg.Fixes.RemoveDuplicateTracks)
	require.NotNil(t, cfg.Fixes.SplitEveryChapters)
	assert.Equal(t, 5, cfg.Fixes.SplitEveryChapters.FixedSize)
}

func TestLoadCoordinatorConfigMissingInPathFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "coordinator.json", `{"out_path": "/media/out", "hb_config": {"h264_preset": "medium", "h264_profile": "high"}}`)

	_, err := config.LoadCoordinatorConfig(dir)
	assert.Error(t, err)
}

func TestLoadWorkerConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "worker.json", `{"coordinator_url": "http://coordinator:8080", "temp_dir": "`+filepath.Join(dir, "scratch")+`"}`)

	cfg, err := config.LoadWorkerConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://coordinator:8080", cfg.CoordinatorURL)
	assert.Equal(t, "5s", cfg.HeartbeatInterval.String())
}

func TestLoadWorkerConfigMissingURLFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "worker.json", `{"temp_dir": "/tmp/x"}`)

	_, err := config.LoadWorkerConfig(dir)
	assert.Error(t, err)
}
