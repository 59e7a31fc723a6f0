package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/bluescan/internal/detector"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bluescan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsMatchDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestDefault_DetectorConfig(t *testing.T) {
	dc, err := Default().DetectorConfig()
	require.NoError(t, err)

	if diff := cmp.Diff(detector.DefaultConfig(), dc); diff != "" {
		t.Errorf("DetectorConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  read_timeout: 5s
log:
  mode: release
store:
  path: /tmp/history.db
detection:
  max_width: 400
  min_blue_ratio: 0.45
  debug: true
  weights:
    color: 0.6
    position: 0.2
    size: 0.2
  color_ranges:
    - name: teal
      lower: [85, 80, 80]
      upper: [100, 255, 255]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, "release", cfg.Log.Mode)
	assert.Equal(t, "/tmp/history.db", cfg.Store.Path)

	dc, err := cfg.DetectorConfig()
	require.NoError(t, err)
	assert.Equal(t, 400, dc.Base.MaxWidth)
	assert.Equal(t, 50, dc.Base.MinWidth)
	assert.Equal(t, 0.45, dc.MinBlueRatio)
	assert.True(t, dc.Debug)
	assert.Equal(t, detector.ScoreWeights{Color: 0.6, Position: 0.2, Size: 0.2}, dc.Base.Weights)
	require.Len(t, dc.ColorRanges, 1)
	assert.Equal(t, "teal", dc.ColorRanges[0].Name)
	assert.Equal(t, detector.HSV{H: 85, S: 80, V: 80}, dc.ColorRanges[0].Lower)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("BLUESCAN_SERVER_ADDR", ":7777")
	t.Setenv("BLUESCAN_DETECTION_MIN_BLUE_RATIO", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, 0.5, cfg.Detection.MinBlueRatio)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"inverted width", "detection:\n  min_width: 500\n  max_width: 100\n"},
		{"short hsv triple", "detection:\n  color_ranges:\n    - name: bad\n      lower: [1, 2]\n      upper: [3, 4, 5]\n"},
		{"hue out of range", "detection:\n  color_ranges:\n    - name: bad\n      lower: [0, 0, 0]\n      upper: [200, 255, 255]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
