package deviceconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
calibration:
  output_limits: [5000, 5000, 5000, 5000]
  gpa_gain: [0, 1, 1, 1]
  gradient_efficiency: [0, 1, 1, 1]
  rf_to_mvolt: 1.0
  spcm_dwell_time_ns: 50
  rf_dead_time_ns: 100
  rf_ringdown_time_ns: 30
  sample_rate_hz: 20000000
  channel_scale: [1.0]
storage:
  root: /tmp/spectrum-sessions
`

func TestLoadParsesCalibrationAndStorage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, [4]float64{5000, 5000, 5000, 5000}, cfg.Calibration.OutputLimits)
	assert.Equal(t, "/tmp/spectrum-sessions", cfg.Storage.Root)
	assert.EqualValues(t, 50, cfg.Calibration.SpcmDwellTime())
}

func TestLoadRejectsZeroOutputLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	bad := `
calibration:
  output_limits: [0, 5000, 5000, 5000]
  sample_rate_hz: 20000000
storage:
  root: /tmp/x
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/device.yaml")
	assert.Error(t, err)
}
