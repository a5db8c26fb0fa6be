package thresholds

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pondwatch/internal/models"
)

const dissolvedOxygenYAML = `
dissolvedOxygen:
  - name: bad
    high: 3
  - name: moderate
    low: 3
    low_inclusive: true
    high: 5
  - name: good
    low: 5
    low_inclusive: true
`

func TestParseCalibration(t *testing.T) {
	cal, err := ParseCalibration([]byte(dissolvedOxygenYAML))
	require.NoError(t, err)
	require.Len(t, cal[models.SensorDissolvedOxygen], 3)

	r, err := NewRegistry(Merge(DefaultCalibration(), cal))
	require.NoError(t, err)

	got, err := r.Classify(models.SensorDissolvedOxygen, 2.9)
	require.NoError(t, err)
	assert.Equal(t, models.BandBad, got.Band)

	got, err = r.Classify(models.SensorDissolvedOxygen, 3)
	require.NoError(t, err)
	assert.Equal(t, models.BandModerate, got.Band)

	// defaults survive the merge
	got, err = r.Classify(models.SensorTemperature, 25)
	require.NoError(t, err)
	assert.Equal(t, models.BandGood, got.Band)
}

func TestParseCalibrationAliases(t *testing.T) {
	cal, err := ParseCalibration([]byte(`
pH:
  - name: bad
    high: 6
  - name: good
    low: 6
    low_inclusive: true
`))
	require.NoError(t, err)
	assert.Contains(t, cal, models.SensorPH)
}

func TestParseCalibrationErrors(t *testing.T) {
	_, err := ParseCalibration([]byte("turbidity:\n  - name: good\n"))
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = ParseCalibration([]byte("ph:\n  - name: [\n"))
	assert.Error(t, err)
}

func TestMalformedFileFailsRegistration(t *testing.T) {
	cal, err := ParseCalibration([]byte(`
temperature:
  - name: bad
    high: 20
  - name: good
    low: 21
`))
	require.NoError(t, err)

	_, err = NewRegistry(Merge(DefaultCalibration(), cal))
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(dissolvedOxygenYAML), 0o600))

	cal, err := LoadCalibration(path)
	require.NoError(t, err)
	assert.Len(t, cal, 1)

	_, err = LoadCalibration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSpecsRoundTrip(t *testing.T) {
	for kind, bands := range DefaultCalibration() {
		specs := Specs(bands)
		require.Len(t, specs, len(bands))
		for i, spec := range specs {
			assert.Equalf(t, bands[i], spec.Band(), "%s band %d", kind, i)
		}
	}
}
