package thresholds

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pondwatch/internal/models"
)

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(DefaultCalibration())
	require.NoError(t, err)
	return r
}

func TestDefaultCalibrationBoundaries(t *testing.T) {
	r := defaultRegistry(t)

	tests := []struct {
		sensor models.SensorKind
		value  float64
		want   string
	}{
		{models.SensorTemperature, 24, models.BandGood},
		{models.SensorTemperature, 23.999, models.BandModerate},
		{models.SensorTemperature, 28.001, models.BandBad},
		{models.SensorTemperature, 27, models.BandGood},
		{models.SensorTemperature, 27.001, models.BandModerate},
		{models.SensorTemperature, 28, models.BandModerate},
		{models.SensorTemperature, 22, models.BandModerate},
		{models.SensorTemperature, 21.999, models.BandBad},
		{models.SensorTemperature, -5, models.BandBad},

		{models.SensorPH, 7.0, models.BandGood},
		{models.SensorPH, 7.5, models.BandGood},
		{models.SensorPH, 6.8, models.BandModerate},
		{models.SensorPH, 6.79, models.BandBad},
		{models.SensorPH, 7.7, models.BandModerate},
		{models.SensorPH, 7.71, models.BandBad},

		{models.SensorAmmonia, 0.02, models.BandGood},
		{models.SensorAmmonia, 0.021, models.BandModerate},
		{models.SensorAmmonia, 0.05, models.BandModerate},
		{models.SensorAmmonia, 0.051, models.BandBad},
		{models.SensorAmmonia, 0.0001, models.BandGood},
		{models.SensorAmmonia, 0, models.BandUnknown},
		{models.SensorAmmonia, -0.3, models.BandUnknown},

		{models.SensorSurfaceRespiration, 0, models.BandGood},
		{models.SensorSurfaceRespiration, 3, models.BandGood},
		{models.SensorSurfaceRespiration, 3.5, models.BandBad},
		{models.SensorSurfaceRespiration, 25, models.BandBad},
	}

	for _, tt := range tests {
		t.Run(string(tt.sensor)+"/"+FormatValue(tt.value), func(t *testing.T) {
			got, err := r.Classify(tt.sensor, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Band)
			assert.Equal(t, tt.sensor, got.Sensor)
			assert.Equal(t, tt.value, got.Value)
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	r := defaultRegistry(t)
	rng := rand.New(rand.NewSource(42))

	for _, kind := range r.Kinds() {
		bands, ok := r.Bands(kind)
		require.True(t, ok)

		for i := 0; i < 10000; i++ {
			var v float64
			switch i % 3 {
			case 0:
				v = rng.NormFloat64() * 1e6
			case 1:
				v = rng.Float64()*40 - 5
			default:
				// snap to a boundary
				b := bands[rng.Intn(len(bands))]
				v = b.Low
				if math.IsInf(v, 0) {
					v = b.High
				}
			}
			if math.IsInf(v, 0) {
				continue
			}

			matches := 0
			for _, b := range bands {
				if b.Contains(v) {
					matches++
				}
			}
			require.Equalf(t, 1, matches, "%s: %v matched %d bands", kind, v, matches)

			_, err := r.Classify(kind, v)
			require.NoError(t, err)
		}
	}
}

func TestClassifyNonFinite(t *testing.T) {
	r := defaultRegistry(t)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got, err := r.Classify(models.SensorTemperature, v)
		require.NoError(t, err)
		assert.Equal(t, models.BandUnknown, got.Band)
	}
}

func TestClassifyUnknownSensor(t *testing.T) {
	r := defaultRegistry(t)

	_, err := r.Classify(models.SensorDissolvedOxygen, 6.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSensor))

	var unknown *UnknownSensorError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, models.SensorDissolvedOxygen, unknown.Sensor)
}

func TestRegisterDissolvedOxygen(t *testing.T) {
	r := defaultRegistry(t)

	err := r.Register(models.SensorDissolvedOxygen, []Band{
		below(models.BandBad, 3, false),
		between(models.BandModerate, 3, 5, true, false),
		above(models.BandGood, 5, true),
	})
	require.NoError(t, err)

	got, err := r.Classify(models.SensorDissolvedOxygen, 5)
	require.NoError(t, err)
	assert.Equal(t, models.BandGood, got.Band)

	err = r.Register(models.SensorDissolvedOxygen, []Band{above(models.BandGood, math.Inf(-1), false)})
	assert.True(t, errors.Is(err, ErrConfig), "second registration must fail")
}

func TestRegisterRejectsMalformedBands(t *testing.T) {
	tests := []struct {
		name  string
		bands []Band
	}{
		{"empty", nil},
		{"invalid name", []Band{{Name: "fine", Low: math.Inf(-1), High: math.Inf(1)}}},
		{"gap below", []Band{above(models.BandGood, 0, true)}},
		{"gap above", []Band{below(models.BandGood, 10, true)}},
		{"gap between", []Band{
			below(models.BandBad, 1, true),
			above(models.BandGood, 2, true),
		}},
		{"gap at shared bound", []Band{
			below(models.BandBad, 1, false),
			above(models.BandGood, 1, false),
		}},
		{"overlap at shared bound", []Band{
			below(models.BandBad, 1, true),
			above(models.BandGood, 1, true),
		}},
		{"overlapping ranges", []Band{
			below(models.BandBad, 5, true),
			above(models.BandGood, 2, false),
		}},
		{"unordered", []Band{
			above(models.BandGood, 1, false),
			below(models.BandBad, 1, true),
		}},
		{"NaN bound", []Band{
			below(models.BandBad, math.NaN(), true),
			above(models.BandGood, 1, false),
		}},
		{"empty point band", []Band{
			below(models.BandBad, 1, false),
			between(models.BandModerate, 1, 1, true, false),
			above(models.BandGood, 1, false),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(nil)
			require.NoError(t, err)
			err = r.Register(models.SensorTemperature, tt.bands)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, models.SensorTemperature, cfgErr.Sensor)

			_, err = r.Classify(models.SensorTemperature, 1)
			assert.True(t, errors.Is(err, ErrUnknownSensor), "failed registration must not leave bands behind")
		})
	}
}

func TestRegisterPointBand(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)
	err = r.Register(models.SensorTemperature, []Band{
		below(models.BandBad, 25, false),
		between(models.BandGood, 25, 25, true, true),
		above(models.BandBad, 25, false),
	})
	require.NoError(t, err)

	got, err := r.Classify(models.SensorTemperature, 25)
	require.NoError(t, err)
	assert.Equal(t, models.BandGood, got.Band)
}

func TestBoundariesNeverUnknownSensor(t *testing.T) {
	r := defaultRegistry(t)

	for _, kind := range r.Kinds() {
		bands, _ := r.Bands(kind)
		for _, b := range bands {
			for _, v := range []float64{b.Low, b.High} {
				_, err := r.Classify(kind, v)
				assert.NoError(t, err)
			}
		}
	}
}

func TestBandsReturnsCopy(t *testing.T) {
	r := defaultRegistry(t)

	bands, ok := r.Bands(models.SensorTemperature)
	require.True(t, ok)
	bands[2].Name = models.BandBad

	got, err := r.Classify(models.SensorTemperature, 25)
	require.NoError(t, err)
	assert.Equal(t, models.BandGood, got.Band)
}

func TestGoodBand(t *testing.T) {
	r := defaultRegistry(t)

	good, ok := r.GoodBand(models.SensorTemperature)
	require.True(t, ok)
	assert.Equal(t, 24.0, good.Low)
	assert.Equal(t, 27.0, good.High)

	_, ok = r.GoodBand(models.SensorDissolvedOxygen)
	assert.False(t, ok)
}

func TestBandString(t *testing.T) {
	assert.Equal(t, "good [24, 27]", between(models.BandGood, 24, 27, true, true).String())
	assert.Equal(t, "bad (28, +Inf)", above(models.BandBad, 28, false).String())
	assert.Equal(t, "unknown (-Inf, 0]", below(models.BandUnknown, 0, true).String())
}

func TestNewRegistryFromNilCalibration(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)
	assert.Empty(t, r.Kinds())

	_, err = r.Classify(models.SensorPH, 7.2)
	assert.ErrorIs(t, err, ErrUnknownSensor)
}
