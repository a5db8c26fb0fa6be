package thresholds

import (
	"math"
	"sort"
	"sync"

	"pondwatch/internal/models"
)

// Calibration is an explicit set of band definitions per sensor kind.
// Bands for a kind must be listed in ascending order.
type Calibration map[models.SensorKind][]Band

// ClassificationResult is the band a value falls into
type ClassificationResult struct {
	Band   string            `json:"band"`
	Sensor models.SensorKind `json:"sensor"`
	Value  float64           `json:"value"`

	// Matched is the band definition; zero for unknown results caused by non-finite values
	Matched Band `json:"-"`
}

// Registry holds calibrated bands per sensor kind. Registration happens at
// startup; after that the registry is only read.
type Registry struct {
	mu    sync.RWMutex
	bands map[models.SensorKind][]Band
}

// NewRegistry builds a registry from an explicit calibration. Kinds are
// registered in a stable order so errors are reproducible. A nil calibration
// gives an empty registry for callers that Register kinds themselves.
func NewRegistry(cal Calibration) (*Registry, error) {
	r := &Registry{bands: make(map[models.SensorKind][]Band, len(cal))}

	kinds := make([]models.SensorKind, 0, len(cal))
	for kind := range cal {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		if err := r.Register(kind, cal[kind]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and stores the bands of a sensor kind. A kind can only
// be registered once.
func (r *Registry) Register(kind models.SensorKind, bands []Band) error {
	if !kind.IsValid() {
		return configErrorf(kind, "unsupported sensor kind")
	}
	if err := validateBands(kind, bands); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bands[kind]; exists {
		return configErrorf(kind, "already registered")
	}

	stored := make([]Band, len(bands))
	copy(stored, bands)
	r.bands[kind] = stored
	return nil
}

// Classify returns the band containing value. Non-finite values classify as
// unknown without error.
func (r *Registry) Classify(kind models.SensorKind, value float64) (ClassificationResult, error) {
	r.mu.RLock()
	bands, ok := r.bands[kind]
	r.mu.RUnlock()

	if !ok {
		return ClassificationResult{}, &UnknownSensorError{Sensor: kind}
	}

	result := ClassificationResult{
		Band:   models.BandUnknown,
		Sensor: kind,
		Value:  value,
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return result, nil
	}

	for _, b := range bands {
		if b.Contains(value) {
			result.Band = b.Name
			result.Matched = b
			return result, nil
		}
	}

	// unreachable for validated bands
	return result, nil
}

// Bands returns a copy of the bands registered for kind
func (r *Registry) Bands(kind models.SensorKind) ([]Band, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bands, ok := r.bands[kind]
	if !ok {
		return nil, false
	}
	out := make([]Band, len(bands))
	copy(out, bands)
	return out, true
}

// GoodBand returns the acceptable band of a kind, if it has exactly one
func (r *Registry) GoodBand(kind models.SensorKind) (Band, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found Band
		count int
	)
	for _, b := range r.bands[kind] {
		if b.Name == models.BandGood {
			found = b
			count++
		}
	}
	return found, count == 1
}

// Kinds lists registered sensor kinds in display order
func (r *Registry) Kinds() []models.SensorKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]models.SensorKind, 0, len(r.bands))
	for _, kind := range models.AllSensorKinds {
		if _, ok := r.bands[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// validateBands checks that the bands partition the real line
func validateBands(kind models.SensorKind, bands []Band) error {
	if len(bands) == 0 {
		return configErrorf(kind, "no bands")
	}

	for i, b := range bands {
		if !isBandName(b.Name) {
			return configErrorf(kind, "band %d: invalid name %q", i, b.Name)
		}
		if math.IsNaN(b.Low) || math.IsNaN(b.High) {
			return configErrorf(kind, "band %d (%s): NaN bound", i, b.Name)
		}
		if math.IsInf(b.Low, 1) || math.IsInf(b.High, -1) {
			return configErrorf(kind, "band %d (%s): inverted infinite bound", i, b.Name)
		}
		if b.Low > b.High {
			return configErrorf(kind, "band %d (%s): low %s above high %s", i, b.Name, FormatValue(b.Low), FormatValue(b.High))
		}
		if b.Low == b.High && !(b.LowInclusive && b.HighInclusive) {
			return configErrorf(kind, "band %d (%s): empty range at %s", i, b.Name, FormatValue(b.Low))
		}
	}

	if first := bands[0]; !math.IsInf(first.Low, -1) {
		return configErrorf(kind, "gap below %s", FormatValue(first.Low))
	}
	if last := bands[len(bands)-1]; !math.IsInf(last.High, 1) {
		return configErrorf(kind, "gap above %s", FormatValue(last.High))
	}

	for i := 0; i+1 < len(bands); i++ {
		cur, next := bands[i], bands[i+1]
		switch {
		case cur.High < next.Low:
			return configErrorf(kind, "gap between %s and %s", cur, next)
		case cur.High > next.Low:
			return configErrorf(kind, "overlap between %s and %s", cur, next)
		case cur.HighInclusive && next.LowInclusive:
			return configErrorf(kind, "overlap at %s between %s and %s", FormatValue(cur.High), cur.Name, next.Name)
		case !cur.HighInclusive && !next.LowInclusive:
			return configErrorf(kind, "gap at %s between %s and %s", FormatValue(cur.High), cur.Name, next.Name)
		}
	}

	return nil
}
