package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"pondwatch/internal/alerts"
	"pondwatch/internal/models"
	"pondwatch/internal/pond"
	"pondwatch/internal/thresholds"
)

// Classifier is the read side of the threshold registry
type Classifier interface {
	Classify(kind models.SensorKind, value float64) (thresholds.ClassificationResult, error)
	Bands(kind models.SensorKind) ([]thresholds.Band, bool)
	Kinds() []models.SensorKind
}

// StatusSource exposes the evaluator state per sensor
type StatusSource interface {
	Status(kind models.SensorKind) (alerts.SensorStatus, bool)
	Snapshot() []alerts.SensorStatus
}

// AlertHistory serves recorded alerts
type AlertHistory interface {
	Recent(ctx context.Context, sensor models.SensorKind, limit int) ([]models.AlertEvent, error)
}

// APIConfig holds the read API dependencies
type APIConfig struct {
	Registry    Classifier
	Status      StatusSource
	History     AlertHistory
	MaxBodySize int64
}

// API serves classification, thresholds, sensor status, alert history and
// the farm operation calculator to dashboard clients.
type API struct {
	registry    Classifier
	status      StatusSource
	history     AlertHistory
	maxBodySize int64
}

// NewAPI creates the read API
func NewAPI(cfg APIConfig) *API {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 1 << 20
	}
	return &API{
		registry:    cfg.Registry,
		status:      cfg.Status,
		history:     cfg.History,
		maxBodySize: cfg.MaxBodySize,
	}
}

// Register adds the API routes
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/classify", a.Classify).Methods(http.MethodGet)
	r.HandleFunc("/thresholds", a.Thresholds).Methods(http.MethodGet)
	r.HandleFunc("/thresholds/{sensor}", a.SensorThresholds).Methods(http.MethodGet)
	r.HandleFunc("/status", a.Status).Methods(http.MethodGet)
	r.HandleFunc("/sensors/{sensor}/current", a.Current).Methods(http.MethodGet)
	r.HandleFunc("/alerts", a.Alerts).Methods(http.MethodGet)
	r.HandleFunc("/operations/derive", a.Derive).Methods(http.MethodPost)
}

// ClassifyResponse is the classification of one value. Value and Threshold
// are omitted for non-finite input.
type ClassifyResponse struct {
	Sensor    models.SensorKind `json:"sensor"`
	Value     *float64          `json:"value"`
	Band      string            `json:"band"`
	Label     string            `json:"label,omitempty"`
	Threshold *models.Threshold `json:"threshold,omitempty"`
}

// Classify handles GET /classify?sensor=&value=. A missing value is a dropout.
func (a *API) Classify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("sensor")

	kind, err := models.ParseSensorKind(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	value := math.NaN()
	if raw := strings.TrimSpace(q.Get("value")); raw != "" && raw != "null" {
		value, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "value must be a number")
			return
		}
	}

	result, err := a.registry.Classify(kind, value)
	if errors.Is(err, thresholds.ErrUnknownSensor) {
		writeNoData(w, string(kind))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ClassifyResponse{Sensor: kind, Band: result.Band}
	if !math.IsNaN(value) && !math.IsInf(value, 0) {
		resp.Value = &value
		threshold := result.Matched.Threshold()
		resp.Threshold = &threshold
		resp.Label = result.Matched.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// BandView is a calibrated band with its display label
type BandView struct {
	models.Threshold
	Label string `json:"label"`
}

// SensorThresholdsView lists the bands of one sensor
type SensorThresholdsView struct {
	Sensor models.SensorKind `json:"sensor"`
	Unit   string            `json:"unit,omitempty"`
	Bands  []BandView        `json:"bands"`
}

func (a *API) sensorView(kind models.SensorKind) (SensorThresholdsView, bool) {
	bands, ok := a.registry.Bands(kind)
	if !ok {
		return SensorThresholdsView{}, false
	}
	view := SensorThresholdsView{Sensor: kind, Unit: kind.Unit(), Bands: make([]BandView, 0, len(bands))}
	for _, b := range bands {
		view.Bands = append(view.Bands, BandView{Threshold: b.Threshold(), Label: b.String()})
	}
	return view, true
}

// Thresholds handles GET /thresholds
func (a *API) Thresholds(w http.ResponseWriter, r *http.Request) {
	kinds := a.registry.Kinds()
	out := make([]SensorThresholdsView, 0, len(kinds))
	for _, kind := range kinds {
		if view, ok := a.sensorView(kind); ok {
			out = append(out, view)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// SensorThresholds handles GET /thresholds/{sensor}
func (a *API) SensorThresholds(w http.ResponseWriter, r *http.Request) {
	kind, ok := a.parseSensorVar(w, r)
	if !ok {
		return
	}
	view, ok := a.sensorView(kind)
	if !ok {
		writeNoData(w, string(kind))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Status handles GET /status
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.status.Snapshot())
}

// Current handles GET /sensors/{sensor}/current
func (a *API) Current(w http.ResponseWriter, r *http.Request) {
	kind, ok := a.parseSensorVar(w, r)
	if !ok {
		return
	}
	status, ok := a.status.Status(kind)
	if !ok || status.LastSeen == nil {
		writeNoData(w, string(kind))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Alerts handles GET /alerts?sensor=&limit=
func (a *API) Alerts(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusServiceUnavailable, "alert history not configured")
		return
	}

	q := r.URL.Query()
	var kind models.SensorKind
	if name := q.Get("sensor"); name != "" {
		var err error
		if kind, err = models.ParseSensorKind(name); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := a.history.Recent(r.Context(), kind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []models.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Derive handles POST /operations/derive
func (a *API) Derive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxBodySize)

	var input pond.OperationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	details, err := pond.Derive(input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if details.Empty() {
		writeError(w, http.StatusUnprocessableEntity, pond.ErrNoFigures.Error())
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *API) parseSensorVar(w http.ResponseWriter, r *http.Request) (models.SensorKind, bool) {
	kind, err := models.ParseSensorKind(mux.Vars(r)["sensor"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return kind, true
}
