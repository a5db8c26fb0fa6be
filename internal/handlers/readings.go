package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"pondwatch/internal/metrics"
	"pondwatch/internal/models"
	"pondwatch/internal/worker"
)

// Sink accepts readings for evaluation
type Sink interface {
	Submit(reading models.Reading) error
}

// ReadingsHandler handles sensor reading ingestion via HTTP
type ReadingsHandler struct {
	sink        Sink
	maxBodySize int64
	now         func() time.Time
}

// ReadingsConfig holds configuration for the readings handler
type ReadingsConfig struct {
	Sink        Sink
	MaxBodySize int64
	Now         func() time.Time
}

// NewReadingsHandler creates a new readings handler
func NewReadingsHandler(cfg ReadingsConfig) *ReadingsHandler {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 1 << 20 // 1MB default
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &ReadingsHandler{
		sink:        cfg.Sink,
		maxBodySize: maxBodySize,
		now:         now,
	}
}

// Register adds the ingestion routes
func (h *ReadingsHandler) Register(r *mux.Router) {
	r.HandleFunc("/sensors/{sensor}/current", h.Current).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/readings", h.Batch).Methods(http.MethodPost)
}

// BatchRequest is the wrapped form of a batch upload
type BatchRequest struct {
	Readings []models.ReadingInput `json:"readings"`
}

// IngestResponse is the response returned to clients
type IngestResponse struct {
	Success  bool          `json:"success"`
	Accepted int           `json:"accepted"`
	Rejected int           `json:"rejected"`
	Errors   []IngestError `json:"errors,omitempty"`
}

// IngestError describes a validation error for a specific reading
type IngestError struct {
	Index  int    `json:"index"`
	Sensor string `json:"sensor,omitempty"`
	Error  string `json:"error"`
}

// Current accepts the current value of one sensor. The body is a bare
// number, null for a dropout, or {"value": n, "observed_at": "..."}.
func (h *ReadingsHandler) Current(w http.ResponseWriter, r *http.Request) {
	sensor := mux.Vars(r)["sensor"]

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	input, err := models.ParseReadingInput(body)
	if err != nil {
		metrics.ReadingsIngestedTotal.WithLabelValues("http", "rejected").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input.Sensor = sensor

	reading, err := input.ToReading(h.now())
	if err != nil {
		metrics.ReadingsIngestedTotal.WithLabelValues("http", "rejected").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.sink.Submit(reading); err != nil {
		metrics.ReadingsIngestedTotal.WithLabelValues("http", "dropped").Inc()
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, submitMessage(err))
		return
	}

	metrics.ReadingsIngestedTotal.WithLabelValues("http", "accepted").Inc()
	writeJSON(w, http.StatusAccepted, IngestResponse{Success: true, Accepted: 1})
}

// Batch accepts an array of readings, or {"readings": [...]}
func (h *ReadingsHandler) Batch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	inputs, err := parseBatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(inputs) == 0 {
		writeError(w, http.StatusBadRequest, "no readings provided")
		return
	}

	response := h.processReadings(inputs)

	status := http.StatusAccepted
	if response.Accepted == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, response)
}

// readBody checks the content type and reads a size-limited body
func (h *ReadingsHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") && !strings.HasPrefix(contentType, "text/plain") {
		writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

// parseBatch parses the JSON body into a slice of ReadingInput
func parseBatch(body []byte) ([]models.ReadingInput, error) {
	var req BatchRequest
	if err := json.Unmarshal(body, &req); err == nil && len(req.Readings) > 0 {
		return req.Readings, nil
	}

	var inputs []models.ReadingInput
	if err := json.Unmarshal(body, &inputs); err == nil {
		return inputs, nil
	}

	return nil, fmt.Errorf("invalid JSON format: expected array of readings")
}

// processReadings validates readings and submits them for evaluation
func (h *ReadingsHandler) processReadings(inputs []models.ReadingInput) IngestResponse {
	response := IngestResponse{}
	now := h.now()

	reject := func(i int, sensor string, err error, status string) {
		response.Errors = append(response.Errors, IngestError{Index: i, Sensor: sensor, Error: err.Error()})
		response.Rejected++
		metrics.ReadingsIngestedTotal.WithLabelValues("http", status).Inc()
	}

	for i, input := range inputs {
		reading, err := input.ToReading(now)
		if err != nil {
			reject(i, input.Sensor, err, "rejected")
			continue
		}

		if err := h.sink.Submit(reading); err != nil {
			reject(i, input.Sensor, errors.New(submitMessage(err)), "dropped")
			continue
		}

		response.Accepted++
		metrics.ReadingsIngestedTotal.WithLabelValues("http", "accepted").Inc()
	}

	response.Success = response.Rejected == 0
	return response
}

func submitMessage(err error) string {
	switch {
	case errors.Is(err, worker.ErrQueueFull):
		return "internal queue full, try again later"
	case errors.Is(err, worker.ErrPoolStopped):
		return "shutting down"
	default:
		return err.Error()
	}
}
