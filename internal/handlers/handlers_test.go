package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"pondwatch/internal/alerts"
	"pondwatch/internal/models"
	"pondwatch/internal/pond"
	"pondwatch/internal/storage"
	"pondwatch/internal/thresholds"
	"pondwatch/internal/worker"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// MockSink records submitted readings
type MockSink struct {
	mu       sync.Mutex
	readings []models.Reading
	err      error
}

func (m *MockSink) Submit(r models.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.readings = append(m.readings, r)
	return nil
}

type testServer struct {
	router    *mux.Router
	sink      *MockSink
	evaluator *alerts.Evaluator
	history   *storage.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry, err := thresholds.NewRegistry(thresholds.DefaultCalibration())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	evaluator := alerts.NewEvaluator(registry, time.Hour, alerts.WithClock(func() time.Time { return testNow }))
	history := storage.NewMemory(10)
	sink := &MockSink{}

	r := mux.NewRouter()
	NewReadingsHandler(ReadingsConfig{Sink: sink, MaxBodySize: 1024, Now: func() time.Time { return testNow }}).Register(r)
	NewAPI(APIConfig{Registry: registry, Status: evaluator, History: history}).Register(r)

	return &testServer{router: r, sink: sink, evaluator: evaluator, history: history}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestCurrentReading(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantValue  float64
		wantNaN    bool
	}{
		{"bare number", "/sensors/temperature/current", "26.4", http.StatusAccepted, 26.4, false},
		{"object", "/sensors/pH/current", `{"value": 7.1}`, http.StatusAccepted, 7.1, false},
		{"null is dropout", "/sensors/ammonia/current", "null", http.StatusAccepted, 0, true},
		{"alias", "/sensors/fishBehavior/current", "2", http.StatusAccepted, 2, false},
		{"unknown sensor name", "/sensors/salinity/current", "3", http.StatusBadRequest, 0, false},
		{"not a number", "/sensors/ph/current", "abc", http.StatusBadRequest, 0, false},
		{"empty body", "/sensors/ph/current", "", http.StatusBadRequest, 0, false},
		{"future timestamp", "/sensors/ph/current", `{"value":7,"observed_at":"2025-03-01T10:00:00Z"}`, http.StatusBadRequest, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(http.MethodPost, tt.path, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				if len(s.sink.readings) != 0 {
					t.Error("rejected reading reached the sink")
				}
				return
			}
			if len(s.sink.readings) != 1 {
				t.Fatalf("expected 1 submitted reading, got %d", len(s.sink.readings))
			}
			got := s.sink.readings[0]
			if tt.wantNaN {
				if got.HasValue() {
					t.Errorf("expected dropout, got %v", got.Value)
				}
			} else if got.Value != tt.wantValue {
				t.Errorf("value = %v, want %v", got.Value, tt.wantValue)
			}
		})
	}
}

func TestCurrentReadingQueueFull(t *testing.T) {
	s := newTestServer(t)
	s.sink.err = worker.ErrQueueFull

	rec := s.do(http.MethodPost, "/sensors/ph/current", "7")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestCurrentReadingBodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/sensors/ph/current", `{"value":7,"pad":"`+strings.Repeat("x", 2048)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

// brokenBody fails every read, like a client that drops mid-upload
type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestCurrentReadingBodyReadError(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sensors/ph/current", brokenBody{})
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a failed read, got %d", rec.Code)
	}
	if len(s.sink.readings) != 0 {
		t.Error("unreadable body reached the sink")
	}
}

func TestBatchReadings(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/readings", `[
		{"sensor":"temperature","value":25},
		{"sensor":"turbidity","value":3},
		{"sensor":"ph"}
	]`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	var resp IngestResponse
	decode(t, rec, &resp)
	if resp.Accepted != 2 || resp.Rejected != 1 || resp.Success {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Index != 1 {
		t.Errorf("unexpected errors %+v", resp.Errors)
	}

	wrapped := s.do(http.MethodPost, "/readings", `{"readings":[{"sensor":"do","value":6.5}]}`)
	if wrapped.Code != http.StatusAccepted {
		t.Fatalf("wrapped status = %d", wrapped.Code)
	}

	if rec := s.do(http.MethodPost, "/readings", `[]`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/readings", `[{"sensor":"x"}]`); rec.Code != http.StatusBadRequest {
		t.Errorf("all-rejected batch status = %d", rec.Code)
	}
}

func TestClassify(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		query      string
		wantStatus int
		wantBand   string
	}{
		{"sensor=temperature&value=25", http.StatusOK, models.BandGood},
		{"sensor=temperature&value=22", http.StatusOK, models.BandModerate},
		{"sensor=temperature&value=28.5", http.StatusOK, models.BandBad},
		{"sensor=ph&value=7.6", http.StatusOK, models.BandModerate},
		{"sensor=ammonia&value=0", http.StatusOK, models.BandUnknown},
		{"sensor=ammonia", http.StatusOK, models.BandUnknown},
		{"sensor=fishBehavior&value=4", http.StatusOK, models.BandBad},
		{"sensor=temperature&value=NaN", http.StatusOK, models.BandUnknown},
		{"sensor=temperature&value=warm", http.StatusBadRequest, ""},
		{"sensor=salinity&value=1", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/classify?"+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp ClassifyResponse
			decode(t, rec, &resp)
			if resp.Band != tt.wantBand {
				t.Errorf("band = %q, want %q", resp.Band, tt.wantBand)
			}
		})
	}
}

func TestClassifyNonFiniteOmitsValue(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/classify?sensor=ph", "")

	var resp ClassifyResponse
	decode(t, rec, &resp)
	if resp.Value != nil || resp.Threshold != nil {
		t.Errorf("expected no value or threshold, got %+v", resp)
	}
}

func TestClassifyUnregisteredSensorIsNoData(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/classify?sensor=dissolvedOxygen&value=6", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["status"] != "no data" {
		t.Errorf("expected no data, got %v", resp)
	}
}

func TestThresholds(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/thresholds", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var all []SensorThresholdsView
	decode(t, rec, &all)
	if len(all) != 4 {
		t.Fatalf("expected 4 calibrated sensors, got %d", len(all))
	}
	if all[0].Sensor != models.SensorTemperature || len(all[0].Bands) != 5 {
		t.Errorf("unexpected first sensor %+v", all[0])
	}
	if all[0].Bands[0].Low != nil || all[0].Bands[0].High == nil || *all[0].Bands[0].High != 22 {
		t.Errorf("unexpected first band %+v", all[0].Bands[0])
	}

	one := s.do(http.MethodGet, "/thresholds/ph", "")
	var ph SensorThresholdsView
	decode(t, one, &ph)
	if ph.Sensor != models.SensorPH || ph.Bands[2].Label != "good [7, 7.5]" {
		t.Errorf("unexpected ph view %+v", ph)
	}

	if rec := s.do(http.MethodGet, "/thresholds/dissolvedOxygen", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for uncalibrated sensor, got %d", rec.Code)
	}
}

func TestSensorStatus(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodGet, "/sensors/ph/current", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected no data before any reading, got %d", rec.Code)
	}

	if _, err := s.evaluator.Evaluate(models.Reading{Sensor: models.SensorPH, Value: 8.1, ObservedAt: testNow}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	rec := s.do(http.MethodGet, "/sensors/ph/current", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status alerts.SensorStatus
	decode(t, rec, &status)
	if status.State != alerts.StateBadNotified || status.LastBand != models.BandBad {
		t.Errorf("unexpected status %+v", status)
	}

	var snapshot []alerts.SensorStatus
	decode(t, s.do(http.MethodGet, "/status", ""), &snapshot)
	if len(snapshot) != len(models.AllSensorKinds) {
		t.Errorf("expected %d statuses, got %d", len(models.AllSensorKinds), len(snapshot))
	}
}

func TestAlertHistory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	s.history.Record(ctx, &models.AlertEvent{ID: "1", Sensor: models.SensorPH, Timestamp: testNow})
	s.history.Record(ctx, &models.AlertEvent{ID: "2", Sensor: models.SensorTemperature, Timestamp: testNow})

	var all []models.AlertEvent
	decode(t, s.do(http.MethodGet, "/alerts", ""), &all)
	if len(all) != 2 || all[0].ID != "2" {
		t.Errorf("unexpected history %+v", all)
	}

	var ph []models.AlertEvent
	decode(t, s.do(http.MethodGet, "/alerts?sensor=pH&limit=5", ""), &ph)
	if len(ph) != 1 || ph[0].ID != "1" {
		t.Errorf("unexpected ph history %+v", ph)
	}

	if rec := s.do(http.MethodGet, "/alerts?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestDerive(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/operations/derive", `{
		"number_of_fish": 1000, "fish_weight": 0.05, "fish_stage": "Fingerling",
		"total_feed_used": 150, "harvest_weight": 120, "stocking_weight": 40,
		"pond_length": 20, "pond_width": 10, "pond_depth": 1.5
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	var out map[string]interface{}
	decode(t, rec, &out)
	if out["fcr"] != 1.88 || out["feed_per_day"] != 2.5 || out["aeration_duration"] != 6.0 {
		t.Errorf("unexpected figures %v", out)
	}

	if rec := s.do(http.MethodPost, "/operations/derive", `{}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for empty input, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/operations/derive", `{"fish_stage":"Egg"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown stage, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/operations/derive", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestDeriveScheduleAndFeedLevel(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/operations/derive", `{
		"feedings": [{"time": "17:00", "amount": 0.4}, {"time": "07:30", "amount": 0.25}],
		"feed_level": 62
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	var out pond.OperationDetails
	decode(t, rec, &out)
	if len(out.Schedule) != 2 || out.Schedule[0].Time != "07:30" {
		t.Errorf("expected the schedule ordered by time, got %+v", out.Schedule)
	}
	if out.ScheduleTotal == nil || *out.ScheduleTotal != 0.65 {
		t.Errorf("unexpected schedule total %v", out.ScheduleTotal)
	}
	if out.FeedLevelStatus != "moderate" {
		t.Errorf("expected moderate feed level, got %q", out.FeedLevelStatus)
	}

	if rec := s.do(http.MethodPost, "/operations/derive", `{"feedings": [{"time": "07:30", "amount": 2}]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an oversized feeding, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/operations/derive", `{"feed_level": -5}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a negative feed level, got %d", rec.Code)
	}
}
