package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pondwatch/internal/alerts"
	"pondwatch/internal/config"
	"pondwatch/internal/handlers"
	"pondwatch/internal/kafka"
	"pondwatch/internal/live"
	"pondwatch/internal/logger"
	"pondwatch/internal/metrics"
	"pondwatch/internal/middleware"
	"pondwatch/internal/storage"
	"pondwatch/internal/thresholds"
	"pondwatch/internal/worker"
)

// Processor is the high-level coordinator for ingesting, evaluating and alerting.
type Processor struct {
	cfg *config.Config

	registry   *thresholds.Registry
	evaluator  *alerts.Evaluator
	monitor    *alerts.Monitor
	producer   *kafka.Producer
	consumer   *kafka.Consumer
	postgres   *storage.Postgres
	history    storage.AlertLog
	hub        *live.Hub
	workerPool *worker.Pool
	httpServer *http.Server

	wg sync.WaitGroup
}

// New constructs a Processor with given config.
func New(cfg *config.Config) *Processor {
	return &Processor{cfg: cfg}
}

// Run starts background goroutines and blocks until context cancelled.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().Msg("processor starting")

	if err := p.init(ctx); err != nil {
		log.Error().Err(err).Msg("failed to initialize processor")
		p.closeOutputs()
		return err
	}

	p.workerPool.Start()

	// Start HTTP server in background
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Info().Str("addr", p.httpServer.Addr).Msg("starting HTTP server")
		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Kafka readings consumer
	if p.consumer != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.consumer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("kafka consumer stopped")
			}
		}()
	}

	// Stats reporting goroutine
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportStats(ctx)
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// Graceful shutdown
	return p.shutdown()
}

// init builds every component. Outputs opened before a failure are closed by the caller.
func (p *Processor) init(ctx context.Context) error {
	registry, err := BuildRegistry(p.cfg.Thresholds.File)
	if err != nil {
		return err
	}
	p.registry = registry

	dispatcher, err := BuildDispatcher(p.cfg.SMS)
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	recorders, err := p.initRecorders(ctx)
	if err != nil {
		return err
	}

	p.evaluator = alerts.NewEvaluator(p.registry, p.cfg.Alerts.Cooldown)
	p.hub = live.NewHub(live.HubConfig{
		AllowedOrigins: p.cfg.HTTP.AllowedOrigins,
		Snapshot:       p.evaluator.Snapshot,
	})
	p.monitor = alerts.NewMonitor(alerts.MonitorConfig{
		Evaluator:   p.evaluator,
		Dispatcher:  dispatcher,
		Recorders:   recorders,
		Publisher:   p.hub,
		SendTimeout: p.cfg.Alerts.SendTimeout,
	})

	p.initWorkerPool()

	if err := p.initConsumer(); err != nil {
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}

	p.initHTTPServer()

	log := logger.WithComponent("processor")
	log.Info().
		Dur("cooldown", p.cfg.Alerts.Cooldown).
		Interface("calibrated", p.registry.Kinds()).
		Int("recorders", len(recorders)).
		Msg("processor initialized")
	return nil
}

// initRecorders opens the alert outputs: Postgres or an in-memory log for
// history, and the Kafka alerts topic when configured.
func (p *Processor) initRecorders(ctx context.Context) ([]alerts.Recorder, error) {
	log := logger.WithComponent("processor")
	var recorders []alerts.Recorder

	if p.cfg.Postgres.DSN != "" {
		pg, err := storage.NewPostgres(ctx, p.cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		p.postgres = pg
		p.history = pg
	} else {
		log.Info().Msg("postgres not configured, keeping alert history in memory")
		p.history = storage.NewMemory(storage.MaxRecent)
	}
	recorders = append(recorders, p.history)

	if len(p.cfg.Kafka.Brokers) > 0 && p.cfg.Kafka.AlertsTopic != "" {
		producer, err := kafka.NewProducer(p.cfg.Kafka.Brokers, p.cfg.Kafka.AlertsTopic, p.cfg.Kafka.Producer)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize producer: %w", err)
		}
		p.producer = producer
		recorders = append(recorders, producer)
		log.Info().
			Strs("brokers", p.cfg.Kafka.Brokers).
			Str("topic", p.cfg.Kafka.AlertsTopic).
			Msg("kafka producer initialized")
	}

	return recorders, nil
}

// initWorkerPool initializes the worker pool
func (p *Processor) initWorkerPool() {
	p.workerPool = worker.NewPool(worker.Config{
		Handler:   p.monitor,
		Workers:   p.cfg.Alerts.Workers,
		QueueSize: p.cfg.Alerts.QueueSize,
	})
	metrics.WorkerQueueCapacity.Set(float64(p.workerPool.QueueCap()))
}

// initConsumer initializes the Kafka readings consumer when brokers are configured
func (p *Processor) initConsumer() error {
	if len(p.cfg.Kafka.Brokers) == 0 {
		log := logger.WithComponent("processor")
		log.Info().Msg("kafka not configured, accepting readings over HTTP only")
		return nil
	}

	consumer, err := kafka.NewConsumer(
		p.cfg.Kafka.Brokers,
		p.cfg.Kafka.ReadingsTopic,
		p.cfg.Kafka.GroupID,
		p.workerPool,
	)
	if err != nil {
		return err
	}
	p.consumer = consumer
	return nil
}

// Handler returns the HTTP handler with every route
func (p *Processor) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Logging)

	handlers.NewReadingsHandler(handlers.ReadingsConfig{
		Sink:        p.workerPool,
		MaxBodySize: p.cfg.HTTP.MaxBodySize,
	}).Register(r)

	handlers.NewAPI(handlers.APIConfig{
		Registry:    p.registry,
		Status:      p.evaluator,
		History:     p.history,
		MaxBodySize: p.cfg.HTTP.MaxBodySize,
	}).Register(r)

	r.Handle("/ws", p.hub).Methods(http.MethodGet)
	r.HandleFunc("/health", p.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", p.statsHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return middleware.Chain(r,
		middleware.Recovery,
		middleware.CORS(p.cfg.HTTP.AllowedOrigins),
	)
}

// initHTTPServer initializes the HTTP server with handlers
func (p *Processor) initHTTPServer() {
	p.httpServer = &http.Server{
		Addr:         p.cfg.HTTP.Addr,
		Handler:      p.Handler(),
		ReadTimeout:  p.cfg.HTTP.ReadTimeout,
		WriteTimeout: p.cfg.HTTP.WriteTimeout,
		IdleTimeout:  p.cfg.HTTP.IdleTimeout,
	}
}

// shutdown performs graceful shutdown
func (p *Processor) shutdown() error {
	log := logger.WithComponent("processor")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := p.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	p.hub.Close()

	// 2. The consumer stops on context cancellation; wait for it before
	// closing the queue it submits to
	p.wg.Wait()
	if p.consumer != nil {
		if err := p.consumer.Close(); err != nil {
			log.Error().Err(err).Msg("kafka consumer close error")
		}
	}

	// 3. Drain queued readings (with timeout)
	done := make(chan struct{})
	go func() {
		p.workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("workers stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("worker shutdown timeout - aborting in-flight alerts")
		p.workerPool.Abort()
	}

	// 4. Let in-flight alert deliveries finish before closing their outputs
	deliverCtx, cancelDeliver := context.WithTimeout(context.Background(), p.cfg.Alerts.SendTimeout)
	defer cancelDeliver()
	if err := p.monitor.Close(deliverCtx); err != nil {
		log.Warn().Err(err).Msg("alert deliveries cancelled at shutdown")
	}

	// 5. Close alert outputs
	p.closeOutputs()

	log.Info().Msg("processor stopped gracefully")
	return nil
}

func (p *Processor) closeOutputs() {
	log := logger.WithComponent("processor")
	if p.producer != nil {
		log.Info().Msg("closing kafka producer")
		if err := p.producer.Close(); err != nil {
			log.Error().Err(err).Msg("producer close error")
		}
	}
	if p.history != nil {
		if err := p.history.Close(); err != nil {
			log.Error().Err(err).Msg("alert log close error")
		}
	}
}

// reportStats periodically logs statistics
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.Stats()
			metrics.WorkerQueueSize.Set(float64(stats.Queue.Buffered))

			event := log.Info().
				Uint64("worker_processed", stats.Worker.Processed).
				Uint64("worker_failed", stats.Worker.Failed).
				Uint64("worker_dropped", stats.Worker.Dropped).
				Int("queue_size", stats.Queue.Buffered).
				Int("live_clients", stats.LiveClients)
			if stats.Producer != nil {
				event = event.
					Uint64("producer_sent", stats.Producer.MessagesSent).
					Uint64("producer_failed", stats.Producer.MessagesFailed)
			}
			event.Msg("stats")
		}
	}
}

// Stats is the /stats payload
type Stats struct {
	Worker      worker.Stats          `json:"worker"`
	Producer    *kafka.ProducerStats  `json:"producer,omitempty"`
	Queue       QueueStats            `json:"queue"`
	LiveClients int                   `json:"live_clients"`
	Sensors     []alerts.SensorStatus `json:"sensors"`
}

// QueueStats describes the reading queue
type QueueStats struct {
	Buffered int `json:"buffered"`
	Capacity int `json:"capacity"`
}

// Stats returns current statistics
func (p *Processor) Stats() Stats {
	stats := Stats{
		Worker: p.workerPool.Stats(),
		Queue: QueueStats{
			Buffered: p.workerPool.QueueLen(),
			Capacity: p.workerPool.QueueCap(),
		},
		LiveClients: p.hub.Clients(),
		Sensors:     p.evaluator.Snapshot(),
	}
	if p.producer != nil {
		ps := p.producer.Stats()
		stats.Producer = &ps
	}
	return stats
}

// healthHandler handles health check requests
func (p *Processor) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if p.producer != nil {
		checks["kafka"] = "ok"
		if err := p.producer.HealthCheck(ctx); err != nil {
			checks["kafka"] = err.Error()
			healthy = false
		}
	}
	if p.postgres != nil {
		checks["postgres"] = "ok"
		if err := p.postgres.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// statsHandler returns current statistics
func (p *Processor) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p.Stats())
}
