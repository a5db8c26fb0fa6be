package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"pondwatch/internal/logger"
	"pondwatch/internal/metrics"
	"pondwatch/internal/models"
)

// Handler processes a single reading
type Handler interface {
	Handle(ctx context.Context, reading models.Reading) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, reading models.Reading) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, reading models.Reading) error { return f(ctx, reading) }

var (
	ErrQueueFull   = errors.New("reading queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Pool runs readings through a handler on a fixed set of lanes. Every sensor
// kind owns one lane, so readings of a kind are handled in arrival order and
// a slow kind never holds up another.
type Pool struct {
	handler Handler
	lanes   []chan models.Reading
	owned   map[models.SensorKind]int

	mu      sync.RWMutex
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Handler   Handler
	Workers   int // raised to one lane per sensor kind
	QueueSize int // per lane
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers < len(models.AllSensorKinds) {
		cfg.Workers = len(models.AllSensorKinds)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())

	lanes := make([]chan models.Reading, cfg.Workers)
	for i := range lanes {
		lanes[i] = make(chan models.Reading, cfg.QueueSize)
	}

	owned := make(map[models.SensorKind]int, len(models.AllSensorKinds))
	for i, kind := range models.AllSensorKinds {
		owned[kind] = i
	}

	return &Pool{
		handler: cfg.Handler,
		lanes:   lanes,
		owned:   owned,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing readings
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Int("workers", len(p.lanes)).
		Int("queue_size", cap(p.lanes[0])).
		Msg("starting worker pool")

	for i := range p.lanes {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues a reading without blocking
func (p *Pool) Submit(reading models.Reading) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.lanes[p.laneFor(reading.Sensor)] <- reading:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Stop stops accepting readings, drains the lanes and waits for workers
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, lane := range p.lanes {
		close(lane)
	}
	p.mu.Unlock()

	log := logger.WithComponent("worker_pool")
	log.Info().Msg("stopping worker pool")
	p.wg.Wait()
	p.cancel()
	log.Info().Msg("worker pool stopped")
}

// Abort cancels in-flight handlers, then stops the pool
func (p *Pool) Abort() {
	p.cancel()
	p.Stop()
}

func (p *Pool) laneFor(sensor models.SensorKind) int {
	if lane, ok := p.owned[sensor]; ok {
		return lane
	}
	h := fnv.New32a()
	h.Write([]byte(sensor))
	return int(h.Sum32() % uint32(len(p.lanes)))
}

// worker handles readings from one lane until it is closed
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()
	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	for reading := range p.lanes[id] {
		p.handle(id, reading)
	}
}

// handle runs the handler for one reading with panic recovery
func (p *Pool) handle(id int, reading models.Reading) {
	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Error().
				Interface("panic", r).
				Str("sensor", string(reading.Sensor)).
				Bytes("stack", stack).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
			p.failed.Add(1)
		}
	}()

	err := p.handler.Handle(p.ctx, reading)
	metrics.WorkerHandleDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.failed.Add(1)
		return
	}
	p.processed.Add(1)
}

// QueueLen returns the number of readings waiting across all lanes
func (p *Pool) QueueLen() int {
	n := 0
	for _, lane := range p.lanes {
		n += len(lane)
	}
	return n
}

// QueueCap returns the total queue capacity
func (p *Pool) QueueCap() int {
	return len(p.lanes) * cap(p.lanes[0])
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}
