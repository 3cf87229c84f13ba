package ingest

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"climate-monitor/models"

	"github.com/google/uuid"
)

var (
	ErrClosed    = errors.New("ingest pipeline closed")
	ErrQueueFull = errors.New("ingest queue full")
)

// Inserter is the write side of the reading table.
type Inserter interface {
	Insert(ctx context.Context, rec models.RawRecord) (string, error)
}

// DefaultWorkers returns NumCPU*2 clamped to [4, 16].
func DefaultWorkers() int {
	n := runtime.NumCPU() * 2
	if n < 4 {
		n = 4
	}
	if n > 16 {
		n = 16
	}
	return n
}

// Pipeline buffers submitted records and writes them with a fixed pool of
// workers. Submissions never block: a full queue rejects the record.
type Pipeline struct {
	store   Inserter
	records chan models.RawRecord
	logger  *slog.Logger
	onDrop  func()

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPipeline(store Inserter, buffer int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &Pipeline{
		store:   store,
		records: make(chan models.RawRecord, buffer),
		logger:  logger,
	}
}

// OnDrop registers a callback invoked for every rejected record.
func (p *Pipeline) OnDrop(fn func()) {
	p.onDrop = fn
}

// Start launches the workers. Writes use ctx; they stop early only if ctx
// is cancelled, otherwise Close drains the queue.
func (p *Pipeline) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	p.logger.Info("starting ingest workers", "workers", workers)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for rec := range p.records {
				p.write(ctx, rec)
			}
		}()
	}
}

// Submit queues rec, assigning an id when it has none, and returns that id.
func (p *Pipeline) Submit(rec models.RawRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "", ErrClosed
	}
	select {
	case p.records <- rec:
		return rec.ID, nil
	default:
		p.logger.Warn("ingest queue is full, dropping record", "id", rec.ID)
		if p.onDrop != nil {
			p.onDrop()
		}
		return "", ErrQueueFull
	}
}

// Close stops accepting records and waits for queued ones to be written.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.records)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) write(ctx context.Context, rec models.RawRecord) {
	id, err := p.store.Insert(ctx, rec)
	if err != nil {
		p.logger.Error("failed to store reading", "id", rec.ID, "error", err)
		return
	}
	p.logger.Debug("stored reading", "id", id)
}
