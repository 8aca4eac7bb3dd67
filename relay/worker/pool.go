// Package worker records relay journal entries off the request path.
//
// Handlers enqueue a Job once an exchange ends. Workers store the entry with
// the configured storage.Driver and then publish it to the configured
// eventstream.Publisher, so journaling never delays or fails a response.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is one finished exchange waiting to be journaled.
type Job struct {
	Entry *journal.Entry
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the journal store. Required.
	Driver storage.Driver

	// Publisher receives an event for every stored entry. Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes journal jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed against sends racing Close.
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: log,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job without blocking. It returns false, dropping the job,
// when the queue is full or the pool has been closed.
func (p *Pool) Enqueue(job Job) bool {
	if job.Entry == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("journal job not queued, pool closed, job dropped",
			"entry_id", job.Entry.ID,
			"route", job.Entry.Route,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("journal job queued", "entry_id", job.Entry.ID, "route", job.Entry.Route)
		return true
	default:
		p.logger.Error("journal job not queued, queue full, job dropped",
			"entry_id", job.Entry.ID,
			"route", job.Entry.Route,
		)
		return false
	}
}

// Close stops accepting work and waits for in-flight jobs to drain. Call it
// after the HTTP server has stopped. Later calls are no-ops.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("journal worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("journal worker stopped", "worker_id", id)
}

// processJob stores the entry, then publishes it. A publish failure is logged
// and never rolls back the stored entry.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Driver.Put(ctx, job.Entry); err != nil {
		p.logger.Error("journal storage failed", "entry_id", job.Entry.ID, "error", err)
		return
	}

	p.logger.Debug("journal entry stored",
		"entry_id", job.Entry.ID,
		"type", job.Entry.Type,
		"status", job.Entry.Status,
	)

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewJournalRecordedEvent(job.Entry)
	if err := p.config.Publisher.PublishEntry(ctx, event); err != nil {
		p.logger.Warn("journal event publish failed",
			"entry_id", job.Entry.ID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}
