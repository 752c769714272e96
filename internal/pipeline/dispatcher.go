package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("dispatcher stopped")

const cleanupInterval = 5 * time.Minute

// DispatcherConfig sizes the worker pool and queue.
type DispatcherConfig struct {
	Workers  int
	MaxQueue int
	JobTTL   time.Duration
}

// Dispatcher queues audit jobs and runs them on a fixed pool of workers.
type Dispatcher struct {
	jobs      *JobStore
	queue     chan *Job
	processor *Processor
	log       *slog.Logger
	cfg       DispatcherConfig

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(processor *Processor, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 1
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueue),
		processor: processor,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for range d.cfg.Workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-d.queue:
					if !ok {
						return
					}
					d.run(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				d.jobs.Cleanup()
			}
		}
	}()
}

func (d *Dispatcher) run(ctx context.Context, job *Job) {
	req := job.Request()
	log := d.log.With("job_id", job.ID, "lab_id", req.LabID, "filename", req.Filename)
	log.Info("audit job started")

	out, err := d.processor.Process(ctx, req, job.FileData(), job)
	job.Finish(out, err)

	if err != nil {
		log.Error("audit job failed", "error", err)
		return
	}
	snap := job.Snapshot()
	log.Info("audit job finished", "status", snap.Status, "report_id", snap.ReportID, "cached", snap.Cached)
}

// Stop cancels running jobs and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Submit queues a new job for processing.
func (d *Dispatcher) Submit(job *Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	d.jobs.Put(job)
	select {
	case d.queue <- job:
		return nil
	default:
		job.Finish(nil, ErrQueueFull)
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, d.cfg.MaxQueue)
	}
}

// GetJob returns a job by ID.
func (d *Dispatcher) GetJob(id string) *Job {
	return d.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// Processor returns the processor shared with synchronous callers.
func (d *Dispatcher) Processor() *Processor {
	return d.processor
}
