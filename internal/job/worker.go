package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Processor runs a claimed job to completion.
type Processor interface {
	Process(ctx context.Context, j *Job) error
}

// Queue hands out pending jobs one at a time. Store implements it.
type Queue interface {
	ClaimPending(ctx context.Context) (*Job, error)
}

// WorkerPool runs a fixed number of goroutines that claim and process pending jobs.
type WorkerPool struct {
	queue        Queue
	processor    Processor
	workers      int
	notify       chan struct{}
	pollInterval time.Duration
}

// NewWorkerPool creates a pool with the given number of workers.
func NewWorkerPool(queue Queue, processor Processor, workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		queue:        queue,
		processor:    processor,
		workers:      workers,
		notify:       make(chan struct{}, 1),
		pollInterval: 5 * time.Second,
	}
}

// Notify wakes idle workers to check for pending jobs. Non-blocking.
func (wp *WorkerPool) Notify() {
	select {
	case wp.notify <- struct{}{}:
	default:
	}
}

// Run starts worker goroutines and blocks until ctx is cancelled and all
// workers have returned.
func (wp *WorkerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range wp.workers {
		wg.Go(func() { wp.loop(ctx, i) })
	}
	wg.Wait()
}

func (wp *WorkerPool) loop(ctx context.Context, id int) {
	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		wp.drain(ctx, id)

		select {
		case <-ctx.Done():
			return
		case <-wp.notify:
		case <-ticker.C:
		}
	}
}

func (wp *WorkerPool) drain(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		j, err := wp.queue.ClaimPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("worker: claim pending", "worker", id, "error", err)
			return
		}
		if j == nil {
			return
		}

		slog.Info("worker: processing job", "worker", id, "job", j.ID,
			"channels", len(j.Request.Channels), "keywords", len(j.Request.Keywords))

		if err := wp.processor.Process(ctx, j); err != nil {
			slog.Error("worker: process job", "worker", id, "job", j.ID, "error", err)
		}
	}
}
