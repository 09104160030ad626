package fetch

import (
	"context"
	"sync"

	"github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/pkg/types"
)

// DefaultParallel is the default number of concurrent downloads
const DefaultParallel = 5

// Executor runs a single job to completion
type Executor interface {
	Execute(ctx context.Context, job types.Job) types.DownloadResult
}

// Scheduler drives a fixed pool of workers over the job set. At most
// `workers` jobs are in flight at once; dispatch follows resolver order,
// completion order is whatever the network gives back. A failed job never
// cancels its siblings; every submitted job yields exactly one result.
type Scheduler struct {
	workers     int
	jobQueue    chan types.Job
	resultQueue chan types.DownloadResult
	wg          sync.WaitGroup
}

// NewScheduler creates a scheduler with the given concurrency limit.
// A limit of 1 means strictly sequential.
func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = DefaultParallel
	}
	return &Scheduler{workers: workers}
}

// Workers returns the configured concurrency limit
func (s *Scheduler) Workers() int {
	return s.workers
}

// Run dispatches every job and returns the result channel. The channel is
// closed once all jobs have drained. Cancelling ctx stops work being
// started; jobs not yet dispatched still drain, each with a failed result
// carrying the cancellation error.
func (s *Scheduler) Run(ctx context.Context, jobs []types.Job, exec Executor) <-chan types.DownloadResult {
	s.jobQueue = make(chan types.Job, len(jobs))
	s.resultQueue = make(chan types.DownloadResult, len(jobs))

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, exec)
	}

	for _, job := range jobs {
		s.jobQueue <- job
	}
	close(s.jobQueue)

	go func() {
		s.wg.Wait()
		close(s.resultQueue)
	}()

	return s.resultQueue
}

// worker consumes jobs until the queue closes. The queue is fully consumed
// even after cancellation so the drain guarantee holds.
func (s *Scheduler) worker(ctx context.Context, exec Executor) {
	defer s.wg.Done()

	for job := range s.jobQueue {
		if err := ctx.Err(); err != nil {
			s.resultQueue <- types.DownloadResult{
				Job:     job,
				Outcome: types.OutcomeFailed,
				Err:     errors.NewTransferError("scheduler", "dispatch", err),
			}
			continue
		}
		s.resultQueue <- exec.Execute(ctx, job)
	}
}
