// Package pool implements the fixed-size Pool/Dispatcher: a set of
// Workers draining a shared LIFO job queue, one exclusive lock per Worker,
// teardown only after every dispatched job has returned.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Zeebrow/ec2-price-tracker/internal/obslog"
	"github.com/Zeebrow/ec2-price-tracker/internal/worker"
)

// Pool holds a fixed set of already-initialized Workers and drives a job
// queue to completion.
type Pool struct {
	workers []*worker.Worker

	mu    sync.Mutex // guards queue; the only structure touched by multiple tasks
	queue []worker.Job
}

// New builds a Pool over already-constructed workers. Building the
// Workers themselves (including dropping any whose Page Driver failed to
// initialize) is the Run Controller's responsibility, per spec §4.5.
func New(workers []*worker.Worker) *Pool {
	return &Pool{workers: workers}
}

// Size returns the number of Workers in the pool.
func (p *Pool) Size() int { return len(p.workers) }

// Run drains jobs (LIFO relative to the input order) across the pool's
// Workers and returns only after every dispatched job has completed and
// every Worker's Page Driver has been torn down exactly once.
//
// Dispatch loop: each Worker gets one goroutine that pops a job off the
// queue, takes the Worker's lock, runs the job and releases the lock,
// until the queue is empty. Since a Worker is only ever driven by its own
// goroutine, at most one job runs per Worker at any instant (invariant
// (1) from spec §4.5), and RunJob always finds the lock held as it
// requires.
func (p *Pool) Run(ctx context.Context, jobs []worker.Job, reporter worker.Reporter) error {
	p.mu.Lock()
	p.queue = make([]worker.Job, len(jobs))
	copy(p.queue, jobs)
	p.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			p.drain(ctx, w, reporter)
			return nil
		})
	}

	defer p.teardown()
	return g.Wait()
}

// drain repeatedly tries to claim a job for w until the queue is empty.
func (p *Pool) drain(ctx context.Context, w *worker.Worker, reporter worker.Reporter) {
	for {
		job, ok := p.pop()
		if !ok {
			return
		}
		w.Lock()
		w.RunJob(ctx, job, reporter)
		w.Unlock()
	}
}

// pop removes and returns the last job in the queue (LIFO), under the
// pool's single mutex — the only structure multiple tasks mutate.
func (p *Pool) pop() (worker.Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return worker.Job{}, false
	}
	last := len(p.queue) - 1
	job := p.queue[last]
	p.queue = p.queue[:last]
	return job, true
}

// teardown closes every Worker's Page Driver exactly once, after all
// dispatched jobs have returned (guaranteed by the caller awaiting Run's
// errgroup before calling this).
func (p *Pool) teardown() {
	for _, w := range p.workers {
		w.Lock()
		if err := w.Driver.Close(); err != nil {
			obslog.Get().WithError(err).WithField("worker", w.ID).Warn("closing page driver during teardown")
		}
		w.Unlock()
	}
}
