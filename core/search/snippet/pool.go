package snippet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxJobs is the default number of concurrently running jobs.
const DefaultMaxJobs = 20

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("snippet pool is closed")

	// ErrPoolFull is returned by Submit when every slot is taken.
	ErrPoolFull = errors.New("snippet pool is full")
)

// JobFunc is the work run by a job. ctx is canceled when the job is canceled
// or its deadline passes.
type JobFunc func(ctx context.Context) error

// Job is one background unit of work started by a Pool.
type Job struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
	done    chan struct{}
	err     error
}

// ID returns the job's unique identifier.
func (j *Job) ID() string {
	return j.id
}

// Context returns the job's context.
func (j *Job) Context() context.Context {
	return j.ctx
}

// Cancel asks the job to stop. It does not wait.
func (j *Job) Cancel() {
	j.cancel()
}

// Canceled reports whether the job was canceled or ran out of time.
func (j *Job) Canceled() bool {
	return j.ctx.Err() != nil
}

// Done is closed once the job function has returned.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job has finished and returns its error.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// MaxJobs bounds the number of jobs running at once. Default: 20.
	MaxJobs int

	// Timeout bounds each job. Zero means no deadline.
	Timeout time.Duration

	Logger *slog.Logger
}

// Pool runs jobs in the background, never more than MaxJobs at a time.
// Submission never blocks: when all slots are taken it fails with ErrPoolFull.
type Pool struct {
	sem     *semaphore.Weighted
	maxJobs int
	timeout time.Duration
	logger  *slog.Logger

	parentCtx context.Context
	cancelAll context.CancelFunc

	mu     sync.Mutex
	jobs   map[string]*Job
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a Pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = DefaultMaxJobs
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:       semaphore.NewWeighted(int64(cfg.MaxJobs)),
		maxJobs:   cfg.MaxJobs,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		parentCtx: ctx,
		cancelAll: cancel,
		jobs:      make(map[string]*Job),
	}
}

// MaxJobs returns the concurrency bound.
func (p *Pool) MaxJobs() int {
	return p.maxJobs
}

// Running returns the number of jobs that have not finished yet.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// Submit starts fn in the background and returns its Job. then, if not nil,
// runs on the job goroutine after fn returns and before the job is marked
// done, so anything it does is visible to callers of Wait.
func (p *Pool) Submit(fn JobFunc, then func(*Job)) (*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if !p.sem.TryAcquire(1) {
		return nil, ErrPoolFull
	}

	job := p.newJob()
	p.jobs[job.id] = job
	p.wg.Add(1)

	go p.run(job, fn, then)
	return job, nil
}

func (p *Pool) newJob() *Job {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(p.parentCtx, p.timeout)
	} else {
		ctx, cancel = context.WithCancel(p.parentCtx)
	}
	return &Job{
		id:      uuid.NewString(),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

func (p *Pool) run(job *Job, fn JobFunc, then func(*Job)) {
	defer p.cleanup(job)

	job.err = p.execute(job, fn)
	if then != nil {
		then(job)
	}
}

func (p *Pool) execute(job *Job, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, captureStack())
			p.logger.Error("snippet job panicked", "job_id", job.id, "error", err)
		}
	}()
	return fn(job.ctx)
}

func (p *Pool) cleanup(job *Job) {
	job.cancel()

	p.mu.Lock()
	delete(p.jobs, job.id)
	p.mu.Unlock()

	close(job.done)
	p.sem.Release(1)
	p.wg.Done()

	p.logger.Debug("snippet job finished",
		"job_id", job.id,
		"duration", time.Since(job.started),
		"error", job.err)
}

// Close cancels every running job, waits for all of them and rejects further
// submissions. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancelAll()
	p.wg.Wait()
}

func captureStack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
