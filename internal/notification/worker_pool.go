package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var ErrQueueFull = errors.New("notification queue full")

type welcomeJob struct {
	email string
}

// Failure is reported on the pool's error channel for every job that could
// not be delivered.
type Failure struct {
	Email string
	Err   error
}

// WorkerPool delivers welcome emails in-process. Dispatch never blocks the
// caller: a full queue is reported as ErrQueueFull.
type WorkerPool struct {
	service     *Service
	jobQueue    chan welcomeJob
	failures    chan Failure
	workerWg    sync.WaitGroup
	workerCount int
	sendTimeout time.Duration
	started     bool
	stopped     bool
	mu          sync.Mutex
	logger      kitlog.Logger
}

func NewWorkerPool(service *Service, workerCount int, sendTimeout time.Duration, logger kitlog.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 3
	}
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &WorkerPool{
		service:     service,
		jobQueue:    make(chan welcomeJob, 500),
		failures:    make(chan Failure, 100),
		workerCount: workerCount,
		sendTimeout: sendTimeout,
		logger:      kitlog.With(logger, "component", "notification_pool"),
	}
}

func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	for i := 0; i < p.workerCount; i++ {
		p.workerWg.Add(1)
		go p.worker(i)
	}
	p.started = true
	level.Info(p.logger).Log("msg", "workers started", "count", p.workerCount)
}

// Stop drains the queue and waits for in-flight sends.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.workerWg.Wait()
	close(p.failures)
	level.Info(p.logger).Log("msg", "workers stopped")
}

// Failures exposes delivery errors. Reports are dropped when nobody reads.
func (p *WorkerPool) Failures() <-chan Failure {
	return p.failures
}

func (p *WorkerPool) NotifyWelcome(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrQueueFull
	}
	select {
	case p.jobQueue <- welcomeJob{email: email}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.workerWg.Done()

	for job := range p.jobQueue {
		p.processJob(job)
	}
	level.Debug(p.logger).Log("msg", "worker stopped", "worker", id)
}

func (p *WorkerPool) processJob(job welcomeJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
	defer cancel()

	if err := p.service.SendWelcome(ctx, job.email); err != nil {
		level.Error(p.logger).Log("msg", "welcome email failed", "email", job.email, "err", err)
		select {
		case p.failures <- Failure{Email: job.email, Err: err}:
		default:
		}
	}
}
