package appads

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/observability"
)

// Priority orders tasks within the pool's queue; higher values jump ahead.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Task is a unit of CPU-bound work submitted to the pool.
type Task func(ctx context.Context) (interface{}, error)

// Future is returned by Submit; Wait blocks for the task's result.
type Future struct {
	done   chan struct{}
	result interface{}
	err    error
}

// Wait blocks until the task completes or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type queuedTask struct {
	task     Task
	priority Priority
	future   *Future
	seq      int64 // FIFO tiebreaker within same priority
}

type taskHeap []*queuedTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(*queuedTask)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Config tunes the worker pool's scaling and isolation behavior.
type Config struct {
	MinWorkers   int
	MaxWorkers   int
	TaskTimeout  time.Duration
	MaxIdleTime  time.Duration
}

// Pool is the App-Ads Analyzer's CPU-bound worker pool: a priority queue
// serviced by min..max workers that scale down when idle.
type Pool struct {
	cfg     Config
	metrics observability.MetricsRegistry
	logger  *zap.Logger

	mu       sync.Mutex
	queue    taskHeap
	seq      int64
	notEmpty *sync.Cond

	activeWorkers int
	shutdown      bool
	wg            sync.WaitGroup

	lastActivityMu sync.Mutex
	lastActivity   time.Time
}

// NewPool constructs and starts a Pool with cfg.MinWorkers running immediately.
func NewPool(cfg Config, metrics observability.MetricsRegistry, logger *zap.Logger) *Pool {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 2
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if cfg.MaxIdleTime <= 0 {
		cfg.MaxIdleTime = 2 * time.Minute
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{cfg: cfg, metrics: metrics, logger: logger, lastActivity: time.Now()}
	p.notEmpty = sync.NewCond(&p.mu)

	for i := 0; i < cfg.MinWorkers; i++ {
		p.spawnWorker()
	}
	go p.scaleLoop()
	return p
}

// Submit enqueues task at the given priority and returns a Future.
func (p *Pool) Submit(task Task, priority Priority) *Future {
	future := &Future{done: make(chan struct{})}

	p.mu.Lock()
	p.seq++
	heap.Push(&p.queue, &queuedTask{task: task, priority: priority, future: future, seq: p.seq})
	qlen := len(p.queue)
	if p.activeWorkers < p.cfg.MaxWorkers && qlen > p.activeWorkers {
		p.spawnWorkerLocked()
	}
	p.mu.Unlock()

	p.metrics.SetWorkerQueueDepth(qlen)
	p.notEmpty.Signal()
	p.touch()
	return future
}

func (p *Pool) touch() {
	p.lastActivityMu.Lock()
	p.lastActivity = time.Now()
	p.lastActivityMu.Unlock()
}

func (p *Pool) spawnWorker() {
	p.mu.Lock()
	p.spawnWorkerLocked()
	p.mu.Unlock()
}

func (p *Pool) spawnWorkerLocked() {
	isExtra := p.activeWorkers >= p.cfg.MinWorkers
	p.activeWorkers++
	p.metrics.SetWorkerActiveCount(p.activeWorkers)
	p.wg.Add(1)
	go p.workerLoop(isExtra)
}

// workerLoop services the queue. A worker spawned beyond MinWorkers
// (isExtra) periodically wakes to check whether it has been idle past
// MaxIdleTime and, if so and the pool is still above MinWorkers, exits.
func (p *Pool) workerLoop(isExtra bool) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.shutdown {
			if isExtra {
				woke := p.waitWithTimeout(p.cfg.MaxIdleTime)
				if !woke && len(p.queue) == 0 && !p.shutdown && p.activeWorkers > p.cfg.MinWorkers {
					p.activeWorkers--
					p.metrics.SetWorkerActiveCount(p.activeWorkers)
					p.mu.Unlock()
					return
				}
				continue
			}
			p.notEmpty.Wait()
		}
		if p.shutdown && len(p.queue) == 0 {
			p.activeWorkers--
			p.metrics.SetWorkerActiveCount(p.activeWorkers)
			p.mu.Unlock()
			return
		}
		qt := heap.Pop(&p.queue).(*queuedTask)
		p.metrics.SetWorkerQueueDepth(len(p.queue))
		p.mu.Unlock()

		p.runTask(qt)
	}
}

// waitWithTimeout waits on notEmpty for at most d, returning true if it was
// woken by a signal/broadcast rather than the timeout. Must be called with
// p.mu held; re-acquires it before returning.
func (p *Pool) waitWithTimeout(d time.Duration) bool {
	woken := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		p.mu.Lock()
		close(woken)
		p.notEmpty.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.notEmpty.Wait()
	select {
	case <-woken:
		return false
	default:
		return true
	}
}

func (p *Pool) runTask(qt *queuedTask) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan struct {
		v   interface{}
		err error
	}, 1)

	go func() {
		v, err := qt.task(ctx)
		resultCh <- struct {
			v   interface{}
			err error
		}{v, err}
	}()

	select {
	case r := <-resultCh:
		qt.future.result = r.v
		qt.future.err = r.err
	case <-ctx.Done():
		qt.future.err = ctx.Err()
	}
	close(qt.future.done)
	p.metrics.RecordAnalyzerDuration(time.Since(start))
	p.touch()
}

// scaleLoop periodically checks whether the pool has been idle for longer
// than MaxIdleTime while running above MinWorkers, and logs it at debug
// level, mirroring the teacher's ticker-driven background-goroutine idiom.
// It does not stop workers itself; extra workers exit on their own idle
// timeout in workerLoop.
func (p *Pool) scaleLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		p.lastActivityMu.Lock()
		idleFor := time.Since(p.lastActivity)
		p.lastActivityMu.Unlock()

		p.mu.Lock()
		if p.shutdown {
			p.mu.Unlock()
			return
		}
		if idleFor > p.cfg.MaxIdleTime && p.activeWorkers > p.cfg.MinWorkers && len(p.queue) == 0 {
			// Observation only: the worker count is reduced by each extra
			// worker's own idle timeout in workerLoop, not here.
			p.logger.Debug("worker pool idle, holding at min workers", zap.Int("active", p.activeWorkers))
		}
		p.mu.Unlock()
	}
}

// Stats reports current pool occupancy.
type Stats struct {
	ActiveWorkers int
	QueueDepth    int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{ActiveWorkers: p.activeWorkers, QueueDepth: len(p.queue)}
}

// Shutdown drains the queue (workers finish in-flight tasks, already-queued
// tasks still run) and waits for every worker to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	p.notEmpty.Broadcast()
	p.wg.Wait()
}
