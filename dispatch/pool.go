package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultWorkers is the pool size unless configured otherwise.
	DefaultWorkers = 4

	// DefaultGuardBudget is how long a probe or action may run before its
	// worker is abandoned and replaced.
	DefaultGuardBudget = 30 * time.Second
)

// worker is one pool thread. The abandoned flag is set by the guard timer
// when a job overruns its budget; the worker notices after the callout
// returns and exits instead of rejoining the pool.
type worker struct {
	id        int
	abandoned atomic.Bool
}

// Pool is a fixed set of workers consuming a FIFO of jobs. When every
// worker is busy new jobs park on the pending queue. Before each job step
// the worker sleeps for the throttle's current delay.
type Pool struct {
	size     int
	guard    time.Duration
	throttle *Throttle
	log      *zap.SugaredLogger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Job
	fl      *freelist
	quit    bool
	started bool
	nextID  int
	active  int
	wg      sync.WaitGroup
}

// NewPool builds a pool of size workers with the given guard budget.
// Zero values select the defaults.
func NewPool(size int, guard time.Duration, throttle *Throttle, log *zap.SugaredLogger) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	if guard <= 0 {
		guard = DefaultGuardBudget
	}
	if throttle == nil {
		throttle = NewThrottle()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &Pool{
		size:     size,
		guard:    guard,
		throttle: throttle,
		log:      log,
		fl:       newFreelist(),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Throttle exposes the pool's CPU throttle for the engine's self-test and
// config reload.
func (p *Pool) Throttle() *Throttle { return p.throttle }

// Start spawns the workers. Calling Start twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.quit = false
	for i := 0; i < p.size; i++ {
		p.spawnLocked()
	}
	p.log.Infow("worker pool started", "workers", p.size)
}

func (p *Pool) spawnLocked() {
	w := &worker{id: p.nextID}
	p.nextID++
	p.wg.Add(1)
	go p.run(w)
}

// Submit queues a job. Safe to call from any goroutine, including probe
// callouts re-entering the engine.
func (p *Pool) Submit(execute func(context any), display func(context any) string, context any) {
	j := p.fl.get()
	j.Execute = execute
	j.Display = display
	j.Context = context

	p.mu.Lock()
	if p.quit {
		p.mu.Unlock()
		p.fl.put(j)
		return
	}
	p.pending = append(p.pending, j)
	p.mu.Unlock()
	p.cond.Signal()
}

// Stats returns the number of busy workers and parked jobs.
func (p *Pool) Stats() (active, queued int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active, len(p.pending)
}

// Stop kills every worker and discards parked jobs. Workers mid-callout
// finish their current job first.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.quit = true
	p.started = false
	p.pending = nil
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	p.log.Infow("worker pool stopped")
}

// run is the worker loop: block for a job, throttle, execute under a guard
// timer, repeat.
func (p *Pool) run(w *worker) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for !p.quit && len(p.pending) == 0 {
			p.cond.Wait()
		}
		if p.quit {
			p.mu.Unlock()
			return
		}
		j := p.pending[0]
		p.pending = p.pending[1:]
		p.active++
		p.mu.Unlock()

		p.step(w, j)

		p.mu.Lock()
		p.active--
		p.mu.Unlock()

		// A worker abandoned by the guard timer has already been
		// replaced; it must not pick up further work.
		if w.abandoned.Load() {
			p.log.Warnw("abandoned worker exiting", "worker", w.id)
			return
		}
	}
}

// step runs one job: throttle delay, guard timer, callout.
func (p *Pool) step(w *worker, j *Job) {
	defer p.fl.put(j)

	p.throttle.Sample()
	if d := p.throttle.Delay(); d > 0 {
		p.log.Debugw("throttling job", "job_id", j.ID, "delay_ms", d.Milliseconds())
		time.Sleep(d)
	}

	guard := time.AfterFunc(p.guard, func() {
		// The callout overran its budget. Abandon this worker and
		// spawn a replacement so the pool keeps its size.
		w.abandoned.Store(true)
		p.log.Errorw("job exceeded guard budget, replacing worker",
			"worker", w.id, "job_id", j.ID, "job", j.describe(),
			"budget_ms", p.guard.Milliseconds())
		p.mu.Lock()
		if p.started && !p.quit {
			p.spawnLocked()
		}
		p.mu.Unlock()
	})
	defer guard.Stop()

	if j.Execute != nil {
		j.Execute(j.Context)
	}
}
