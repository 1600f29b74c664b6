package sched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vigil/object"
)

// wakePad is added to every timer arm so a burst of tests due within the
// same ~100 ms drains in one wake.
const wakePad = 100 * time.Millisecond

// Runner receives due work from the scheduler. The sequencer implements
// it; polled runs are handed to worker threads, while autopass resets run
// on the scheduler thread.
type Runner interface {
	// DispatchPoll runs a polled test instance.
	DispatchPoll(inst *object.Instance)
	// DispatchAutopass fires a notification test's autopass timer.
	DispatchAutopass(inst *object.Instance)
}

// Scheduler owns the five test queues and the single scheduler goroutine.
//
// The internal mutex guards the queue lists and each instance's SchedSlot.
// Wake-ups interleave queue heads round-robin in priority order so a long
// fast-queue backlog never starves the slow queue.
type Scheduler struct {
	db     *object.DB
	runner Runner
	log    *zap.SugaredLogger

	mu       sync.Mutex
	queues   map[object.QueueID]*queue
	blocked  bool
	lastWake time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	wg     sync.WaitGroup
	timeNow func() time.Time
}

// New creates a scheduler over the given object DB.
func New(db *object.DB, runner Runner, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Scheduler{
		db:      db,
		runner:  runner,
		log:     log,
		wake:    make(chan struct{}, 1),
		timeNow: time.Now,
		queues: map[object.QueueID]*queue{
			object.QueueImmediate: {id: object.QueueImmediate},
			object.QueueFast:      {id: object.QueueFast},
			object.QueueNormal:    {id: object.QueueNormal},
			object.QueueSlow:      {id: object.QueueSlow},
			object.QueueUser:      {id: object.QueueUser},
		},
	}
	return s
}

// Start launches the scheduler goroutine.
func (s *Scheduler) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.run()
	s.log.Infow("scheduler started")
}

// Stop sets the quit flag and releases the timer once; the scheduler
// goroutine exits within one wake cycle.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.kick()
	s.wg.Wait()
	s.log.Infow("scheduler stopped")
}

// kick releases the scheduler thread so it re-arms its timer.
func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Block rejects further enqueues (unless forced) and stops arming the
// timer. Used while a recovery walk owns the engine.
func (s *Scheduler) Block() {
	s.mu.Lock()
	s.blocked = true
	s.mu.Unlock()
}

// Unblock re-opens the scheduler and re-drains every enabled polled test,
// which is the recovery behavior after an engine self-test failure.
func (s *Scheduler) Unblock() {
	s.mu.Lock()
	s.blocked = false
	s.mu.Unlock()

	s.db.Lock()
	var insts []*object.Instance
	s.db.ForEach(object.KindTest, func(o *object.Object) {
		if o.Test == nil || o.Test.Kind != object.TestPolled || !o.Enabled() {
			return
		}
		o.EachInstance(func(in *object.Instance) {
			if in.Enabled() {
				insts = append(insts, in)
			}
		})
	})
	s.db.Unlock()

	for _, in := range insts {
		s.EnqueuePolled(in, true)
	}
	s.log.Infow("scheduler unblocked", "requeued", len(insts))
}

// EnqueuePolled places a polled test instance onto the queue matching its
// period, next due one period from now. A test already queued elsewhere is
// moved; a duplicate add to the same queue is a no-op.
func (s *Scheduler) EnqueuePolled(inst *object.Instance, force bool) {
	test := inst.Object.Test
	if test == nil || test.Kind == object.TestNotification {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked && !force {
		s.log.Debugw("scheduler blocked, rejecting enqueue", "instance", inst.Key())
		return
	}

	id := queueForPeriod(test.Period)
	q := s.queues[id]
	if inst.Sched.Queue == id && q.contains(inst) {
		return
	}
	s.removeLocked(inst)

	at := s.timeNow().Add(test.Period)
	q.insert(&entry{inst: inst, at: at})
	inst.Sched.Queue = id
	inst.Sched.NextTime = at
	s.kickLocked()
}

// EnqueueImmediate queues a test for re-drive now, used by RCI. A test
// already queued immediate is not re-added; a test currently executing is
// not preempted and the request is dropped with a log.
func (s *Scheduler) EnqueueImmediate(inst *object.Instance, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked && !force {
		return
	}
	// Seq is DB-lock-guarded state read here under the scheduler mutex
	// only; a stale read is tolerable (shared-resource policy) because
	// the sequencer re-checks Seq under the DB lock before running.
	if inst.Seq == object.SeqRunning {
		s.log.Infow("test executing, immediate re-drive dropped", "instance", inst.Key())
		return
	}
	q := s.queues[object.QueueImmediate]
	if q.contains(inst) {
		return
	}
	s.removeLocked(inst)
	q.entries = append(q.entries, &entry{inst: inst, at: s.timeNow()})
	inst.Sched.Queue = object.QueueImmediate
	inst.Sched.NextTime = time.Time{}
	s.kickLocked()
}

// EnqueueAutopass arms a notification test's autopass timer on the user
// queue. Each new Fail resets the window, so any previous entry is
// replaced.
func (s *Scheduler) EnqueueAutopass(inst *object.Instance, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked {
		return
	}
	s.removeLocked(inst)
	at := s.timeNow().Add(delay)
	q := s.queues[object.QueueUser]
	q.insert(&entry{inst: inst, at: at, autopass: true})
	inst.Sched.Queue = object.QueueUser
	inst.Sched.NextTime = at
	s.kickLocked()
}

// Remove takes an instance out of whatever queue holds it.
func (s *Scheduler) Remove(inst *object.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(inst)
}

func (s *Scheduler) removeLocked(inst *object.Instance) {
	if inst.Sched.Queue == object.QueueNone {
		return
	}
	if q, ok := s.queues[inst.Sched.Queue]; ok {
		q.remove(inst)
	}
	inst.Sched.Queue = object.QueueNone
}

// LastWake returns when the scheduler thread last drained its queues.
// The engine's self-test uses it to detect a stalled scheduler.
func (s *Scheduler) LastWake() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWake
}

// Queued reports which queue currently holds the instance.
func (s *Scheduler) Queued(inst *object.Instance) object.QueueID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return inst.Sched.Queue
}

// kickLocked releases the scheduler thread so it re-computes its wake
// time against the newly inserted entry.
func (s *Scheduler) kickLocked() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the scheduler loop: drain every due head, then sleep until the
// earliest next wake plus padding.
func (s *Scheduler) run() {
	defer s.wg.Done()
	timer := time.NewTimer(wakePad)
	defer timer.Stop()

	for {
		due := s.collectDue()
		for _, e := range due {
			if e.autopass {
				s.runner.DispatchAutopass(e.inst)
			} else {
				s.runner.DispatchPoll(e.inst)
			}
		}

		wait := s.nextWait()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		case <-s.wake:
		}
	}
}

// collectDue pops due heads round-robin across the queues in priority
// order, re-queueing polled tests for their next period as they dispatch.
func (s *Scheduler) collectDue() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked {
		return nil
	}

	now := s.timeNow()
	s.lastWake = now
	order := []object.QueueID{
		object.QueueImmediate, object.QueueFast, object.QueueNormal,
		object.QueueSlow, object.QueueUser,
	}

	var due []*entry
	for {
		drained := true
		for _, id := range order {
			e := s.queues[id].popDue(now)
			if e == nil {
				continue
			}
			drained = false
			e.inst.Sched.Queue = object.QueueNone
			due = append(due, e)

			// Polled tests cycle: due again one period on.
			if !e.autopass && id != object.QueueImmediate {
				test := e.inst.Object.Test
				if test != nil && test.Kind != object.TestNotification && e.inst.Enabled() {
					next := now.Add(test.Period)
					s.queues[id].insert(&entry{inst: e.inst, at: next})
					e.inst.Sched.Queue = id
					e.inst.Sched.NextTime = next
				}
			}
		}
		if drained {
			return due
		}
	}
}

// nextWait computes the sleep until the earliest queue head, padded by
// wakePad. With nothing queued the scheduler dozes; any enqueue kicks it.
func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked {
		return time.Hour
	}

	var earliest time.Time
	for _, q := range s.queues {
		if at, ok := q.nextTime(); ok {
			if earliest.IsZero() || at.Before(earliest) {
				earliest = at
			}
		}
	}
	if earliest.IsZero() {
		return time.Hour
	}
	wait := earliest.Sub(s.timeNow()) + wakePad
	if wait < 0 {
		wait = 0
	}
	return wait
}
