// Package dispatch implements the bounded worker pool that runs test
// probes and recovery actions, plus the CPU throttle that slows the pool
// down when the engine itself burns too much CPU.
package dispatch

import (
	"sync"

	"github.com/google/uuid"
)

// Job is one unit of work for the pool: an execute callback plus a display
// callback used in logs and the guard-timer path.
type Job struct {
	ID      string
	Execute func(context any)
	Display func(context any) string
	Context any
}

func (j *Job) describe() string {
	if j.Display == nil {
		return j.ID
	}
	return j.Display(j.Context)
}

func (j *Job) reset() {
	j.ID = ""
	j.Execute = nil
	j.Display = nil
	j.Context = nil
}

// freeJobLowWater is the number of job records kept preallocated so the
// pool can keep accepting work under memory pressure.
const freeJobLowWater = 50

// freelist recycles Job records. It is refilled to the low-water mark as
// jobs are released.
type freelist struct {
	mu   sync.Mutex
	free []*Job
}

func newFreelist() *freelist {
	fl := &freelist{free: make([]*Job, 0, freeJobLowWater)}
	for i := 0; i < freeJobLowWater; i++ {
		fl.free = append(fl.free, &Job{})
	}
	return fl
}

// get pops a recycled record or allocates a fresh one.
func (fl *freelist) get() *Job {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if n := len(fl.free); n > 0 {
		j := fl.free[n-1]
		fl.free = fl.free[:n-1]
		j.ID = uuid.NewString()
		return j
	}
	return &Job{ID: uuid.NewString()}
}

// put returns a record to the freelist, topping it back up toward the
// low-water mark.
func (fl *freelist) put(j *Job) {
	j.reset()
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if len(fl.free) < freeJobLowWater {
		fl.free = append(fl.free, j)
	}
}
