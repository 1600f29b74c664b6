package dispatch

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Throttle thresholds are expressed in tenths of a percent of one CPU, so
// the defaults of 50 and 100 mean 5% and 10%.
const (
	DefaultWarnThreshold = 50
	DefaultHighThreshold = 100

	// highDelay is the delay at the high threshold; maxDelay caps the
	// computed delay above it.
	highDelay = 1000 * time.Millisecond
	maxDelay  = 5000 * time.Millisecond

	// cpuWindow is how far back the sampler looks.
	cpuWindow = time.Minute
)

type cpuSample struct {
	at      time.Time
	cpuSecs float64
}

// Throttle measures the engine process's own CPU use over the last minute
// and converts it into a per-job-step delay. Samples and thresholds are
// guarded by a mutex; the CPU figure is only as fresh as the latest sample.
type Throttle struct {
	mu      sync.Mutex
	warn    int64 // tenths of a percent
	high    int64
	proc    *process.Process
	samples []cpuSample

	// timeNow and cpuSecs are injectable for tests.
	timeNow func() time.Time
	cpuSecs func() (float64, bool)
}

// NewThrottle builds a throttle reading this process's CPU counters.
func NewThrottle() *Throttle {
	t := &Throttle{
		warn:    DefaultWarnThreshold,
		high:    DefaultHighThreshold,
		timeNow: time.Now,
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		t.proc = proc
	}
	t.cpuSecs = t.processCPUSecs
	return t
}

func (t *Throttle) processCPUSecs() (float64, bool) {
	if t.proc == nil {
		return 0, false
	}
	times, err := t.proc.Times()
	if err != nil {
		return 0, false
	}
	return times.User + times.System, true
}

// SetThresholds updates the warn and high thresholds (tenths of a percent).
// Values where high <= warn are ignored.
func (t *Throttle) SetThresholds(warn, high int64) {
	if high <= warn || warn < 0 {
		return
	}
	t.mu.Lock()
	t.warn = warn
	t.high = high
	t.mu.Unlock()
}

// Thresholds returns the current warn and high settings.
func (t *Throttle) Thresholds() (warn, high int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.warn, t.high
}

// Sample records the current CPU counter and prunes samples older than the
// window. Called before each job step and from the periodic CPU test.
func (t *Throttle) Sample() {
	secs, ok := t.cpuSecs()
	if !ok {
		return
	}
	now := t.timeNow()
	t.mu.Lock()
	t.samples = append(t.samples, cpuSample{at: now, cpuSecs: secs})
	cutoff := now.Add(-cpuWindow)
	for len(t.samples) > 1 && t.samples[0].at.Before(cutoff) {
		t.samples = t.samples[1:]
	}
	t.mu.Unlock()
}

// CPUTenths returns the engine's CPU use over the sample window in tenths
// of a percent of one CPU.
func (t *Throttle) CPUTenths() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cpuTenthsLocked()
}

func (t *Throttle) cpuTenthsLocked() int64 {
	n := len(t.samples)
	if n < 2 {
		return 0
	}
	first, last := t.samples[0], t.samples[n-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	used := last.cpuSecs - first.cpuSecs
	if used < 0 {
		used = 0
	}
	return int64(used / elapsed * 1000)
}

// Delay converts current CPU use into the sleep inserted before each job
// step:
//
//	delay = clamp(highDelay * (cpu - warn) / (high - warn), 0, maxDelay)
//
// Below the warn threshold the delay is zero.
func (t *Throttle) Delay() time.Duration {
	t.mu.Lock()
	cpu := t.cpuTenthsLocked()
	warn, high := t.warn, t.high
	t.mu.Unlock()

	if cpu <= warn {
		return 0
	}
	d := time.Duration(int64(highDelay) * (cpu - warn) / (high - warn))
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
