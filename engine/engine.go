// Package engine ties the diagnostics core together: the embedding API
// over the object DB, the test -> rule -> action sequencer, rule operator
// evaluation, root-cause identification and component health aggregation.
//
// A host process creates one Engine, registers tests, rules, actions and
// components against it, and calls Start. The engine owns its scheduler
// thread and worker pool; the host's own threads call the public API
// concurrently with them.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vigil/dispatch"
	"github.com/teranos/vigil/logger"
	"github.com/teranos/vigil/object"
	"github.com/teranos/vigil/sched"
)

// Reserved component names.
const (
	ComponentSystem    = "System"
	ComponentStandbyRP = "StandbyRP"
)

// Callbacks are the host's notification hooks. All runtime outcomes are
// surfaced through these; any of them may be nil.
//
// Callbacks fire with the DB lock released, so hosts may re-enter the API.
type Callbacks struct {
	TestResult      func(name, instance string, result object.Result, value int64)
	RuleResult      func(name, instance string, result object.Result)
	ActionResult    func(name, instance string, result object.Result)
	ComponentHealth func(name string, health int64)

	// RecoveryStarted fires when a root-cause rule dispatches its
	// recovery actions.
	RecoveryStarted func(rule, instance string)

	// UserAlert receives the text of a fired user-alert action.
	UserAlert func(text string)
}

// PlatformHooks are the host OS recovery hooks behind the built-in
// actions. A nil hook makes the matching built-in a logged no-op.
type PlatformHooks struct {
	Reload              func()
	Switchover          func()
	ReloadStandby       func()
	ScheduledReload     func()
	ScheduledSwitchover func()
}

// Config carries the engine tunables. The zero value selects defaults.
type Config struct {
	Workers      int           // worker pool size (default 4)
	GuardBudget  time.Duration // per-callout budget (default 30s)
	ThrottleWarn int64         // CPU warn threshold, tenths of a percent
	ThrottleHigh int64         // CPU high threshold, tenths of a percent

	Platform PlatformHooks
}

// Engine is one diagnostics engine instance. It owns the object DB, the
// scheduler and the worker pool; hosts obtain it by dependency injection
// rather than through package-level state.
type Engine struct {
	db       *object.DB
	pool     *dispatch.Pool
	sched    *sched.Scheduler
	log      *zap.SugaredLogger
	cb       Callbacks
	platform PlatformHooks

	timeNow func() time.Time
	started bool
}

// New creates an engine with the given tunables and host callbacks.
func New(cfg Config, cb Callbacks) *Engine {
	log := logger.ComponentLogger("vigil.engine")

	throttle := dispatch.NewThrottle()
	if cfg.ThrottleWarn > 0 && cfg.ThrottleHigh > cfg.ThrottleWarn {
		throttle.SetThresholds(cfg.ThrottleWarn, cfg.ThrottleHigh)
	}

	e := &Engine{
		db:       object.NewDB(logger.ComponentLogger("vigil.object")),
		log:      log,
		cb:       cb,
		platform: cfg.Platform,
		timeNow:  time.Now,
	}
	e.pool = dispatch.NewPool(cfg.Workers, cfg.GuardBudget, throttle,
		logger.ComponentLogger("vigil.dispatch"))
	e.sched = sched.New(e.db, (*sequencer)(e), logger.ComponentLogger("vigil.sched"))

	e.registerBuiltins()
	return e
}

// DB exposes the object database for status reporting. Callers must hold
// the DB lock around any traversal.
func (e *Engine) DB() *object.DB { return e.db }

// Pool exposes the worker pool, mainly for its stats and throttle.
func (e *Engine) Pool() *dispatch.Pool { return e.pool }

// Start launches the worker pool and the scheduler thread.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	e.pool.Start()
	e.sched.Start()
	e.log.Infow("engine started")
}

// Stop shuts the scheduler and workers down. Objects and their state
// remain registered; Start may be called again.
func (e *Engine) Stop() {
	if !e.started {
		return
	}
	e.started = false
	e.sched.Stop()
	e.pool.Stop()
	e.log.Infow("engine stopped")
}

// SetThrottleThresholds applies new CPU throttle thresholds, used by
// config live-reload.
func (e *Engine) SetThrottleThresholds(warn, high int64) {
	e.pool.Throttle().SetThresholds(warn, high)
}

// notify helpers: all callbacks run without the DB lock.

func (e *Engine) notifyTestResult(name, instance string, res object.Result, value int64) {
	if e.cb.TestResult != nil {
		e.cb.TestResult(name, instance, res, value)
	}
}

func (e *Engine) notifyRuleResult(name, instance string, res object.Result) {
	if e.cb.RuleResult != nil {
		e.cb.RuleResult(name, instance, res)
	}
}

func (e *Engine) notifyActionResult(name, instance string, res object.Result) {
	if e.cb.ActionResult != nil {
		e.cb.ActionResult(name, instance, res)
	}
}

func (e *Engine) notifyComponentHealth(name string, health int64) {
	if e.cb.ComponentHealth != nil {
		e.cb.ComponentHealth(name, health)
	}
}

func (e *Engine) notifyRecoveryStarted(rule, instance string) {
	if e.cb.RecoveryStarted != nil {
		e.cb.RecoveryStarted(rule, instance)
	}
}

func (e *Engine) notifyUserAlert(text string) {
	if e.cb.UserAlert != nil {
		e.cb.UserAlert(text)
	}
}
