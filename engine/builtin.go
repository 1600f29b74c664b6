package engine

import (
	"github.com/teranos/vigil/object"
)

// Reserved built-in action names.
const (
	ActionReload              = "Built-in-reload"
	ActionSwitchover          = "Built-in-switchover"
	ActionReloadStandby       = "Built-in-reload-standby"
	ActionScheduledReload     = "Built-in-scheduled-reload"
	ActionScheduledSwitchover = "Built-in-scheduled-switchover"
	ActionNoop                = "Built-in-No-op"
)

// Internal self-monitoring object names.
const (
	cpuUsageTest   = "Vigil CPU Usage"
	cpuWarnRule    = "Vigil CPU Warn"
	cpuHighRule    = "Vigil CPU High"
	throttleWarn   = "Vigil Throttle Warn"
	throttleHigh   = "Vigil Throttle High"
	schedulerTest  = "Vigil Scheduler Test"
	schedulerRule  = "Vigil Scheduler"
	schedulerRecov = "Vigil Scheduler Recover"
)

// registerBuiltins wires the reserved components, the built-in platform
// actions, the CPU throttle diagnostic and the scheduler self-test into a
// fresh engine.
func (e *Engine) registerBuiltins() {
	_ = e.ComponentCreate(ComponentSystem)
	_ = e.ComponentCreate(ComponentStandbyRP)
	_ = e.ComponentEnable(ComponentSystem)
	_ = e.ComponentEnable(ComponentStandbyRP)

	e.registerPlatformAction(ActionReload, e.platform.Reload)
	e.registerPlatformAction(ActionSwitchover, e.platform.Switchover)
	e.registerPlatformAction(ActionReloadStandby, e.platform.ReloadStandby)
	e.registerPlatformAction(ActionScheduledReload, e.platform.ScheduledReload)
	e.registerPlatformAction(ActionScheduledSwitchover, e.platform.ScheduledSwitchover)
	_ = e.ActionCreate(ActionNoop, func(string, any) object.Result {
		return object.ResultPass
	}, nil)

	e.registerThrottleDiag()
	e.registerSchedulerSelfTest()
}

// registerPlatformAction binds a reserved action name to a host OS hook.
// Without a hook the action logs and passes, so rules wired to built-ins
// stay harmless on hosts that supply none.
func (e *Engine) registerPlatformAction(name string, hook func()) {
	_ = e.ActionCreate(name, func(string, any) object.Result {
		if hook == nil {
			e.log.Infow("built-in action has no platform hook", "action", name)
			return object.ResultPass
		}
		hook()
		return object.ResultPass
	}, nil)
	e.db.Lock()
	if o := e.db.Action(name); o != nil {
		o.Action.Builtin = true
	}
	e.db.Unlock()
	_ = e.ActionEnable(name, "")
}

// registerThrottleDiag monitors the engine's own CPU and logs when the warn
// and high thresholds are crossed; the job delay itself comes from the
// pool's throttle on every job step. The rules are silent so the engine's
// self-observation never moves component health.
func (e *Engine) registerThrottleDiag() {
	throttle := e.pool.Throttle()

	_ = e.TestCreatePolled(cpuUsageTest, func(string, any) (object.Result, int64) {
		throttle.Sample()
		return object.ResultValue, throttle.CPUTenths()
	}, nil, object.PeriodFast)

	_ = e.ActionCreate(throttleWarn, func(string, any) object.Result {
		e.log.Infow("engine CPU above warn threshold",
			"cpu_tenths", throttle.CPUTenths())
		return object.ResultPass
	}, nil)
	_ = e.ActionCreate(throttleHigh, func(string, any) object.Result {
		e.log.Warnw("engine CPU above high threshold, jobs delayed",
			"cpu_tenths", throttle.CPUTenths(),
			"delay_ms", throttle.Delay().Milliseconds())
		return object.ResultPass
	}, nil)

	warn, high := throttle.Thresholds()

	_ = e.RuleCreate(cpuWarnRule, cpuUsageTest, throttleWarn)
	_ = e.RuleSetType(cpuWarnRule, object.OpGreaterThanN, warn, 0)
	_ = e.RuleSetSeverity(cpuWarnRule, object.SeverityLow)
	_ = e.RuleSetFlags(cpuWarnRule, object.DefaultFlags|object.FlagSilent|object.FlagTriggerAlways)

	_ = e.RuleCreate(cpuHighRule, cpuUsageTest, throttleHigh)
	_ = e.RuleSetType(cpuHighRule, object.OpGreaterThanN, high, 0)
	_ = e.RuleSetSeverity(cpuHighRule, object.SeverityMedium)
	_ = e.RuleSetFlags(cpuHighRule, object.DefaultFlags|object.FlagSilent|object.FlagTriggerAlways)

	_ = e.ComponentContainsMany(ComponentSystem, cpuUsageTest, cpuWarnRule, cpuHighRule)
	_ = e.TestChainReady(cpuUsageTest)
}

// registerSchedulerSelfTest detects a stalled scheduler thread and
// recovers by re-draining every enabled polled test.
func (e *Engine) registerSchedulerSelfTest() {
	_ = e.TestCreatePolled(schedulerTest, func(string, any) (object.Result, int64) {
		last := e.sched.LastWake()
		if last.IsZero() {
			return object.ResultIgnore, 0
		}
		if e.timeNow().Sub(last) > 3*object.PeriodFast {
			return object.ResultFail, 0
		}
		return object.ResultPass, 0
	}, nil, object.PeriodFast)

	_ = e.ActionCreate(schedulerRecov, func(string, any) object.Result {
		e.log.Errorw("scheduler stall detected, re-queueing all tests")
		// Block rejects ordinary enqueues for the duration of the
		// recovery walk; Unblock re-drains every enabled polled test.
		e.sched.Block()
		e.sched.Unblock()
		return object.ResultPass
	}, nil)

	_ = e.RuleCreate(schedulerRule, schedulerTest, schedulerRecov)
	_ = e.RuleSetType(schedulerRule, object.OpNInRow, 2, 0)
	_ = e.RuleSetSeverity(schedulerRule, object.SeverityMedium)
	_ = e.RuleSetFlags(schedulerRule, object.DefaultFlags|object.FlagSilent|object.FlagTriggerAlways)

	_ = e.ComponentContainsMany(ComponentSystem, schedulerTest, schedulerRule)
	_ = e.TestChainReady(schedulerTest)
}
