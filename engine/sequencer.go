package engine

import (
	"time"

	"github.com/teranos/vigil/object"
)

// sequencer adapts the engine to the scheduler's Runner interface. Per
// instance the cycle is idle -> running -> evaluating -> (triggering) ->
// idle; two runs for the same instance never overlap. Probe and action
// callouts happen on worker threads with the DB lock released.
type sequencer Engine

// DispatchPoll runs a polled (or comp-health) test instance on a worker.
func (s *sequencer) DispatchPoll(inst *object.Instance) {
	e := (*Engine)(s)
	e.pool.Submit(
		func(any) { e.runPolled(inst) },
		func(any) string { return "test " + inst.Key() },
		nil,
	)
}

// DispatchAutopass fires a notification test's autopass window: if no
// Fail arrived inside the delay, the test resets to Pass.
func (s *sequencer) DispatchAutopass(inst *object.Instance) {
	e := (*Engine)(s)

	e.db.Lock()
	if !inst.Enabled() || inst.LastNotified != object.ResultFail {
		e.db.Unlock()
		return
	}
	inst.LastNotified = object.ResultPass
	post := e.completeTestLocked(inst, object.ResultPass, 0)
	e.db.Unlock()

	for _, fn := range post {
		fn()
	}
}

// runPolled executes one probe cycle for a test instance.
func (e *Engine) runPolled(inst *object.Instance) {
	e.db.Lock()
	obj := inst.Object
	if obj.Test == nil || !inst.Enabled() || inst.Seq != object.SeqIdle {
		e.db.Unlock()
		return
	}

	// A probe that went in-progress and never completed counts as an
	// abort once its next tick arrives.
	if !inst.InProgressSince.IsZero() {
		inst.InProgressSince = time.Time{}
		inst.Stats.Record(object.ResultAbort, 0, e.timeNow())
		e.log.Debugw("in-progress test timed out",
			"instance", inst.Key(), "result", "abort")
	}

	inst.Seq = object.SeqRunning
	kind := obj.Test.Kind
	probe := obj.Test.Probe
	context := inst.Context
	if context == nil {
		context = obj.Test.Context
	}
	compName := obj.Test.CompName
	e.db.Unlock()

	// The callout runs with the lock released so the probe may re-enter
	// the engine API.
	var result object.Result
	var value int64
	switch kind {
	case object.TestCompHealth:
		result = object.ResultValue
		if h, err := e.ComponentHealthGet(compName); err == nil {
			value = h
		} else {
			result = object.ResultAbort
		}
	default:
		if probe == nil {
			result = object.ResultAbort
		} else {
			result, value = probe(inst.Name, context)
		}
	}

	e.db.Lock()
	inst.Seq = object.SeqEvaluating
	if result == object.ResultInProgress {
		// Completion will arrive via TestNotify.
		inst.InProgressSince = e.timeNow()
		inst.Seq = object.SeqIdle
		e.db.Unlock()
		return
	}
	post := e.completeTestLocked(inst, result, value)
	inst.Seq = object.SeqIdle
	e.db.Unlock()

	for _, fn := range post {
		fn()
	}
}

// completeTestLocked records a test outcome and drives the rule graph.
// It returns the callouts (host callbacks, action dispatches, scheduler
// requests) to run after the DB lock is released.
func (e *Engine) completeTestLocked(in *object.Instance, result object.Result, value int64) []func() {
	now := e.timeNow()
	obj := in.Object

	in.LastResult = result
	in.LastValue = value
	if in.Flags&object.FlagNoResultStats == 0 {
		in.Stats.Record(result, value, now)
	}

	post := []func(){func() {
		e.notifyTestResult(obj.Name, in.Name, result, value)
	}}

	// Arm the autopass window after every Fail on a notification test.
	if obj.Test != nil && obj.Test.Kind == object.TestNotification &&
		result == object.ResultFail && obj.Test.Autopass >= 0 {
		delay := obj.Test.Autopass
		inst := in
		post = append(post, func() { e.sched.EnqueueAutopass(inst, delay) })
	}

	// Abort and ignore short-circuit rule evaluation.
	if result == object.ResultAbort || result == object.ResultIgnore {
		return post
	}

	seen := map[*object.Instance]bool{}
	for _, rule := range obj.Consumers {
		post = append(post, e.evalRuleLocked(rule, in.Name, now, seen)...)
	}
	return post
}

// evalRuleLocked evaluates one rule for the instances paired with the
// source instance name, then recurses into downstream rules. The seen set
// breaks input cycles left by forward references.
func (e *Engine) evalRuleLocked(rule *object.Object, sourceInst string, now time.Time, seen map[*object.Instance]bool) []func() {
	if rule.Rule == nil || !rule.Enabled() {
		return nil
	}

	var targets []*object.Instance
	switch {
	case !rule.HasInstances():
		// Any source instance failing triggers the base rule once.
		targets = []*object.Instance{rule.Base}
	case sourceInst == "":
		// Fan-out: the base result reaches every rule instance.
		rule.EachInstance(func(in *object.Instance) { targets = append(targets, in) })
	default:
		// Same-named pairing only.
		if in := rule.Instances[sourceInst]; in != nil {
			targets = []*object.Instance{in}
		}
	}

	var post []func()
	for _, target := range targets {
		if !target.Enabled() || seen[target] {
			continue
		}
		seen[target] = true
		res := evaluateRule(rule, target, now)
		post = append(post, e.applyRuleResultLocked(rule, target, res, now, seen)...)
	}
	return post
}

// applyRuleResultLocked records a rule outcome, updates health on
// pass/fail boundaries, gates action dispatch through RCI, and propagates
// into downstream rules.
func (e *Engine) applyRuleResultLocked(rule *object.Object, target *object.Instance, res object.Result, now time.Time, seen map[*object.Instance]bool) []func() {
	prev := target.LastResult
	target.LastResult = res
	if target.Flags&object.FlagNoResultStats == 0 {
		target.Stats.Record(res, 0, now)
	}

	name, instName := rule.Name, target.Name
	post := []func(){func() { e.notifyRuleResult(name, instName, res) }}

	nowFailing := res == object.ResultFail
	wasFailing := prev == object.ResultFail

	if nowFailing && !wasFailing {
		post = append(post, e.updateHealthLocked(rule, true)...)
		post = append(post, e.triggerLocked(rule, target)...)
	}
	if !nowFailing && wasFailing {
		target.SuppressedBy = ""
		post = append(post, e.updateHealthLocked(rule, false)...)
	}

	// The rule's own result is the input to downstream rules.
	for _, consumer := range rule.Consumers {
		post = append(post, e.evalRuleLocked(consumer, target.Name, now, seen)...)
	}
	return post
}

// triggerLocked decides whether a freshly failing rule dispatches its
// actions now, or is suppressed because a dependency below it is also
// failing.
func (e *Engine) triggerLocked(rule *object.Object, target *object.Instance) []func() {
	if len(rule.Rule.Actions) == 0 {
		return nil
	}

	if rule.Flags&object.FlagTriggerAlways == 0 {
		isRoot, suppressor := e.rootCauseLocked(rule, target)
		if !isRoot {
			target.SuppressedBy = suppressor
			e.log.Infow("action suppressed by root-cause analysis",
				"object", rule.Name, "instance", target.Name,
				"suppressed_by", suppressor)
			return nil
		}
	}
	target.SuppressedBy = ""

	name, instName := rule.Name, target.Name
	post := []func(){func() { e.notifyRecoveryStarted(name, instName) }}
	for _, act := range rule.Rule.Actions {
		if act.IsStub() || act.Action == nil || !act.Enabled() {
			continue
		}
		action := act
		post = append(post, func() { e.dispatchAction(action, instName) })
	}
	return post
}

// dispatchAction submits an action callout to the worker pool.
func (e *Engine) dispatchAction(act *object.Object, instName string) {
	e.pool.Submit(
		func(any) { e.runAction(act, instName) },
		func(any) string { return "action " + act.Name },
		nil,
	)
}

// runAction executes one action handler with the lock released and
// records the outcome.
func (e *Engine) runAction(act *object.Object, instName string) {
	e.db.Lock()
	in := act.Instance(instName)
	if in == nil {
		in = act.Base
	}
	if !in.Enabled() || act.Action.Handler == nil {
		e.db.Unlock()
		return
	}
	handler := act.Action.Handler
	context := in.Context
	if context == nil {
		context = act.Action.Context
	}
	e.db.Unlock()

	res := handler(instName, context)

	e.db.Lock()
	if res == object.ResultInProgress {
		// The host owns completion now; ActionComplete finishes it.
		in.InProgressSince = e.timeNow()
		e.db.Unlock()
		return
	}
	in.LastResult = res
	in.Stats.Record(res, 0, e.timeNow())
	e.db.Unlock()

	e.notifyActionResult(act.Name, instName, res)
}
