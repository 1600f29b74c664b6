package engine

import (
	"time"

	"github.com/teranos/vigil/errors"
	"github.com/teranos/vigil/object"
)

// TestCreatePolled registers a polled test. The probe runs on a worker
// thread every period once the test is enabled.
func (e *Engine) TestCreatePolled(name string, probe object.ProbeFunc, context any, period time.Duration) error {
	if probe == nil {
		return e.reject(errors.Newf("test %q: nil probe", name))
	}
	if period <= 0 {
		return e.reject(errors.Newf("test %q: bad period %v", name, period))
	}

	e.db.Lock()
	defer e.db.Unlock()
	o, err := e.createObject(name, object.KindTest)
	if err != nil {
		return err
	}
	o.Test.Kind = object.TestPolled
	o.Test.Probe = probe
	o.Test.Context = context
	o.Test.Period = period
	return nil
}

// TestCreateNotification registers a test whose results the host pushes
// via TestNotify.
func (e *Engine) TestCreateNotification(name string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o, err := e.createObject(name, object.KindTest)
	if err != nil {
		return err
	}
	o.Test.Kind = object.TestNotification
	return nil
}

// TestCreateCompHealth registers a polled test that yields the named
// component's current health as a value on each poll.
func (e *Engine) TestCreateCompHealth(name, comp string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o, err := e.createObject(name, object.KindTest)
	if err != nil {
		return err
	}
	o.Test.Kind = object.TestCompHealth
	o.Test.CompName = comp
	o.Test.Period = object.PeriodNormal
	return nil
}

// TestNotify reports a result for a notification test, or completes a
// probe that earlier returned in-progress. The result feeds the rule graph
// exactly as a polled completion would.
func (e *Engine) TestNotify(name, instance string, result object.Result, value int64) error {
	switch result {
	case object.ResultPass, object.ResultFail, object.ResultValue,
		object.ResultAbort, object.ResultIgnore:
	default:
		return e.reject(errors.Newf("test %q: bad notify result %s", name, result))
	}

	e.db.Lock()
	o := e.db.Test(name)
	if o == nil {
		e.db.Unlock()
		return e.reject(errors.Wrapf(object.ErrNotFound, "test %q", name))
	}
	in := o.Instance(instance)
	if in == nil {
		e.db.Unlock()
		return e.reject(errors.Newf("test %q: unknown instance %q", name, instance))
	}
	if !in.Enabled() {
		e.db.Unlock()
		return nil
	}

	in.LastNotified = result
	in.InProgressSince = time.Time{}
	post := e.completeTestLocked(in, result, value)
	e.db.Unlock()

	for _, fn := range post {
		fn()
	}
	return nil
}

// TestSetAutopass configures a notification test to auto-pass delay after
// a Fail if no further notification arrives. A zero delay means "pass on
// the next scheduler tick".
func (e *Engine) TestSetAutopass(name string, delay time.Duration) error {
	if delay < 0 {
		return e.reject(errors.Newf("test %q: negative autopass delay", name))
	}
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Test(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "test %q", name))
	}
	o.Test.Autopass = delay
	return nil
}

// TestSetFlags replaces a test's flag mask.
func (e *Engine) TestSetFlags(name string, flags object.Flags) error {
	return e.setFlags(name, object.KindTest, flags)
}

// TestGetFlags reads a test's flag mask.
func (e *Engine) TestGetFlags(name string) (object.Flags, error) {
	return e.getFlags(name, object.KindTest)
}

// TestSetDescription attaches informational text to a test.
func (e *Engine) TestSetDescription(name, desc string) error {
	return e.setDescription(name, object.KindTest, desc)
}

// TestEnable enables a test (or one named instance of it) and queues
// polled tests for their first run.
func (e *Engine) TestEnable(name, instance string) error {
	e.db.Lock()
	o := e.db.Test(name)
	if o == nil {
		e.db.Unlock()
		return e.reject(errors.Wrapf(object.ErrNotFound, "test %q", name))
	}
	insts := e.enableLocked(o, instance)
	e.db.Unlock()

	if o.Test.Kind != object.TestNotification {
		for _, in := range insts {
			e.sched.EnqueuePolled(in, false)
		}
	}
	return nil
}

// TestDisable removes the test from the scheduler and stops evaluation.
func (e *Engine) TestDisable(name, instance string) error {
	e.db.Lock()
	o := e.db.Test(name)
	if o == nil {
		e.db.Unlock()
		return e.reject(errors.Wrapf(object.ErrNotFound, "test %q", name))
	}
	insts := e.disableLocked(o, instance)
	e.db.Unlock()

	for _, in := range insts {
		e.sched.Remove(in)
	}
	return nil
}

// TestChainReady walks the chain rooted at the test (the test, the rules
// consuming it, their actions, and downstream rules transitively) and
// transitions every member to its default state. Unknown or stub tests are
// a no-op; the operation is idempotent.
func (e *Engine) TestChainReady(name string) error {
	e.db.Lock()
	o := e.db.Test(name)
	if o == nil {
		e.db.Unlock()
		return nil
	}

	var polled []*object.Instance
	visited := map[*object.Object]bool{}
	var walk func(obj *object.Object)
	walk = func(obj *object.Object) {
		if visited[obj] || obj.IsStub() {
			return
		}
		visited[obj] = true
		obj.State = obj.DefaultState
		obj.EachInstance(func(in *object.Instance) {
			in.State = obj.DefaultState
			if obj.Kind == object.KindTest && obj.Test.Kind != object.TestNotification && in.Enabled() {
				polled = append(polled, in)
			}
		})
		for _, rule := range obj.Consumers {
			walk(rule)
			for _, act := range rule.Rule.Actions {
				walk(act)
			}
		}
	}
	walk(o)
	e.db.Unlock()

	for _, in := range polled {
		e.sched.EnqueuePolled(in, false)
	}
	return nil
}

// TestDelete unregisters a test, its edges and its instances.
func (e *Engine) TestDelete(name string) error {
	return e.deleteObject(name, object.KindTest)
}
