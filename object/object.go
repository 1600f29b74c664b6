package object

import "time"

// ProbeFunc is a host-supplied test probe. It runs on a worker thread with
// the DB lock released and reports the outcome; for ResultValue the second
// return carries the measured value.
type ProbeFunc func(instance string, context any) (Result, int64)

// ActionFunc is a host-supplied recovery action. ResultInProgress transfers
// responsibility to the host, which must call Engine.ActionComplete later.
type ActionFunc func(instance string, context any) Result

// TestKind distinguishes how a test is driven.
type TestKind int

const (
	TestPolled       TestKind = iota // scheduler-driven probe
	TestNotification                 // host pushes results via Engine.TestNotify
	TestCompHealth                   // reads a component's health on poll
)

func (k TestKind) String() string {
	switch k {
	case TestPolled:
		return "polled"
	case TestNotification:
		return "notification"
	case TestCompHealth:
		return "comp-health"
	default:
		return "invalid"
	}
}

// Test is the variant payload for KindTest objects.
type Test struct {
	Kind    TestKind
	Period  time.Duration
	Probe   ProbeFunc
	Context any

	// Autopass applies to notification tests: after a Fail, the test
	// auto-passes once the delay elapses with no further notification.
	// Negative means unset; zero means "pass on next scheduler tick".
	Autopass time.Duration

	// CompName names the observed component for TestCompHealth.
	CompName string
}

// Rule is the variant payload for KindRule objects.
type Rule struct {
	Op       Operator
	N, M     int64
	Severity Severity

	// Inputs are evaluated in insertion order. Each entry is a test or a
	// rule. The inverse relation (outputs) lives on Object.Consumers.
	Inputs []*Object

	// Actions dispatched when the rule triggers.
	Actions []*Object
}

// Action is the variant payload for KindAction objects.
type Action struct {
	Handler ActionFunc
	Context any

	// AlertText is set for user-alert actions; the handler routes it to
	// the host's alert surface (and the mailer when configured).
	AlertText string

	// Builtin marks the reserved platform actions (reload, switchover...).
	Builtin bool
}

// Component is the variant payload for KindComponent objects.
type Component struct {
	Members []*Object

	Health     int64 // 0..1000, clamped on every update
	Confidence int64 // 0..1000

	// FailTally counts rules currently failing, per severity bucket.
	FailTally map[Severity]int
}

// ClampHealth bounds a health value to [HealthMin, HealthMax].
func ClampHealth(h int64) int64 {
	if h < HealthMin {
		return HealthMin
	}
	if h > HealthMax {
		return HealthMax
	}
	return h
}

// Object is a named entity in the diagnostics database. Exactly one variant
// pointer is non-nil for concrete kinds; a forward reference stub has none.
type Object struct {
	Name         string
	Description  string
	Kind         Kind
	State        State
	DefaultState State // target state for chain-ready
	Flags        Flags

	Test   *Test
	Rule   *Rule
	Action *Action
	Comp   *Component

	// Consumers are the rules that take this object as an input (the
	// inverse of Rule.Inputs).
	Consumers []*Object

	// Containers are the components this object is a member of.
	Containers []*Object

	// Dependency edges for RCI. Populated for rules and components only.
	DependParents  []*Object
	DependChildren []*Object

	// Base is the always-present base instance; Instances holds named
	// sub-instances keyed by instance name.
	Base      *Instance
	Instances map[string]*Instance
}

// newObject builds an object with its base instance attached.
func newObject(name string, kind Kind) *Object {
	o := &Object{
		Name:         name,
		Kind:         kind,
		State:        StateAllocated,
		DefaultState: StateEnabled,
		Flags:        DefaultFlags,
	}
	o.Base = newInstance(o, "", nil)
	return o
}

// Enabled reports whether the object participates in evaluation and
// scheduling.
func (o *Object) Enabled() bool {
	return o.State == StateEnabled
}

// IsStub reports whether the object is an unresolved forward reference.
func (o *Object) IsStub() bool {
	return o.Kind == KindAny
}

// HasInstances reports whether the object carries named sub-instances
// beyond the base instance.
func (o *Object) HasInstances() bool {
	return len(o.Instances) > 0
}

// EachInstance visits the base instance and every named instance.
func (o *Object) EachInstance(fn func(*Instance)) {
	fn(o.Base)
	for _, in := range o.Instances {
		fn(in)
	}
}

// Instance returns the named instance, or the base instance for "".
// Returns nil when the name is unknown.
func (o *Object) Instance(name string) *Instance {
	if name == "" {
		return o.Base
	}
	return o.Instances[name]
}

// hasConsumer reports whether rule is already in the consumer list.
func (o *Object) hasConsumer(rule *Object) bool {
	for _, c := range o.Consumers {
		if c == rule {
			return true
		}
	}
	return false
}

// removeFromSlice deletes the first occurrence of target, preserving order.
func removeFromSlice(s []*Object, target *Object) []*Object {
	for i, o := range s {
		if o == target {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
