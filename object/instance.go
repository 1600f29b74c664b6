package object

import "time"

// SeqState is the sequencer's per-instance position in the
// run -> evaluate -> trigger cycle. Two runs for the same instance never
// overlap; the sequencer checks this under the DB lock.
type SeqState int

const (
	SeqIdle SeqState = iota
	SeqRunning
	SeqEvaluating
	SeqTriggering
)

func (s SeqState) String() string {
	switch s {
	case SeqIdle:
		return "idle"
	case SeqRunning:
		return "running"
	case SeqEvaluating:
		return "evaluating"
	case SeqTriggering:
		return "triggering"
	default:
		return "invalid"
	}
}

// SchedSlot is the scheduler's bookkeeping for a test instance. A polled
// test occupies at most one queue at a time.
type SchedSlot struct {
	Queue    QueueID
	NextTime time.Time
}

// EvalState carries the accumulators the temporal rule operators need.
// It is meaningful only on rule instances.
type EvalState struct {
	// FailsEver counts input fails since creation (NEver).
	FailsEver int64

	// FailsInRow counts consecutive input fails (NInRow). A pass resets
	// it; a Pass-Value-Pass sequence does not double count.
	FailsInRow int64

	// Ring of the last m input outcomes (NInM), true = fail.
	Window []bool

	// FailTimes are the timestamps of recent input fails (NInTimeM).
	FailTimes []time.Time

	// FailingSince is when the input began failing continuously
	// (FailForTimeN); zero while the input passes.
	FailingSince time.Time
}

// Reset clears all accumulators.
func (e *EvalState) Reset() {
	*e = EvalState{}
}

// Instance is per-object runtime state. Every object has a base instance;
// tests, rules and actions may carry named sub-instances that share the
// object's template but own independent state, stats and last result.
//
// Two instances on different objects are paired when they carry the same
// instance name; pairing drives result propagation across chains.
type Instance struct {
	Object  *Object
	Name    string // "" for the base instance
	Context any

	State State
	Flags Flags
	Stats Stats

	LastResult Result
	LastValue  int64

	// SuppressedBy names the failing dependency that caused RCI to
	// suppress this rule's actions; empty otherwise.
	SuppressedBy string

	// LastNotified is the most recent host-notified result for
	// notification tests; it drives autopass queueing.
	LastNotified Result

	// InProgressSince is set while a probe or action has handed
	// completion responsibility to the host.
	InProgressSince time.Time

	Seq   SeqState
	Sched SchedSlot
	Eval  EvalState
}

func newInstance(o *Object, name string, context any) *Instance {
	return &Instance{
		Object:  o,
		Name:    name,
		Context: context,
		State:   o.State,
		Flags:   o.Flags,
	}
}

// Key returns the unique (object, instance) identity as a display string.
func (in *Instance) Key() string {
	if in.Name == "" {
		return in.Object.Name
	}
	return in.Object.Name + ":" + in.Name
}

// Enabled reports whether the instance participates in evaluation. The
// object must be enabled as well.
func (in *Instance) Enabled() bool {
	return in.State == StateEnabled && in.Object.Enabled()
}

// CreateInstance adds a named sub-instance replicating the template's
// default state and flags. Creating an existing name returns the existing
// instance unchanged.
func (o *Object) CreateInstance(name string, context any) *Instance {
	if name == "" {
		return o.Base
	}
	if o.Instances == nil {
		o.Instances = make(map[string]*Instance)
	}
	if in, ok := o.Instances[name]; ok {
		return in
	}
	in := newInstance(o, name, context)
	o.Instances[name] = in
	return in
}

// DeleteInstance removes a named sub-instance. Deleting the base instance
// is not possible; an empty name is a no-op.
func (o *Object) DeleteInstance(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := o.Instances[name]; !ok {
		return false
	}
	delete(o.Instances, name)
	return true
}
