package engine

import (
	"time"

	"github.com/teranos/vigil/object"
)

// reading is one input's contribution to a rule evaluation.
type reading struct {
	result object.Result
	value  int64
}

// failed treats an explicit Fail as failing for every operator; value
// inputs fail only through the value predicates.
func (r reading) failed() bool { return r.result == object.ResultFail }

// predValue is the value handed to the value-consuming operators: the
// measured value for Value inputs, zero for Pass inputs.
func (r reading) predValue() int64 {
	if r.result == object.ResultValue {
		return r.value
	}
	return 0
}

// gatherInputs collects the rule's inputs in insertion order, resolving
// instance pairing:
//
//   - a named rule instance reads the same-named input instance, falling
//     back to the input's base instance when the input has none;
//   - the base rule instance of an input that carries instances reads a
//     combined result, failing when any input instance fails.
//
// Inputs that are disabled, unresolved stubs, or whose reading is
// Ignore/Abort are excluded. The second return reports whether any input
// was configured at all, which the empty-set operator semantics need.
func gatherInputs(o *object.Object, instName string) ([]reading, bool) {
	rule := o.Rule
	if rule == nil || len(rule.Inputs) == 0 {
		return nil, false
	}

	var out []reading
	for _, input := range rule.Inputs {
		if input.IsStub() || !input.Enabled() {
			continue
		}
		r, ok := readInput(input, instName)
		if !ok {
			continue
		}
		switch r.result {
		case object.ResultIgnore, object.ResultAbort, object.ResultInvalid:
			continue
		}
		out = append(out, r)
	}
	return out, true
}

func readInput(input *object.Object, instName string) (reading, bool) {
	if instName != "" {
		in := input.Instance(instName)
		if in == nil {
			in = input.Base
		}
		if !in.Enabled() {
			return reading{}, false
		}
		return reading{result: in.LastResult, value: in.LastValue}, true
	}

	// Base consumer over an instanced input: any instance failing fails
	// the combined reading once.
	if input.HasInstances() {
		combined := reading{result: input.Base.LastResult, value: input.Base.LastValue}
		input.EachInstance(func(in *object.Instance) {
			if in.Enabled() && in.LastResult == object.ResultFail {
				combined.result = object.ResultFail
			}
		})
		return combined, true
	}
	if !input.Base.Enabled() {
		return reading{}, false
	}
	return reading{result: input.Base.LastResult, value: input.Base.LastValue}, true
}

// evaluateRule applies the rule's operator to its gathered inputs and
// updates the instance's temporal accumulators. Inputs are evaluated in
// insertion order; bounds on the range operators are inclusive.
func evaluateRule(o *object.Object, in *object.Instance, now time.Time) object.Result {
	rule := o.Rule
	readings, configured := gatherInputs(o, in.Name)

	// A rule whose inputs are all ignored is itself Ignore; a rule with
	// no inputs configured falls through to the empty-set semantics.
	if configured && len(readings) == 0 {
		return object.ResultIgnore
	}

	anyFail := false
	allPass := true
	for _, r := range readings {
		if r.failed() {
			anyFail = true
			allPass = false
		}
	}
	if len(readings) == 0 {
		allPass = false
	}

	failsValuePred := func(pred func(v int64) bool) bool {
		for _, r := range readings {
			if r.failed() || pred(r.predValue()) {
				return true
			}
		}
		return false
	}

	fail := func(failed bool) object.Result {
		if failed {
			return object.ResultFail
		}
		return object.ResultPass
	}

	switch rule.Op {
	case object.OpOnFail:
		return fail(anyFail)

	case object.OpDisable:
		return object.ResultPass

	case object.OpEqualToN:
		return fail(failsValuePred(func(v int64) bool { return v == rule.N }))

	case object.OpNotEqualToN:
		return fail(failsValuePred(func(v int64) bool { return v != rule.N }))

	case object.OpLessThanN:
		return fail(failsValuePred(func(v int64) bool { return v < rule.N }))

	case object.OpGreaterThanN:
		return fail(failsValuePred(func(v int64) bool { return v > rule.N }))

	case object.OpRangeNToM:
		return fail(failsValuePred(func(v int64) bool { return v >= rule.N && v <= rule.M }))

	case object.OpNEver:
		if anyFail {
			in.Eval.FailsEver++
		}
		return fail(in.Eval.FailsEver >= rule.N)

	case object.OpNInRow:
		if anyFail {
			in.Eval.FailsInRow++
		} else {
			// A pass (Value results included) breaks the run.
			in.Eval.FailsInRow = 0
		}
		return fail(in.Eval.FailsInRow >= rule.N)

	case object.OpNInM:
		if rule.N > rule.M || rule.M <= 0 {
			return object.ResultIgnore
		}
		in.Eval.Window = append(in.Eval.Window, anyFail)
		if int64(len(in.Eval.Window)) > rule.M {
			in.Eval.Window = in.Eval.Window[len(in.Eval.Window)-int(rule.M):]
		}
		fails := int64(0)
		for _, f := range in.Eval.Window {
			if f {
				fails++
			}
		}
		return fail(fails >= rule.N)

	case object.OpNInTimeM:
		window := time.Duration(rule.M) * time.Millisecond
		if anyFail {
			in.Eval.FailTimes = append(in.Eval.FailTimes, now)
		}
		cutoff := now.Add(-window)
		times := in.Eval.FailTimes[:0]
		for _, t := range in.Eval.FailTimes {
			if !t.Before(cutoff) {
				times = append(times, t)
			}
		}
		in.Eval.FailTimes = times
		return fail(int64(len(in.Eval.FailTimes)) >= rule.N)

	case object.OpFailForTimeN:
		if !anyFail {
			in.Eval.FailingSince = time.Time{}
			return object.ResultPass
		}
		if in.Eval.FailingSince.IsZero() {
			in.Eval.FailingSince = now
		}
		hold := time.Duration(rule.N) * time.Millisecond
		return fail(now.Sub(in.Eval.FailingSince) >= hold)

	case object.OpOr:
		// Pass iff any input passed; empty set fails.
		for _, r := range readings {
			if !r.failed() {
				return object.ResultPass
			}
		}
		return object.ResultFail

	case object.OpAnd:
		// Pass iff every input passed; empty set passes.
		if len(readings) == 0 {
			return object.ResultPass
		}
		return fail(!allPass)

	default:
		return object.ResultIgnore
	}
}
