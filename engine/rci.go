package engine

import (
	"github.com/teranos/vigil/object"
)

// rootCauseLocked decides whether a failing rule is the root cause of its
// failure domain. It walks the dependency closure below the rule
// (components expand to their contained rules), re-drives the tests
// feeding each dependency through the immediate queue, and checks whether
// any dependency is itself failing.
//
// Rules that are part of a dependency loop share root-cause status, so a
// loop never suppresses actions indefinitely.
func (e *Engine) rootCauseLocked(rule *object.Object, target *object.Instance) (bool, string) {
	deps := e.db.DependencyClosure(rule)
	if len(deps) == 0 {
		return true, ""
	}

	for _, d := range deps {
		if !d.Enabled() {
			continue
		}

		for _, tin := range e.feedingTestsLocked(d, target.Name) {
			e.sched.EnqueueImmediate(tin, false)
		}

		din := d.Instance(target.Name)
		if din == nil {
			din = d.Base
		}
		if din.LastResult != object.ResultFail {
			continue
		}
		if e.db.Reaches(d, rule) {
			// d depends back on this rule: same loop-domain.
			continue
		}
		return false, d.Name
	}
	return true, ""
}

// feedingTestsLocked gathers the test instances feeding a rule, walking
// through intermediate rules. Instance pairing follows the failing
// instance's name, falling back to the base instance.
func (e *Engine) feedingTestsLocked(rule *object.Object, instName string) []*object.Instance {
	var out []*object.Instance
	visited := map[*object.Object]bool{}
	var walk func(o *object.Object)
	walk = func(o *object.Object) {
		if visited[o] || o.Rule == nil {
			return
		}
		visited[o] = true
		for _, input := range o.Rule.Inputs {
			switch input.Kind {
			case object.KindTest:
				if input.Test.Kind == object.TestNotification || !input.Enabled() {
					continue
				}
				in := input.Instance(instName)
				if in == nil {
					in = input.Base
				}
				if in.Enabled() {
					out = append(out, in)
				}
			case object.KindRule:
				walk(input)
			}
		}
	}
	walk(rule)
	return out
}
