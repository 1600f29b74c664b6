package engine

import (
	"github.com/teranos/vigil/object"
)

// updateHealthLocked applies a rule transition to every component that
// contains the rule. On a pass-to-fail boundary health drops by the
// rule's severity magnitude; on fail-to-pass it recovers by the same
// amount, both clamped to range. Positive severity carries a negative
// value, so the arithmetic runs on the magnitude: a recovering positive
// rule credits health back, a failing one debits it.
//
// Silent rules (the engine's own self-monitoring) and rules flagged
// no-result-stats never perturb health.
func (e *Engine) updateHealthLocked(rule *object.Object, failed bool) []func() {
	if rule.Flags&(object.FlagSilent|object.FlagNoResultStats) != 0 {
		return nil
	}
	sev := rule.Rule.Severity
	delta := int64(sev)
	if delta < 0 {
		delta = -delta
	}

	var post []func()
	for _, comp := range rule.Containers {
		if comp.Comp == nil {
			continue
		}
		c := comp.Comp
		if failed {
			c.FailTally[sev]++
			c.Health = object.ClampHealth(c.Health - delta)
		} else {
			if c.FailTally[sev] > 0 {
				c.FailTally[sev]--
			}
			c.Health = object.ClampHealth(c.Health + delta)
		}
		c.Confidence = e.componentConfidenceLocked(comp)

		name, health := comp.Name, c.Health
		e.log.Debugw("component health updated",
			"object", name, "health", health, "severity", sev.String())
		post = append(post, func() { e.notifyComponentHealth(name, health) })
	}
	return post
}

// componentConfidenceLocked derives how much the health figure can be
// trusted: full confidence minus the member tests currently aborting or
// ignored, scaled to the health range.
func (e *Engine) componentConfidenceLocked(comp *object.Object) int64 {
	total, dark := 0, 0
	for _, m := range comp.Comp.Members {
		if m.Kind != object.KindTest {
			continue
		}
		total++
		switch m.Base.LastResult {
		case object.ResultAbort, object.ResultIgnore:
			dark++
		}
	}
	if total == 0 {
		return object.HealthMax
	}
	return object.ClampHealth(object.HealthMax * int64(total-dark) / int64(total))
}
