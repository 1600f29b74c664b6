package engine

import (
	"github.com/teranos/vigil/errors"
	"github.com/teranos/vigil/object"
)

// RuleCreate registers a rule over one input with one action. Both the
// input and the action may be forward references: a missing target becomes
// a stub that is upgraded when the real object is created.
//
// The rule defaults to the on-fail operator at medium severity.
func (e *Engine) RuleCreate(name, inputName, actionName string) error {
	e.db.Lock()
	defer e.db.Unlock()

	o, err := e.createObject(name, object.KindRule)
	if err != nil {
		return err
	}
	if inputName != "" {
		input, err := e.stubRef(inputName)
		if err != nil {
			return e.reject(err)
		}
		e.db.AddInput(o, input)
	}
	if actionName != "" {
		action, err := e.stubRef(actionName)
		if err != nil {
			return e.reject(err)
		}
		e.db.AddAction(o, action)
	}
	return nil
}

// RuleSetType sets the rule's operator and operands. Operand requirements
// are checked where they can be (NInM with n > m is accepted but evaluates
// to Ignore, per the configuration-error contract).
func (e *Engine) RuleSetType(name string, op object.Operator, n, m int64) error {
	if op <= object.OpInvalid || op > object.OpAnd {
		return e.reject(errors.Newf("rule %q: unknown operator %d", name, op))
	}
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Rule(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "rule %q", name))
	}
	o.Rule.Op = op
	o.Rule.N = n
	o.Rule.M = m
	o.EachInstance(func(in *object.Instance) { in.Eval.Reset() })
	return nil
}

// RuleAddInput appends another input (test or rule) to the rule's ordered
// input list. Forward references are permitted.
func (e *Engine) RuleAddInput(name, inputName string) error {
	if inputName == "" {
		return e.reject(errors.Newf("rule %q: empty input name", name))
	}
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Rule(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "rule %q", name))
	}
	input, err := e.stubRef(inputName)
	if err != nil {
		return e.reject(err)
	}
	e.db.AddInput(o, input)
	return nil
}

// RuleAddAction appends another action to fire when the rule triggers.
func (e *Engine) RuleAddAction(name, actionName string) error {
	if actionName == "" {
		return e.reject(errors.Newf("rule %q: empty action name", name))
	}
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Rule(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "rule %q", name))
	}
	action, err := e.stubRef(actionName)
	if err != nil {
		return e.reject(err)
	}
	e.db.AddAction(o, action)
	return nil
}

// RuleSetSeverity sets the health weight applied on this rule's pass/fail
// transitions.
func (e *Engine) RuleSetSeverity(name string, sev object.Severity) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Rule(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "rule %q", name))
	}
	o.Rule.Severity = sev
	return nil
}

// RuleSetFlags replaces a rule's flag mask.
func (e *Engine) RuleSetFlags(name string, flags object.Flags) error {
	return e.setFlags(name, object.KindRule, flags)
}

// RuleGetFlags reads a rule's flag mask.
func (e *Engine) RuleGetFlags(name string) (object.Flags, error) {
	return e.getFlags(name, object.KindRule)
}

// RuleSetDescription attaches informational text to a rule.
func (e *Engine) RuleSetDescription(name, desc string) error {
	return e.setDescription(name, object.KindRule, desc)
}

// RuleEnable enables a rule (or one instance).
func (e *Engine) RuleEnable(name, instance string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Rule(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "rule %q", name))
	}
	e.enableLocked(o, instance)
	return nil
}

// RuleDisable stops the rule from evaluating.
func (e *Engine) RuleDisable(name, instance string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Rule(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "rule %q", name))
	}
	e.disableLocked(o, instance)
	return nil
}

// RuleDelete unregisters a rule, its edges and its instances.
func (e *Engine) RuleDelete(name string) error {
	return e.deleteObject(name, object.KindRule)
}
