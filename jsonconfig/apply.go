package jsonconfig

import (
	"encoding/json"

	"github.com/teranos/vigil/errors"
	"github.com/teranos/vigil/object"
)

// Operator and severity names on the wire.
var operatorNames = map[string]object.Operator{
	"SWDIAG_RULE_ON_FAIL":         object.OpOnFail,
	"SWDIAG_RULE_DISABLE":         object.OpDisable,
	"SWDIAG_RULE_EQUAL_TO_N":      object.OpEqualToN,
	"SWDIAG_RULE_NOT_EQUAL_TO_N":  object.OpNotEqualToN,
	"SWDIAG_RULE_LESS_THAN_N":     object.OpLessThanN,
	"SWDIAG_RULE_GREATER_THAN_N":  object.OpGreaterThanN,
	"SWDIAG_RULE_N_EVER":          object.OpNEver,
	"SWDIAG_RULE_N_IN_ROW":        object.OpNInRow,
	"SWDIAG_RULE_N_IN_M":          object.OpNInM,
	"SWDIAG_RULE_RANGE_N_TO_M":    object.OpRangeNToM,
	"SWDIAG_RULE_N_IN_TIME_M":     object.OpNInTimeM,
	"SWDIAG_RULE_FAIL_FOR_TIME_N": object.OpFailForTimeN,
	"SWDIAG_RULE_OR":              object.OpOr,
	"SWDIAG_RULE_AND":             object.OpAnd,
}

var severityNames = map[string]object.Severity{
	"SWDIAG_SEVERITY_CATASTROPHIC": object.SeverityCatastrophic,
	"SWDIAG_SEVERITY_CRITICAL":     object.SeverityCritical,
	"SWDIAG_SEVERITY_HIGH":         object.SeverityHigh,
	"SWDIAG_SEVERITY_MEDIUM":       object.SeverityMedium,
	"SWDIAG_SEVERITY_LOW":          object.SeverityLow,
	"SWDIAG_SEVERITY_NONE":         object.SeverityNone,
	"SWDIAG_SEVERITY_POSITIVE":     object.SeverityPositive,
}

var resultNames = map[string]object.Result{
	"pass":   object.ResultPass,
	"fail":   object.ResultFail,
	"ignore": object.ResultIgnore,
	"value":  object.ResultValue,
}

type testCmd struct {
	Name        string   `json:"name"`
	Polled      bool     `json:"polled"`
	Interval    interval `json:"interval"`
	Comp        string   `json:"comp"`
	Description string   `json:"description"`
	Health      string   `json:"health"`
}

func (a *Applier) applyTest(module string, raw json.RawMessage) error {
	var cmd testCmd
	if err := strictDecode(raw, &cmd); err != nil {
		return errors.Wrap(err, "invalid test attribute")
	}
	if cmd.Name == "" {
		return errors.New("test requires a name")
	}

	switch {
	case cmd.Health != "":
		if err := a.eng.TestCreateCompHealth(cmd.Name, cmd.Health); err != nil {
			return err
		}
	case cmd.Polled:
		if cmd.Interval <= 0 {
			return errors.Newf("test %q: polled test requires an interval", cmd.Name)
		}
		probe := a.moduleProbe(module, cmd.Name)
		if probe == nil {
			// No module runner attached; results arrive as result
			// commands instead.
			a.log.Infow("no module runner, registering notification test",
				"module", module, "object", cmd.Name)
			if err := a.eng.TestCreateNotification(cmd.Name); err != nil {
				return err
			}
			break
		}
		if err := a.eng.TestCreatePolled(cmd.Name, probe, nil, cmd.Interval.duration()); err != nil {
			return err
		}
	default:
		if err := a.eng.TestCreateNotification(cmd.Name); err != nil {
			return err
		}
	}

	if cmd.Description != "" {
		_ = a.eng.TestSetDescription(cmd.Name, cmd.Description)
	}
	if cmd.Comp != "" {
		_ = a.eng.ComponentContains(cmd.Comp, cmd.Name)
	}
	return nil
}

func (a *Applier) moduleProbe(module, test string) object.ProbeFunc {
	if a.runner == nil {
		return nil
	}
	runner := a.runner
	return func(instance string, _ any) (object.Result, int64) {
		return runner.ExecTest(module, test, instance)
	}
}

type ruleCmd struct {
	Name        string `json:"name"`
	Input       string `json:"input"`
	Action      string `json:"action"`
	Comp        string `json:"comp"`
	Operator    string `json:"operator"`
	N           int64  `json:"n"`
	M           int64  `json:"m"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

func (a *Applier) applyRule(raw json.RawMessage) error {
	var cmd ruleCmd
	if err := strictDecode(raw, &cmd); err != nil {
		return errors.Wrap(err, "invalid rule attribute")
	}
	if cmd.Name == "" || cmd.Input == "" {
		return errors.New("rule requires a name and an input")
	}

	op := object.OpOnFail
	if cmd.Operator != "" {
		var ok bool
		if op, ok = operatorNames[cmd.Operator]; !ok {
			return errors.Newf("rule %q: invalid operator %q", cmd.Name, cmd.Operator)
		}
	}
	// Severity zero (SWDIAG_SEVERITY_NONE) is a legitimate explicit
	// setting, so presence is tracked separately from the value.
	sev := object.SeverityNone
	sevSet := false
	if cmd.Severity != "" {
		var ok bool
		if sev, ok = severityNames[cmd.Severity]; !ok {
			return errors.Newf("rule %q: invalid severity %q", cmd.Name, cmd.Severity)
		}
		sevSet = true
	}

	if err := a.eng.RuleCreate(cmd.Name, cmd.Input, cmd.Action); err != nil {
		return err
	}
	if op != object.OpOnFail {
		_ = a.eng.RuleSetType(cmd.Name, op, cmd.N, cmd.M)
	}
	if sevSet {
		_ = a.eng.RuleSetSeverity(cmd.Name, sev)
	}
	if cmd.Description != "" {
		_ = a.eng.RuleSetDescription(cmd.Name, cmd.Description)
	}
	// Membership, never description: the comp attribute places the rule
	// into a component.
	if cmd.Comp != "" {
		_ = a.eng.ComponentContains(cmd.Comp, cmd.Name)
	}
	return nil
}

type actionCmd struct {
	Name string `json:"name"`
}

func (a *Applier) applyAction(module string, raw json.RawMessage) error {
	var cmd actionCmd
	if err := strictDecode(raw, &cmd); err != nil {
		return errors.Wrap(err, "invalid action attribute")
	}
	if cmd.Name == "" {
		return errors.New("action requires a name")
	}

	name := cmd.Name
	if a.runner != nil {
		runner := a.runner
		return a.eng.ActionCreate(name, func(instance string, _ any) object.Result {
			return runner.ExecAction(module, name, instance)
		}, nil)
	}
	return a.eng.ActionCreate(name, func(string, any) object.Result {
		a.log.Infow("module action fired without a runner",
			"module", module, "action", name)
		return object.ResultPass
	}, nil)
}

type compCmd struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
}

func (a *Applier) applyComp(raw json.RawMessage) error {
	var cmd compCmd
	if err := strictDecode(raw, &cmd); err != nil {
		return errors.Wrap(err, "invalid comp attribute")
	}
	if cmd.Name == "" {
		return errors.New("comp requires a name")
	}
	if err := a.eng.ComponentCreate(cmd.Name); err != nil {
		return err
	}
	if cmd.Parent != "" {
		return a.eng.ComponentContains(cmd.Parent, cmd.Name)
	}
	return nil
}

type instanceCmd struct {
	Name   string `json:"name"`
	Object string `json:"object"`
	Delete bool   `json:"delete"`
}

func (a *Applier) applyInstance(raw json.RawMessage) error {
	var cmd instanceCmd
	if err := strictDecode(raw, &cmd); err != nil {
		return errors.Wrap(err, "invalid instance attribute")
	}
	if cmd.Name == "" || cmd.Object == "" {
		return errors.New("instance requires a name and an object")
	}
	if cmd.Delete {
		return a.eng.InstanceDelete(cmd.Object, cmd.Name)
	}
	return a.eng.InstanceCreate(cmd.Object, cmd.Name, nil)
}

type emailCmd struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	To       string `json:"to"`
	Command  string `json:"command"`
	Instance string `json:"instance"`
}

func (a *Applier) applyEmail(raw json.RawMessage) error {
	var cmd emailCmd
	if err := strictDecode(raw, &cmd); err != nil {
		return errors.Wrap(err, "invalid email attribute")
	}
	if cmd.Name == "" || cmd.Subject == "" {
		return errors.New("email alert requires a name and a subject")
	}

	mailer := a.mailer
	to, subject, body := cmd.To, cmd.Subject, cmd.Command
	err := a.eng.ActionCreate(cmd.Name, func(instance string, _ any) object.Result {
		if mailer == nil {
			a.log.Infow("email alert fired without a mailer",
				"action", cmd.Name, "subject", subject)
			return object.ResultPass
		}
		if err := mailer.SendAlert(to, subject, body); err != nil {
			a.log.Errorw("email alert delivery failed",
				"action", cmd.Name, "error", err)
			return object.ResultFail
		}
		return object.ResultPass
	}, nil)
	if err != nil {
		return err
	}
	if cmd.Instance != "" {
		return a.eng.InstanceCreate(cmd.Name, cmd.Instance, nil)
	}
	return nil
}

type resultCmd struct {
	Test     string `json:"test"`
	Instance string `json:"instance"`
	Result   string `json:"result"`
	Value    int64  `json:"value"`
}

func (a *Applier) applyResult(raw json.RawMessage) error {
	var cmd resultCmd
	if err := strictDecode(raw, &cmd); err != nil {
		return errors.Wrap(err, "invalid result attribute")
	}
	res, ok := resultNames[cmd.Result]
	if !ok {
		return errors.Newf("result %q: invalid result %q", cmd.Test, cmd.Result)
	}
	return a.eng.TestNotify(cmd.Test, cmd.Instance, res, cmd.Value)
}

// applyReady enables each named chain.
func (a *Applier) applyReady(raw json.RawMessage) error {
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return errors.Wrap(err, "ready requires an array of test names")
	}
	for _, name := range names {
		if err := a.eng.TestChainReady(name); err != nil {
			return err
		}
	}
	return nil
}
