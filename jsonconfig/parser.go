// Package jsonconfig consumes the JSON configuration protocol that
// external diagnostic modules speak. A batch is one JSON object whose
// top-level keys are commands (test, rule, action, comp, instance, ready,
// email, result); commands apply in document order so modules can rely on
// earlier definitions, though forward references resolve either way.
//
// An unknown attribute aborts that command, not the batch.
package jsonconfig

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vigil/engine"
	"github.com/teranos/vigil/errors"
	"github.com/teranos/vigil/object"
)

// Runner executes module-owned probes and actions. The module subprocess
// runner implements it; without one, polled module tests degrade to
// notification tests fed by result commands.
type Runner interface {
	ExecTest(module, test, instance string) (object.Result, int64)
	ExecAction(module, action, instance string) object.Result
}

// Mailer delivers email-alert actions. Optional.
type Mailer interface {
	SendAlert(to, subject, body string) error
}

// Applier applies parsed configuration batches to an engine.
type Applier struct {
	eng    *engine.Engine
	runner Runner
	mailer Mailer
	log    *zap.SugaredLogger
}

// New builds an applier. runner and mailer may be nil.
func New(eng *engine.Engine, runner Runner, mailer Mailer, log *zap.SugaredLogger) *Applier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Applier{eng: eng, runner: runner, mailer: mailer, log: log}
}

// Apply parses one batch from a module and applies each command. Failed
// commands are logged and skipped; the batch keeps going. The returned
// error covers only malformed JSON at the batch level.
func (a *Applier) Apply(module string, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return errors.Wrapf(err, "module %q: bad configuration batch", module)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Newf("module %q: configuration batch must be a JSON object", module)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errors.Wrapf(err, "module %q: bad configuration batch", module)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return errors.Wrapf(err, "module %q: bad %q command payload", module, key)
		}

		if err := a.applyCommand(module, key, raw); err != nil {
			a.log.Errorw("configuration command failed",
				"module", module, "command", key, "error", err)
		}
	}

	_, err = dec.Token() // closing brace
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "module %q: bad configuration batch", module)
	}
	return nil
}

// applyCommand dispatches one command. Commands whose payload may be a
// single object or an array of objects are normalized first.
func (a *Applier) applyCommand(module, key string, raw json.RawMessage) error {
	switch key {
	case "ready":
		return a.applyReady(raw)
	case "test", "rule", "action", "comp", "instance", "email", "result":
	default:
		return errors.Newf("unknown command %q", key)
	}

	for _, item := range splitItems(raw) {
		var err error
		switch key {
		case "test":
			err = a.applyTest(module, item)
		case "rule":
			err = a.applyRule(item)
		case "action":
			err = a.applyAction(module, item)
		case "comp":
			err = a.applyComp(item)
		case "instance":
			err = a.applyInstance(item)
		case "email":
			err = a.applyEmail(item)
		case "result":
			err = a.applyResult(item)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// splitItems accepts either one object or an array of objects.
func splitItems(raw json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []json.RawMessage{raw}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return []json.RawMessage{raw}
	}
	return items
}

// strictDecode rejects unknown attributes, which aborts the command.
func strictDecode(raw json.RawMessage, into any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

// interval accepts a millisecond count or one of the built-in period
// names.
type interval time.Duration

func (iv interval) duration() time.Duration { return time.Duration(iv) }

func (iv *interval) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch name {
		case "fast":
			*iv = interval(object.PeriodFast)
		case "normal":
			*iv = interval(object.PeriodNormal)
		case "slow":
			*iv = interval(object.PeriodSlow)
		default:
			return errors.Newf("invalid interval name %q", name)
		}
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return errors.Newf("invalid interval %s", string(data))
	}
	if ms <= 0 {
		return errors.New("invalid interval period")
	}
	*iv = interval(time.Duration(ms) * time.Millisecond)
	return nil
}
