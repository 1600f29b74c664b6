package engine

import (
	"time"

	"github.com/teranos/vigil/errors"
	"github.com/teranos/vigil/object"
)

// ActionCreate registers a recovery action with a host-supplied handler.
// The handler runs on a worker thread with the DB lock released.
func (e *Engine) ActionCreate(name string, handler object.ActionFunc, context any) error {
	if handler == nil {
		return e.reject(errors.Newf("action %q: nil handler", name))
	}
	e.db.Lock()
	defer e.db.Unlock()
	o, err := e.createObject(name, object.KindAction)
	if err != nil {
		return err
	}
	o.Action.Handler = handler
	o.Action.Context = context
	return nil
}

// ActionCreateUserAlert registers an action that surfaces the given text
// to the operator (the UserAlert callback, plus the mailer when the host
// wires one).
func (e *Engine) ActionCreateUserAlert(name, text string) error {
	e.db.Lock()
	o, err := e.createObject(name, object.KindAction)
	if err != nil {
		e.db.Unlock()
		return err
	}
	o.Action.AlertText = text
	o.Action.Handler = func(instance string, _ any) object.Result {
		e.notifyUserAlert(text)
		return object.ResultPass
	}
	e.db.Unlock()
	return nil
}

// ActionComplete finishes an action whose handler earlier returned
// in-progress.
func (e *Engine) ActionComplete(name, instance string, result object.Result) error {
	switch result {
	case object.ResultPass, object.ResultFail, object.ResultAbort:
	default:
		return e.reject(errors.Newf("action %q: bad completion result %s", name, result))
	}

	e.db.Lock()
	o := e.db.Action(name)
	if o == nil {
		e.db.Unlock()
		return e.reject(errors.Wrapf(object.ErrNotFound, "action %q", name))
	}
	in := o.Instance(instance)
	if in == nil {
		e.db.Unlock()
		return e.reject(errors.Newf("action %q: unknown instance %q", name, instance))
	}
	in.InProgressSince = time.Time{}
	in.LastResult = result
	in.Stats.Record(result, 0, e.timeNow())
	e.db.Unlock()

	e.notifyActionResult(name, instance, result)
	return nil
}

// ActionSetFlags replaces an action's flag mask.
func (e *Engine) ActionSetFlags(name string, flags object.Flags) error {
	return e.setFlags(name, object.KindAction, flags)
}

// ActionGetFlags reads an action's flag mask.
func (e *Engine) ActionGetFlags(name string) (object.Flags, error) {
	return e.getFlags(name, object.KindAction)
}

// ActionSetDescription attaches informational text to an action.
func (e *Engine) ActionSetDescription(name, desc string) error {
	return e.setDescription(name, object.KindAction, desc)
}

// ActionEnable enables an action (or one instance).
func (e *Engine) ActionEnable(name, instance string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Action(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "action %q", name))
	}
	e.enableLocked(o, instance)
	return nil
}

// ActionDisable prevents the action from being dispatched.
func (e *Engine) ActionDisable(name, instance string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Action(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "action %q", name))
	}
	e.disableLocked(o, instance)
	return nil
}

// ActionDelete unregisters an action.
func (e *Engine) ActionDelete(name string) error {
	return e.deleteObject(name, object.KindAction)
}
