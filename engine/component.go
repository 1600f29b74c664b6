package engine

import (
	"github.com/teranos/vigil/errors"
	"github.com/teranos/vigil/object"
)

// ComponentCreate registers a component grouping.
func (e *Engine) ComponentCreate(name string) error {
	e.db.Lock()
	defer e.db.Unlock()
	_, err := e.createObject(name, object.KindComponent)
	return err
}

// ComponentContains places a child object (any kind, components included)
// into the component's member set. Forward references are permitted.
func (e *Engine) ComponentContains(parent, child string) error {
	if child == "" {
		return e.reject(errors.Newf("component %q: empty member name", parent))
	}
	e.db.Lock()
	defer e.db.Unlock()
	comp, err := e.createObject(parent, object.KindComponent)
	if err != nil {
		return err
	}
	member, err := e.stubRef(child)
	if err != nil {
		return e.reject(err)
	}
	e.db.Contains(comp, member)
	return nil
}

// ComponentContainsMany adds several members in one call.
func (e *Engine) ComponentContainsMany(parent string, children ...string) error {
	for _, child := range children {
		if err := e.ComponentContains(parent, child); err != nil {
			return err
		}
	}
	return nil
}

// ComponentHealthGet reads the component's current health (0-1000).
func (e *Engine) ComponentHealthGet(name string) (int64, error) {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Component(name)
	if o == nil {
		return 0, e.reject(errors.Wrapf(object.ErrNotFound, "component %q", name))
	}
	return o.Comp.Health, nil
}

// ComponentHealthSet overrides the component's health, clamped to range.
// Subsequent rule transitions adjust from the new value.
func (e *Engine) ComponentHealthSet(name string, health int64) error {
	e.db.Lock()
	o := e.db.Component(name)
	if o == nil {
		e.db.Unlock()
		return e.reject(errors.Wrapf(object.ErrNotFound, "component %q", name))
	}
	o.Comp.Health = object.ClampHealth(health)
	h := o.Comp.Health
	e.db.Unlock()

	e.notifyComponentHealth(name, h)
	return nil
}

// ComponentSetDescription attaches informational text to a component.
func (e *Engine) ComponentSetDescription(name, desc string) error {
	return e.setDescription(name, object.KindComponent, desc)
}

// ComponentEnable enables the component.
func (e *Engine) ComponentEnable(name string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Component(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "component %q", name))
	}
	e.enableLocked(o, "")
	return nil
}

// ComponentDisable disables the component.
func (e *Engine) ComponentDisable(name string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Component(name)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "component %q", name))
	}
	e.disableLocked(o, "")
	return nil
}

// ComponentDelete unregisters a component. Members survive; only the
// grouping disappears.
func (e *Engine) ComponentDelete(name string) error {
	return e.deleteObject(name, object.KindComponent)
}
