package engine

import (
	"github.com/teranos/vigil/errors"
	"github.com/teranos/vigil/object"
)

// DependCreate records a dependency from parent onto child for root-cause
// identification. Both ends may be rules or components, and either may be
// a forward reference. An edge that would introduce a cycle is discarded
// with a log, leaving the graph unchanged.
func (e *Engine) DependCreate(parent, child string) error {
	if parent == "" || child == "" {
		return e.reject(errors.New("dependency: empty object name"))
	}
	e.db.Lock()
	defer e.db.Unlock()

	p, err := e.stubRef(parent)
	if err != nil {
		return e.reject(err)
	}
	c, err := e.stubRef(child)
	if err != nil {
		return e.reject(err)
	}
	// Cycle rejection is silent toward the caller: the edge is dropped
	// and logged, the API reports success.
	_ = e.db.AddDependency(p, c)
	return nil
}

// DependDelete is accepted for interface compatibility but not
// implemented; removing one edge of a walked graph mid-recovery has no
// safe partial semantics.
func (e *Engine) DependDelete(parent, child string) error {
	e.log.Infow("depend delete unsupported", "parent", parent, "child", child)
	return nil
}

// InstanceCreate adds a named sub-instance to a test, rule or action. The
// instance replicates the template's default state and flags and carries
// its own context.
func (e *Engine) InstanceCreate(objName, instName string, context any) error {
	if instName == "" {
		return e.reject(errors.Newf("object %q: empty instance name", objName))
	}
	e.db.Lock()
	o := e.db.Lookup(objName)
	if o == nil || o.IsStub() {
		e.db.Unlock()
		return e.reject(errors.Wrapf(object.ErrNotFound, "object %q", objName))
	}
	in := o.CreateInstance(instName, context)
	enqueue := o.Kind == object.KindTest &&
		o.Test.Kind != object.TestNotification && in.Enabled()
	e.db.Unlock()

	if enqueue {
		e.sched.EnqueuePolled(in, false)
	}
	return nil
}

// InstanceDelete removes a named sub-instance.
func (e *Engine) InstanceDelete(objName, instName string) error {
	e.db.Lock()
	o := e.db.Lookup(objName)
	if o == nil {
		e.db.Unlock()
		return e.reject(errors.Wrapf(object.ErrNotFound, "object %q", objName))
	}
	in := o.Instance(instName)
	o.DeleteInstance(instName)
	e.db.Unlock()

	if in != nil {
		e.sched.Remove(in)
	}
	return nil
}

// Instances lists the named sub-instances of an object.
func (e *Engine) Instances(objName string) []string {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Lookup(objName)
	if o == nil {
		return nil
	}
	names := make([]string, 0, len(o.Instances))
	for name := range o.Instances {
		names = append(names, name)
	}
	return names
}
