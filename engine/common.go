package engine

import (
	"github.com/teranos/vigil/errors"
	"github.com/teranos/vigil/object"
)

// reject logs an invalid request at error level and returns the error
// unchanged. Rejected requests never mutate state.
func (e *Engine) reject(err error) error {
	e.log.Errorw("request rejected", "error", err)
	return err
}

// createObject resolves name to a concrete object of the given kind,
// upgrading a forward-reference stub in place. Names are truncated to the
// limit; a truncation that lands on an existing object of the same kind is
// rejected rather than silently merged.
//
// Callers hold the DB lock.
func (e *Engine) createObject(name string, kind object.Kind) (*object.Object, error) {
	if name == "" {
		return nil, e.reject(errors.Newf("empty %s name", kind))
	}
	short, truncated := object.TruncateName(name)
	if truncated {
		if existing := e.db.Lookup(short); existing != nil && !existing.IsStub() {
			err := errors.Wrapf(object.ErrTruncated, "%s %q", kind, name)
			err = errors.WithDetailf(err, "truncated to %q which already exists", short)
			return nil, e.reject(err)
		}
		e.log.Infow("object name truncated", "object", short, "kind", kind.String())
	}

	o, err := e.db.GetOrCreate(short, kind)
	if err != nil {
		return nil, e.reject(err)
	}
	if o.State == object.StateAllocated {
		o.State = object.StateCreated
		o.Base.State = object.StateCreated
	}
	return o, nil
}

// stubRef resolves a name that may not exist yet, creating an Any-kind
// stub for forward references. Callers hold the DB lock.
func (e *Engine) stubRef(name string) (*object.Object, error) {
	short, _ := object.TruncateName(name)
	if o := e.db.Lookup(short); o != nil {
		return o, nil
	}
	return e.db.GetOrCreate(short, object.KindAny)
}

func (e *Engine) setFlags(name string, kind object.Kind, flags object.Flags) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Get(name, kind)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "%s %q", kind, name))
	}
	o.Flags = flags
	o.EachInstance(func(in *object.Instance) { in.Flags = flags })
	return nil
}

func (e *Engine) getFlags(name string, kind object.Kind) (object.Flags, error) {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Get(name, kind)
	if o == nil {
		return 0, e.reject(errors.Wrapf(object.ErrNotFound, "%s %q", kind, name))
	}
	return o.Flags, nil
}

func (e *Engine) setDescription(name string, kind object.Kind, desc string) error {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Get(name, kind)
	if o == nil {
		return e.reject(errors.Wrapf(object.ErrNotFound, "%s %q", kind, name))
	}
	o.Description = object.TruncateDesc(desc)
	return nil
}

// enableLocked transitions an object (or one instance) to Enabled and
// returns the instances that became runnable.
func (e *Engine) enableLocked(o *object.Object, instance string) []*object.Instance {
	var out []*object.Instance
	if instance != "" {
		if in := o.Instance(instance); in != nil {
			in.State = object.StateEnabled
			if o.State != object.StateEnabled {
				o.State = object.StateEnabled
			}
			out = append(out, in)
		}
		return out
	}
	o.State = object.StateEnabled
	o.EachInstance(func(in *object.Instance) {
		in.State = object.StateEnabled
		out = append(out, in)
	})
	return out
}

// disableLocked transitions an object (or one instance) to Disabled,
// leaving flags and stats untouched, and returns the instances to pull
// from the scheduler.
func (e *Engine) disableLocked(o *object.Object, instance string) []*object.Instance {
	var out []*object.Instance
	if instance != "" {
		if in := o.Instance(instance); in != nil {
			in.State = object.StateDisabled
			out = append(out, in)
		}
		return out
	}
	o.State = object.StateDisabled
	o.EachInstance(func(in *object.Instance) {
		in.State = object.StateDisabled
		out = append(out, in)
	})
	return out
}

// deleteObject removes an object entirely, pulling its instances from the
// scheduler first.
func (e *Engine) deleteObject(name string, kind object.Kind) error {
	e.db.Lock()
	o := e.db.Get(name, kind)
	if o == nil {
		e.db.Unlock()
		return nil
	}
	var insts []*object.Instance
	o.EachInstance(func(in *object.Instance) { insts = append(insts, in) })
	e.db.Unlock()

	for _, in := range insts {
		e.sched.Remove(in)
	}

	e.db.Lock()
	e.db.Delete(name)
	e.db.Unlock()
	return nil
}
