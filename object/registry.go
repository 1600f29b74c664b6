package object

import (
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/vigil/errors"
)

// Sentinel errors surfaced by the registry.
var (
	ErrNotFound     = errors.New("object not found")
	ErrKindMismatch = errors.New("object exists with a different kind")
	ErrTruncated    = errors.New("name truncated onto an existing object")
)

// DB is the object database: one name-keyed mapping per kind plus the
// global lock that guards all object, instance and graph state.
//
// Locking discipline: public engine entry points call Lock/Unlock once;
// every DB method below assumes the lock is already held. Probe and action
// callouts are always made with the lock released.
type DB struct {
	mu  sync.Mutex
	log *zap.SugaredLogger

	// kinds[KindAny] holds unresolved forward-reference stubs.
	kinds map[Kind]map[string]*Object
}

// NewDB creates an empty object database.
func NewDB(log *zap.SugaredLogger) *DB {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DB{
		log: log,
		kinds: map[Kind]map[string]*Object{
			KindAny:       {},
			KindTest:      {},
			KindRule:      {},
			KindAction:    {},
			KindComponent: {},
		},
	}
}

// Lock acquires the global DB lock.
func (db *DB) Lock() { db.mu.Lock() }

// Unlock releases the global DB lock.
func (db *DB) Unlock() { db.mu.Unlock() }

// GetOrCreate returns the object named name of the given kind, creating it
// when missing. A request for a concrete kind that finds a stub upgrades
// the stub in place, so forward references resolve to the same object.
//
// A request that finds an object of a different concrete kind is an error;
// the caller drops the request.
func (db *DB) GetOrCreate(name string, kind Kind) (*Object, error) {
	name, _ = TruncateName(name)
	if name == "" {
		return nil, errors.New("empty object name")
	}

	if o, ok := db.kinds[kind][name]; ok {
		return o, nil
	}

	// A stub created by an earlier forward reference is upgraded in
	// place; its edges and instances carry over.
	if stub, ok := db.kinds[KindAny][name]; ok && kind != KindAny {
		delete(db.kinds[KindAny], name)
		stub.Kind = kind
		db.attachVariant(stub)
		db.kinds[kind][name] = stub
		db.log.Debugw("upgraded forward reference",
			"object", name, "kind", kind.String())
		return stub, nil
	}

	// Same name under a different concrete kind is a conflict.
	for k, m := range db.kinds {
		if k == kind || k == KindAny {
			continue
		}
		if _, ok := m[name]; ok {
			err := errors.Wrapf(ErrKindMismatch, "object %q", name)
			err = errors.WithDetailf(err, "existing kind: %s", k)
			err = errors.WithDetailf(err, "requested kind: %s", kind)
			return nil, err
		}
	}

	o := newObject(name, kind)
	db.attachVariant(o)
	db.kinds[kind][name] = o
	return o, nil
}

// attachVariant allocates the payload matching the object's kind.
func (db *DB) attachVariant(o *Object) {
	switch o.Kind {
	case KindTest:
		if o.Test == nil {
			o.Test = &Test{Autopass: -1}
		}
	case KindRule:
		if o.Rule == nil {
			o.Rule = &Rule{Op: OpOnFail, Severity: SeverityMedium}
		}
	case KindAction:
		if o.Action == nil {
			o.Action = &Action{}
		}
	case KindComponent:
		if o.Comp == nil {
			o.Comp = &Component{
				Health:     HealthMax,
				Confidence: HealthMax,
				FailTally:  make(map[Severity]int),
			}
		}
	}
}

// Get returns the live object of the given concrete kind, or nil when the
// name is unknown, still a stub, or registered under another kind.
func (db *DB) Get(name string, kind Kind) *Object {
	name, _ = TruncateName(name)
	return db.kinds[kind][name]
}

// Lookup searches every kind, stubs included.
func (db *DB) Lookup(name string) *Object {
	name, _ = TruncateName(name)
	for _, m := range db.kinds {
		if o, ok := m[name]; ok {
			return o
		}
	}
	return nil
}

// Test, Rule, Action and Component are the strongly typed getters.
func (db *DB) Test(name string) *Object      { return db.Get(name, KindTest) }
func (db *DB) Rule(name string) *Object      { return db.Get(name, KindRule) }
func (db *DB) Action(name string) *Object    { return db.Get(name, KindAction) }
func (db *DB) Component(name string) *Object { return db.Get(name, KindComponent) }

// ForEach visits every object of one kind. The visit order is unspecified.
func (db *DB) ForEach(kind Kind, fn func(*Object)) {
	for _, o := range db.kinds[kind] {
		fn(o)
	}
}

// StubCount returns the number of unresolved forward references.
func (db *DB) StubCount() int {
	return len(db.kinds[KindAny])
}

// Delete removes an object, its edges and its instances. Deleting an
// unknown name is a no-op.
func (db *DB) Delete(name string) bool {
	o := db.Lookup(name)
	if o == nil {
		return false
	}

	// Drop the object from every relation that references it.
	for _, rule := range o.Consumers {
		rule.Rule.Inputs = removeFromSlice(rule.Rule.Inputs, o)
	}
	if o.Rule != nil {
		for _, in := range o.Rule.Inputs {
			in.Consumers = removeFromSlice(in.Consumers, o)
		}
	}
	for _, comp := range o.Containers {
		comp.Comp.Members = removeFromSlice(comp.Comp.Members, o)
	}
	if o.Comp != nil {
		for _, m := range o.Comp.Members {
			m.Containers = removeFromSlice(m.Containers, o)
		}
	}
	for _, p := range o.DependParents {
		p.DependChildren = removeFromSlice(p.DependChildren, o)
	}
	for _, c := range o.DependChildren {
		c.DependParents = removeFromSlice(c.DependParents, o)
	}

	// Rules referencing this object as an action target.
	db.ForEach(KindRule, func(r *Object) {
		if r.Rule != nil {
			r.Rule.Actions = removeFromSlice(r.Rule.Actions, o)
		}
	})

	o.State = StateDeleted
	o.Instances = nil
	delete(db.kinds[o.Kind], o.Name)
	db.log.Debugw("deleted object", "object", o.Name, "kind", o.Kind.String())
	return true
}
