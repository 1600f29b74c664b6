package engine

import (
	"sort"

	"github.com/teranos/vigil/object"
)

// ObjectStatus is the reportable view of one object instance.
type ObjectStatus struct {
	Name         string         `json:"name"`
	Instance     string         `json:"instance,omitempty"`
	Kind         string         `json:"kind"`
	State        string         `json:"state"`
	LastResult   string         `json:"last_result"`
	LastValue    int64          `json:"last_value,omitempty"`
	SuppressedBy string         `json:"suppressed_by,omitempty"`
	Stats        object.Stats   `json:"stats"`
	Queue        string         `json:"queue,omitempty"`
	Operator     string         `json:"operator,omitempty"`
	Severity     string         `json:"severity,omitempty"`
}

// ComponentStatus is the reportable view of one component.
type ComponentStatus struct {
	Name       string   `json:"name"`
	State      string   `json:"state"`
	Health     int64    `json:"health"`
	Confidence int64    `json:"confidence"`
	Members    []string `json:"members"`
}

// Snapshot is a point-in-time copy of engine state for the status
// surface. Taking one holds the DB lock briefly; nothing in it aliases
// live state.
type Snapshot struct {
	Components []ComponentStatus `json:"components"`
	Tests      []ObjectStatus    `json:"tests"`
	Rules      []ObjectStatus    `json:"rules"`
	Actions    []ObjectStatus    `json:"actions"`
}

// Snapshot captures the current state of every registered object.
func (e *Engine) Snapshot() Snapshot {
	e.db.Lock()
	defer e.db.Unlock()

	var snap Snapshot
	e.db.ForEach(object.KindComponent, func(o *object.Object) {
		o.Comp.Confidence = e.componentConfidenceLocked(o)
		cs := ComponentStatus{
			Name:       o.Name,
			State:      o.State.String(),
			Health:     o.Comp.Health,
			Confidence: o.Comp.Confidence,
		}
		for _, m := range o.Comp.Members {
			cs.Members = append(cs.Members, m.Name)
		}
		sort.Strings(cs.Members)
		snap.Components = append(snap.Components, cs)
	})

	collect := func(kind object.Kind, out *[]ObjectStatus) {
		e.db.ForEach(kind, func(o *object.Object) {
			o.EachInstance(func(in *object.Instance) {
				st := ObjectStatus{
					Name:         o.Name,
					Instance:     in.Name,
					Kind:         o.Kind.String(),
					State:        in.State.String(),
					LastResult:   in.LastResult.String(),
					LastValue:    in.LastValue,
					SuppressedBy: in.SuppressedBy,
					Stats:        in.Stats,
				}
				if o.Kind == object.KindTest && o.Test.Kind != object.TestNotification {
					st.Queue = in.Sched.Queue.String()
				}
				if o.Kind == object.KindRule {
					st.Operator = o.Rule.Op.String()
					st.Severity = o.Rule.Severity.String()
				}
				*out = append(*out, st)
			})
		})
		sort.Slice(*out, func(i, j int) bool {
			a, b := (*out)[i], (*out)[j]
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.Instance < b.Instance
		})
	}
	collect(object.KindTest, &snap.Tests)
	collect(object.KindRule, &snap.Rules)
	collect(object.KindAction, &snap.Actions)
	return snap
}

// ComponentSnapshot returns the status of one component, or false when
// the name is unknown.
func (e *Engine) ComponentSnapshot(name string) (ComponentStatus, bool) {
	e.db.Lock()
	defer e.db.Unlock()
	o := e.db.Component(name)
	if o == nil {
		return ComponentStatus{}, false
	}
	o.Comp.Confidence = e.componentConfidenceLocked(o)
	cs := ComponentStatus{
		Name:       o.Name,
		State:      o.State.String(),
		Health:     o.Comp.Health,
		Confidence: o.Comp.Confidence,
	}
	for _, m := range o.Comp.Members {
		cs.Members = append(cs.Members, m.Name)
	}
	sort.Strings(cs.Members)
	return cs, true
}
