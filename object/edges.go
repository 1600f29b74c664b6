package object

import "github.com/teranos/vigil/errors"

// AddInput wires input (a test or rule) into rule's ordered input list and
// maintains the inverse consumer edge. Duplicate adds are no-ops.
func (db *DB) AddInput(rule, input *Object) {
	if rule.Rule == nil {
		return
	}
	for _, in := range rule.Rule.Inputs {
		if in == input {
			return
		}
	}
	rule.Rule.Inputs = append(rule.Rule.Inputs, input)
	if !input.hasConsumer(rule) {
		input.Consumers = append(input.Consumers, rule)
	}
}

// AddAction appends an action to a rule's trigger list. Duplicates are
// no-ops.
func (db *DB) AddAction(rule, action *Object) {
	if rule.Rule == nil {
		return
	}
	for _, a := range rule.Rule.Actions {
		if a == action {
			return
		}
	}
	rule.Rule.Actions = append(rule.Rule.Actions, action)
}

// Contains places child into the component's member set and records the
// membership on the child. Duplicate adds are no-ops.
func (db *DB) Contains(comp, child *Object) {
	if comp.Comp == nil {
		return
	}
	for _, m := range comp.Comp.Members {
		if m == child {
			return
		}
	}
	comp.Comp.Members = append(comp.Comp.Members, child)
	child.Containers = append(child.Containers, comp)
}

// AddDependency records parent -> child for root-cause identification.
// An edge that would introduce a cycle is refused: the edge is discarded
// and the refusal logged, per the graph consistency rules.
func (db *DB) AddDependency(parent, child *Object) error {
	for _, c := range parent.DependChildren {
		if c == child {
			return nil
		}
	}
	if db.wouldCycle(parent, child) {
		err := errors.Newf("dependency %s -> %s would introduce a cycle",
			parent.Name, child.Name)
		db.log.Errorw("rejected dependency edge",
			"parent", parent.Name, "child", child.Name, "error", err)
		return err
	}
	parent.DependChildren = append(parent.DependChildren, child)
	child.DependParents = append(child.DependParents, parent)
	return nil
}

// wouldCycle runs a DFS from child back toward parent across explicit
// dependency edges and component containment.
func (db *DB) wouldCycle(parent, child *Object) bool {
	return parent == child || db.Reaches(child, parent)
}

// Reaches reports whether target is reachable from start through the
// dependency graph (explicit edges plus component containment). RCI uses
// it to collapse dependency loops into a shared root-cause domain.
func (db *DB) Reaches(start, target *Object) bool {
	visited := map[*Object]bool{}
	var walk func(o *Object) bool
	walk = func(o *Object) bool {
		if o == target {
			return true
		}
		if visited[o] {
			return false
		}
		visited[o] = true
		for _, next := range o.DependChildren {
			if walk(next) {
				return true
			}
		}
		// A dependency on a component reaches its contained rules.
		if o.Comp != nil {
			for _, m := range o.Comp.Members {
				if walk(m) {
					return true
				}
			}
		}
		return false
	}
	return walk(start)
}

// DependencyClosure gathers the set of rules reachable through the
// dependency graph below start. Component targets expand to their
// contained rules. Loops left over from forward references are collapsed
// by the visited set, so every rule appears once and the walk terminates.
func (db *DB) DependencyClosure(start *Object) []*Object {
	var out []*Object
	visited := map[*Object]bool{start: true}
	var walk func(o *Object)
	walk = func(o *Object) {
		for _, child := range o.DependChildren {
			db.expandDependency(child, visited, &out, walk)
		}
	}
	walk(start)
	return out
}

func (db *DB) expandDependency(o *Object, visited map[*Object]bool, out *[]*Object, walk func(*Object)) {
	if visited[o] {
		return
	}
	visited[o] = true
	switch {
	case o.Kind == KindRule:
		*out = append(*out, o)
		walk(o)
	case o.Kind == KindComponent && o.Comp != nil:
		for _, m := range o.Comp.Members {
			if m.Kind == KindRule {
				db.expandDependency(m, visited, out, walk)
			}
		}
		walk(o)
	}
}
