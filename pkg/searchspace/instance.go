// Package searchspace: the host instance contract.
//
// A store is always opened over an Instance: the host's view of one concrete
// IR function. The instance owns object identity and everything the opaque
// host-code snippets mean — iteration, membership, predicates, integer
// universes and trigger actions. Instances are read-only from the core's
// perspective and may be shared by concurrently propagating stores.
package searchspace

// ObjectID identifies one IR object (a dimension, statement, variable, ...)
// within an instance. Ids are dense per set but opaque to the core.
type ObjectID uint32

// Env binds the formal argument names of a snippet to concrete objects for
// one evaluation.
type Env map[string]ObjectID

// Instance is the host side of a search space: one concrete IR function the
// specification's sets and snippets are interpreted against. All methods must
// be pure with respect to the instance (the core may call them repeatedly and
// in any order) and must be synchronous and non-blocking.
type Instance interface {
	// Objects enumerates a set, scoped by parent arguments for
	// parameterised sets. The order must be stable for the lifetime of the
	// instance; stores rely on it for deterministic fixpoints.
	Objects(set string, args ...ObjectID) []ObjectID

	// Contains is the membership test behind subset filtering.
	Contains(set string, id ObjectID, args ...ObjectID) bool

	// EvalPredicate evaluates an opaque host predicate against the
	// instance. Static requirements and guard predicates route through
	// here.
	EvalPredicate(pred Snippet, env Env) bool

	// IntegerUniverse materialises the value universe of an integer choice
	// instance.
	IntegerUniverse(universe Snippet, env Env) IntegerDomain

	// InvokeAction runs a trigger action. The returned objects are the
	// elements the host inferred (empty for pure side-effect actions); the
	// flag is advisory, and false is treated as a contradiction.
	InvokeAction(action Snippet, env Env) ([]ObjectID, bool)
}

// MapInstance is an in-memory Instance backed by explicit maps. It serves
// hosts that precompute their object sets, and the package's own tests. The
// zero value is usable; nil maps behave as empty.
type MapInstance struct {
	// Sets maps a set name to its elements, for sets without parameters.
	Sets map[string][]ObjectID

	// ScopedSets maps a parameterised set name to its per-argument
	// elements.
	ScopedSets map[string]func(args []ObjectID) []ObjectID

	// Predicates maps snippet text to its evaluation. The literals "true"
	// and "false" are built in; any other unmapped predicate evaluates to
	// true.
	Predicates map[string]func(env Env) bool

	// Universes maps an integer universe snippet to its domain.
	Universes map[string]func(env Env) IntegerDomain

	// Actions maps a trigger action snippet to its implementation.
	// Unmapped actions succeed and return no objects.
	Actions map[string]func(env Env) ([]ObjectID, bool)
}

// Objects implements Instance.
func (m *MapInstance) Objects(set string, args ...ObjectID) []ObjectID {
	if len(args) > 0 {
		if fn, ok := m.ScopedSets[set]; ok {
			return fn(args)
		}
		return nil
	}
	if objs, ok := m.Sets[set]; ok {
		return append([]ObjectID(nil), objs...)
	}
	if fn, ok := m.ScopedSets[set]; ok {
		return fn(nil)
	}
	return nil
}

// Contains implements Instance by scanning the set's elements.
func (m *MapInstance) Contains(set string, id ObjectID, args ...ObjectID) bool {
	for _, o := range m.Objects(set, args...) {
		if o == id {
			return true
		}
	}
	return false
}

// EvalPredicate implements Instance. Predicates not present in the map are
// permissive: the core treats unknown host facts as satisfied and leaves the
// pruning to explicit conditions.
func (m *MapInstance) EvalPredicate(pred Snippet, env Env) bool {
	switch pred.Code() {
	case "true":
		return true
	case "false":
		return false
	}
	if fn, ok := m.Predicates[pred.Code()]; ok {
		return fn(env)
	}
	return true
}

// IntegerUniverse implements Instance. An unmapped universe is empty, which
// surfaces as a contradiction when the choice is instantiated.
func (m *MapInstance) IntegerUniverse(universe Snippet, env Env) IntegerDomain {
	if fn, ok := m.Universes[universe.Code()]; ok {
		return fn(env)
	}
	return IntRange{Min: 1, Max: 0}
}

// InvokeAction implements Instance.
func (m *MapInstance) InvokeAction(action Snippet, env Env) ([]ObjectID, bool) {
	if fn, ok := m.Actions[action.Code()]; ok {
		return fn(env)
	}
	return nil, true
}
