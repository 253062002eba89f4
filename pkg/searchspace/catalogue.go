// Package searchspace: the set catalogue.
//
// The catalogue binds each declared set to an iteration contract and a
// membership test over one host instance. Static sets delegate to the
// instance; dynamic sets (quotients, sets with add_to_set hooks) additionally
// hold a per-store append-only arena of elements inferred during propagation.
// The catalogue is store-local state: clones copy the dynamic arenas and keep
// sharing the instance.
package searchspace

import (
	"github.com/gitrdm/searchspace/internal/arena"
)

// catalogue resolves set ids to concrete objects of one instance.
type catalogue struct {
	desc *Description
	inst Instance

	// dynamic holds the elements appended to growable sets during
	// propagation, keyed by set id. Arena ids are stable so objects never
	// relocate across growth or clones.
	dynamic map[SetID]*arena.Arena[ObjectID]
}

func newCatalogue(desc *Description, inst Instance) *catalogue {
	c := &catalogue{
		desc:    desc,
		inst:    inst,
		dynamic: make(map[SetID]*arena.Arena[ObjectID]),
	}
	for _, s := range desc.sets {
		if s.dynamic {
			c.dynamic[s.id] = arena.New[ObjectID]()
		}
	}
	return c
}

// objects enumerates a set: the instance's static elements followed by any
// dynamically inferred ones, deduplicated, in a stable order.
func (c *catalogue) objects(set SetID, args ...ObjectID) []ObjectID {
	info := c.desc.sets[set]
	static := c.inst.Objects(info.name, args...)
	dyn := c.dynamic[set]
	if dyn == nil || dyn.Len() == 0 {
		return static
	}
	out := append([]ObjectID(nil), static...)
	seen := make(map[ObjectID]bool, len(static))
	for _, o := range static {
		seen[o] = true
	}
	for _, o := range dyn.Items() {
		if !seen[o] {
			out = append(out, o)
			seen[o] = true
		}
	}
	return out
}

// contains tests membership, consulting dynamic additions first.
func (c *catalogue) contains(set SetID, id ObjectID, args ...ObjectID) bool {
	if dyn := c.dynamic[set]; dyn != nil && dyn.Contains(id) {
		return true
	}
	return c.inst.Contains(c.desc.sets[set].name, id, args...)
}

// add appends an inferred element to a dynamic set. It reports whether the
// element is new to the catalogue (already-known elements are ignored so
// at-most-once instantiation holds across trigger waves).
func (c *catalogue) add(set SetID, id ObjectID) bool {
	dyn := c.dynamic[set]
	if dyn == nil {
		// A trigger may extend a set the builder did not mark dynamic
		// when the add_to_set hook lives on the host side only.
		dyn = arena.New[ObjectID]()
		c.dynamic[set] = dyn
	}
	_, fresh := dyn.Append(id)
	if !fresh {
		return false
	}
	// An element the instance already enumerates statically is not new to
	// the store; recording it in the arena just keeps membership O(1).
	return !c.inst.Contains(c.desc.sets[set].name, id)
}

// clone copies the dynamic arenas; the description and instance are shared.
func (c *catalogue) clone() *catalogue {
	out := &catalogue{
		desc:    c.desc,
		inst:    c.inst,
		dynamic: make(map[SetID]*arena.Arena[ObjectID], len(c.dynamic)),
	}
	for id, a := range c.dynamic {
		out.dynamic[id] = a.Clone()
	}
	return out
}
