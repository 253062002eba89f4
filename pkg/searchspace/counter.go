// Package searchspace: the counter engine.
//
// A counter aggregates guarded contributions over quantified sets into an
// interval over its monoid. The engine keeps one memoised entry per
// contribution binding — guard certainty plus the contribution's own interval
// — and recombines entries linearly when one changes, so narrowing a single
// contributor never re-derives the others. Counters face both ways: the
// aggregate narrows the counter's own domain, and the counter's bounds prune
// contributors whose guard would push the aggregate out of range.
package searchspace

// guardState is the three-valued certainty of a conjunction of conditions.
type guardState int

const (
	guardUnknown guardState = iota
	guardTrue
	guardFalse
)

// counterEntry is the memoised contribution of one term binding. The loTerm
// and hiTerm fields hold the entry's current share of the aggregate: a
// certainly-true guard contributes its full interval, an open guard
// contributes only what cannot be avoided, a certainly-false guard
// contributes the identity.
type counterEntry struct {
	binding []ObjectID
	guards  []guardRef
	dead    bool

	contrib ContribInfo
	srcKey  instanceKey

	gs     guardState
	lo, hi int64

	loTerm int64
	hiTerm int64
}

// counterState is the mutable engine state of one counter instance. Entries
// are created when the instance is instantiated and extended by new-object
// waves; they are never removed. The ready flag holds aggregate publication
// back until every entry has been refreshed once, so half-built memos never
// prune.
type counterState struct {
	key     instanceKey
	info    *CounterInfo
	entries []*counterEntry
	ready   bool
}

// clone deep-copies the state for store cloning.
func (cs *counterState) clone() *counterState {
	out := &counterState{key: cs.key, info: cs.info, ready: cs.ready}
	out.entries = make([]*counterEntry, len(cs.entries))
	for i, e := range cs.entries {
		ce := *e
		out.entries[i] = &ce
	}
	return out
}

// refreshEntry recomputes one entry's guard certainty and contribution
// interval from the store. It reports whether the entry's share of the
// aggregate changed.
func (s *Store) refreshEntry(cs *counterState, e *counterEntry) bool {
	if e.dead {
		return false
	}
	gs := guardTrue
	for _, g := range e.guards {
		if s.guardCertainlyFalse(g) {
			gs = guardFalse
			break
		}
		if !s.guardCertainlyTrue(g) {
			gs = guardUnknown
		}
	}

	lo, hi := e.lo, e.hi
	switch e.contrib.Kind {
	case ContribConst:
		lo, hi = e.contrib.Const, e.contrib.Const
	case ContribChoice:
		if d, ok := s.domains[e.srcKey].(IntDomain); ok && d.Universe() != nil {
			lo, hi = d.Universe().AsRange()
		}
	case ContribCounter:
		if d, ok := s.domains[e.srcKey].(CounterDomain); ok {
			lo, hi = d.Lo, d.Hi
		}
	}

	id := cs.info.Op.Identity()
	var loTerm, hiTerm int64
	switch gs {
	case guardFalse:
		loTerm, hiTerm = id, id
	case guardTrue:
		loTerm, hiTerm = lo, hi
	default:
		// The contribution may or may not happen: the aggregate can only
		// count what is unavoidable below and what is still possible above.
		loTerm = minMonoid(cs.info.Op, lo, id)
		hiTerm = maxMonoid(cs.info.Op, hi, id)
	}

	changed := gs != e.gs || lo != e.lo || hi != e.hi || loTerm != e.loTerm || hiTerm != e.hiTerm
	e.gs, e.lo, e.hi, e.loTerm, e.hiTerm = gs, lo, hi, loTerm, hiTerm
	return changed
}

// minMonoid clamps a lower contribution toward the identity.
func minMonoid(op MonoidOp, v, id int64) int64 {
	if v < id {
		return v
	}
	return id
}

// maxMonoid clamps an upper contribution away from the identity.
func maxMonoid(op MonoidOp, v, id int64) int64 {
	if v > id {
		return v
	}
	return id
}

// aggregate combines every entry's current terms into the derived interval.
// Sums and products are both linear scans over the memoised terms.
func (cs *counterState) aggregate() (lo, hi int64) {
	lo, hi = cs.info.Base, cs.info.Base
	for _, e := range cs.entries {
		lo = cs.info.Op.Combine(lo, e.loTerm)
		hi = cs.info.Op.Combine(hi, e.hiTerm)
	}
	if cs.info.Half {
		lo = cs.info.Op.Identity()
	}
	return lo, hi
}

// refreshCounter recombines the aggregate and narrows the counter's domain.
func (s *Store) refreshCounter(cs *counterState) error {
	if !cs.ready {
		return nil
	}
	lo, hi := cs.aggregate()
	s.stats.CounterUpdates++
	cur, ok := s.domains[cs.key].(CounterDomain)
	if !ok {
		return nil
	}
	next := cur.WithLowerBound(lo).WithUpperBound(hi)
	return s.setCounterDomain(cs.key, cur, next)
}

// pruneContributors removes, from every open single-condition guard, the
// values that would certainly push the aggregate outside the counter's
// current bounds. This is the reverse direction of the aggregate: the
// `require C <= k` filter acting on the contributing choices.
func (s *Store) pruneContributors(cs *counterState) error {
	if !cs.ready {
		return nil
	}
	dom, ok := s.domains[cs.key].(CounterDomain)
	if !ok {
		return nil
	}
	lo, hi := cs.aggregate()
	for _, e := range cs.entries {
		if e.dead || e.gs != guardUnknown || len(e.guards) != 1 {
			continue
		}
		g := e.guards[0]

		// If this guard became true the aggregate's floor would rise by
		// the entry's full lower contribution; past the allowed ceiling
		// the guard's value set must be removed.
		loIfTrue := recombine(cs.info.Op, lo, e.loTerm, e.lo)
		if cs.info.Half {
			loIfTrue = recombineHalf(cs.info.Op, cs, e)
		}
		if loIfTrue > dom.Hi {
			if err := s.restrictEnumKey(g.key, ^g.mask); err != nil {
				return err
			}
			continue
		}

		// If this guard became false the aggregate's ceiling would drop
		// by the entry's upper contribution; below the required floor the
		// guard must hold.
		hiIfFalse := recombine(cs.info.Op, hi, e.hiTerm, cs.info.Op.Identity())
		if hiIfFalse < dom.Lo {
			if err := s.restrictEnumKey(g.key, g.mask); err != nil {
				return err
			}
		}
	}
	return nil
}

// recombine replaces one entry's share in a combined value. Sums subtract and
// re-add; products divide the old factor out, and when the old factor is zero
// they multiply the combined value by the new term without dividing.
func recombine(op MonoidOp, combined, oldTerm, newTerm int64) int64 {
	if op == OpSum {
		return combined - oldTerm + newTerm
	}
	if oldTerm != 0 {
		return combined / oldTerm * newTerm
	}
	return combined * newTerm
}

// recombineHalf recomputes the would-be floor for a half counter, which pins
// its published lower bound at the identity: the hypothetical raises every
// certainly-true term plus this entry's full contribution.
func recombineHalf(op MonoidOp, cs *counterState, target *counterEntry) int64 {
	v := cs.info.Base
	for _, e := range cs.entries {
		switch {
		case e == target:
			v = op.Combine(v, e.lo)
		case e.gs == guardTrue:
			v = op.Combine(v, e.lo)
		}
	}
	return v
}

// entryRef re-evaluates one counter entry when a guard or contributor
// narrows. References are immutable values so clones share the watcher lists.
type entryRef struct {
	counter instanceKey
	idx     int
}

func (r entryRef) run(s *Store) error {
	cs, ok := s.counters[r.counter]
	if !ok || r.idx >= len(cs.entries) {
		return nil
	}
	if !cs.ready {
		// The pending counterRef refreshes every entry together.
		return nil
	}
	if !s.refreshEntry(cs, cs.entries[r.idx]) {
		return nil
	}
	if err := s.refreshCounter(cs); err != nil {
		return err
	}
	return s.pruneContributors(cs)
}

// pruneRef re-runs contributor pruning when the counter's own domain
// narrows, e.g. after an explorer action or a bound requirement.
type pruneRef struct {
	counter instanceKey
}

func (r pruneRef) run(s *Store) error {
	cs, ok := s.counters[r.counter]
	if !ok {
		return nil
	}
	return s.pruneContributors(cs)
}
