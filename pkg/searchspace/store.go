// Package searchspace: the domain store and propagator.
//
// The store is the sole mutable state of a search space: one domain per live
// choice instance, a dependency index from each instance to the filters,
// counters and triggers that watch it, and a LIFO work list with
// deduplication. All mutation funnels through restrict; propagation drains
// the work list to fixpoint and then drains the new-objects log, repeating
// until both are empty or a domain empties. Every filter is a pure monotone
// function of the store, so the fixpoint is independent of scheduling: given
// the same actions on the same instance, the final domains are identical.
//
// A store is single-writer. The explorer obtains concurrency by cloning
// between actions; clones share the description and the instance and diverge
// independently.
package searchspace

import (
	"fmt"
	"sort"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-set/v3"
)

// instanceKey identifies one choice instance: a choice and its canonical
// argument tuple.
type instanceKey struct {
	choice ChoiceID
	arity  uint8
	args   [maxArity]ObjectID
}

func makeKey(choice ChoiceID, args []ObjectID) instanceKey {
	k := instanceKey{choice: choice, arity: uint8(len(args))}
	copy(k.args[:], args)
	return k
}

// argsSlice returns the argument tuple.
func (k instanceKey) argsSlice() []ObjectID {
	return append([]ObjectID(nil), k.args[:k.arity]...)
}

// guardRef is a condition bound to a concrete instance: "the value of key is
// within mask". Masks are pre-adjusted for symmetry canonicalisation, so
// evaluation is a pair of bitmask tests.
type guardRef struct {
	key  instanceKey
	mask uint64
}

// propTask is one pending re-evaluation. Implementations are immutable and
// comparable, so the work list deduplicates them and clones share them.
type propTask interface {
	run(s *Store) error
}

// newObject is one entry of the new-objects log.
type newObject struct {
	set SetID
	obj ObjectID
}

// Stats are cumulative store counters, in the explorer's budget currency.
type Stats struct {
	Instances      int
	Restricts      int
	FragmentEvals  int
	CounterUpdates int
	TriggerFirings int
	Waves          int
}

// Action is the explorer's sole mutation: restrict one choice instance to a
// subset of its current domain. Exactly one of Values, Integer or the bound
// fields applies, matching the choice's kind.
type Action struct {
	Choice string
	Args   []ObjectID

	// Values restricts an enum choice to the named values and aliases.
	Values []string

	// Integer restricts an integer choice by intersection.
	Integer IntegerDomain

	// UpperBound and LowerBound restrict a counter's interval.
	UpperBound *int64
	LowerBound *int64
}

// Option configures a store at Open.
type Option func(*Store)

// WithLogger attaches a structured logger; propagation emits Trace records
// and Open emits a Debug summary. The default logger discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMaxPropagationSteps bounds the number of work-list items one
// propagation may execute, as a diagnostic backstop for misbehaving host
// callbacks. Zero means unbounded.
func WithMaxPropagationSteps(n int) Option {
	return func(s *Store) { s.maxSteps = n }
}

// Store is the mutable domain store over one IR instance.
type Store struct {
	desc   *Description
	inst   Instance
	cat    *catalogue
	logger hclog.Logger

	maxSteps int

	domains map[instanceKey]Domain
	keys    []instanceKey

	watchers map[instanceKey][]propTask

	pending    []propTask
	pendingSet *set.Set[propTask]

	counters    map[instanceKey]*counterState
	counterKeys []instanceKey
	trigStates  []*triggerState
	fired       *set.Set[string]

	newObjs []newObject
	seen    map[string]bool

	actions []Action
	stats   Stats

	closed bool
	failed bool
}

// Open builds a store over an instance: every choice is instantiated for
// every satisfying argument tuple, its domain restricted by its static
// requirements, and propagation run to the first fixpoint. A nil error means
// the store is consistent; ErrContradiction means the specification's static
// requirements cannot be satisfied on this instance.
func Open(desc *Description, inst Instance, opts ...Option) (*Store, error) {
	s := &Store{
		desc:       desc,
		inst:       inst,
		cat:        newCatalogue(desc, inst),
		logger:     hclog.NewNullLogger(),
		domains:    make(map[instanceKey]Domain),
		watchers:   make(map[instanceKey][]propTask),
		pendingSet: set.New[propTask](64),
		counters:   make(map[instanceKey]*counterState),
		fired:      set.New[string](16),
		seen:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.instantiateAll(); err != nil {
		return nil, err
	}
	if err := s.propagate(); err != nil {
		return nil, err
	}
	s.logger.Debug("store opened",
		"instances", s.stats.Instances,
		"fragments", desc.NumFragments(),
		"restricts", s.stats.Restricts)
	return s, nil
}

// Domain reads the current domain of a choice instance, resolving symmetry
// canonicalisation: an antisymmetric enum queried with the swapped tuple is
// read through its involution.
func (s *Store) Domain(choice string, args ...ObjectID) (Domain, error) {
	if s.closed {
		return nil, ErrClosed
	}
	ci, ok := s.desc.Choice(choice)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChoice, choice)
	}
	key, swapped := s.canonKey(ci, args)
	d, ok := s.domains[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s%v has no live instance", ErrUnknownChoice, choice, args)
	}
	if swapped && ci.symmetry == AntiSymmetric {
		return d.(EnumDomain).permute(ci.involution), nil
	}
	return d, nil
}

// Apply restricts one instance and propagates to fixpoint. On contradiction
// the store is poisoned and must be dropped; resume from a prior clone.
func (s *Store) Apply(a Action) error {
	if s.closed {
		return ErrClosed
	}
	if s.failed {
		return ErrContradiction
	}
	ci, ok := s.desc.Choice(a.Choice)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChoice, a.Choice)
	}
	key, swapped := s.canonKey(ci, a.Args)
	if _, ok := s.domains[key]; !ok {
		return fmt.Errorf("%w: %s%v has no live instance", ErrUnknownChoice, a.Choice, a.Args)
	}
	var err error
	switch ci.kind {
	case KindEnum:
		var dom EnumDomain
		dom, err = ci.enum.Mask(a.Values...)
		if err != nil {
			return err
		}
		mask := dom.mask
		if swapped && ci.symmetry == AntiSymmetric {
			mask = permuteMask(mask, ci.involution)
		}
		err = s.restrictEnumKey(key, mask)
	case KindInteger:
		if a.Integer == nil {
			return fmt.Errorf("action on integer choice %s carries no domain", a.Choice)
		}
		err = s.restrictIntKey(key, a.Integer)
	case KindCounter:
		cur := s.domains[key].(CounterDomain)
		next := cur
		if a.UpperBound != nil {
			next = next.WithUpperBound(*a.UpperBound)
		}
		if a.LowerBound != nil {
			next = next.WithLowerBound(*a.LowerBound)
		}
		err = s.setCounterDomain(key, cur, next)
	}
	if err == nil {
		err = s.propagate()
	}
	if err != nil {
		s.failed = true
		return err
	}
	s.actions = append(s.actions, a)
	return nil
}

// Actions returns the actions applied so far, for replay onto a clone.
func (s *Store) Actions() []Action {
	return append([]Action(nil), s.actions...)
}

// Stats returns the cumulative counters.
func (s *Store) Stats() Stats { return s.stats }

// Clone returns an independent store with identical domains. The description
// and instance stay shared; domains, counter memos, trigger states, the
// fired set and the dynamic set contents are copied. Clone is legal between
// Apply calls, when the work list is empty.
func (s *Store) Clone() *Store {
	out := &Store{
		desc:        s.desc,
		inst:        s.inst,
		cat:         s.cat.clone(),
		logger:      s.logger,
		maxSteps:    s.maxSteps,
		domains:     make(map[instanceKey]Domain, len(s.domains)),
		keys:        append([]instanceKey(nil), s.keys...),
		watchers:    make(map[instanceKey][]propTask, len(s.watchers)),
		pendingSet:  set.New[propTask](16),
		counters:    make(map[instanceKey]*counterState, len(s.counters)),
		counterKeys: append([]instanceKey(nil), s.counterKeys...),
		fired:       set.From(s.fired.Slice()),
		seen:        make(map[string]bool, len(s.seen)),
		actions:     append([]Action(nil), s.actions...),
		stats:       s.stats,
		failed:      s.failed,
	}
	for k, d := range s.domains {
		out.domains[k] = d
	}
	for k, ts := range s.watchers {
		out.watchers[k] = append([]propTask(nil), ts...)
	}
	for k, cs := range s.counters {
		out.counters[k] = cs.clone()
	}
	out.trigStates = make([]*triggerState, len(s.trigStates))
	for i, ts := range s.trigStates {
		out.trigStates[i] = ts.clone()
	}
	for k := range s.seen {
		out.seen[k] = true
	}
	return out
}

// Close releases the store. Domain and Apply then return ErrClosed; the
// other accessors do not check whether the store is closed.
func (s *Store) Close() {
	s.closed = true
}

// Assigned is one constrained enum instance in an assignment extract.
type Assigned struct {
	Choice string
	Args   []ObjectID
	Value  string
}

// Assignment returns every constrained enum instance as (choice, args,
// value), sorted by choice name then arguments, so equal stores render
// identically.
func (s *Store) Assignment() []Assigned {
	var out []Assigned
	for _, k := range s.keys {
		d, ok := s.domains[k].(EnumDomain)
		if !ok {
			continue
		}
		if v, ok := d.Value(); ok {
			out = append(out, Assigned{
				Choice: s.desc.choiceName(k.choice),
				Args:   k.argsSlice(),
				Value:  v,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Choice != out[j].Choice {
			return out[i].Choice < out[j].Choice
		}
		a, b := out[i].Args, out[j].Args
		for x := 0; x < len(a) && x < len(b); x++ {
			if a[x] != b[x] {
				return a[x] < b[x]
			}
		}
		return len(a) < len(b)
	})
	return out
}

// IsFullyConstrained reports whether every enum instance holds a single
// value: the point at which the explorer can emit a concrete candidate.
func (s *Store) IsFullyConstrained() bool {
	for _, k := range s.keys {
		if d, ok := s.domains[k].(EnumDomain); ok && !d.IsConstrained() {
			return false
		}
	}
	return true
}

// canonKey maps an argument tuple to the single physical instance key. For
// symmetric and antisymmetric choices the two orderings of a pair share one
// instance keyed by the ascending tuple.
func (s *Store) canonKey(ci *ChoiceInfo, args []ObjectID) (instanceKey, bool) {
	if ci.symmetry != SymNone && len(args) == 2 && args[0] > args[1] {
		return makeKey(ci.id, []ObjectID{args[1], args[0]}), true
	}
	return makeKey(ci.id, args), false
}

// guardCertainlyFalse reports that no admissible value of the instance lies
// in the condition's mask.
func (s *Store) guardCertainlyFalse(g guardRef) bool {
	d, ok := s.domains[g.key].(EnumDomain)
	if !ok {
		return false
	}
	return d.mask&g.mask == 0
}

// guardCertainlyTrue reports that every admissible value lies in the mask.
func (s *Store) guardCertainlyTrue(g guardRef) bool {
	d, ok := s.domains[g.key].(EnumDomain)
	if !ok {
		return false
	}
	return d.mask != 0 && d.mask&^g.mask == 0
}

// enqueue schedules a task unless it is already pending. The list is drained
// LIFO; because every filter is monotone, ordering affects only when a
// narrowing happens, never whether.
func (s *Store) enqueue(t propTask) {
	if s.pendingSet.Contains(t) {
		return
	}
	s.pendingSet.Insert(t)
	s.pending = append(s.pending, t)
}

// watch registers a task against an instance.
func (s *Store) watch(key instanceKey, t propTask) {
	s.watchers[key] = append(s.watchers[key], t)
}

// notify schedules everything watching an instance that just narrowed.
func (s *Store) notify(key instanceKey) {
	for _, t := range s.watchers[key] {
		s.enqueue(t)
	}
}

// restrictEnumKey intersects an enum instance's domain with a mask.
func (s *Store) restrictEnumKey(key instanceKey, mask uint64) error {
	cur, ok := s.domains[key].(EnumDomain)
	if !ok {
		return fmt.Errorf("%w: %s%v", ErrUnknownChoice, s.desc.choiceName(key.choice), key.argsSlice())
	}
	next := cur.mask & mask
	if next == cur.mask {
		return nil
	}
	if next == 0 {
		s.failed = true
		return fmt.Errorf("%s%v: %w", s.desc.choiceName(key.choice), key.argsSlice(), ErrContradiction)
	}
	s.domains[key] = EnumDomain{typ: cur.typ, mask: next}
	s.stats.Restricts++
	s.logger.Trace("restrict", "choice", s.desc.choiceName(key.choice), "args", key.argsSlice(), "domain", s.domains[key].String())
	s.notify(key)
	return nil
}

// restrictIntKey composes an intersection into an integer instance's domain.
func (s *Store) restrictIntKey(key instanceKey, other IntegerDomain) error {
	cur, ok := s.domains[key].(IntDomain)
	if !ok {
		return fmt.Errorf("%w: %s%v", ErrUnknownChoice, s.desc.choiceName(key.choice), key.argsSlice())
	}
	next := cur.Intersect(other)
	if next.Equal(cur) {
		return nil
	}
	if next.IsFailed() {
		s.failed = true
		return fmt.Errorf("%s%v: %w", s.desc.choiceName(key.choice), key.argsSlice(), ErrContradiction)
	}
	s.domains[key] = next
	s.stats.Restricts++
	s.notify(key)
	return nil
}

// setCounterDomain installs a narrowed counter interval.
func (s *Store) setCounterDomain(key instanceKey, cur, next CounterDomain) error {
	if next == cur {
		return nil
	}
	if next.IsFailed() {
		s.failed = true
		return fmt.Errorf("%s%v: %w", s.desc.choiceName(key.choice), key.argsSlice(), ErrContradiction)
	}
	s.domains[key] = next
	s.stats.Restricts++
	s.logger.Trace("restrict", "counter", s.desc.choiceName(key.choice), "args", key.argsSlice(), "domain", next.String())
	s.notify(key)
	return nil
}

// propagate drains the work list to fixpoint, then the new-objects log, and
// repeats until both are empty. A contradiction aborts immediately and
// leaves the store poisoned.
func (s *Store) propagate() error {
	steps := 0
	for {
		for len(s.pending) > 0 {
			steps++
			if s.maxSteps > 0 && steps > s.maxSteps {
				s.failed = true
				return fmt.Errorf("propagation exceeded %d steps", s.maxSteps)
			}
			t := s.pending[len(s.pending)-1]
			s.pending = s.pending[:len(s.pending)-1]
			s.pendingSet.Remove(t)
			if err := t.run(s); err != nil {
				s.failed = true
				return err
			}
		}
		if len(s.newObjs) == 0 {
			return nil
		}
		if err := s.drainNewObjects(); err != nil {
			s.failed = true
			return err
		}
	}
}

// drainNewObjects appends the logged elements to their sets and instantiates
// everything parameterised over them. Instantiation is idempotent, so a
// single re-walk of the description covers exactly the bindings the new
// objects enable.
func (s *Store) drainNewObjects() error {
	log := s.newObjs
	s.newObjs = nil
	grew := false
	for _, n := range log {
		if s.cat.add(n.set, n.obj) {
			grew = true
			s.logger.Trace("set grew", "set", s.desc.sets[n.set].name, "object", n.obj)
		}
	}
	if !grew {
		return nil
	}
	s.stats.Waves++
	return s.instantiateAll()
}

// edge is one filter fragment bound to a concrete argument tuple: the
// runtime form of a truth-table evaluation against one target instance.
// Edges are immutable; clones share them through the watcher lists.
type edge struct {
	frag   *FilterFragment
	target instanceKey
	full   uint64
	rows   []edgeRow
	guards map[int]guardRef
}

// edgeRow mirrors a TableRow with the remove mask adjusted for the target's
// canonicalisation.
type edgeRow struct {
	certainlyFalse []int
	remove         uint64
}

func (e *edge) run(s *Store) error {
	s.stats.FragmentEvals++
	allowed := e.full
	for _, row := range e.rows {
		holds := true
		for _, idx := range row.certainlyFalse {
			if g, ok := e.guards[idx]; ok {
				if !s.guardCertainlyFalse(g) {
					holds = false
					break
				}
			}
			// Conditions without a guard were statically false at
			// instantiation and hold trivially.
		}
		if holds {
			allowed &^= row.remove
		}
	}
	return s.restrictEnumKey(e.target, allowed)
}

// instantiateAll walks the description and creates every missing choice
// instance, counter entry, filter edge, counter bound and trigger tuple. It
// runs at Open and again after each new-object wave; the seen sets make it
// idempotent. Counters are extended after every choice exists, so entry
// guards and contributors always resolve.
func (s *Store) instantiateAll() error {
	for _, ci := range s.desc.choices {
		vars := s.choiceVars(ci)
		err := s.forEachBinding(vars, func(binding []ObjectID) error {
			return s.createChoiceInstance(ci, binding)
		})
		if err != nil {
			return err
		}
	}
	for _, key := range s.counterKeys {
		cs := s.counters[key]
		ci := s.desc.choices[key.choice]
		if err := s.extendCounterEntries(ci, cs); err != nil {
			return err
		}
		s.enqueue(counterRef{counter: key})
	}
	for _, req := range s.desc.requires {
		req := req
		err := s.forEachBinding(req.vars, func(binding []ObjectID) error {
			return s.bindRequire(req, binding)
		})
		if err != nil {
			return err
		}
	}
	for _, trig := range s.desc.triggers {
		trig := trig
		err := s.forEachBinding(trig.vars, func(binding []ObjectID) error {
			return s.bindTrigger(trig, binding)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// choiceVars views a choice's argument list as a quantifier prefix.
func (s *Store) choiceVars(ci *ChoiceInfo) []quantVar {
	vars := make([]quantVar, len(ci.args))
	for i := range ci.args {
		vars[i] = quantVar{name: ci.argNames[i], set: ci.args[i], setArgs: ci.argSetArgs[i]}
	}
	return vars
}

// forEachBinding enumerates the cartesian product of the quantifier's sets,
// resolving parameterised sets against earlier variables, in catalogue
// order. The callback receives its own copy of the binding.
func (s *Store) forEachBinding(vars []quantVar, fn func(binding []ObjectID) error) error {
	binding := make([]ObjectID, len(vars))
	var rec func(i int) error
	rec = func(i int) error {
		if i == len(vars) {
			return fn(append([]ObjectID(nil), binding...))
		}
		v := vars[i]
		if v.set == noSet {
			return nil
		}
		var parents []ObjectID
		for _, idx := range v.setArgs {
			parents = append(parents, binding[idx])
		}
		for _, obj := range s.cat.objects(v.set, parents...) {
			binding[i] = obj
			if err := rec(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(0)
}

// bindingEnv maps quantifier names to a concrete binding for host snippets.
func bindingEnv(vars []quantVar, binding []ObjectID) Env {
	env := make(Env, len(vars))
	for i, v := range vars {
		env[v.name] = binding[i]
	}
	return env
}

// markSeen records a (kind, id, binding) tuple and reports whether it was
// already processed.
func (s *Store) markSeen(kind string, id int, binding []ObjectID) bool {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d", kind, id)
	for _, o := range binding {
		fmt.Fprintf(&b, ":%d", o)
	}
	k := b.String()
	if s.seen[k] {
		return true
	}
	s.seen[k] = true
	return false
}

// createChoiceInstance materialises one choice instance with its initial
// domain: the full value set minus values whose static requirements fail on
// this instance, the host integer universe, or the counter's top interval.
func (s *Store) createChoiceInstance(ci *ChoiceInfo, args []ObjectID) error {
	key, _ := s.canonKey(ci, args)
	if _, exists := s.domains[key]; exists {
		return nil
	}
	env := make(Env, len(ci.argNames))
	canonArgs := key.argsSlice()
	for i, n := range ci.argNames {
		env[n] = canonArgs[i]
	}
	switch ci.kind {
	case KindEnum:
		mask := ci.enum.full
		for idx, reqs := range ci.valueRequires {
			for _, pred := range reqs {
				if !s.inst.EvalPredicate(pred, env) {
					mask &^= 1 << uint(idx)
					break
				}
			}
		}
		if mask == 0 {
			s.failed = true
			return fmt.Errorf("%s%v has no statically admissible value: %w", ci.name, canonArgs, ErrContradiction)
		}
		s.domains[key] = EnumDomain{typ: ci.enum, mask: mask}
	case KindInteger:
		dom := s.inst.IntegerUniverse(ci.universe, env)
		if dom == nil || dom.IsEmpty() {
			s.failed = true
			return fmt.Errorf("%s%v has an empty universe: %w", ci.name, canonArgs, ErrContradiction)
		}
		s.domains[key] = NewIntDomain(dom)
	case KindCounter:
		s.domains[key] = newCounterDomain(ci.counter.Op, ci.counter.Half)
		s.createCounterState(ci, key)
	}
	s.keys = append(s.keys, key)
	s.stats.Instances++
	return nil
}

// createCounterState registers the engine state of a counter instance. Its
// entries are filled in by extendCounterEntries once every choice of the
// current wave exists.
func (s *Store) createCounterState(ci *ChoiceInfo, key instanceKey) {
	cs := &counterState{key: key, info: ci.counter}
	s.counters[key] = cs
	s.counterKeys = append(s.counterKeys, key)
	s.watch(key, pruneRef{counter: key})
}

// extendCounterEntries enumerates a counter's term bindings and adds the
// missing entries; already-known bindings are skipped, so waves only append.
func (s *Store) extendCounterEntries(ci *ChoiceInfo, cs *counterState) error {
	args := cs.key.argsSlice()
	for ti, term := range ci.counter.Terms {
		ti, term := ti, term
		err := s.forEachBindingPrefixed(args, term.Vars, func(binding []ObjectID) error {
			s.addCounterEntry(ci, cs, ti, term, binding)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// forEachBindingPrefixed enumerates term variables under a fixed prefix of
// the owner's arguments; setArgs indices see the combined scope.
func (s *Store) forEachBindingPrefixed(prefix []ObjectID, vars []quantVar, fn func(binding []ObjectID) error) error {
	binding := make([]ObjectID, len(prefix)+len(vars))
	copy(binding, prefix)
	var rec func(i int) error
	rec = func(i int) error {
		if i == len(vars) {
			return fn(append([]ObjectID(nil), binding...))
		}
		v := vars[i]
		if v.set == noSet {
			return nil
		}
		var parents []ObjectID
		for _, idx := range v.setArgs {
			parents = append(parents, binding[idx])
		}
		for _, obj := range s.cat.objects(v.set, parents...) {
			binding[len(prefix)+i] = obj
			if err := rec(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(0)
}

// addCounterEntry creates one memoised contribution entry, evaluating static
// host guards once and registering the entry against everything it watches.
// Entries are keyed by choice, term and full binding so new-object re-walks
// skip what already exists.
func (s *Store) addCounterEntry(ci *ChoiceInfo, cs *counterState, termIdx int, term *CounterTermInfo, binding []ObjectID) {
	if s.markSeen("c", int(ci.id)*1024+termIdx, binding) {
		return
	}
	e := &counterEntry{binding: binding, contrib: term.Contrib}
	env := make(Env, len(binding))
	for i, n := range ci.argNames {
		env[n] = binding[i]
	}
	for i, v := range term.Vars {
		env[v.name] = binding[len(ci.argNames)+i]
	}
	for _, cond := range term.Guard {
		switch cond.kind {
		case condHost:
			val := s.inst.EvalPredicate(cond.code, env)
			if val == cond.negated {
				e.dead = true
				e.gs = guardFalse
				id := ci.counter.Op.Identity()
				e.loTerm, e.hiTerm = id, id
			}
		case condEnum:
			e.guards = append(e.guards, s.condRef(cond, binding))
		}
	}
	idx := len(cs.entries)
	cs.entries = append(cs.entries, e)
	if e.dead {
		return
	}
	ref := entryRef{counter: cs.key, idx: idx}
	for _, g := range e.guards {
		s.watch(g.key, ref)
	}
	switch term.Contrib.Kind {
	case ContribChoice, ContribCounter:
		src := s.desc.choices[term.Contrib.Choice]
		srcArgs := argsFrom(binding, term.Contrib.ArgVars)
		srcKey, _ := s.canonKey(src, srcArgs)
		e.srcKey = srcKey
		s.watch(srcKey, ref)
	}
	if cs.ready {
		// Entries appended by a wave refresh immediately so a published
		// aggregate never mixes in blank memos.
		s.refreshEntry(cs, e)
	}
	s.enqueue(ref)
}

// counterRef refreshes a whole counter after instantiation or a wave: every
// entry, the aggregate, and the contributor pruning. It also lifts the
// not-ready latch that keeps half-built memos from publishing.
type counterRef struct {
	counter instanceKey
}

func (r counterRef) run(s *Store) error {
	cs, ok := s.counters[r.counter]
	if !ok {
		return nil
	}
	for _, e := range cs.entries {
		s.refreshEntry(cs, e)
	}
	cs.ready = true
	if err := s.refreshCounter(cs); err != nil {
		return err
	}
	return s.pruneContributors(cs)
}

// condRef binds a compiled enum condition to a concrete instance, folding
// the canonicalisation adjustment into the mask.
func (s *Store) condRef(c *CondInfo, binding []ObjectID) guardRef {
	ri := s.desc.choices[c.choice]
	args := argsFrom(binding, c.argVars)
	key, swapped := s.canonKey(ri, args)
	mask := c.mask
	if swapped && ri.symmetry == AntiSymmetric {
		mask = permuteMask(mask, ri.involution)
	}
	return guardRef{key: key, mask: mask}
}

func argsFrom(binding []ObjectID, idxs []int) []ObjectID {
	out := make([]ObjectID, len(idxs))
	for i, idx := range idxs {
		out[i] = binding[idx]
	}
	return out
}

// bindRequire materialises one requirement binding: a counter bound, a
// static host check, or one filter edge per fragment.
func (s *Store) bindRequire(req *RequireInfo, binding []ObjectID) error {
	if s.markSeen("r", req.id, binding) {
		return nil
	}
	if req.bound != nil {
		b := req.bound
		ref := s.desc.choices[b.Choice]
		key, _ := s.canonKey(ref, argsFrom(binding, b.ArgVars))
		cur, ok := s.domains[key].(CounterDomain)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownChoice, ref.name)
		}
		next := cur
		if b.Op == CmpLE {
			next = next.WithUpperBound(b.Bound)
		} else {
			next = next.WithLowerBound(b.Bound)
		}
		return s.setCounterDomain(key, cur, next)
	}

	// Host conditions are static with respect to the instance: evaluate
	// them once. A satisfied host condition satisfies the whole clause for
	// this binding; a failed one simply drops out.
	env := bindingEnv(req.vars, binding)
	hostSatisfied := false
	hasEnum := false
	for _, cond := range req.conds {
		switch cond.kind {
		case condHost:
			if s.inst.EvalPredicate(cond.code, env) != cond.negated {
				hostSatisfied = true
			}
		case condEnum:
			hasEnum = true
		}
	}
	if hostSatisfied {
		return nil
	}
	if !hasEnum {
		s.failed = true
		return fmt.Errorf("static requirement unsatisfiable for %v: %w", binding, ErrContradiction)
	}
	for _, frag := range req.fragments {
		s.bindFragment(req, frag, binding)
	}
	return nil
}

// bindFragment builds the runtime edge of one fragment under one binding and
// registers it against every condition instance it reads.
func (s *Store) bindFragment(req *RequireInfo, frag *FilterFragment, binding []ObjectID) {
	target := req.conds[frag.target]
	ti := s.desc.choices[target.choice]
	targetArgs := argsFrom(binding, target.argVars)
	key, swapped := s.canonKey(ti, targetArgs)
	e := &edge{
		frag:   frag,
		target: key,
		full:   ti.enum.full,
		guards: make(map[int]guardRef),
	}
	for _, row := range frag.rows {
		remove := row.Remove
		if swapped && ti.symmetry == AntiSymmetric {
			remove = permuteMask(remove, ti.involution)
		}
		e.rows = append(e.rows, edgeRow{certainlyFalse: row.CertainlyFalse, remove: remove})
	}
	for i, cond := range req.conds {
		if i == frag.target || cond.kind != condEnum {
			continue
		}
		g := s.condRef(cond, binding)
		e.guards[i] = g
		s.watch(g.key, e)
	}
	s.enqueue(e)
}

// bindTrigger materialises one trigger tuple and wires its guard.
func (s *Store) bindTrigger(trig *TriggerInfo, binding []ObjectID) error {
	if s.markSeen("t", int(trig.id), binding) {
		return nil
	}
	env := bindingEnv(trig.vars, binding)
	ts := &triggerState{
		info:    trig,
		binding: binding,
		env:     env,
	}
	for _, cond := range trig.guard {
		switch cond.kind {
		case condHost:
			if s.inst.EvalPredicate(cond.code, env) == cond.negated {
				ts.dead = true
			}
		case condEnum:
			ts.guards = append(ts.guards, s.condRef(cond, binding))
		}
	}
	idx := len(s.trigStates)
	s.trigStates = append(s.trigStates, ts)
	if ts.dead {
		return nil
	}
	ref := trigRef{idx: idx}
	for _, g := range ts.guards {
		s.watch(g.key, ref)
	}
	s.enqueue(ref)
	return nil
}
