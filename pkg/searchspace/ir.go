// Package searchspace: the IR description.
//
// The description is the in-memory form of a parsed specification. It is
// built once from the AST by BuildDescription, validated in the same pass,
// and thereafter immutable: every store derived from it shares it read-only.
// Sets, choices, requirements and triggers are resolved to integer ids here;
// host-code strings are interned as Snippets keyed by content hash.
package searchspace

import (
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
)

// SetID identifies a declared set within a description.
type SetID int

// ChoiceID identifies a declared choice within a description.
type ChoiceID int

// TriggerID identifies a declared trigger within a description.
type TriggerID int

const noSet = SetID(-1)

// maxArity bounds the argument tuple of a choice instance. The source
// ecosystem never exceeds three arguments; four leaves headroom and keeps
// instance keys comparable.
const maxArity = 4

// ChoiceKind discriminates the three choice flavours.
type ChoiceKind int

const (
	// KindEnum is a choice over a finite named value set.
	KindEnum ChoiceKind = iota

	// KindInteger is a choice over a host-provided integer universe.
	KindInteger

	// KindCounter is an aggregate numeric choice derived from others.
	KindCounter
)

// String renders the kind.
func (k ChoiceKind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindInteger:
		return "integer"
	case KindCounter:
		return "counter"
	default:
		return "unknown"
	}
}

// SymmetryKind records a choice's declared argument symmetry.
type SymmetryKind int

const (
	// SymNone means argument order is significant.
	SymNone SymmetryKind = iota

	// Symmetric means the choice is invariant under swapping its two
	// arguments; the store keeps a single canonical instance per pair.
	Symmetric

	// AntiSymmetric means swapping the two arguments applies the declared
	// involution to the value.
	AntiSymmetric
)

// SetInfo is a resolved set declaration. All host-code values are opaque
// snippets passed through to the emitter and the host instance.
type SetInfo struct {
	id       SetID
	name     string
	pos      Pos
	args     []SetID
	subsetOf SetID
	subsets  []SetID
	disjoint []SetID

	quotientOf SetID
	equiv      Snippet
	repr       Snippet

	itemType     string
	idType       string
	itemGetter   Snippet
	idGetter     Snippet
	iterator     Snippet
	fromSuperset Snippet
	newObjs      Snippet
	addToSet     Snippet
	varPrefix    string
	reverse      []ReverseInfo

	dynamic bool
}

// ReverseInfo is a resolved reverse-lookup declaration: the back index from a
// superset element to the subset elements derived from it. The index itself
// is rebuilt lazily by the host; the description only carries the contract.
type ReverseInfo struct {
	VarName string
	Set     SetID
	Expr    Snippet
}

// ID returns the set's id.
func (s *SetInfo) ID() SetID { return s.id }

// Name returns the declared set name.
func (s *SetInfo) Name() string { return s.name }

// Arity returns the number of parameters the set takes.
func (s *SetInfo) Arity() int { return len(s.args) }

// SubsetOf returns the declared superset id, or false when the set is not a
// subset.
func (s *SetInfo) SubsetOf() (SetID, bool) { return s.subsetOf, s.subsetOf != noSet }

// QuotientOf returns the quotiented set id, or false for plain sets.
func (s *SetInfo) QuotientOf() (SetID, bool) { return s.quotientOf, s.quotientOf != noSet }

// Dynamic reports whether the set can grow during propagation through
// add_to_set hooks.
func (s *SetInfo) Dynamic() bool { return s.dynamic }

// Iterator returns the host-side iteration snippet.
func (s *SetInfo) Iterator() Snippet { return s.iterator }

// ChoiceInfo is a resolved choice declaration.
type ChoiceInfo struct {
	id         ChoiceID
	name       string
	pos        Pos
	kind       ChoiceKind
	args       []SetID
	argNames   []string
	argSetArgs [][]int

	symmetry   SymmetryKind
	involution []int

	enum          *EnumType
	valueRequires [][]Snippet

	universe Snippet

	counter *CounterInfo

	fragments []*FilterFragment
}

// ID returns the choice's id.
func (c *ChoiceInfo) ID() ChoiceID { return c.id }

// Name returns the declared choice name.
func (c *ChoiceInfo) Name() string { return c.name }

// Kind returns the choice flavour.
func (c *ChoiceInfo) Kind() ChoiceKind { return c.kind }

// Arity returns the argument tuple size.
func (c *ChoiceInfo) Arity() int { return len(c.args) }

// ArgSets returns the sets the argument tuple draws from.
func (c *ChoiceInfo) ArgSets() []SetID { return append([]SetID(nil), c.args...) }

// Enum returns the value universe of an enum choice, nil otherwise.
func (c *ChoiceInfo) Enum() *EnumType { return c.enum }

// Symmetry returns the declared argument symmetry.
func (c *ChoiceInfo) Symmetry() SymmetryKind { return c.symmetry }

// Counter returns the counter definition of a counter choice, nil otherwise.
func (c *ChoiceInfo) Counter() *CounterInfo { return c.counter }

// CounterInfo is the resolved aggregate definition of a counter choice.
type CounterInfo struct {
	Op    MonoidOp
	Half  bool
	Base  int64
	Terms []*CounterTermInfo
}

// CounterTermInfo is one resolved contribution term. Guard conditions index
// their argument variables into the combined scope: the counter's own
// arguments first, then the term's forall variables.
type CounterTermInfo struct {
	Vars    []quantVar
	Guard   []*CondInfo
	Contrib ContribInfo
}

// ContribInfo is a resolved contribution source.
type ContribInfo struct {
	Kind    ContribKind
	Const   int64
	Choice  ChoiceID
	ArgVars []int
}

// quantVar is one universally quantified variable: a name bound over a set,
// whose parameters (if any) reference earlier variables in the same scope.
type quantVar struct {
	name    string
	set     SetID
	setArgs []int
}

// condKind discriminates compiled conditions.
type condKind int

const (
	condEnum condKind = iota
	condHost
)

// CondInfo is a compiled condition. Enum conditions hold the resolved value
// mask, with negation already folded into the mask; host conditions hold the
// snippet and its polarity.
type CondInfo struct {
	pos     Pos
	kind    condKind
	negated bool
	choice  ChoiceID
	argVars []int
	mask    uint64
	code    Snippet
}

// RequireInfo is a compiled universally quantified requirement. A body that
// is a lone counter comparison compiles to a bound instead of fragments.
type RequireInfo struct {
	id        int
	pos       Pos
	vars      []quantVar
	conds     []*CondInfo
	bound     *CounterBound
	fragments []*FilterFragment
}

// CounterBound is a compiled `require counter op constant` body.
type CounterBound struct {
	Choice  ChoiceID
	ArgVars []int
	Op      CmpOp
	Bound   int64
}

// TriggerInfo is a compiled trigger declaration.
type TriggerInfo struct {
	id        TriggerID
	pos       Pos
	vars      []quantVar
	guard     []*CondInfo
	action    Snippet
	newObjSet SetID
}

// ID returns the trigger's id.
func (t *TriggerInfo) ID() TriggerID { return t.id }

// Description is the immutable, shared form of a specification. One
// description serves any number of stores over any number of IR instances.
type Description struct {
	sets        []*SetInfo
	setIndex    map[string]SetID
	choices     []*ChoiceInfo
	choiceIndex map[string]ChoiceID
	requires    []*RequireInfo
	triggers    []*TriggerInfo
	fragments   []*FilterFragment
	snippets    map[uint64]Snippet
}

// Set looks a set up by name.
func (d *Description) Set(name string) (*SetInfo, bool) {
	id, ok := d.setIndex[name]
	if !ok {
		return nil, false
	}
	return d.sets[id], true
}

// Choice looks a choice up by name.
func (d *Description) Choice(name string) (*ChoiceInfo, bool) {
	id, ok := d.choiceIndex[name]
	if !ok {
		return nil, false
	}
	return d.choices[id], true
}

// Sets returns all declared sets in declaration order.
func (d *Description) Sets() []*SetInfo {
	return append([]*SetInfo(nil), d.sets...)
}

// Choices returns all declared choices in declaration order.
func (d *Description) Choices() []*ChoiceInfo {
	return append([]*ChoiceInfo(nil), d.choices...)
}

// NumFragments returns the number of compiled filter fragments.
func (d *Description) NumFragments() int { return len(d.fragments) }

// intern deduplicates a host-code string into a Snippet. Equal snippets share
// one entry so compiled state keyed by hash is shared too.
func (d *Description) intern(code string) Snippet {
	if code == "" {
		return Snippet{}
	}
	s := NewSnippet(code)
	if prev, ok := d.snippets[s.Hash()]; ok && prev.Code() == code {
		return prev
	}
	d.snippets[s.Hash()] = s
	return s
}

// setKeyNames are the recognised keys of a set body. Anything else is a
// specification error.
var setKeyNames = map[string]bool{
	"item_type":     true,
	"id_type":       true,
	"item_getter":   true,
	"id_getter":     true,
	"iterator":      true,
	"from_superset": true,
	"var_prefix":    true,
	"new_objs":      true,
	"add_to_set":    true,
}

// BuildDescription resolves and validates a parsed specification. All
// specification errors are accumulated and returned together; a non-nil
// error means the description must not be used.
func BuildDescription(spec *SpecFile) (*Description, error) {
	b := &builder{
		desc: &Description{
			setIndex:    make(map[string]SetID),
			choiceIndex: make(map[string]ChoiceID),
			snippets:    make(map[uint64]Snippet),
		},
	}
	b.buildSets(spec.Sets)
	b.buildEnums(spec.Enums)
	b.buildIntegers(spec.Integers)
	b.buildCounters(spec.Counters)
	b.checkCounterCycles()
	b.buildRequires(spec.Requires)
	b.buildTriggers(spec.Triggers)
	if b.errs != nil {
		return nil, b.errs.ErrorOrNil()
	}
	return b.desc, nil
}

// builder carries the in-progress description and the accumulated errors.
type builder struct {
	desc *Description
	errs *multierror.Error
}

func (b *builder) errorf(pos Pos, format string, args ...interface{}) {
	b.errs = multierror.Append(b.errs, specErrorf(pos, format, args...))
}

func (b *builder) buildSets(defs []*SetDef) {
	// First pass: register names so forward references resolve.
	for _, def := range defs {
		if _, dup := b.desc.setIndex[def.Name]; dup {
			b.errorf(def.Pos, "set %s declared twice", def.Name)
			continue
		}
		info := &SetInfo{
			id:         SetID(len(b.desc.sets)),
			name:       def.Name,
			pos:        def.Pos,
			subsetOf:   noSet,
			quotientOf: noSet,
		}
		b.desc.sets = append(b.desc.sets, info)
		b.desc.setIndex[def.Name] = info.id
	}

	// Second pass: resolve relationships and record host-code keys.
	for _, def := range defs {
		id, ok := b.desc.setIndex[def.Name]
		if !ok {
			continue
		}
		info := b.desc.sets[id]
		for _, arg := range def.Args {
			argID, ok := b.desc.setIndex[arg.Set]
			if !ok {
				b.errorf(arg.Pos, "set %s: undefined parameter set %s", def.Name, arg.Set)
				continue
			}
			info.args = append(info.args, argID)
		}
		if def.SubsetOf != "" {
			super, ok := b.desc.setIndex[def.SubsetOf]
			if !ok {
				b.errorf(def.Pos, "set %s: undefined superset %s", def.Name, def.SubsetOf)
			} else {
				info.subsetOf = super
				b.desc.sets[super].subsets = append(b.desc.sets[super].subsets, id)
			}
		}
		for _, dis := range def.Disjoint {
			other, ok := b.desc.setIndex[dis]
			if !ok {
				b.errorf(def.Pos, "set %s: undefined disjoint set %s", def.Name, dis)
				continue
			}
			info.disjoint = append(info.disjoint, other)
		}
		if q := def.Quotient; q != nil {
			of, ok := b.desc.setIndex[q.Of]
			if !ok {
				b.errorf(q.Pos, "set %s: undefined quotiented set %s", def.Name, q.Of)
			} else {
				info.quotientOf = of
				info.equiv = b.desc.intern(q.Equiv)
				info.repr = b.desc.intern(q.Repr)
				info.dynamic = true
			}
		}
		for key, val := range def.Keys {
			if !setKeyNames[key] {
				b.errorf(def.Pos, "set %s: unknown key %q", def.Name, key)
				continue
			}
			switch key {
			case "item_type":
				info.itemType = val
			case "id_type":
				info.idType = val
			case "item_getter":
				info.itemGetter = b.desc.intern(val)
			case "id_getter":
				info.idGetter = b.desc.intern(val)
			case "iterator":
				info.iterator = b.desc.intern(val)
			case "from_superset":
				info.fromSuperset = b.desc.intern(val)
			case "var_prefix":
				info.varPrefix = val
			case "new_objs":
				info.newObjs = b.desc.intern(val)
			case "add_to_set":
				info.addToSet = b.desc.intern(val)
				info.dynamic = true
			}
		}
		for _, rev := range def.Reverse {
			revSet, ok := b.desc.setIndex[rev.Set]
			if !ok {
				b.errorf(rev.Pos, "set %s: undefined reverse set %s", def.Name, rev.Set)
				continue
			}
			info.reverse = append(info.reverse, ReverseInfo{
				VarName: rev.Var,
				Set:     revSet,
				Expr:    b.desc.intern(rev.Expr),
			})
		}
	}
}

// registerChoice allocates a choice id, checking name collisions and arity.
func (b *builder) registerChoice(pos Pos, name string, args []ArgDef, kind ChoiceKind) *ChoiceInfo {
	if _, dup := b.desc.choiceIndex[name]; dup {
		b.errorf(pos, "choice %s declared twice", name)
		return nil
	}
	if len(args) > maxArity {
		b.errorf(pos, "choice %s: arity %d exceeds the maximum of %d", name, len(args), maxArity)
		return nil
	}
	info := &ChoiceInfo{
		id:       ChoiceID(len(b.desc.choices)),
		name:     name,
		pos:      pos,
		kind:     kind,
		symmetry: SymNone,
	}
	for i, arg := range args {
		setID, ok := b.desc.setIndex[arg.Set]
		if !ok {
			b.errorf(arg.Pos, "choice %s: undefined set %s", name, arg.Set)
			setID = noSet
		}
		info.args = append(info.args, setID)
		info.argNames = append(info.argNames, arg.Name)
		var setArgs []int
		for _, ref := range arg.SetArgs {
			idx := -1
			for j := 0; j < i; j++ {
				if args[j].Name == ref {
					idx = j
					break
				}
			}
			if idx < 0 {
				b.errorf(arg.Pos, "choice %s: set parameter %s does not name an earlier argument", name, ref)
			}
			setArgs = append(setArgs, idx)
		}
		info.argSetArgs = append(info.argSetArgs, setArgs)
	}
	b.desc.choices = append(b.desc.choices, info)
	b.desc.choiceIndex[name] = info.id
	return info
}

func (b *builder) buildEnums(defs []*EnumDef) {
	for _, def := range defs {
		info := b.registerChoice(def.Pos, def.Name, def.Args, KindEnum)
		if info == nil {
			continue
		}
		if len(def.Values) == 0 {
			b.errorf(def.Pos, "enum %s declares no values", def.Name)
			continue
		}
		if len(def.Values) > maxEnumValues {
			b.errorf(def.Pos, "enum %s declares %d values, more than the supported %d", def.Name, len(def.Values), maxEnumValues)
			continue
		}
		names := make([]string, 0, len(def.Values))
		seen := make(map[string]bool, len(def.Values))
		for _, v := range def.Values {
			if seen[v.Name] {
				b.errorf(v.Pos, "enum %s: value %s declared twice", def.Name, v.Name)
				continue
			}
			seen[v.Name] = true
			names = append(names, v.Name)
		}
		typ := newEnumType(def.Name, names)
		info.enum = typ
		info.valueRequires = make([][]Snippet, len(names))
		for _, v := range def.Values {
			idx, ok := typ.ValueIndex(v.Name)
			if !ok {
				continue
			}
			for _, req := range v.Requires {
				info.valueRequires[idx] = append(info.valueRequires[idx], b.desc.intern(req))
			}
		}
		for _, alias := range def.Aliases {
			if seen[alias.Name] {
				b.errorf(alias.Pos, "enum %s: alias %s collides with a value name", def.Name, alias.Name)
				continue
			}
			if _, dup := typ.aliases[alias.Name]; dup {
				b.errorf(alias.Pos, "enum %s: alias %s declared twice", def.Name, alias.Name)
				continue
			}
			var mask uint64
			bad := false
			for _, vn := range alias.Values {
				m, ok := typ.resolve(vn)
				if !ok {
					b.errorf(alias.Pos, "enum %s: alias %s references undefined value %s", def.Name, alias.Name, vn)
					bad = true
					break
				}
				mask |= m
			}
			if !bad {
				typ.addAlias(alias.Name, mask)
			}
		}
		b.buildSymmetry(def, info, typ)
	}
}

// buildSymmetry validates and records a symmetric or antisymmetric
// declaration. Both forms demand exactly two arguments over the same set.
func (b *builder) buildSymmetry(def *EnumDef, info *ChoiceInfo, typ *EnumType) {
	if def.Symmetric && len(def.AntiSymmetric) > 0 {
		b.errorf(def.Pos, "enum %s declared both symmetric and antisymmetric", def.Name)
		return
	}
	if !def.Symmetric && len(def.AntiSymmetric) == 0 {
		return
	}
	if len(info.args) != 2 || info.args[0] != info.args[1] {
		b.errorf(def.Pos, "enum %s: symmetry needs exactly two arguments over the same set", def.Name)
		return
	}
	if def.Symmetric {
		info.symmetry = Symmetric
		return
	}
	perm := make([]int, typ.Size())
	for i := range perm {
		perm[i] = i
	}
	touched := make(map[int]bool)
	for _, pair := range def.AntiSymmetric {
		i, ok := typ.ValueIndex(pair[0])
		if !ok {
			b.errorf(def.Pos, "enum %s: involution references undefined value %s", def.Name, pair[0])
			return
		}
		j, ok := typ.ValueIndex(pair[1])
		if !ok {
			b.errorf(def.Pos, "enum %s: involution references undefined value %s", def.Name, pair[1])
			return
		}
		if touched[i] || touched[j] {
			b.errorf(def.Pos, "enum %s: involution maps a value twice", def.Name)
			return
		}
		touched[i], touched[j] = true, true
		perm[i], perm[j] = j, i
	}
	info.symmetry = AntiSymmetric
	info.involution = perm
}

func (b *builder) buildIntegers(defs []*IntegerDef) {
	for _, def := range defs {
		info := b.registerChoice(def.Pos, def.Name, def.Args, KindInteger)
		if info == nil {
			continue
		}
		if def.Universe == "" {
			b.errorf(def.Pos, "integer %s declares no universe expression", def.Name)
			continue
		}
		info.universe = b.desc.intern(def.Universe)
	}
}

func (b *builder) buildCounters(defs []*CounterDef) {
	// Register every counter before compiling terms, so a contribution may
	// name a counter declared later and cycles reach checkCounterCycles.
	infos := make([]*ChoiceInfo, len(defs))
	for i, def := range defs {
		infos[i] = b.registerChoice(def.Pos, def.Name, def.Args, KindCounter)
	}
	for i, def := range defs {
		info := infos[i]
		if info == nil {
			continue
		}
		base := def.Base
		if base == 0 && def.Kind == OpMul {
			base = 1
		}
		ci := &CounterInfo{Op: def.Kind, Half: def.Half, Base: base}
		scope := b.choiceScope(info)
		for _, term := range def.Terms {
			termScope, vars := b.extendScope(def.Name, scope, term.Forall)
			ti := &CounterTermInfo{Vars: vars}
			ti.Guard = b.compileConds(def.Name, termScope, term.Guard)
			ti.Contrib = b.compileContrib(def.Name, termScope, term.Contrib)
			ci.Terms = append(ci.Terms, ti)
		}
		info.counter = ci
	}
}

// compileContrib resolves a counter contribution to a constant or a choice
// reference. Enum choices cannot contribute; only integers and counters have
// numeric values.
func (b *builder) compileContrib(counter string, scope []scopeVar, def ContribDef) ContribInfo {
	switch def.Kind {
	case ContribConst:
		return ContribInfo{Kind: ContribConst, Const: def.Const}
	case ContribChoice, ContribCounter:
		id, ok := b.desc.choiceIndex[def.Name]
		if !ok {
			b.errorf(def.Pos, "counter %s: undefined choice %s in contribution", counter, def.Name)
			return ContribInfo{Kind: ContribConst, Const: 0}
		}
		ref := b.desc.choices[id]
		kind := ContribChoice
		switch ref.kind {
		case KindInteger:
			kind = ContribChoice
		case KindCounter:
			kind = ContribCounter
		default:
			b.errorf(def.Pos, "counter %s: contribution %s must be an integer or counter choice", counter, def.Name)
			return ContribInfo{Kind: ContribConst, Const: 0}
		}
		argVars, ok := b.resolveArgVars(def.Pos, scope, def.Name, def.Args, ref)
		if !ok {
			return ContribInfo{Kind: ContribConst, Const: 0}
		}
		return ContribInfo{Kind: kind, Choice: id, ArgVars: argVars}
	default:
		b.errorf(def.Pos, "counter %s: unknown contribution kind", counter)
		return ContribInfo{Kind: ContribConst, Const: 0}
	}
}

// checkCounterCycles rejects counters whose contributions reference each
// other in a cycle; their intervals would never reach a fixpoint bottom-up.
func (b *builder) checkCounterCycles() {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[ChoiceID]int)
	var visit func(id ChoiceID) bool
	visit = func(id ChoiceID) bool {
		switch color[id] {
		case grey:
			return false
		case black:
			return true
		}
		color[id] = grey
		info := b.desc.choices[id]
		if info.counter != nil {
			for _, term := range info.counter.Terms {
				if term.Contrib.Kind == ContribCounter {
					if !visit(term.Contrib.Choice) {
						b.errorf(info.pos, "counter %s participates in a cyclic definition", info.name)
						color[id] = black
						return true
					}
				}
			}
		}
		color[id] = black
		return true
	}
	for _, info := range b.desc.choices {
		if info.kind == KindCounter {
			visit(info.id)
		}
	}
}

// scopeVar is one name visible to condition compilation.
type scopeVar struct {
	name string
	set  SetID
}

// choiceScope builds the scope formed by a choice's own arguments.
func (b *builder) choiceScope(info *ChoiceInfo) []scopeVar {
	scope := make([]scopeVar, len(info.argNames))
	for i, n := range info.argNames {
		scope[i] = scopeVar{name: n, set: info.args[i]}
	}
	return scope
}

// extendScope appends forall variables to a scope, resolving each variable's
// set and any parameters referencing earlier variables.
func (b *builder) extendScope(owner string, scope []scopeVar, foralls []ArgDef) ([]scopeVar, []quantVar) {
	out := append([]scopeVar(nil), scope...)
	var vars []quantVar
	for _, f := range foralls {
		setID, ok := b.desc.setIndex[f.Set]
		if !ok {
			b.errorf(f.Pos, "%s: undefined set %s in forall", owner, f.Set)
			setID = noSet
		}
		qv := quantVar{name: f.Name, set: setID}
		for _, ref := range f.SetArgs {
			idx := -1
			for j, sv := range out {
				if sv.name == ref {
					idx = j
					break
				}
			}
			if idx < 0 {
				b.errorf(f.Pos, "%s: set parameter %s does not name a variable in scope", owner, ref)
			}
			qv.setArgs = append(qv.setArgs, idx)
		}
		vars = append(vars, qv)
		out = append(out, scopeVar{name: f.Name, set: setID})
	}
	return out, vars
}

// resolveArgVars maps a condition's argument names to scope indices and
// checks the arity and argument sets against the referenced choice. Arguments
// drawn from a subset are accepted where the choice expects the superset.
func (b *builder) resolveArgVars(pos Pos, scope []scopeVar, name string, args []string, ref *ChoiceInfo) ([]int, bool) {
	if len(args) != len(ref.args) {
		b.errorf(pos, "choice %s takes %d arguments, got %d", name, len(ref.args), len(args))
		return nil, false
	}
	argVars := make([]int, len(args))
	for i, a := range args {
		idx := -1
		for j, sv := range scope {
			if sv.name == a {
				idx = j
				break
			}
		}
		if idx < 0 {
			b.errorf(pos, "choice %s: argument %s does not name a variable in scope", name, a)
			return nil, false
		}
		if !b.setCompatible(scope[idx].set, ref.args[i]) {
			b.errorf(pos, "choice %s: argument %s is drawn from %s, expected %s",
				name, a, b.setName(scope[idx].set), b.setName(ref.args[i]))
			return nil, false
		}
		argVars[i] = idx
	}
	return argVars, true
}

// setCompatible reports whether an argument from set `from` can stand where
// `want` is expected: the same set or any transitive subset of it. A
// quotient set with no declared superset stands for the set it quotients.
func (b *builder) setCompatible(from, want SetID) bool {
	if from == noSet || want == noSet {
		return true
	}
	for cur := from; cur != noSet; {
		if cur == want {
			return true
		}
		info := b.desc.sets[cur]
		next := info.subsetOf
		if next == noSet && info.quotientOf != noSet {
			next = info.quotientOf
		}
		cur = next
	}
	return false
}

func (b *builder) setName(id SetID) string {
	if id == noSet {
		return "?"
	}
	return b.desc.sets[id].name
}

// compileConds compiles a condition list. Counter comparisons are rejected
// here: the only body shape with a monotone filter form for them is the lone
// `require counter op constant`, which buildRequires routes to
// compileCounterBound before reaching this point.
func (b *builder) compileConds(owner string, scope []scopeVar, defs []CondDef) []*CondInfo {
	var out []*CondInfo
	for _, def := range defs {
		switch {
		case def.Choice != nil:
			ci := b.compileChoiceCond(owner, scope, def)
			if ci != nil {
				out = append(out, ci)
			}
		case def.Counter != nil:
			b.errorf(def.Pos, "%s: counter comparison cannot be combined with other conditions; it has no monotone filter form", owner)
		case def.Code != "":
			out = append(out, &CondInfo{
				pos:     def.Pos,
				kind:    condHost,
				negated: def.Negated,
				code:    b.desc.intern(def.Code),
			})
		default:
			b.errorf(def.Pos, "%s: empty condition", owner)
		}
	}
	return out
}

// compileChoiceCond resolves one `choice(args) is ValueSet` test. Negation is
// folded into the mask so every compiled enum condition is a positive
// membership test, keeping filters monotone.
func (b *builder) compileChoiceCond(owner string, scope []scopeVar, def CondDef) *CondInfo {
	cd := def.Choice
	id, ok := b.desc.choiceIndex[cd.Name]
	if !ok {
		b.errorf(def.Pos, "%s: undefined choice %s", owner, cd.Name)
		return nil
	}
	ref := b.desc.choices[id]
	if ref.kind != KindEnum {
		b.errorf(def.Pos, "%s: choice %s is %s; value tests apply to enum choices only", owner, cd.Name, ref.kind)
		return nil
	}
	argVars, ok := b.resolveArgVars(def.Pos, scope, cd.Name, cd.Args, ref)
	if !ok {
		return nil
	}
	var mask uint64
	for _, vn := range cd.Values {
		m, ok := ref.enum.resolve(vn)
		if !ok {
			b.errorf(def.Pos, "%s: enum %s has no value or alias %s", owner, cd.Name, vn)
			return nil
		}
		mask |= m
	}
	if def.Negated {
		mask = ^mask & ref.enum.full
	}
	return &CondInfo{
		pos:     def.Pos,
		kind:    condEnum,
		choice:  id,
		argVars: argVars,
		mask:    mask,
	}
}

func (b *builder) buildRequires(defs []*RequireDef) {
	for _, def := range defs {
		scope, vars := b.extendScope("require", nil, def.Forall)
		req := &RequireInfo{
			id:   len(b.desc.requires),
			pos:  def.Pos,
			vars: vars,
		}
		if len(def.Conds) == 0 {
			b.errorf(def.Pos, "require has no conditions")
		} else if len(def.Conds) == 1 && def.Conds[0].Counter != nil {
			req.bound = b.compileCounterBound(scope, def.Conds[0])
		} else {
			req.conds = b.compileConds("require", scope, def.Conds)
			b.checkSymmetryDemand(def.Pos, req.conds)
			b.compileFragments(req)
		}
		b.desc.requires = append(b.desc.requires, req)
	}
}

// compileCounterBound resolves a lone `require counter op constant` body.
func (b *builder) compileCounterBound(scope []scopeVar, def CondDef) *CounterBound {
	cc := def.Counter
	if def.Negated {
		b.errorf(def.Pos, "require: negated counter comparison has no monotone filter form")
		return nil
	}
	id, ok := b.desc.choiceIndex[cc.Name]
	if !ok {
		b.errorf(def.Pos, "require: undefined counter %s", cc.Name)
		return nil
	}
	ref := b.desc.choices[id]
	if ref.kind != KindCounter {
		b.errorf(def.Pos, "require: choice %s is %s, not a counter", cc.Name, ref.kind)
		return nil
	}
	argVars, ok := b.resolveArgVars(def.Pos, scope, cc.Name, cc.Args, ref)
	if !ok {
		return nil
	}
	return &CounterBound{Choice: id, ArgVars: argVars, Op: cc.Op, Bound: cc.Bound}
}

// checkSymmetryDemand rejects clauses that reference the same choice with the
// same variables in permuted order when the choice declares no symmetry. Such
// bodies are only meaningful when the store canonicalises the two tuples onto
// one instance.
func (b *builder) checkSymmetryDemand(pos Pos, conds []*CondInfo) {
	for i, a := range conds {
		if a.kind != condEnum || len(a.argVars) != 2 {
			continue
		}
		for _, c := range conds[i+1:] {
			if c.kind != condEnum || c.choice != a.choice {
				continue
			}
			if len(c.argVars) == 2 && c.argVars[0] == a.argVars[1] && c.argVars[1] == a.argVars[0] {
				if b.desc.choices[a.choice].symmetry == SymNone {
					b.errorf(pos, "require references %s with swapped arguments but the enum is not declared symmetric or antisymmetric",
						b.desc.choices[a.choice].name)
				}
			}
		}
	}
}

func (b *builder) buildTriggers(defs []*TriggerDef) {
	for _, def := range defs {
		scope, vars := b.extendScope("trigger", nil, def.Forall)
		info := &TriggerInfo{
			id:        TriggerID(len(b.desc.triggers)),
			pos:       def.Pos,
			vars:      vars,
			action:    b.desc.intern(def.Action),
			newObjSet: noSet,
		}
		if def.Action == "" {
			b.errorf(def.Pos, "trigger declares no action")
		}
		info.guard = b.compileConds("trigger", scope, def.Guard)
		if def.NewObjsSet != "" {
			setID, ok := b.desc.setIndex[def.NewObjsSet]
			if !ok {
				b.errorf(def.Pos, "trigger: undefined set %s for new objects", def.NewObjsSet)
			} else {
				info.newObjSet = setID
				b.desc.sets[setID].dynamic = true
			}
		}
		b.desc.triggers = append(b.desc.triggers, info)
	}
}

// choiceName is a diagnostic helper.
func (d *Description) choiceName(id ChoiceID) string {
	if int(id) < 0 || int(id) >= len(d.choices) {
		return fmt.Sprintf("choice#%d", id)
	}
	return d.choices[id].name
}
