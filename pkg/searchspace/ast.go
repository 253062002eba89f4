// Package searchspace: the AST contract.
//
// The lexer and parser are external collaborators; this file fixes the shape
// of what they hand to BuildDescription. Every node carries the source
// position the parser recorded so build-time diagnostics point at the
// offending declaration. The builder treats the AST as read-only.
package searchspace

// SpecFile is a parsed specification: the flattened result of the root file
// plus everything it included, in declaration order.
type SpecFile struct {
	Sets     []*SetDef
	Enums    []*EnumDef
	Integers []*IntegerDef
	Counters []*CounterDef
	Requires []*RequireDef
	Triggers []*TriggerDef
}

// ArgDef is one formal argument of a set, choice or quantifier: a name bound
// over a named set. For parameterised sets the set reference may itself take
// arguments, each naming an earlier formal in scope.
type ArgDef struct {
	Pos     Pos
	Name    string
	Set     string
	SetArgs []string
}

// SetDef declares a named collection of IR objects. The string-valued keys
// (item_type, id_type, item_getter, id_getter, iterator, from_superset,
// var_prefix, new_objs, add_to_set) are opaque host-code snippets recorded
// verbatim; the builder validates the key names and the set relationships but
// never parses the values.
type SetDef struct {
	Pos      Pos
	Name     string
	Args     []ArgDef
	SubsetOf string
	Disjoint []string
	Keys     map[string]string
	Reverse  []ReverseDef
	Quotient *QuotientDef
}

// ReverseDef is a `reverse forall $x in S = "expr"` entry: the host-side
// back-lookup from a superset element to the subset elements it came from.
type ReverseDef struct {
	Pos  Pos
	Var  string
	Set  string
	Expr string
}

// QuotientDef marks a set as the quotient of another set by an equivalence
// relation, with a representative accessor. Both relation and representative
// are host-code snippets.
type QuotientDef struct {
	Pos   Pos
	Of    string
	Equiv string
	Repr  string
}

// EnumDef declares an enum choice: a decision over a finite named value set,
// attached to an argument tuple.
type EnumDef struct {
	Pos           Pos
	Name          string
	Args          []ArgDef
	Values        []EnumValueDef
	Aliases       []EnumAliasDef
	Symmetric     bool
	AntiSymmetric [][2]string
}

// EnumValueDef is one declared value, optionally guarded by static host
// predicates evaluated against the IR instance when the choice is
// instantiated.
type EnumValueDef struct {
	Pos      Pos
	Name     string
	Requires []string
}

// EnumAliasDef names a union of values, e.g. PARALLEL = BLOCK | THREAD.
type EnumAliasDef struct {
	Pos    Pos
	Name   string
	Values []string
}

// IntegerDef declares an integer choice whose universe is a host-side
// expression producing an IntegerDomain.
type IntegerDef struct {
	Pos      Pos
	Name     string
	Args     []ArgDef
	Universe string
}

// CounterDef declares a counter choice aggregating guarded contributions over
// quantified sets.
type CounterDef struct {
	Pos   Pos
	Name  string
	Args  []ArgDef
	Kind  MonoidOp
	Half  bool
	Base  int64
	Terms []CounterTermDef
}

// CounterTermDef is one `forall $x in S when guard: contribution` term. The
// guard is a conjunction of conditions; the contribution is a constant, an
// integer-choice reference or a counter reference.
type CounterTermDef struct {
	Pos     Pos
	Forall  []ArgDef
	Guard   []CondDef
	Contrib ContribDef
}

// ContribKind discriminates counter contributions.
type ContribKind int

const (
	// ContribConst contributes a fixed value.
	ContribConst ContribKind = iota

	// ContribChoice contributes the value of an integer choice instance.
	ContribChoice

	// ContribCounter contributes the value of another counter instance.
	ContribCounter
)

// ContribDef is a counter term's contribution.
type ContribDef struct {
	Pos   Pos
	Kind  ContribKind
	Const int64
	Name  string
	Args  []string
}

// RequireDef is a universally quantified requirement. Its body is a single
// clause: a disjunction of conditions that must hold for every binding of the
// quantified variables. Conjunction is expressed as several RequireDefs.
type RequireDef struct {
	Pos    Pos
	Forall []ArgDef
	Conds  []CondDef
}

// CondDef is one condition in a clause or guard. Exactly one of Choice,
// Counter or Code is set. Negation on a choice test complements its value
// set at compile time; negation on a host predicate is preserved.
type CondDef struct {
	Pos     Pos
	Negated bool
	Choice  *ChoiceCondDef
	Counter *CounterCondDef
	Code    string
}

// ChoiceCondDef tests `choice(args) is ValueSet`. Args name quantified
// variables in scope; Values name enum values or aliases.
type ChoiceCondDef struct {
	Name   string
	Args   []string
	Values []string
}

// CmpOp is a comparison operator in a counter requirement.
type CmpOp int

const (
	// CmpLE requires counter <= bound.
	CmpLE CmpOp = iota

	// CmpGE requires counter >= bound.
	CmpGE
)

// String renders the operator.
func (op CmpOp) String() string {
	if op == CmpGE {
		return ">="
	}
	return "<="
}

// CounterCondDef compares a counter instance against a constant. Counter
// comparisons stand alone: the builder rejects clauses mixing them with other
// conditions, since such bodies have no monotone set-intersection form.
type CounterCondDef struct {
	Name  string
	Args  []string
	Op    CmpOp
	Bound int64
}

// TriggerDef declares a host-code hook fired at most once per argument tuple
// when its guard becomes unconditionally true. NewObjsSet optionally names
// the set the action extends; objects the host returns are then appended to
// that set and spawn new choice instances.
type TriggerDef struct {
	Pos        Pos
	Forall     []ArgDef
	Guard      []CondDef
	Action     string
	NewObjsSet string
}
