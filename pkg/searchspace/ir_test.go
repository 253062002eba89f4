package searchspace

import (
	"strings"
	"testing"
)

func TestBuildDescriptionEmptySpec(t *testing.T) {
	desc := mustBuild(t, &SpecFile{})
	if len(desc.Sets()) != 0 || len(desc.Choices()) != 0 {
		t.Fatal("empty spec should build an empty description")
	}
}

func TestBuildDescriptionResolvesRelationships(t *testing.T) {
	spec := &SpecFile{
		Sets: []*SetDef{
			dimSet(),
			{
				Name:     "StaticDims",
				SubsetOf: "Dims",
				Keys:     map[string]string{"from_superset": "$item.as_static()"},
				Reverse:  []ReverseDef{{Var: "d", Set: "Dims", Expr: "$objs.static_of($d)"}},
			},
			{
				Name:     "IterationDims",
				Quotient: &QuotientDef{Of: "Dims", Equiv: "$objs.merged($lhs, $rhs)", Repr: "$item.representative()"},
			},
		},
	}
	desc := mustBuild(t, spec)
	sub, ok := desc.Set("StaticDims")
	if !ok {
		t.Fatal("StaticDims not found")
	}
	super, ok := sub.SubsetOf()
	if !ok {
		t.Fatal("StaticDims should record its superset")
	}
	if name := desc.Sets()[super].Name(); name != "Dims" {
		t.Errorf("superset = %s, want Dims", name)
	}
	quot, _ := desc.Set("IterationDims")
	if _, ok := quot.QuotientOf(); !ok {
		t.Error("IterationDims should record the quotiented set")
	}
	if !quot.Dynamic() {
		t.Error("quotient sets grow during propagation and must be dynamic")
	}
}

// buildErr asserts that building fails and the message mentions want.
func buildErr(t *testing.T, spec *SpecFile, want string) {
	t.Helper()
	_, err := BuildDescription(spec)
	if err == nil {
		t.Fatalf("BuildDescription succeeded, want error mentioning %q", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not mention %q", err, want)
	}
}

func TestBuildDescriptionErrors(t *testing.T) {
	enum := func(mutate func(*EnumDef)) *SpecFile {
		def := &EnumDef{
			Name:   "dim_kind",
			Args:   []ArgDef{{Name: "d", Set: "Dims"}},
			Values: []EnumValueDef{{Name: "BLOCK"}, {Name: "THREAD"}},
		}
		if mutate != nil {
			mutate(def)
		}
		return &SpecFile{Sets: []*SetDef{dimSet()}, Enums: []*EnumDef{def}}
	}

	tests := []struct {
		name string
		spec *SpecFile
		want string
	}{
		{
			name: "undefined set",
			spec: enum(func(d *EnumDef) { d.Args[0].Set = "Statements" }),
			want: "undefined set",
		},
		{
			name: "unknown set key",
			spec: &SpecFile{Sets: []*SetDef{{Name: "Dims", Keys: map[string]string{"iterador": "x"}}}},
			want: "unknown key",
		},
		{
			name: "duplicate value",
			spec: enum(func(d *EnumDef) { d.Values = append(d.Values, EnumValueDef{Name: "BLOCK"}) }),
			want: "declared twice",
		},
		{
			name: "no values",
			spec: enum(func(d *EnumDef) { d.Values = nil }),
			want: "no values",
		},
		{
			name: "alias collides with value",
			spec: enum(func(d *EnumDef) {
				d.Aliases = []EnumAliasDef{{Name: "BLOCK", Values: []string{"THREAD"}}}
			}),
			want: "collides",
		},
		{
			name: "alias over undefined value",
			spec: enum(func(d *EnumDef) {
				d.Aliases = []EnumAliasDef{{Name: "PARALLEL", Values: []string{"VECTOR"}}}
			}),
			want: "undefined value",
		},
		{
			name: "symmetry on single argument",
			spec: enum(func(d *EnumDef) { d.Symmetric = true }),
			want: "symmetry needs exactly two arguments",
		},
		{
			name: "both symmetric and antisymmetric",
			spec: enum(func(d *EnumDef) {
				d.Args = append(d.Args, ArgDef{Name: "e", Set: "Dims"})
				d.Symmetric = true
				d.AntiSymmetric = [][2]string{{"BLOCK", "THREAD"}}
			}),
			want: "both symmetric and antisymmetric",
		},
		{
			name: "involution maps a value twice",
			spec: enum(func(d *EnumDef) {
				d.Args = append(d.Args, ArgDef{Name: "e", Set: "Dims"})
				d.AntiSymmetric = [][2]string{{"BLOCK", "THREAD"}, {"THREAD", "BLOCK"}}
			}),
			want: "maps a value twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildErr(t, tt.spec, tt.want)
		})
	}
}

func TestBuildDescriptionRequireErrors(t *testing.T) {
	base := func(conds ...CondDef) *SpecFile {
		spec := orderingSpec()
		spec.Requires = []*RequireDef{{
			Forall: []ArgDef{
				{Name: "a", Set: "Dims"},
				{Name: "b", Set: "Dims"},
			},
			Conds: conds,
		}}
		return spec
	}

	tests := []struct {
		name string
		spec *SpecFile
		want string
	}{
		{
			name: "undefined choice",
			spec: base(CondDef{Choice: &ChoiceCondDef{Name: "nope", Args: []string{"a", "b"}, Values: []string{"BEFORE"}}}),
			want: "undefined choice",
		},
		{
			name: "arity mismatch",
			spec: base(CondDef{Choice: &ChoiceCondDef{Name: "order", Args: []string{"a"}, Values: []string{"BEFORE"}}}),
			want: "takes 2 arguments",
		},
		{
			name: "unbound variable",
			spec: base(CondDef{Choice: &ChoiceCondDef{Name: "order", Args: []string{"a", "z"}, Values: []string{"BEFORE"}}}),
			want: "does not name a variable",
		},
		{
			name: "undefined value",
			spec: base(CondDef{Choice: &ChoiceCondDef{Name: "order", Args: []string{"a", "b"}, Values: []string{"NOWHERE"}}}),
			want: "no value or alias",
		},
		{
			name: "empty require",
			spec: base(),
			want: "no conditions",
		},
		{
			name: "counter comparison mixed into a clause",
			spec: func() *SpecFile {
				spec := blockBudgetSpec(3)
				spec.Requires = append(spec.Requires, &RequireDef{
					Forall: []ArgDef{{Name: "d", Set: "Dims"}},
					Conds: []CondDef{
						{Choice: &ChoiceCondDef{Name: "dim_kind", Args: []string{"d"}, Values: []string{"BLOCK"}}},
						{Counter: &CounterCondDef{Name: "block_count", Op: CmpLE, Bound: 2}},
					},
				})
				return spec
			}(),
			want: "no monotone filter form",
		},
		{
			name: "negated counter comparison",
			spec: func() *SpecFile {
				spec := blockBudgetSpec(3)
				spec.Requires = append(spec.Requires, &RequireDef{
					Conds: []CondDef{{
						Negated: true,
						Counter: &CounterCondDef{Name: "block_count", Op: CmpLE, Bound: 2},
					}},
				})
				return spec
			}(),
			want: "no monotone filter form",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildErr(t, tt.spec, tt.want)
		})
	}
}

func TestBuildDescriptionSwappedArgsDemandSymmetry(t *testing.T) {
	spec := &SpecFile{
		Sets: []*SetDef{dimSet()},
		Enums: []*EnumDef{{
			Name: "order",
			Args: []ArgDef{
				{Name: "a", Set: "Dims"},
				{Name: "b", Set: "Dims"},
			},
			Values: []EnumValueDef{{Name: "BEFORE"}, {Name: "AFTER"}},
			// No symmetry declared.
		}},
		Requires: []*RequireDef{{
			Forall: []ArgDef{
				{Name: "a", Set: "Dims"},
				{Name: "b", Set: "Dims"},
			},
			Conds: []CondDef{
				{Choice: &ChoiceCondDef{Name: "order", Args: []string{"a", "b"}, Values: []string{"BEFORE"}}},
				{Choice: &ChoiceCondDef{Name: "order", Args: []string{"b", "a"}, Values: []string{"BEFORE"}}},
			},
		}},
	}
	buildErr(t, spec, "not declared symmetric")
}

func TestBuildDescriptionCyclicCounters(t *testing.T) {
	counter := func(name, other string) *CounterDef {
		return &CounterDef{
			Name: name,
			Kind: OpSum,
			Terms: []CounterTermDef{{
				Contrib: ContribDef{Kind: ContribCounter, Name: other},
			}},
		}
	}
	spec := &SpecFile{
		Sets:     []*SetDef{dimSet()},
		Counters: []*CounterDef{counter("a_count", "b_count"), counter("b_count", "a_count")},
	}
	buildErr(t, spec, "cyclic")
}

func TestBuildDescriptionCompilesTruthTables(t *testing.T) {
	desc := mustBuild(t, orderingSpec())
	// The transitivity clause has three enum conditions; each yields one
	// fragment whose single surviving row removes the complement of its
	// value set when both other conditions are certainly false.
	if desc.NumFragments() != 3 {
		t.Fatalf("NumFragments() = %d, want 3", desc.NumFragments())
	}
	ci, _ := desc.Choice("order")
	for _, frag := range ci.fragments {
		rows := frag.Rows()
		if len(rows) != 1 {
			t.Fatalf("fragment has %d rows, want 1", len(rows))
		}
		if len(rows[0].CertainlyFalse) != 2 {
			t.Errorf("row guards %d conditions, want 2", len(rows[0].CertainlyFalse))
		}
		if rows[0].Remove == 0 {
			t.Error("row removes nothing; it should have been simplified away")
		}
	}
}

func TestDescriptionLookups(t *testing.T) {
	desc := mustBuild(t, orderingSpec())
	if _, ok := desc.Choice("order"); !ok {
		t.Error("Choice(order) not found")
	}
	if _, ok := desc.Choice("nope"); ok {
		t.Error("Choice(nope) should not resolve")
	}
	if _, ok := desc.Set("Dims"); !ok {
		t.Error("Set(Dims) not found")
	}
	ci, _ := desc.Choice("order")
	if ci.Kind() != KindEnum || ci.Arity() != 2 || ci.Symmetry() != AntiSymmetric {
		t.Errorf("order resolved as %s/%d/%d", ci.Kind(), ci.Arity(), ci.Symmetry())
	}
}
