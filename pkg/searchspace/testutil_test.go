package searchspace

// Shared fixtures: small specifications and instances exercised by the store,
// counter and trigger tests.

import "testing"

// mustBuild builds a description or fails the test.
func mustBuild(t *testing.T, spec *SpecFile) *Description {
	t.Helper()
	desc, err := BuildDescription(spec)
	if err != nil {
		t.Fatalf("BuildDescription failed: %v", err)
	}
	return desc
}

// mustOpen opens a store or fails the test.
func mustOpen(t *testing.T, desc *Description, inst Instance) *Store {
	t.Helper()
	s, err := Open(desc, inst)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

// dimsInstance is an instance with a single Dims set of n elements, ids 1..n.
func dimsInstance(n int) *MapInstance {
	dims := make([]ObjectID, n)
	for i := range dims {
		dims[i] = ObjectID(i + 1)
	}
	return &MapInstance{Sets: map[string][]ObjectID{"Dims": dims}}
}

// dimSet declares the plain Dims set.
func dimSet() *SetDef {
	return &SetDef{
		Name: "Dims",
		Keys: map[string]string{
			"item_type": "ir::dim::Obj",
			"id_type":   "ir::dim::Id",
			"iterator":  "$fun.dims()",
		},
	}
}

// orderingSpec declares the antisymmetric order enum with its transitivity
// requirement: order(a,b) BEFORE and order(b,c) BEFORE force order(a,c)
// BEFORE.
func orderingSpec() *SpecFile {
	return &SpecFile{
		Sets: []*SetDef{dimSet()},
		Enums: []*EnumDef{{
			Name: "order",
			Args: []ArgDef{
				{Name: "a", Set: "Dims"},
				{Name: "b", Set: "Dims"},
			},
			Values: []EnumValueDef{
				{Name: "BEFORE"},
				{Name: "AFTER"},
				{Name: "MERGED"},
			},
			AntiSymmetric: [][2]string{{"BEFORE", "AFTER"}},
		}},
		Requires: []*RequireDef{{
			Forall: []ArgDef{
				{Name: "a", Set: "Dims"},
				{Name: "b", Set: "Dims"},
				{Name: "c", Set: "Dims"},
			},
			Conds: []CondDef{
				{Negated: true, Choice: &ChoiceCondDef{Name: "order", Args: []string{"a", "b"}, Values: []string{"BEFORE"}}},
				{Negated: true, Choice: &ChoiceCondDef{Name: "order", Args: []string{"b", "c"}, Values: []string{"BEFORE"}}},
				{Choice: &ChoiceCondDef{Name: "order", Args: []string{"a", "c"}, Values: []string{"BEFORE"}}},
			},
		}},
	}
}

// blockBudgetSpec declares dim_kind plus a half counter over BLOCK dims
// bounded from above by maxBlocks.
func blockBudgetSpec(maxBlocks int64) *SpecFile {
	return &SpecFile{
		Sets: []*SetDef{dimSet()},
		Enums: []*EnumDef{{
			Name:   "dim_kind",
			Args:   []ArgDef{{Name: "d", Set: "Dims"}},
			Values: []EnumValueDef{{Name: "BLOCK"}, {Name: "THREAD"}, {Name: "PLAIN"}},
		}},
		Counters: []*CounterDef{{
			Name: "block_count",
			Kind: OpSum,
			Half: true,
			Terms: []CounterTermDef{{
				Forall: []ArgDef{{Name: "d", Set: "Dims"}},
				Guard: []CondDef{{
					Choice: &ChoiceCondDef{Name: "dim_kind", Args: []string{"d"}, Values: []string{"BLOCK"}},
				}},
				Contrib: ContribDef{Kind: ContribConst, Const: 1},
			}},
		}},
		Requires: []*RequireDef{{
			Conds: []CondDef{{
				Counter: &CounterCondDef{Name: "block_count", Op: CmpLE, Bound: maxBlocks},
			}},
		}},
	}
}

// enumAction builds an enum restriction.
func enumAction(choice string, args []ObjectID, values ...string) Action {
	return Action{Choice: choice, Args: args, Values: values}
}

// domainValues reads an enum domain's values or fails the test.
func domainValues(t *testing.T, s *Store, choice string, args ...ObjectID) []string {
	t.Helper()
	d, err := s.Domain(choice, args...)
	if err != nil {
		t.Fatalf("Domain(%s, %v) failed: %v", choice, args, err)
	}
	ed, ok := d.(EnumDomain)
	if !ok {
		t.Fatalf("Domain(%s, %v) is %T, want EnumDomain", choice, args, d)
	}
	return ed.Values()
}
