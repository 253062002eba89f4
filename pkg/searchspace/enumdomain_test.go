package searchspace

import (
	"testing"
)

func TestEnumTypeBasics(t *testing.T) {
	typ := newEnumType("dim_kind", []string{"BLOCK", "THREAD", "PLAIN"})
	if typ.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", typ.Size())
	}
	full := typ.Full()
	if full.Count() != 3 {
		t.Errorf("full domain Count() = %d, want 3", full.Count())
	}
	for _, v := range []string{"BLOCK", "THREAD", "PLAIN"} {
		if !full.Contains(v) {
			t.Errorf("full domain should contain %s", v)
		}
	}
	if full.Contains("VECTOR") {
		t.Error("full domain should not contain an undeclared value")
	}
	if typ.Empty().Count() != 0 {
		t.Error("empty domain should have no values")
	}
}

func TestEnumTypeAliases(t *testing.T) {
	typ := newEnumType("dim_kind", []string{"BLOCK", "THREAD", "VECTOR", "PLAIN"})
	block, _ := typ.resolve("BLOCK")
	thread, _ := typ.resolve("THREAD")
	vector, _ := typ.resolve("VECTOR")
	typ.addAlias("PARALLEL", block|thread|vector)

	d, err := typ.Mask("PARALLEL")
	if err != nil {
		t.Fatalf("Mask(PARALLEL) failed: %v", err)
	}
	if d.Count() != 3 {
		t.Errorf("alias domain Count() = %d, want 3", d.Count())
	}
	if d.Contains("PLAIN") {
		t.Error("alias domain should not contain PLAIN")
	}
	if !d.Contains("PARALLEL") {
		t.Error("alias domain should contain its own alias")
	}
	if _, err := typ.Mask("NO_SUCH"); err == nil {
		t.Error("Mask with an unknown name should fail")
	}
}

func TestEnumDomainOperations(t *testing.T) {
	typ := newEnumType("order", []string{"BEFORE", "AFTER", "MERGED"})
	tests := []struct {
		name string
		op   func() EnumDomain
		want []string
	}{
		{
			name: "intersect",
			op: func() EnumDomain {
				a, _ := typ.Mask("BEFORE", "AFTER")
				b, _ := typ.Mask("AFTER", "MERGED")
				return a.Intersect(b)
			},
			want: []string{"AFTER"},
		},
		{
			name: "union",
			op: func() EnumDomain {
				a, _ := typ.Mask("BEFORE")
				b, _ := typ.Mask("MERGED")
				return a.Union(b)
			},
			want: []string{"BEFORE", "MERGED"},
		},
		{
			name: "complement",
			op: func() EnumDomain {
				a, _ := typ.Mask("BEFORE")
				return a.Complement()
			},
			want: []string{"AFTER", "MERGED"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.op().Values()
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestEnumDomainQueries(t *testing.T) {
	typ := newEnumType("k", []string{"A", "B"})
	full := typ.Full()
	if full.IsFailed() || full.IsConstrained() {
		t.Error("full domain should be neither failed nor constrained")
	}
	a, _ := typ.Mask("A")
	if !a.IsConstrained() {
		t.Error("singleton domain should be constrained")
	}
	if v, ok := a.Value(); !ok || v != "A" {
		t.Errorf("Value() = %q, %v; want A, true", v, ok)
	}
	empty := typ.Empty()
	if !empty.IsFailed() {
		t.Error("empty domain should be failed")
	}
	if _, ok := empty.Value(); ok {
		t.Error("empty domain should not report a value")
	}
}

func TestEnumDomainPermute(t *testing.T) {
	typ := newEnumType("order", []string{"BEFORE", "AFTER", "MERGED"})
	// The involution swaps BEFORE and AFTER, fixes MERGED.
	perm := []int{1, 0, 2}
	d, _ := typ.Mask("BEFORE", "MERGED")
	got := d.permute(perm)
	if !got.Contains("AFTER") || !got.Contains("MERGED") || got.Contains("BEFORE") {
		t.Errorf("permuted domain = %s, want {AFTER,MERGED}", got)
	}
	// Applying the involution twice restores the original.
	if !got.permute(perm).Equal(d) {
		t.Error("involution should be its own inverse")
	}
	if !d.permute(nil).Equal(d) {
		t.Error("nil permutation should be the identity")
	}
}

func TestEnumDomainString(t *testing.T) {
	typ := newEnumType("k", []string{"A", "B", "C"})
	d, _ := typ.Mask("A", "C")
	if got := d.String(); got != "{A,C}" {
		t.Errorf("String() = %q, want {A,C}", got)
	}
	if got := typ.Empty().String(); got != "{}" {
		t.Errorf("empty String() = %q, want {}", got)
	}
}
