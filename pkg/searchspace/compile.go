// Package searchspace: the constraint compiler.
//
// Every `require forall ...: body` compiles into one filter fragment per enum
// condition appearing in its body. A fragment is the pure function behind
// propagation: given a store and a binding of the quantified variables, it
// returns the set of values of its target choice instance still compatible
// with the clause. The compiled form is a truth table: rows enumerate the
// possible states of the clause's other conditions and emit, per combination,
// the value mask that must be removed from the target. The rows are the only
// place behaviour lives; the store merely evaluates them.
package searchspace

// FilterFragment is one compiled filter: the rewrite of a requirement keyed
// by one of its free choice conditions.
type FilterFragment struct {
	id     int
	req    *RequireInfo
	target int
	rows   []TableRow
}

// TableRow is one truth-table row. When every condition listed in
// CertainlyFalse evaluates to certainly-false in the current store, Remove is
// subtracted from the target instance's domain. Rows whose guards cannot all
// hold, or that remove nothing, are dropped at compile time.
type TableRow struct {
	CertainlyFalse []int
	Remove         uint64
}

// Target returns the index of the fragment's target condition within its
// requirement's clause.
func (f *FilterFragment) Target() int { return f.target }

// Rows returns the compiled truth table.
func (f *FilterFragment) Rows() []TableRow {
	return append([]TableRow(nil), f.rows...)
}

// compileFragments expands one requirement clause into filter fragments, one
// per enum condition. The clause `c0 | c1 | ... | cn` constrains each ci's
// choice exactly when every other condition is certainly false; the truth
// table enumerates the other conditions' state combinations and keeps the
// rows that remove values.
func (b *builder) compileFragments(req *RequireInfo) {
	for t, cond := range req.conds {
		if cond.kind != condEnum {
			continue
		}
		frag := &FilterFragment{
			id:     len(b.desc.fragments),
			req:    req,
			target: t,
		}
		var others []int
		for i := range req.conds {
			if i != t {
				others = append(others, i)
			}
		}
		typ := b.desc.choices[cond.choice].enum
		keep := cond.mask
		remove := ^keep & typ.full

		// Enumerate the 2^len(others) combinations of {certainly-false,
		// open} over the other conditions. Only the all-false row forces
		// the target into its own value set; every other row leaves the
		// clause satisfiable elsewhere and removes nothing.
		for combo := 0; combo < 1<<uint(len(others)); combo++ {
			var falseSet []int
			for bit, idx := range others {
				if combo&(1<<uint(bit)) != 0 {
					falseSet = append(falseSet, idx)
				}
			}
			if len(falseSet) != len(others) {
				continue
			}
			if remove == 0 {
				continue
			}
			frag.rows = append(frag.rows, TableRow{CertainlyFalse: falseSet, Remove: remove})
		}
		if len(frag.rows) == 0 {
			// The clause can never narrow this choice (its value set is
			// already the full universe); no fragment is registered.
			continue
		}
		b.desc.fragments = append(b.desc.fragments, frag)
		req.fragments = append(req.fragments, frag)
		b.desc.choices[cond.choice].fragments = append(b.desc.choices[cond.choice].fragments, frag)
	}
}
