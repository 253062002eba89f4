package arena

import "testing"

func TestArenaAppendAndLookup(t *testing.T) {
	a := New[uint32]()
	i, fresh := a.Append(7)
	if i != 0 || !fresh {
		t.Fatalf("first append = (%d, %v), want (0, true)", i, fresh)
	}
	j, fresh := a.Append(9)
	if j != 1 || !fresh {
		t.Fatalf("second append = (%d, %v), want (1, true)", j, fresh)
	}
	// Re-appending keeps the original index.
	k, fresh := a.Append(7)
	if k != 0 || fresh {
		t.Fatalf("duplicate append = (%d, %v), want (0, false)", k, fresh)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
	if !a.Contains(9) || a.Contains(11) {
		t.Error("membership is wrong")
	}
	if a.Get(1) != 9 {
		t.Errorf("Get(1) = %d, want 9", a.Get(1))
	}
}

func TestArenaZeroValue(t *testing.T) {
	var a Arena[int]
	if a.Len() != 0 || a.Contains(1) {
		t.Fatal("zero arena should be empty")
	}
	if i, fresh := a.Append(1); i != 0 || !fresh {
		t.Fatal("zero arena should accept appends")
	}
}

func TestArenaCloneIsIndependent(t *testing.T) {
	a := New[uint32]()
	a.Append(1)
	a.Append(2)
	b := a.Clone()
	b.Append(3)
	if a.Len() != 2 {
		t.Errorf("clone append leaked into the original: Len() = %d", a.Len())
	}
	if b.Len() != 3 || !b.Contains(3) {
		t.Error("clone lost its own append")
	}
	items := a.Items()
	if len(items) != 2 || items[0] != 1 || items[1] != 2 {
		t.Errorf("Items() = %v, want [1 2]", items)
	}
}
