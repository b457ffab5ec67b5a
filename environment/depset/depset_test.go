package depset

import (
	"reflect"
	"testing"
)

func TestToListPreorderDedup(t *testing.T) {
	c := NewBuilder[string](PREORDER).Direct("c").Build()
	b := NewBuilder[string](PREORDER).Direct("b").Transitive(c).Build()
	a := NewBuilder[string](PREORDER).Direct("a", "c").Transitive(b, c).Build()

	got := a.ToList()
	want := []string{"a", "c", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToList() = %v, want %v", got, want)
	}
}

func TestToListPostorderDedup(t *testing.T) {
	c := NewBuilder[string](POSTORDER).Direct("c").Build()
	b := NewBuilder[string](POSTORDER).Direct("b").Transitive(c).Build()
	a := NewBuilder[string](POSTORDER).Direct("a", "c").Transitive(b, c).Build()

	got := a.ToList()
	want := []string{"c", "b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToList() = %v, want %v", got, want)
	}
}

func TestToListTopologicalOrdersDependentsFirst(t *testing.T) {
	leaf := NewBuilder[string](TOPOLOGICAL).Direct("leaf").Build()
	mid := NewBuilder[string](TOPOLOGICAL).Direct("mid").Transitive(leaf).Build()
	top := NewBuilder[string](TOPOLOGICAL).Direct("top").Transitive(mid).Build()

	got := top.ToList()
	want := []string{"top", "mid", "leaf"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToList() = %v, want %v", got, want)
	}
}

func TestNewPanicsOnMismatchedOrder(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected New to panic when transitive DepSet order differs")
		}
	}()
	pre := NewBuilder[string](PREORDER).Direct("x").Build()
	NewBuilder[string](POSTORDER).Transitive(pre).Build()
}

func TestNilDepSetToListIsEmpty(t *testing.T) {
	var d *DepSet[string]
	if got := d.ToList(); got != nil {
		t.Errorf("ToList() on nil DepSet = %v, want nil", got)
	}
}

func TestOrderString(t *testing.T) {
	cases := map[Order]string{PREORDER: "PREORDER", POSTORDER: "POSTORDER", TOPOLOGICAL: "TOPOLOGICAL"}
	for o, want := range cases {
		if got := o.String(); got != want {
			t.Errorf("Order(%d).String() = %q, want %q", o, got, want)
		}
	}
}
