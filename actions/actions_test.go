package actions

import (
	"testing"

	"github.com/klswkj/buildtarget/modulegraph"
	"github.com/klswkj/buildtarget/paths"
)

func TestMakefileAddRejectsDuplicateOutput(t *testing.T) {
	mf := NewMakefile()
	out := paths.New("/out/a.o")
	a1 := newAction(Compile)
	a1.Produced = paths.Paths{out}
	a2 := newAction(Compile)
	a2.Produced = paths.Paths{out}

	if err := mf.Add(a1); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := mf.Add(a2); err == nil {
		t.Fatal("expected DuplicateOutput error for a second action producing the same path")
	}
}

func TestLocalOnlyKindsCannotExecuteRemotely(t *testing.T) {
	for kind, wantRemote := range map[Kind]bool{
		Compile:       true,
		Link:          false,
		PostBuildStep: false,
		WriteMetadata: false,
		Copy:          true,
	} {
		a := newAction(kind)
		if a.CanExecuteRemotely != wantRemote {
			t.Errorf("%s: CanExecuteRemotely = %v, want %v", kind, a.CanExecuteRemotely, wantRemote)
		}
	}
}

func TestActionKeyDeterministic(t *testing.T) {
	a := &Action{Kind: Compile, Command: paths.New("/usr/bin/cc"), Arguments: []string{"-c", "x.cpp"},
		Produced: paths.Paths{paths.New("/out/x.o")}}
	b := &Action{Kind: Compile, Command: paths.New("/usr/bin/cc"), Arguments: []string{"-c", "x.cpp"},
		Produced: paths.Paths{paths.New("/out/x.o")}}
	if a.Key() != b.Key() {
		t.Error("expected identical actions to produce the same content-addressed key")
	}
	b.Arguments = []string{"-c", "y.cpp"}
	if a.Key() == b.Key() {
		t.Error("expected differing arguments to change the key")
	}
}

func TestEmitCopySkipsNoopCopy(t *testing.T) {
	mf := NewMakefile()
	p := paths.New("/a/file.txt")
	if err := EmitCopy(mf, p, p); err != nil {
		t.Fatal(err)
	}
	if len(mf.Actions) != 0 {
		t.Errorf("expected no action for src == dst, got %d", len(mf.Actions))
	}
}

func TestSortBinariesLeavesFirst(t *testing.T) {
	leaf := &modulegraph.Binary{Type: modulegraph.StaticLibrary}
	top := &modulegraph.Binary{Type: modulegraph.Executable}
	order := SortBinariesLeavesFirst([]*modulegraph.Binary{top}, func(b *modulegraph.Binary) []*modulegraph.Binary {
		if b == top {
			return []*modulegraph.Binary{leaf}
		}
		return nil
	})
	if len(order) != 2 || order[0] != leaf || order[1] != top {
		t.Errorf("expected leaf before top, got %v", order)
	}
}

func TestDependencyListDigestStableAcrossOrder(t *testing.T) {
	a := paths.Paths{paths.New("/b"), paths.New("/a")}
	b := paths.Paths{paths.New("/a"), paths.New("/b")}
	if DependencyListDigest(a) != DependencyListDigest(b) {
		t.Error("expected digest to be order-independent (inputs are sorted first)")
	}
}
