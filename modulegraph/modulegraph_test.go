package modulegraph

import (
	"testing"

	"github.com/klswkj/buildtarget/rules"
)

type fakeSource struct {
	byName map[string]rules.ModuleRules
}

func (f fakeSource) CreateModuleRules(name string, chain []string) (rules.ModuleRules, error) {
	mr, ok := f.byName[name]
	if !ok {
		return rules.ModuleRules{}, berrNotFound(name)
	}
	return mr, nil
}

func berrNotFound(name string) error {
	return &notFoundErr{name}
}

type notFoundErr struct{ name string }

func (e *notFoundErr) Error() string { return "module not found: " + e.name }

func TestFindOrCreateModuleResolvesDependencies(t *testing.T) {
	src := fakeSource{byName: map[string]rules.ModuleRules{
		"Core": {Name: "Core", Type: rules.CPlusPlus},
		"Game": {Name: "Game", Type: rules.CPlusPlus, PublicDependencyModuleNames: []string{"Core"}},
	}}
	b := NewBuilder()
	b.Source = src

	m, err := b.FindOrCreateModule("Game", nil)
	if err != nil {
		t.Fatalf("FindOrCreateModule: %v", err)
	}
	if len(m.PublicDeps) != 1 || m.PublicDeps[0].Name != "Core" {
		t.Fatalf("expected Game to resolve a public dep on Core, got %+v", m.PublicDeps)
	}

	// Second call must return the cached instance.
	m2, err := b.FindOrCreateModule("Game", nil)
	if err != nil {
		t.Fatal(err)
	}
	if m2 != m {
		t.Errorf("expected FindOrCreateModule to return the cached *Module")
	}
}

func TestFindOrCreateModuleHandlesCycle(t *testing.T) {
	src := fakeSource{byName: map[string]rules.ModuleRules{
		"A": {Name: "A", Type: rules.CPlusPlus, PrivateDependencyModuleNames: []string{"B"},
			CircularlyReferencedDependentModules: []string{"B"}},
		"B": {Name: "B", Type: rules.CPlusPlus, PrivateDependencyModuleNames: []string{"A"},
			CircularlyReferencedDependentModules: []string{"A"}},
	}}
	b := NewBuilder()
	b.Source = src

	m, err := b.FindOrCreateModule("A", nil)
	if err != nil {
		t.Fatalf("FindOrCreateModule: %v", err)
	}
	if len(m.PrivateDeps) != 1 || m.PrivateDeps[0].Name != "B" {
		t.Fatalf("expected A to resolve a dep on B, got %+v", m.PrivateDeps)
	}
	b2 := m.PrivateDeps[0]
	if len(b2.PrivateDeps) != 1 || b2.PrivateDeps[0].Name != "A" {
		t.Fatalf("expected B to resolve its cyclic dep back to A, got %+v", b2.PrivateDeps)
	}
}

func TestCheckRedistributionRejectsLeak(t *testing.T) {
	core := &Module{Name: "Core", Rules: rules.ModuleRules{IsRedistributable: false}}
	game := &Module{Name: "Game", Rules: rules.ModuleRules{IsRedistributable: true}, PublicDeps: []*Module{core}}
	all := map[string]*Module{"Core": core, "Game": game}
	if err := CheckRedistribution(all); err == nil {
		t.Fatal("expected LicenseViolation when a redistributable module depends on a non-redistributable one")
	}
}

func TestCheckRedistributionAllowsCircularWhitelist(t *testing.T) {
	a := &Module{Name: "A", Rules: rules.ModuleRules{IsRedistributable: true, CircularlyReferencedDependentModules: []string{"B"}}}
	bMod := &Module{Name: "B", Rules: rules.ModuleRules{IsRedistributable: false, CircularlyReferencedDependentModules: []string{"A"}}}
	a.PrivateDeps = []*Module{bMod}
	all := map[string]*Module{"A": a, "B": bMod}
	if err := CheckRedistribution(all); err != nil {
		t.Fatalf("expected circular whitelist to permit the edge, got %v", err)
	}
}

func TestCheckVisibilityRejectsDanglingEdge(t *testing.T) {
	missing := &Module{Name: "Ghost"}
	m := &Module{Name: "Game", PublicDeps: []*Module{missing}}
	all := map[string]*Module{"Game": m}
	if err := CheckVisibility(all); err == nil {
		t.Fatal("expected ScopeViolation for an edge to a module outside the target's map")
	}
}
