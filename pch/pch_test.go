package pch

import (
	"testing"

	"github.com/klswkj/buildtarget/environment"
	"github.com/klswkj/buildtarget/modulegraph"
)

func TestPlanRejectsDisallowedCandidate(t *testing.T) {
	m := &modulegraph.Module{Name: "Core"}
	_, err := Plan([]Candidate{{Module: m, Header: "CorePCH.h", Allowed: false}}, environment.NewPropagator())
	if err == nil {
		t.Fatal("expected a RulesError for a disallowed shared-PCH candidate")
	}
}

func TestPlanOrdersByPublicClosureReachDescending(t *testing.T) {
	core := &modulegraph.Module{Name: "Core"}
	engine := &modulegraph.Module{Name: "Engine", PublicDeps: []*modulegraph.Module{core}}

	templates, err := Plan([]Candidate{
		{Module: core, Header: "CorePCH.h", Allowed: true},
		{Module: engine, Header: "EnginePCH.h", Allowed: true},
	}, environment.NewPropagator())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(templates))
	}
	if templates[0].Owner.Name != "Engine" {
		t.Errorf("expected Engine (reaches Core) to be prioritized first, got %v", templates[0].Owner.Name)
	}
}

func TestSelectForModuleRequiresCompatibleSettings(t *testing.T) {
	core := &modulegraph.Module{Name: "Core"}
	game := &modulegraph.Module{Name: "Game", PublicDeps: []*modulegraph.Module{core}}
	prop := environment.NewPropagator()

	templates, err := Plan([]Candidate{{Module: core, Header: "CorePCH.h", Allowed: true, Settings: CompileSettings{CppStandard: "c++17", RTTI: true}}}, prop)
	if err != nil {
		t.Fatal(err)
	}

	if got := SelectForModule(templates, game, CompileSettings{CppStandard: "c++17", RTTI: true}, prop); got == nil {
		t.Error("expected a compatible template to be selected")
	}
	if got := SelectForModule(templates, game, CompileSettings{CppStandard: "c++20", RTTI: true}, prop); got != nil {
		t.Error("expected incompatible settings to fall through to nil")
	}
}
