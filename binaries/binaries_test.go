package binaries

import (
	"testing"

	"github.com/klswkj/buildtarget/modulegraph"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/rules"
)

func extPolicy() OutputPathPolicy {
	return OutputPathPolicy{Extension: func(p rules.Platform, t modulegraph.BinaryType) string {
		if t == modulegraph.DynamicLinkLibrary {
			return ".dll"
		}
		return ".exe"
	}}
}

func TestComposeMonolithicBindsEveryModuleToOneExecutable(t *testing.T) {
	launch := &modulegraph.Module{Name: "Game"}
	pluginMod := &modulegraph.Module{Name: "OnlineSubsystem"}
	extra := &modulegraph.Module{Name: "Extra"}

	out := Compose(rules.Monolithic, launch, map[string][]*modulegraph.Module{"Online": {pluginMod}}, []*modulegraph.Module{extra}, extPolicy(), paths.New("/proj"), "Win64", rules.Development, rules.Development, "x64", nil)

	if len(out) != 1 {
		t.Fatalf("expected exactly one binary for monolithic link, got %d", len(out))
	}
	bin := out[0]
	if bin.Type != modulegraph.Executable {
		t.Errorf("expected Executable, got %v", bin.Type)
	}
	if launch.Binary != bin || pluginMod.Binary != bin || extra.Binary != bin {
		t.Error("expected every module to be bound to the single monolithic executable")
	}
}

func TestComposeModularGivesEachPluginItsOwnDLL(t *testing.T) {
	launch := &modulegraph.Module{Name: "Game"}
	onlineMod := &modulegraph.Module{Name: "OnlineSubsystem"}
	extraMod := &modulegraph.Module{Name: "Extra"}

	out := Compose(rules.Modular, launch, map[string][]*modulegraph.Module{"Online": {onlineMod}}, []*modulegraph.Module{extraMod}, extPolicy(), paths.New("/proj"), "Win64", rules.Development, rules.Development, "x64", nil)

	if len(out) != 3 {
		t.Fatalf("expected launch exe + plugin DLL + extra DLL = 3 binaries, got %d", len(out))
	}
	if out[0].Type != modulegraph.Executable {
		t.Errorf("expected first binary to be the launch Executable, got %v", out[0].Type)
	}
	for _, b := range out[1:] {
		if b.Type != modulegraph.DynamicLinkLibrary {
			t.Errorf("expected remaining binaries to be DLLs, got %v", b.Type)
		}
	}
}

// TestComposeModularAppliesHotReloadSuffixToDLLOutputName checks that
// a module with an assigned hot-reload suffix gets that suffix appended
// to its DLL's output file name.
func TestComposeModularAppliesHotReloadSuffixToDLLOutputName(t *testing.T) {
	launch := &modulegraph.Module{Name: "Game"}
	extraMod := &modulegraph.Module{Name: "Foo"}

	out := Compose(rules.Modular, launch, nil, []*modulegraph.Module{extraMod}, extPolicy(), paths.New("/proj"), "Win64", rules.Development, rules.Development, "", map[string]string{"Foo": "-42"})

	if len(out) != 2 {
		t.Fatalf("expected launch exe + extra DLL = 2 binaries, got %d", len(out))
	}
	dll := out[1]
	if got := dll.OutputFiles[0].Base(); got != "Foo-42.dll" {
		t.Errorf("hot-reload decorated DLL name = %q, want Foo-42.dll", got)
	}
}

func TestOutputPathPolicyOmitsConfigurationSuffixWhenUndecorated(t *testing.T) {
	policy := extPolicy()
	p := policy.Path(paths.New("/proj"), "Game", "Win64", rules.Development, rules.Development, "x64", modulegraph.Executable)
	if got := p.Base(); got != "Game-x64.exe" {
		t.Errorf("undecorated configuration path = %q, want Game-x64.exe", got)
	}
	p2 := policy.Path(paths.New("/proj"), "Game", "Win64", rules.Shipping, rules.Development, "x64", modulegraph.Executable)
	if got := p2.Base(); got != "Game-Win64-Shipping-x64.exe" {
		t.Errorf("decorated configuration path = %q, want Game-Win64-Shipping-x64.exe", got)
	}
}
