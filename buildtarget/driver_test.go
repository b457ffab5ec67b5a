package buildtarget

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klswkj/buildtarget/actions"
	"github.com/klswkj/buildtarget/binaries"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/plugins"
	"github.com/klswkj/buildtarget/rules"
)

type testLogger struct{ lines []string }

func (l *testLogger) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, format)
}

type nopPlatformAdapter struct{}

func (nopPlatformAdapter) ModifyModuleRulesForActivePlatform(string, *rules.ModuleRules) error {
	return nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestBuildModularEditorTarget exercises the driver's full control flow for
// a modular target with one enabled plugin contributing its own module: the
// rules files are loaded from disk, the plugin registry resolves the
// plugin's module into the graph, visibility/redistribution checks pass,
// and binaries.Compose gives the plugin its own DLL.
func TestBuildModularEditorTarget(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{
		"name": "Core",
		"type": "CPlusPlus",
		"isRedistributable": true
	}`)
	writeFile(t, rulesDir, "OnlineSubsystem.rules.json", `{
		"name": "OnlineSubsystem",
		"type": "CPlusPlus",
		"publicDependencyModuleNames": ["Core"],
		"isRedistributable": true
	}`)
	writeFile(t, rulesDir, "MyGame.target.json", `{
		"type": "Game",
		"linkType": "Modular",
		"buildEnvironment": "Unique",
		"launchModuleName": "Core",
		"enablePlugins": ["Online"]
	}`)

	pluginDir := t.TempDir()
	writeFile(t, pluginDir, "Online.uplugin", `{
		"modules": [{"name": "OnlineSubsystem", "type": "CPlusPlus"}],
		"isEnabledByDefault": false
	}`)

	registry := plugins.NewRegistry(2)

	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		PluginRegistry:  registry,
		PluginRoots: []plugins.RootSpec{
			{Dir: paths.New(pluginDir), Typ: rules.EnginePlugin},
		},
		OutputPathPolicy: binaries.OutputPathPolicy{},
		Logger:           &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    "MyGame",
		Platform:      "Win64",
		Configuration: rules.Development,
		Architecture:  "x64",
	}

	result, err := d.Build(td)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if result.TargetReceipt.TargetName != "MyGame" {
		t.Errorf("TargetReceipt.TargetName = %q, want MyGame", result.TargetReceipt.TargetName)
	}
	if len(result.TargetReceipt.Plugins) != 1 || result.TargetReceipt.Plugins[0] != "Online" {
		t.Errorf("TargetReceipt.Plugins = %v, want [Online]", result.TargetReceipt.Plugins)
	}
	if result.TargetReceipt.Launch == "" {
		t.Error("expected a non-empty Launch path")
	}
	if !strings.Contains(result.TargetReceipt.Launch, "Core") {
		t.Errorf("Launch = %q, want it to name the launch module's binary", result.TargetReceipt.Launch)
	}
}

// TestBuildMonolithicTargetBindsPluginIntoLaunchExecutable exercises the
// Monolithic link-type path: every module, including the plugin's, must be
// bound into one Executable rather than getting its own DLL.
func TestBuildMonolithicTargetBindsPluginIntoLaunchExecutable(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{"name": "Core", "type": "CPlusPlus"}`)
	writeFile(t, rulesDir, "Gauntlet.rules.json", `{
		"name": "Gauntlet",
		"type": "CPlusPlus",
		"publicDependencyModuleNames": ["Core"]
	}`)
	writeFile(t, rulesDir, "ShippingGame.target.json", `{
		"type": "Game",
		"linkType": "Monolithic",
		"buildEnvironment": "Unique",
		"launchModuleName": "Core",
		"enablePlugins": ["Gauntlet"]
	}`)

	pluginDir := t.TempDir()
	writeFile(t, pluginDir, "Gauntlet.uplugin", `{
		"modules": [{"name": "Gauntlet", "type": "CPlusPlus"}]
	}`)

	registry := plugins.NewRegistry(1)
	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		PluginRegistry:  registry,
		PluginRoots: []plugins.RootSpec{
			{Dir: paths.New(pluginDir), Typ: rules.ProjectPlugin},
		},
		Logger: &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    "ShippingGame",
		Platform:      "Win64",
		Configuration: rules.Shipping,
		Architecture:  "x64",
	}

	result, err := d.Build(td)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var compileCount int
	for _, a := range result.Makefile.Actions {
		if a.Kind == actions.Compile {
			compileCount++
		}
	}
	if compileCount != 0 {
		t.Errorf("expected no Compile actions for a non-single-file build, got %d", compileCount)
	}
	if len(result.Makefile.Actions) == 0 {
		t.Error("expected at least a WriteMetadata action to be emitted")
	}
	if result.ModuleManifest != nil {
		t.Errorf("expected no module manifest for a Monolithic target, got %+v", result.ModuleManifest)
	}
	if len(result.TargetReceipt.BuildProducts) != 1 {
		t.Errorf("expected exactly one build product (the launch executable), got %d", len(result.TargetReceipt.BuildProducts))
	}
}

// TestBuildRejectsRedistributionViolation confirms the driver surfaces
// modulegraph.CheckRedistribution failures as an error rather than
// producing a receipt for an invalid graph.
func TestBuildRejectsRedistributionViolation(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{
		"name": "Core",
		"type": "CPlusPlus",
		"isRedistributable": false
	}`)
	writeFile(t, rulesDir, "Engine.rules.json", `{
		"name": "Engine",
		"type": "CPlusPlus",
		"publicDependencyModuleNames": ["Core"],
		"isRedistributable": true
	}`)
	writeFile(t, rulesDir, "MyGame.target.json", `{
		"type": "Game",
		"linkType": "Monolithic",
		"buildEnvironment": "Unique",
		"launchModuleName": "Engine"
	}`)

	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		Logger:          &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    "MyGame",
		Platform:      "Win64",
		Configuration: rules.Development,
		Architecture:  "x64",
	}

	if _, err := d.Build(td); err == nil {
		t.Fatal("expected a LicenseViolation error for a redistributable module depending on a non-redistributable one")
	}
}

// TestBuildForeignPluginCompileEnablesOnlyThatPlugin exercises the
// ForeignPlugin descriptor path: a .uplugin compiled outside
// its owning project must be enabled even though it is absent from the
// project descriptor and not engine-default-enabled.
func TestBuildForeignPluginCompileEnablesOnlyThatPlugin(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{"name": "Core", "type": "CPlusPlus"}`)
	writeFile(t, rulesDir, "Foreign.rules.json", `{
		"name": "Foreign",
		"type": "CPlusPlus",
		"publicDependencyModuleNames": ["Core"]
	}`)
	writeFile(t, rulesDir, "MyGame.target.json", `{
		"type": "Game",
		"linkType": "Modular",
		"buildEnvironment": "Unique",
		"launchModuleName": "Core"
	}`)

	pluginDir := t.TempDir()
	writeFile(t, pluginDir, "Foreign.uplugin", `{
		"modules": [{"name": "Foreign", "type": "CPlusPlus"}],
		"isEnabledByDefault": false
	}`)

	registry := plugins.NewRegistry(1)
	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		PluginRegistry:  registry,
		PluginRoots: []plugins.RootSpec{
			{Dir: paths.New(pluginDir), Typ: rules.EnginePlugin},
		},
		Logger: &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    "MyGame",
		Platform:      "Win64",
		Configuration: rules.Development,
		Architecture:  "x64",
		ForeignPlugin: paths.New(pluginDir).Join("Foreign.uplugin"),
	}

	result, err := d.Build(td)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(result.TargetReceipt.Plugins) != 1 || result.TargetReceipt.Plugins[0] != "Foreign" {
		t.Errorf("TargetReceipt.Plugins = %v, want [Foreign]", result.TargetReceipt.Plugins)
	}
}

// TestBuildSingleFileCompileStillProducesAReceipt exercises the
// SingleFileOverride descriptor field: the driver still writes a
// receipt, emits exactly one Compile action for the named file, and
// emits no Link action.
func TestBuildSingleFileCompileStillProducesAReceipt(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{"name": "Core", "type": "CPlusPlus"}`)
	writeFile(t, rulesDir, "MyGame.target.json", `{
		"type": "Game",
		"linkType": "Monolithic",
		"buildEnvironment": "Unique",
		"launchModuleName": "Core"
	}`)

	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		Logger:          &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:         "MyGame",
		Platform:           "Win64",
		Configuration:      rules.Development,
		Architecture:       "x64",
		SingleFileOverride: paths.New(rulesDir).Join("Core.cpp"),
	}
	if !td.IsSingleFileCompile() {
		t.Fatal("expected IsSingleFileCompile to report true once SingleFileOverride is set")
	}

	result, err := d.Build(td)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.TargetReceipt.Launch == "" {
		t.Error("expected a non-empty Launch path even for a single-file compile")
	}
	var compileCount, linkCount int
	for _, a := range result.Makefile.Actions {
		switch a.Kind {
		case actions.Compile:
			compileCount++
		case actions.Link:
			linkCount++
		}
	}
	if compileCount != 1 {
		t.Errorf("expected exactly one Compile action for a single-file compile, got %d", compileCount)
	}
	if linkCount != 0 {
		t.Errorf("expected no Link action for a single-file compile, got %d", linkCount)
	}
}

// TestBuildHotReloadSuffixesSurfaceOnMakefile confirms the per-module
// hot-reload suffix map flows through to the emitted Makefile's
// HotReloadModules list.
func TestBuildHotReloadSuffixesSurfaceOnMakefile(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{"name": "Core", "type": "CPlusPlus"}`)
	writeFile(t, rulesDir, "Game.rules.json", `{
		"name": "Game",
		"type": "CPlusPlus",
		"publicDependencyModuleNames": ["Core"]
	}`)
	writeFile(t, rulesDir, "MyGame.target.json", `{
		"type": "Game",
		"linkType": "Modular",
		"buildEnvironment": "Unique",
		"launchModuleName": "Core",
		"extraModuleNames": ["Game"]
	}`)

	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		Logger:          &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    "MyGame",
		Platform:      "Win64",
		Configuration: rules.Development,
		Architecture:  "x64",
		HotReloadSuffixes: map[string]string{
			"Game": "-0001",
		},
	}

	result, err := d.Build(td)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(result.Makefile.HotReloadModules) != 1 || result.Makefile.HotReloadModules[0] != "Game" {
		t.Errorf("Makefile.HotReloadModules = %v, want [Game]", result.Makefile.HotReloadModules)
	}
}

// TestBuildModularTargetProducesModuleManifestAndDependencyList exercises
// the mandatory modular-editor scenario: a manifest entry per
// DLL-bound module, and one dependency-list entry per module reachable
// from the target's graph.
func TestBuildModularTargetProducesModuleManifestAndDependencyList(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{"name": "Core", "type": "CPlusPlus"}`)
	writeFile(t, rulesDir, "CoreUObject.rules.json", `{
		"name": "CoreUObject",
		"type": "CPlusPlus",
		"publicDependencyModuleNames": ["Core"]
	}`)
	writeFile(t, rulesDir, "Engine.rules.json", `{
		"name": "Engine",
		"type": "CPlusPlus",
		"publicDependencyModuleNames": ["CoreUObject"]
	}`)
	writeFile(t, rulesDir, "Editor.target.json", `{
		"type": "Editor",
		"linkType": "Modular",
		"buildEnvironment": "Unique",
		"launchModuleName": "Core",
		"extraModuleNames": ["CoreUObject", "Engine"]
	}`)

	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		Logger:          &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    "Editor",
		Platform:      "Win64",
		Configuration: rules.Development,
		Architecture:  "x64",
	}

	result, err := d.Build(td)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.ModuleManifest == nil {
		t.Fatal("expected a module manifest for a Modular target")
	}
	for _, name := range []string{"CoreUObject", "Engine"} {
		if _, ok := result.ModuleManifest.Modules[name]; !ok {
			t.Errorf("module manifest missing entry for %q, got %v", name, result.ModuleManifest.Modules)
		}
	}
	if len(result.DependencyList) != 3 {
		t.Errorf("expected one dependency-list entry per module (Core, CoreUObject, Engine), got %d: %v",
			len(result.DependencyList), result.DependencyList)
	}
}

// TestBuildRejectsSharedEnvironmentWithFieldMismatch asserts the
// Shared-build-environment invariant: a requires-unique-environment field
// that disagrees with the canonical base target causes a fatal
// ConfigurationError naming the field and base target.
func TestBuildRejectsSharedEnvironmentWithFieldMismatch(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{"name": "Core", "type": "CPlusPlus"}`)
	writeFile(t, rulesDir, "MyGame.target.json", `{
		"type": "Game",
		"linkType": "Modular",
		"buildEnvironment": "Shared",
		"launchModuleName": "Core",
		"rtti": true
	}`)

	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		Logger:          &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    "MyGame",
		Platform:      "Win64",
		Configuration: rules.Development,
		Architecture:  "x64",
	}

	_, err := d.Build(td)
	if err == nil {
		t.Fatal("expected a ConfigurationError for an RTTI mismatch against the canonical Game base target")
	}
	if !strings.Contains(err.Error(), "RTTI") {
		t.Errorf("error = %v, want it to name the mismatched field", err)
	}
}

// TestBuildRejectsSharedEnvironmentWithExplicitPluginList asserts the
// Shared build-environment invariant: a target cannot combine
// BuildEnvironment Shared with explicit EnablePlugins/DisablePlugins,
// since a shared build's modules are not rebuilt per target.
func TestBuildRejectsSharedEnvironmentWithExplicitPluginList(t *testing.T) {
	rulesDir := t.TempDir()
	writeFile(t, rulesDir, "Core.rules.json", `{"name": "Core", "type": "CPlusPlus"}`)
	writeFile(t, rulesDir, "MyGame.target.json", `{
		"type": "Game",
		"linkType": "Modular",
		"buildEnvironment": "Shared",
		"launchModuleName": "Core",
		"enablePlugins": ["Online"]
	}`)

	cfg := Config{
		RulesRoot:       paths.New(rulesDir),
		PlatformAdapter: nopPlatformAdapter{},
		Logger:          &testLogger{},
	}
	d := NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    "MyGame",
		Platform:      "Win64",
		Configuration: rules.Development,
		Architecture:  "x64",
	}

	if _, err := d.Build(td); err == nil {
		t.Fatal("expected Build to reject a Shared build environment combined with an explicit plugin list")
	}
}
