// Copyright 2015 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rules holds the declarative value objects a rules script
// evaluates into. These types carry no behavior beyond trivial
// accessors and Validate() — optional-bool defaults are handled with
// proptools the same way cc.ccProperties leans on it for
// property-struct plumbing. No cloning helpers are provided.
package rules

import (
	"reflect"

	"github.com/google/blueprint/proptools"

	"github.com/klswkj/buildtarget/berr"
	"github.com/klswkj/buildtarget/paths"
)

type Platform string

type Configuration string

const (
	Debug       Configuration = "Debug"
	DebugGame   Configuration = "DebugGame"
	Development Configuration = "Development"
	Test        Configuration = "Test"
	Shipping    Configuration = "Shipping"
)

type TargetType string

const (
	Game    TargetType = "Game"
	Editor  TargetType = "Editor"
	Client  TargetType = "Client"
	Server  TargetType = "Server"
	Program TargetType = "Program"
)

type LinkType string

const (
	Monolithic LinkType = "Monolithic"
	Modular    LinkType = "Modular"
)

type BuildEnvironment string

const (
	Shared BuildEnvironment = "Shared"
	Unique BuildEnvironment = "Unique"
)

type ModuleType string

const (
	CPlusPlus ModuleType = "CPlusPlus"
	External  ModuleType = "External"
)

// PCHUsage selects how (H) may use a module in shared-PCH planning.
type PCHUsage string

const (
	PCHNone                PCHUsage = "None"
	PCHNoSharedPCHs        PCHUsage = "NoSharedPCHs"
	PCHUseSharedPCHs       PCHUsage = "UseSharedPCHs"
	PCHUseExplicitOrShared PCHUsage = "UseExplicitOrShared"
)

// TargetDescriptor is the immutable invocation identity a driver run is
// constructed from. HotReloadSuffixes maps a module name to the
// decoration applied to its output file for a live-coding iteration.
type TargetDescriptor struct {
	TargetName         string
	Platform           Platform
	Configuration      Configuration
	Architecture       string
	ProjectFile        paths.Path
	ForeignPlugin      paths.Path
	HotReloadSuffixes  map[string]string
	SingleFileOverride paths.Path
	PassThroughArgs    []string
}

func (d TargetDescriptor) HasProjectFile() bool      { return d.ProjectFile.Valid() }
func (d TargetDescriptor) IsForeignPlugin() bool     { return d.ForeignPlugin.Valid() }
func (d TargetDescriptor) IsSingleFileCompile() bool { return d.SingleFileOverride.Valid() }

// TargetRules is the declarative target definition a rules script
// evaluates. Fields tagged `rules:"requires-unique-environment"`
// must equal the canonical base rules for this target type when
// BuildEnv is Shared.
type TargetRules struct {
	Type             TargetType
	LinkType         LinkType
	BuildEnv         BuildEnvironment
	LaunchModuleName string

	RTTI           *bool    `rules:"requires-unique-environment"`
	Exceptions     *bool    `rules:"requires-unique-environment"`
	Editor         *bool    `rules:"requires-unique-environment"`
	DeveloperTools *bool    `rules:"requires-unique-environment"`
	PCHUsage       PCHUsage `rules:"requires-unique-environment"`

	PGOOptimize *bool
	PGOProfile  *bool

	// DisableLinking suppresses every Link action for this target. It is
	// forced on when a foreign plugin is compiled against the target
	DisableLinking *bool

	// UseUnityBuild gates unity-file grouping of translation units. A
	// single-file compile forces it off along with PCH usage.
	UseUnityBuild *bool

	// StrictPluginDependencies upgrades cross-scope and
	// unreferenced-plugin-dependency findings from warnings to errors.
	StrictPluginDependencies *bool

	// BreakBuildOnLicenseViolation makes a non-redistributable module in
	// a Shipping, non-editor target fatal instead of a warning.
	BreakBuildOnLicenseViolation *bool

	EnablePlugins  []string
	DisablePlugins []string

	ExtraModuleNames []string

	PreBuildSteps  []string
	PostBuildSteps []string
}

func (r TargetRules) IsLinkingDisabled() bool { return proptools.Bool(r.DisableLinking) }
func (r TargetRules) HasStrictPluginDependencies() bool {
	return proptools.Bool(r.StrictPluginDependencies)
}
func (r TargetRules) BreaksBuildOnLicenseViolation() bool {
	return proptools.Bool(r.BreakBuildOnLicenseViolation)
}
func (r TargetRules) UsesUnityBuild() bool       { return proptools.BoolDefault(r.UseUnityBuild, true) }
func (r TargetRules) IsRTTIEnabled() bool        { return proptools.BoolDefault(r.RTTI, true) }
func (r TargetRules) AreExceptionsEnabled() bool { return proptools.BoolDefault(r.Exceptions, true) }
func (r TargetRules) IsEditorTarget() bool       { return proptools.Bool(r.Editor) }
func (r TargetRules) HasDeveloperTools() bool    { return proptools.Bool(r.DeveloperTools) }

// Validate checks the constraints local to one target declaration.
func (r TargetRules) Validate() error {
	if r.LaunchModuleName == "" {
		return berr.New(berr.RulesError, "target rules must set LaunchModuleName")
	}
	if proptools.Bool(r.PGOOptimize) && proptools.Bool(r.PGOProfile) {
		return berr.New(berr.RulesError, "PGO-optimize and PGO-profile are mutually exclusive")
	}
	if r.BuildEnv == Shared && (len(r.EnablePlugins) > 0 || len(r.DisablePlugins) > 0) {
		return berr.New(berr.RulesError, "explicit plugin enable/disable lists are not permitted with a Shared build environment")
	}
	return nil
}

// CanonicalBaseTargetRules returns the baseline TargetRules a Shared
// build environment's requires-unique-environment fields are compared
// against for target type t. Program targets default to no shared PCH since they rarely
// share the editor's module set; every other type shares the engine's
// non-editor baseline unless it is the editor itself.
func CanonicalBaseTargetRules(t TargetType) TargetRules {
	base := TargetRules{
		Type:           t,
		RTTI:           proptools.BoolPtr(false),
		Exceptions:     proptools.BoolPtr(true),
		Editor:         proptools.BoolPtr(false),
		DeveloperTools: proptools.BoolPtr(false),
		PCHUsage:       PCHUseSharedPCHs,
	}
	switch t {
	case Editor:
		base.Editor = proptools.BoolPtr(true)
		base.DeveloperTools = proptools.BoolPtr(true)
		base.RTTI = proptools.BoolPtr(true)
	case Program:
		base.PCHUsage = PCHNoSharedPCHs
	}
	return base
}

// ValidateAgainstBase enforces the Shared-build-environment
// invariant: every requires-unique-environment field must equal base's
// value, or the target would silently diverge from the shared engine
// binary it links against. base should come from CanonicalBaseTargetRules
// for r.Type. A no-op unless r.BuildEnv is Shared.
func (r TargetRules) ValidateAgainstBase(base TargetRules) error {
	if r.BuildEnv != Shared {
		return nil
	}
	rv := reflect.ValueOf(r)
	bv := reflect.ValueOf(base)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.Tag.Get("rules") != "requires-unique-environment" {
			continue
		}
		got := rv.Field(i).Interface()
		want := bv.Field(i).Interface()
		if !reflect.DeepEqual(got, want) {
			return berr.New(berr.ConfigurationError,
				"field %s of target %q must match the canonical %s base target in a Shared build environment (got %v, want %v)",
				field.Name, r.LaunchModuleName, r.Type, got, want)
		}
	}
	return nil
}

// ModuleRules is the per-module declaration evaluated by a rules script
// . Public/private lists preserve the first-occurrence order a
// rules script wrote them in; (E) is responsible for deduplicating edges
// once the full dependency set is known.
type ModuleRules struct {
	Name string
	Type ModuleType

	PublicIncludePaths  []string
	PrivateIncludePaths []string

	PublicDependencyModuleNames  []string
	PrivateDependencyModuleNames []string
	PublicIncludePathModuleNames []string
	DynamicallyLoadedModuleNames []string

	PublicAdditionalLibraries []string
	PublicFrameworks          []string
	PublicWeakFrameworks      []string
	AdditionalBundleResources []string
	PublicSystemLibraryPaths  []string
	PublicDelayLoadDLLs       []string
	PublicRuntimeLibraryPaths []string

	PublicDefinitions  []string
	PrivateDefinitions []string

	PCHUsage         PCHUsage
	PrivatePCHHeader string
	SharedPCHHeader  string

	ForceIncludeFiles []string

	bAllowExports bool

	CircularlyReferencedDependentModules []string

	IsRedistributable bool
}

func (m ModuleRules) AllowExports() bool { return m.bAllowExports }

// SetAllowExports sets the flag AllowExports reports, rather than
// exposing the field directly for mutation outside this package's
// accessor surface. (F)/(G) decide DLLEXPORT/DLLIMPORT from
// modulegraph.Binary.AllowExports, not from this flag.
func (m *ModuleRules) SetAllowExports(v bool) { m.bAllowExports = v }

// Validate checks the invariants local to one module declaration;
// cross-module edge validity is the graph builder's responsibility,
// since it requires the full module map.
func (m ModuleRules) Validate() error {
	if m.Name == "" {
		return berr.New(berr.RulesError, "module rules must set a name")
	}
	if m.PCHUsage == PCHNone && m.SharedPCHHeader != "" {
		return berr.WithChain(berr.RulesError, []string{m.Name}, "SharedPCHHeader set while PCHUsage is None")
	}
	return nil
}

// PluginReferenceType enumerates where a plugin descriptor was found,
// which in turn drives the registry's enablement precedence.
type PluginReferenceType string

const (
	EnginePlugin     PluginReferenceType = "Engine"
	EnterprisePlugin PluginReferenceType = "Enterprise"
	ProjectPlugin    PluginReferenceType = "Project"
	ModPlugin        PluginReferenceType = "Mod"
	ExternalPlugin   PluginReferenceType = "External"
)

// PluginModuleDescriptor names one module a plugin contributes, plus
// the platform whitelist/blacklist a child .uplugin file may override.
type PluginModuleDescriptor struct {
	Name               string
	Type               ModuleType
	WhitelistPlatforms []Platform
	BlacklistPlatforms []Platform
}

// PluginReferenceDescriptor names another plugin this plugin depends on.
type PluginReferenceDescriptor struct {
	Name    string
	Enabled bool
}

// PluginDescriptor is the parsed contents of a .uplugin file.
type PluginDescriptor struct {
	Modules                  []PluginModuleDescriptor
	PluginReferences         []PluginReferenceDescriptor
	SupportedTargetPlatforms []Platform
	RequiresBuildPlatform    bool
	IsEnabledByDefault       bool
	IsPluginExtension        bool
	ExtensionSuffix          string
}

// PluginInfo is the registry's resolved identity for one plugin, after
// any child-extension files have been merged into it.
type PluginInfo struct {
	Name           string
	RootDir        paths.Path
	DescriptorFile paths.Path
	Descriptor     PluginDescriptor
	Type           PluginReferenceType
	ChildFiles     []paths.Path
}

// ProjectDescriptor is the parsed contents of a .uproject file.
type ProjectDescriptor struct {
	EngineAssociation             string
	Modules                       []PluginModuleDescriptor
	Plugins                       []PluginReferenceDescriptor
	DisableEnginePluginsByDefault bool
	AdditionalPluginDirectories   []paths.Path
	TargetPlatforms               []Platform
}
