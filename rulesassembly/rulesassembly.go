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

// Package rulesassembly loads *.rules.json module/target rules
// definitions from disk and evaluates them into the in-memory value
// objects the rules package declares.
//
// The on-disk rules format is a declarative JSON document per module or
// target rather than an embedded scripting language — the same choice
// android/register.go's own module-type registry makes by pairing a
// declarative property struct with a small Go factory, rather than
// parsing an executable build-rules DSL. Caching the parsed result by
// source file mirrors blueprint.Context's per-file module cache, the
// same in-progress-module idiom modulegraph uses for cycle-safe module
// creation.
package rulesassembly

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/klswkj/buildtarget/berr"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/rules"
)

// RulesAssembly is the reproducible result of loading one target's rules
// and everything they transitively reference.
type RulesAssembly struct {
	root    paths.Path
	project *rules.ProjectDescriptor

	mu          sync.Mutex
	moduleFiles map[string]paths.Path
	moduleCache map[string]*rules.ModuleRules
	pluginCache []rules.PluginInfo
}

// moduleFileDoc and targetFileDoc mirror rules.ModuleRules/TargetRules
// field-for-field; they exist only so decode failures name the offending
// JSON document instead of reusing a Go struct whose json tags would
// otherwise have to track every rules.go rename.
type moduleFileDoc struct {
	Name string           `json:"name"`
	Type rules.ModuleType `json:"type"`

	PublicIncludePaths  []string `json:"publicIncludePaths"`
	PrivateIncludePaths []string `json:"privateIncludePaths"`

	PublicDependencyModuleNames  []string `json:"publicDependencyModuleNames"`
	PrivateDependencyModuleNames []string `json:"privateDependencyModuleNames"`
	PublicIncludePathModuleNames []string `json:"publicIncludePathModuleNames"`
	DynamicallyLoadedModuleNames []string `json:"dynamicallyLoadedModuleNames"`

	PublicAdditionalLibraries []string `json:"publicAdditionalLibraries"`
	PublicFrameworks          []string `json:"publicFrameworks"`
	PublicWeakFrameworks      []string `json:"publicWeakFrameworks"`
	AdditionalBundleResources []string `json:"additionalBundleResources"`
	PublicSystemLibraryPaths  []string `json:"publicSystemLibraryPaths"`
	PublicDelayLoadDLLs       []string `json:"publicDelayLoadDLLs"`
	PublicRuntimeLibraryPaths []string `json:"publicRuntimeLibraryPaths"`

	PublicDefinitions  []string `json:"publicDefinitions"`
	PrivateDefinitions []string `json:"privateDefinitions"`

	PCHUsage         rules.PCHUsage `json:"pchUsage"`
	PrivatePCHHeader string         `json:"privatePchHeader"`
	SharedPCHHeader  string         `json:"sharedPchHeader"`

	ForceIncludeFiles []string `json:"forceIncludeFiles"`

	CircularlyReferencedDependentModules []string `json:"circularlyReferencedDependentModules"`

	IsRedistributable bool `json:"isRedistributable"`
}

func (d moduleFileDoc) toModuleRules() rules.ModuleRules {
	return rules.ModuleRules{
		Name:                                 d.Name,
		Type:                                 d.Type,
		PublicIncludePaths:                   d.PublicIncludePaths,
		PrivateIncludePaths:                  d.PrivateIncludePaths,
		PublicDependencyModuleNames:          d.PublicDependencyModuleNames,
		PrivateDependencyModuleNames:         d.PrivateDependencyModuleNames,
		PublicIncludePathModuleNames:         d.PublicIncludePathModuleNames,
		DynamicallyLoadedModuleNames:         d.DynamicallyLoadedModuleNames,
		PublicAdditionalLibraries:            d.PublicAdditionalLibraries,
		PublicFrameworks:                     d.PublicFrameworks,
		PublicWeakFrameworks:                 d.PublicWeakFrameworks,
		AdditionalBundleResources:            d.AdditionalBundleResources,
		PublicSystemLibraryPaths:             d.PublicSystemLibraryPaths,
		PublicDelayLoadDLLs:                  d.PublicDelayLoadDLLs,
		PublicRuntimeLibraryPaths:            d.PublicRuntimeLibraryPaths,
		PublicDefinitions:                    d.PublicDefinitions,
		PrivateDefinitions:                   d.PrivateDefinitions,
		PCHUsage:                             d.PCHUsage,
		PrivatePCHHeader:                     d.PrivatePCHHeader,
		SharedPCHHeader:                      d.SharedPCHHeader,
		ForceIncludeFiles:                    d.ForceIncludeFiles,
		CircularlyReferencedDependentModules: d.CircularlyReferencedDependentModules,
		IsRedistributable:                    d.IsRedistributable,
	}
}

// LoadForTarget locates the module-rules tree rooted at root (and the
// project descriptor, if project is valid) and returns a RulesAssembly
// ready to answer CreateTargetRules/CreateModuleRules for targetName.
// Every *.rules.json file is read once here, but only to index it by
// the module name it declares; full ModuleRules decoding is lazy and
// cached by CreateModuleRules, same as (E) only visits modules
// reachable from the dependency graph it is building.
func LoadForTarget(root paths.Path, project paths.Path, targetName string) (*RulesAssembly, error) {
	if targetName == "" {
		return nil, berr.New(berr.RulesError, "LoadForTarget requires a non-empty target name")
	}
	a := &RulesAssembly{
		root:        root,
		moduleFiles: make(map[string]paths.Path),
		moduleCache: make(map[string]*rules.ModuleRules),
	}
	if err := a.indexModuleFiles(); err != nil {
		return nil, err
	}
	if project.Valid() {
		desc, err := loadProjectDescriptor(project)
		if err != nil {
			return nil, err
		}
		a.project = desc
	}
	if _, err := a.findTargetFile(targetName); err != nil {
		return nil, err
	}
	return a, nil
}

// indexModuleFiles walks root once, recording the path of each
// *.rules.json file by the module name declared inside it (not by file
// name), so CreateModuleRules("Core") works regardless of which
// directory Core.rules.json actually lives under.
func (a *RulesAssembly) indexModuleFiles() error {
	err := filepath.WalkDir(a.root.String(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" || !hasSuffixRulesJSON(path) {
			return nil
		}
		name, parseErr := peekModuleName(path)
		if parseErr != nil {
			return berr.New(berr.RulesError, "%s: %v", path, parseErr)
		}
		if name == "" {
			return nil
		}
		p := paths.New(path)
		if existing, ok := a.moduleFiles[name]; ok && !existing.Equal(p) {
			return berr.New(berr.RulesError, "module %q declared in both %s and %s", name, existing, p)
		}
		a.moduleFiles[name] = p
		return nil
	})
	if err != nil {
		if be, ok := err.(*berr.BuildError); ok {
			return be
		}
		return berr.New(berr.RulesError, "scanning %s: %v", a.root, err)
	}
	return nil
}

func hasSuffixRulesJSON(path string) bool {
	const suffix = ".rules.json"
	return len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix
}

func peekModuleName(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var probe struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", err
	}
	return probe.Name, nil
}

// findTargetFile resolves targetName.target.json under root, returning
// RulesNotFound (carried as berr.RulesError) if absent.
func (a *RulesAssembly) findTargetFile(targetName string) (paths.Path, error) {
	candidate := a.root.Join(targetName + ".target.json")
	if info, err := os.Stat(candidate.String()); err == nil && !info.IsDir() {
		return candidate, nil
	}
	var found paths.Path
	err := filepath.WalkDir(a.root.String(), func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if filepath.Base(path) != targetName+".target.json" {
			return nil
		}
		if found.Valid() {
			return berr.New(berr.RulesError, "RulesAmbiguous: target %q found at both %s and %s", targetName, found, path)
		}
		found = paths.New(path)
		return nil
	})
	if err != nil {
		if be, ok := err.(*berr.BuildError); ok {
			return paths.Invalid, be
		}
		return paths.Invalid, berr.New(berr.RulesError, "scanning for target %q: %v", targetName, err)
	}
	if !found.Valid() {
		return paths.Invalid, berr.New(berr.RulesError, "RulesNotFound: no %s.target.json under %s", targetName, a.root)
	}
	return found, nil
}

type targetFileDoc struct {
	Type             rules.TargetType       `json:"type"`
	LinkType         rules.LinkType         `json:"linkType"`
	BuildEnv         rules.BuildEnvironment `json:"buildEnvironment"`
	LaunchModuleName string                 `json:"launchModuleName"`

	RTTI           *bool          `json:"rtti"`
	Exceptions     *bool          `json:"exceptions"`
	Editor         *bool          `json:"editor"`
	DeveloperTools *bool          `json:"developerTools"`
	PCHUsage       rules.PCHUsage `json:"pchUsage"`

	PGOOptimize *bool `json:"pgoOptimize"`
	PGOProfile  *bool `json:"pgoProfile"`

	DisableLinking *bool `json:"disableLinking"`
	UseUnityBuild  *bool `json:"useUnityBuild"`

	StrictPluginDependencies     *bool `json:"strictPluginDependencies"`
	BreakBuildOnLicenseViolation *bool `json:"breakBuildOnLicenseViolation"`

	EnablePlugins  []string `json:"enablePlugins"`
	DisablePlugins []string `json:"disablePlugins"`

	ExtraModuleNames []string `json:"extraModuleNames"`

	PreBuildSteps  []string `json:"preBuildSteps"`
	PostBuildSteps []string `json:"postBuildSteps"`
}

// CreateTargetRules evaluates the on-disk target file into a
// rules.TargetRules, then validates it.
func (a *RulesAssembly) CreateTargetRules(targetName string, platform rules.Platform, configuration rules.Configuration, architecture string, args []string) (rules.TargetRules, error) {
	file, err := a.findTargetFile(targetName)
	if err != nil {
		return rules.TargetRules{}, err
	}
	raw, err := os.ReadFile(file.String())
	if err != nil {
		return rules.TargetRules{}, berr.New(berr.RulesError, "reading %s: %v", file, err)
	}
	var doc targetFileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return rules.TargetRules{}, berr.New(berr.RulesError, "RulesEvaluationError: %s: %v", file, err)
	}
	tr := rules.TargetRules{
		Type:             doc.Type,
		LinkType:         doc.LinkType,
		BuildEnv:         doc.BuildEnv,
		LaunchModuleName: doc.LaunchModuleName,
		RTTI:             doc.RTTI,
		Exceptions:       doc.Exceptions,
		Editor:           doc.Editor,
		DeveloperTools:   doc.DeveloperTools,
		PCHUsage:         doc.PCHUsage,
		PGOOptimize:      doc.PGOOptimize,
		PGOProfile:       doc.PGOProfile,
		DisableLinking:   doc.DisableLinking,
		UseUnityBuild:    doc.UseUnityBuild,

		StrictPluginDependencies:     doc.StrictPluginDependencies,
		BreakBuildOnLicenseViolation: doc.BreakBuildOnLicenseViolation,
		EnablePlugins:                doc.EnablePlugins,
		DisablePlugins:               doc.DisablePlugins,
		ExtraModuleNames:             doc.ExtraModuleNames,
		PreBuildSteps:                doc.PreBuildSteps,
		PostBuildSteps:               doc.PostBuildSteps,
	}
	if err := tr.Validate(); err != nil {
		return rules.TargetRules{}, err
	}
	if err := tr.ValidateAgainstBase(rules.CanonicalBaseTargetRules(tr.Type)); err != nil {
		return rules.TargetRules{}, err
	}
	return tr, nil
}

// CreateModuleRules evaluates and caches moduleName's rules file.
// referenceChain is carried purely for diagnostics.
func (a *RulesAssembly) CreateModuleRules(moduleName string, referenceChain []string) (rules.ModuleRules, error) {
	a.mu.Lock()
	if cached, ok := a.moduleCache[moduleName]; ok {
		a.mu.Unlock()
		return *cached, nil
	}
	file, ok := a.moduleFiles[moduleName]
	a.mu.Unlock()
	if !ok {
		return rules.ModuleRules{}, berr.WithChain(berr.RulesError, referenceChain, "RulesNotFound: no rules file declares module %q", moduleName)
	}

	raw, err := os.ReadFile(file.String())
	if err != nil {
		return rules.ModuleRules{}, berr.WithChain(berr.RulesError, referenceChain, "reading %s: %v", file, err)
	}
	var doc moduleFileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return rules.ModuleRules{}, berr.WithChain(berr.RulesError, referenceChain, "RulesEvaluationError: %s: %v", file, err)
	}
	mr := doc.toModuleRules()
	if err := mr.Validate(); err != nil {
		return rules.ModuleRules{}, err
	}

	a.mu.Lock()
	a.moduleCache[moduleName] = &mr
	a.mu.Unlock()
	return mr, nil
}

// GetAllModuleNames returns every module name this assembly indexed.
func (a *RulesAssembly) GetAllModuleNames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.moduleFiles))
	for name := range a.moduleFiles {
		names = append(names, name)
	}
	return names
}

// GetModuleFile returns the rules file backing moduleName, or
// paths.Invalid if it was never indexed.
func (a *RulesAssembly) GetModuleFile(moduleName string) paths.Path {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moduleFiles[moduleName]
}

// EnumeratePlugins is a thin forward onto (D); rulesassembly itself does
// not scan plugin roots, it only knows where the project descriptor
// points additional roots at.
func (a *RulesAssembly) EnumeratePlugins() []rules.PluginInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]rules.PluginInfo(nil), a.pluginCache...)
}

// SetPlugins lets the plugin registry populate the cache this assembly
// exposes through EnumeratePlugins, keeping the two caches coherent for
// one target invocation.
func (a *RulesAssembly) SetPlugins(plugins []rules.PluginInfo) {
	a.mu.Lock()
	a.pluginCache = append([]rules.PluginInfo(nil), plugins...)
	a.mu.Unlock()
}

// Project returns the loaded project descriptor, or nil if this
// assembly was not given a project file.
func (a *RulesAssembly) Project() *rules.ProjectDescriptor {
	return a.project
}

func loadProjectDescriptor(file paths.Path) (*rules.ProjectDescriptor, error) {
	raw, err := os.ReadFile(file.String())
	if err != nil {
		return nil, berr.New(berr.RulesError, "reading project descriptor %s: %v", file, err)
	}
	var doc struct {
		EngineAssociation             string                            `json:"engineAssociation"`
		Modules                       []rules.PluginModuleDescriptor    `json:"modules"`
		Plugins                       []rules.PluginReferenceDescriptor `json:"plugins"`
		DisableEnginePluginsByDefault bool                              `json:"disableEnginePluginsByDefault"`
		AdditionalPluginDirectories   []string                          `json:"additionalPluginDirectories"`
		TargetPlatforms               []rules.Platform                  `json:"targetPlatforms"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, berr.New(berr.RulesError, "RulesEvaluationError: %s: %v", file, err)
	}
	base := file.Dir()
	dirs := make([]paths.Path, 0, len(doc.AdditionalPluginDirectories))
	for _, d := range doc.AdditionalPluginDirectories {
		dirs = append(dirs, base.Join(d))
	}
	return &rules.ProjectDescriptor{
		EngineAssociation:             doc.EngineAssociation,
		Modules:                       doc.Modules,
		Plugins:                       doc.Plugins,
		DisableEnginePluginsByDefault: doc.DisableEnginePluginsByDefault,
		AdditionalPluginDirectories:   dirs,
		TargetPlatforms:               doc.TargetPlatforms,
	}, nil
}
