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

// Package modulegraph instantiates modules on demand, resolves their
// public/private/dynamic dependency edges, and enforces the scope and
// license rules over the finished graph.
//
// FindOrCreateModule's cycle handling — returning the in-progress
// instance for a name already under construction, then populating edges
// depth-first once the recursive calls return — is the same shape
// blueprint.Context uses internally to let two modules depend on each
// other without the module factory recursing forever; see blueprint's
// moduleGroup/visited bookkeeping in blueprint/context.go, which this
// package's inProgress map mirrors without pulling in the whole
// blueprint.Context machinery (the module type here isn't a blueprint
// Module — no mutators, no ninja emission — so only the cycle-safety
// idiom is worth adopting, not the type itself).
package modulegraph

import (
	"fmt"
	"sort"

	"github.com/klswkj/buildtarget/berr"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/rules"
)

// Module is the runtime instance of a rules.ModuleRules, cached once per
// target.
type Module struct {
	Name string
	Type rules.ModuleType
	Dir  paths.Path

	Rules rules.ModuleRules

	PublicIncludePaths  paths.Paths
	PrivateIncludePaths paths.Paths

	PublicDefinitions []string
	APIMacro          string

	PublicDeps        []*Module
	PrivateDeps       []*Module
	PublicIncludeOnly []*Module
	DynamicallyLoaded []*Module

	GeneratedCodeDir paths.Path

	Binary *Binary

	referenceChain []string
}

// BinaryType enumerates the output-artifact kinds a Binary can be.
type BinaryType string

const (
	Executable            BinaryType = "Executable"
	DynamicLinkLibrary    BinaryType = "DynamicLinkLibrary"
	StaticLibrary         BinaryType = "StaticLibrary"
	Object                BinaryType = "Object"
	PrecompiledHeaderType BinaryType = "PrecompiledHeader"
)

// Binary is an output artifact assembled from one or more modules.
type Binary struct {
	Type                          BinaryType
	OutputFiles                   paths.Paths
	IntermediateDir               paths.Path
	PrimaryModule                 *Module
	Modules                       []*Module
	AllowExports                  bool
	CreateImportLibrarySeparately bool
	Precompiled                   bool

	// Ordinal is the binary's topological rank, assigned once binaries
	// are sorted leaves-first: every dependency binary has a lower
	// ordinal than its dependents.
	Ordinal int
}

// ModuleSource resolves a rules.ModuleRules by name, exactly the
// surface rulesassembly implements; modulegraph depends on it only
// through this narrow seam so it never imports rulesassembly directly,
// keeping the package dependency direction leaf-ward.
type ModuleSource interface {
	CreateModuleRules(name string, referenceChain []string) (rules.ModuleRules, error)
}

// PlatformAdapter is the subset of (K) that module creation needs
type PlatformAdapter interface {
	ModifyModuleRulesForActivePlatform(name string, mr *rules.ModuleRules) error
}

// Builder instantiates and caches Module values for one target build.
type Builder struct {
	Source   ModuleSource
	Platform PlatformAdapter
	Stat     *paths.StatCache

	EngineDir    paths.Path
	ProjectDir   paths.Path
	Intermediate paths.Path // platform-intermediate folder for generated code

	// ModuleRoot resolves the on-disk directory a module's rules file
	// lives under; the rules assembly owns the authoritative mapping,
	// so Builder asks through this func rather than re-deriving it.
	ModuleRoot func(name string) paths.Path

	// UnderPluginOrProject reports whether a module directory is part of
	// a plugin or the project.
	UnderPluginOrProject func(dir paths.Path) (sourceRoot paths.Path, ok bool)

	cache      map[string]*Module
	inProgress map[string]*Module
}

func NewBuilder() *Builder {
	return &Builder{
		cache:      make(map[string]*Module),
		inProgress: make(map[string]*Module),
	}
}

// FindOrCreateModule returns the cached module for name, creating it
// and recursively its dependencies on first request. referenceChain is
// carried purely for diagnostics.
func (b *Builder) FindOrCreateModule(name string, referenceChain []string) (*Module, error) {
	if m, ok := b.cache[name]; ok {
		return m, nil
	}
	if m, ok := b.inProgress[name]; ok {
		// Cycle: the caller gets the in-progress instance; its edges will
		// be populated by the frame that is already building it.
		return m, nil
	}

	chain := append(append([]string(nil), referenceChain...), name)

	mr, err := b.Source.CreateModuleRules(name, chain)
	if err != nil {
		return nil, err
	}

	dir := paths.Invalid
	if b.ModuleRoot != nil {
		dir = b.ModuleRoot(name)
	}

	if b.Platform != nil {
		if err := b.Platform.ModifyModuleRulesForActivePlatform(name, &mr); err != nil {
			return nil, berr.WithChain(berr.ConfigurationError, chain, "platform rule modification failed for %q: %v", name, err)
		}
	}

	m := &Module{
		Name:              name,
		Type:              mr.Type,
		Dir:               dir,
		Rules:             mr,
		PublicDefinitions: append([]string(nil), mr.PublicDefinitions...),
		APIMacro:          APIMacroName(name),
		referenceChain:    chain,
	}
	b.inProgress[name] = m

	m.GeneratedCodeDir = b.generatedCodeDir(name)
	m.PublicIncludePaths = b.defaultIncludePaths(dir, mr)
	for _, rel := range mr.PrivateIncludePaths {
		m.PrivateIncludePaths = append(m.PrivateIncludePaths, dir.Join(rel))
	}

	depNames := unionPreserveOrder(
		mr.PublicDependencyModuleNames,
		mr.PrivateDependencyModuleNames,
		mr.PublicIncludePathModuleNames,
		mr.DynamicallyLoadedModuleNames,
	)
	resolved := make(map[string]*Module, len(depNames))
	for _, dn := range depNames {
		dm, err := b.FindOrCreateModule(dn, chain)
		if err != nil {
			return nil, err
		}
		resolved[dn] = dm
	}

	for _, dn := range mr.PublicDependencyModuleNames {
		m.PublicDeps = append(m.PublicDeps, resolved[dn])
	}
	for _, dn := range mr.PrivateDependencyModuleNames {
		m.PrivateDeps = append(m.PrivateDeps, resolved[dn])
	}
	for _, dn := range mr.PublicIncludePathModuleNames {
		m.PublicIncludeOnly = append(m.PublicIncludeOnly, resolved[dn])
	}
	for _, dn := range mr.DynamicallyLoadedModuleNames {
		m.DynamicallyLoaded = append(m.DynamicallyLoaded, resolved[dn])
	}

	delete(b.inProgress, name)
	b.cache[name] = m
	return m, nil
}

// generatedCodeDir computes the module's generated-code directory under
// the target's platform-intermediate folder.
func (b *Builder) generatedCodeDir(name string) paths.Path {
	if !b.Intermediate.Valid() {
		return paths.Invalid
	}
	return b.Intermediate.Join(name, "Inc")
}

// defaultIncludePaths computes the default include set:
// ModuleDir/.., ModuleDir/Public, ModuleDir/Private, ModuleDir/Classes
// (the last three existence-checked), plus explicit PublicIncludePaths
// and, when the module is under a plugin or project, the source root.
func (b *Builder) defaultIncludePaths(dir paths.Path, mr rules.ModuleRules) paths.Paths {
	var out paths.Paths
	if !dir.Valid() {
		for _, rel := range mr.PublicIncludePaths {
			out = paths.UniqueAppend(out, paths.New(rel))
		}
		return out
	}

	out = paths.UniqueAppend(out, dir.Dir())

	for _, sub := range []string{"Public", "Private", "Classes"} {
		candidate := dir.Join(sub)
		if b.Stat == nil || b.Stat.IsDir(candidate) {
			out = paths.UniqueAppend(out, candidate)
		}
	}

	for _, rel := range mr.PublicIncludePaths {
		out = paths.UniqueAppend(out, dir.Join(rel))
	}

	if b.UnderPluginOrProject != nil {
		if root, ok := b.UnderPluginOrProject(dir); ok {
			out = paths.UniqueAppend(out, root)
		}
	}

	return out
}

func unionPreserveOrder(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// CheckVisibility enforces the edge-existence invariant — for every
// edge m→n, n exists in the target's module map. It does not look for
// cycles and does not read CircularlyReferencedDependentModules; that
// list is consulted only by CheckRedistribution and CheckScope.
func CheckVisibility(all map[string]*Module) error {
	for name, m := range all {
		for _, dep := range allDeps(m) {
			if _, ok := all[dep.Name]; !ok {
				return berr.WithChain(berr.ScopeViolation, m.referenceChain, "module %q depends on %q, which is not part of this target's module map", name, dep.Name)
			}
		}
	}
	return nil
}

func allDeps(m *Module) []*Module {
	out := make([]*Module, 0, len(m.PublicDeps)+len(m.PrivateDeps)+len(m.DynamicallyLoaded))
	out = append(out, m.PublicDeps...)
	out = append(out, m.PrivateDeps...)
	out = append(out, m.DynamicallyLoaded...)
	return out
}

// CheckRedistribution enforces that a redistributable module may
// not carry a public or private dependency on a non-redistributable one,
// since that would silently leak a restricted module into a
// redistributed build product.
func CheckRedistribution(all map[string]*Module) error {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := all[name]
		if !m.Rules.IsRedistributable {
			continue
		}
		for _, dep := range append(append([]*Module(nil), m.PublicDeps...), m.PrivateDeps...) {
			if !dep.Rules.IsRedistributable && !isCircularlyWhitelisted(m, dep) {
				return berr.WithChain(berr.LicenseViolation, m.referenceChain,
					"redistributable module %q depends on non-redistributable module %q", m.Name, dep.Name)
			}
		}
	}
	return nil
}

// CheckScope reports every engine-scope module (one living under
// engineDir) that references a project-scope module (one living under
// projectDir), reported as a ScopeViolation. The caller decides severity: a warning by default,
// fatal when the target sets strict plugin dependencies.
func CheckScope(all map[string]*Module, engineDir, projectDir paths.Path) []*berr.BuildError {
	if !engineDir.Valid() || !projectDir.Valid() {
		return nil
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*berr.BuildError
	for _, name := range names {
		m := all[name]
		if !m.Dir.Valid() || !m.Dir.IsUnder(engineDir) {
			continue
		}
		for _, dep := range allDeps(m) {
			if dep.Dir.Valid() && dep.Dir.IsUnder(projectDir) && !isCircularlyWhitelisted(m, dep) {
				out = append(out, berr.WithChain(berr.ScopeViolation, m.referenceChain,
					"engine module %q depends on project module %q", m.Name, dep.Name))
			}
		}
	}
	return out
}

// CheckShippingRedistribution reports every non-redistributable module
// reachable from a non-editor Shipping target as a LicenseViolation.
// The caller downgrades the findings to warnings
// unless the target breaks the build on license violations.
func CheckShippingRedistribution(all map[string]*Module) []*berr.BuildError {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*berr.BuildError
	for _, name := range names {
		m := all[name]
		if !m.Rules.IsRedistributable {
			out = append(out, berr.WithChain(berr.LicenseViolation, m.referenceChain,
				"module %q is not redistributable but is part of a Shipping target", m.Name))
		}
	}
	return out
}

func isCircularlyWhitelisted(m, dep *Module) bool {
	for _, n := range m.Rules.CircularlyReferencedDependentModules {
		if n == dep.Name {
			for _, back := range dep.Rules.CircularlyReferencedDependentModules {
				if back == m.Name {
					return true
				}
			}
		}
	}
	return false
}

func (m *Module) String() string {
	return fmt.Sprintf("Module(%s)", m.Name)
}

// APIMacroName derives the "<MODULE>_API" export macro name for
// moduleName, shared by (G) so both module
// creation and compile-environment assembly agree on the same spelling.
func APIMacroName(moduleName string) string {
	upper := make([]byte, 0, len(moduleName)+4)
	for i := 0; i < len(moduleName); i++ {
		c := moduleName[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = append(upper, c)
	}
	return string(upper) + "_API"
}
