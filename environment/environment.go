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

// Package environment computes per-module CompileEnvironment and
// per-binary LinkEnvironment values by walking the dependency graph
// under public/private visibility rules.
//
// The two traversal primitives, PublicCompileClosure and
// PrivateCompileClosure, are built on top of environment/depset — the
// same transitive-closure abstraction Android's flagExporter
// (cc/library.go, cc/compiler.go) uses to accumulate exported
// cflags/include-dirs/export-includes across a dependency graph without
// re-copying them at every level.
package environment

import (
	"github.com/klswkj/buildtarget/environment/depset"
	"github.com/klswkj/buildtarget/modulegraph"
	"github.com/klswkj/buildtarget/paths"
)

// CompileEnvironment aggregates the inputs to one module's compile
// action.
type CompileEnvironment struct {
	Module *modulegraph.Module

	IncludePaths  paths.Paths
	Definitions   []string
	ForceIncludes paths.Paths

	PCHAction  PCHAction
	PCHInclude paths.Path

	AdditionalArguments []string
}

type PCHAction string

const (
	PCHActionNone    PCHAction = "None"
	PCHActionCreate  PCHAction = "Create"
	PCHActionInclude PCHAction = "Include"
)

// LinkEnvironment aggregates the inputs to one binary's link action
type LinkEnvironment struct {
	Binary *modulegraph.Binary

	LibraryPaths              paths.Paths
	AdditionalLibraries       []string
	Frameworks                []string
	WeakFrameworks            []string
	RuntimeLibraryPaths       paths.Paths
	DelayLoadDLLs             []string
	AdditionalBundleResources paths.Paths

	InputObjectFiles paths.Paths

	MapFile       bool
	InstallName   string
	BundleVersion string

	IntermediateDir paths.Path
	OutputDir       paths.Path
}

// Hook lets a plugin or toolchain adapter observe and adjust a
// CompileEnvironment after the propagator has computed it but before it
// is frozen into compile actions.
type Hook interface {
	DecorateCompileEnvironment(env *CompileEnvironment)
}

// Propagator computes closures and environments for one target build.
// It memoizes closures per module so a diamond dependency graph is
// walked once per module regardless of how many times it is reached.
type Propagator struct {
	Hooks []Hook

	publicCache  map[*modulegraph.Module]*depset.DepSet[*modulegraph.Module]
	privateCache map[*modulegraph.Module]*depset.DepSet[*modulegraph.Module]
}

func NewPropagator() *Propagator {
	return &Propagator{
		publicCache:  make(map[*modulegraph.Module]*depset.DepSet[*modulegraph.Module]),
		privateCache: make(map[*modulegraph.Module]*depset.DepSet[*modulegraph.Module]),
	}
}

// PublicCompileClosure returns the set of modules whose public API
// affects m's compile: m itself, each public dependency transitively,
// and each public-include-path module.
func (p *Propagator) PublicCompileClosure(m *modulegraph.Module) *depset.DepSet[*modulegraph.Module] {
	if d, ok := p.publicCache[m]; ok {
		return d
	}
	b := depset.NewBuilder[*modulegraph.Module](depset.PREORDER)
	b.Direct(m)
	for _, dep := range m.PublicDeps {
		b.Transitive(p.PublicCompileClosure(dep))
	}
	for _, dep := range m.PublicIncludeOnly {
		b.Direct(dep)
	}
	d := b.Build()
	p.publicCache[m] = d
	return d
}

// PrivateCompileClosure is PublicCompileClosure(m) unioned with every
// private dependency's own public closure.
func (p *Propagator) PrivateCompileClosure(m *modulegraph.Module) *depset.DepSet[*modulegraph.Module] {
	if d, ok := p.privateCache[m]; ok {
		return d
	}
	b := depset.NewBuilder[*modulegraph.Module](depset.PREORDER)
	b.Transitive(p.PublicCompileClosure(m))
	for _, dep := range m.PrivateDeps {
		b.Transitive(p.PublicCompileClosure(dep))
	}
	d := b.Build()
	p.privateCache[m] = d
	return d
}

// BuildCompileEnvironment computes one module's compile inputs: union
// include paths and definitions across the private closure, assign the
// API macro, and propagate force-includes only from the module itself.
func (p *Propagator) BuildCompileEnvironment(m *modulegraph.Module, sourceBinary *modulegraph.Binary) *CompileEnvironment {
	closure := p.PrivateCompileClosure(m).ToList()

	var includes paths.Paths
	var defs []string
	seenDefs := make(map[string]bool)
	for _, n := range closure {
		includes = paths.UniqueAppend(includes, n.PublicIncludePaths...)
		for _, d := range n.PublicDefinitions {
			if !seenDefs[d] {
				seenDefs[d] = true
				defs = append(defs, d)
			}
		}
	}
	includes = paths.UniqueAppend(includes, m.PrivateIncludePaths...)
	for _, d := range m.Rules.PrivateDefinitions {
		if !seenDefs[d] {
			seenDefs[d] = true
			defs = append(defs, d)
		}
	}

	for _, n := range closure {
		defs = append(defs, apiMacroDefinition(n, sourceBinary))
	}

	var forceIncludes paths.Paths
	for _, rel := range m.Rules.ForceIncludeFiles {
		forceIncludes = append(forceIncludes, m.Dir.Join(rel))
	}

	env := &CompileEnvironment{
		Module:        m,
		IncludePaths:  includes,
		Definitions:   defs,
		ForceIncludes: forceIncludes,
	}

	for _, h := range p.Hooks {
		h.DecorateCompileEnvironment(env)
	}
	return env
}

// apiMacroDefinition resolves the "<MODULE>_API" export macro:
// DLLEXPORT when m's binary is sourceBinary and
// sourceBinary allows exports; DLLIMPORT when m is in a different
// binary; empty otherwise.
func apiMacroDefinition(m *modulegraph.Module, sourceBinary *modulegraph.Binary) string {
	macro := modulegraph.APIMacroName(m.Name)
	switch {
	case m.Binary == sourceBinary && sourceBinary != nil && sourceBinary.AllowExports:
		return macro + "=DLLEXPORT"
	case m.Binary != sourceBinary:
		return macro + "=DLLIMPORT"
	default:
		return macro + "="
	}
}

// LinkClosure propagates library paths, additional libraries,
// frameworks, weak frameworks, bundle resources, delay-load DLLs and
// runtime library paths following the same public-visibility rules as
// PublicCompileClosure; when linking a non-static binary that depends on
// a static-library binary, the closure recurses through the static
// library's own dependencies, since a static archive does not carry its
// transitive symbols.
func (p *Propagator) LinkClosure(binary *modulegraph.Binary) LinkEnvironment {
	visited := make(map[*modulegraph.Module]bool)
	beingVisited := make(map[*modulegraph.Module]bool)

	env := LinkEnvironment{Binary: binary}
	var libPaths paths.Paths
	var libs []string
	var frameworks, weak []string
	var resources paths.Paths
	var delayLoad []string
	var rpaths paths.Paths

	var walk func(m *modulegraph.Module, recurseIntoStatic bool)
	walk = func(m *modulegraph.Module, recurseIntoStatic bool) {
		if visited[m] {
			return
		}
		if beingVisited[m] {
			// Declared circular edge: contribute only the already
			// resolved public surface, then stop.
			return
		}
		beingVisited[m] = true
		defer delete(beingVisited, m)

		libs = append(libs, m.Rules.PublicAdditionalLibraries...)
		frameworks = append(frameworks, m.Rules.PublicFrameworks...)
		weak = append(weak, m.Rules.PublicWeakFrameworks...)
		delayLoad = append(delayLoad, m.Rules.PublicDelayLoadDLLs...)
		for _, r := range m.Rules.AdditionalBundleResources {
			resources = append(resources, m.Dir.Join(r))
		}
		for _, lp := range m.Rules.PublicSystemLibraryPaths {
			libPaths = append(libPaths, m.Dir.Join(lp))
		}
		for _, rp := range m.Rules.PublicRuntimeLibraryPaths {
			rpaths = append(rpaths, m.Dir.Join(rp))
		}

		for _, dep := range m.PublicDeps {
			depIsStatic := dep.Binary != nil && dep.Binary.Type == modulegraph.StaticLibrary
			walk(dep, depIsStatic)
		}

		if recurseIntoStatic {
			for _, dep := range m.PrivateDeps {
				walk(dep, dep.Binary != nil && dep.Binary.Type == modulegraph.StaticLibrary)
			}
		}

		visited[m] = true
	}

	for _, m := range binary.Modules {
		walk(m, binary.Type != modulegraph.StaticLibrary)
	}

	env.LibraryPaths = paths.UniqueAppend(nil, libPaths...)
	env.AdditionalLibraries = dedupStrings(libs)
	env.Frameworks = dedupStrings(frameworks)
	env.WeakFrameworks = dedupStrings(weak)
	env.AdditionalBundleResources = resources
	env.DelayLoadDLLs = dedupStrings(delayLoad)
	env.RuntimeLibraryPaths = paths.UniqueAppend(nil, rpaths...)
	return env
}

// dedupStrings removes duplicates while preserving first-occurrence
// order, so module creation order determines the order of entries in
// dependency lists and the output stays stable across re-runs.
func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
