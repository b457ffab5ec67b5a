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

// Package actions assembles the action graph for one target build.
//
// Action's fluent accumulation of inputs/outputs/command text borrows
// android/rule_builder.go's RuleBuilder/RuleBuilderCommand shape (inputs
// recorded as they're referenced, Build() finalizing a single rule) but
// without its ninja/sbox machinery, since this module's Makefile is a
// plain value handed to an external executor. Content-addressing an
// Action's identity uses xxhash, a cheap non-cryptographic fingerprint;
// sha256 from the standard library covers the dependency-list digest
// instead. No receipt stores that digest.
package actions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/klswkj/buildtarget/berr"
	"github.com/klswkj/buildtarget/modulegraph"
	"github.com/klswkj/buildtarget/paths"
)

type Kind string

const (
	Compile           Kind = "Compile"
	Link              Kind = "Link"
	PostBuildStep     Kind = "PostBuildStep"
	WriteMetadata     Kind = "WriteMetadata"
	GenerateDebugInfo Kind = "GenerateDebugInfo"
	CreateAppBundle   Kind = "CreateAppBundle"
	Copy              Kind = "Copy"
)

// localOnlyKinds are never eligible for remote execution.
var localOnlyKinds = map[Kind]bool{
	Link:          true,
	PostBuildStep: true,
	WriteMetadata: true,
}

// Action is one unit of work for the executor.
type Action struct {
	Kind Kind

	WorkingDir paths.Path
	Command    paths.Path
	Arguments  []string

	Prerequisites paths.Paths
	Produced      paths.Paths

	DependencyListFile paths.Path

	CanExecuteRemotely bool
	StatusDescription  string
}

// Key returns the action's content-addressed identity: a
// deterministic digest of its kind, command, arguments, and
// inputs/outputs, so two builds over unchanged sources and rules yield
// byte-identical action keys.
func (a *Action) Key() uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", a.Kind, a.WorkingDir, a.Command)
	for _, arg := range a.Arguments {
		fmt.Fprintf(h, "%s\x00", arg)
	}
	for _, p := range a.Prerequisites.Sorted() {
		fmt.Fprintf(h, "%s\x00", p)
	}
	for _, p := range a.Produced.Sorted() {
		fmt.Fprintf(h, "%s\x00", p)
	}
	return h.Sum64()
}

// newAction sets CanExecuteRemotely from the local-only kind list,
// which every constructor below routes through so callers
// cannot forget to set the flag.
func newAction(kind Kind) *Action {
	return &Action{Kind: kind, CanExecuteRemotely: !localOnlyKinds[kind]}
}

// Makefile is the full action graph for one target invocation.
type Makefile struct {
	Actions []*Action

	ModuleOutputIndex    map[string]paths.Paths
	PluginFiles          paths.Paths
	ExternalDependencies paths.Paths
	HotReloadModules     []string
	UObjectModules       []string
	Diagnostics          []string

	outputOwners map[string]*Action
}

func NewMakefile() *Makefile {
	return &Makefile{
		ModuleOutputIndex: make(map[string]paths.Paths),
		outputOwners:      make(map[string]*Action),
	}
}

// Add appends a into the makefile, rejecting the graph with
// DuplicateOutput if any of its produced items is already owned by
// another action.
func (mf *Makefile) Add(a *Action) error {
	for _, out := range a.Produced {
		key := out.String()
		if owner, ok := mf.outputOwners[key]; ok && owner != a {
			return berr.New(berr.GraphError, "DuplicateOutput: %s is produced by more than one action", out)
		}
	}
	for _, out := range a.Produced {
		mf.outputOwners[out.String()] = a
	}
	mf.Actions = append(mf.Actions, a)
	return nil
}

// CompileInput names one translation unit to compile.
type CompileInput struct {
	Source             paths.Path
	ForceIncludes      paths.Paths
	GeneratedHeaders   paths.Paths
	ObjectFile         paths.Path
	DependencyListFile paths.Path
	Command            paths.Path
	Arguments          []string
}

// EmitCompile appends one Compile action for a single translation
// unit. The caller is responsible for visiting binaries in dependency
// order; Makefile itself does not re-sort.
func EmitCompile(mf *Makefile, in CompileInput) error {
	a := newAction(Compile)
	a.Command = in.Command
	a.Arguments = in.Arguments
	a.Prerequisites = paths.UniqueAppend(paths.Paths{in.Source}, in.ForceIncludes...)
	a.Prerequisites = paths.UniqueAppend(a.Prerequisites, in.GeneratedHeaders...)
	a.Produced = paths.Paths{in.ObjectFile, in.DependencyListFile}
	a.DependencyListFile = in.DependencyListFile
	a.StatusDescription = fmt.Sprintf("Compile %s", in.Source.Base())
	return mf.Add(a)
}

// EmitPCHCreate appends the creation action for one shared-PCH
// template; callers emit it once per template actually used.
func EmitPCHCreate(mf *Makefile, header paths.Path, forceIncludes paths.Paths, output paths.Path, command paths.Path, args []string) error {
	a := newAction(Compile)
	a.Command = command
	a.Arguments = args
	a.Prerequisites = paths.UniqueAppend(paths.Paths{header}, forceIncludes...)
	a.Produced = paths.Paths{output}
	a.StatusDescription = fmt.Sprintf("PrecompileHeader %s", header.Base())
	return mf.Add(a)
}

// LinkInput describes one binary's link action inputs.
type LinkInput struct {
	ObjectFiles       paths.Paths
	DependencyOutputs paths.Paths // dependency binaries' import libraries or outputs
	Output            paths.Path
	ImportLibrary     paths.Path
	MapFile           paths.Path
	SymbolFile        paths.Path
	Command           paths.Path
	Arguments         []string
}

// EmitLink appends one binary's link action.
func EmitLink(mf *Makefile, in LinkInput) error {
	a := newAction(Link)
	a.Command = in.Command
	a.Arguments = in.Arguments
	a.Prerequisites = paths.UniqueAppend(append(paths.Paths(nil), in.ObjectFiles...), in.DependencyOutputs...)
	a.Produced = paths.Paths{in.Output}
	for _, p := range []paths.Path{in.ImportLibrary, in.MapFile, in.SymbolFile} {
		if p.Valid() {
			a.Produced = append(a.Produced, p)
		}
	}
	a.StatusDescription = fmt.Sprintf("Link %s", in.Output.Base())
	return mf.Add(a)
}

// MetadataInput describes the per-module manifest / per-target receipt
// / version-file triad the metadata action produces.
type MetadataInput struct {
	Prerequisites  paths.Paths
	ModuleManifest paths.Path
	TargetReceipt  paths.Path
	VersionFile    paths.Path // valid only for non-monolithic, non-debug-game builds
	Command        paths.Path
	Arguments      []string
}

func EmitMetadata(mf *Makefile, in MetadataInput) error {
	a := newAction(WriteMetadata)
	a.Command = in.Command
	a.Arguments = in.Arguments
	a.Prerequisites = in.Prerequisites
	a.Produced = paths.Paths{in.TargetReceipt}
	if in.ModuleManifest.Valid() {
		a.Produced = append(a.Produced, in.ModuleManifest)
	}
	if in.VersionFile.Valid() {
		a.Produced = append(a.Produced, in.VersionFile)
	}
	a.StatusDescription = "WriteMetadata"
	return mf.Add(a)
}

// PostBuildStepInput describes one post-build batch.
type PostBuildStepInput struct {
	BatchIndex    int
	ScriptPath    paths.Path
	Environment   map[string]string
	Prerequisites paths.Paths
}

func EmitPostBuildStep(mf *Makefile, in PostBuildStepInput) error {
	a := newAction(PostBuildStep)
	a.Command = in.ScriptPath
	a.Prerequisites = in.Prerequisites
	a.Produced = paths.Paths{} // post-build steps have no tracked output item
	a.StatusDescription = fmt.Sprintf("PostBuildStep %d", in.BatchIndex)
	return mf.Add(a)
}

// EmitCopy appends a copy action for a runtime dependency; a copy
// onto itself is dropped.
func EmitCopy(mf *Makefile, src, dst paths.Path) error {
	if src.Equal(dst) {
		return nil
	}
	a := newAction(Copy)
	a.Prerequisites = paths.Paths{src}
	a.Produced = paths.Paths{dst}
	a.StatusDescription = fmt.Sprintf("Copy %s", dst.Base())
	return mf.Add(a)
}

// DependencyListDigest computes the sha256 digest of a sorted,
// POSIX-separated dependency list; two lists with the same paths in any
// order give the same digest. Neither the receipt package nor the
// driver calls it.
func DependencyListDigest(deps paths.Paths) string {
	sorted := deps.Sorted()
	lines := make([]string, len(sorted))
	for i, p := range sorted {
		lines[i] = p.ToPosix()
	}
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// SortBinariesLeavesFirst orders binaries so that any binary b2 that b1
// depends on (via its modules' link closures) comes before b1, so
// action emission visits binaries in dependency order, leaves first.
func SortBinariesLeavesFirst(binaries []*modulegraph.Binary, dependsOn func(b *modulegraph.Binary) []*modulegraph.Binary) []*modulegraph.Binary {
	visited := make(map[*modulegraph.Binary]bool)
	var order []*modulegraph.Binary
	var visit func(b *modulegraph.Binary)
	visit = func(b *modulegraph.Binary) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, dep := range dependsOn(b) {
			visit(dep)
		}
		order = append(order, b)
	}
	for _, b := range binaries {
		visit(b)
	}
	return order
}
