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

// Package toolchain declares the capability interfaces the action
// assembler calls through; concrete toolchains, SDK discovery, and
// platform implementations live outside this repository.
//
// The split between ToolChain (turning an environment into actions)
// and PlatformAdapter (consulted while building the module/binary
// graph) mirrors cc.Toolchain vs. the android.Config
// platform hooks cc/toolchain.go and cc/builder.go divide between:
// Soong's cc package never open-codes a concrete compiler invocation
// inline in the module graph builder, it always goes through a
// toolchain interface value, even though Soong ships concrete
// implementations where this module intentionally does not.
package toolchain

import (
	"github.com/klswkj/buildtarget/actions"
	"github.com/klswkj/buildtarget/environment"
	"github.com/klswkj/buildtarget/modulegraph"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/receipt"
	"github.com/klswkj/buildtarget/rules"
)

// GraphBuilder is the narrow seam a ToolChain method uses to append
// actions to the makefile under construction, rather than accepting a
// full *actions.Makefile (which would let a toolchain implementation
// reach into unrelated parts of the graph).
type GraphBuilder interface {
	Add(a *actions.Action) error
}

// CppOutput is what CompileCppFiles hands back to (I): the object files
// produced and, when a PCH was created as a side effect, its path.
type CppOutput struct {
	ObjectFiles paths.Paths
	PCHFile     paths.Path
}

// LinkOutput is what LinkFiles hands back to (I).
type LinkOutput struct {
	OutputFile    paths.Path
	ImportLibrary paths.Path
	MapFile       paths.Path
	SymbolFile    paths.Path
}

// ToolChain is the capability set the action assembler consumes.
// CompileResourceFiles, CompileIspcFiles and GenerateIspcHeaders may be
// left unimplemented by embedding NopExtraCompiles, which makes them a
// graceful no-op.
type ToolChain interface {
	CompileCppFiles(env *environment.CompileEnvironment, inputs paths.Paths, outputDir paths.Path, moduleName string, graph GraphBuilder) (CppOutput, error)

	CompileResourceFiles(env *environment.CompileEnvironment, inputs paths.Paths, outputDir paths.Path, graph GraphBuilder) (paths.Paths, error)
	CompileIspcFiles(env *environment.CompileEnvironment, inputs paths.Paths, outputDir paths.Path, graph GraphBuilder) (paths.Paths, error)
	GenerateIspcHeaders(env *environment.CompileEnvironment, inputs paths.Paths, outputDir paths.Path, graph GraphBuilder) (paths.Paths, error)

	LinkFiles(env *environment.LinkEnvironment, buildImportLibraryOnly bool, graph GraphBuilder) (LinkOutput, error)

	GenerateTypeLibraryHeader(env *environment.CompileEnvironment, typeLib paths.Path, output paths.Path, graph GraphBuilder) error

	SetupGlobalEnvironment(tr rules.TargetRules) error
	SetupBundleDependencies(binaries []*modulegraph.Binary, name string) error

	GetBinaryExtension(typ modulegraph.BinaryType) string
	GetDebugInfoExtensions(tr rules.TargetRules, typ modulegraph.BinaryType) []string

	FinalizeOutput(tr rules.TargetRules, mf *actions.Makefile) error
	PostBuild(executable paths.Path, env *environment.LinkEnvironment, graph GraphBuilder) (paths.Paths, error)

	PrepareRuntimeDependencies(deps paths.Paths, moduleOutputs map[string]paths.Paths, exeDir paths.Path) ([]receipt.RuntimeDependency, error)

	GetSdkVersion() string
	GetVersionInfo(lines []string) (receipt.BuildVersion, error)

	// SetEnvironmentVariables has a side effect on the current process,
	// and must run before any action is emitted.
	SetEnvironmentVariables() error
}

// NopExtraCompiles implements ToolChain's optional resource/ISPC hooks
// as graceful no-ops; a concrete ToolChain can embed it to satisfy the
// interface without those capabilities.
type NopExtraCompiles struct{}

func (NopExtraCompiles) CompileResourceFiles(*environment.CompileEnvironment, paths.Paths, paths.Path, GraphBuilder) (paths.Paths, error) {
	return nil, nil
}

func (NopExtraCompiles) CompileIspcFiles(*environment.CompileEnvironment, paths.Paths, paths.Path, GraphBuilder) (paths.Paths, error) {
	return nil, nil
}

func (NopExtraCompiles) GenerateIspcHeaders(*environment.CompileEnvironment, paths.Paths, paths.Path, GraphBuilder) (paths.Paths, error) {
	return nil, nil
}

// PlatformAdapter is the additional capability set the platform layer
// provides (as opposed to the toolchain layer).
type PlatformAdapter interface {
	ModifyModuleRulesForActivePlatform(name string, mr *rules.ModuleRules) error
	IsBuildProduct(filename string, prefixes, suffixes []string) bool
	FinalizeBinaryPaths(base paths.Path, project paths.Path, tr rules.TargetRules) (paths.Paths, error)
	GetExcludedFolderNames() map[string]bool
	GetDefaultArchitecture(project paths.Path) string
	RequiresArchitectureSuffix() bool
	SetUpEnvironment() error
	SetUpConfigurationEnvironment(configuration rules.Configuration) error
	ShouldCreateDebugInfo(tr rules.TargetRules) bool
}
