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

// Package buildtarget wires the whole pipeline into a single driver
// entry point: rules assembly, plugin resolution, module graph
// construction, binary composition, environment propagation, shared-PCH
// planning, and action-graph/receipt emission, in that order.
package buildtarget

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/google/blueprint/proptools"

	"github.com/klswkj/buildtarget/actions"
	"github.com/klswkj/buildtarget/berr"
	"github.com/klswkj/buildtarget/binaries"
	"github.com/klswkj/buildtarget/buildctx"
	"github.com/klswkj/buildtarget/diag"
	"github.com/klswkj/buildtarget/environment"
	"github.com/klswkj/buildtarget/modulegraph"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/pch"
	"github.com/klswkj/buildtarget/plugins"
	"github.com/klswkj/buildtarget/receipt"
	"github.com/klswkj/buildtarget/rules"
	"github.com/klswkj/buildtarget/rulesassembly"
	"github.com/klswkj/buildtarget/toolchain"
)

// Logger is the minimal logging seam the driver writes progress and
// diagnostics through. Production callers wire a *diag.Logger; tests can
// substitute a buffering stub.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Config bundles the directories and object-graph collaborators one
// driver invocation needs.
type Config struct {
	RulesRoot  paths.Path
	EngineDir  paths.Path
	ProjectDir paths.Path

	ToolChain       toolchain.ToolChain
	PlatformAdapter modulegraph.PlatformAdapter

	PluginRegistry *plugins.Registry
	PluginRoots    []plugins.RootSpec

	OutputPathPolicy binaries.OutputPathPolicy

	UndecoratedConfiguration rules.Configuration

	// Context carries the per-invocation caches and the path-variable
	// vocabulary. NewDriver creates a fresh one when nil, so every run
	// starts with empty caches and nothing leaks between targets.
	Context *buildctx.BuildContext

	Logger Logger
}

// Driver executes one target build end to end.
type Driver struct {
	cfg Config
}

func NewDriver(cfg Config) *Driver {
	if cfg.Logger == nil {
		cfg.Logger = diag.New(log.New(os.Stderr, "buildtarget: ", 0), false)
	}
	if cfg.Context == nil {
		cfg.Context = buildctx.New(4)
	}
	if cfg.PluginRegistry == nil {
		cfg.PluginRegistry = cfg.Context.PluginRegistry
	}
	return &Driver{cfg: cfg}
}

// Result is everything a successful Build call produces.
type Result struct {
	Makefile       *actions.Makefile
	TargetReceipt  receipt.TargetReceipt
	ModuleManifest *receipt.ModuleManifest
	BuildManifest  receipt.BuildManifest
	DependencyList paths.Paths
	Diagnostics    *berr.Diagnostics
}

// Build runs the full pipeline for one rules.TargetDescriptor.
func (d *Driver) Build(td rules.TargetDescriptor) (*Result, error) {
	diags := &berr.Diagnostics{}
	ctx := d.cfg.Context

	assembly, err := rulesassembly.LoadForTarget(d.cfg.RulesRoot, td.ProjectFile, td.TargetName)
	if err != nil {
		return nil, err
	}

	tr, err := assembly.CreateTargetRules(td.TargetName, td.Platform, td.Configuration, td.Architecture, td.PassThroughArgs)
	if err != nil {
		return nil, err
	}
	applyDescriptorOverrides(&tr, td)

	var enabledPlugins []string
	if d.cfg.PluginRegistry != nil {
		allPlugins, err := d.cfg.PluginRegistry.ScanRoots(d.cfg.PluginRoots)
		if err != nil {
			return nil, err
		}
		assembly.SetPlugins(allPlugins)
		enabledPlugins = plugins.ResolveEnabled(allPlugins, plugins.EnablementInput{
			IsForeignPlugin:   td.IsForeignPlugin(),
			ForeignPluginName: pluginNameFromPath(td.ForeignPlugin),
			TargetRules:       tr,
			Project:           assembly.Project(),
		})
	}

	interDir := d.intermediateDir(td)
	outDir := d.outputDir(td)
	d.bindPathVariables(td, outDir)

	builder := modulegraph.NewBuilder()
	builder.Source = assembly
	builder.Platform = d.cfg.PlatformAdapter
	builder.Stat = ctx.Stat
	builder.EngineDir = d.cfg.EngineDir
	builder.ProjectDir = d.cfg.ProjectDir
	builder.Intermediate = interDir
	builder.ModuleRoot = func(name string) paths.Path {
		if f := assembly.GetModuleFile(name); f.Valid() {
			return f.Dir()
		}
		return paths.Invalid
	}

	launch, err := builder.FindOrCreateModule(tr.LaunchModuleName, nil)
	if err != nil {
		return nil, err
	}

	var extra []*modulegraph.Module
	for _, name := range tr.ExtraModuleNames {
		m, err := builder.FindOrCreateModule(name, nil)
		if err != nil {
			return nil, err
		}
		extra = append(extra, m)
	}

	pluginByName := make(map[string]rules.PluginInfo)
	for _, p := range assembly.EnumeratePlugins() {
		pluginByName[p.Name] = p
	}
	pluginRuntimeModules := make(map[string][]*modulegraph.Module, len(enabledPlugins))
	for _, name := range enabledPlugins {
		info, ok := pluginByName[name]
		if !ok {
			continue
		}
		var mods []*modulegraph.Module
		for _, pm := range info.Descriptor.Modules {
			m, err := builder.FindOrCreateModule(pm.Name, []string{name})
			if err != nil {
				return nil, err
			}
			mods = append(mods, m)
		}
		pluginRuntimeModules[name] = mods
	}

	all := collectAllModules(launch, extra, pluginRuntimeModules)
	if err := modulegraph.CheckVisibility(all); err != nil {
		return nil, err
	}
	if err := modulegraph.CheckRedistribution(all); err != nil {
		return nil, err
	}
	for _, v := range modulegraph.CheckScope(all, d.cfg.EngineDir, d.cfg.ProjectDir) {
		if tr.HasStrictPluginDependencies() {
			diags.Fatal(v)
		} else {
			diags.Warn(v)
		}
	}
	if td.Configuration == rules.Shipping && !tr.IsEditorTarget() {
		for _, v := range modulegraph.CheckShippingRedistribution(all) {
			if tr.BreaksBuildOnLicenseViolation() {
				diags.Fatal(v)
			} else {
				diags.Warn(v)
			}
		}
	}
	if diags.HasFatal() {
		// No action graph, no receipt past the first fatal diagnostic.
		if dl, ok := d.cfg.Logger.(*diag.Logger); ok {
			dl.Emit(diags)
		}
		for _, e := range diags.Entries() {
			if e.Severity == berr.Fatal {
				return nil, e.Err
			}
		}
	}

	binList := binaries.Compose(tr.LinkType, launch, pluginRuntimeModules, extra, d.cfg.OutputPathPolicy,
		d.cfg.ProjectDir, td.Platform, td.Configuration, d.cfg.UndecoratedConfiguration, td.Architecture, td.HotReloadSuffixes)

	prop := environment.NewPropagator()
	mf := actions.NewMakefile()
	mf.PluginFiles = pluginDescriptorPaths(assembly, enabledPlugins)
	mf.HotReloadModules = hotReloadModuleNames(td)
	mf.ExternalDependencies = externalModuleFiles(assembly, all)

	ordered := actions.SortBinariesLeavesFirst(binList, binaryDependencies)
	for i, b := range ordered {
		b.Ordinal = i
	}

	for _, b := range ordered {
		if b.Precompiled {
			continue
		}
		for _, m := range b.Modules {
			mf.ModuleOutputIndex[m.Name] = b.OutputFiles
			if m.Dir.Valid() && ctx.Stat.IsDir(m.Dir.Join("Classes")) {
				mf.UObjectModules = append(mf.UObjectModules, m.Name)
			}
		}
	}

	depList := dependencyList(assembly, all)

	linkOutputs, err := d.emitActions(td, tr, ordered, launch, prop, mf, interDir, outDir)
	if err != nil {
		return nil, err
	}

	receiptFile := outDir.Join(fmt.Sprintf("%s-%s-%s.target", td.TargetName, td.Platform, td.Configuration))
	manifest := buildModuleManifest(ordered, buildID(td))
	manifestFile := paths.Invalid
	if manifest != nil {
		manifestFile = outDir.Join(fmt.Sprintf("%s.modules.json", td.TargetName))
	}
	versionFile := paths.Invalid
	if tr.LinkType != rules.Monolithic && td.Configuration != rules.DebugGame {
		versionFile = outDir.Join(fmt.Sprintf("%s.version", td.TargetName))
	}

	metadataPrereqs := append(paths.Paths(nil), depList...)
	for _, b := range ordered {
		metadataPrereqs = append(metadataPrereqs, b.OutputFiles...)
	}
	if err := actions.EmitMetadata(mf, actions.MetadataInput{
		Prerequisites:  metadataPrereqs,
		ModuleManifest: manifestFile,
		TargetReceipt:  receiptFile,
		VersionFile:    versionFile,
		Command:        selfCommand(),
	}); err != nil {
		return nil, err
	}

	if tc := d.cfg.ToolChain; tc != nil {
		if err := tc.FinalizeOutput(tr, mf); err != nil {
			return nil, berr.New(berr.SDKError, "toolchain FinalizeOutput: %v", err)
		}
	}

	rcpt := d.buildReceipt(td, ordered, launch, enabledPlugins, linkOutputs)

	if dl, ok := d.cfg.Logger.(*diag.Logger); ok {
		dl.Emit(diags)
	} else {
		for _, line := range diags.Strings() {
			d.cfg.Logger.Printf("%s", line)
		}
	}
	d.cfg.Logger.Printf("built target %s (%s/%s/%s): %d binaries, %d actions",
		td.TargetName, td.Platform, td.Configuration, td.Architecture, len(ordered), len(mf.Actions))

	return &Result{
		Makefile:       mf,
		TargetReceipt:  rcpt,
		ModuleManifest: manifest,
		BuildManifest:  buildManifest(rcpt),
		DependencyList: depList,
		Diagnostics:    diags,
	}, nil
}

// buildManifest flattens the receipt's build products and runtime
// dependencies into the flat list external packagers consume: every
// build product, plus every runtime dependency as a deploy target.
func buildManifest(rcpt receipt.TargetReceipt) receipt.BuildManifest {
	var m receipt.BuildManifest
	for _, p := range rcpt.BuildProducts {
		m.Entries = append(m.Entries, receipt.BuildManifestEntry{Path: p.Path})
	}
	for _, dep := range rcpt.RuntimeDependencies {
		m.Entries = append(m.Entries, receipt.BuildManifestEntry{Path: dep.Path, IsDeployTarget: true})
	}
	return m
}

// applyDescriptorOverrides forces the TargetRules flags a descriptor
// implies: compiling a foreign plugin disables linking and shared PCHs
// outright, and a single-file compile disables unity grouping, PCH usage
// and linking.
func applyDescriptorOverrides(tr *rules.TargetRules, td rules.TargetDescriptor) {
	if td.IsForeignPlugin() {
		tr.DisableLinking = proptools.BoolPtr(true)
		tr.PCHUsage = rules.PCHNoSharedPCHs
	}
	if td.IsSingleFileCompile() {
		tr.UseUnityBuild = proptools.BoolPtr(false)
		tr.PCHUsage = rules.PCHNone
		tr.DisableLinking = proptools.BoolPtr(true)
	}
}

// emitActions walks binaries leaves-first and emits compiles through
// the ToolChain, one PCH create per used template, links,
// runtime-dependency copies, and post-build steps. With no ToolChain
// wired in, only the toolchain-independent actions are emitted: the
// single-file compile override, post-build scripts, and the
// WriteMetadata action the caller adds afterwards.
func (d *Driver) emitActions(td rules.TargetDescriptor, tr rules.TargetRules, ordered []*modulegraph.Binary, launch *modulegraph.Module, prop *environment.Propagator, mf *actions.Makefile, interDir, outDir paths.Path) (map[*modulegraph.Binary]toolchain.LinkOutput, error) {
	tc := d.cfg.ToolChain
	linkOutputs := make(map[*modulegraph.Binary]toolchain.LinkOutput)

	if td.IsSingleFileCompile() {
		if err := actions.EmitCompile(mf, actions.CompileInput{
			Source:             td.SingleFileOverride,
			ObjectFile:         interDir.Join(td.SingleFileOverride.Base() + ".o"),
			DependencyListFile: interDir.Join(td.SingleFileOverride.Base() + ".d"),
			Command:            selfCommand(),
		}); err != nil {
			return nil, err
		}
		return linkOutputs, d.emitPostBuildSteps(tr, ordered, mf, interDir)
	}

	if tc == nil {
		// CompileEnvironment is still computed for every module so
		// propagation errors surface without a toolchain, but no compile
		// or link actions can be formatted.
		for _, b := range ordered {
			if b.Precompiled {
				continue
			}
			for _, m := range b.Modules {
				_ = prop.BuildCompileEnvironment(m, b)
			}
		}
		return linkOutputs, d.emitPostBuildSteps(tr, ordered, mf, interDir)
	}

	// Process environment mutation happens exactly once, before any
	// action is emitted.
	if err := tc.SetEnvironmentVariables(); err != nil {
		return nil, berr.New(berr.SDKError, "toolchain SetEnvironmentVariables: %v", err)
	}
	if err := tc.SetupGlobalEnvironment(tr); err != nil {
		return nil, berr.New(berr.SDKError, "toolchain SetupGlobalEnvironment: %v", err)
	}
	if err := tc.SetupBundleDependencies(ordered, td.TargetName); err != nil {
		return nil, berr.New(berr.SDKError, "toolchain SetupBundleDependencies: %v", err)
	}

	settings := compileSettings(td, tr)

	var templates []*pch.PCHTemplate
	if tr.PCHUsage == rules.PCHUseSharedPCHs || tr.PCHUsage == rules.PCHUseExplicitOrShared {
		var candidates []pch.Candidate
		for _, b := range ordered {
			for _, m := range b.Modules {
				if m.Rules.SharedPCHHeader == "" {
					continue
				}
				candidates = append(candidates, pch.Candidate{
					Module:   m,
					Header:   m.Rules.SharedPCHHeader,
					Settings: settings,
					Allowed:  m.Type == rules.CPlusPlus && m.Rules.PCHUsage != rules.PCHNone,
				})
			}
		}
		var err error
		templates, err = pch.Plan(candidates, prop)
		if err != nil {
			return nil, err
		}
	}

	// First pass: compile environments and PCH selection for every
	// module, so each used template's create action can be emitted
	// before the compiles that include it.
	type moduleCompile struct {
		binary  *modulegraph.Binary
		module  *modulegraph.Module
		env     *environment.CompileEnvironment
		sources paths.Paths
	}
	var compiles []moduleCompile
	usedTemplates := make(map[*pch.PCHTemplate]bool)
	var usedOrder []*pch.PCHTemplate

	for _, b := range ordered {
		if b.Precompiled {
			continue
		}
		for _, m := range b.Modules {
			env := prop.BuildCompileEnvironment(m, b)
			if m.Type != rules.CPlusPlus {
				continue
			}
			switch m.Rules.PCHUsage {
			case rules.PCHUseSharedPCHs, rules.PCHUseExplicitOrShared:
				if m.Rules.PCHUsage == rules.PCHUseExplicitOrShared && m.Rules.PrivatePCHHeader != "" {
					env.PCHAction = environment.PCHActionInclude
					env.PCHInclude = m.Dir.Join(m.Rules.PrivatePCHHeader)
				} else if tmpl := pch.SelectForModule(templates, m, settings, prop); tmpl != nil {
					env.PCHAction = environment.PCHActionInclude
					env.PCHInclude = tmpl.Owner.Dir.Join(tmpl.Header)
					if !usedTemplates[tmpl] {
						usedTemplates[tmpl] = true
						usedOrder = append(usedOrder, tmpl)
					}
				}
			}
			srcs, err := moduleSourceFiles(m)
			if err != nil {
				return nil, err
			}
			compiles = append(compiles, moduleCompile{binary: b, module: m, env: env, sources: srcs})
		}
	}

	for _, tmpl := range usedOrder {
		createEnv := prop.BuildCompileEnvironment(tmpl.Owner, tmpl.Owner.Binary)
		createEnv.PCHAction = environment.PCHActionCreate
		createEnv.PCHInclude = tmpl.Owner.Dir.Join(tmpl.Header)
		if _, err := tc.CompileCppFiles(createEnv, paths.Paths{createEnv.PCHInclude},
			interDir.Join(tmpl.Owner.Name), tmpl.Owner.Name+".SharedPCH", mf); err != nil {
			return nil, berr.New(berr.GraphError, "shared PCH %s: %v", tmpl.Header, err)
		}
	}

	objectsByBinary := make(map[*modulegraph.Binary]paths.Paths)
	for _, c := range compiles {
		if len(c.sources) == 0 {
			continue
		}
		out, err := tc.CompileCppFiles(c.env, c.sources, interDir.Join(c.module.Name), c.module.Name, mf)
		if err != nil {
			return nil, berr.New(berr.GraphError, "compiling module %s: %v", c.module.Name, err)
		}
		objectsByBinary[c.binary] = append(objectsByBinary[c.binary], out.ObjectFiles...)
	}

	if !tr.IsLinkingDisabled() {
		for _, b := range ordered {
			if b.Precompiled || b.Type == modulegraph.Object || b.Type == modulegraph.PrecompiledHeaderType {
				continue
			}
			env := prop.LinkClosure(b)
			env.InputObjectFiles = objectsByBinary[b]
			env.IntermediateDir = interDir
			env.OutputDir = outDir
			out, err := tc.LinkFiles(&env, b.CreateImportLibrarySeparately, mf)
			if err != nil {
				return nil, berr.New(berr.GraphError, "linking %s: %v", b.OutputFiles[0], err)
			}
			linkOutputs[b] = out
		}

		if launch.Binary != nil && len(launch.Binary.OutputFiles) > 0 {
			env := prop.LinkClosure(launch.Binary)
			env.OutputDir = outDir
			if _, err := tc.PostBuild(launch.Binary.OutputFiles[0], &env, mf); err != nil {
				return nil, berr.New(berr.GraphError, "post-build for %s: %v", launch.Binary.OutputFiles[0], err)
			}
		}
	}

	runtimeDeps, err := tc.PrepareRuntimeDependencies(nil, mf.ModuleOutputIndex, outDir)
	if err != nil {
		return nil, berr.New(berr.SDKError, "preparing runtime dependencies: %v", err)
	}
	for _, dep := range runtimeDeps {
		if !filepath.IsAbs(dep.Path) {
			continue
		}
		src := paths.New(dep.Path)
		if src.Dir().Equal(outDir) {
			continue
		}
		if err := actions.EmitCopy(mf, src, outDir.Join(src.Base())); err != nil {
			return nil, err
		}
	}

	return linkOutputs, d.emitPostBuildSteps(tr, ordered, mf, interDir)
}

// emitPostBuildSteps generates one shell script per post-build batch at
// a path fixed by the batch index, expands the path-variable vocabulary
// into it, and emits a PostBuildStep action depending on every binary
// output.
func (d *Driver) emitPostBuildSteps(tr rules.TargetRules, ordered []*modulegraph.Binary, mf *actions.Makefile, interDir paths.Path) error {
	if len(tr.PostBuildSteps) == 0 {
		return nil
	}
	var prereqs paths.Paths
	for _, b := range ordered {
		prereqs = append(prereqs, b.OutputFiles...)
	}
	for i, step := range tr.PostBuildSteps {
		expanded, err := d.cfg.Context.ExpandVariables(step)
		if err != nil {
			return berr.New(berr.ConfigurationError, "post-build step %d: %v", i, err)
		}
		script := interDir.Join(fmt.Sprintf("PostBuild-%d.sh", i))
		if err := writeScript(script, expanded); err != nil {
			return berr.New(berr.ConfigurationError, "writing post-build script %s: %v", script, err)
		}
		if err := actions.EmitPostBuildStep(mf, actions.PostBuildStepInput{
			BatchIndex:    i,
			ScriptPath:    script,
			Environment:   d.cfg.Context.Variables(),
			Prerequisites: prereqs,
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeScript(file paths.Path, body string) error {
	if err := os.MkdirAll(file.Dir().String(), 0o755); err != nil {
		return err
	}
	return os.WriteFile(file.String(), []byte("#!/bin/sh\n"+body+"\n"), 0o755)
}

// buildReceipt assembles the target receipt from the composed
// binaries, each binary's recorded link products, and the toolchain's
// SDK version.
func (d *Driver) buildReceipt(td rules.TargetDescriptor, ordered []*modulegraph.Binary, launch *modulegraph.Module, enabledPlugins []string, linkOutputs map[*modulegraph.Binary]toolchain.LinkOutput) receipt.TargetReceipt {
	rcpt := receipt.TargetReceipt{
		TargetName:    td.TargetName,
		Platform:      string(td.Platform),
		Configuration: string(td.Configuration),
		Architecture:  td.Architecture,
		Plugins:       enabledPlugins,
	}
	rcpt.Version.BuildId = buildID(td)

	if launch.Binary != nil && len(launch.Binary.OutputFiles) > 0 {
		rcpt.Launch = launch.Binary.OutputFiles[0].String()
	} else if len(ordered) > 0 && len(ordered[0].OutputFiles) > 0 {
		rcpt.Launch = ordered[0].OutputFiles[0].String()
	}

	for _, b := range ordered {
		typ := buildProductType(b.Type)
		for _, f := range b.OutputFiles {
			rcpt.BuildProducts = append(rcpt.BuildProducts, receipt.BuildProduct{Path: f.String(), Type: typ})
		}
		if out, ok := linkOutputs[b]; ok {
			if out.ImportLibrary.Valid() {
				rcpt.BuildProducts = append(rcpt.BuildProducts, receipt.BuildProduct{Path: out.ImportLibrary.String(), Type: receipt.ProductBuildResource})
			}
			if out.MapFile.Valid() {
				rcpt.BuildProducts = append(rcpt.BuildProducts, receipt.BuildProduct{Path: out.MapFile.String(), Type: receipt.ProductMapFile})
			}
			if out.SymbolFile.Valid() {
				rcpt.BuildProducts = append(rcpt.BuildProducts, receipt.BuildProduct{Path: out.SymbolFile.String(), Type: receipt.ProductSymbolFile})
			}
		}
		if b.Type == modulegraph.DynamicLinkLibrary {
			for _, f := range b.OutputFiles {
				rcpt.RuntimeDependencies = append(rcpt.RuntimeDependencies, receipt.RuntimeDependency{
					Path: f.String(), Type: receipt.RuntimeDependencyModule,
				})
			}
		}
	}

	if tc := d.cfg.ToolChain; tc != nil {
		if v := tc.GetSdkVersion(); v != "" {
			rcpt.AdditionalProperties = append(rcpt.AdditionalProperties, receipt.AdditionalProperty{Name: "SDK", Value: v})
		}
	}
	return rcpt
}

// compileSettings derives the PCH-governing subset of the compile
// configuration from the target rules and configuration.
func compileSettings(td rules.TargetDescriptor, tr rules.TargetRules) pch.CompileSettings {
	opt := "Speed"
	if td.Configuration == rules.Debug {
		opt = "None"
	}
	return pch.CompileSettings{
		CppStandard:       "Cpp17",
		RTTI:              tr.IsRTTIEnabled(),
		Exceptions:        tr.AreExceptionsEnabled(),
		OptimizationClass: opt,
	}
}

// moduleSourceFiles globs the translation units under a module's
// directory. A module with no directory (External, or rules loaded from
// a flat tree) contributes no sources.
func moduleSourceFiles(m *modulegraph.Module) (paths.Paths, error) {
	if !m.Dir.Valid() {
		return nil, nil
	}
	var out paths.Paths
	for _, pattern := range []string{"Private/**/*.cpp", "Public/**/*.cpp", "*.cpp"} {
		matches, err := paths.Glob(m.Dir, pattern, nil)
		if err != nil {
			return nil, berr.New(berr.DependencyError, "globbing sources for %s: %v", m.Name, err)
		}
		out = paths.UniqueAppend(out, matches...)
	}
	return out, nil
}

// binaryDependencies returns the binaries b's modules link against, the
// edge set SortBinariesLeavesFirst orders by.
func binaryDependencies(b *modulegraph.Binary) []*modulegraph.Binary {
	seen := make(map[*modulegraph.Binary]bool)
	var deps []*modulegraph.Binary
	for _, m := range b.Modules {
		for _, dep := range append(append([]*modulegraph.Module(nil), m.PublicDeps...), m.PrivateDeps...) {
			if dep.Binary != nil && dep.Binary != b && !seen[dep.Binary] {
				seen[dep.Binary] = true
				deps = append(deps, dep.Binary)
			}
		}
	}
	return deps
}

// bindPathVariables publishes the expansion vocabulary for this
// invocation into the context, so post-build scripts and additional
// arguments can reference $(EngineDir)-style names.
func (d *Driver) bindPathVariables(td rules.TargetDescriptor, outDir paths.Path) {
	ctx := d.cfg.Context
	ctx.SetPathVariable("EngineDir", d.cfg.EngineDir)
	ctx.SetPathVariable("ProjectDir", d.cfg.ProjectDir)
	ctx.SetPathVariable("TargetOutputDir", outDir)
	ctx.SetVariable("TargetName", td.TargetName)
	ctx.SetVariable("TargetPlatform", string(td.Platform))
	ctx.SetVariable("TargetConfiguration", string(td.Configuration))
}

// intermediateDir computes the per-configuration intermediate
// directory, Intermediate/Build/<Platform>/<Name>/<Config>.
func (d *Driver) intermediateDir(td rules.TargetDescriptor) paths.Path {
	return d.cfg.ProjectDir.Join("Intermediate", "Build", string(td.Platform), td.TargetName, string(td.Configuration))
}

// outputDir computes the Binaries/<Platform> output directory.
func (d *Driver) outputDir(td rules.TargetDescriptor) paths.Path {
	return d.cfg.ProjectDir.Join("Binaries", string(td.Platform))
}

// selfCommand is the command path used by actions that re-invoke the
// build tool itself in a sub-mode (metadata writes, the single-file
// override with no concrete ToolChain wired in).
func selfCommand() paths.Path {
	if exe, err := os.Executable(); err == nil {
		return paths.New(exe)
	}
	return paths.Invalid
}

// buildID derives a deterministic build identity from the target
// descriptor rather than wall-clock time, so two builds with identical
// inputs still produce byte-identical receipts and manifests.
func buildID(td rules.TargetDescriptor) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", td.TargetName, td.Platform, td.Configuration, td.Architecture)
	return fmt.Sprintf("%016x", h.Sum64())
}

// buildProductType maps a Binary's type onto the receipt's
// BuildProductType enumeration.
func buildProductType(t modulegraph.BinaryType) receipt.BuildProductType {
	switch t {
	case modulegraph.Executable:
		return receipt.ProductExecutable
	case modulegraph.DynamicLinkLibrary:
		return receipt.ProductDynamicLibrary
	case modulegraph.StaticLibrary:
		return receipt.ProductStaticLibrary
	default:
		return receipt.ProductBuildResource
	}
}

// buildModuleManifest builds the per-output-directory module manifest:
// one entry per module bound into a DynamicLinkLibrary binary. It
// returns nil when the target produced no DLLs (e.g. a Monolithic
// build), which emits no manifest at all.
func buildModuleManifest(ordered []*modulegraph.Binary, buildID string) *receipt.ModuleManifest {
	modules := make(map[string]string)
	for _, b := range ordered {
		if b.Type != modulegraph.DynamicLinkLibrary || len(b.OutputFiles) == 0 {
			continue
		}
		for _, m := range b.Modules {
			modules[m.Name] = b.OutputFiles[0].Base()
		}
	}
	if len(modules) == 0 {
		return nil
	}
	return &receipt.ModuleManifest{BuildId: buildID, Modules: modules}
}

// dependencyList returns the rules file backing every module reachable
// from this target's graph, sorted, one dependency-list entry per
// module.
func dependencyList(assembly *rulesassembly.RulesAssembly, all map[string]*modulegraph.Module) paths.Paths {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	var deps paths.Paths
	for _, name := range names {
		if f := assembly.GetModuleFile(name); f.Valid() {
			deps = append(deps, f)
		}
	}
	return deps
}

// externalModuleFiles returns the rules files of External-type modules,
// the makefile's external-dependencies set.
func externalModuleFiles(assembly *rulesassembly.RulesAssembly, all map[string]*modulegraph.Module) paths.Paths {
	names := make([]string, 0, len(all))
	for name, m := range all {
		if m.Type == rules.External {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	var out paths.Paths
	for _, name := range names {
		if f := assembly.GetModuleFile(name); f.Valid() {
			out = append(out, f)
		}
	}
	return out
}

func collectAllModules(launch *modulegraph.Module, extra []*modulegraph.Module, pluginModules map[string][]*modulegraph.Module) map[string]*modulegraph.Module {
	all := make(map[string]*modulegraph.Module)
	var walk func(m *modulegraph.Module)
	walk = func(m *modulegraph.Module) {
		if m == nil {
			return
		}
		if _, ok := all[m.Name]; ok {
			return
		}
		all[m.Name] = m
		for _, dep := range m.PublicDeps {
			walk(dep)
		}
		for _, dep := range m.PrivateDeps {
			walk(dep)
		}
		for _, dep := range m.DynamicallyLoaded {
			walk(dep)
		}
	}
	walk(launch)
	for _, m := range extra {
		walk(m)
	}
	for _, mods := range pluginModules {
		for _, m := range mods {
			walk(m)
		}
	}
	return all
}

func pluginNameFromPath(p paths.Path) string {
	if !p.Valid() {
		return ""
	}
	name := p.Base()
	const suffix = ".uplugin"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}

func pluginDescriptorPaths(a *rulesassembly.RulesAssembly, enabled []string) paths.Paths {
	enabledSet := make(map[string]bool, len(enabled))
	for _, n := range enabled {
		enabledSet[n] = true
	}
	var out paths.Paths
	for _, p := range a.EnumeratePlugins() {
		if enabledSet[p.Name] {
			out = append(out, p.DescriptorFile)
		}
	}
	return out
}

func hotReloadModuleNames(td rules.TargetDescriptor) []string {
	names := make([]string, 0, len(td.HotReloadSuffixes))
	for name := range td.HotReloadSuffixes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
