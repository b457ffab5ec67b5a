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

// Package binaries decides which modules link into which output
// binary, and assigns each binary its output path
package binaries

import (
	"fmt"
	"sort"

	"github.com/klswkj/buildtarget/modulegraph"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/rules"
)

// OutputPathPolicy computes a binary's output path as a pure function of
// (projectOrEngineDir, name, platform, configuration, architecture,
// undecoratedConfiguration, type).
type OutputPathPolicy struct {
	Extension func(rules.Platform, modulegraph.BinaryType) string
}

// Path implements the policy: the configuration suffix is omitted iff
// configuration == undecoratedConfiguration.
func (p OutputPathPolicy) Path(root paths.Path, name string, platform rules.Platform, configuration, undecoratedConfiguration rules.Configuration, architecture string, typ modulegraph.BinaryType) paths.Path {
	ext := ""
	if p.Extension != nil {
		ext = p.Extension(platform, typ)
	}
	fileName := name
	if configuration != undecoratedConfiguration {
		fileName = fmt.Sprintf("%s-%s-%s", name, platform, configuration)
	}
	if architecture != "" {
		fileName = fileName + "-" + architecture
	}
	return root.Join("Binaries", string(platform), fileName+ext)
}

// Compose produces, from the launch module, the set of enabled
// plugins' runtime modules, and the extra module names, the ordered
// list of Binary instances with every transitively referenced module
// bound to exactly one. hotReloadSuffixes decorates a modular DLL's
// output file name (module "Foo" with suffix "-42" is output as
// "Foo-42"); it is ignored for Monolithic targets, which never produce
// a separate DLL per module.
func Compose(linkType rules.LinkType, launch *modulegraph.Module, pluginRuntimeModules map[string][]*modulegraph.Module, extra []*modulegraph.Module, policy OutputPathPolicy, root paths.Path, platform rules.Platform, configuration, undecorated rules.Configuration, architecture string, hotReloadSuffixes map[string]string) []*modulegraph.Binary {
	if linkType == rules.Monolithic {
		return composeMonolithic(launch, pluginRuntimeModules, extra, policy, root, platform, configuration, undecorated, architecture)
	}
	return composeModular(launch, pluginRuntimeModules, extra, policy, root, platform, configuration, undecorated, architecture, hotReloadSuffixes)
}

// decoratedName applies a hot-reload suffix to name, if one was assigned.
func decoratedName(name string, hotReloadSuffixes map[string]string) string {
	if suffix, ok := hotReloadSuffixes[name]; ok {
		return name + suffix
	}
	return name
}

// transitiveModules walks the linkable dependency edges (public,
// private, dynamically-loaded — not include-path-only, which never
// links) from each root, returning every reached module in
// first-occurrence order.
func transitiveModules(roots []*modulegraph.Module) []*modulegraph.Module {
	seen := make(map[*modulegraph.Module]bool)
	var out []*modulegraph.Module
	var walk func(m *modulegraph.Module)
	walk = func(m *modulegraph.Module) {
		if m == nil || seen[m] {
			return
		}
		seen[m] = true
		out = append(out, m)
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
	for _, m := range roots {
		walk(m)
	}
	return out
}

// rootModules flattens launch, plugin runtime modules (sorted by plugin
// name for determinism) and extras into the ordered root set binary
// composition walks from.
func rootModules(launch *modulegraph.Module, pluginRuntimeModules map[string][]*modulegraph.Module, extra []*modulegraph.Module) []*modulegraph.Module {
	roots := []*modulegraph.Module{launch}
	pluginNames := make([]string, 0, len(pluginRuntimeModules))
	for name := range pluginRuntimeModules {
		pluginNames = append(pluginNames, name)
	}
	sort.Strings(pluginNames)
	for _, name := range pluginNames {
		roots = append(roots, pluginRuntimeModules[name]...)
	}
	return append(roots, extra...)
}

// composeMonolithic places the launch module and every module
// transitively referenced (including every plugin's modules and any
// extras) into a single executable; static libraries are linkable
// members, never separate outputs.
func composeMonolithic(launch *modulegraph.Module, pluginRuntimeModules map[string][]*modulegraph.Module, extra []*modulegraph.Module, policy OutputPathPolicy, root paths.Path, platform rules.Platform, configuration, undecorated rules.Configuration, architecture string) []*modulegraph.Binary {
	exe := &modulegraph.Binary{
		Type:          modulegraph.Executable,
		PrimaryModule: launch,
		AllowExports:  false,
	}
	for _, m := range transitiveModules(rootModules(launch, pluginRuntimeModules, extra)) {
		exe.Modules = append(exe.Modules, m)
		m.Binary = exe
	}

	exe.OutputFiles = paths.Paths{policy.Path(root, launch.Name, platform, configuration, undecorated, architecture, modulegraph.Executable)}
	return []*modulegraph.Binary{exe}
}

// composeModular places the launch module into an executable, each
// plugin's runtime modules into their own DLL, and every otherwise
// unbound extra module into its own DLL.
func composeModular(launch *modulegraph.Module, pluginRuntimeModules map[string][]*modulegraph.Module, extra []*modulegraph.Module, policy OutputPathPolicy, root paths.Path, platform rules.Platform, configuration, undecorated rules.Configuration, architecture string, hotReloadSuffixes map[string]string) []*modulegraph.Binary {
	var out []*modulegraph.Binary

	exe := &modulegraph.Binary{
		Type:          modulegraph.Executable,
		PrimaryModule: launch,
		Modules:       []*modulegraph.Module{launch},
	}
	launch.Binary = exe
	exe.OutputFiles = paths.Paths{policy.Path(root, launch.Name, platform, configuration, undecorated, architecture, modulegraph.Executable)}
	out = append(out, exe)

	pluginNames := make([]string, 0, len(pluginRuntimeModules))
	for name := range pluginRuntimeModules {
		pluginNames = append(pluginNames, name)
	}
	sort.Strings(pluginNames)
	for _, name := range pluginNames {
		mods := pluginRuntimeModules[name]
		if len(mods) == 0 {
			continue
		}
		dll := &modulegraph.Binary{
			Type:          modulegraph.DynamicLinkLibrary,
			PrimaryModule: mods[0],
			Modules:       mods,
			AllowExports:  true,
		}
		for _, m := range mods {
			m.Binary = dll
		}
		dll.OutputFiles = paths.Paths{policy.Path(root, decoratedName(name, hotReloadSuffixes), platform, configuration, undecorated, architecture, modulegraph.DynamicLinkLibrary)}
		out = append(out, dll)
	}

	// Extras and every otherwise-unbound transitively referenced module
	// each become their own DLL.
	for _, m := range transitiveModules(rootModules(launch, pluginRuntimeModules, extra)) {
		if m.Binary != nil {
			continue
		}
		dll := &modulegraph.Binary{
			Type:          modulegraph.DynamicLinkLibrary,
			PrimaryModule: m,
			Modules:       []*modulegraph.Module{m},
			AllowExports:  true,
		}
		m.Binary = dll
		dll.OutputFiles = paths.Paths{policy.Path(root, decoratedName(m.Name, hotReloadSuffixes), platform, configuration, undecorated, architecture, modulegraph.DynamicLinkLibrary)}
		out = append(out, dll)
	}

	return out
}

// MarkPrecompiled flags a binary that must not be rebuilt: no actions
// are generated for a precompiled binary's contents.
func MarkPrecompiled(b *modulegraph.Binary, precompiled bool) {
	b.Precompiled = precompiled
}
