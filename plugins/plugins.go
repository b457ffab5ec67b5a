// Copyright 2021 Google Inc. All rights reserved.
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

// Package plugins scans the well-known plugin roots, merges
// platform-extension child descriptors into their parents, and resolves
// which plugins are enabled for one target.
//
// Scanning a directory tree for *.uplugin descriptors is dominated by
// blocking stat/readdir syscalls, exactly the situation bp2build's
// symlink_forest.go calls out when it hands syscalls to a small worker
// pool rather than letting Go spawn an OS thread per blocked goroutine.
// Registry.scanRoot reuses that pool-of-workers-over-a-channel shape.
package plugins

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klswkj/buildtarget/berr"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/rules"
)

// Registry caches scanned plugin descriptors by root directory, so
// passing the same root twice never re-walks the filesystem.
type Registry struct {
	workers int

	mu    sync.Mutex
	cache map[string][]rules.PluginInfo
}

// NewRegistry constructs a Registry whose directory scans use up to
// workers concurrent filesystem-stat goroutines.
func NewRegistry(workers int) *Registry {
	if workers < 1 {
		workers = 1
	}
	return &Registry{workers: workers, cache: make(map[string][]rules.PluginInfo)}
}

// scanJob is one candidate .uplugin file discovered by the directory
// walk, handed off to a worker for parsing.
type scanJob struct {
	path paths.Path
	typ  rules.PluginReferenceType
}

type scanResult struct {
	info rules.PluginInfo
	err  error
}

// ScanRoots scans each (root, type) pair, merges child platform-extension
// descriptors into their parents, and returns the flattened set of
// top-level plugins found across all roots. Results for a given root are
// cached; passing the same root twice does not re-walk the filesystem.
func (r *Registry) ScanRoots(roots []RootSpec) ([]rules.PluginInfo, error) {
	var all []rules.PluginInfo
	for _, root := range roots {
		found, err := r.scanRoot(root)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return mergeChildPlugins(all)
}

// RootSpec pairs a directory to scan with the PluginReferenceType its
// discoveries should be tagged with.
type RootSpec struct {
	Dir paths.Path
	Typ rules.PluginReferenceType
}

func (r *Registry) scanRoot(root RootSpec) ([]rules.PluginInfo, error) {
	key := root.Dir.String()
	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	if !root.Dir.Valid() {
		return nil, nil
	}
	if info, err := os.Stat(root.Dir.String()); err != nil || !info.IsDir() {
		return nil, nil
	}

	var jobs []scanJob
	err := filepath.WalkDir(root.Dir.String(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".uplugin") {
			jobs = append(jobs, scanJob{path: paths.New(path), typ: root.Typ})
		}
		return nil
	})
	if err != nil {
		return nil, berr.New(berr.RulesError, "scanning plugin root %s: %v", root.Dir, err)
	}

	results := r.parseAll(jobs)
	var out []rules.PluginInfo
	for _, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		out = append(out, res.info)
	}

	r.mu.Lock()
	r.cache[key] = out
	r.mu.Unlock()
	return out, nil
}

// parseAll distributes jobs across r.workers goroutines reading and
// json-decoding .uplugin files concurrently, then returns results in the
// same order jobs was given so merge logic stays deterministic.
func (r *Registry) parseAll(jobs []scanJob) []scanResult {
	results := make([]scanResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workCh := make(chan int)
	var wg sync.WaitGroup
	workers := r.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				info, err := parsePluginFile(jobs[i].path, jobs[i].typ)
				results[i] = scanResult{info: info, err: err}
			}
		}()
	}
	for i := range jobs {
		workCh <- i
	}
	close(workCh)
	wg.Wait()
	return results
}

func parsePluginFile(file paths.Path, typ rules.PluginReferenceType) (rules.PluginInfo, error) {
	raw, err := os.ReadFile(file.String())
	if err != nil {
		return rules.PluginInfo{}, berr.New(berr.RulesError, "reading %s: %v", file, err)
	}
	var desc rules.PluginDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return rules.PluginInfo{}, berr.New(berr.RulesError, "RulesEvaluationError: %s: %v", file, err)
	}
	base := strings.TrimSuffix(file.Base(), ".uplugin")
	name, suffix, isExtension := splitPluginExtension(base)
	desc.IsPluginExtension = isExtension
	desc.ExtensionSuffix = suffix
	if name == "" {
		name = base
	}
	return rules.PluginInfo{
		Name:           name,
		RootDir:        file.Dir(),
		DescriptorFile: file,
		Descriptor:     desc,
		Type:           typ,
	}, nil
}

// knownPlatformGroupsAndPlatforms is the set of suffixes a child
// "Parent_Suffix.uplugin" may legally carry. It is intentionally
// small: concrete platform enumeration belongs to the toolchain
// adapter, so plugins only recognizes the generic grouping names every
// platform family shares.
var knownPlatformGroupsAndPlatforms = map[string]bool{
	"Windows": true, "Linux": true, "Mac": true, "Desktop": true,
	"Android": true, "IOS": true, "Mobile": true, "Unix": true,
}

// splitPluginExtension splits "Parent_Suffix" into ("Parent", "Suffix",
// true) when Suffix is a recognized platform group/platform, otherwise
// returns ("", "", false) meaning this file is not a child extension.
func splitPluginExtension(base string) (parent, suffix string, isExtension bool) {
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return "", "", false
	}
	candidate := base[idx+1:]
	if !knownPlatformGroupsAndPlatforms[candidate] {
		return "", "", false
	}
	return base[:idx], candidate, true
}

// mergeChildPlugins folds each discovered child-extension descriptor
// into its parent and drops the child from the top-level result.
func mergeChildPlugins(found []rules.PluginInfo) ([]rules.PluginInfo, error) {
	parents := make(map[string]*rules.PluginInfo)
	var order []string
	var children []rules.PluginInfo

	for _, p := range found {
		if p.Descriptor.IsPluginExtension {
			children = append(children, p)
			continue
		}
		if _, ok := parents[p.Name]; !ok {
			order = append(order, p.Name)
		}
		cp := p
		parents[p.Name] = &cp
	}

	for _, child := range children {
		parent, ok := parents[child.Name]
		if !ok {
			// No matching parent: the child extension is meaningless on
			// its own and is dropped silently, with no warning.
			continue
		}
		mergeOne(parent, child)
	}

	out := make([]rules.PluginInfo, 0, len(order))
	for _, name := range order {
		out = append(out, *parents[name])
	}
	return out, nil
}

// mergeOne applies one child descriptor's contributions onto parent:
// supported-target-platforms union; modules union by (name,type) key,
// with the child overriding the platform whitelist/blacklist; plugin
// references union by name.
func mergeOne(parent *rules.PluginInfo, child rules.PluginInfo) {
	parent.ChildFiles = append(parent.ChildFiles, child.DescriptorFile)

	parent.Descriptor.SupportedTargetPlatforms = unionPlatforms(
		parent.Descriptor.SupportedTargetPlatforms, child.Descriptor.SupportedTargetPlatforms)

	modIdx := make(map[moduleKey]int, len(parent.Descriptor.Modules))
	for i, m := range parent.Descriptor.Modules {
		modIdx[moduleKey{m.Name, m.Type}] = i
	}
	for _, cm := range child.Descriptor.Modules {
		key := moduleKey{cm.Name, cm.Type}
		if i, ok := modIdx[key]; ok {
			parent.Descriptor.Modules[i].WhitelistPlatforms = cm.WhitelistPlatforms
			parent.Descriptor.Modules[i].BlacklistPlatforms = cm.BlacklistPlatforms
		} else {
			modIdx[key] = len(parent.Descriptor.Modules)
			parent.Descriptor.Modules = append(parent.Descriptor.Modules, cm)
		}
	}

	refIdx := make(map[string]int, len(parent.Descriptor.PluginReferences))
	for i, ref := range parent.Descriptor.PluginReferences {
		refIdx[ref.Name] = i
	}
	for _, cref := range child.Descriptor.PluginReferences {
		if i, ok := refIdx[cref.Name]; ok {
			parent.Descriptor.PluginReferences[i] = cref
		} else {
			refIdx[cref.Name] = len(parent.Descriptor.PluginReferences)
			parent.Descriptor.PluginReferences = append(parent.Descriptor.PluginReferences, cref)
		}
	}
}

type moduleKey struct {
	name string
	typ  rules.ModuleType
}

func unionPlatforms(a, b []rules.Platform) []rules.Platform {
	seen := make(map[rules.Platform]bool, len(a))
	out := append([]rules.Platform(nil), a...)
	for _, p := range a {
		seen[p] = true
	}
	for _, p := range b {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// EnablementInput carries everything ResolveEnabled needs to compute the
// enabled-plugin set for one target.
type EnablementInput struct {
	IsForeignPlugin               bool
	ForeignPluginName             string
	TargetRules                   rules.TargetRules
	Project                       *rules.ProjectDescriptor
	EngineDefaultExtraForPrograms []string
}

// ResolveEnabled combines, in order of decreasing precedence: the
// foreign-plugin flag, explicit target EnablePlugins/DisablePlugins, the
// project descriptor's plugin references, engine defaults (gated by the
// project's "disable engine plugins by default" bit), and — for Program
// targets only — an engine-config array naming extra plugins.
func ResolveEnabled(all []rules.PluginInfo, in EnablementInput) []string {
	byName := make(map[string]rules.PluginInfo, len(all))
	for _, p := range all {
		byName[p.Name] = p
	}

	enabled := make(map[string]bool)
	var order []string
	add := func(name string) {
		if !enabled[name] {
			enabled[name] = true
			order = append(order, name)
		}
	}
	remove := func(name string) {
		if enabled[name] {
			delete(enabled, name)
			for i, n := range order {
				if n == name {
					order = append(order[:i], order[i+1:]...)
					break
				}
			}
		}
	}

	// Engine defaults are applied first so every later tier can override
	// them.
	if in.Project == nil || !in.Project.DisableEnginePluginsByDefault {
		for _, p := range all {
			if p.Type == rules.EnginePlugin && p.Descriptor.IsEnabledByDefault {
				add(p.Name)
			}
		}
	}

	if in.TargetRules.Type == rules.Program {
		for _, name := range in.EngineDefaultExtraForPrograms {
			add(name)
		}
	}

	if in.Project != nil {
		for _, ref := range in.Project.Plugins {
			if ref.Enabled {
				add(ref.Name)
			} else {
				remove(ref.Name)
			}
		}
	}

	for _, name := range in.TargetRules.EnablePlugins {
		add(name)
	}
	for _, name := range in.TargetRules.DisablePlugins {
		remove(name)
	}

	if in.IsForeignPlugin {
		add(in.ForeignPluginName)
	}

	return order
}
