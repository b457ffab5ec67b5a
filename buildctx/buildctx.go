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

// Package buildctx holds the per-invocation BuildContext carrying every
// piece of state that would otherwise end up as a package-level
// singleton: the stat cache, the plugin registry, and the path-variable
// vocabulary. One context is created per driver run and threaded
// explicitly through the pipeline; tests create a fresh one per case.
package buildctx

import (
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/plugins"
)

// BuildContext is the explicit carrier for caches and the expansion
// vocabulary shared across one target build. It replaces the global
// process-wide state the pipeline would otherwise accumulate (platform
// SDK cache, path lookup caches, default resource directory).
type BuildContext struct {
	Stat           *paths.StatCache
	PluginRegistry *plugins.Registry

	vars map[string]string
}

// New returns a fresh context with an empty stat cache and expansion
// vocabulary. workers bounds the plugin registry's concurrent
// filesystem scans.
func New(workers int) *BuildContext {
	return &BuildContext{
		Stat:           paths.NewStatCache(),
		PluginRegistry: plugins.NewRegistry(workers),
		vars:           make(map[string]string),
	}
}

// SetPathVariable binds one name in the $(Name) expansion vocabulary
// ($(EngineDir), $(ProjectDir), $(EnterpriseDir), $(PluginDir),
// $(ModuleDir), $(BinaryOutputDir), $(TargetOutputDir)). An invalid
// path unbinds the name.
func (c *BuildContext) SetPathVariable(name string, p paths.Path) {
	if !p.Valid() {
		delete(c.vars, name)
		return
	}
	c.vars[name] = p.String()
}

// SetVariable binds a non-path name such as TargetName or Configuration.
func (c *BuildContext) SetVariable(name, value string) {
	c.vars[name] = value
}

// ExpandVariables substitutes $(Name) references in s against this
// context's vocabulary. Referencing an unbound name is an error.
func (c *BuildContext) ExpandVariables(s string) (string, error) {
	return paths.ExpandVariables(s, c.vars)
}

// Variables returns a copy of the current vocabulary, used to hand a
// post-build script its environment block without letting the script
// writer mutate the context.
func (c *BuildContext) Variables() map[string]string {
	out := make(map[string]string, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}
