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

// Package pch plans shared precompiled headers: it orders candidates by
// their public-closure reach and assigning each compiled module the
// deepest compatible shared PCH.
// Soong has no direct precedent for shared-PCH template selection — its
// cc package only ever builds one precompiled header per module
// (cc/library.go's pchProperties). The ordering step here is instead
// grounded on environment's DepSet-based closure (itself grounded on
// android/depset_generic.go): priority is "count of other candidates
// reachable in the public dependency closure", which is exactly a
// DepSet.ToList() length computed once per candidate and memoized the
// same way Propagator memoizes PublicCompileClosure.
package pch

import (
	"sort"

	"github.com/klswkj/buildtarget/berr"
	"github.com/klswkj/buildtarget/environment"
	"github.com/klswkj/buildtarget/modulegraph"
)

// CompileSettings is the subset of a CompileEnvironment's language
// configuration that must match for a module to share another's PCH
type CompileSettings struct {
	CppStandard       string
	RTTI              bool
	Exceptions        bool
	OptimizationClass string
	Sanitizers        []string
}

func (a CompileSettings) CompatibleWith(b CompileSettings) bool {
	if a.CppStandard != b.CppStandard || a.RTTI != b.RTTI || a.Exceptions != b.Exceptions || a.OptimizationClass != b.OptimizationClass {
		return false
	}
	if len(a.Sanitizers) != len(b.Sanitizers) {
		return false
	}
	for i := range a.Sanitizers {
		if a.Sanitizers[i] != b.Sanitizers[i] {
			return false
		}
	}
	return true
}

// PCHTemplate is one planned shared PCH: the module that owns its
// header, the priority order it was assigned, and the compile settings
// it was cloned from the global environment with.
type PCHTemplate struct {
	Owner    *modulegraph.Module
	Header   string
	Settings CompileSettings
	Priority int
}

// Candidate names one module eligible to be considered for shared-PCH
// duty and whether rules context (project policy, target type, …)
// permits it.
type Candidate struct {
	Module   *modulegraph.Module
	Header   string
	Settings CompileSettings
	Allowed  bool
}

// Plan orders the given candidates into PCHTemplate values. It fails
// with a RulesError if any candidate declaring a shared-PCH header is
// not Allowed, rather than silently demoting the module to no PCH.
func Plan(candidates []Candidate, prop *environment.Propagator) ([]*PCHTemplate, error) {
	for _, c := range candidates {
		if c.Header != "" && !c.Allowed {
			return nil, berr.New(berr.RulesError, "module %q declares a shared PCH header but its rules context forbids being used as a shared PCH", c.Module.Name)
		}
	}

	var eligible []Candidate
	for _, c := range candidates {
		if c.Header != "" && c.Allowed {
			eligible = append(eligible, c)
		}
	}

	reach := make(map[*modulegraph.Module]int, len(eligible))
	eligibleSet := make(map[*modulegraph.Module]bool, len(eligible))
	for _, c := range eligible {
		eligibleSet[c.Module] = true
	}
	for _, c := range eligible {
		closure := prop.PublicCompileClosure(c.Module).ToList()
		count := 0
		for _, n := range closure {
			if n != c.Module && eligibleSet[n] {
				count++
			}
		}
		reach[c.Module] = count
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ri, rj := reach[eligible[i].Module], reach[eligible[j].Module]
		if ri != rj {
			return ri > rj
		}
		return eligible[i].Module.Name < eligible[j].Module.Name
	})

	templates := make([]*PCHTemplate, 0, len(eligible))
	for i, c := range eligible {
		templates = append(templates, &PCHTemplate{
			Owner:    c.Module,
			Header:   c.Header,
			Settings: c.Settings,
			Priority: i,
		})
	}
	return templates, nil
}

// SelectForModule picks the first template in priority order whose owning module is in m's PublicCompileClosure
// and whose settings are compatible with settings; otherwise the caller
// falls through to explicit or no PCH.
func SelectForModule(templates []*PCHTemplate, m *modulegraph.Module, settings CompileSettings, prop *environment.Propagator) *PCHTemplate {
	closure := prop.PublicCompileClosure(m).ToList()
	inClosure := make(map[*modulegraph.Module]bool, len(closure))
	for _, n := range closure {
		inClosure[n] = true
	}
	for _, tmpl := range templates {
		if inClosure[tmpl.Owner] && tmpl.Settings.CompatibleWith(settings) {
			return tmpl
		}
	}
	return nil
}
