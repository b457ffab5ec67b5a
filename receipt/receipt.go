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

// Package receipt writes the target receipt, module manifest, and
// build manifest JSON documents external tooling consumes.
//
// The json tags below are written field-for-field the way
// android/module_info_json.go's ModuleInfoJSON documents each field's
// on-disk name next to its Go name, rather than relying implicitly on
// Go's default field-name json behavior, since the consumers expect these
// exact names on disk.
package receipt

import (
	"bytes"
	"encoding/json"

	"github.com/klswkj/buildtarget/paths"
)

type BuildProductType string

const (
	ProductExecutable       BuildProductType = "Executable"
	ProductDynamicLibrary   BuildProductType = "DynamicLibrary"
	ProductStaticLibrary    BuildProductType = "StaticLibrary"
	ProductSymbolFile       BuildProductType = "SymbolFile"
	ProductRequiredResource BuildProductType = "RequiredResource"
	ProductMapFile          BuildProductType = "MapFile"
	ProductBuildResource    BuildProductType = "BuildResource"
)

type RuntimeDependencyType string

const (
	RuntimeDependencyModule RuntimeDependencyType = "Module"
	RuntimeDependencyFile   RuntimeDependencyType = "File"
)

// BuildVersion carries the build identity fields a receipt records
// under "Version".
type BuildVersion struct {
	MajorVersion         int    `json:"MajorVersion"`
	MinorVersion         int    `json:"MinorVersion"`
	PatchVersion         int    `json:"PatchVersion"`
	Changelist           int    `json:"Changelist"`
	CompatibleChangelist int    `json:"CompatibleChangelist"`
	IsLicenseeVersion    bool   `json:"IsLicenseeVersion"`
	IsPromotedBuild      bool   `json:"IsPromotedBuild"`
	BuildId              string `json:"BuildId"`
}

type BuildProduct struct {
	Path string           `json:"Path"`
	Type BuildProductType `json:"Type"`
}

type RuntimeDependency struct {
	Path string                `json:"Path"`
	Type RuntimeDependencyType `json:"Type"`
}

type AdditionalProperty struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// TargetReceipt is the `<Name>-<Platform>-<Config>.target` document.
type TargetReceipt struct {
	TargetName    string `json:"TargetName"`
	Platform      string `json:"Platform"`
	Configuration string `json:"Configuration"`
	Architecture  string `json:"Architecture"`

	Version BuildVersion `json:"Version"`

	Launch               string               `json:"Launch"`
	BuildProducts        []BuildProduct       `json:"BuildProducts"`
	RuntimeDependencies  []RuntimeDependency  `json:"RuntimeDependencies"`
	AdditionalProperties []AdditionalProperty `json:"AdditionalProperties"`
	Plugins              []string             `json:"Plugins"`
}

// ModuleManifest is the per-output-directory module manifest that
// maps module names to their DLL file names for runtime loading.
type ModuleManifest struct {
	BuildId string            `json:"BuildId"`
	Modules map[string]string `json:"Modules"`
}

// BuildManifestEntry is one build product or deploy-target file listed
// in the flat build manifest external packagers consume.
type BuildManifestEntry struct {
	Path           string `json:"Path"`
	IsDeployTarget bool   `json:"IsDeployTarget"`
}

type BuildManifest struct {
	Entries []BuildManifestEntry `json:"Entries"`
}

// marshalDeterministic encodes v with two-space indentation and no HTML
// escaping, the minimum needed for regenerating a manifest with
// identical logical content to produce byte-identical output — map key
// order is already deterministic
// because encoding/json sorts map[string]T keys, and slice/struct field
// order follows the struct declaration, so the only non-determinism
// risk is HTML-escaping of characters like "&" flipping between runs,
// which SetEscapeHTML(false) removes.
func marshalDeterministic(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// WriteTargetReceipt serializes r to file, deterministically.
func WriteTargetReceipt(file paths.Path, r TargetReceipt) error {
	data, err := marshalDeterministic(r)
	if err != nil {
		return err
	}
	return writeFile(file, data)
}

func WriteModuleManifest(file paths.Path, m ModuleManifest) error {
	data, err := marshalDeterministic(m)
	if err != nil {
		return err
	}
	return writeFile(file, data)
}

func WriteBuildManifest(file paths.Path, m BuildManifest) error {
	data, err := marshalDeterministic(m)
	if err != nil {
		return err
	}
	return writeFile(file, data)
}

// WriteDependencyList writes the plain-text dependency-list format:
// one project-root-relative, POSIX-separated path per line, sorted.
func WriteDependencyList(file paths.Path, root paths.Path, deps paths.Paths) error {
	sorted := deps.Sorted()
	var buf bytes.Buffer
	for _, p := range sorted {
		rel := relativeToRoot(root, p)
		buf.WriteString(rel)
		buf.WriteByte('\n')
	}
	return writeFile(file, buf.Bytes())
}

func relativeToRoot(root, p paths.Path) string {
	if rel, ok := p.RelativeToPosix(root); ok {
		return rel
	}
	return p.ToPosix()
}
