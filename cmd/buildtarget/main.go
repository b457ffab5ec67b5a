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

// Command buildtarget drives one target build from a rules tree on disk.
// It is a thin demonstration entry point, not a general-purpose CLI: mode
// dispatch, response-file handling, and SDK/toolchain selection are left to
// a concrete integration, the way soong_build itself is one of several
// entry points soong_ui chooses between rather than a single do-everything
// binary.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/klswkj/buildtarget/binaries"
	"github.com/klswkj/buildtarget/buildctx"
	"github.com/klswkj/buildtarget/buildtarget"
	"github.com/klswkj/buildtarget/diag"
	"github.com/klswkj/buildtarget/paths"
	"github.com/klswkj/buildtarget/plugins"
	"github.com/klswkj/buildtarget/rules"
)

var (
	rulesRoot  = flag.String("rules_root", "", "directory to scan for *.rules.json and *.target.json files")
	projectDir = flag.String("project", "", "project directory; its .uproject file and Plugins/ subdirectory are searched if set")
	engineDir  = flag.String("engine", "", "engine directory; its Plugins/ subdirectory is searched for engine plugins")

	targetName    = flag.String("target", "", "target name to build, matching a <target>.target.json file")
	platform      = flag.String("platform", "Win64", "target platform")
	configuration = flag.String("configuration", "Development", "target configuration")
	architecture  = flag.String("architecture", "", "target architecture suffix")
	verbose       = flag.Bool("verbose", false, "log per-stage progress")
)

func main() {
	flag.Parse()
	if *rulesRoot == "" || *targetName == "" {
		log.Fatal("-rules_root and -target are required")
	}

	ctx := buildctx.New(4)
	registry := ctx.PluginRegistry
	var pluginRoots []plugins.RootSpec
	if *engineDir != "" {
		pluginRoots = append(pluginRoots, plugins.RootSpec{
			Dir: paths.New(*engineDir).Join("Plugins"),
			Typ: rules.EnginePlugin,
		})
	}
	if *projectDir != "" {
		pluginRoots = append(pluginRoots, plugins.RootSpec{
			Dir: paths.New(*projectDir).Join("Plugins"),
			Typ: rules.ProjectPlugin,
		})
	}

	cfg := buildtarget.Config{
		RulesRoot:        paths.New(*rulesRoot),
		EngineDir:        pathOrInvalid(*engineDir),
		ProjectDir:       pathOrInvalid(*projectDir),
		PluginRegistry:   registry,
		PluginRoots:      pluginRoots,
		OutputPathPolicy: binaries.OutputPathPolicy{},
		Context:          ctx,
		Logger:           diag.New(log.New(os.Stderr, "buildtarget: ", 0), *verbose),
	}
	d := buildtarget.NewDriver(cfg)

	td := rules.TargetDescriptor{
		TargetName:    *targetName,
		Platform:      rules.Platform(*platform),
		Configuration: rules.Configuration(*configuration),
		Architecture:  *architecture,
	}
	if *projectDir != "" {
		td.ProjectFile = paths.New(*projectDir).Join(*targetName + ".uproject")
	}

	if _, err := d.Build(td); err != nil {
		log.Fatalf("build failed: %v", err)
	}
}

func pathOrInvalid(s string) paths.Path {
	if s == "" {
		return paths.Invalid
	}
	return paths.New(s)
}
