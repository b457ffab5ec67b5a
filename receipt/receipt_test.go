package receipt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/klswkj/buildtarget/paths"
)

func TestWriteTargetReceiptIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	file := paths.New(filepath.Join(dir, "MyGame-Win64-Development.target"))
	r := TargetReceipt{
		TargetName: "MyGame",
		Platform:   "Win64",
		Launch:     "/Binaries/Win64/MyGame.exe",
		BuildProducts: []BuildProduct{
			{Path: "/Binaries/Win64/MyGame.exe", Type: ProductExecutable},
		},
		Plugins: []string{"Online"},
	}
	if err := WriteTargetReceipt(file, r); err != nil {
		t.Fatalf("WriteTargetReceipt: %v", err)
	}
	first, err := os.ReadFile(file.String())
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteTargetReceipt(file, r); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(file.String())
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("expected regenerating an unchanged receipt to produce byte-identical output")
	}
}

func TestWriteDependencyListSortedAndRelative(t *testing.T) {
	dir := t.TempDir()
	root := paths.New(dir)
	file := root.Join("deps.txt")
	deps := paths.Paths{root.Join("b.h"), root.Join("a.h")}
	if err := WriteDependencyList(file, root, deps); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(file.String())
	if err != nil {
		t.Fatal(err)
	}
	want := "a.h\nb.h\n"
	if string(data) != want {
		t.Errorf("WriteDependencyList content = %q, want %q", string(data), want)
	}
}

func TestModuleManifestRoundTripsModuleNames(t *testing.T) {
	dir := t.TempDir()
	file := paths.New(filepath.Join(dir, "Modules.manifest"))
	m := ModuleManifest{BuildId: "abc123", Modules: map[string]string{"Core": "Core.dll", "Engine": "Engine.dll"}}
	if err := WriteModuleManifest(file, m); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(file.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty manifest output")
	}
	var got ModuleManifest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("module manifest did not round-trip through JSON (-want +got):\n%s", diff)
	}
}

func TestTargetReceiptRoundTripsThroughJSON(t *testing.T) {
	dir := t.TempDir()
	file := paths.New(filepath.Join(dir, "MyGame-Win64-Shipping.target"))
	want := TargetReceipt{
		TargetName:    "MyGame",
		Platform:      "Win64",
		Configuration: "Shipping",
		Architecture:  "x64",
		Version:       BuildVersion{MajorVersion: 1, BuildId: "abc123"},
		Launch:        "/Binaries/Win64/MyGame.exe",
		BuildProducts: []BuildProduct{
			{Path: "/Binaries/Win64/MyGame.exe", Type: ProductExecutable},
			{Path: "/Binaries/Win64/MyGame.pdb", Type: ProductSymbolFile},
		},
		RuntimeDependencies: []RuntimeDependency{
			{Path: "/Binaries/Win64/lib.dll"},
		},
		AdditionalProperties: []AdditionalProperty{{Name: "SDKVersion", Value: "10.0"}},
		Plugins:              []string{"Online", "HTTP"},
	}
	if err := WriteTargetReceipt(file, want); err != nil {
		t.Fatalf("WriteTargetReceipt: %v", err)
	}

	data, err := os.ReadFile(file.String())
	if err != nil {
		t.Fatal(err)
	}
	var got TargetReceipt
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("receipt did not round-trip through JSON (-want +got):\n%s", diff)
	}
}
