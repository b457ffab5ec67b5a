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

// Package paths provides a canonicalized, absolute,
// case-insensitive-comparable file/directory identity layer with an
// Exists/LastWriteTime cache. Everything downstream addresses the
// filesystem through these references so hashing, equality and change
// detection are deterministic.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/blueprint/pathtools"
)

// Path is an absolute, cleaned filesystem reference. It is comparable
// with ==; two Paths naming the same file compare equal (case-folded on
// platforms whose native filesystem is case-insensitive).
type Path struct {
	abs string
}

// Invalid is the zero Path. Constructing a Path from a relative string
// without a base is a logic error and panics rather than
// returning an error, matching blueprint's own treatment of malformed
// absolute-path invariants (e.g. android/paths.go's PathForSource panics
// on ".." escapes rather than threading an error through every caller).
var Invalid = Path{}

func (p Path) Valid() bool { return p.abs != "" }

// String returns the absolute, OS-native path.
func (p Path) String() string {
	return p.abs
}

// ToPosix returns the path with forward slashes, used for the
// dependency-list file format.
func (p Path) ToPosix() string {
	return filepath.ToSlash(p.abs)
}

func (p Path) Dir() Path {
	return Path{abs: filepath.Dir(p.abs)}
}

func (p Path) Base() string {
	return filepath.Base(p.abs)
}

// Join returns the Path for rel resolved against p, which must be a
// directory reference.
func (p Path) Join(rel ...string) Path {
	parts := append([]string{p.abs}, rel...)
	return Path{abs: filepath.Clean(filepath.Join(parts...))}
}

// key returns the comparison key for equality/maps: case-folded on
// platforms where the Go toolchain would be targeting a
// case-insensitive filesystem (Windows/macOS-default), else identity.
func (p Path) key() string {
	if caseInsensitiveHost() {
		return strings.ToLower(p.abs)
	}
	return p.abs
}

// Equal reports whether p and o name the same file, honoring
// case-insensitive comparison.
func (p Path) Equal(o Path) bool {
	return p.key() == o.key()
}

func caseInsensitiveHost() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// New constructs a Path from an absolute string. It panics if abs is not
// absolute — callers needing a relative-to-base join should use
// Base.Join instead.
func New(abs string) Path {
	if !filepath.IsAbs(abs) {
		panic(fmt.Errorf("paths: %q is not absolute; use Path.Join from a base directory", abs))
	}
	return Path{abs: filepath.Clean(abs)}
}

// RelativeToPosix returns p's path relative to root with forward
// slashes, for writing project-root-relative entries into the
// dependency-list file format. ok is false if p is not under
// root.
func (p Path) RelativeToPosix(root Path) (rel string, ok bool) {
	r, err := filepath.Rel(root.abs, p.abs)
	if err != nil || strings.HasPrefix(r, "..") {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// IsUnder reports whether p is inside (or equal to) root — used to
// reject runtime-dependency paths that would escape the root directory
// when written into a receipt.
func (p Path) IsUnder(root Path) bool {
	rel, err := filepath.Rel(root.abs, p.abs)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// Paths is an ordered list of Path, matching the first-occurrence-order,
// duplicates-removed convention used throughout the module graph.
type Paths []Path

func (ps Paths) Strings() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

func (ps Paths) Sorted() Paths {
	out := append(Paths(nil), ps...)
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}

// UniqueAppend appends src to dst preserving first-occurrence order
// and dropping duplicates, the ordering rule dependency edge lists
// follow everywhere.
func UniqueAppend(dst Paths, src ...Path) Paths {
	seen := make(map[string]bool, len(dst))
	for _, p := range dst {
		seen[p.key()] = true
	}
	for _, p := range src {
		if !seen[p.key()] {
			seen[p.key()] = true
			dst = append(dst, p)
		}
	}
	return dst
}

// statEntry is the cached stat result for one path.
type statEntry struct {
	exists  bool
	isDir   bool
	modTime time.Time
}

// StatCache memoizes Exists/LastWriteTime lookups so repeated
// existence checks over the same tree hit the filesystem once.
type StatCache struct {
	mu    sync.Mutex
	cache map[string]statEntry
}

func NewStatCache() *StatCache {
	return &StatCache{cache: make(map[string]statEntry)}
}

func (c *StatCache) stat(p Path) statEntry {
	c.mu.Lock()
	if e, ok := c.cache[p.key()]; ok {
		c.mu.Unlock()
		return e
	}
	c.mu.Unlock()

	info, err := os.Stat(p.abs)
	var e statEntry
	if err == nil {
		e = statEntry{exists: true, isDir: info.IsDir(), modTime: info.ModTime()}
	}

	c.mu.Lock()
	c.cache[p.key()] = e
	c.mu.Unlock()
	return e
}

// Exists reports whether p names an existing file or directory.
func (c *StatCache) Exists(p Path) bool {
	return c.stat(p).exists
}

// IsDir reports whether p names an existing directory.
func (c *StatCache) IsDir(p Path) bool {
	e := c.stat(p)
	return e.exists && e.isDir
}

// LastWriteTime returns the modification time recorded the first time p
// was stat'd through this cache. The zero time is returned if p does not
// exist.
func (c *StatCache) LastWriteTime(p Path) time.Time {
	return c.stat(p).modTime
}

// Invalidate drops any cached entry for p, used when a component writes
// a file it will need to re-stat within the same driver invocation.
func (c *StatCache) Invalidate(p Path) {
	c.mu.Lock()
	delete(c.cache, p.key())
	c.mu.Unlock()
}

// Glob expands a (possibly recursive, "**") glob pattern rooted at dir,
// honoring excludes, using blueprint's pathtools.Glob exactly as
// android/paths.go does for module source-file discovery, rather than a
// hand-rolled filepath.Walk matcher.
func Glob(dir Path, pattern string, excludes []string) (Paths, error) {
	full := filepath.Join(dir.abs, pattern)
	matches, _, err := pathtools.Glob(full, excludes, pathtools.FollowSymlinks)
	if err != nil {
		return nil, fmt.Errorf("paths: glob %q: %w", full, err)
	}
	out := make(Paths, len(matches))
	for i, m := range matches {
		out[i] = New(m)
	}
	return out, nil
}
