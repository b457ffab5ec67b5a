// Copyright 2020 Google Inc. All rights reserved.
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

// Package depset provides the transitive-closure primitive the
// environment propagator uses to compute PublicCompileClosure,
// PrivateCompileClosure and LinkClosure without repeatedly copying
// dependency data.
//
// It is designed to be conceptually compatible with Bazel's depsets, the
// same model android/depset_generic.go implements with reflection because
// it predates generics in Go ("This object uses reflection to remain
// agnostic to the type it contains. It should be replaced with generics
// once those exist in Go."). This package is that replacement: a
// type-safe DepSet[T comparable] with the same PREORDER/POSTORDER/
// TOPOLOGICAL semantics and the same immutable-DAG-of-nodes
// representation, so two builds over the same direct/transitive
// structure produce byte-identical ToList() output.
package depset

// Order selects the traversal a DepSet flattens with.
type Order int

const (
	PREORDER Order = iota
	POSTORDER
	TOPOLOGICAL
)

func (o Order) String() string {
	switch o {
	case PREORDER:
		return "PREORDER"
	case POSTORDER:
		return "POSTORDER"
	case TOPOLOGICAL:
		return "TOPOLOGICAL"
	default:
		panic("depset: invalid Order")
	}
}

// DepSet efficiently stores values from transitive dependencies without
// copying. It is stored as a DAG of DepSet nodes, each of which has some
// direct contents and a list of dependency DepSet nodes. A DepSet is
// immutable once created.
type DepSet[T comparable] struct {
	preorder   bool
	reverse    bool
	order      Order
	direct     []T
	transitive []*DepSet[T]
}

// New returns an immutable DepSet with the given order, direct and
// transitive contents.
func New[T comparable](order Order, direct []T, transitive []*DepSet[T]) *DepSet[T] {
	for _, t := range transitive {
		if t.order != order {
			panic("depset: incompatible order between DepSet and transitive DepSet")
		}
	}

	var directCopy []T
	var transitiveCopy []*DepSet[T]
	if order == TOPOLOGICAL {
		directCopy = reversed(direct)
		transitiveCopy = reversedSets(transitive)
	} else {
		directCopy = append([]T(nil), direct...)
		transitiveCopy = append([]*DepSet[T](nil), transitive...)
	}

	return &DepSet[T]{
		preorder:   order == PREORDER,
		reverse:    order == TOPOLOGICAL,
		order:      order,
		direct:     directCopy,
		transitive: transitiveCopy,
	}
}

// Builder incrementally constructs an immutable DepSet.
type Builder[T comparable] struct {
	order      Order
	direct     []T
	transitive []*DepSet[T]
}

func NewBuilder[T comparable](order Order) *Builder[T] {
	return &Builder[T]{order: order}
}

// Direct appends direct contents; newly added contents sit to the right
// of any already present.
func (b *Builder[T]) Direct(direct ...T) *Builder[T] {
	b.direct = append(b.direct, direct...)
	return b
}

// Transitive appends dependency DepSets; newly added sets sit to the
// right of any already present.
func (b *Builder[T]) Transitive(transitive ...*DepSet[T]) *Builder[T] {
	b.transitive = append(b.transitive, transitive...)
	return b
}

func (b *Builder[T]) Build() *DepSet[T] {
	return New(b.order, b.direct, b.transitive)
}

func (d *DepSet[T]) walk(visit func([]T)) {
	if d == nil {
		return
	}
	visited := make(map[*DepSet[T]]bool)

	var dfs func(*DepSet[T])
	dfs = func(n *DepSet[T]) {
		visited[n] = true
		if n.preorder {
			visit(n.direct)
		}
		for _, dep := range n.transitive {
			if !visited[dep] {
				dfs(dep)
			}
		}
		if !n.preorder {
			visit(n.direct)
		}
	}
	dfs(d)
}

// ToList flattens the DepSet according to its order, deduplicating by
// first occurrence (matching android/depset_generic.go's firstUnique
// semantics) and reversing for TOPOLOGICAL order so dependents precede
// their dependencies' duplicated tail.
func (d *DepSet[T]) ToList() []T {
	if d == nil {
		return nil
	}
	var flat []T
	d.walk(func(xs []T) {
		flat = append(flat, xs...)
	})
	flat = firstUnique(flat)
	if d.reverse {
		reverseInPlace(flat)
	}
	return flat
}

func firstUnique[T comparable](in []T) []T {
	seen := make(map[T]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func reverseInPlace[T any](in []T) {
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
}

func reversed[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func reversedSets[T comparable](in []*DepSet[T]) []*DepSet[T] {
	out := make([]*DepSet[T], len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
