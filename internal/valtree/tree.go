// Package valtree condenses evaluated constants into memory-independent
// trees of scalars, and materializes such trees back into fresh
// allocations. Trees are structurally comparable, which is what makes
// them usable as type-level constant arguments.
package valtree

import (
	"fmt"
	"strings"

	"constvm/internal/mem"
)

// Kind distinguishes the two tree shapes.
type Kind uint8

const (
	// KindLeaf is a single scalar.
	KindLeaf Kind = iota
	// KindBranch is an ordered sequence of subtrees.
	KindBranch
)

// Tree is a constant in memory-independent form: a scalar leaf or a
// branch of subtrees. For enum values the first branch child is always
// the variant index; the reverse conversion depends on that encoding.
type Tree struct {
	Kind     Kind
	Leaf     mem.Scalar
	Children []Tree
}

// Leaf wraps a scalar as a leaf tree.
func Leaf(s mem.Scalar) Tree {
	return Tree{Kind: KindLeaf, Leaf: s}
}

// LeafBits builds a leaf from raw bits of the given byte width.
func LeafBits(bits uint64, size int) Tree {
	return Leaf(mem.NewBits(bits, size))
}

// Branch collects subtrees into a branch.
func Branch(children ...Tree) Tree {
	return Tree{Kind: KindBranch, Children: children}
}

// IsLeaf reports the leaf shape.
func (t Tree) IsLeaf() bool {
	return t.Kind == KindLeaf
}

// Equal compares two trees structurally. Leaves compare by scalar
// identity: same variant, same bits and width, or same pointer.
func Equal(a, b Tree) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindLeaf {
		return a.Leaf == b.Leaf
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

func (t Tree) String() string {
	if t.Kind == KindLeaf {
		return t.Leaf.String()
	}
	parts := make([]string, len(t.Children))
	for i, c := range t.Children {
		parts[i] = c.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, " "))
}
