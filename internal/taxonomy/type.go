// Package taxonomy resolves hierarchical map feature category paths
// (e.g. "amenity-restaurant") into compact type codes and answers
// subclass membership queries over a candidate's tag set.
package taxonomy

import (
	"fmt"
	"strings"
)

// Type is a packed category path. Each level index occupies 7 bits starting
// from the most significant end; the low 4 bits hold the depth.
type Type uint32

const (
	// MaxDepth is the deepest category path a Type can encode.
	MaxDepth = 4

	// MaxChildren is the maximum number of direct children of one category.
	MaxChildren = 127

	levelBits  = 7
	levelMask  = 1<<levelBits - 1
	depthBits  = 4
	depthMask  = 1<<depthBits - 1
	firstShift = 32 - levelBits
)

// PathSeparator joins path components in the textual form of a type.
const PathSeparator = "-"

// Depth returns how many path components the type encodes.
func (t Type) Depth() int {
	return int(t & depthMask)
}

// index returns the 1-based child index at the given 0-based level.
func (t Type) index(level int) uint32 {
	return uint32(t>>(firstShift-level*levelBits)) & levelMask
}

// withIndex returns a copy of t extended by one level with the given child index.
func (t Type) withIndex(idx uint32) Type {
	level := t.Depth()
	t &^= depthMask
	t |= Type(idx&levelMask) << (firstShift - level*levelBits)
	return t | Type(level+1)
}

// Truncate returns the ancestor of t at the given depth. Types shallower
// than depth are returned unchanged.
func (t Type) Truncate(depth int) Type {
	if depth >= t.Depth() {
		return t
	}
	if depth <= 0 {
		return 0
	}
	keep := uint32(0)
	for level := 0; level < depth; level++ {
		keep |= levelMask << (firstShift - level*levelBits)
	}
	return Type(uint32(t)&keep) | Type(depth)
}

// IsSubclassOf reports whether t equals parent or lies below it.
func (t Type) IsSubclassOf(parent Type) bool {
	if parent.Depth() == 0 || t.Depth() < parent.Depth() {
		return false
	}
	return t.Truncate(parent.Depth()) == parent
}

// GoString renders the raw level indices, which is handy in test failures.
func (t Type) GoString() string {
	parts := make([]string, 0, t.Depth())
	for level := 0; level < t.Depth(); level++ {
		parts = append(parts, fmt.Sprintf("%d", t.index(level)))
	}
	return "taxonomy.Type(" + strings.Join(parts, ".") + ")"
}

// Holder is a candidate's set of raw category tags.
type Holder interface {
	HasWithSubclass(t Type) bool
}

// Types is a plain slice-backed Holder.
type Types []Type

// HasWithSubclass reports whether any held type is t or a subclass of t.
func (ts Types) HasWithSubclass(t Type) bool {
	for _, held := range ts {
		if held.IsSubclassOf(t) {
			return true
		}
	}
	return false
}

// SplitPath splits "amenity-fast_food" into its components.
func SplitPath(path string) []string {
	return strings.Split(strings.TrimSpace(path), PathSeparator)
}
