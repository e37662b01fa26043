// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import "strings"

// Tree is the finalized, read-only directory shape produced by Build: a
// node arena laid out in pre-order DFS sequence (so that SubtreeEnd skip
// covers exactly the contiguous subtree), the interned string pool, the
// hardlink index, the delta-list pool, and the per-node mark bitmap.
//
// Structural read operations (Root, Children, Subtree, Find, PathTo,
// HardlinkLookup) are safe for concurrent use by many readers once Build
// has returned. Mark operations require only that callers
// synchronize through the bitmap's word-level CAS, which MarkNode/
// MarkSubtree already do.
type Tree struct {
	sep byte

	arena    *arena
	interner *intern
	links    *hardlinkIndex
	deltas   *deltaPool
	marks    *markBitmap

	childRefs []NodeRef // flat, per-node contiguous child lists

	insertedCount int
}

// Build finalizes the tree in a single pass: it reorders the arena into
// pre-order DFS sequence, computes SubtreeEnd for every node,
// materializes each node's children as a contiguous run in the flat
// childRefs table, and applies any mark-on-create requests queued during
// ingestion. The Builder must not be used again afterward.
func (b *Builder) Build() *Tree {
	old := b.arena
	n := old.len()

	oldToNew := make([]int32, n)
	newParent := make([]NodeRef, n)
	subtreeEnd := make([]int32, n)

	// Iterative pre-order DFS assigning new (final) indices.
	type frame struct {
		old  NodeRef
		next NodeRef // next unvisited child in b.childHead/childNext chain
	}
	order := make([]NodeRef, 0, n)
	stack := make([]frame, 0, 64)
	stack = append(stack, frame{old: RootRef, next: b.childHead[RootRef]})
	oldToNew[RootRef] = 0
	order = append(order, RootRef)

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == NilRef {
			subtreeEnd[oldToNew[top.old]] = int32(len(order))
			stack = stack[:len(stack)-1]
			continue
		}
		child := top.next
		top.next = b.childNext[child]

		newIdx := int32(len(order))
		oldToNew[child] = newIdx
		newParent[newIdx] = NodeRef(oldToNew[top.old])
		order = append(order, child)

		stack = append(stack, frame{old: child, next: b.childHead[child]})
	}

	newArenaInst := newArena()
	newArenaInst.chunks = [][]Node{make([]Node, n)}
	newArenaInst.count = n
	for newIdx, oldRef := range order {
		src := old.at(oldRef)
		dst := &newArenaInst.chunks[0][newIdx]
		*dst = *src
		dst.SubtreeEnd = subtreeEnd[newIdx]
		if newIdx == 0 {
			dst.parent = NilRef
		} else {
			dst.parent = newParent[newIdx]
		}
	}

	// Flatten children into contiguous per-parent runs, preserving
	// insertion order, now that every ref has its final index.
	childRefs := make([]NodeRef, 0, n-1)
	for newIdx, oldRef := range order {
		dst := &newArenaInst.chunks[0][newIdx]
		dst.firstChild = int32(len(childRefs))
		count := int32(0)
		for c := b.childHead[oldRef]; c != NilRef; c = b.childNext[c] {
			childRefs = append(childRefs, NodeRef(oldToNew[c]))
			count++
		}
		dst.childCount = count
	}

	// The hardlink index was populated with pre-Build refs; translate every
	// stored Node through oldToNew now that final indices are assigned.
	translatedLinks := newHardlinkIndex()
	for _, e := range b.links.sorted() {
		translatedLinks.insertIfAbsent(e.Key, NodeRef(oldToNew[e.Node]))
	}

	t := &Tree{
		sep:           b.sep,
		arena:         newArenaInst,
		interner:      b.interner,
		links:         translatedLinks,
		deltas:        b.deltas,
		marks:         newMarkBitmap(n),
		childRefs:     childRefs,
		insertedCount: b.count,
	}

	for _, oldRef := range b.pendingMarks {
		t.MarkNode(NodeRef(oldToNew[oldRef]))
	}

	return t
}

// Root returns the tree's root node reference.
func (t *Tree) Root() NodeRef { return RootRef }

// NodeCount returns the total number of nodes in the arena, including the root.
func (t *Tree) NodeCount() int { return t.arena.len() }

// InsertedCount returns the number of nodes that ever transitioned from
// "not inserted" to "inserted".
func (t *Tree) InsertedCount() int { return t.insertedCount }

// Type returns ref's node type.
func (t *Tree) Type(ref NodeRef) NodeType { return t.arena.at(ref).Type }

// Name returns ref's path segment, or "" for the root.
func (t *Tree) Name(ref NodeRef) string {
	n := t.arena.at(ref)
	if n.nameLen == 0 && n.nameOff == 0 && ref == RootRef {
		return ""
	}
	return string(t.interner.bytes(n.nameOff, n.nameLen))
}

// FileIndex returns ref's file index within JobID(ref).
func (t *Tree) FileIndex(ref NodeRef) int32 { return t.arena.at(ref).FileIndex }

// JobID returns ref's originating job id.
func (t *Tree) JobID(ref NodeRef) uint32 { return t.arena.at(ref).JobID }

// DeltaSeq returns ref's sequence within its delta chain.
func (t *Tree) DeltaSeq(ref NodeRef) int32 { return t.arena.at(ref).DeltaSeq }

// FHInfo returns ref's NDMP file-handle info hint.
func (t *Tree) FHInfo(ref NodeRef) uint64 { return t.arena.at(ref).FHInfo }

// FHNode returns ref's NDMP file-handle node hint.
func (t *Tree) FHNode(ref NodeRef) uint64 { return t.arena.at(ref).FHNode }

// Size returns ref's catalog size hint, used only by estimate's byte total.
func (t *Tree) Size(ref NodeRef) uint64 { return t.arena.at(ref).Size }

// HardLink reports whether ref is part of a hardlink chain.
func (t *Tree) HardLink(ref NodeRef) bool { return t.arena.at(ref).HardLink() }

// SoftLink reports whether ref was recorded as a symbolic link.
func (t *Tree) SoftLink(ref NodeRef) bool { return t.arena.at(ref).SoftLink() }

// SubtreeEnd returns the arena index one past ref's last descendant.
func (t *Tree) SubtreeEnd(ref NodeRef) int32 { return t.arena.at(ref).SubtreeEnd }

// Parent returns ref's parent, or NilRef for the root.
func (t *Tree) Parent(ref NodeRef) NodeRef { return t.arena.at(ref).parent }

// DeltaList returns ref's delta chain, oldest-first: the order the BSR
// walk must emit it in.
func (t *Tree) DeltaList(ref NodeRef) []DeltaEntry {
	return t.deltas.oldestFirst(t.arena.at(ref).deltaHead)
}

// Children returns ref's direct children in insertion order.
func (t *Tree) Children(ref NodeRef) []NodeRef {
	n := t.arena.at(ref)
	return t.childRefs[n.firstChild : n.firstChild+n.childCount]
}

// Subtree returns ref and every transitive descendant, in pre-order,
// inclusive, by contiguous arena iteration bounded by SubtreeEnd. O(1)
// per step, no recursion.
func (t *Tree) Subtree(ref NodeRef) []NodeRef {
	end := t.arena.at(ref).SubtreeEnd
	out := make([]NodeRef, 0, int(end)-int(ref))
	for i := int(ref); i < int(end); i++ {
		out = append(out, NodeRef(i))
	}
	return out
}

// HardlinkLookup resolves (job_id, file_index) to the hardlink chain-head
// node.
func (t *Tree) HardlinkLookup(jobID uint32, fileIndex int32) (NodeRef, bool) {
	return t.links.lookup(HardlinkKey(jobID, fileIndex))
}

// HardlinkEntries returns the flat, key-sorted on-disk representation of
// the hardlink index.
func (t *Tree) HardlinkEntries() []HardlinkEntry { return t.links.sorted() }

// Find resolves path relative to from: "." and ".." and absolute
// (separator-prefixed) paths are honored; a trailing separator does not
// change the result.
func (t *Tree) Find(path string, from NodeRef) (NodeRef, bool) {
	cur := from
	if strings.HasPrefix(path, string(t.sep)) {
		cur = RootRef
	}

	segments, _ := segmentPath(path, t.sep)
	for _, seg := range segments {
		switch seg {
		case ".":
			continue
		case "..":
			if p := t.Parent(cur); p != NilRef {
				cur = p
			}
		default:
			next, ok := t.findChildNamed(cur, seg)
			if !ok {
				return NilRef, false
			}
			cur = next
		}
	}
	return cur, true
}

func (t *Tree) findChildNamed(parent NodeRef, name string) (NodeRef, bool) {
	for _, c := range t.Children(parent) {
		if t.Name(c) == name {
			return c, true
		}
	}
	return NilRef, false
}

// PathTo reconstructs ref's fully-qualified path by walking to the root;
// the root contributes no segment.
func (t *Tree) PathTo(ref NodeRef) string {
	if ref == RootRef {
		return string(t.sep)
	}

	var segs []string
	for cur := ref; cur != RootRef; cur = t.Parent(cur) {
		segs = append(segs, t.Name(cur))
	}
	// segs is leaf-to-root; reverse into root-to-leaf.
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return string(t.sep) + strings.Join(segs, string(t.sep))
}

// Separator returns the path separator this tree was built with.
func (t *Tree) Separator() byte { return t.sep }
