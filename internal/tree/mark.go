// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import "sync/atomic"

// markBitmap holds the Extract and ExtractDir bits for every node, one bit
// each, packed into 64-bit words. Word-level CAS lets multiple
// selection-engine sessions mark concurrently as long as they synchronize
// on this bitmap.
type markBitmap struct {
	extract    []atomic.Uint64
	extractDir []atomic.Uint64
}

func newMarkBitmap(n int) *markBitmap {
	words := (n + 63) / 64
	return &markBitmap{
		extract:    make([]atomic.Uint64, words),
		extractDir: make([]atomic.Uint64, words),
	}
}

func bitSet(words []atomic.Uint64, i int, v bool) {
	w, bit := i/64, uint(i%64)
	mask := uint64(1) << bit
	for {
		old := words[w].Load()
		var next uint64
		if v {
			next = old | mask
		} else {
			next = old &^ mask
		}
		if next == old || words[w].CompareAndSwap(old, next) {
			return
		}
	}
}

func bitGet(words []atomic.Uint64, i int) bool {
	w, bit := i/64, uint(i%64)
	return words[w].Load()&(uint64(1)<<bit) != 0
}

// Extract reports whether ref's data is marked for restore.
func (t *Tree) Extract(ref NodeRef) bool { return bitGet(t.marks.extract, int(ref)) }

// ExtractDir reports whether ref's own directory metadata is marked for restore.
func (t *Tree) ExtractDir(ref NodeRef) bool { return bitGet(t.marks.extractDir, int(ref)) }

// Marked reports whether either bit is set.
func (t *Tree) Marked(ref NodeRef) bool { return t.Extract(ref) || t.ExtractDir(ref) }

// Flags returns the node's full packed flag byte, folding in the mark
// bitmap bits, exactly as the on-disk format stores them.
func (t *Tree) Flags(ref NodeRef) Flags {
	f := t.arena.at(ref).storedFlags()
	f = f.set(FlagExtract, t.Extract(ref))
	f = f.set(FlagExtractDir, t.ExtractDir(ref))
	return f
}

// MarkNode sets Extract; if the node is directory-shaped it also sets
// ExtractDir.
func (t *Tree) MarkNode(ref NodeRef) {
	bitSet(t.marks.extract, int(ref), true)
	if t.arena.at(ref).Type.IsDirLike() {
		bitSet(t.marks.extractDir, int(ref), true)
	}
}

// UnmarkNode clears Extract and, for directories, ExtractDir.
func (t *Tree) UnmarkNode(ref NodeRef) {
	bitSet(t.marks.extract, int(ref), false)
	if t.arena.at(ref).Type.IsDirLike() {
		bitSet(t.marks.extractDir, int(ref), false)
	}
}

// UnmarkDir clears only ExtractDir, leaving Extract (and thus any marked
// children) untouched: it unmarks a directory's own extract_dir bit,
// independent of its contents.
func (t *Tree) UnmarkDir(ref NodeRef) {
	bitSet(t.marks.extractDir, int(ref), false)
}

// MarkSubtree sets MarkNode on ref and on every descendant. The walk is
// O(|subtree|) via contiguous arena iteration and checks cancel between
// nodes.
func (t *Tree) MarkSubtree(ref NodeRef, cancel *CancelFlag) error {
	return t.walkSubtreeMut(ref, cancel, t.MarkNode)
}

// UnmarkSubtree is the symmetric bulk clear.
func (t *Tree) UnmarkSubtree(ref NodeRef, cancel *CancelFlag) error {
	return t.walkSubtreeMut(ref, cancel, t.UnmarkNode)
}

func (t *Tree) walkSubtreeMut(ref NodeRef, cancel *CancelFlag, fn func(NodeRef)) error {
	end := t.arena.at(ref).SubtreeEnd
	for i := int(ref); i < int(end); i++ {
		if cancel.Cancelled() {
			return ErrCancelled
		}
		fn(NodeRef(i))
	}
	return nil
}
