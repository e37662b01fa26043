// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import "log/slog"

// NodeRecord is the exported, framing-agnostic shape of one arena node, for
// consumption by internal/serialize. It is a 1:1 projection of Node plus
// the marks that live in the tree-level bitmap, as a fixed-size node
// record.
type NodeRecord struct {
	NameOff, NameLen uint32
	Type             NodeType
	Flags            Flags // full packed byte, Extract/ExtractDir folded in
	FileIndex        int32
	JobID            uint32
	DeltaSeq         int32
	FHInfo, FHNode   uint64
	Size             uint64
	DeltaHead        int32
	Parent           NodeRef
	FirstChild       int32
	ChildCount       int32
	SubtreeEnd       int32
}

// Snapshot is the complete, framing-agnostic state of a Tree: everything
// internal/serialize needs to write its binary layout, and nothing about
// file I/O or byte order.
type Snapshot struct {
	Sep          byte
	Nodes        []NodeRecord
	Strings      []byte
	Hardlinks    []HardlinkEntry
	DeltaEntries []DeltaEntry
	DeltaNext    []int32
	ExtractBits  []uint64
	ExtractDirBits []uint64
}

// Export projects t into a Snapshot suitable for serialization.
func (t *Tree) Export() Snapshot {
	n := t.arena.len()
	nodes := make([]NodeRecord, n)
	for i := 0; i < n; i++ {
		ref := NodeRef(i)
		nd := t.arena.at(ref)
		nodes[i] = NodeRecord{
			NameOff:    nd.nameOff,
			NameLen:    nd.nameLen,
			Type:       nd.Type,
			Flags:      t.Flags(ref),
			FileIndex:  nd.FileIndex,
			JobID:      nd.JobID,
			DeltaSeq:   nd.DeltaSeq,
			FHInfo:     nd.FHInfo,
			FHNode:     nd.FHNode,
			Size:       nd.Size,
			DeltaHead:  nd.deltaHead,
			Parent:     nd.parent,
			FirstChild: nd.firstChild,
			ChildCount: nd.childCount,
			SubtreeEnd: nd.SubtreeEnd,
		}
	}

	extract := make([]uint64, len(t.marks.extract))
	extractDir := make([]uint64, len(t.marks.extractDir))
	for i := range extract {
		extract[i] = t.marks.extract[i].Load()
	}
	for i := range extractDir {
		extractDir[i] = t.marks.extractDir[i].Load()
	}

	return Snapshot{
		Sep:            t.sep,
		Nodes:          nodes,
		Strings:        append([]byte(nil), t.interner.buf...),
		Hardlinks:      t.links.sorted(),
		DeltaEntries:   append([]DeltaEntry(nil), t.deltas.entries...),
		DeltaNext:      append([]int32(nil), t.deltas.next...),
		ExtractBits:    extract,
		ExtractDirBits: extractDir,
	}
}

// Import rebuilds a Tree from a Snapshot: subtree_end containment is
// re-validated, dangling hardlink entries are dropped (with a warning
// through logger), and markOnLoad ORs extract/extract_dir across every node
// instead of restoring them verbatim.
func Import(s Snapshot, markOnLoad bool, logger *slog.Logger) (*Tree, error) {
	n := len(s.Nodes)
	if err := validateContainment(s.Nodes); err != nil {
		return nil, err
	}

	a := newArena()
	a.chunks = [][]Node{make([]Node, n)}
	a.count = n
	for i, rec := range s.Nodes {
		a.chunks[0][i] = Node{
			nameOff:    rec.NameOff,
			nameLen:    rec.NameLen,
			Type:       rec.Type,
			FileIndex:  rec.FileIndex,
			JobID:      rec.JobID,
			DeltaSeq:   rec.DeltaSeq,
			FHInfo:     rec.FHInfo,
			FHNode:     rec.FHNode,
			Size:       rec.Size,
			flags:      rec.Flags &^ (FlagExtract | FlagExtractDir),
			deltaHead:  rec.DeltaHead,
			parent:     rec.Parent,
			firstChild: rec.FirstChild,
			childCount: rec.ChildCount,
			SubtreeEnd: rec.SubtreeEnd,
		}
	}

	interner := newIntern()
	interner.buf = append([]byte(nil), s.Strings...)

	links := loadHardlinkIndex(s.Hardlinks, n, func(key uint64, node NodeRef) {
		if logger != nil {
			logger.Warn("serialize: dropping dangling hardlink entry", "key", key, "node", int32(node))
		}
	})

	deltas := &deltaPool{
		entries: append([]DeltaEntry(nil), s.DeltaEntries...),
		next:    append([]int32(nil), s.DeltaNext...),
	}

	// extract/extract_dir are restored verbatim unless markOnLoad requests
	// OR-ing them in across every node.
	marks := newMarkBitmap(n)
	for i, w := range s.ExtractBits {
		if i < len(marks.extract) {
			marks.extract[i].Store(w)
		}
	}
	for i, w := range s.ExtractDirBits {
		if i < len(marks.extractDir) {
			marks.extractDir[i].Store(w)
		}
	}
	if markOnLoad {
		for ref := 0; ref < n; ref++ {
			bitSet(marks.extract, ref, true)
			if a.chunks[0][ref].Type.IsDirLike() {
				bitSet(marks.extractDir, ref, true)
			}
		}
	}

	childRefs := rebuildChildRefs(s.Nodes)

	return &Tree{
		sep:           s.Sep,
		arena:         a,
		interner:      interner,
		links:         links,
		deltas:        deltas,
		marks:         marks,
		childRefs:     childRefs,
		insertedCount: countInserted(s.Nodes),
	}, nil
}

// rebuildChildRefs reconstructs the flat children table from each node's
// Parent pointer, grouping children by parent and placing each group at its
// recorded FirstChild offset (both sides were produced by the same Build
// pass, so the offsets are already consistent; this just re-derives the
// values without trusting a second copy on disk).
func rebuildChildRefs(nodes []NodeRecord) []NodeRef {
	total := 0
	for _, n := range nodes {
		total += int(n.ChildCount)
	}
	out := make([]NodeRef, total)
	cursor := make([]int32, len(nodes))
	for i, n := range nodes {
		cursor[i] = n.FirstChild
	}
	for i, n := range nodes {
		if i == 0 {
			continue
		}
		p := int(n.Parent)
		if p < 0 || p >= len(nodes) {
			continue
		}
		out[cursor[p]] = NodeRef(i)
		cursor[p]++
	}
	return out
}

func countInserted(nodes []NodeRecord) int {
	count := 0
	for _, n := range nodes {
		if n.Flags.Has(FlagInserted) {
			count++
		}
	}
	return count
}

// validateContainment re-checks the subtree containment invariant on
// load: every node's SubtreeEnd must exceed its own index and
// fall within range, and a child's SubtreeEnd must not exceed its parent's.
func validateContainment(nodes []NodeRecord) error {
	n := len(nodes)
	for i, rec := range nodes {
		if int(rec.SubtreeEnd) <= i || int(rec.SubtreeEnd) > n {
			return &ErrCorruptTree{Reason: "subtree_end out of range"}
		}
		if rec.Parent != NilRef {
			p := nodes[int(rec.Parent)]
			if int(p.SubtreeEnd) < int(rec.SubtreeEnd) {
				return &ErrCorruptTree{Reason: "child subtree_end exceeds parent's"}
			}
		}
	}
	return nil
}

// ErrCorruptTree reports a structural invariant violation detected while
// importing a Snapshot, distinct from internal/serialize's framing-level
// ErrCorrupt (CRC mismatch, truncated file).
type ErrCorruptTree struct{ Reason string }

func (e *ErrCorruptTree) Error() string { return "tree: corrupt snapshot: " + e.Reason }
