// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"fmt"
	"log/slog"
)

// Builder assembles a Tree from catalog rows. It is strictly
// single-threaded during ingestion; row callbacks must not run concurrently
// with each other or with Build.
type Builder struct {
	sep    byte
	logger *slog.Logger

	arena    *arena
	interner *intern
	links    *hardlinkIndex
	deltas   *deltaPool

	// Temporary singly-linked child lists keyed by (old, pre-Build) NodeRef,
	// tracking insertion order in O(1) per append without a per-node slice
	// allocation. Children are modeled as a contiguous slice plus
	// subtree_end, materialized here only once Build runs.
	childHead []NodeRef
	childTail []NodeRef
	childNext []NodeRef

	count int // number of nodes that have transitioned to "inserted"

	// pendingMarks records (old, pre-Build) refs that must be marked once
	// Build() has renumbered the arena into pre-order, implementing the
	// "mark-on-create" flag.
	pendingMarks []NodeRef
}

// Option configures a Builder.
type Option func(*Builder)

// WithSeparator overrides the path separator (default '/').
func WithSeparator(sep byte) Option {
	return func(b *Builder) { b.sep = sep }
}

// WithLogger attaches a structured logger for non-fatal ingestion
// diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates an empty Builder with a synthetic root node already
// allocated at RootRef.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		sep:      '/',
		logger:   slog.Default(),
		arena:    newArena(),
		interner: newIntern(),
		links:    newHardlinkIndex(),
		deltas:   newDeltaPool(),
	}
	for _, opt := range opts {
		opt(b)
	}

	root := b.arena.alloc()
	b.extendChildTables()
	b.arena.at(root).Type = Root
	b.arena.at(root).parent = NilRef
	b.arena.at(root).deltaHead = deltaNone
	return b
}

func (b *Builder) extendChildTables() {
	for len(b.childHead) < b.arena.len() {
		b.childHead = append(b.childHead, NilRef)
		b.childTail = append(b.childTail, NilRef)
		b.childNext = append(b.childNext, NilRef)
	}
}

func (b *Builder) appendChild(parent, child NodeRef) {
	if b.childHead[parent] == NilRef {
		b.childHead[parent] = child
	} else {
		b.childNext[b.childTail[parent]] = child
	}
	b.childTail[parent] = child
	b.childNext[child] = NilRef
}

// InsertTreeNode locates or creates the leaf node for path/filename,
// creating every missing ancestor as a NewDir node along the way. path is
// the directory portion (trailing separator implied by the split); filename
// is the terminal segment, or empty for a pure directory row.
func (b *Builder) InsertTreeNode(path, filename string, typ NodeType) NodeRef {
	segments, noLeadingSlash := segmentPath(path, b.sep)

	cur := RootRef
	for _, seg := range segments {
		cur = b.findOrCreateChild(cur, seg, NewDir)
	}

	if filename == "" {
		if noLeadingSlash && typ == Dir {
			typ = DirNoLeadingSlash
		}
		// The directory named by the full path is `cur` itself only if
		// path contributed at least one segment; an empty path with an
		// empty filename refers to the root.
		if len(segments) == 0 {
			return RootRef
		}
		b.arena.at(cur).Type = typ
		return cur
	}

	return b.findOrCreateChild(cur, filename, typ)
}

func (b *Builder) findOrCreateChild(parent NodeRef, name string, typ NodeType) NodeRef {
	for c := b.childHead[parent]; c != NilRef; c = b.childNext[c] {
		n := b.arena.at(c)
		if string(b.interner.bytes(n.nameOff, n.nameLen)) == name {
			return c
		}
	}

	ref := b.arena.alloc()
	b.extendChildTables()
	n := b.arena.at(ref)
	off, ln := b.interner.intern([]byte(name))
	n.nameOff, n.nameLen = off, ln
	n.Type = typ
	n.parent = parent
	n.deltaHead = deltaNone
	b.appendChild(parent, ref)
	return ref
}

// InsertRowInput is the decoded form of a catalog.Row, with the lstat
// fields already pulled out. Keeping this separate from catalog.Row avoids
// a dependency from tree on the catalog package; callers (the root
// restoretree package) translate between the two.
type InsertRowInput struct {
	Path, Filename string
	FileIndex      int32
	JobID          uint32
	Mode           uint32
	Nlink          uint32
	LinkFI         int32
	DeltaSeq       int32
	FHInfo, FHNode uint64
	Size           uint64

	// MarkOnCreate, when true, sets Extract (and ExtractDir for
	// directories) the first time a node is created.
	MarkOnCreate bool
}

// ErrMalformedRow marks a row whose lstat could not be decoded. InsertRow
// never returns it; the caller that decodes lstat wraps the decode error
// with it, which aborts the current ingestion.
var ErrMalformedRow = fmt.Errorf("tree: malformed row")

func posixIsDir(mode uint32) bool  { return mode&0o170000 == 0o040000 }
func posixIsLink(mode uint32) bool { return mode&0o170000 == 0o120000 }

// InsertRow determines the row's type, inserts or locates the node, applies
// the overwrite policy, and updates the Hardlink Index. It never fails on
// its own; a malformed row is expected to be rejected by the caller before
// lstat fields reach here (catalog.DecodeLstat returns that error).
func (b *Builder) InsertRow(row InsertRowInput) NodeRef {
	typ := Dir
	if row.Filename != "" {
		typ = File
	}

	ref := b.InsertTreeNode(row.Path, row.Filename, typ)
	n := b.arena.at(ref)

	freshlyInserted := !n.Inserted()
	overwrite := freshlyInserted ||
		row.JobID != n.JobID ||
		shouldOverwriteSameJob(n.FileIndex, row.FileIndex, row.LinkFI != 0 || (row.Nlink > 1 && !posixIsDir(row.Mode)))

	if overwrite {
		n.FileIndex = row.FileIndex
		n.JobID = row.JobID
		n.DeltaSeq = row.DeltaSeq
		n.FHInfo = row.FHInfo
		n.FHNode = row.FHNode
		n.Size = row.Size
		n.flags = n.flags.set(FlagSoftLink, posixIsLink(row.Mode))
		n.flags = n.flags.set(FlagHardLink, row.LinkFI != 0)
	}

	if row.Nlink > 1 && !posixIsDir(row.Mode) {
		b.recordHardlink(ref, row)
	}

	if freshlyInserted {
		n.flags = n.flags.set(FlagInserted, true)
		b.count++
		if row.MarkOnCreate {
			b.pendingMarks = append(b.pendingMarks, ref)
		}
	}

	return ref
}

// shouldOverwriteSameJob decides the same-job overwrite branch: hardlinks
// keep the smallest (oldest) file index, everything else keeps the largest
// (newest).
func shouldOverwriteSameJob(existing, incoming int32, isHardlink bool) bool {
	if isHardlink {
		return incoming < existing
	}
	return incoming > existing
}

// recordHardlink registers ref in the hardlink index: as a new chain head if
// LinkFI is unset, or as a member resolved against an existing head.
func (b *Builder) recordHardlink(ref NodeRef, row InsertRowInput) {
	if row.LinkFI == 0 {
		key := HardlinkKey(row.JobID, row.FileIndex)
		b.links.insertIfAbsent(key, ref)
		b.arena.at(ref).flags = b.arena.at(ref).flags.set(FlagHardLink, true)
		return
	}

	headKey := HardlinkKey(row.JobID, row.LinkFI)
	head, ok := b.links.lookup(headKey)
	if !ok {
		if b.logger != nil {
			b.logger.Warn("tree: hardlink member references unknown chain head",
				"job_id", row.JobID, "link_fi", row.LinkFI, "file_index", row.FileIndex)
		}
		return
	}
	memberKey := HardlinkKey(row.JobID, row.FileIndex)
	b.links.insertIfAbsent(memberKey, head)
}

// AppendDelta appends a delta-list entry at the tail of ref's chain. The
// chain is kept newest-first, so callers append entries from the newest
// prior record to the oldest.
func (b *Builder) AppendDelta(ref NodeRef, entry DeltaEntry) {
	n := b.arena.at(ref)
	idx := b.deltas.prepend(deltaNone, entry)
	if n.deltaHead == deltaNone {
		n.deltaHead = idx
		return
	}
	last := n.deltaHead
	for b.deltas.next[last] != deltaNone {
		last = b.deltas.next[last]
	}
	b.deltas.next[last] = idx
}

// Count returns the number of nodes that have transitioned to "inserted"
// so far.
func (b *Builder) Count() int { return b.count }
