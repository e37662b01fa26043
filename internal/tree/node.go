// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// Package tree implements the in-memory directory tree that the restore
// preparation pipeline builds from catalog rows: a chunked node arena, an
// append-only interned string pool, a hardlink index, and per-node delta
// chains, plus the read/mark operations layered on top of them.
package tree

import "fmt"

// NodeType classifies a tree node.
type NodeType uint8

const (
	// Root is the single synthetic root of every tree; it has no name.
	Root NodeType = iota
	// NewDir is a directory synthesized to fill in a missing parent.
	NewDir
	// Dir is a directory recorded explicitly by a catalog row.
	Dir
	// DirNoLeadingSlash is a Win32-style directory path lacking a leading separator.
	DirNoLeadingSlash
	// File is a regular (or special) file record.
	File
)

func (t NodeType) String() string {
	switch t {
	case Root:
		return "Root"
	case NewDir:
		return "NewDir"
	case Dir:
		return "Dir"
	case DirNoLeadingSlash:
		return "DirNoLeadingSlash"
	case File:
		return "File"
	default:
		return fmt.Sprintf("NodeType(%d)", t)
	}
}

// IsDirLike reports whether t is one of the directory-shaped types that may
// legally carry the ExtractDir bit.
func (t NodeType) IsDirLike() bool {
	return t == Dir || t == DirNoLeadingSlash || t == NewDir || t == Root
}

// Flags packs the five independent per-node boolean markers into one byte.
// Extract and ExtractDir are stored separately, in the tree's mark bitmap
// (see mark.go), so that marking can use word-level atomic CAS without
// contending with the node record itself; Flags() below folds them back in
// for callers (and the serializer) that want the full packed byte.
type Flags uint8

const (
	FlagInserted Flags = 1 << iota
	FlagHardLink
	FlagSoftLink
	FlagExtract
	FlagExtractDir
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

func (f Flags) set(bit Flags, v bool) Flags {
	if v {
		return f | bit
	}
	return f &^ bit
}

// NodeRef is a stable index into the arena. The zero value is RootRef, the
// root node; callers that need an explicit "no node" value use NilRef.
type NodeRef int32

// NilRef is the sentinel "no such node" reference.
const NilRef NodeRef = -1

// RootRef is the reference of the tree's root node, always index 0.
const RootRef NodeRef = 0

// Node is one path component recorded in one or more backup jobs.
type Node struct {
	nameOff uint32
	nameLen uint32

	Type NodeType

	FileIndex int32
	JobID     uint32
	DeltaSeq  int32
	FHInfo    uint64
	FHNode    uint64
	Size      uint64 // catalog size hint, used only by estimate's byte total

	flags Flags

	// deltaHead indexes into the owning tree's delta pool; deltaNone if the
	// node has no delta chain.
	deltaHead int32

	parent NodeRef

	// firstChild/childCount describe this node's children once Build has
	// run and materialized the contiguous children table; until then,
	// children are tracked via the builder's temporary append lists.
	firstChild int32
	childCount int32

	// SubtreeEnd is the arena index one past the last descendant of this
	// node in pre-order; finalized by Build. Meaningless before Build.
	SubtreeEnd int32
}

const deltaNone int32 = -1

// Inserted reports whether insert_tree_node has ever created this node:
// the bit is set the first time, and subsequent re-insertions do not
// toggle it.
func (n *Node) Inserted() bool { return n.flags.Has(FlagInserted) }

// HardLink reports whether this node is a hardlink chain member or head.
func (n *Node) HardLink() bool { return n.flags.Has(FlagHardLink) }

// SoftLink reports whether this node was recorded as a symbolic link.
func (n *Node) SoftLink() bool { return n.flags.Has(FlagSoftLink) }

// storedFlags returns the Inserted/HardLink/SoftLink bits only; Extract and
// ExtractDir are folded in by Tree.Flags.
func (n *Node) storedFlags() Flags { return n.flags }

// Parent returns the parent node reference, or NilRef for the root.
func (n *Node) Parent() NodeRef { return n.parent }
