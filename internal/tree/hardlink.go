// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import "sort"

// HardlinkEntry is one (job_id, file_index) -> node mapping, with the key
// packed as key = (job_id << 32) | file_index.
type HardlinkEntry struct {
	Key  uint64
	Node NodeRef
}

// HardlinkKey packs a (job_id, file_index) pair into the Hardlink Index key.
func HardlinkKey(jobID uint32, fileIndex int32) uint64 {
	return uint64(jobID)<<32 | uint64(uint32(fileIndex))
}

// hardlinkIndex is built-once/read-many: a hash map during ingestion for
// O(1) first-writer-wins inserts, serialized as a flat key-sorted array
// so the on-disk form needs no hashing to reload.
type hardlinkIndex struct {
	m map[uint64]NodeRef
}

func newHardlinkIndex() *hardlinkIndex {
	return &hardlinkIndex{m: make(map[uint64]NodeRef)}
}

// insertIfAbsent inserts (key -> node) only if key is not already present,
// implementing the chain-head first-writer-wins rule. Returns true if this
// call performed the insertion.
func (h *hardlinkIndex) insertIfAbsent(key uint64, node NodeRef) bool {
	if _, ok := h.m[key]; ok {
		return false
	}
	h.m[key] = node
	return true
}

func (h *hardlinkIndex) lookup(key uint64) (NodeRef, bool) {
	n, ok := h.m[key]
	return n, ok
}

func (h *hardlinkIndex) len() int { return len(h.m) }

// sorted returns the flat, key-sorted representation used on disk.
func (h *hardlinkIndex) sorted() []HardlinkEntry {
	out := make([]HardlinkEntry, 0, len(h.m))
	for k, v := range h.m {
		out = append(out, HardlinkEntry{Key: k, Node: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// loadSorted rebuilds the in-memory map from a sorted on-disk array,
// dropping (with the caller-supplied warn callback) any entry whose Node
// reference is out of range for nodeCount.
func loadHardlinkIndex(entries []HardlinkEntry, nodeCount int, warn func(key uint64, node NodeRef)) *hardlinkIndex {
	h := newHardlinkIndex()
	for _, e := range entries {
		if int(e.Node) < 0 || int(e.Node) >= nodeCount {
			if warn != nil {
				warn(e.Key, e.Node)
			}
			continue
		}
		h.m[e.Key] = e.Node
	}
	return h
}
