// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"github.com/zeebo/blake3"
)

// intern is the append-only byte-string arena backing every node name. Path
// segments are deduplicated by content-addressing: instead of a bare
// map[string]int32, lookups are keyed by a BLAKE3-128 digest of the segment
// bytes, bucketed into a fixed table whose buckets hold a few inline slots
// and an overflow list. At the scale this builder
// targets (tens to hundreds of millions of path rows) this avoids Go's map
// implementation rehashing and boxing a fresh string header per lookup.
type intern struct {
	buf     []byte
	buckets []internBucket
	mask    uint64
	count   int
}

type internKey [16]byte

type internEntry struct {
	key internKey
	off uint32
	len uint32
}

// internBucket holds a few inline slots; collisions beyond the inline
// slots spill into overflow.
type internBucket struct {
	entries  [4]internEntry
	overflow []internEntry
}

func newIntern() *intern {
	return &intern{
		buf:     make([]byte, 0, 1<<20),
		buckets: make([]internBucket, 1<<16),
		mask:    1<<16 - 1,
	}
}

func internDigest(s []byte) internKey {
	sum := blake3.Sum256(s)
	var k internKey
	copy(k[:], sum[:16])
	return k
}

// intern returns the (offset, length) view of s within the shared buffer,
// appending it only if an identical segment was never interned before.
func (in *intern) intern(s []byte) (uint32, uint32) {
	key := internDigest(s)
	h := bucketHash(key)
	idx := h & in.mask
	b := &in.buckets[idx]

	if off, ln, ok := b.find(key, s, in.buf); ok {
		return off, ln
	}

	off := uint32(len(in.buf))
	ln := uint32(len(s))
	in.buf = append(in.buf, s...)
	entry := internEntry{key: key, off: off, len: ln}
	b.insert(entry)
	in.count++
	return off, ln
}

func (b *internBucket) find(key internKey, s []byte, buf []byte) (uint32, uint32, bool) {
	for i := range b.entries {
		e := &b.entries[i]
		if e.len == 0 && e.off == 0 && e.key == (internKey{}) {
			continue
		}
		if e.key == key && string(buf[e.off:e.off+e.len]) == string(s) {
			return e.off, e.len, true
		}
	}
	for _, e := range b.overflow {
		if e.key == key && string(buf[e.off:e.off+e.len]) == string(s) {
			return e.off, e.len, true
		}
	}
	return 0, 0, false
}

func (b *internBucket) insert(e internEntry) {
	for i := range b.entries {
		slot := &b.entries[i]
		if slot.len == 0 && slot.off == 0 && slot.key == (internKey{}) {
			*slot = e
			return
		}
	}
	b.overflow = append(b.overflow, e)
}

func bucketHash(k internKey) uint64 {
	var h uint64 = 1469598103934665603
	for _, bt := range k {
		h ^= uint64(bt)
		h *= 1099511628211
	}
	return h
}

// bytes returns the interned view described by (off, length).
func (in *intern) bytes(off, length uint32) []byte {
	return in.buf[off : off+length]
}

func (in *intern) len() int { return len(in.buf) }
