// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// Package serialize implements the tree snapshot checkpoint format: a
// framed binary layout (magic, counts, node table, string pool, hardlink
// table, delta-list pool, mark bitmap, CRC-32 trailer) written atomically
// via a temp-file-then-rename.
package serialize

// Magic and Version identify the on-disk format; the snapshot is a
// private checkpoint, so no cross-version compatibility is kept.
var Magic = [8]byte{'B', 'R', 'T', 'R', 'E', 'E', 0, 0}

const Version uint32 = 1

// ErrCorrupt is returned by Load on CRC mismatch or a structurally invalid
// file; the caller falls back to rebuilding the tree from the catalog.
type ErrCorrupt struct {
	Reason string
}

func (e *ErrCorrupt) Error() string { return "serialize: corrupt snapshot: " + e.Reason }
