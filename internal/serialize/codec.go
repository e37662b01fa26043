// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package serialize

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bareos-community/restoretree/internal/tree"
)

// Encode renders a tree.Snapshot into the snapshot binary layout: a
// bytes.Buffer built up with sequential binary.Write calls,
// length-prefixed variable sections, and a trailing checksum.
func Encode(snap tree.Snapshot) ([]byte, error) {
	buf := &bytes.Buffer{}

	buf.Write(Magic[:])
	writeField(buf, Version)
	writeField(buf, uint32(len(snap.Nodes)))
	writeField(buf, uint32(len(snap.Strings)))
	writeField(buf, uint32(len(snap.Hardlinks)))
	writeField(buf, uint32(len(snap.DeltaEntries)))
	buf.WriteByte(snap.Sep)

	for _, n := range snap.Nodes {
		writeField(buf, n.NameOff)
		writeField(buf, n.NameLen)
		writeField(buf, uint8(n.Type))
		writeField(buf, uint8(n.Flags))
		writeField(buf, n.FileIndex)
		writeField(buf, n.JobID)
		writeField(buf, n.DeltaSeq)
		writeField(buf, n.FHInfo)
		writeField(buf, n.FHNode)
		writeField(buf, n.Size)
		writeField(buf, n.DeltaHead)
		writeField(buf, int32(n.Parent))
		writeField(buf, n.FirstChild)
		writeField(buf, n.ChildCount)
		writeField(buf, n.SubtreeEnd)
	}

	buf.Write(snap.Strings)

	for _, h := range snap.Hardlinks {
		writeField(buf, h.Key)
		writeField(buf, int32(h.Node))
	}

	writeField(buf, uint32(len(snap.DeltaEntries)))
	for i, e := range snap.DeltaEntries {
		writeField(buf, e.JobID)
		writeField(buf, e.FileIndex)
		writeField(buf, snap.DeltaNext[i])
	}

	writeField(buf, uint32(len(snap.ExtractBits)))
	for _, w := range snap.ExtractBits {
		writeField(buf, w)
	}
	writeField(buf, uint32(len(snap.ExtractDirBits)))
	for _, w := range snap.ExtractDirBits {
		writeField(buf, w)
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	writeField(buf, sum)

	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode back into a tree.Snapshot,
// verifying the CRC-32 trailer before any other field is trusted.
func Decode(data []byte) (tree.Snapshot, error) {
	if len(data) < 4 {
		return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated file"}
	}

	body, trailer := data[:len(data)-4], data[len(data)-4:]
	want := binary.LittleEndian.Uint32(trailer)
	got := crc32.ChecksumIEEE(body)
	if want != got {
		return tree.Snapshot{}, &ErrCorrupt{Reason: "crc mismatch"}
	}

	r := bytes.NewReader(body)

	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated header"}
	}
	if magic != Magic {
		return tree.Snapshot{}, &ErrCorrupt{Reason: "bad magic"}
	}

	var version, nodeCount, stringBytes, hardlinkCount, deltaCount uint32
	if err := readFields(r, &version, &nodeCount, &stringBytes, &hardlinkCount, &deltaCount); err != nil {
		return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated counts"}
	}
	if version != Version {
		return tree.Snapshot{}, &ErrCorrupt{Reason: fmt.Sprintf("unsupported version %d", version)}
	}

	sep, err := r.ReadByte()
	if err != nil {
		return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated header"}
	}

	nodes := make([]tree.NodeRecord, nodeCount)
	for i := range nodes {
		var nameOff, nameLen uint32
		var typ, flags uint8
		var fi int32
		var jobID uint32
		var deltaSeq int32
		var fhinfo, fhnode, size uint64
		var deltaHead, parent, firstChild, childCount, subtreeEnd int32
		if err := readFields(r, &nameOff, &nameLen, &typ, &flags, &fi, &jobID, &deltaSeq,
			&fhinfo, &fhnode, &size, &deltaHead, &parent, &firstChild, &childCount, &subtreeEnd); err != nil {
			return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated node table"}
		}
		nodes[i] = tree.NodeRecord{
			NameOff: nameOff, NameLen: nameLen,
			Type: tree.NodeType(typ), Flags: tree.Flags(flags),
			FileIndex: fi, JobID: jobID, DeltaSeq: deltaSeq,
			FHInfo: fhinfo, FHNode: fhnode, Size: size,
			DeltaHead: deltaHead, Parent: tree.NodeRef(parent),
			FirstChild: firstChild, ChildCount: childCount, SubtreeEnd: subtreeEnd,
		}
	}

	strs := make([]byte, stringBytes)
	if _, err := io.ReadFull(r, strs); err != nil {
		return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated string pool"}
	}

	links := make([]tree.HardlinkEntry, hardlinkCount)
	for i := range links {
		var key uint64
		var node int32
		if err := readFields(r, &key, &node); err != nil {
			return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated hardlink table"}
		}
		links[i] = tree.HardlinkEntry{Key: key, Node: tree.NodeRef(node)}
	}

	var deltaN uint32
	if err := readFields(r, &deltaN); err != nil {
		return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated delta pool"}
	}
	entries := make([]tree.DeltaEntry, deltaN)
	next := make([]int32, deltaN)
	for i := range entries {
		var jobID uint32
		var fi, nx int32
		if err := readFields(r, &jobID, &fi, &nx); err != nil {
			return tree.Snapshot{}, &ErrCorrupt{Reason: "truncated delta pool"}
		}
		entries[i] = tree.DeltaEntry{JobID: jobID, FileIndex: fi}
		next[i] = nx
	}

	extract, err := readBitmap(r)
	if err != nil {
		return tree.Snapshot{}, err
	}
	extractDir, err := readBitmap(r)
	if err != nil {
		return tree.Snapshot{}, err
	}

	return tree.Snapshot{
		Sep:            sep,
		Nodes:          nodes,
		Strings:        strs,
		Hardlinks:      links,
		DeltaEntries:   entries,
		DeltaNext:      next,
		ExtractBits:    extract,
		ExtractDirBits: extractDir,
	}, nil
}

func readBitmap(r *bytes.Reader) ([]uint64, error) {
	var count uint32
	if err := readFields(r, &count); err != nil {
		return nil, &ErrCorrupt{Reason: "truncated mark bitmap"}
	}
	words := make([]uint64, count)
	for i := range words {
		if err := readFields(r, &words[i]); err != nil {
			return nil, &ErrCorrupt{Reason: "truncated mark bitmap"}
		}
	}
	return words, nil
}

func writeField(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func readFields(r *bytes.Reader, ptrs ...any) error {
	for _, p := range ptrs {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return err
		}
	}
	return nil
}

// Save writes snap to path atomically: a temp file in the same directory
// is written and fsynced, then renamed into place, so a crash mid-write
// never leaves a truncated snapshot visible at path.
func Save(path string, snap tree.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".brtree-*.tmp")
	if err != nil {
		return fmt.Errorf("serialize: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("serialize: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("serialize: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("serialize: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("serialize: rename temp file: %w", err)
	}
	return nil
}

// Load reads and decodes the snapshot at path, then reconstructs a Tree via
// tree.Import, applying markOnLoad.
func Load(path string, markOnLoad bool, logger *slog.Logger) (*tree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("serialize: read snapshot: %w", err)
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return tree.Import(snap, markOnLoad, logger)
}
