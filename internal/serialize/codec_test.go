// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package serialize

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/bareos-community/restoretree/internal/tree"
)

func buildTestTree(t *testing.T, n int, seed int64) *tree.Tree {
	t.Helper()
	b := tree.NewBuilder()
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		dir := fmt.Sprintf("/d%d/d%d/", rng.Intn(20), rng.Intn(20))
		name := fmt.Sprintf("f%d", i)
		b.InsertRow(tree.InsertRowInput{
			Path: dir, Filename: name, FileIndex: int32(i), JobID: 1,
			Mode: 0o100644, Nlink: 1,
		})
	}
	return b.Build()
}

// TestRoundTrip builds a 10,000-node tree, marks a pseudo-random subset,
// saves, loads, and asserts every Extract/ExtractDir bit matches and
// every node's path round-trips.
func TestRoundTrip(t *testing.T) {
	tr := buildTestTree(t, 10000, 42)

	rng := rand.New(rand.NewSource(7))
	for ref := 0; ref < tr.NodeCount(); ref++ {
		if rng.Intn(3) == 0 {
			tr.MarkNode(tree.NodeRef(ref))
		}
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.brtree")
	if err := Save(path, tr.Export()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, false, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.NodeCount() != tr.NodeCount() {
		t.Fatalf("NodeCount mismatch: got %d, want %d", loaded.NodeCount(), tr.NodeCount())
	}

	for ref := 0; ref < tr.NodeCount(); ref++ {
		n := tree.NodeRef(ref)
		if loaded.Extract(n) != tr.Extract(n) {
			t.Errorf("node %d: Extract mismatch after round trip", ref)
		}
		if loaded.ExtractDir(n) != tr.ExtractDir(n) {
			t.Errorf("node %d: ExtractDir mismatch after round trip", ref)
		}
		path := tr.PathTo(n)
		got, ok := loaded.Find(path, loaded.Root())
		if !ok || got != n {
			t.Errorf("node %d: Find(PathTo(n)) failed after round trip (path %q)", ref, path)
		}
	}
}

func TestRoundTrip_HardlinksAndDeltas(t *testing.T) {
	b := tree.NewBuilder()
	b.InsertRow(tree.InsertRowInput{Path: "/a/", Filename: "", FileIndex: 1, JobID: 7, Mode: 0o040755, Nlink: 2})
	b.InsertRow(tree.InsertRowInput{Path: "/b/", Filename: "", FileIndex: 2, JobID: 7, Mode: 0o040755, Nlink: 2})
	headRef := b.InsertRow(tree.InsertRowInput{Path: "/a/", Filename: "f", FileIndex: 10, JobID: 7, Mode: 0o100644, Nlink: 2})
	b.InsertRow(tree.InsertRowInput{Path: "/b/", Filename: "g", FileIndex: 11, JobID: 7, Mode: 0o100644, Nlink: 2, LinkFI: 10})
	b.AppendDelta(headRef, tree.DeltaEntry{JobID: 5, FileIndex: 9})
	b.AppendDelta(headRef, tree.DeltaEntry{JobID: 4, FileIndex: 2})

	tr := b.Build()
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.brtree")
	if err := Save(path, tr.Export()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, false, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	headLoaded, ok := loaded.HardlinkLookup(7, 10)
	if !ok {
		t.Fatal("hardlink head missing after round trip")
	}
	memberLoaded, ok := loaded.HardlinkLookup(7, 11)
	if !ok || memberLoaded != headLoaded {
		t.Fatal("hardlink member did not resolve to the same head after round trip")
	}

	deltas := loaded.DeltaList(headLoaded)
	if len(deltas) != 2 || deltas[0].FileIndex != 2 || deltas[1].FileIndex != 9 {
		t.Errorf("delta list after round trip = %v, want oldest-first [2,9]", deltas)
	}
}

func TestMarkOnLoad(t *testing.T) {
	tr := buildTestTree(t, 100, 1)
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.brtree")
	if err := Save(path, tr.Export()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, true, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for ref := 0; ref < loaded.NodeCount(); ref++ {
		n := tree.NodeRef(ref)
		if !loaded.Extract(n) {
			t.Errorf("node %d: Extract should be forced on by markOnLoad", ref)
		}
	}
}

func TestCorruptCRCFailsToLoad(t *testing.T) {
	tr := buildTestTree(t, 10, 1)
	data, err := Encode(tr.Export())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data[len(data)-1] ^= 0xFF // flip a trailer byte to break the CRC

	if _, err := Decode(data); err == nil {
		t.Error("expected Decode to fail on CRC mismatch")
	} else if _, ok := err.(*ErrCorrupt); !ok {
		t.Errorf("error type = %T, want *ErrCorrupt", err)
	}
}

func TestTruncatedFileFailsToLoad(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected Decode to fail on a truncated buffer")
	}
}
