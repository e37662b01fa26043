// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"fmt"
	"testing"
)

func TestMarkNode_DirectorySetsExtractDir(t *testing.T) {
	tr := buildSampleTree(t)
	etc, _ := tr.Find("/etc", tr.Root())
	tr.MarkNode(etc)
	if !tr.Extract(etc) {
		t.Error("Extract should be set")
	}
	if !tr.ExtractDir(etc) {
		t.Error("ExtractDir should be set for a directory-shaped node")
	}
}

func TestMarkNode_FileDoesNotSetExtractDir(t *testing.T) {
	tr := buildSampleTree(t)
	hosts, _ := tr.Find("/etc/hosts", tr.Root())
	tr.MarkNode(hosts)
	if !tr.Extract(hosts) {
		t.Error("Extract should be set")
	}
	if tr.ExtractDir(hosts) {
		t.Error("ExtractDir must not be set for a File node")
	}
}

func TestMarkSubtree(t *testing.T) {
	tr := buildSampleTree(t)
	etc, _ := tr.Find("/etc", tr.Root())
	if err := tr.MarkSubtree(etc, &CancelFlag{}); err != nil {
		t.Fatalf("MarkSubtree: %v", err)
	}
	for _, ref := range tr.Subtree(etc) {
		if !tr.Marked(ref) {
			t.Errorf("node %d under /etc should be marked", ref)
		}
	}
	// A sibling outside the subtree must remain untouched.
	syslog, _ := tr.Find("/var/log/syslog", tr.Root())
	if tr.Marked(syslog) {
		t.Error("/var/log/syslog must not be marked by MarkSubtree(/etc)")
	}
}

func TestUnmarkDir_LeavesChildrenMarked(t *testing.T) {
	tr := buildSampleTree(t)
	etc, _ := tr.Find("/etc", tr.Root())
	if err := tr.MarkSubtree(etc, &CancelFlag{}); err != nil {
		t.Fatalf("MarkSubtree: %v", err)
	}
	tr.UnmarkDir(etc)

	if tr.ExtractDir(etc) {
		t.Error("ExtractDir on /etc should be cleared")
	}
	if !tr.Extract(etc) {
		t.Error("Extract on /etc should be unaffected by UnmarkDir")
	}
	hosts, _ := tr.Find("/etc/hosts", tr.Root())
	if !tr.Extract(hosts) {
		t.Error("/etc/hosts should remain marked after UnmarkDir(/etc)")
	}
}

func TestCancellation_MarkSubtreeReturnsPromptly(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 20000; i++ {
		insertRow(b, fmt.Sprintf("/d%d/", i), "f", int32(i), 1, modeRegular, 1, 0)
	}
	tr := b.Build()

	cancel := &CancelFlag{}
	cancel.Cancel() // already cancelled before the walk starts

	err := tr.MarkSubtree(tr.Root(), cancel)
	if err != ErrCancelled {
		t.Fatalf("MarkSubtree = %v, want ErrCancelled", err)
	}

	// No invariant should be violated by a cancelled walk: SubtreeEnd
	// containment still holds for every node.
	for ref := 0; ref < tr.NodeCount(); ref++ {
		n := NodeRef(ref)
		if tr.SubtreeEnd(n) <= int32(n) {
			t.Errorf("node %d: SubtreeEnd invariant violated after cancellation", ref)
		}
	}
}

func TestCancellation_NilFlagNeverCancels(t *testing.T) {
	var cancel *CancelFlag
	if cancel.Cancelled() {
		t.Error("a nil CancelFlag must report not-cancelled")
	}
}
