// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"testing"

	"github.com/bareos-community/restoretree/internal/tree"
)

func buildSampleTree(t *testing.T) *tree.Tree {
	t.Helper()
	b := tree.NewBuilder()
	b.InsertRow(tree.InsertRowInput{Path: "/etc/", Filename: "hosts", FileIndex: 3, JobID: 1, Mode: 0o100644, Nlink: 1, Size: 158})
	b.InsertRow(tree.InsertRowInput{Path: "/etc/", Filename: "motd", FileIndex: 4, JobID: 1, Mode: 0o100644, Nlink: 1, Size: 42})
	b.InsertRow(tree.InsertRowInput{Path: "/etc/conf.d/", Filename: "app.conf", FileIndex: 5, JobID: 1, Mode: 0o100644, Nlink: 1, Size: 7})
	b.InsertRow(tree.InsertRowInput{Path: "/var/log/", Filename: "syslog", FileIndex: 6, JobID: 1, Mode: 0o100644, Nlink: 1, Size: 1024})
	return b.Build()
}

func TestCdAndPwd(t *testing.T) {
	e := NewEngine(buildSampleTree(t), false)
	if e.Pwd() != "/" {
		t.Fatalf("Pwd at root = %q, want /", e.Pwd())
	}
	if err := e.Cd("/etc"); err != nil {
		t.Fatalf("Cd: %v", err)
	}
	if e.Pwd() != "/etc" {
		t.Errorf("Pwd = %q, want /etc", e.Pwd())
	}
	if err := e.Cd(".."); err != nil {
		t.Fatalf("Cd ..: %v", err)
	}
	if e.Pwd() != "/" {
		t.Errorf("Pwd after .. = %q, want /", e.Pwd())
	}
}

func TestCdNotFound(t *testing.T) {
	e := NewEngine(buildSampleTree(t), false)
	if err := e.Cd("/nope"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLsGlob(t *testing.T) {
	e := NewEngine(buildSampleTree(t), false)
	e.Cd("/etc")
	out, err := e.Ls("*.conf")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Ls(*.conf) in /etc = %v, want empty (app.conf lives under conf.d)", out)
	}

	out, err = e.Ls("")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Ls('') under /etc = %d entries, want 3", len(out))
	}
	if out[0].Name != "conf.d" {
		t.Errorf("first entry = %q, want conf.d (sorted)", out[0].Name)
	}
}

func TestFindRecursive(t *testing.T) {
	e := NewEngine(buildSampleTree(t), false)
	out, err := e.Find("*.conf")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(out) != 1 || out[0].Name != "app.conf" {
		t.Fatalf("Find(*.conf) = %v, want [app.conf]", out)
	}
}

func TestMarkPathWithDirectoryGlob(t *testing.T) {
	tr := buildSampleTree(t)
	e := NewEngine(tr, false)

	n, err := e.Mark("etc/*.conf", &tree.CancelFlag{})
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if n != 0 {
		t.Errorf("Mark(etc/*.conf) touched %d nodes, want 0 (app.conf is under etc/conf.d, not etc directly)", n)
	}

	n, err = e.Mark("*/*.conf", &tree.CancelFlag{})
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if n != 0 {
		t.Errorf("Mark(*/*.conf) touched %d nodes, want 0 (only matches direct children of matched dirs)", n)
	}

	n, err = e.Mark("etc/conf.d/*.conf", &tree.CancelFlag{})
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if n != 1 {
		t.Fatalf("Mark(etc/conf.d/*.conf) touched %d nodes, want 1", n)
	}
	confd, _ := tr.Find("/etc/conf.d/app.conf", tr.Root())
	if !tr.Extract(confd) {
		t.Error("app.conf should be marked")
	}
}

func TestMarkAllRecursive(t *testing.T) {
	tr := buildSampleTree(t)
	e := NewEngine(tr, false)
	if err := e.MarkAll(&tree.CancelFlag{}); err != nil {
		t.Fatalf("MarkAll: %v", err)
	}
	stats := e.Estimate()
	if stats.Files != 4 {
		t.Errorf("Estimate.Files = %d, want 4", stats.Files)
	}
}

func TestUnmarkAll(t *testing.T) {
	tr := buildSampleTree(t)
	e := NewEngine(tr, false)
	e.MarkAll(&tree.CancelFlag{})
	if err := e.UnmarkAll(&tree.CancelFlag{}); err != nil {
		t.Fatalf("UnmarkAll: %v", err)
	}
	stats := e.Estimate()
	if stats.Files != 0 || stats.Dirs != 0 {
		t.Errorf("Estimate after UnmarkAll = %+v, want zero", stats)
	}
}

func TestUnmarkDirLeavesChildrenMarked(t *testing.T) {
	tr := buildSampleTree(t)
	e := NewEngine(tr, false)
	e.Cd("/etc")
	e.MarkAll(&tree.CancelFlag{})

	etc, _ := tr.Find("/etc", tr.Root())
	if !tr.ExtractDir(etc) {
		t.Fatal("precondition: /etc should be marked")
	}

	e.UnmarkDir()
	if tr.ExtractDir(etc) {
		t.Error("UnmarkDir should clear /etc's own extract_dir bit")
	}
	hosts, _ := tr.Find("/etc/hosts", tr.Root())
	if !tr.Extract(hosts) {
		t.Error("UnmarkDir must not affect children")
	}
}

func TestMarkRegexAndUnmarkRegex(t *testing.T) {
	tr := buildSampleTree(t)
	e := NewEngine(tr, false)

	n, err := e.MarkRegex("^(hosts|motd)$")
	if err != nil {
		t.Fatalf("MarkRegex: %v", err)
	}
	if n != 2 {
		t.Fatalf("MarkRegex matched %d nodes, want 2", n)
	}

	n, err = e.UnmarkRegex("^hosts$")
	if err != nil {
		t.Fatalf("UnmarkRegex: %v", err)
	}
	if n != 1 {
		t.Fatalf("UnmarkRegex matched %d nodes, want 1", n)
	}

	hosts, _ := tr.Find("/etc/hosts", tr.Root())
	motd, _ := tr.Find("/etc/motd", tr.Root())
	if tr.Extract(hosts) {
		t.Error("hosts should have been unmarked")
	}
	if !tr.Extract(motd) {
		t.Error("motd should still be marked")
	}
}

func TestMarkRegexInvalidPattern(t *testing.T) {
	e := NewEngine(buildSampleTree(t), false)
	if _, err := e.MarkRegex("("); err == nil {
		t.Fatal("expected an error for an unbalanced regex")
	} else if _, ok := err.(*ErrInvalidRegex); !ok {
		t.Errorf("error type = %T, want *ErrInvalidRegex", err)
	}
}

func TestLsmark(t *testing.T) {
	tr := buildSampleTree(t)
	e := NewEngine(tr, false)
	hosts, _ := tr.Find("/etc/hosts", tr.Root())
	tr.MarkNode(hosts)

	out := e.Lsmark()
	if len(out) != 1 || out[0].Name != "/etc/hosts" {
		t.Fatalf("Lsmark = %v, want [/etc/hosts]", out)
	}
}

func TestEstimateBytesAndCounts(t *testing.T) {
	tr := buildSampleTree(t)
	e := NewEngine(tr, false)
	hosts, _ := tr.Find("/etc/hosts", tr.Root())
	motd, _ := tr.Find("/etc/motd", tr.Root())
	tr.MarkNode(hosts)
	tr.MarkNode(motd)

	stats := e.Estimate()
	if stats.Files != 2 {
		t.Errorf("Files = %d, want 2", stats.Files)
	}
	if stats.Bytes != 158+42 {
		t.Errorf("Bytes = %d, want 200", stats.Bytes)
	}
}

func TestCaseFoldMatching(t *testing.T) {
	tr := buildSampleTree(t)
	e := NewEngine(tr, true)
	e.Cd("/etc")
	out, err := e.Ls("HOSTS")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("case-folded Ls(HOSTS) = %v, want one match", out)
	}
}
