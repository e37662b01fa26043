// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import "testing"

func buildSampleTree(t *testing.T) *Tree {
	t.Helper()
	b := NewBuilder()
	insertRow(b, "/etc/", "hosts", 3, 1, modeRegular, 1, 0)
	insertRow(b, "/etc/", "motd", 4, 1, modeRegular, 1, 0)
	insertRow(b, "/etc/ssl/", "cert.pem", 5, 1, modeRegular, 1, 0)
	insertRow(b, "/var/log/", "syslog", 6, 1, modeRegular, 1, 0)
	return b.Build()
}

func TestPathRoundTrip(t *testing.T) {
	tr := buildSampleTree(t)
	for ref := 0; ref < tr.NodeCount(); ref++ {
		n := NodeRef(ref)
		path := tr.PathTo(n)
		got, ok := tr.Find(path, tr.Root())
		if !ok {
			t.Errorf("Find(%q) failed for node %d", path, n)
			continue
		}
		if got != n {
			t.Errorf("Find(PathTo(%d)) = %d, want %d (path %q)", n, got, n, path)
		}
	}
}

func TestFind_DotAndDotDot(t *testing.T) {
	tr := buildSampleTree(t)
	etc, ok := tr.Find("/etc", tr.Root())
	if !ok {
		t.Fatal("could not find /etc")
	}

	if got, ok := tr.Find(".", etc); !ok || got != etc {
		t.Errorf("Find(\".\") = %d,%v, want %d,true", got, ok, etc)
	}
	if got, ok := tr.Find("..", etc); !ok || got != tr.Root() {
		t.Errorf("Find(\"..\") = %d,%v, want root", got, ok)
	}
	if got, ok := tr.Find("/etc/hosts", etc); !ok {
		t.Error("absolute path from non-root `from` should still resolve from root")
	} else if name := tr.Name(got); name != "hosts" {
		t.Errorf("resolved name = %q, want hosts", name)
	}
}

func TestFind_TrailingSlashDoesNotChangeResult(t *testing.T) {
	tr := buildSampleTree(t)
	a, ok1 := tr.Find("/etc/ssl", tr.Root())
	b, ok2 := tr.Find("/etc/ssl/", tr.Root())
	if !ok1 || !ok2 || a != b {
		t.Errorf("trailing slash changed the result: %d,%v vs %d,%v", a, ok1, b, ok2)
	}
}

func TestFind_NotFound(t *testing.T) {
	tr := buildSampleTree(t)
	if _, ok := tr.Find("/nope/nothing", tr.Root()); ok {
		t.Error("expected Find to fail for a nonexistent path")
	}
}

func TestChildrenInsertionOrder(t *testing.T) {
	b := NewBuilder()
	insertRow(b, "/", "zebra", 1, 1, modeRegular, 1, 0)
	insertRow(b, "/", "apple", 2, 1, modeRegular, 1, 0)
	insertRow(b, "/", "mango", 3, 1, modeRegular, 1, 0)
	tr := b.Build()

	var names []string
	for _, c := range tr.Children(tr.Root()) {
		names = append(names, tr.Name(c))
	}
	want := []string{"zebra", "apple", "mango"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Children()[%d] = %q, want %q (insertion order)", i, names[i], want[i])
		}
	}
}

func TestSubtreePreOrderInclusive(t *testing.T) {
	tr := buildSampleTree(t)
	etc, _ := tr.Find("/etc", tr.Root())

	sub := tr.Subtree(etc)
	if sub[0] != etc {
		t.Fatalf("Subtree must be inclusive of the starting node, got first=%d want %d", sub[0], etc)
	}
	for _, ref := range sub {
		if ref != etc {
			cur := ref
			reached := false
			for cur != NilRef {
				if cur == etc {
					reached = true
					break
				}
				cur = tr.Parent(cur)
			}
			if !reached {
				t.Errorf("Subtree(%d) yielded %d which is not a descendant", etc, ref)
			}
		}
	}
}

func TestRootHasNoName(t *testing.T) {
	tr := buildSampleTree(t)
	if name := tr.Name(tr.Root()); name != "" {
		t.Errorf("root Name() = %q, want empty", name)
	}
	if typ := tr.Type(tr.Root()); typ != Root {
		t.Errorf("root Type() = %v, want Root", typ)
	}
}
