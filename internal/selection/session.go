// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"sort"

	"github.com/bareos-community/restoretree/internal/tree"
)

// Entry describes one child as returned by Ls: its node, name, type, and
// current mark state (the `dir` listing variant shows marks).
type Entry struct {
	Ref        tree.NodeRef
	Name       string
	Type       tree.NodeType
	Extract    bool
	ExtractDir bool
}

// Stats is Estimate's result: files and directories currently marked under
// the queried node, plus their additive byte total.
type Stats struct {
	Files int
	Dirs  int
	Bytes uint64
}

// Engine is one interactive selection session over a built tree: a single
// "current node" cursor plus the glob/regex matching configured for it.
// Distinct Engines over the same Tree may mark concurrently as long as
// the Tree's own mark bitmap synchronizes them, which it does via
// word-level CAS.
type Engine struct {
	t       *tree.Tree
	current tree.NodeRef
	fold    CaseFold
}

// NewEngine starts a session positioned at the tree root.
func NewEngine(t *tree.Tree, fold CaseFold) *Engine {
	return &Engine{t: t, current: t.Root(), fold: fold}
}

// Current returns the session's current node.
func (e *Engine) Current() tree.NodeRef { return e.current }

// Pwd returns the fully-qualified path of the current node.
func (e *Engine) Pwd() string { return e.t.PathTo(e.current) }

// Cd changes the current node. An empty path returns to root; "." is a
// no-op; ".." (and any leading ".." segments in a longer path) climbs to
// the parent. Fails with ErrNotFound if the target does not exist.
func (e *Engine) Cd(path string) error {
	if path == "" {
		e.current = e.t.Root()
		return nil
	}
	ref, ok := e.t.Find(path, e.current)
	if !ok {
		return ErrNotFound
	}
	e.current = ref
	return nil
}

// Ls lists the current node's children matching glob ("" matches
// everything), sorted by name for deterministic output.
func (e *Engine) Ls(pattern string) ([]Entry, error) {
	var m *matcher
	if pattern != "" {
		compiled, err := compileSegment(pattern, e.fold)
		if err != nil {
			return nil, err
		}
		m = &compiled
	}

	var out []Entry
	for _, c := range e.t.Children(e.current) {
		name := e.t.Name(c)
		if m != nil && !m.Match(name) {
			continue
		}
		out = append(out, e.entry(c, name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (e *Engine) entry(ref tree.NodeRef, name string) Entry {
	return Entry{
		Ref:        ref,
		Name:       name,
		Type:       e.t.Type(ref),
		Extract:    e.t.Extract(ref),
		ExtractDir: e.t.ExtractDir(ref),
	}
}

// Find reports every node anywhere under the current node whose name
// matches pattern.
func (e *Engine) Find(pattern string) ([]Entry, error) {
	m, err := compileSegment(pattern, e.fold)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, ref := range e.t.Subtree(e.current) {
		if ref == e.current {
			continue
		}
		if name := e.t.Name(ref); m.Match(name) {
			out = append(out, e.entry(ref, name))
		}
	}
	return out, nil
}

// Mark sets extract (and extract_dir, for directories) on every child of
// the current node matching glob, descending into directory components of
// the pattern first. Returns the count of nodes touched.
func (e *Engine) Mark(pattern string, cancel *tree.CancelFlag) (int, error) {
	return e.markUnmark(pattern, cancel, true)
}

// Unmark is Mark's symmetric clear.
func (e *Engine) Unmark(pattern string, cancel *tree.CancelFlag) (int, error) {
	return e.markUnmark(pattern, cancel, false)
}

func (e *Engine) markUnmark(pattern string, cancel *tree.CancelFlag, mark bool) (int, error) {
	dirSegs, fileGlob, recursive := splitDirGlob(pattern, e.t.Separator())

	roots, err := e.resolveDirGlob(e.current, dirSegs)
	if err != nil {
		return 0, err
	}

	fg, err := compileSegment(fileGlob, e.fold)
	if err != nil {
		return 0, err
	}

	apply := e.t.MarkNode
	if !mark {
		apply = e.t.UnmarkNode
	}

	count := 0
	for _, root := range roots {
		if recursive {
			for _, ref := range e.t.Subtree(root) {
				if cancel.Cancelled() {
					return count, tree.ErrCancelled
				}
				if !fg.Match(e.t.Name(ref)) {
					continue
				}
				apply(ref)
				count++
			}
			continue
		}
		for _, c := range e.t.Children(root) {
			if !fg.Match(e.t.Name(c)) {
				continue
			}
			apply(c)
			count++
		}
	}
	return count, nil
}

// MarkAll recursively marks every node in the current subtree (the
// recursive `mark *` form).
func (e *Engine) MarkAll(cancel *tree.CancelFlag) error {
	return e.t.MarkSubtree(e.current, cancel)
}

// UnmarkAll is MarkAll's symmetric clear.
func (e *Engine) UnmarkAll(cancel *tree.CancelFlag) error {
	return e.t.UnmarkSubtree(e.current, cancel)
}

// UnmarkDir clears only the current node's own extract_dir bit, leaving
// any marked children untouched.
func (e *Engine) UnmarkDir() { e.t.UnmarkDir(e.current) }

// MarkRegex and UnmarkRegex mark/unmark every descendant of the current
// node whose name matches an extended regular expression.
func (e *Engine) MarkRegex(pattern string) (int, error) { return e.regexMarkUnmark(pattern, true) }
func (e *Engine) UnmarkRegex(pattern string) (int, error) {
	return e.regexMarkUnmark(pattern, false)
}

func (e *Engine) regexMarkUnmark(pattern string, mark bool) (int, error) {
	re, err := compileExtendedRegex(pattern)
	if err != nil {
		return 0, err
	}

	apply := e.t.MarkNode
	if !mark {
		apply = e.t.UnmarkNode
	}

	count := 0
	for _, ref := range e.t.Subtree(e.current) {
		if ref == e.current {
			continue
		}
		if !re.MatchString(e.t.Name(ref)) {
			continue
		}
		apply(ref)
		count++
	}
	return count, nil
}

// resolveDirGlob resolves each segment of a directory-glob against start,
// supporting `?`/`*` per segment; every matching path is returned, since
// a glob segment may fan out to multiple directories.
func (e *Engine) resolveDirGlob(start tree.NodeRef, segs []string) ([]tree.NodeRef, error) {
	cur := []tree.NodeRef{start}
	for _, seg := range segs {
		m, err := compileSegment(seg, e.fold)
		if err != nil {
			return nil, err
		}
		var next []tree.NodeRef
		for _, node := range cur {
			for _, c := range e.t.Children(node) {
				if e.t.Type(c).IsDirLike() && m.Match(e.t.Name(c)) {
					next = append(next, c)
				}
			}
		}
		cur = next
	}
	return cur, nil
}

// Lsmark lists every marked node anywhere under the current node.
func (e *Engine) Lsmark() []Entry {
	var out []Entry
	for _, ref := range e.t.Subtree(e.current) {
		if !e.t.Marked(ref) {
			continue
		}
		out = append(out, e.entry(ref, e.t.PathTo(ref)))
	}
	return out
}

// Estimate counts marked files and marked directories under the current
// node, plus their additive byte total.
func (e *Engine) Estimate() Stats {
	var s Stats
	for _, ref := range e.t.Subtree(e.current) {
		if e.t.Extract(ref) && e.t.Type(ref) != tree.NewDir && e.t.Type(ref) != tree.Root {
			s.Files++
			s.Bytes += e.t.Size(ref)
		}
		if e.t.ExtractDir(ref) && e.t.Type(ref).IsDirLike() {
			s.Dirs++
		}
	}
	return s
}
