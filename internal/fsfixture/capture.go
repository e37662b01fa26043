// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// Package fsfixture walks a real directory tree and renders it as catalog
// rows, letting cmd/restoretree-fixtures build a FixtureDocument from an
// actual filesystem instead of only hand-authored rows: a recursive
// directory walk with exclusion rules, emitting one row per entry. No
// file content is read; a restore session only needs the metadata a
// catalog row carries.
package fsfixture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bareos-community/restoretree/internal/catalog"
)

// Common errors
var (
	ErrTooManyFiles = errors.New("fsfixture: too many files")
	ErrCyclicLink   = errors.New("fsfixture: cyclic symbolic link detected")
)

// Capture walks root and returns one catalog.Row per file, directory, and
// symlink found, all stamped with jobID and sequentially assigned
// FileIndex values starting at 1 (file index 0 is reserved by Bareos for
// "no file", matching the real catalog's convention).
func Capture(root string, jobID uint32, opts ...Option) ([]catalog.Row, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fsfixture: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("fsfixture: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fsfixture: root is not a directory: %s", absRoot)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	b := &builder{
		root:    absRoot,
		jobID:   jobID,
		opts:    o,
		visited: make(map[string]bool),
	}

	if err := b.walk(absRoot, ""); err != nil {
		return nil, err
	}
	return b.rows, nil
}

type builder struct {
	root    string
	jobID   uint32
	opts    *options
	visited map[string]bool

	rows     []catalog.Row
	nextFile int32
}

func (b *builder) allocFileIndex() int32 {
	b.nextFile++
	return b.nextFile
}

// walk records absPath (relPath from root) as a directory row and
// recurses into its children, sorted by name for deterministic fixture
// output.
func (b *builder) walk(absPath, relPath string) error {
	realPath, err := filepath.EvalSymlinks(absPath)
	if err == nil {
		if b.visited[realPath] {
			return ErrCyclicLink
		}
		b.visited[realPath] = true
		defer delete(b.visited, realPath)
	}

	b.rows = append(b.rows, b.dirRow(relPath))

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("fsfixture: read dir %s: %w", relPath, err)
	}

	names := make([]string, len(entries))
	for i, de := range entries {
		names[i] = de.Name()
	}
	sort.Strings(names)

	for _, name := range names {
		childRel := filepath.Join(relPath, name)
		childAbs := filepath.Join(absPath, name)

		if b.opts.shouldExclude(childRel) {
			continue
		}

		info, err := os.Lstat(childAbs)
		if err != nil {
			continue
		}

		if info.IsDir() {
			if err := b.walk(childAbs, childRel); err != nil {
				if errors.Is(err, ErrCyclicLink) {
					continue
				}
				return err
			}
			continue
		}

		if len(b.rows) >= b.opts.maxFiles {
			return ErrTooManyFiles
		}
		row, err := b.fileRow(childAbs, childRel, name, info)
		if err != nil {
			continue
		}
		b.rows = append(b.rows, row)
	}
	return nil
}

func (b *builder) dirRow(relPath string) catalog.Row {
	dirPath := "/" + filepath.ToSlash(relPath)
	if relPath != "" {
		dirPath += "/"
	}
	return catalog.Row{
		Path:      dirPath,
		Filename:  "",
		FileIndex: b.allocFileIndex(),
		JobID:     b.jobID,
		Lstat:     catalog.EncodeLstat(catalog.Lstat{Mode: 0o040755, Nlink: 2}),
	}
}

func (b *builder) fileRow(absPath, relPath, name string, info fs.FileInfo) (catalog.Row, error) {
	path, _ := splitPath(relPath)
	mode := uint32(0o100644)
	nlink := uint32(1)
	size := uint64(0)

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		mode = 0o120777
		target, err := os.Readlink(absPath)
		if err != nil {
			return catalog.Row{}, err
		}
		size = uint64(len(target))
	default:
		mode = 0o100000 | uint32(info.Mode().Perm())
		size = uint64(info.Size())
		nlink = systemNlink(info)
	}

	if name == "" {
		return catalog.Row{}, fmt.Errorf("fsfixture: empty filename at %q", path)
	}

	return catalog.Row{
		Path:      path,
		Filename:  name,
		FileIndex: b.allocFileIndex(),
		JobID:     b.jobID,
		Lstat:     catalog.EncodeLstat(catalog.Lstat{Mode: mode, Nlink: nlink}),
		Size:      size,
	}, nil
}

// splitPath turns a slash-relative path into (directory-with-trailing-
// slash, terminal-name), matching the catalog row shape.
func splitPath(relPath string) (string, string) {
	relPath = filepath.ToSlash(relPath)
	dir, name := filepath.Split(relPath)
	return "/" + dir, name
}
