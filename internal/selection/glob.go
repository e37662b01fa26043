// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// Package selection implements the interactive command surface over a
// built tree: cd/ls/mark/unmark/find/lsmark/estimate.
package selection

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// CaseFold, when true, matches glob segments case-insensitively, mirroring
// POSIX fnmatch's FNM_CASEFOLD.
type CaseFold bool

// matcher tests one path segment name against a compiled glob, folding
// case if the session was configured with CaseFold.
type matcher struct {
	g    glob.Glob
	fold CaseFold
}

func (m matcher) Match(name string) bool {
	if m.fold {
		name = strings.ToLower(name)
	}
	return m.g.Match(name)
}

// splitDirGlob separates a pattern containing a path separator into its
// directory-glob and file-glob halves: `etc/*.conf` splits into dir glob
// `etc` and file glob `*.conf`; a bare `*.conf` has no directory component
// at all.
func splitDirGlob(pattern string, sep byte) (dirSegments []string, fileGlob string, recursive bool) {
	if strings.HasSuffix(pattern, "/**") {
		// Everything before the /** is a directory glob; the recursive
		// descent below it matches every name.
		dir := strings.TrimSuffix(pattern, "/**")
		if dir == "" {
			return nil, "*", true
		}
		return strings.Split(dir, string(sep)), "*", true
	}

	idx := strings.LastIndexByte(pattern, sep)
	if idx < 0 {
		return nil, pattern, recursive
	}

	dir, file := pattern[:idx], pattern[idx+1:]
	if dir == "" {
		return nil, file, recursive
	}
	return strings.Split(dir, string(sep)), file, recursive
}

// compileSegment compiles one path-segment glob (supporting `?` and `*`,
// never matching across a separator) per the CaseFold setting.
func compileSegment(pattern string, fold CaseFold) (matcher, error) {
	p := pattern
	if fold {
		p = strings.ToLower(p)
	}
	g, err := glob.Compile(p, '/')
	if err != nil {
		return matcher{}, fmt.Errorf("selection: invalid glob %q: %w", pattern, err)
	}
	return matcher{g: g, fold: fold}, nil
}

// ErrInvalidRegex wraps a regex compilation failure for mark-by-regex; it
// is recoverable, the caller fixes the pattern and retries.
type ErrInvalidRegex struct {
	Pattern string
	Err     error
}

func (e *ErrInvalidRegex) Error() string {
	return fmt.Sprintf("selection: invalid regex %q: %v", e.Pattern, e.Err)
}

func (e *ErrInvalidRegex) Unwrap() error { return e.Err }

// compileExtendedRegex accepts POSIX extended regular expressions.
func compileExtendedRegex(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return nil, &ErrInvalidRegex{Pattern: pattern, Err: err}
	}
	return re, nil
}
