// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package fsfixture

import "path/filepath"

// Option configures a Capture walk.
type Option func(*options)

type options struct {
	excludePatterns []string
	maxFiles        int
}

func defaultOptions() *options {
	return &options{
		maxFiles: 1_000_000,
	}
}

// WithExclude adds glob patterns for relative paths to skip, matched
// against the full relative path and against the base name alone.
func WithExclude(patterns ...string) Option {
	return func(o *options) {
		o.excludePatterns = append(o.excludePatterns, patterns...)
	}
}

// WithMaxFiles bounds how many rows Capture will emit before failing with
// ErrTooManyFiles.
func WithMaxFiles(n int) Option {
	return func(o *options) { o.maxFiles = n }
}

func (o *options) shouldExclude(relPath string) bool {
	for _, pattern := range o.excludePatterns {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(relPath)); matched {
			return true
		}
	}
	return false
}
