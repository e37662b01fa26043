// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package bsr

import "errors"

// ErrNoFilesSelected is returned by Synthesize when the tree has zero
// marked leaves; the caller must add selections before retrying.
var ErrNoFilesSelected = errors.New("bsr: no files selected")

// ErrNoVolumes is returned by Synthesize when not a single volume could be
// resolved for any referenced job; the caller must reselect jobs.
var ErrNoVolumes = errors.New("bsr: no volumes available for any selected job")
