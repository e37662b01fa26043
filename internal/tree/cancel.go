// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled is returned by any long-running loop (ingestion, mark_subtree,
// tree walk) that observes a cancellation request between records. No work
// performed prior to cancellation is rolled back; the tree remains valid.
var ErrCancelled = errors.New("tree: cancelled")

// CancelFlag is a cooperative cancellation signal shared across a single
// ingestion or walk. It is safe to set from any goroutine; long loops
// poll it between records, so no preemption is needed.
type CancelFlag struct {
	flag atomic.Bool
}

// Cancel requests cancellation. Idempotent.
func (c *CancelFlag) Cancel() { c.flag.Store(true) }

// Cancelled reports whether cancellation has been requested.
func (c *CancelFlag) Cancelled() bool {
	if c == nil {
		return false
	}
	return c.flag.Load()
}
