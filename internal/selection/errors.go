// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package selection

import "errors"

// ErrNotFound is returned by Cd when the target path does not resolve to
// any node. Find reports no match as an empty result instead.
var ErrNotFound = errors.New("selection: not found")
