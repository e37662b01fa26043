// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package fsfixture

import (
	"io/fs"
	"syscall"
)

// systemNlink reads the platform link count out of info's underlying
// syscall.Stat_t, falling back to 1 (the common case) if the OS doesn't
// expose one.
func systemNlink(info fs.FileInfo) uint32 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint32(st.Nlink)
	}
	return 1
}
