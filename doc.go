// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// Package restoretree implements the restore preparation pipeline: building
// a directory tree from catalog rows, selecting files and directories
// interactively, and synthesizing the bootstrap record (BSR) that drives an
// actual restore job. The package never talks to a Director, File Daemon,
// or Storage Daemon directly, and it never queries a database; callers
// supply catalog.RowSource and catalog.VolumeSource implementations
// instead.
package restoretree
